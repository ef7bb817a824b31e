// Package interfaces declares the contracts between the RAG pipelines and
// their collaborators, so pipelines can be exercised against in-memory
// implementations in tests.
package interfaces

import (
	"context"

	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// Loader reads a local file or remote resource into documents.
type Loader interface {
	Load(ctx context.Context, src string) ([]*schema.Document, error)
}

// VectorStore 是向量存储的抽象，按语言划分 collection。
type VectorStore interface {
	// Exists reports whether the named collection exists.
	Exists(ctx context.Context, collection string) (bool, error)
	// EnsureCollection creates the collection with the given embedding
	// dimension when it is absent. If the collection exists with a
	// different dimension an error is returned; re-creation would drop
	// previously indexed data.
	EnsureCollection(ctx context.Context, collection string, dim int) error
	// Upsert writes chunks, overwriting any rows with the same ID.
	Upsert(ctx context.Context, collection string, chunks []*schema.Chunk) error
	// Search returns up to limit chunks ordered by descending similarity
	// to the query vector.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]schema.ScoredChunk, error)
	// Scroll reads up to limit stored chunks without a query vector,
	// for inspection and maintenance tooling.
	Scroll(ctx context.Context, collection string, limit int) ([]*schema.Chunk, error)
}

// Diagnostics publishes degradation events (language fallback, skipped
// chunks, unavailable collaborators) to an external sink.
type Diagnostics interface {
	Publish(ctx context.Context, event models.DiagnosticEvent) error
}

// NoopDiagnostics discards every event. Used when Kafka is disabled.
type NoopDiagnostics struct{}

func (NoopDiagnostics) Publish(ctx context.Context, event models.DiagnosticEvent) error { return nil }
