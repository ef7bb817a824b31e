// Package schema defines the core data structures passed between the
// loading, chunking, indexing and retrieval stages.
package schema

import "EdgeRAG/backend/go/internal/models"

// Document is a unit of raw text produced by a loader, before chunking.
type Document struct {
	Text   string `json:"text"`   // 文档的原始文本内容
	Source string `json:"source"` // 文档来源，例如文件路径或 URL
}

// Chunk is a fixed-size slice of a document together with everything the
// vector store persists for it: detected language, extracted entities and
// the (dimension-normalized) embedding.
type Chunk struct {
	ID          string              `json:"id"`
	Text        string              `json:"text"`
	Source      string              `json:"source"`
	ChunkIndex  int                 `json:"chunk_index"`
	TotalChunks int                 `json:"total_chunks"`
	Language    models.Language     `json:"language"`
	Entities    map[string][]string `json:"entities"` // 类别 -> 实体文本列表
	Embedding   []float32           `json:"-"`
}

// ScoredChunk pairs a stored chunk with its dense similarity score as
// returned by the vector store.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// RetrievalResult is one ranked hit of a hybrid search. Score is the fused
// value the final ordering is based on; the three component scores are kept
// so callers can inspect why a chunk ranked where it did.
type RetrievalResult struct {
	Text            string          `json:"text"`
	Score           float64         `json:"score"`
	VectorScore     float64         `json:"vector_score"`
	LexicalScore    float64         `json:"lexical_score"`
	EntityScore     float64         `json:"entity_score"`
	Source          string          `json:"source"`
	Language        models.Language `json:"language"`
	MatchedEntities []string        `json:"matched_entities,omitempty"`
}
