package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// MemoryStore 是 VectorStore 的内存实现,用于测试和本地实验。
// 检索使用余弦相似度,与 Milvus 后端保持一致的打分语义。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dim    int
	order  []string // 插入顺序,Scroll 按此返回
	chunks map[string]*schema.Chunk
}

// NewMemoryStore 创建一个空的 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) Exists(ctx context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[collection]; ok {
		if existing.dim != dim {
			return fmt.Errorf("collection %s has embedding dim %d, config expects %d", collection, existing.dim, dim)
		}
		return nil
	}
	s.collections[collection] = &memCollection{dim: dim, chunks: make(map[string]*schema.Chunk)}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, chunks []*schema.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	for _, c := range chunks {
		if len(c.Embedding) != col.dim {
			return fmt.Errorf("chunk %s has dim %d, collection %s expects %d", c.ID, len(c.Embedding), collection, col.dim)
		}
		if _, seen := col.chunks[c.ID]; !seen {
			col.order = append(col.order, c.ID)
		}
		col.chunks[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]schema.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	scored := make([]schema.ScoredChunk, 0, len(col.chunks))
	for _, id := range col.order {
		c := col.chunks[id]
		scored = append(scored, schema.ScoredChunk{Chunk: c, Score: cosineSimilarity(vector, c.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *MemoryStore) Scroll(ctx context.Context, collection string, limit int) ([]*schema.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	chunks := make([]*schema.Chunk, 0, len(col.order))
	for _, id := range col.order {
		if limit > 0 && len(chunks) >= limit {
			break
		}
		chunks = append(chunks, col.chunks[id])
	}
	return chunks, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
