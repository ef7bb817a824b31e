// Package vectorstore provides the storage backends for indexed chunks.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
	"EdgeRAG/backend/go/pkg/logger"
)

const (
	fieldID          = "id"
	fieldText        = "text"
	fieldSource      = "source"
	fieldChunkIndex  = "chunk_index"
	fieldTotalChunks = "total_chunks"
	fieldLanguage    = "language"
	fieldEntities    = "entities"
	fieldEmbedding   = "embedding"
)

var outputFields = []string{fieldID, fieldText, fieldSource, fieldChunkIndex, fieldTotalChunks, fieldLanguage, fieldEntities}

// MilvusStore 基于 Milvus 实现 VectorStore,使用余弦相似度检索。
type MilvusStore struct {
	client client.Client
	log    *logger.Logger
}

// NewMilvusStore 创建一个 MilvusStore。
func NewMilvusStore(c client.Client) *MilvusStore {
	return &MilvusStore{client: c, log: logger.New("vectorstore")}
}

// Exists reports whether the named collection exists.
func (s *MilvusStore) Exists(ctx context.Context, collection string) (bool, error) {
	has, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	return has, nil
}

// EnsureCollection 在 collection 不存在时创建它。已存在但向量维度不一致时
// 返回错误而不是重建,重建会丢弃已索引的数据。
func (s *MilvusStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	has, err := s.Exists(ctx, collection)
	if err != nil {
		return err
	}
	if has {
		desc, err := s.client.DescribeCollection(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to describe collection %s: %w", collection, err)
		}
		for _, f := range desc.Schema.Fields {
			if f.Name != fieldEmbedding {
				continue
			}
			if got := f.TypeParams[entity.TypeParamDim]; got != strconv.Itoa(dim) {
				return fmt.Errorf("collection %s has embedding dim %s, config expects %d", collection, got, dim)
			}
		}
		return s.load(ctx, collection)
	}

	sch := entity.NewSchema().WithName(collection).
		WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
		WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldTotalChunks).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldLanguage).WithDataType(entity.FieldTypeVarChar).WithMaxLength(16)).
		WithField(entity.NewField().WithName(fieldEntities).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))

	if err := s.client.CreateCollection(ctx, sch, 1); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := s.client.CreateIndex(ctx, collection, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collection, err)
	}

	s.log.WithField("collection", collection).WithField("dim", dim).Info("created vector collection")
	return s.load(ctx, collection)
}

func (s *MilvusStore) load(ctx context.Context, collection string) error {
	if err := s.client.LoadCollection(ctx, collection, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", collection, err)
	}
	return nil
}

// Upsert 写入分块,同 ID 的行会被覆盖。
func (s *MilvusStore) Upsert(ctx context.Context, collection string, chunks []*schema.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	indices := make([]int64, len(chunks))
	totals := make([]int64, len(chunks))
	languages := make([]string, len(chunks))
	entityJSON := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	dim := len(chunks[0].Embedding)

	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
		sources[i] = c.Source
		indices[i] = int64(c.ChunkIndex)
		totals[i] = int64(c.TotalChunks)
		languages[i] = string(c.Language)
		data, err := json.Marshal(c.Entities)
		if err != nil {
			return fmt.Errorf("failed to marshal entities of chunk %s: %w", c.ID, err)
		}
		entityJSON[i] = string(data)
		vectors[i] = c.Embedding
	}

	_, err := s.client.Upsert(ctx, collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnInt64(fieldChunkIndex, indices),
		entity.NewColumnInt64(fieldTotalChunks, totals),
		entity.NewColumnVarChar(fieldLanguage, languages),
		entity.NewColumnVarChar(fieldEntities, entityJSON),
		entity.NewColumnFloatVector(fieldEmbedding, dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks into %s: %w", len(chunks), collection, err)
	}
	return nil
}

// Search 返回与查询向量最相似的 limit 个分块,按相似度降序。
func (s *MilvusStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]schema.ScoredChunk, error) {
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := s.client.Search(ctx, collection, nil, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, fieldEmbedding, entity.COSINE, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("search in %s failed: %w", collection, err)
	}

	var scored []schema.ScoredChunk
	for _, result := range results {
		chunks, err := columnsToChunks(result.Fields, result.ResultCount)
		if err != nil {
			return nil, err
		}
		for i, c := range chunks {
			scored = append(scored, schema.ScoredChunk{Chunk: c, Score: float64(result.Scores[i])})
		}
	}
	return scored, nil
}

// Scroll 无查询向量地读取最多 limit 条已存储的分块。
func (s *MilvusStore) Scroll(ctx context.Context, collection string, limit int) ([]*schema.Chunk, error) {
	rs, err := s.client.Query(ctx, collection, nil, `id != ""`, outputFields, client.WithLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("scroll of %s failed: %w", collection, err)
	}
	if len(rs) == 0 {
		return nil, nil
	}
	return columnsToChunks(rs, rs[0].Len())
}

// columnsToChunks 将列式查询结果还原为分块列表。
func columnsToChunks(cols []entity.Column, count int) ([]*schema.Chunk, error) {
	byName := make(map[string]entity.Column, len(cols))
	for _, col := range cols {
		byName[col.Name()] = col
	}

	varcharData := func(name string) ([]string, error) {
		col, ok := byName[name].(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("missing or mistyped column %s", name)
		}
		return col.Data(), nil
	}
	int64Data := func(name string) ([]int64, error) {
		col, ok := byName[name].(*entity.ColumnInt64)
		if !ok {
			return nil, fmt.Errorf("missing or mistyped column %s", name)
		}
		return col.Data(), nil
	}

	ids, err := varcharData(fieldID)
	if err != nil {
		return nil, err
	}
	texts, err := varcharData(fieldText)
	if err != nil {
		return nil, err
	}
	sources, err := varcharData(fieldSource)
	if err != nil {
		return nil, err
	}
	languages, err := varcharData(fieldLanguage)
	if err != nil {
		return nil, err
	}
	entityJSON, err := varcharData(fieldEntities)
	if err != nil {
		return nil, err
	}
	indices, err := int64Data(fieldChunkIndex)
	if err != nil {
		return nil, err
	}
	totals, err := int64Data(fieldTotalChunks)
	if err != nil {
		return nil, err
	}

	chunks := make([]*schema.Chunk, 0, count)
	for i := 0; i < count && i < len(ids); i++ {
		ents := make(map[string][]string)
		if entityJSON[i] != "" {
			if err := json.Unmarshal([]byte(entityJSON[i]), &ents); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entities of chunk %s: %w", ids[i], err)
			}
		}
		chunks = append(chunks, &schema.Chunk{
			ID:          ids[i],
			Text:        texts[i],
			Source:      sources[i],
			ChunkIndex:  int(indices[i]),
			TotalChunks: int(totals[i]),
			Language:    models.Language(languages[i]),
			Entities:    ents,
		})
	}
	return chunks, nil
}
