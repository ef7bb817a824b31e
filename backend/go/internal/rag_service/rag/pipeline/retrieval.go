package pipeline

import (
	"context"
	"sort"

	"EdgeRAG/backend/go/internal/embedding"
	"EdgeRAG/backend/go/internal/entities"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/interfaces"
	"EdgeRAG/backend/go/internal/rag_service/rag/rankers"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
	"EdgeRAG/backend/go/pkg/logger"
)

// RetrievalConfig 控制混合检索的候选规模、权重与集合路由。
type RetrievalConfig struct {
	VectorDim      int
	CandidateLimit int
	TopK           int
	// 语言 -> BM25 权重。阿拉伯语检索中词法信号权重更高,
	// 以补偿嵌入模型在阿拉伯语上较弱的表现。
	LexicalWeights map[models.Language]float64
	Collections    map[models.Language]string
}

func (c RetrievalConfig) lexicalWeight(lang models.Language) float64 {
	if w, ok := c.LexicalWeights[lang]; ok {
		return w
	}
	return c.LexicalWeights[models.LanguageEnglish]
}

func (c RetrievalConfig) collectionFor(lang models.Language) string {
	if name, ok := c.Collections[lang]; ok {
		return name
	}
	return c.Collections[models.LanguageEnglish]
}

// RetrievalPipeline 执行混合检索:向量召回候选集,再用 BM25 和实体重合度
// 对候选重排。所有协作方不可用时退化为空结果而不是报错,由调用方决定
// 如何向用户呈现"没有找到相关内容"。
type RetrievalPipeline struct {
	extractor entities.Extractor
	embedder  embedding.Embedding
	store     interfaces.VectorStore
	diag      interfaces.Diagnostics
	cfg       RetrievalConfig
	log       *logger.Logger
}

// NewRetrievalPipeline 组装检索流水线。diag 可为 nil。
func NewRetrievalPipeline(
	extractor entities.Extractor,
	embedder embedding.Embedding,
	store interfaces.VectorStore,
	diag interfaces.Diagnostics,
	cfg RetrievalConfig,
) *RetrievalPipeline {
	if diag == nil {
		diag = interfaces.NoopDiagnostics{}
	}
	return &RetrievalPipeline{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		diag:      diag,
		cfg:       cfg,
		log:       logger.New("retrieval"),
	}
}

// Search 返回与查询最相关的至多 TopK 个分块,按融合分数降序。
func (p *RetrievalPipeline) Search(ctx context.Context, query string, lang models.Language) ([]schema.RetrievalResult, error) {
	queryEnts, err := p.extractor.Extract(ctx, query, lang)
	if err != nil {
		// 实体信号缺失时降级为向量+词法两路。
		p.log.WithError(err).Warn("query entity extraction failed, scoring without entity overlap")
		p.publish(ctx, models.DiagnosticEvent{
			Stage:    models.StageEntityExtract,
			Reason:   err.Error(),
			Source:   "query",
			Language: lang,
		})
	}
	queryEntities := entities.GroupByCategory(queryEnts)

	candidates := p.denseCandidates(ctx, query, lang)
	if len(candidates) == 0 {
		return nil, nil
	}

	// 去重:相同文本只保留稠密分数最高的一条。候选按相似度降序返回,
	// 因此保留首次出现即可。
	seen := make(map[string]bool, len(candidates))
	deduped := candidates[:0]
	for _, c := range candidates {
		if seen[c.Chunk.Text] {
			continue
		}
		seen[c.Chunk.Text] = true
		deduped = append(deduped, c)
	}
	candidates = deduped

	queryTokens := rankers.Tokenize(query, lang)
	corpus := make([][]string, len(candidates))
	for i, c := range candidates {
		corpus[i] = rankers.Tokenize(c.Chunk.Text, lang)
	}
	bm25 := rankers.BM25Scores(queryTokens, corpus)

	weight := p.cfg.lexicalWeight(lang)
	results := make([]schema.RetrievalResult, len(candidates))
	for i, c := range candidates {
		entityScore, matched := rankers.EntityOverlap(queryEntities, c.Chunk.Entities)

		base := c.Score + weight*bm25[i]
		combined := base
		if entityScore > 0 {
			combined = (base + entityScore) / 2
		}

		results[i] = schema.RetrievalResult{
			Text:            c.Chunk.Text,
			Score:           combined,
			VectorScore:     c.Score,
			LexicalScore:    bm25[i],
			EntityScore:     entityScore,
			Source:          c.Chunk.Source,
			Language:        c.Chunk.Language,
			MatchedEntities: matched,
		}
	}

	// 融合分数降序,同分时稠密分数高者优先。
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].VectorScore > results[j].VectorScore
	})

	if p.cfg.TopK > 0 && len(results) > p.cfg.TopK {
		results = results[:p.cfg.TopK]
	}
	return results, nil
}

// denseCandidates 执行向量召回。召回链路上的任何失败都降级为空候选集。
func (p *RetrievalPipeline) denseCandidates(ctx context.Context, query string, lang models.Language) []schema.ScoredChunk {
	collection := p.cfg.collectionFor(lang)

	exists, err := p.store.Exists(ctx, collection)
	if err != nil || !exists {
		reason := "collection does not exist"
		if err != nil {
			reason = err.Error()
		}
		p.log.WithField("collection", collection).Warn("dense retrieval unavailable: " + reason)
		p.publish(ctx, models.DiagnosticEvent{
			Stage:    models.StageCollectionAbsent,
			Reason:   reason,
			Source:   collection,
			Language: lang,
		})
		return nil
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.log.WithError(err).Warn("query embedding failed, returning no candidates")
		p.publish(ctx, models.DiagnosticEvent{
			Stage:    models.StageEmbedding,
			Reason:   err.Error(),
			Source:   "query",
			Language: lang,
		})
		return nil
	}
	vec = embedding.Normalize(vec, p.cfg.VectorDim)

	limit := p.cfg.CandidateLimit
	if limit <= 0 {
		limit = 20
	}
	candidates, err := p.store.Search(ctx, collection, vec, limit)
	if err != nil {
		p.log.WithError(err).WithField("collection", collection).Warn("vector search failed, returning no candidates")
		p.publish(ctx, models.DiagnosticEvent{
			Stage:    models.StageVectorSearch,
			Reason:   err.Error(),
			Source:   collection,
			Language: lang,
		})
		return nil
	}
	return candidates
}

func (p *RetrievalPipeline) publish(ctx context.Context, event models.DiagnosticEvent) {
	if err := p.diag.Publish(ctx, event); err != nil {
		p.log.WithError(err).Debug("failed to publish diagnostic event")
	}
}
