// Package pipeline wires chunking, enrichment, storage and generation into
// the indexing, retrieval and answering flows.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"EdgeRAG/backend/go/internal/embedding"
	"EdgeRAG/backend/go/internal/entities"
	"EdgeRAG/backend/go/internal/language"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/interfaces"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
	"EdgeRAG/backend/go/internal/rag_service/rag/splitters"
	"EdgeRAG/backend/go/pkg/logger"
)

// IndexingConfig 控制索引流水线的分块、批量与集合路由。
type IndexingConfig struct {
	VectorDim int
	BatchSize int
	// 语言 -> collection 名称,unknown 路由到英语集合。
	Collections map[models.Language]string
}

func (c IndexingConfig) collectionFor(lang models.Language) string {
	if name, ok := c.Collections[lang]; ok {
		return name
	}
	return c.Collections[models.LanguageEnglish]
}

// IndexingPipeline 将文档切块、富化并写入向量库。
// 单个分块的富化失败只会跳过该分块,整个文档的索引不会中断。
type IndexingPipeline struct {
	splitter  *splitters.WordSplitter
	detector  language.Detector
	extractor entities.Extractor
	embedder  embedding.Embedding
	store     interfaces.VectorStore
	diag      interfaces.Diagnostics
	cfg       IndexingConfig
	log       *logger.Logger
}

// NewIndexingPipeline 组装索引流水线。diag 可为 nil,此时降级事件只写日志。
func NewIndexingPipeline(
	splitter *splitters.WordSplitter,
	detector language.Detector,
	extractor entities.Extractor,
	embedder embedding.Embedding,
	store interfaces.VectorStore,
	diag interfaces.Diagnostics,
	cfg IndexingConfig,
) *IndexingPipeline {
	if diag == nil {
		diag = interfaces.NoopDiagnostics{}
	}
	return &IndexingPipeline{
		splitter:  splitter,
		detector:  detector,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		diag:      diag,
		cfg:       cfg,
		log:       logger.New("indexing"),
	}
}

// Run 索引一篇文档,返回分块级别的处理汇总。
// 除向量库不可用外,单个分块的失败不会转化为错误返回。
func (p *IndexingPipeline) Run(ctx context.Context, text, source string) (models.IndexingOutcome, error) {
	var outcome models.IndexingOutcome

	chunks := p.splitter.Split(text, source)
	outcome.ChunksTotal = len(chunks)
	if len(chunks) == 0 {
		return outcome, nil
	}

	var ready []*schema.Chunk
	for _, chunk := range chunks {
		lang, err := p.detector.Detect(ctx, chunk.Text)
		if err != nil {
			// Detect 失败时返回启发式结果;记录降级信号后继续。
			p.log.WithError(err).WithField("source", source).Warn("language detection degraded to heuristic")
			p.publish(ctx, models.DiagnosticEvent{
				Stage:    models.StageLanguageDetect,
				Reason:   err.Error(),
				Source:   source,
				Language: lang,
			})
		}
		if lang == models.LanguageUnknown {
			lang = models.LanguageEnglish
		}
		chunk.Language = lang

		ents, err := p.extractor.Extract(ctx, chunk.Text, lang)
		if err != nil {
			p.log.WithError(err).WithField("source", source).Warn("entity extraction failed, indexing chunk without entities")
			p.publish(ctx, models.DiagnosticEvent{
				Stage:    models.StageEntityExtract,
				Reason:   err.Error(),
				Source:   source,
				Language: lang,
			})
		}
		chunk.Entities = entities.GroupByCategory(ents)

		vec, err := p.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			outcome.ChunksSkipped++
			p.log.WithError(err).WithField("source", source).WithField("chunk_index", chunk.ChunkIndex).Warn("embedding failed, skipping chunk")
			p.publish(ctx, models.DiagnosticEvent{
				Stage:    models.StageEmbedding,
				Reason:   err.Error(),
				Source:   source,
				Language: lang,
			})
			continue
		}
		chunk.Embedding = embedding.Normalize(vec, p.cfg.VectorDim)
		ready = append(ready, chunk)
	}

	indexed, err := p.upsertByLanguage(ctx, ready)
	outcome.ChunksIndexed = indexed
	outcome.ChunksSkipped += len(ready) - indexed
	if err != nil {
		return outcome, err
	}

	p.log.WithFields(map[string]interface{}{
		"source":  source,
		"total":   outcome.ChunksTotal,
		"indexed": outcome.ChunksIndexed,
		"skipped": outcome.ChunksSkipped,
	}).Info("document indexed")
	return outcome, nil
}

// upsertByLanguage 按语言集合分组后并发批量写入,返回成功写入的分块数。
func (p *IndexingPipeline) upsertByLanguage(ctx context.Context, chunks []*schema.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	byCollection := make(map[string][]*schema.Chunk)
	for _, c := range chunks {
		name := p.cfg.collectionFor(c.Language)
		byCollection[name] = append(byCollection[name], c)
	}

	for name := range byCollection {
		if err := p.store.EnsureCollection(ctx, name, p.cfg.VectorDim); err != nil {
			return 0, fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	var indexed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for name, group := range byCollection {
		for start := 0; start < len(group); start += batchSize {
			end := min(start+batchSize, len(group))
			name, batch := name, group[start:end]
			g.Go(func() error {
				if err := p.store.Upsert(gctx, name, batch); err != nil {
					return fmt.Errorf("failed to upsert batch into %s: %w", name, err)
				}
				indexed.Add(int64(len(batch)))
				return nil
			})
		}
	}
	err := g.Wait()
	return int(indexed.Load()), err
}

func (p *IndexingPipeline) publish(ctx context.Context, event models.DiagnosticEvent) {
	if err := p.diag.Publish(ctx, event); err != nil {
		p.log.WithError(err).Debug("failed to publish diagnostic event")
	}
}
