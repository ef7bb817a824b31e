// Package service exposes the RAG system as a small facade used by the
// HTTP API and the indexing CLI.
package service

import (
	"context"
	"fmt"

	"EdgeRAG/backend/go/internal/config"
	"EdgeRAG/backend/go/internal/embedding"
	"EdgeRAG/backend/go/internal/entities"
	"EdgeRAG/backend/go/internal/language"
	"EdgeRAG/backend/go/internal/llm"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/interfaces"
	"EdgeRAG/backend/go/internal/rag_service/rag/loaders"
	"EdgeRAG/backend/go/internal/rag_service/rag/pipeline"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
	"EdgeRAG/backend/go/internal/rag_service/rag/splitters"
	"EdgeRAG/backend/go/pkg/logger"
)

// Answer 是一次问答的完整结果:生成的回答、判定的查询语言和支撑来源。
type Answer struct {
	Answer   string                   `json:"answer"`
	Language models.Language          `json:"language"`
	Sources  []schema.RetrievalResult `json:"sources"`
}

// Service 将索引、检索与问答流水线组合为一个对外的服务入口。
type Service struct {
	cfg       *config.AppConfig
	detector  language.Detector
	store     interfaces.VectorStore
	diag      interfaces.Diagnostics
	indexing  *pipeline.IndexingPipeline
	retrieval *pipeline.RetrievalPipeline
	qa        *pipeline.QAPipeline
	log       *logger.Logger
}

// New 组装 Service。所有协作方都由调用方显式构造并注入,便于测试替换。
// diag 可为 nil,此时降级事件只写日志。
func New(
	cfg *config.AppConfig,
	detector language.Detector,
	extractor entities.Extractor,
	embedder embedding.Embedding,
	llmClient llm.LLM,
	store interfaces.VectorStore,
	diag interfaces.Diagnostics,
) *Service {
	if diag == nil {
		diag = interfaces.NoopDiagnostics{}
	}

	collections := map[models.Language]string{
		models.LanguageEnglish: cfg.Retrieval.EnglishCollection,
		models.LanguageArabic:  cfg.Retrieval.ArabicCollection,
	}

	indexing := pipeline.NewIndexingPipeline(
		splitters.NewWordSplitter(cfg.Retrieval.ChunkSize),
		detector, extractor, embedder, store, diag,
		pipeline.IndexingConfig{
			VectorDim:   cfg.Retrieval.VectorDim,
			BatchSize:   cfg.Retrieval.BatchSize,
			Collections: collections,
		},
	)
	retrieval := pipeline.NewRetrievalPipeline(
		extractor, embedder, store, diag,
		pipeline.RetrievalConfig{
			VectorDim:      cfg.Retrieval.VectorDim,
			CandidateLimit: cfg.Retrieval.CandidateLimit,
			TopK:           cfg.Retrieval.TopK,
			LexicalWeights: map[models.Language]float64{
				models.LanguageEnglish: cfg.Retrieval.EnglishLexicalWeight,
				models.LanguageArabic:  cfg.Retrieval.ArabicLexicalWeight,
			},
			Collections: collections,
		},
	)
	qa := pipeline.NewQAPipeline(llmClient, cfg.LLM.EnglishModel, cfg.LLM.ArabicModel)

	return &Service{
		cfg:       cfg,
		detector:  detector,
		store:     store,
		diag:      diag,
		indexing:  indexing,
		retrieval: retrieval,
		qa:        qa,
		log:       logger.New("rag_service"),
	}
}

// Setup 确保两个语言集合都已存在且维度与配置一致。
// 维度不一致会直接报错,重建集合会丢弃已索引的数据,必须由运维决定。
func (s *Service) Setup(ctx context.Context) error {
	for _, name := range []string{s.cfg.Retrieval.EnglishCollection, s.cfg.Retrieval.ArabicCollection} {
		if err := s.store.EnsureCollection(ctx, name, s.cfg.Retrieval.VectorDim); err != nil {
			return fmt.Errorf("collection setup failed: %w", err)
		}
	}
	return nil
}

// IndexText 索引一段原始文本。
func (s *Service) IndexText(ctx context.Context, text, source string) (models.IndexingOutcome, error) {
	return s.indexing.Run(ctx, text, source)
}

// IndexFile 根据文件类型选择加载器,逐文档索引并汇总结果。
func (s *Service) IndexFile(ctx context.Context, path string) (models.IndexingOutcome, error) {
	var total models.IndexingOutcome

	loader, err := loaders.ForFile(path)
	if err != nil {
		return total, err
	}
	docs, err := loader.Load(ctx, path)
	if err != nil {
		return total, err
	}

	for _, doc := range docs {
		outcome, err := s.indexing.Run(ctx, doc.Text, doc.Source)
		total.ChunksTotal += outcome.ChunksTotal
		total.ChunksIndexed += outcome.ChunksIndexed
		total.ChunksSkipped += outcome.ChunksSkipped
		if err != nil {
			return total, fmt.Errorf("indexing %s failed: %w", doc.Source, err)
		}
	}
	return total, nil
}

// IndexURL 抓取网页并索引其正文。
func (s *Service) IndexURL(ctx context.Context, url string) (models.IndexingOutcome, error) {
	var total models.IndexingOutcome

	docs, err := loaders.NewWebLoader().Load(ctx, url)
	if err != nil {
		return total, err
	}
	for _, doc := range docs {
		outcome, err := s.indexing.Run(ctx, doc.Text, doc.Source)
		total.ChunksTotal += outcome.ChunksTotal
		total.ChunksIndexed += outcome.ChunksIndexed
		total.ChunksSkipped += outcome.ChunksSkipped
		if err != nil {
			return total, fmt.Errorf("indexing %s failed: %w", doc.Source, err)
		}
	}
	return total, nil
}

// Inspect 无查询地读取一个语言集合中最多 limit 条已索引的分块,
// 供运维检查索引内容。
func (s *Service) Inspect(ctx context.Context, lang models.Language, limit int) ([]*schema.Chunk, error) {
	collection := s.cfg.Retrieval.EnglishCollection
	if lang == models.LanguageArabic {
		collection = s.cfg.Retrieval.ArabicCollection
	}
	return s.store.Scroll(ctx, collection, limit)
}

// Retrieve 只执行混合检索,不生成回答。
func (s *Service) Retrieve(ctx context.Context, query string) ([]schema.RetrievalResult, models.Language, error) {
	lang := s.detectQueryLanguage(ctx, query)
	results, err := s.retrieval.Search(ctx, query, lang)
	return results, lang, err
}

// Query 执行完整的问答流程:识别语言、混合检索、生成并整形回答。
func (s *Service) Query(ctx context.Context, query string, opts models.GenerateOptions) (*Answer, error) {
	lang := s.detectQueryLanguage(ctx, query)

	results, err := s.retrieval.Search(ctx, query, lang)
	if err != nil {
		return nil, err
	}

	answer, err := s.qa.Run(ctx, query, lang, results, opts)
	if err != nil {
		return nil, err
	}

	return &Answer{Answer: answer, Language: lang, Sources: results}, nil
}

// detectQueryLanguage 判定查询语言,识别降级时记录诊断信号。
// unknown 按英语路由。
func (s *Service) detectQueryLanguage(ctx context.Context, query string) models.Language {
	lang, err := s.detector.Detect(ctx, query)
	if err != nil {
		s.log.WithError(err).Warn("query language detection degraded to heuristic")
		if perr := s.diag.Publish(ctx, models.DiagnosticEvent{
			Stage:    models.StageLanguageDetect,
			Reason:   err.Error(),
			Source:   "query",
			Language: lang,
		}); perr != nil {
			s.log.WithError(perr).Debug("failed to publish diagnostic event")
		}
	}
	if lang == models.LanguageUnknown {
		lang = models.LanguageEnglish
	}
	return lang
}
