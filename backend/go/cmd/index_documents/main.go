// index_documents 批量索引一个目录下的文档文件。
package main

import (
	"context"
	"flag"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"

	"EdgeRAG/backend/go/internal/config"
	"EdgeRAG/backend/go/internal/database/milvus"
	"EdgeRAG/backend/go/internal/embedding"
	"EdgeRAG/backend/go/internal/entities"
	"EdgeRAG/backend/go/internal/language"
	"EdgeRAG/backend/go/internal/llm"
	"EdgeRAG/backend/go/internal/rag_service/rag/storages/vectorstore"
	"EdgeRAG/backend/go/internal/rag_service/service"
	"EdgeRAG/backend/go/pkg/httpclient"
	"EdgeRAG/backend/go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dataDir := flag.String("data", "data", "待索引的文档目录")
	pattern := flag.String("pattern", "*", "文件名匹配模式,例如 *.txt")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init(logger.ParseLevel("info"))
		logger.New("index_documents").WithError(err).Fatal("加载配置失败")
	}
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	log := logger.New("index_documents")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("配置校验失败")
	}

	matcher, err := glob.Compile(*pattern)
	if err != nil {
		log.WithError(err).Fatal("非法的文件名匹配模式")
	}

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	milvusClient, err := milvus.NewClient(connectCtx, &cfg.Databases.Milvus)
	if err != nil {
		log.WithError(err).Fatal("连接 Milvus 失败")
	}
	defer milvusClient.Close()

	azureClient := httpclient.New(time.Duration(cfg.Language.Timeout)*time.Second, nil)
	redisTTL := time.Duration(cfg.Databases.Redis.TTL) * time.Second
	detector := language.NewAzureDetector(cfg.Language.Endpoint, cfg.Language.APIKey, azureClient, nil, redisTTL, logger.New("language"))
	extractor := entities.NewAzureExtractor(cfg.Language.Endpoint, cfg.Language.APIKey, cfg.Language.MinScore, azureClient, nil, redisTTL, logger.New("entities"))

	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		log.WithError(err).Fatal("创建 Embedding 客户端失败")
	}
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.WithError(err).Fatal("创建 LLM 客户端失败")
	}

	store := vectorstore.NewMilvusStore(milvusClient.Client)
	svc := service.New(cfg, detector, extractor, embedder, llmClient, store, nil)

	if err := svc.Setup(ctx); err != nil {
		log.WithError(err).Fatal("初始化向量集合失败")
	}

	var files, indexed, skipped int
	err = filepath.WalkDir(*dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matcher.Match(d.Name()) {
			return nil
		}
		files++

		outcome, err := svc.IndexFile(ctx, path)
		indexed += outcome.ChunksIndexed
		skipped += outcome.ChunksSkipped
		if err != nil {
			log.WithError(err).WithField("file", path).Error("索引文件失败")
			return nil
		}
		log.WithFields(map[string]interface{}{
			"file":    path,
			"total":   outcome.ChunksTotal,
			"indexed": outcome.ChunksIndexed,
			"skipped": outcome.ChunksSkipped,
		}).Info("文件已索引")
		return nil
	})
	if err != nil {
		log.WithError(err).Fatal("遍历文档目录失败")
	}

	log.WithFields(map[string]interface{}{
		"files":   files,
		"indexed": indexed,
		"skipped": skipped,
	}).Info("批量索引完成")
}
