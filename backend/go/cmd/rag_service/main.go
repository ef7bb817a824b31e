// rag_service 是双语检索问答服务的 HTTP 入口。
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"EdgeRAG/backend/go/internal/config"
	"EdgeRAG/backend/go/internal/database/kafka"
	"EdgeRAG/backend/go/internal/database/milvus"
	redisdb "EdgeRAG/backend/go/internal/database/redis"
	"EdgeRAG/backend/go/internal/embedding"
	"EdgeRAG/backend/go/internal/entities"
	"EdgeRAG/backend/go/internal/language"
	"EdgeRAG/backend/go/internal/llm"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/interfaces"
	"EdgeRAG/backend/go/internal/rag_service/rag/storages/vectorstore"
	"EdgeRAG/backend/go/internal/rag_service/service"
	"EdgeRAG/backend/go/pkg/circuitbreaker"
	"EdgeRAG/backend/go/pkg/httpclient"
	"EdgeRAG/backend/go/pkg/logger"
	"EdgeRAG/backend/go/pkg/ratelimiter"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	addr := flag.String("addr", ":8081", "HTTP 监听地址")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init(logger.ParseLevel("info"))
		logger.New("rag_service").WithError(err).Fatal("加载配置失败")
	}
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	log := logger.New("rag_service")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("配置校验失败")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		log.WithError(err).Fatal("连接 Milvus 失败")
	}
	defer milvusClient.Close()

	var redisClient *goredis.Client
	if cfg.Databases.Redis.Enabled {
		redisClient, err = redisdb.NewClient(ctx, &cfg.Databases.Redis)
		if err != nil {
			// 缓存是可选依赖,连接失败只降级不终止。
			log.WithError(err).Warn("连接 Redis 失败,继续运行但不使用共享缓存")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var diag interfaces.Diagnostics = interfaces.NoopDiagnostics{}
	if cfg.Databases.Kafka.Enabled {
		publisher := kafka.NewDiagnosticsPublisher(&cfg.Databases.Kafka)
		defer publisher.Close()
		diag = publisher
	}

	var breaker circuitbreaker.CircuitBreaker
	if cfg.Middleware.CircuitBreaker.Enabled {
		timeout, err := time.ParseDuration(cfg.Middleware.CircuitBreaker.Timeout)
		if err != nil {
			timeout = 30 * time.Second
		}
		breaker = circuitbreaker.New(
			cfg.Middleware.CircuitBreaker.FailureThreshold,
			cfg.Middleware.CircuitBreaker.SuccessThreshold,
			timeout,
		)
	}
	azureClient := httpclient.New(time.Duration(cfg.Language.Timeout)*time.Second, breaker)

	redisTTL := time.Duration(cfg.Databases.Redis.TTL) * time.Second
	detector := language.NewAzureDetector(cfg.Language.Endpoint, cfg.Language.APIKey, azureClient, redisClient, redisTTL, logger.New("language"))
	extractor := entities.NewAzureExtractor(cfg.Language.Endpoint, cfg.Language.APIKey, cfg.Language.MinScore, azureClient, redisClient, redisTTL, logger.New("entities"))

	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		log.WithError(err).Fatal("创建 Embedding 客户端失败")
	}
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.WithError(err).Fatal("创建 LLM 客户端失败")
	}

	store := vectorstore.NewMilvusStore(milvusClient.Client)
	svc := service.New(cfg, detector, extractor, embedder, llmClient, store, diag)

	if err := svc.Setup(ctx); err != nil {
		log.WithError(err).Fatal("初始化向量集合失败")
	}

	router := buildRouter(cfg, svc, milvusClient, redisClient)
	server := &http.Server{Addr: *addr, Handler: router}

	go func() {
		log.WithField("addr", *addr).Info("RAG 服务已启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP 服务异常退出")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到退出信号,开始优雅关闭")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("优雅关闭失败")
	}
	log.Info("服务已退出")
}

type queryRequest struct {
	Query       string   `json:"query" binding:"required"`
	MaxLength   int      `json:"max_length"`
	Temperature *float64 `json:"temperature"`
}

type indexRequest struct {
	Text   string `json:"text"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

func buildRouter(cfg *config.AppConfig, svc *service.Service, milvusClient *milvus.MilvusClient, redisClient *goredis.Client) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	if cfg.Middleware.RateLimiter.Enabled {
		bucket := ratelimiter.NewTokenBucket(cfg.Middleware.RateLimiter.Rate, cfg.Middleware.RateLimiter.Capacity)
		router.Use(func(c *gin.Context) {
			if !bucket.Allow() {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
				return
			}
			c.Next()
		})
	}

	router.GET("/healthz", func(c *gin.Context) {
		if err := milvusClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "milvus": err.Error()})
			return
		}
		status := gin.H{"status": "ok"}
		if redisClient != nil {
			if err := redisdb.HealthCheck(c.Request.Context(), redisClient); err != nil {
				status["redis"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, status)
	})

	api := router.Group("/api/v1/rag")
	api.POST("/query", func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		opts := models.DefaultGenerateOptions()
		if req.MaxLength > 0 {
			opts.MaxLength = req.MaxLength
		}
		if req.Temperature != nil {
			opts.Temperature = *req.Temperature
		}

		answer, err := svc.Query(c.Request.Context(), req.Query, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, answer)
	})

	api.POST("/search", func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results, lang, err := svc.Retrieve(c.Request.Context(), req.Query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"language": lang, "results": results})
	})

	api.GET("/chunks", func(c *gin.Context) {
		lang := models.Language(c.DefaultQuery("language", string(models.LanguageEnglish)))
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		chunks, err := svc.Inspect(c.Request.Context(), lang, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks": chunks})
	})

	api.POST("/index", func(c *gin.Context) {
		var req indexRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var outcome models.IndexingOutcome
		var err error
		switch {
		case req.Text != "":
			source := req.Source
			if source == "" {
				source = "api"
			}
			outcome, err = svc.IndexText(c.Request.Context(), req.Text, source)
		case req.URL != "":
			outcome, err = svc.IndexURL(c.Request.Context(), req.URL)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "either text or url is required"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "outcome": outcome})
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	return router
}
