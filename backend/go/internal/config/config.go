package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MilvusConfig 定义了 Milvus 向量库的连接配置。
type MilvusConfig struct {
	Address string `yaml:"address"` // Milvus 服务地址
}

// RedisConfig 定义了 Redis 缓存的连接配置。缓存是可选的二级缓存。
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`  // 是否启用 Redis 缓存
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
	TTL      int    `yaml:"ttl"`      // 缓存条目的有效期（秒）
}

// KafkaConfig 定义了诊断事件发布所用的 Kafka 连接配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"` // 是否发布诊断事件
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // 诊断事件主题
}

// DatabaseConfigs 包含所有外部存储的配置。
type DatabaseConfigs struct {
	Milvus MilvusConfig `yaml:"milvus"` // 向量库配置
	Redis  RedisConfig  `yaml:"redis"`  // 缓存配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // 诊断事件配置
}

// LanguageServiceConfig 定义了语言识别与实体识别服务的访问配置。
type LanguageServiceConfig struct {
	Endpoint string  `yaml:"endpoint"` // 服务基准地址 (Azure 文本分析兼容)
	APIKey   string  `yaml:"apiKey"`   // 订阅密钥，可用环境变量 AZURE_LANGUAGE_KEY 覆盖
	Timeout  int     `yaml:"timeout"`  // 单次调用超时（秒）
	MinScore float64 `yaml:"minScore"` // 实体置信度阈值，低于该值的实体被丢弃
}

// OllamaConfig 包含 Ollama 服务的访问配置。
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"` // Ollama 服务地址，为空时使用默认值
	Model   string `yaml:"model"`   // 模型名称
}

// OpenAIConfig 包含 OpenAI 兼容服务的访问配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	BaseURL string `yaml:"baseURL"` // 服务地址，为空时使用官方地址
	Model   string `yaml:"model"`   // 模型名称
}

// EmbeddingConfig 包含不同 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // Embedding 提供商 ("ollama" 或 "openai")
	Ollama   OllamaConfig `yaml:"ollama"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// LLMConfig 包含不同 LLM 提供商的配置。
// 英语和阿拉伯语使用不同的生成模型，由查询语言决定。
type LLMConfig struct {
	Provider     string       `yaml:"provider"`     // LLM 提供商 ("ollama" 或 "openai")
	Ollama       OllamaConfig `yaml:"ollama"`       // 仅使用 BaseURL
	OpenAI       OpenAIConfig `yaml:"openai"`       // 仅使用 APIKey/BaseURL
	EnglishModel string       `yaml:"englishModel"` // 英语查询使用的模型
	ArabicModel  string       `yaml:"arabicModel"`  // 阿拉伯语查询使用的模型
}

// RetrievalConfig 定义了混合检索与索引的策略参数。
type RetrievalConfig struct {
	ChunkSize            int     `yaml:"chunkSize"`            // 分块最大字符数
	BatchSize            int     `yaml:"batchSize"`            // 向量库批量写入大小
	VectorDim            int     `yaml:"vectorDim"`            // 集合的固定向量维度
	CandidateLimit       int     `yaml:"candidateLimit"`       // 稠密检索候选数量
	TopK                 int     `yaml:"topK"`                 // 最终返回的结果数量
	EnglishCollection    string  `yaml:"englishCollection"`    // 英语集合名称
	ArabicCollection     string  `yaml:"arabicCollection"`     // 阿拉伯语集合名称
	EnglishLexicalWeight float64 `yaml:"englishLexicalWeight"` // 英语词法得分权重
	ArabicLexicalWeight  float64 `yaml:"arabicLexicalWeight"`  // 阿拉伯语词法得分权重（高于英语）
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// RateLimiterConfig 定义了查询接口限流器的配置（令牌桶算法）。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了外部协作服务调用的熔断器配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo               `yaml:"app"`        // 应用程序信息
	Logger     LoggerConfig          `yaml:"logger"`     // 日志记录器配置
	Language   LanguageServiceConfig `yaml:"language"`   // 语言/实体识别服务配置
	Embedding  EmbeddingConfig       `yaml:"embedding"`  // Embedding 配置部分
	LLM        LLMConfig             `yaml:"llm"`        // LLM 配置部分
	Retrieval  RetrievalConfig       `yaml:"retrieval"`  // 检索与索引策略
	Databases  DatabaseConfigs       `yaml:"databases"`  // 外部存储配置
	Middleware MiddlewareConfig      `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 凭据类字段允许用环境变量覆盖，缺省的策略参数在这里补全默认值。
func LoadConfig(path string) (*AppConfig, error) {
	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	// 将 YAML 内容解析到 cfg 结构体中。
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnvOverrides 用环境变量覆盖凭据类配置，避免把密钥写进配置文件。
func (c *AppConfig) applyEnvOverrides() {
	if v := os.Getenv("AZURE_LANGUAGE_ENDPOINT"); v != "" {
		c.Language.Endpoint = v
	}
	if v := os.Getenv("AZURE_LANGUAGE_KEY"); v != "" {
		c.Language.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Embedding.OpenAI.APIKey == "" {
			c.Embedding.OpenAI.APIKey = v
		}
		if c.LLM.OpenAI.APIKey == "" {
			c.LLM.OpenAI.APIKey = v
		}
	}
}

// applyDefaults 补全未配置的策略参数。
func (c *AppConfig) applyDefaults() {
	if c.Retrieval.ChunkSize <= 0 {
		c.Retrieval.ChunkSize = 200
	}
	if c.Retrieval.BatchSize <= 0 {
		c.Retrieval.BatchSize = 10
	}
	if c.Retrieval.VectorDim <= 0 {
		c.Retrieval.VectorDim = 1024
	}
	if c.Retrieval.CandidateLimit <= 0 {
		c.Retrieval.CandidateLimit = 20
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 10
	}
	if c.Retrieval.EnglishCollection == "" {
		c.Retrieval.EnglishCollection = "rag_docs_en"
	}
	if c.Retrieval.ArabicCollection == "" {
		c.Retrieval.ArabicCollection = "rag_docs_ar"
	}
	if c.Retrieval.EnglishLexicalWeight == 0 {
		c.Retrieval.EnglishLexicalWeight = 0.5
	}
	if c.Retrieval.ArabicLexicalWeight == 0 {
		c.Retrieval.ArabicLexicalWeight = 1.2
	}
	if c.Language.Timeout <= 0 {
		c.Language.Timeout = 5
	}
	if c.Language.MinScore == 0 {
		c.Language.MinScore = 0.5
	}
	if c.Databases.Redis.TTL <= 0 {
		c.Databases.Redis.TTL = 3600
	}
	if c.Databases.Kafka.Topic == "" {
		c.Databases.Kafka.Topic = "rag_diagnostics"
	}
	if c.LLM.EnglishModel == "" {
		c.LLM.EnglishModel = "qwen2.5:0.5b"
	}
	if c.LLM.ArabicModel == "" {
		c.LLM.ArabicModel = "gemma2:2b"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.Embedding.Ollama.Model == "" {
		c.Embedding.Ollama.Model = "bge-m3"
	}
}

// Validate 检查部署必需的配置项。缺失协作服务地址属于部署错误，
// 必须在启动时立即失败，而不是运行中静默降级。
func (c *AppConfig) Validate() error {
	if c.Databases.Milvus.Address == "" {
		return fmt.Errorf("配置缺失: databases.milvus.address")
	}
	if c.Language.Endpoint == "" {
		return fmt.Errorf("配置缺失: language.endpoint")
	}
	switch c.Embedding.Provider {
	case "ollama":
	case "openai":
		if c.Embedding.OpenAI.APIKey == "" {
			return fmt.Errorf("配置缺失: embedding.openai.apiKey")
		}
	default:
		return fmt.Errorf("不支持的 Embedding 提供商: %s", c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "ollama":
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("配置缺失: llm.openai.apiKey")
		}
	default:
		return fmt.Errorf("不支持的 LLM 提供商: %s", c.LLM.Provider)
	}
	if c.Databases.Redis.Enabled && c.Databases.Redis.Address == "" {
		return fmt.Errorf("配置缺失: databases.redis.address")
	}
	if c.Databases.Kafka.Enabled && len(c.Databases.Kafka.Brokers) == 0 {
		return fmt.Errorf("配置缺失: databases.kafka.brokers")
	}
	return nil
}
