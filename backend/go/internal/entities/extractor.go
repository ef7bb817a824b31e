package entities

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"EdgeRAG/backend/go/internal/language"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/pkg/httpclient"
	"EdgeRAG/backend/go/pkg/logger"
	"EdgeRAG/backend/go/pkg/util"

	"github.com/go-redis/redis/v8"
)

// 实体识别结果的缓存容量。
const cacheSize = 1000

// Extractor 从文本中识别命名实体。
type Extractor interface {
	// Extract 返回文本中的命名实体。远端服务不可用时返回空集合并附带非 nil
	// 的 error，检索与索引据此降级为向量+词法两路信号。
	Extract(ctx context.Context, text string, lang models.Language) ([]models.Entity, error)
}

// AzureExtractor 通过 Azure 文本分析兼容接口识别实体，带两级缓存。
// 置信度低于阈值的实体在这里被丢弃，不进入后续打分。
type AzureExtractor struct {
	endpoint string
	apiKey   string
	minScore float64
	client   *httpclient.Client
	cache    *util.LRUCache[string, []models.Entity]
	redis    *redis.Client // 可选的共享二级缓存，可为 nil
	redisTTL time.Duration
	log      *logger.Logger
}

// NewAzureExtractor 创建一个实体识别客户端。redisClient 可为 nil。
func NewAzureExtractor(endpoint, apiKey string, minScore float64, client *httpclient.Client, redisClient *redis.Client, redisTTL time.Duration, log *logger.Logger) *AzureExtractor {
	cache, _ := util.NewLRU[string, []models.Entity](cacheSize, 0)
	return &AzureExtractor{
		endpoint: endpoint,
		apiKey:   apiKey,
		minScore: minScore,
		client:   client,
		cache:    cache,
		redis:    redisClient,
		redisTTL: redisTTL,
		log:      log,
	}
}

type extractRequest struct {
	Documents []extractDocument `json:"documents"`
}

type extractDocument struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type extractResponse struct {
	Documents []struct {
		Entities []struct {
			Text            string  `json:"text"`
			Category        string  `json:"category"`
			ConfidenceScore float64 `json:"confidenceScore"`
		} `json:"entities"`
	} `json:"documents"`
}

// Extract 实现 Extractor 接口。
func (e *AzureExtractor) Extract(ctx context.Context, text string, lang models.Language) ([]models.Entity, error) {
	if text == "" {
		return nil, nil
	}

	key := fmt.Sprintf("ner:%s:%x", language.ISO6391(lang), sha256.Sum256([]byte(text)))
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}
	if e.redis != nil {
		if raw, err := e.redis.Get(ctx, key).Result(); err == nil {
			var cached []models.Entity
			if json.Unmarshal([]byte(raw), &cached) == nil {
				e.cache.Put(key, cached)
				return cached, nil
			}
		}
	}

	result, err := e.extractRemote(ctx, text, lang)
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	e.cache.Put(key, result)
	if e.redis != nil {
		if raw, err := json.Marshal(result); err == nil {
			e.redis.Set(ctx, key, raw, e.redisTTL)
		}
	}
	return result, nil
}

func (e *AzureExtractor) extractRemote(ctx context.Context, text string, lang models.Language) ([]models.Entity, error) {
	url := e.endpoint + "/text/analytics/v3.1/entities/recognition/general"
	req := extractRequest{Documents: []extractDocument{{
		ID:       "1",
		Text:     text,
		Language: language.ISO6391(lang),
	}}}
	headers := map[string]string{"Ocp-Apim-Subscription-Key": e.apiKey}

	var resp extractResponse
	if err := e.client.PostJSON(ctx, url, headers, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Documents) == 0 {
		return nil, nil
	}

	var result []models.Entity
	for _, ent := range resp.Documents[0].Entities {
		if ent.ConfidenceScore > e.minScore {
			result = append(result, models.Entity{
				Text:       ent.Text,
				Category:   ent.Category,
				Confidence: ent.ConfidenceScore,
			})
		}
	}
	return result, nil
}

// GroupByCategory 把实体列表整理为 类别→实体文本集合 的映射，
// 这是分块 payload 与查询打分统一使用的形态。
func GroupByCategory(ents []models.Entity) map[string][]string {
	if len(ents) == 0 {
		return map[string][]string{}
	}
	grouped := make(map[string][]string)
	for _, ent := range ents {
		grouped[ent.Category] = append(grouped[ent.Category], ent.Text)
	}
	return grouped
}
