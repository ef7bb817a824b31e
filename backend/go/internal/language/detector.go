package language

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/pkg/httpclient"
	"EdgeRAG/backend/go/pkg/logger"
	"EdgeRAG/backend/go/pkg/util"

	"github.com/go-redis/redis/v8"
)

// 语言识别结果的缓存容量，与远端服务的调用成本相比可以放得很大。
const cacheSize = 1000

// 远端识别只取文本前 500 个字符，足以判定语言且控制请求体大小。
const detectPrefixLen = 500

// Detector 判定一段文本的语言。
type Detector interface {
	// Detect 返回文本的语言。远端服务不可用时返回脚本比例启发式的结果，
	// 并附带非 nil 的 error，调用方据此记录降级信号。
	Detect(ctx context.Context, text string) (models.Language, error)
}

// AzureDetector 通过 Azure 文本分析兼容接口识别语言，带两级缓存。
type AzureDetector struct {
	endpoint string
	apiKey   string
	client   *httpclient.Client
	cache    *util.LRUCache[string, models.Language]
	redis    *redis.Client // 可选的共享二级缓存，可为 nil
	redisTTL time.Duration
	log      *logger.Logger
}

// NewAzureDetector 创建一个语言识别客户端。redisClient 可为 nil。
func NewAzureDetector(endpoint, apiKey string, client *httpclient.Client, redisClient *redis.Client, redisTTL time.Duration, log *logger.Logger) *AzureDetector {
	cache, _ := util.NewLRU[string, models.Language](cacheSize, 0)
	return &AzureDetector{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		cache:    cache,
		redis:    redisClient,
		redisTTL: redisTTL,
		log:      log,
	}
}

type detectRequest struct {
	Documents []detectDocument `json:"documents"`
}

type detectDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type detectResponse struct {
	Documents []struct {
		DetectedLanguage struct {
			ISO6391Name string `json:"iso6391Name"`
		} `json:"detectedLanguage"`
	} `json:"documents"`
}

// Detect 实现 Detector 接口。
func (d *AzureDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	if isBlank(text) {
		return models.LanguageUnknown, nil
	}

	key := cacheKey("lang", text)
	if lang, ok := d.cache.Get(key); ok {
		return lang, nil
	}
	if d.redis != nil {
		if cached, err := d.redis.Get(ctx, key).Result(); err == nil {
			lang := models.Language(cached)
			d.cache.Put(key, lang)
			return lang, nil
		}
	}

	lang, err := d.detectRemote(ctx, text)
	if err != nil {
		// 远端失败时回退到脚本比例启发式；调用方负责记录降级信号。
		return HeuristicDetect(text), fmt.Errorf("language detection failed: %w", err)
	}

	d.cache.Put(key, lang)
	if d.redis != nil {
		d.redis.Set(ctx, key, string(lang), d.redisTTL)
	}
	return lang, nil
}

func (d *AzureDetector) detectRemote(ctx context.Context, text string) (models.Language, error) {
	// 按字符截断,避免把多字节字符切成非法 UTF-8。
	sample := text
	if runes := []rune(sample); len(runes) > detectPrefixLen {
		sample = string(runes[:detectPrefixLen])
	}

	url := d.endpoint + "/text/analytics/v3.1/languages"
	req := detectRequest{Documents: []detectDocument{{ID: "1", Text: sample}}}
	headers := map[string]string{"Ocp-Apim-Subscription-Key": d.apiKey}

	var resp detectResponse
	if err := d.client.PostJSON(ctx, url, headers, req, &resp); err != nil {
		return models.LanguageUnknown, err
	}
	if len(resp.Documents) == 0 {
		return models.LanguageUnknown, fmt.Errorf("empty detection response")
	}

	switch resp.Documents[0].DetectedLanguage.ISO6391Name {
	case "ar":
		return models.LanguageArabic, nil
	case "en":
		return models.LanguageEnglish, nil
	default:
		return models.LanguageUnknown, nil
	}
}

// HeuristicDetect 按阿拉伯字符占比判定语言，用于远端服务不可达时的兜底。
// 阿拉伯语 Unicode 基本区间为 U+0600..U+06FF。
func HeuristicDetect(text string) models.Language {
	runes := []rune(text)
	if len(runes) == 0 {
		return models.LanguageUnknown
	}
	arabic := 0
	for _, r := range runes {
		if r >= 0x0600 && r <= 0x06FF {
			arabic++
		}
	}
	if float64(arabic) > float64(len(runes))*0.5 {
		return models.LanguageArabic
	}
	return models.LanguageEnglish
}

// ISO6391 返回语言对应的双字母代码，unknown 按英语处理。
func ISO6391(lang models.Language) string {
	if lang == models.LanguageArabic {
		return "ar"
	}
	return "en"
}

func cacheKey(prefix, text string) string {
	return fmt.Sprintf("%s:%x", prefix, sha256.Sum256([]byte(text)))
}

func isBlank(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
