package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"EdgeRAG/backend/go/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于 Ollama API 的 LLM 客户端。
type Ollama struct {
	client *olla.Client // Ollama 客户端实例。
}

// NewOllama 创建一个新的 Ollama 客户端。
// baseURL 为空时默认为 "http://localhost:11434"。
func NewOllama(baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	// 创建一个带有超时设置的 HTTP 客户端。
	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{client: olla.NewClient(parsedURL, hc)}, nil
}

// Chat 使用 Ollama API 生成回答。
func (o *Ollama) Chat(ctx context.Context, model string, messages []ChatMessage, opts models.GenerateOptions) (string, error) {
	ollaMessages := make([]olla.Message, len(messages))
	for i, m := range messages {
		ollaMessages[i] = olla.Message{Role: m.Role, Content: m.Content}
	}

	stream := false
	var sb strings.Builder

	err := o.client.Chat(ctx, &olla.ChatRequest{
		Model:    model,
		Messages: ollaMessages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature":    opts.Temperature,
			"top_k":          opts.TopK,
			"num_predict":    opts.MaxLength,
			"repeat_penalty": opts.RepetitionPenalty,
		},
	}, func(resp olla.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content with ollama: %w", err)
	}

	return sb.String(), nil
}
