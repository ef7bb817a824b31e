package llm

import (
	"context"
	"fmt"

	"EdgeRAG/backend/go/internal/config"
	"EdgeRAG/backend/go/internal/models"
)

// 对话消息的角色常量。
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage 表示对话中的一条消息。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// 模型名称由调用方按查询语言选择，而不是在客户端创建时绑定。
type LLM interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, opts models.GenerateOptions) (string, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.Ollama.BaseURL)
	case "openai":
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	default:
		return nil, fmt.Errorf("不支持的 LLM 提供商: %s", cfg.Provider)
	}
}
