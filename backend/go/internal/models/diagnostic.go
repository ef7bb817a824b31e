package models

import "time"

// 诊断事件的阶段常量。降级路径必须发出可观测的信号，而不是静默吞掉。
const (
	StageLanguageDetect   = "language_detect"   // 语言识别阶段
	StageEntityExtract    = "entity_extract"    // 实体识别阶段
	StageEmbedding        = "embedding"         // 向量生成阶段
	StageVectorSearch     = "vector_search"     // 向量检索阶段
	StageCollectionAbsent = "collection_absent" // 集合不存在
)

// DiagnosticEvent 记录一次降级回退（例如语言识别失败回退到英语）。
type DiagnosticEvent struct {
	Stage     string    `json:"stage"`            // 发生降级的阶段
	Reason    string    `json:"reason"`           // 降级原因（通常是底层错误文本）
	Source    string    `json:"source,omitempty"` // 相关文档来源（如有）
	Language  Language  `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
