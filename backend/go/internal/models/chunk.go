package models

// Language 表示系统支持的文档/查询语言。
type Language string

const (
	LanguageEnglish Language = "english" // 英语
	LanguageArabic  Language = "arabic"  // 阿拉伯语
	LanguageUnknown Language = "unknown" // 无法识别的语言
)

// Entity 表示从文本中识别出的一个命名实体。
type Entity struct {
	Text       string  `json:"text"`       // 实体文本
	Category   string  `json:"category"`   // 实体类别 (例如: "Organization", "Location")
	Confidence float64 `json:"confidence"` // 识别置信度 [0,1]
}

// IndexingOutcome 汇总一次文档索引调用的结果。
// 单个分块的失败只体现在计数中，不会让整个调用失败。
type IndexingOutcome struct {
	ChunksTotal   int `json:"chunks_total"`   // 切分出的分块总数
	ChunksIndexed int `json:"chunks_indexed"` // 成功写入向量库的分块数
	ChunksSkipped int `json:"chunks_skipped"` // 因嵌入失败等原因跳过的分块数
}

// GenerateOptions 控制回答生成时的采样参数。
type GenerateOptions struct {
	MaxLength         int     `json:"max_length"`
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// DefaultGenerateOptions 返回生成参数的默认值。
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		MaxLength:         512,
		Temperature:       0.9,
		TopK:              40,
		RepetitionPenalty: 1.0,
	}
}
