package embedding

// Normalize 把嵌入向量调整为集合的固定维度：过短时在尾部补零，
// 过长时截断前缀，绝不拒绝。不同模型的输出维度可能与集合配置不一致，
// 这是既定的兼容策略。
func Normalize(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
