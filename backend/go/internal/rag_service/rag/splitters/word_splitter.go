// Package splitters implements text chunking for the indexing pipeline.
package splitters

import (
	"iter"
	"strings"

	"github.com/google/uuid"

	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// DefaultChunkSize 是单个分块的最大字符数。
const DefaultChunkSize = 200

// Chunks returns a lazy sequence of word-wrapped segments of text, each at
// most maxChunkSize characters (measured in runes). Words are kept whole;
// only a single word longer than maxChunkSize is split mid-word. The
// sequence is restartable: ranging over it twice yields the same segments.
func Chunks(text string, maxChunkSize int) iter.Seq[string] {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	return func(yield func(string) bool) {
		var current strings.Builder
		currentLen := 0
		for _, word := range strings.Fields(text) {
			runes := []rune(word)
			// 超长单词单独切分，不与其他词合并。
			if len(runes) > maxChunkSize {
				if currentLen > 0 {
					if !yield(current.String()) {
						return
					}
					current.Reset()
					currentLen = 0
				}
				for len(runes) > maxChunkSize {
					if !yield(string(runes[:maxChunkSize])) {
						return
					}
					runes = runes[maxChunkSize:]
				}
				if len(runes) > 0 {
					current.WriteString(string(runes))
					currentLen = len(runes)
				}
				continue
			}
			// +1 为单词之间的空格。
			if currentLen > 0 && currentLen+1+len(runes) > maxChunkSize {
				if !yield(current.String()) {
					return
				}
				current.Reset()
				currentLen = 0
			}
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(word)
			currentLen += len(runes)
		}
		if currentLen > 0 {
			yield(current.String())
		}
	}
}

// WordSplitter materializes Chunks into schema.Chunk values with stable
// per-document indices.
type WordSplitter struct {
	ChunkSize int
}

// NewWordSplitter 创建一个 WordSplitter。chunkSize <= 0 时使用默认值。
func NewWordSplitter(chunkSize int) *WordSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &WordSplitter{ChunkSize: chunkSize}
}

// Split 将文本切分为带有 ID 和位置信息的分块列表。空白文本返回 nil。
func (s *WordSplitter) Split(text, source string) []*schema.Chunk {
	var segments []string
	for seg := range Chunks(text, s.ChunkSize) {
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil
	}

	chunks := make([]*schema.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = &schema.Chunk{
			ID:          uuid.NewString(),
			Text:        seg,
			Source:      source,
			ChunkIndex:  i,
			TotalChunks: len(segments),
		}
	}
	return chunks
}
