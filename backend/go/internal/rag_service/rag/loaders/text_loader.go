package loaders

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// TextLoader 将纯文本文件按非空行加载为文档。
type TextLoader struct{}

func (l *TextLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var docs []*schema.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		docs = append(docs, &schema.Document{Text: line, Source: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return docs, nil
}
