package loaders

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// CSVLoader 加载带表头的 CSV 文件,取 text 列作为文档内容。
// 格式错误或 text 为空白的行会被跳过,不中断整个文件。
type CSVLoader struct{}

func (l *CSVLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	textCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "text") {
			textCol = i
			break
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("%s has no text column", path)
	}

	var docs []*schema.Document
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// 跳过坏行,继续读取。
			continue
		}
		if textCol >= len(record) {
			continue
		}
		text := strings.TrimSpace(record[textCol])
		if text == "" {
			continue
		}
		docs = append(docs, &schema.Document{Text: text, Source: path})
	}
	return docs, nil
}
