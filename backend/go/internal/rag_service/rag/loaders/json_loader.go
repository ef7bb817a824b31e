package loaders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// JSONLoader 加载形如 [{"text": "..."}] 的 JSON 数组,也支持 JSON Lines
// 格式(每行一个对象)。缺少 text 字段或 text 为空白的记录会被跳过。
type JSONLoader struct{}

type jsonRecord struct {
	Text string `json:"text"`
}

func (l *JSONLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []jsonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		// 不是数组时按 JSON Lines 解析。
		records, err = decodeRecordStream(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	var docs []*schema.Document
	for _, r := range records {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		docs = append(docs, &schema.Document{Text: r.Text, Source: path})
	}
	return docs, nil
}

// decodeRecordStream 逐个解码连续的 JSON 对象(JSON Lines)。
func decodeRecordStream(data []byte) ([]jsonRecord, error) {
	var records []jsonRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var r jsonRecord
		if err := dec.Decode(&r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
