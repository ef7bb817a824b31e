package loaders

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
)

// XlsxLoader 将 Excel 工作簿的每个工作表渲染为一篇 Markdown 表格文档,
// 保留表格的行列结构供检索时使用。
type XlsxLoader struct{}

func (l *XlsxLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var docs []*schema.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheet, path, err)
		}
		text := sheetToMarkdown(sheet, rows)
		if text == "" {
			continue
		}
		docs = append(docs, &schema.Document{
			Text:   text,
			Source: fmt.Sprintf("%s#%s", path, sheet),
		})
	}
	return docs, nil
}

func sheetToMarkdown(sheet string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## ")
	sb.WriteString(sheet)
	sb.WriteString("\n\n")
	for i, row := range rows {
		sb.WriteString("| ")
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString(" |\n")
		if i == 0 {
			sb.WriteString("|")
			sb.WriteString(strings.Repeat(" --- |", len(row)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
