// Package loaders turns files and web pages into documents ready for
// chunking.
package loaders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"EdgeRAG/backend/go/internal/rag_service/rag/interfaces"
)

// ForFile 根据扩展名选择合适的 Loader;扩展名不可识别时回退到内容嗅探。
func ForFile(path string) (interfaces.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return &TextLoader{}, nil
	case ".json", ".jsonl":
		return &JSONLoader{}, nil
	case ".csv":
		return &CSVLoader{}, nil
	case ".xlsx":
		return &XlsxLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}
	switch {
	case mtype.Is("application/json"):
		return &JSONLoader{}, nil
	case mtype.Is("text/csv"):
		return &CSVLoader{}, nil
	case mtype.Is("application/pdf"):
		return &PDFLoader{}, nil
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return &XlsxLoader{}, nil
	case strings.HasPrefix(mtype.String(), "text/"):
		return &TextLoader{}, nil
	}
	return nil, fmt.Errorf("unsupported file type %s for %s", mtype.String(), path)
}
