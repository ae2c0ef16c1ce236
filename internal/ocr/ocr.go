package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Result is what an extractor produces for one file: the recognized text
// and a confidence in [0,1].
type Result struct {
	Text       string
	Confidence float64
}

// Extractor turns an uploaded file into text. Implementations may block on
// network or disk; the pipeline calls them one file at a time.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, fileName string) (Result, error)
}

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// normalizeMimeType cleans a declared mime type and resolves the generic
// application/zip that browsers report for OOXML files.
func normalizeMimeType(mimeType, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" {
		return clean
	}
	if looksLikeDOCX(data) {
		return mimeDOCX
	}
	if strings.HasSuffix(strings.ToLower(fileName), ".docx") {
		return mimeDOCX
	}
	return clean
}

// ErrUnsupported wraps the mime type an extractor cannot handle.
func errUnsupported(mimeType string) error {
	return fmt.Errorf("unsupported mime type: %s", mimeType)
}
