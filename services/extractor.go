package services

import (
	"bytes"
	"fmt"

	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/logger"

	"github.com/ledongthuc/pdf"
)

// ExtractPages pulls the text out of a PDF, one segment per page in page
// order. Pages without extractable text (scans, pure images) yield an
// empty segment rather than an error; only a broken PDF container fails.
func ExtractPages(content []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrExtraction, err)
	}

	pageCount := reader.NumPage()
	pages := make([]string, 0, pageCount)

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from page", "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	return pages, nil
}
