package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var buf bytes.Buffer
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
