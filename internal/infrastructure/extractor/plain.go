package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func extractPlain(content []byte, path string) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("unsupported binary format: %s", path)
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("empty document: %s", path)
	}
	return text, nil
}
