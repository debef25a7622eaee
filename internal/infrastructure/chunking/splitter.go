// Package chunking splits extracted text into overlapping rune
// windows sized for embedding.
package chunking

import (
	"strings"
	"unicode"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split cuts text into chunks of at most ChunkSize runes, each sharing
// Overlap runes with its predecessor. Cuts prefer the nearest trailing
// whitespace so words stay whole where the text has any.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToWhitespace(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = start + step
		}
		start = next
	}
	return out
}

// snapToWhitespace pulls the cut point back to the last whitespace in
// the window's final quarter, if there is one.
func snapToWhitespace(runes []rune, start, end int) int {
	limit := end - (end-start)/4
	for i := end - 1; i > limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}
