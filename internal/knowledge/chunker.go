package knowledge

import "strings"

// Chunker splits long documents into overlapping windows sized for
// embedding.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker applies the default 500/50 window when given
// non-positive values.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split cuts text into chunks of at most Size characters, preferring
// to end a chunk at a sentence boundary when one lands past the
// window's midpoint. Consecutive chunks overlap by Overlap characters
// so no sentence context is lost at a cut.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	textLen := len(text)
	start := 0

	for start < textLen {
		end := start + c.Size
		if end > textLen {
			end = textLen
		}

		if end < textLen {
			sentenceEnd := strings.LastIndex(text[start:end], ".")
			if sentenceEnd > c.Size/2 {
				end = start + sentenceEnd + 1
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == textLen {
			break
		}
		start = end - c.Overlap
		if start < 0 {
			start = 0
		}
	}

	return chunks
}
