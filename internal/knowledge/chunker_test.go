package knowledge

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := NewChunker(500, 50)
	chunks := c.Split("A short note about breathing.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitRespectsSize(t *testing.T) {
	c := NewChunker(500, 50)
	text := strings.Repeat("word ", 400) // 2000 chars, no periods
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 500 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(chunk))
		}
	}
}

func TestSplitSnapsToSentenceBoundary(t *testing.T) {
	c := NewChunker(100, 10)
	// A period lands past the midpoint of the first window.
	text := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 100)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("expected first chunk to end at sentence boundary, got %q", chunks[0])
	}
}

func TestSplitIgnoresEarlyPeriod(t *testing.T) {
	c := NewChunker(100, 10)
	// Only period sits before the midpoint, so the cut stays at size.
	text := strings.Repeat("a", 20) + ". " + strings.Repeat("b", 200)
	chunks := c.Split(text)
	if len(chunks[0]) != 100 {
		t.Errorf("expected full-size first chunk, got %d chars", len(chunks[0]))
	}
}

func TestSplitOverlap(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("x", 250)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The tail of chunk 0 reappears at the head of chunk 1.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Error("expected consecutive chunks to overlap")
	}
}

func TestSplitTerminates(t *testing.T) {
	c := NewChunker(100, 50)
	// Overlap pushes start backwards at the tail; the split must still
	// finish and not duplicate the last chunk forever.
	chunks := c.Split(strings.Repeat("y", 130))
	if len(chunks) > 3 {
		t.Fatalf("expected a small chunk count, got %d", len(chunks))
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.Size != 500 || c.Overlap != 50 {
		t.Errorf("expected 500/50 defaults, got %d/%d", c.Size, c.Overlap)
	}
	// Overlap equal to size would never advance.
	c = NewChunker(40, 40)
	if c.Overlap >= c.Size {
		t.Errorf("overlap %d must be below size %d", c.Overlap, c.Size)
	}
}
