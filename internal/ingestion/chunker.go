package ingestion

import (
	"strconv"
	"strings"

	"github.com/finlearn/finlearn-backend/internal/domain"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Separator priority: paragraph break, line break, sentence boundary, word
// boundary, then single characters as the last resort.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits documents into overlapping windows sized for embedding.
// Splitting prefers the coarsest separator and only falls back to finer ones
// for segments that still exceed the chunk size. Overlap is exact: each chunk
// after the first starts with the trailing overlap runes of its predecessor.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits every document and tags each piece with its parent metadata
// plus a per-document chunk index. Empty input yields empty output.
func (c *Chunker) Chunk(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		pieces := c.SplitText(doc.Text)
		for i, piece := range pieces {
			meta := domain.CloneMetadata(doc.Metadata)
			meta[domain.MetaChunk] = strconv.Itoa(i)
			out = append(out, domain.Document{Text: piece, Metadata: meta})
		}
	}
	return out
}

// SplitText splits raw text into chunks of at most c.size runes.
func (c *Chunker) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	segments := splitRecursive(text, c.size, chunkSeparators)

	var chunks []string
	var current []rune
	for _, seg := range segments {
		segRunes := []rune(seg)
		if len(current)+len(segRunes) > c.size && len(current) > 0 {
			chunks = append(chunks, string(current))
			// Carry as much overlap as fits alongside the next segment.
			carry := c.overlap
			if carry > c.size-len(segRunes) {
				carry = c.size - len(segRunes)
			}
			current = tail(current, carry)
		}
		current = append(current, segRunes...)
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}
	return chunks
}

// splitRecursive cuts text into segments no longer than size runes, trying
// the coarsest separator first. Segments keep their separators so that
// concatenating them reproduces the input exactly.
func splitRecursive(text string, size int, separators []string) []string {
	if len([]rune(text)) <= size {
		return []string{text}
	}
	if len(separators) == 0 {
		return splitRunes(text, size)
	}

	sep := separators[0]
	rest := separators[1:]
	if sep == "" {
		return splitRunes(text, size)
	}

	parts := splitKeepSeparator(text, sep)
	if len(parts) == 1 {
		return splitRecursive(text, size, rest)
	}

	var out []string
	for _, part := range parts {
		if len([]rune(part)) <= size {
			out = append(out, part)
			continue
		}
		out = append(out, splitRecursive(part, size, rest)...)
	}
	return out
}

// splitKeepSeparator splits text on sep, appending sep to every piece except
// the last so no characters are lost.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitRunes(text string, size int) []string {
	r := []rune(text)
	out := make([]string, 0, len(r)/size+1)
	for start := 0; start < len(r); start += size {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
	}
	return out
}

func tail(r []rune, n int) []rune {
	if n <= 0 || len(r) == 0 {
		return nil
	}
	if n >= len(r) {
		n = len(r)
	}
	out := make([]rune, n)
	copy(out, r[len(r)-n:])
	return out
}
