package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// SentenceChunker packs whole sentences into chunks of roughly chunkSize
// characters, carrying chunkOverlap trailing characters into the next chunk.
type SentenceChunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewSentenceChunker(chunkSize, chunkOverlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &SentenceChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into ordered chunks. Lengths are counted in runes.
// A sentence longer than the chunk size is emitted whole, never cut.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	var chunks []string
	var buf []rune
	for _, s := range sentences {
		sr := []rune(s)
		if len(buf) > 0 && len(buf)+len(sr) > c.chunkSize {
			chunk := strings.TrimSpace(string(buf))
			chunks = append(chunks, chunk)
			buf = append(buf[:0], c.overlapTail(chunk)...)
		}
		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, sr...)
	}
	if rest := strings.TrimSpace(string(buf)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// overlapTail returns the trailing chunkOverlap runes of chunk. A cut that
// lands on whitespace moves left so the seeded text never starts blank.
func (c *SentenceChunker) overlapTail(chunk string) []rune {
	r := []rune(chunk)
	if c.chunkOverlap == 0 {
		return nil
	}
	if len(r) <= c.chunkOverlap {
		return r
	}
	start := len(r) - c.chunkOverlap
	for start > 0 && unicode.IsSpace(r[start]) {
		start--
	}
	return r[start:]
}

// SplitSentences breaks text after '.', '!' or '?' followed by whitespace.
// Terminal punctuation stays with its sentence; blank pieces are dropped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	prev := 0
	for _, m := range sentenceBoundary.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[prev : m[0]+1]); s != "" {
			out = append(out, s)
		}
		prev = m[1]
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		out = append(out, s)
	}
	return out
}
