// Package knowledge holds the immutable chunked corpus and ranks it against queries.
package knowledge

import (
	"errors"
	"fmt"
	"os"

	"assistant/internal/domain"
	"assistant/internal/embedding"
)

// ErrEmptyCorpus is returned by Load when the corpus file yields no chunks.
var ErrEmptyCorpus = errors.New("corpus produced no chunks")

// Chunk is one retrieval unit. Index is its position in the KnowledgeBase.
type Chunk struct {
	Index  int
	Text   string
	Vector embedding.Vector
}

// KnowledgeBase is built once and read-only afterwards, so it is safe for
// concurrent readers without locking. An empty KnowledgeBase is valid.
type KnowledgeBase struct {
	chunks []Chunk
}

// Build vectorizes texts in order.
func Build(texts []string) *KnowledgeBase {
	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Text:   t,
			Vector: embedding.Vectorize(t),
		})
	}
	return &KnowledgeBase{chunks: chunks}
}

// Empty returns a KnowledgeBase with no chunks.
func Empty() *KnowledgeBase { return &KnowledgeBase{} }

// Load reads the corpus at path and chunks it. On any failure it still
// returns a usable empty KnowledgeBase alongside the error.
func Load(path string, chunker domain.Chunker) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("read corpus %s: %w", path, err)
	}
	texts := chunker.Chunk(string(data))
	if len(texts) == 0 {
		return Empty(), fmt.Errorf("corpus %s: %w", path, ErrEmptyCorpus)
	}
	return Build(texts), nil
}

// Len returns the number of chunks.
func (kb *KnowledgeBase) Len() int { return len(kb.chunks) }

// Chunks returns a copy of the chunk list in corpus order.
func (kb *KnowledgeBase) Chunks() []Chunk {
	out := make([]Chunk, len(kb.chunks))
	copy(out, kb.chunks)
	return out
}

// Text returns every chunk joined by blank lines; used for summaries.
func (kb *KnowledgeBase) Text() string {
	var n int
	for _, c := range kb.chunks {
		n += len(c.Text) + 2
	}
	buf := make([]byte, 0, n)
	for i, c := range kb.chunks {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, c.Text...)
	}
	return string(buf)
}
