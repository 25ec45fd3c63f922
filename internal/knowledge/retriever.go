package knowledge

import (
	"sort"
	"strings"

	"assistant/internal/embedding"
)

const (
	// DefaultTopK is used when a caller asks for k <= 0.
	DefaultTopK = 3
	// MaxKeywordResults caps SearchKeywords.
	MaxKeywordResults = 5
	// NoKnowledgeMessage is returned as context when the KnowledgeBase is empty.
	NoKnowledgeMessage = "No knowledge available: the service-shop knowledge base is empty."

	contextSeparator = "\n\n"
)

// Result is a scored chunk.
type Result struct {
	Chunk Chunk   `json:"-"`
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Rank scores every chunk against query and returns the best k, highest
// score first. Equal scores keep corpus order.
func (kb *KnowledgeBase) Rank(query string, k int) []Result {
	if len(kb.chunks) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultTopK
	}
	qv := embedding.Vectorize(query)
	results := make([]Result, len(kb.chunks))
	for i, ch := range kb.chunks {
		results[i] = Result{Chunk: ch, Index: ch.Index, Text: ch.Text, Score: embedding.Cosine(qv, ch.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// RetrieveRelevantContext joins the texts of the top k chunks with blank
// lines. It never fails; an empty KnowledgeBase yields NoKnowledgeMessage.
func (kb *KnowledgeBase) RetrieveRelevantContext(query string, k int) string {
	if len(kb.chunks) == 0 {
		return NoKnowledgeMessage
	}
	return JoinContext(kb.Rank(query, k))
}

// JoinContext joins ranked texts with blank lines, or returns
// NoKnowledgeMessage when there are none.
func JoinContext(results []Result) string {
	if len(results) == 0 {
		return NoKnowledgeMessage
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, contextSeparator)
}

// SearchKeywords returns up to MaxKeywordResults chunk texts containing
// query, case-insensitively, in corpus order. A blank query matches nothing.
func (kb *KnowledgeBase) SearchKeywords(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []string
	for _, ch := range kb.chunks {
		if strings.Contains(strings.ToLower(ch.Text), q) {
			out = append(out, ch.Text)
			if len(out) == MaxKeywordResults {
				break
			}
		}
	}
	return out
}
