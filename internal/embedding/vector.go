package embedding

import (
	"math"
	"strings"
	"unicode"
)

// minTokenLen is the shortest token kept; shorter ones are treated as noise.
const minTokenLen = 3

// Vector is a bag-of-words term-frequency vector.
type Vector map[string]int

// Tokens lowercases text, drops every rune that is not [a-z0-9] or
// whitespace, splits on whitespace and discards tokens shorter than three runes.
func Tokens(text string) []string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteByte(' ')
		}
	}
	fields := strings.Fields(sb.String())
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// Vectorize counts the tokens of text.
func Vectorize(text string) Vector {
	v := make(Vector)
	for _, tok := range Tokens(text) {
		v[tok]++
	}
	return v
}

// Magnitude is the Euclidean norm of v.
func (v Vector) Magnitude() float64 {
	sum := 0.0
	for _, n := range v {
		sum += float64(n) * float64(n)
	}
	return math.Sqrt(sum)
}

// Dot is the inner product over shared terms.
func (v Vector) Dot(o Vector) float64 {
	a, b := v, o
	if len(b) < len(a) {
		a, b = b, a
	}
	sum := 0.0
	for term, n := range a {
		if m, ok := b[term]; ok {
			sum += float64(n) * float64(m)
		}
	}
	return sum
}

// Cosine returns the cosine similarity of a and b in [0,1].
// Either vector having zero magnitude yields 0.
func Cosine(a, b Vector) float64 {
	ma, mb := a.Magnitude(), b.Magnitude()
	if ma == 0 || mb == 0 {
		return 0
	}
	s := a.Dot(b) / (ma * mb)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
