// Package mock is an offline generator that answers from the retrieved context.
package mock

import (
	"context"
	"fmt"
	"strings"

	"assistant/internal/domain"
)

// Generator answers without calling any model. It quotes the first
// paragraph of the retrieved context.
type Generator struct{}

// Ensure Generator implements domain.Generator.
var _ domain.Generator = (*Generator)(nil)

func New() *Generator { return &Generator{} }

func (g *Generator) Name() string { return "mock" }

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(req.Context), "\n\n")
	if first == "" {
		return fmt.Sprintf("[MOCK] Received your question: %q. I have no shop information to answer it.", truncate(req.Query, 100)), nil
	}
	return fmt.Sprintf("[MOCK] Received your question: %q. Here is what I found: %s", truncate(req.Query, 100), first), nil
}

// truncate truncates a string to the given number of runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
