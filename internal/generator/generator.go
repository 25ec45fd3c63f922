// Package generator holds what the text generation adapters share.
package generator

import (
	"errors"
	"strings"

	"assistant/internal/domain"
)

// ErrEmptyResponse is returned when an upstream model produced no text.
var ErrEmptyResponse = errors.New("generator returned no text")

const systemPreamble = "You are the assistant of a vehicle service shop. " +
	"Answer the customer's question using only the shop information below. " +
	"If the information does not cover the question, say so and suggest contacting a service advisor. " +
	"Keep answers short and friendly."

// SystemPrompt renders the instructions and retrieved context for req.
func SystemPrompt(req domain.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\nShop information:\n")
	sb.WriteString(strings.TrimSpace(req.Context))
	return sb.String()
}
