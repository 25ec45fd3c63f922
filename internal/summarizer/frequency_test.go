package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopText = "Oil changes cost $30 and take 20 minutes. " +
	"Brake service starts at $80. " +
	"Every oil change includes a free tire rotation and an oil filter check. " +
	"Parking is available behind the building."

func TestSummarize_KeepsOriginalOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize(shopText, 2)
	require.NoError(t, err)

	parts := strings.SplitAfter(got, ". ")
	require.Len(t, parts, 2)
	assert.Less(t, strings.Index(shopText, strings.TrimSpace(parts[0])), strings.Index(shopText, strings.TrimSpace(parts[1])))
	assert.Contains(t, got, "oil change includes")
}

func TestSummarize_MoreThanAvailable(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("Only one sentence here.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", got)
}

func TestSummarize_Empty(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
