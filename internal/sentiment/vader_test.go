package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altsignal/tickersent/internal/models"
)

func TestAnalyzeTextLabels(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"positive", "This stock is amazing, great earnings, I love it!", models.SentimentPositive},
		{"negative", "Terrible quarter, awful guidance, I hate this garbage company.", models.SentimentNegative},
		{"neutral", "The company reported quarterly numbers on Tuesday.", models.SentimentNeutral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := AnalyzeText(tc.text)
			require.NotNil(t, result)
			assert.Equal(t, tc.want, result.Label)
		})
	}
}

func TestAnalyzeTextScoresPopulated(t *testing.T) {
	result := AnalyzeText("Fantastic growth, wonderful margins, excellent outlook!")

	assert.Greater(t, result.Scores.Positive, 0.0)
	assert.Zero(t, result.Scores.Mixed)
	total := result.Scores.Positive + result.Scores.Negative + result.Scores.Neutral
	assert.InDelta(t, 1.0, total, 0.05)
}

func TestAnalyzeTextStripsMarkdown(t *testing.T) {
	result := AnalyzeText("**Great** news at [the link](https://example.com)")
	require.NotNil(t, result)
	assert.Equal(t, models.SentimentPositive, result.Label)
}
