// Package sentiment provides a local VADER analyzer used by the interactive
// search path when the remote sentiment classifier is unavailable.
package sentiment

import (
	"github.com/jonreiter/govader"

	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/models"
)

var analyzer = govader.NewSentimentIntensityAnalyzer()

const (
	positiveThreshold = 0.20
	negativeThreshold = -0.20
	mixedMinimum      = 0.25
)

// AnalyzeText scores markdown text with VADER and maps the polarity scores
// onto the pipeline's four-class result. VADER has no mixed class of its own,
// so MIXED is inferred when both poles carry weight.
func AnalyzeText(text string) *models.SentimentResult {
	plainText := classify.ConvertMarkdownToText(text)

	scores := analyzer.PolarityScores(plainText)

	var label string
	switch {
	case scores.Positive >= mixedMinimum && scores.Negative >= mixedMinimum:
		label = models.SentimentMixed
	case scores.Compound >= positiveThreshold:
		label = models.SentimentPositive
	case scores.Compound <= negativeThreshold:
		label = models.SentimentNegative
	default:
		label = models.SentimentNeutral
	}

	return &models.SentimentResult{
		Label: label,
		Scores: models.SentimentScores{
			Positive: scores.Positive,
			Negative: scores.Negative,
			Neutral:  scores.Neutral,
			Mixed:    0,
		},
	}
}
