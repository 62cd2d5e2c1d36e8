package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/altsignal/tickersent/internal/models"
)

func TestCombined(t *testing.T) {
	cases := []struct {
		name        string
		sentiment   *models.SentimentResult
		contentType *models.ContentTypeResult
		want        string
	}{
		{"positive informative", sent(models.SentimentPositive), ct(models.ContentTypeInformative), "POSITIVE_INFORMATIVE"},
		{"positive emotional", sent(models.SentimentPositive), ct(models.ContentTypeEmotional), "POSITIVE_EMOTIONAL"},
		{"negative informative", sent(models.SentimentNegative), ct(models.ContentTypeInformative), "NEGATIVE_INFORMATIVE"},
		{"negative emotional", sent(models.SentimentNegative), ct(models.ContentTypeEmotional), "NEGATIVE_EMOTIONAL"},
		{"neutral informative", sent(models.SentimentNeutral), ct(models.ContentTypeInformative), "NEUTRAL_INFORMATIVE"},
		{"neutral emotional", sent(models.SentimentNeutral), ct(models.ContentTypeEmotional), "NEUTRAL_EMOTIONAL"},
		{"mixed informative", sent(models.SentimentMixed), ct(models.ContentTypeInformative), "MIXED_INFORMATIVE"},
		{"mixed emotional", sent(models.SentimentMixed), ct(models.ContentTypeEmotional), "MIXED_EMOTIONAL"},
		{"disabled degrades to sentiment", sent(models.SentimentPositive), ct(models.ContentTypeDisabled), "POSITIVE"},
		{"unknown degrades to sentiment", sent(models.SentimentNegative), ct(models.ContentTypeUnknown), "NEGATIVE"},
		{"nil content type degrades", sent(models.SentimentNeutral), nil, "NEUTRAL"},
		{"nil sentiment is empty", nil, ct(models.ContentTypeInformative), ""},
		{"empty sentiment label is empty", &models.SentimentResult{}, ct(models.ContentTypeInformative), ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Combined(tc.sentiment, tc.contentType))
		})
	}
}

func sent(label string) *models.SentimentResult {
	return &models.SentimentResult{Label: label}
}

func ct(label string) *models.ContentTypeResult {
	return &models.ContentTypeResult{Label: label}
}
