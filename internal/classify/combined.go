package classify

import "github.com/altsignal/tickersent/internal/models"

// Combined derives the read-time classification over the sentiment ×
// content-type product, e.g. POSITIVE_INFORMATIVE. When the content type is a
// sentinel (or missing) the result degrades to the sentiment label alone; a
// missing sentiment yields the empty string.
func Combined(sentiment *models.SentimentResult, contentType *models.ContentTypeResult) string {
	if sentiment == nil || sentiment.Label == "" {
		return ""
	}

	if contentType == nil {
		return sentiment.Label
	}
	switch contentType.Label {
	case models.ContentTypeInformative, models.ContentTypeEmotional:
		return sentiment.Label + "_" + contentType.Label
	default:
		return sentiment.Label
	}
}
