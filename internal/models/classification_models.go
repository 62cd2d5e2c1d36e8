package models

// Sentiment labels as returned by the sentiment classifier.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentMixed    = "MIXED"
)

// Content-type labels. DISABLED and UNKNOWN are sentinels: DISABLED means the
// classifier was turned off by configuration, UNKNOWN means the prediction
// fell below the confidence threshold. Neither is a real class.
const (
	ContentTypeInformative = "INFORMATIVE"
	ContentTypeEmotional   = "EMOTIONAL"
	ContentTypeDisabled    = "DISABLED"
	ContentTypeUnknown     = "UNKNOWN"
)

type SentimentResult struct {
	Label  string          `json:"label"`
	Scores SentimentScores `json:"scores"`
}

type SentimentScores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Mixed    float64 `json:"mixed"`
}

type ContentTypeResult struct {
	Label         string                   `json:"label"`
	Confidence    float64                  `json:"confidence"`
	Probabilities ContentTypeProbabilities `json:"probabilities"`
}

type ContentTypeProbabilities struct {
	Informative float64 `json:"informative"`
	Emotional   float64 `json:"emotional"`
}

// EnrichedItem is a ContentItem plus classification results. A nil Sentiment
// or ContentType means that classifier failed at runtime; it is written as an
// explicit null, never omitted.
type EnrichedItem struct {
	ContentItem
	Sentiment       *SentimentResult   `json:"sentiment"`
	ContentType     *ContentTypeResult `json:"content_type"`
	SentimentSource string             `json:"sentiment_source,omitempty"`
}
