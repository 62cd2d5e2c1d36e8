package models

// TrendRow is one aggregated bucket from the analytical query. ContentType is
// empty when the aggregation is sentiment-only.
type TrendRow struct {
	Subreddit     string  `json:"subreddit"`
	PostDate      string  `json:"post_date"`
	SentimentType string  `json:"sentiment_type"`
	ContentType   string  `json:"content_type,omitempty"`
	PostCount     int     `json:"post_count"`
	AvgPositive   float64 `json:"avg_positive_score"`
	AvgNegative   float64 `json:"avg_negative_score"`
	AvgNeutral    float64 `json:"avg_neutral_score"`
	AvgMixed      float64 `json:"avg_mixed_score"`
}

// PostRow is the per-item projection returned alongside trend data.
type PostRow struct {
	DisplayText            string `json:"display_text"`
	Subreddit              string `json:"subreddit"`
	SentimentType          string `json:"sentiment_type"`
	ContentType            string `json:"content_type,omitempty"`
	CombinedClassification string `json:"combined_classification,omitempty"`
	URL                    string `json:"url,omitempty"`
	Kind                   string `json:"type"`
}

type QueryMetadata struct {
	Ticker      string `json:"ticker"`
	ContentType string `json:"content_type"`
	Timestamp   int64  `json:"timestamp"`
	NoData      bool   `json:"no_data,omitempty"`
}

type QueryResponse struct {
	TrendData []TrendRow    `json:"trend_data"`
	PostsData []PostRow     `json:"posts_data"`
	Metadata  QueryMetadata `json:"metadata"`
}

type SearchSummary struct {
	TotalItems         int            `json:"total_items"`
	Posts              int            `json:"posts"`
	Comments           int            `json:"comments"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	AverageScore       float64        `json:"average_score"`
	TimeframeCoverage  string         `json:"timeframe_coverage"`
}

type SearchResponse struct {
	Ticker    string         `json:"ticker"`
	Timeframe string         `json:"timeframe"`
	Timestamp string         `json:"timestamp"`
	Summary   SearchSummary  `json:"summary"`
	Data      []EnrichedItem `json:"data"`
}
