package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the pipeline reads from the environment.
type Config struct {
	Env  string
	Port string

	// AWS
	AWSRegion   string
	AWSEndpoint string

	// Object storage
	RawBucket       string
	ProcessedBucket string

	// Athena
	AthenaDatabase       string
	AthenaTable          string
	AthenaOutputLocation string
	QueryPollInterval    time.Duration
	QueryTimeout         time.Duration

	// Dedup state
	DedupTable   string
	PipelineName string
	GraceWindow  time.Duration

	// Kafka
	KafkaBroker  string
	KafkaGroupID string

	// Content source
	Subreddits     []string
	Keywords       []string
	IgnoreKeywords []string
	PostLimit      int

	// Ingestion filters
	MinPostScore     int
	MinPostLength    int
	MinCommentScore  int
	MinCommentLength int

	// Relevance check
	EnableRelevanceCheck bool
	RelevanceModel       string

	// Classifiers
	ComprehendLanguage        string
	SageMakerEndpoint         string
	EnableContentTypeClassify bool
	ContentTypeMinConfidence  float64
	EnrichmentParallelism     int

	// Search
	SearchMaxItems  int
	SearchRateLimit int
	CommentsPerPost int

	// Scheduling
	CollectSchedule string
}

func Load() *Config {
	return &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint: getEnv("AWS_ENDPOINT", ""),

		RawBucket:       getEnv("RAW_BUCKET_NAME", "tickersent-raw"),
		ProcessedBucket: getEnv("PROCESSED_BUCKET_NAME", "tickersent-processed"),

		AthenaDatabase:       getEnv("ATHENA_DATABASE", "tickersent_db"),
		AthenaTable:          getEnv("ATHENA_TABLE", "reddit_posts"),
		AthenaOutputLocation: getEnv("ATHENA_OUTPUT_LOCATION", ""),
		QueryPollInterval:    getDurationEnv("QUERY_POLL_INTERVAL", time.Second),
		QueryTimeout:         getDurationEnv("QUERY_TIMEOUT", 60*time.Second),

		DedupTable:   getEnv("DEDUP_TABLE_NAME", "DedupState"),
		PipelineName: getEnv("PIPELINE_NAME", "reddit-ingest"),
		GraceWindow:  getDurationEnv("DEDUP_GRACE_WINDOW", 30*time.Minute),

		KafkaBroker:  getEnv("KAFKA_BROKER", "localhost:9092"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "tickersent-enricher"),

		Subreddits:     getSliceEnv("SUBREDDITS", []string{"stocks", "investing", "wallstreetbets"}),
		Keywords:       getSliceEnv("KEYWORDS", []string{"AAPL", "TSLA", "AMZN", "GOOGL", "MSFT"}),
		IgnoreKeywords: getSliceEnv("IGNORE_KEYWORDS", nil),
		PostLimit:      getIntEnv("POST_LIMIT", 100),

		MinPostScore:     getIntEnv("MIN_POST_SCORE", 10),
		MinPostLength:    getIntEnv("MIN_POST_LENGTH", 200),
		MinCommentScore:  getIntEnv("MIN_COMMENT_SCORE", 5),
		MinCommentLength: getIntEnv("MIN_COMMENT_LENGTH", 50),

		EnableRelevanceCheck: getBoolEnv("ENABLE_AI_RELEVANCE_CHECK", true),
		RelevanceModel:       getEnv("RELEVANCE_MODEL", "gpt-4o-mini"),

		ComprehendLanguage:        getEnv("COMPREHEND_LANGUAGE", "en"),
		SageMakerEndpoint:         getEnv("SAGEMAKER_ENDPOINT_NAME", "informative-emotional-endpoint"),
		EnableContentTypeClassify: getBoolEnv("ENABLE_CONTENT_TYPE_CLASSIFICATION", true),
		ContentTypeMinConfidence:  getFloatEnv("CONTENT_TYPE_MIN_CONFIDENCE", 0.55),
		EnrichmentParallelism:     getIntEnv("ENRICHMENT_PARALLELISM", 4),

		SearchMaxItems:  getIntEnv("SEARCH_MAX_ITEMS", 50),
		SearchRateLimit: getIntEnv("SEARCH_RATE_LIMIT", 10),
		CommentsPerPost: getIntEnv("COMMENTS_PER_POST", 10),

		CollectSchedule: getEnv("COLLECT_SCHEDULE", "@every 15m"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true")
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getSliceEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
