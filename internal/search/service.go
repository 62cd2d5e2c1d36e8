// Package search is the on-demand path: it fetches a small fresh item set
// straight from the content source and classifies it synchronously, bypassing
// storage entirely.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/models"
	"github.com/altsignal/tickersent/internal/sentiment"
)

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// responseItemCap bounds the response body; the summary still covers every
// analyzed item.
const responseItemCap = 20

var timeframeHours = map[string]int{
	"1h":  1,
	"6h":  6,
	"12h": 12,
	"24h": 24,
	"2d":  48,
	"7d":  168,
	"30d": 720,
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamError reports the content source being unavailable, preserving the
// upstream message for the caller.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "content source error: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

type Source interface {
	SearchPosts(ctx context.Context, subreddit, query string, limit int) ([]models.ContentItem, error)
	FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.ContentItem, error)
}

type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (*models.SentimentResult, error)
}

type ContentTypeClassifier interface {
	Classify(ctx context.Context, text string) (*models.ContentTypeResult, error)
}

type Config struct {
	Subreddits       []string
	IgnoreKeywords   []string
	MinPostScore     int
	MinPostLength    int
	MinCommentScore  int
	MinCommentLength int
	MaxItems         int
	CommentsPerPost  int
}

type Service struct {
	cfg         Config
	source      Source
	sentiment   SentimentClassifier
	contentType ContentTypeClassifier
}

func NewService(cfg Config, source Source, sentimentClassifier SentimentClassifier, contentType ContentTypeClassifier) *Service {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}
	return &Service{
		cfg:         cfg,
		source:      source,
		sentiment:   sentimentClassifier,
		contentType: contentType,
	}
}

// Search runs one interactive request: validate, fetch a capped live item
// set, classify each item, summarize.
func (s *Service) Search(ctx context.Context, ticker, timeframe string) (*models.SearchResponse, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(ticker) {
		return nil, &ValidationError{Message: "Invalid ticker format. Please provide a valid stock ticker (e.g., AAPL, TSLA)."}
	}

	hours, ok := timeframeHours[timeframe]
	if !ok {
		timeframe = "24h"
		hours = timeframeHours[timeframe]
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	items, err := s.fetchItems(ctx, ticker, cutoff)
	if err != nil {
		return nil, err
	}

	analyzed := s.analyze(ctx, items)

	resp := &models.SearchResponse{
		Ticker:    ticker,
		Timeframe: timeframe,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:   summarize(analyzed),
		Data:      analyzed,
	}
	if len(resp.Data) > responseItemCap {
		resp.Data = resp.Data[:responseItemCap]
	}
	return resp, nil
}

func (s *Service) fetchItems(ctx context.Context, ticker string, cutoff int64) ([]models.ContentItem, error) {
	var found []models.ContentItem

	for _, subreddit := range s.cfg.Subreddits {
		if len(found) >= s.cfg.MaxItems {
			break
		}

		posts, err := s.source.SearchPosts(ctx, subreddit, ticker, s.cfg.MaxItems)
		if err != nil {
			if len(found) > 0 {
				slog.Warn("[TickerSearch] Subreddit fetch failed, continuing with partial set",
					slog.String("subreddit", subreddit),
					slog.String("error", err.Error()))
				continue
			}
			return nil, &UpstreamError{Err: err}
		}

		for _, post := range posts {
			if len(found) >= s.cfg.MaxItems {
				break
			}
			if post.CreatedAt < cutoff {
				continue
			}
			text := strings.ToLower(post.Title + " " + post.Body)
			if !strings.Contains(text, strings.ToLower(ticker)) {
				continue
			}
			if containsAny(text, s.cfg.IgnoreKeywords) {
				continue
			}
			if post.Score < s.cfg.MinPostScore {
				continue
			}
			if len(post.Body) < s.cfg.MinPostLength {
				continue
			}

			found = append(found, post)
			found = append(found, s.fetchComments(ctx, post, cutoff, s.cfg.MaxItems-len(found))...)
		}
	}

	return found, nil
}

func (s *Service) fetchComments(ctx context.Context, post models.ContentItem, cutoff int64, budget int) []models.ContentItem {
	if budget <= 0 || s.cfg.CommentsPerPost <= 0 {
		return nil
	}

	comments, err := s.source.FetchComments(ctx, post.Subreddit, post.SourceID, s.cfg.CommentsPerPost)
	if err != nil {
		slog.Warn("[TickerSearch] Failed to fetch comments",
			slog.String("post_id", post.SourceID),
			slog.String("error", err.Error()))
		return nil
	}

	var kept []models.ContentItem
	for _, comment := range comments {
		if len(kept) >= budget {
			break
		}
		if comment.Score < s.cfg.MinCommentScore {
			continue
		}
		if len(comment.Body) < s.cfg.MinCommentLength {
			continue
		}
		kept = append(kept, comment)
	}
	return kept
}

// analyze classifies items sequentially; the item cap keeps the whole pass
// inside the interactive latency budget. If the remote sentiment classifier
// is unavailable the path fails open to the local VADER analyzer rather than
// returning nulls to an interactive caller.
func (s *Service) analyze(ctx context.Context, items []models.ContentItem) []models.EnrichedItem {
	analyzed := make([]models.EnrichedItem, 0, len(items))

	for _, item := range items {
		enriched := models.EnrichedItem{ContentItem: item}
		text := classify.TextForItem(item)

		if text != "" {
			result, err := s.sentiment.Classify(ctx, text)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					analyzed = append(analyzed, enriched)
					continue
				}
				slog.Warn("[TickerSearch] Remote sentiment unavailable, falling back to VADER",
					slog.String("id", item.SourceID))
				enriched.Sentiment = sentiment.AnalyzeText(text)
				enriched.SentimentSource = "vader"
			} else {
				enriched.Sentiment = result
				enriched.SentimentSource = "comprehend"
			}
		}

		if s.contentType != nil {
			contentType, err := s.contentType.Classify(ctx, text)
			if err != nil {
				slog.Warn("[TickerSearch] Content type unavailable",
					slog.String("id", item.SourceID))
			} else {
				enriched.ContentType = contentType
			}
		}

		analyzed = append(analyzed, enriched)
	}

	return analyzed
}

func summarize(items []models.EnrichedItem) models.SearchSummary {
	summary := models.SearchSummary{
		SentimentBreakdown: map[string]int{
			models.SentimentPositive: 0,
			models.SentimentNegative: 0,
			models.SentimentNeutral:  0,
			models.SentimentMixed:    0,
		},
		TimeframeCoverage: "No data",
	}
	if len(items) == 0 {
		return summary
	}

	var scoreSum int
	oldest, newest := int64(math.MaxInt64), int64(0)

	for _, item := range items {
		summary.TotalItems++
		switch item.Kind {
		case models.KindPost:
			summary.Posts++
		case models.KindComment:
			summary.Comments++
		}
		if item.Sentiment != nil {
			summary.SentimentBreakdown[item.Sentiment.Label]++
		}
		scoreSum += item.Score
		if item.CreatedAt < oldest {
			oldest = item.CreatedAt
		}
		if item.CreatedAt > newest {
			newest = item.CreatedAt
		}
	}

	summary.AverageScore = math.Round(float64(scoreSum)/float64(len(items))*100) / 100
	summary.TimeframeCoverage = fmt.Sprintf("%.1f hours", float64(newest-oldest)/3600)
	return summary
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
