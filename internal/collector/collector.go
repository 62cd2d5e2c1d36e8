// Package collector implements the scheduled ingestion run: fetch candidate
// items from the content source, drop what was already seen or fails the
// heuristics, write the survivors to raw storage, then commit the dedup
// state. State is committed strictly after the batch write succeeds, so a
// crash in between is safe to retry.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/altsignal/tickersent/internal/dedup"
	"github.com/altsignal/tickersent/internal/events"
	"github.com/altsignal/tickersent/internal/models"
)

type Source interface {
	FetchNewPosts(ctx context.Context, subreddit string, limit int) ([]models.ContentItem, error)
	FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.ContentItem, error)
}

type StateStore interface {
	Load(ctx context.Context) (models.DedupState, int64, error)
	Save(ctx context.Context, state models.DedupState, version int64) error
}

type RawStore interface {
	PutRawBatch(ctx context.Context, batch models.RawBatch) (string, error)
}

type Publisher interface {
	PublishBatchRef(ref events.BatchRef) error
}

// RelevanceChecker is the optional AI gate. Errors from it never reject an
// item: the collector fails open to heuristic-only acceptance.
type RelevanceChecker interface {
	IsRelevant(ctx context.Context, item models.ContentItem) (bool, error)
}

type Config struct {
	Subreddits       []string
	Keywords         []string
	IgnoreKeywords   []string
	MinPostScore     int
	MinPostLength    int
	MinCommentScore  int
	MinCommentLength int
	PostLimit        int
	CommentsPerPost  int
	GraceWindow      time.Duration
	StateRetries     int
	RawBucket        string
}

type Result struct {
	Accepted      []models.ContentItem
	RejectedCount int
	NewWatermark  int64
	BatchKey      string
}

type Collector struct {
	cfg       Config
	source    Source
	state     StateStore
	raw       RawStore
	publisher Publisher
	relevance RelevanceChecker
}

func New(cfg Config, source Source, state StateStore, raw RawStore, publisher Publisher, relevance RelevanceChecker) *Collector {
	if cfg.StateRetries <= 0 {
		cfg.StateRetries = 3
	}
	return &Collector{
		cfg:       cfg,
		source:    source,
		state:     state,
		raw:       raw,
		publisher: publisher,
		relevance: relevance,
	}
}

// Collect runs one ingestion pass. A source failure aborts the run without
// committing state; the next scheduled run retries from the old watermark.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	state, version, err := c.state.Load(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := int64(0)
	if state.Watermark > 0 {
		cutoff = state.Watermark - int64(c.cfg.GraceWindow.Seconds())
	}

	slog.Info("[Collector] Starting ingestion run",
		slog.Int64("watermark", state.Watermark),
		slog.Int("recent_ids", len(state.RecentIDs)))

	result := &Result{NewWatermark: state.Watermark}
	newestSeen := int64(0)

	for _, subreddit := range c.cfg.Subreddits {
		if len(result.Accepted) >= c.cfg.PostLimit {
			break
		}

		posts, err := c.source.FetchNewPosts(ctx, subreddit, c.cfg.PostLimit)
		if err != nil {
			return nil, fmt.Errorf("[Collector] Fetch failed for r/%s: %w", subreddit, err)
		}

		for _, post := range posts {
			if len(result.Accepted) >= c.cfg.PostLimit {
				break
			}
			if post.CreatedAt < cutoff {
				continue
			}
			if post.CreatedAt > newestSeen {
				newestSeen = post.CreatedAt
			}

			if !c.acceptPost(ctx, state, post, result) {
				continue
			}

			result.Accepted = append(result.Accepted, post)
			c.collectComments(ctx, state, post, result, &newestSeen)
		}
	}

	if len(result.Accepted) == 0 {
		slog.Info("[Collector] No new items accepted",
			slog.Int("rejected", result.RejectedCount))
		return result, nil
	}

	batch := models.RawBatch{
		Metadata: models.BatchMetadata{
			Timestamp:  time.Now().UTC().Format("2006-01-02-15-04-05"),
			TotalItems: len(result.Accepted),
			Subreddits: c.cfg.Subreddits,
			Keywords:   c.cfg.Keywords,
		},
		Data: result.Accepted,
	}

	key, err := c.raw.PutRawBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("[Collector] Raw batch upload failed: %w", err)
	}
	result.BatchKey = key

	if newestSeen > result.NewWatermark {
		result.NewWatermark = newestSeen
	}

	if err := c.commitState(ctx, state, version, result); err != nil {
		return nil, err
	}

	if c.publisher != nil {
		if err := c.publisher.PublishBatchRef(events.BatchRef{
			Bucket:    c.cfg.RawBucket,
			Key:       key,
			ItemCount: len(result.Accepted),
		}); err != nil {
			// The scheduled catalog refresh will still pick the batch up.
			slog.Warn("[Collector] Failed to publish batch ref",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("[Collector] Ingestion run complete",
		slog.Int("accepted", len(result.Accepted)),
		slog.Int("rejected", result.RejectedCount),
		slog.Int64("new_watermark", result.NewWatermark))

	return result, nil
}

func (c *Collector) acceptPost(ctx context.Context, state models.DedupState, post models.ContentItem, result *Result) bool {
	if state.Seen(post.SourceID) {
		result.RejectedCount++
		return false
	}

	text := strings.ToLower(post.Title + " " + post.Body)
	if !containsAny(text, c.cfg.Keywords) {
		result.RejectedCount++
		return false
	}
	if containsAny(text, c.cfg.IgnoreKeywords) {
		result.RejectedCount++
		return false
	}
	if post.Score < c.cfg.MinPostScore {
		result.RejectedCount++
		return false
	}
	if len(post.Body) < c.cfg.MinPostLength {
		result.RejectedCount++
		return false
	}

	if c.relevance != nil {
		relevant, err := c.relevance.IsRelevant(ctx, post)
		if err != nil {
			// Fail open: a broken relevance service must not block ingestion.
			slog.Warn("[Collector] Relevance check errored, accepting item",
				slog.String("id", post.SourceID),
				slog.String("error", err.Error()))
		} else if !relevant {
			result.RejectedCount++
			return false
		}
	}

	return true
}

func (c *Collector) collectComments(ctx context.Context, state models.DedupState, post models.ContentItem, result *Result, newestSeen *int64) {
	if c.cfg.CommentsPerPost <= 0 {
		return
	}

	comments, err := c.source.FetchComments(ctx, post.Subreddit, post.SourceID, c.cfg.CommentsPerPost)
	if err != nil {
		// Comments are best effort; the post is already accepted.
		slog.Warn("[Collector] Failed to fetch comments",
			slog.String("post_id", post.SourceID),
			slog.String("error", err.Error()))
		return
	}

	for _, comment := range comments {
		if len(result.Accepted) >= c.cfg.PostLimit {
			return
		}
		if state.Seen(comment.SourceID) {
			result.RejectedCount++
			continue
		}
		if comment.Score < c.cfg.MinCommentScore {
			result.RejectedCount++
			continue
		}
		if len(comment.Body) < c.cfg.MinCommentLength {
			result.RejectedCount++
			continue
		}

		if comment.CreatedAt > *newestSeen {
			*newestSeen = comment.CreatedAt
		}
		result.Accepted = append(result.Accepted, comment)
	}
}

// commitState performs the optimistic read-modify-write. On a version
// conflict the state is re-read and this run's progress merged in; repeated
// conflicts escalate.
func (c *Collector) commitState(ctx context.Context, state models.DedupState, version int64, result *Result) error {
	next := mergeState(state, result, c.cfg.GraceWindow)

	for attempt := 0; attempt < c.cfg.StateRetries; attempt++ {
		err := c.state.Save(ctx, next, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dedup.ErrConflict) {
			return err
		}

		slog.Warn("[Collector] Dedup state conflict, retrying",
			slog.Int("attempt", attempt+1))

		var loadErr error
		state, version, loadErr = c.state.Load(ctx)
		if loadErr != nil {
			return loadErr
		}
		next = mergeState(state, result, c.cfg.GraceWindow)
	}

	return fmt.Errorf("[Collector] Dedup state conflict persisted after %d attempts: %w",
		c.cfg.StateRetries, dedup.ErrConflict)
}

func mergeState(state models.DedupState, result *Result, grace time.Duration) models.DedupState {
	next := models.DedupState{
		Watermark: state.Watermark,
		RecentIDs: make(map[string]int64, len(state.RecentIDs)+len(result.Accepted)),
	}
	for id, createdAt := range state.RecentIDs {
		next.RecentIDs[id] = createdAt
	}
	for _, item := range result.Accepted {
		next.RecentIDs[item.SourceID] = item.CreatedAt
	}
	if result.NewWatermark > next.Watermark {
		next.Watermark = result.NewWatermark
	}
	return dedup.Prune(next, grace)
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
