// Package enricher turns a raw batch into enriched NDJSON. Every input item
// produces exactly one output record in the same position; classifier
// failures degrade to null fields or sentinel labels, never to dropped items.
// Output for a given batch is byte-for-byte reproducible, so redelivered
// triggers simply overwrite.
package enricher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/models"
)

type RawFetcher interface {
	GetRawBatch(ctx context.Context, bucket, key string) (models.RawBatch, error)
}

type ProcessedWriter interface {
	PutProcessed(ctx context.Context, key string, ndjson []byte) error
}

type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (*models.SentimentResult, error)
}

type ContentTypeClassifier interface {
	Classify(ctx context.Context, text string) (*models.ContentTypeResult, error)
}

type Enricher struct {
	raw         RawFetcher
	processed   ProcessedWriter
	sentiment   SentimentClassifier
	contentType ContentTypeClassifier
	parallelism int
}

func New(raw RawFetcher, processed ProcessedWriter, sentiment SentimentClassifier, contentType ContentTypeClassifier, parallelism int) *Enricher {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Enricher{
		raw:         raw,
		processed:   processed,
		sentiment:   sentiment,
		contentType: contentType,
		parallelism: parallelism,
	}
}

// Enrich processes one raw batch and returns the processed object key (the
// same key as the raw batch).
func (e *Enricher) Enrich(ctx context.Context, bucket, batchKey string) (string, error) {
	batch, err := e.raw.GetRawBatch(ctx, bucket, batchKey)
	if err != nil {
		return "", err
	}

	slog.Info("[Enricher] Processing batch",
		slog.String("key", batchKey),
		slog.Int("items", len(batch.Data)))

	enriched := e.EnrichItems(ctx, batch.Data)

	ndjson, err := encodeNDJSON(enriched)
	if err != nil {
		return "", err
	}

	if err := e.processed.PutProcessed(ctx, batchKey, ndjson); err != nil {
		return "", err
	}

	slog.Info("[Enricher] Batch complete", slog.String("key", batchKey))
	return batchKey, nil
}

// EnrichItems classifies items with bounded parallelism. Results land in the
// slot matching their input index, so output order is deterministic.
func (e *Enricher) EnrichItems(ctx context.Context, items []models.ContentItem) []models.EnrichedItem {
	enriched := make([]models.EnrichedItem, len(items))

	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item models.ContentItem) {
			defer wg.Done()
			defer func() { <-sem }()
			enriched[i] = e.enrichOne(ctx, item)
		}(i, item)
	}

	wg.Wait()
	return enriched
}

func (e *Enricher) enrichOne(ctx context.Context, item models.ContentItem) models.EnrichedItem {
	out := models.EnrichedItem{ContentItem: item}

	text := classify.TextForItem(item)
	if text != "" {
		sentiment, err := e.sentiment.Classify(ctx, text)
		if err != nil {
			if !errors.Is(err, classify.ErrUnavailable) && !errors.Is(err, context.Canceled) {
				slog.Error("[Enricher] Unexpected sentiment error",
					slog.String("id", item.SourceID),
					slog.String("error", err.Error()))
			} else {
				slog.Warn("[Enricher] Sentiment unavailable, writing null",
					slog.String("id", item.SourceID))
			}
		} else {
			out.Sentiment = sentiment
		}
	}

	// Runs even for empty text: a disabled classifier still owes the
	// DISABLED sentinel.
	contentType, err := e.contentType.Classify(ctx, text)
	if err != nil {
		slog.Warn("[Enricher] Content type unavailable, writing null",
			slog.String("id", item.SourceID),
			slog.String("error", err.Error()))
	} else {
		out.ContentType = contentType
	}

	return out
}

func encodeNDJSON(items []models.EnrichedItem) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("[Enricher] Failed to marshal item %s: %w", item.SourceID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
