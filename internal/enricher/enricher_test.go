package enricher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/models"
)

type fakeRaw struct {
	batch      models.RawBatch
	err        error
	lastBucket string
}

func (f *fakeRaw) GetRawBatch(ctx context.Context, bucket, key string) (models.RawBatch, error) {
	f.lastBucket = bucket
	if f.err != nil {
		return models.RawBatch{}, f.err
	}
	return f.batch, nil
}

type fakeProcessed struct {
	key  string
	body []byte
	err  error
}

func (f *fakeProcessed) PutProcessed(ctx context.Context, key string, ndjson []byte) error {
	if f.err != nil {
		return f.err
	}
	f.key = key
	f.body = ndjson
	return nil
}

type fakeSentiment struct {
	failFor map[string]bool
}

func (f *fakeSentiment) Classify(ctx context.Context, text string) (*models.SentimentResult, error) {
	if f.failFor[text] {
		return nil, fmt.Errorf("%w: throttled", classify.ErrUnavailable)
	}
	return &models.SentimentResult{
		Label:  models.SentimentPositive,
		Scores: models.SentimentScores{Positive: 0.9, Neutral: 0.1},
	}, nil
}

type fakeContentType struct {
	label string
	err   error
}

func (f *fakeContentType) Classify(ctx context.Context, text string) (*models.ContentTypeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", classify.ErrUnavailable)
	}
	label := f.label
	if label == "" {
		label = models.ContentTypeInformative
	}
	return &models.ContentTypeResult{Label: label, Confidence: 0.9}, nil
}

func batchOf(n int) models.RawBatch {
	batch := models.RawBatch{}
	for i := 0; i < n; i++ {
		batch.Data = append(batch.Data, models.ContentItem{
			SourceID:  fmt.Sprintf("item-%03d", i),
			Kind:      models.KindPost,
			Title:     fmt.Sprintf("title %d", i),
			Body:      fmt.Sprintf("body %d", i),
			CreatedAt: int64(1000 + i),
		})
	}
	return batch
}

func TestEnrichWritesOneLinePerItemInOrder(t *testing.T) {
	raw := &fakeRaw{batch: batchOf(5)}
	processed := &fakeProcessed{}
	e := New(raw, processed, &fakeSentiment{}, &fakeContentType{}, 3)

	key, err := e.Enrich(context.Background(), "raw-bucket", "reddit-posts/2026-08-31-12-00-00.json")
	require.NoError(t, err)
	assert.Equal(t, "reddit-posts/2026-08-31-12-00-00.json", key)
	assert.Equal(t, key, processed.key)
	assert.Equal(t, "raw-bucket", raw.lastBucket, "batch ref bucket is honored")

	lines := bytes.Split(bytes.TrimSuffix(processed.body, []byte("\n")), []byte("\n"))
	require.Len(t, lines, 5)

	for i, line := range lines {
		var item models.EnrichedItem
		require.NoError(t, json.Unmarshal(line, &item))
		assert.Equal(t, fmt.Sprintf("item-%03d", i), item.SourceID)
		require.NotNil(t, item.Sentiment)
		assert.Equal(t, models.SentimentPositive, item.Sentiment.Label)
		require.NotNil(t, item.ContentType)
		assert.Equal(t, models.ContentTypeInformative, item.ContentType.Label)
	}
}

func TestEnrichSentimentFailureWritesNullKeepsContentType(t *testing.T) {
	batch := batchOf(2)
	failText := classify.TextForItem(batch.Data[0])
	raw := &fakeRaw{batch: batch}
	processed := &fakeProcessed{}
	e := New(raw, processed, &fakeSentiment{failFor: map[string]bool{failText: true}}, &fakeContentType{}, 1)

	_, err := e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSuffix(processed.body, []byte("\n")), []byte("\n"))
	require.Len(t, lines, 2)

	assert.Contains(t, string(lines[0]), `"sentiment":null`)
	var failed models.EnrichedItem
	require.NoError(t, json.Unmarshal(lines[0], &failed))
	assert.Nil(t, failed.Sentiment)
	require.NotNil(t, failed.ContentType, "content type survives a sentiment failure")

	var ok models.EnrichedItem
	require.NoError(t, json.Unmarshal(lines[1], &ok))
	assert.NotNil(t, ok.Sentiment)
}

func TestEnrichContentTypeFailureWritesNull(t *testing.T) {
	raw := &fakeRaw{batch: batchOf(1)}
	processed := &fakeProcessed{}
	e := New(raw, processed, &fakeSentiment{}, &fakeContentType{err: errors.New("endpoint down")}, 1)

	_, err := e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)
	assert.Contains(t, string(processed.body), `"content_type":null`)
}

func TestEnrichDisabledSentinelPropagates(t *testing.T) {
	raw := &fakeRaw{batch: batchOf(1)}
	processed := &fakeProcessed{}
	e := New(raw, processed, &fakeSentiment{}, &fakeContentType{label: models.ContentTypeDisabled}, 1)

	_, err := e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)
	assert.Contains(t, string(processed.body), `"label":"DISABLED"`)
}

func TestEnrichOutputIsReproducible(t *testing.T) {
	raw := &fakeRaw{batch: batchOf(8)}
	e := New(raw, &fakeProcessed{}, &fakeSentiment{}, &fakeContentType{}, 4)

	first := &fakeProcessed{}
	e.processed = first
	_, err := e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)

	second := &fakeProcessed{}
	e.processed = second
	_, err = e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.body, second.body), "reruns must produce identical bytes")
}

func TestEnrichDisabledSentinelCoversEmptyText(t *testing.T) {
	batch := batchOf(1)
	batch.Data = append(batch.Data, models.ContentItem{SourceID: "empty", Kind: models.KindComment})
	processed := &fakeProcessed{}
	disabled := classify.NewContentTypeClassifier(nil, "", false, 0.55)
	e := New(&fakeRaw{batch: batch}, processed, &fakeSentiment{}, disabled, 1)

	_, err := e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSuffix(processed.body, []byte("\n")), []byte("\n"))
	require.Len(t, lines, 2)
	for _, line := range lines {
		var item models.EnrichedItem
		require.NoError(t, json.Unmarshal(line, &item))
		require.NotNil(t, item.ContentType)
		assert.Equal(t, models.ContentTypeDisabled, item.ContentType.Label)
	}
}

func TestEnrichEmptyTextSkipsClassifiers(t *testing.T) {
	batch := models.RawBatch{Data: []models.ContentItem{{SourceID: "empty", Kind: models.KindComment}}}
	processed := &fakeProcessed{}
	e := New(&fakeRaw{batch: batch}, processed, &fakeSentiment{}, &fakeContentType{}, 1)

	_, err := e.Enrich(context.Background(), "raw-bucket", "key")
	require.NoError(t, err)

	line := strings.TrimSpace(string(processed.body))
	assert.Contains(t, line, `"sentiment":null`)
	assert.Contains(t, line, `"content_type":null`)
}

func TestEnrichRawFetchErrorPropagates(t *testing.T) {
	e := New(&fakeRaw{err: errors.New("no such key")}, &fakeProcessed{}, &fakeSentiment{}, &fakeContentType{}, 1)
	_, err := e.Enrich(context.Background(), "", "missing")
	assert.Error(t, err)
}
