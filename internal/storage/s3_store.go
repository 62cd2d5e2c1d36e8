package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/altsignal/tickersent/internal/models"
)

const rawKeyPrefix = "reddit-posts/"

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store holds both sides of the pipeline's object storage: the raw bucket
// the collector writes to and the processed bucket the enricher writes to.
type S3Store struct {
	api             s3API
	rawBucket       string
	processedBucket string
	now             func() time.Time
}

func NewS3Store(api s3API, rawBucket, processedBucket string) *S3Store {
	return &S3Store{
		api:             api,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		now:             time.Now,
	}
}

// PutRawBatch writes one ingestion run as a single JSON object. The key is
// timestamp-prefixed so bucket listings come back in chronological order.
func (s *S3Store) PutRawBatch(ctx context.Context, batch models.RawBatch) (string, error) {
	key := rawKeyPrefix + s.now().UTC().Format("2006-01-02-15-04-05") + ".json"

	body, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("[S3Store] Failed to marshal raw batch: %w", err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.rawBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("[S3Store] Failed to upload raw batch: %w", err)
	}

	slog.Info("[S3Store] Uploaded raw batch",
		slog.String("key", key),
		slog.Int("items", len(batch.Data)))
	return key, nil
}

// GetRawBatch reads one raw batch. An empty bucket falls back to the
// configured raw bucket; batch refs carry their own bucket so a consumer can
// read batches produced into another environment's bucket.
func (s *S3Store) GetRawBatch(ctx context.Context, bucket, key string) (models.RawBatch, error) {
	var batch models.RawBatch

	if bucket == "" {
		bucket = s.rawBucket
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return batch, fmt.Errorf("[S3Store] Failed to fetch raw batch %s: %w", key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return batch, fmt.Errorf("[S3Store] Failed to read raw batch %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, &batch); err != nil {
		// Older runs were written as a bare item array.
		if arrErr := json.Unmarshal(raw, &batch.Data); arrErr != nil {
			return batch, fmt.Errorf("[S3Store] Failed to decode raw batch %s: %w", key, err)
		}
	}

	return batch, nil
}

// PutProcessed writes the enriched NDJSON under the same key as the raw batch
// so re-processing overwrites instead of duplicating.
func (s *S3Store) PutProcessed(ctx context.Context, key string, ndjson []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.processedBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(ndjson),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("[S3Store] Failed to upload processed batch %s: %w", key, err)
	}

	slog.Info("[S3Store] Uploaded processed batch", slog.String("key", key))
	return nil
}
