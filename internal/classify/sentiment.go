package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	comprehendtypes "github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"github.com/altsignal/tickersent/internal/models"
)

// ErrUnavailable means a classifier call failed after its retry budget.
// Callers degrade (null field / sentinel label) instead of failing the item.
var ErrUnavailable = errors.New("classifier unavailable")

const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

type comprehendAPI interface {
	DetectSentiment(ctx context.Context, in *comprehend.DetectSentimentInput, opts ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error)
}

// SentimentClassifier wraps the Comprehend sentiment API.
type SentimentClassifier struct {
	api      comprehendAPI
	language comprehendtypes.LanguageCode
}

func NewSentimentClassifier(api comprehendAPI, language string) *SentimentClassifier {
	return &SentimentClassifier{api: api, language: comprehendtypes.LanguageCode(language)}
}

func (c *SentimentClassifier) Classify(ctx context.Context, text string) (*models.SentimentResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffWithJitter(attempt)):
			}
		}

		out, err := c.api.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
			Text:         aws.String(text),
			LanguageCode: c.language,
		})
		if err != nil {
			lastErr = err
			slog.Warn("[SentimentClassifier] DetectSentiment failed",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		result := &models.SentimentResult{Label: string(out.Sentiment)}
		if s := out.SentimentScore; s != nil {
			result.Scores = models.SentimentScores{
				Positive: float64(aws.ToFloat32(s.Positive)),
				Negative: float64(aws.ToFloat32(s.Negative)),
				Neutral:  float64(aws.ToFloat32(s.Neutral)),
				Mixed:    float64(aws.ToFloat32(s.Mixed)),
			}
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func backoffWithJitter(attempt int) time.Duration {
	backoff := baseBackoff << (attempt - 1)
	return backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
}
