package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/altsignal/tickersent/internal/models"
)

type sageMakerAPI interface {
	InvokeEndpoint(ctx context.Context, in *sagemakerruntime.InvokeEndpointInput, opts ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// ContentTypeClassifier wraps the informative/emotional SageMaker endpoint.
// When disabled by configuration it returns the DISABLED sentinel instead of
// calling out; a runtime failure after retries surfaces as ErrUnavailable so
// callers can null out the field. The two states stay distinguishable.
type ContentTypeClassifier struct {
	api           sageMakerAPI
	endpoint      string
	enabled       bool
	minConfidence float64
}

type contentTypeRequest struct {
	Text string `json:"text"`
}

type contentTypeResponse struct {
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
	Probabilities  struct {
		Informative float64 `json:"informative"`
		Emotional   float64 `json:"emotional"`
	} `json:"probabilities"`
}

func NewContentTypeClassifier(api sageMakerAPI, endpoint string, enabled bool, minConfidence float64) *ContentTypeClassifier {
	return &ContentTypeClassifier{
		api:           api,
		endpoint:      endpoint,
		enabled:       enabled,
		minConfidence: minConfidence,
	}
}

func (c *ContentTypeClassifier) Enabled() bool { return c.enabled }

func (c *ContentTypeClassifier) Classify(ctx context.Context, text string) (*models.ContentTypeResult, error) {
	if !c.enabled {
		return &models.ContentTypeResult{Label: models.ContentTypeDisabled}, nil
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrUnavailable)
	}

	payload, err := json.Marshal(contentTypeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classifier payload: %w", err)
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

		out, err := c.api.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
			EndpointName: aws.String(c.endpoint),
			ContentType:  aws.String("application/json"),
			Body:         payload,
		})
		if err != nil {
			lastErr = err
			slog.Warn("[ContentTypeClassifier] InvokeEndpoint failed",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		var resp contentTypeResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			lastErr = err
			continue
		}

		result := &models.ContentTypeResult{
			Label:      strings.ToUpper(resp.PredictedClass),
			Confidence: resp.Confidence,
			Probabilities: models.ContentTypeProbabilities{
				Informative: resp.Probabilities.Informative,
				Emotional:   resp.Probabilities.Emotional,
			},
		}
		if result.Label == "" || resp.Confidence < c.minConfidence {
			result.Label = models.ContentTypeUnknown
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
