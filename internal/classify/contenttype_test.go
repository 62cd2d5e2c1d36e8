package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altsignal/tickersent/internal/models"
)

type fakeSageMaker struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeSageMaker) InvokeEndpoint(ctx context.Context, in *sagemakerruntime.InvokeEndpointInput, opts ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: f.body}, nil
}

func TestContentTypeDisabledReturnsSentinel(t *testing.T) {
	fake := &fakeSageMaker{}
	c := NewContentTypeClassifier(fake, "endpoint", false, 0.55)

	result, err := c.Classify(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeDisabled, result.Label)
	assert.Equal(t, 0, fake.calls, "disabled classifier must not call the endpoint")
	assert.False(t, c.Enabled())
}

func TestContentTypeConfidentPrediction(t *testing.T) {
	fake := &fakeSageMaker{
		body: []byte(`{"predicted_class":"informative","confidence":0.91,"probabilities":{"informative":0.91,"emotional":0.09}}`),
	}
	c := NewContentTypeClassifier(fake, "endpoint", true, 0.55)

	result, err := c.Classify(context.Background(), "Q3 revenue grew 12% year over year")
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeInformative, result.Label)
	assert.InDelta(t, 0.91, result.Confidence, 1e-9)
	assert.InDelta(t, 0.09, result.Probabilities.Emotional, 1e-9)
}

func TestContentTypeLowConfidenceBecomesUnknown(t *testing.T) {
	fake := &fakeSageMaker{
		body: []byte(`{"predicted_class":"emotional","confidence":0.40,"probabilities":{"informative":0.60,"emotional":0.40}}`),
	}
	c := NewContentTypeClassifier(fake, "endpoint", true, 0.55)

	result, err := c.Classify(context.Background(), "to the moon")
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeUnknown, result.Label)
	assert.InDelta(t, 0.40, result.Confidence, 1e-9)
}

func TestContentTypeEndpointFailureIsUnavailable(t *testing.T) {
	fake := &fakeSageMaker{err: errors.New("model server 500")}
	c := NewContentTypeClassifier(fake, "endpoint", true, 0.55)

	_, err := c.Classify(context.Background(), "some text")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, maxAttempts, fake.calls)
}
