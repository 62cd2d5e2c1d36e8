package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altsignal/tickersent/internal/models"
)

type fakeSource struct {
	posts    map[string][]models.ContentItem
	comments map[string][]models.ContentItem
	err      error
}

func (f *fakeSource) SearchPosts(ctx context.Context, subreddit, query string, limit int) ([]models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.posts[subreddit], nil
}

func (f *fakeSource) FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.ContentItem, error) {
	return f.comments[postID], nil
}

type fakeSentiment struct {
	label string
	err   error
}

func (f *fakeSentiment) Classify(ctx context.Context, text string) (*models.SentimentResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	label := f.label
	if label == "" {
		label = models.SentimentPositive
	}
	return &models.SentimentResult{Label: label}, nil
}

type fakeContentType struct{}

func (fakeContentType) Classify(ctx context.Context, text string) (*models.ContentTypeResult, error) {
	return &models.ContentTypeResult{Label: models.ContentTypeInformative, Confidence: 0.8}, nil
}

func testConfig() Config {
	return Config{
		Subreddits:       []string{"stocks"},
		MinPostScore:     10,
		MinPostLength:    50,
		MinCommentScore:  5,
		MinCommentLength: 20,
		MaxItems:         50,
		CommentsPerPost:  5,
	}
}

func freshPost(id, ticker string, score int) models.ContentItem {
	return models.ContentItem{
		SourceID:  id,
		Kind:      models.KindPost,
		Subreddit: "stocks",
		Title:     ticker + " looks interesting",
		Body:      strings.Repeat(ticker+" discussion with enough body text. ", 4),
		Score:     score,
		CreatedAt: time.Now().Unix(),
	}
}

func TestSearchRejectsInvalidTicker(t *testing.T) {
	svc := NewService(testConfig(), &fakeSource{}, &fakeSentiment{}, nil)

	for _, ticker := range []string{"", "aapl1", "TOOLONG", "AA PL"} {
		_, err := svc.Search(context.Background(), ticker, "24h")
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr, "ticker %q", ticker)
	}
}

func TestSearchLowercaseTickerNormalized(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.ContentItem{
		"stocks": {freshPost("p1", "AAPL", 20)},
	}}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	resp, err := svc.Search(context.Background(), "aapl", "24h")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Len(t, resp.Data, 1)
}

func TestSearchUnknownTimeframeDefaults(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.ContentItem{"stocks": nil}}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	resp, err := svc.Search(context.Background(), "AAPL", "3 weeks")
	require.NoError(t, err)
	assert.Equal(t, "24h", resp.Timeframe)
}

func TestSearchSourceDownReturnsUpstreamError(t *testing.T) {
	source := &fakeSource{err: errors.New("reddit 503")}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	_, err := svc.Search(context.Background(), "AAPL", "24h")
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestSearchClassifiesWithRemoteSentiment(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.ContentItem{
		"stocks": {freshPost("p1", "TSLA", 20)},
	}}
	svc := NewService(testConfig(), source, &fakeSentiment{label: models.SentimentNegative}, fakeContentType{})

	resp, err := svc.Search(context.Background(), "TSLA", "24h")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)

	item := resp.Data[0]
	require.NotNil(t, item.Sentiment)
	assert.Equal(t, models.SentimentNegative, item.Sentiment.Label)
	assert.Equal(t, "comprehend", item.SentimentSource)
	require.NotNil(t, item.ContentType)
	assert.Equal(t, models.ContentTypeInformative, item.ContentType.Label)
}

func TestSearchFallsBackToVader(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.ContentItem{
		"stocks": {freshPost("p1", "NVDA", 20)},
	}}
	svc := NewService(testConfig(), source, &fakeSentiment{err: errors.New("comprehend throttled")}, nil)

	resp, err := svc.Search(context.Background(), "NVDA", "24h")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)

	item := resp.Data[0]
	require.NotNil(t, item.Sentiment, "fallback must still produce a sentiment")
	assert.Equal(t, "vader", item.SentimentSource)
}

func TestSearchFiltering(t *testing.T) {
	old := freshPost("old", "AAPL", 20)
	old.CreatedAt = time.Now().Add(-48 * time.Hour).Unix()
	offTopic := freshPost("off", "MSFT", 20)
	lowScore := freshPost("low", "AAPL", 2)

	source := &fakeSource{posts: map[string][]models.ContentItem{
		"stocks": {old, offTopic, lowScore, freshPost("keep", "AAPL", 20)},
	}}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	resp, err := svc.Search(context.Background(), "AAPL", "24h")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "keep", resp.Data[0].SourceID)
}

func TestSearchIncludesQualifyingComments(t *testing.T) {
	post := freshPost("p1", "AAPL", 20)
	good := models.ContentItem{
		SourceID: "c1", Kind: models.KindComment, Subreddit: "stocks",
		Body: "AAPL is holding support well here.", Score: 8,
		CreatedAt: time.Now().Unix(),
	}
	lowScore := good
	lowScore.SourceID = "c2"
	lowScore.Score = 1

	source := &fakeSource{
		posts:    map[string][]models.ContentItem{"stocks": {post}},
		comments: map[string][]models.ContentItem{"p1": {good, lowScore}},
	}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	resp, err := svc.Search(context.Background(), "AAPL", "24h")
	require.NoError(t, err)

	ids := make([]string, 0, len(resp.Data))
	for _, item := range resp.Data {
		ids = append(ids, item.SourceID)
	}
	assert.Equal(t, []string{"p1", "c1"}, ids)
	assert.Equal(t, 1, resp.Summary.Posts)
	assert.Equal(t, 1, resp.Summary.Comments)
}

func TestSearchSummaryAndCap(t *testing.T) {
	var posts []models.ContentItem
	for i := 0; i < 30; i++ {
		posts = append(posts, freshPost(fmt.Sprintf("p%d", i), "AAPL", 20+i))
	}
	source := &fakeSource{posts: map[string][]models.ContentItem{"stocks": posts}}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	resp, err := svc.Search(context.Background(), "AAPL", "24h")
	require.NoError(t, err)

	assert.Len(t, resp.Data, responseItemCap, "response body is capped")
	assert.Equal(t, 30, resp.Summary.TotalItems, "summary covers every analyzed item")
	assert.Equal(t, 30, resp.Summary.SentimentBreakdown[models.SentimentPositive])
	assert.Greater(t, resp.Summary.AverageScore, 0.0)
	assert.NotEqual(t, "No data", resp.Summary.TimeframeCoverage)
}

func TestSearchNoResultsSummary(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.ContentItem{"stocks": nil}}
	svc := NewService(testConfig(), source, &fakeSentiment{}, nil)

	resp, err := svc.Search(context.Background(), "AAPL", "24h")
	require.NoError(t, err)

	assert.Empty(t, resp.Data)
	assert.Equal(t, 0, resp.Summary.TotalItems)
	assert.Equal(t, "No data", resp.Summary.TimeframeCoverage)
	assert.Contains(t, resp.Summary.SentimentBreakdown, models.SentimentMixed)
}
