package clients

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/altsignal/tickersent/internal/models"
)

const (
	REDDIT_AUTH_URL = "https://www.reddit.com/api/v1/access_token"
	REDDIT_API_URL  = "https://oauth.reddit.com"
)

// ErrSourceUnavailable marks content-source failures that survived the retry
// budget (auth, rate limiting, network).
var ErrSourceUnavailable = errors.New("content source unavailable")

var (
	redditClientInstance *RedditClient
	redditClientOnce     sync.Once
)

type RedditClient struct {
	Config *clientcredentials.Config
	Client *http.Client
	mu     *sync.Mutex
}

func GetRedditClient() *RedditClient {
	redditClientOnce.Do(func() {
		oauthConf := &clientcredentials.Config{
			ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
			ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
			TokenURL:     REDDIT_AUTH_URL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}

		redditClientInstance = &RedditClient{
			Config: oauthConf,
			Client: oauthConf.Client(context.Background()),
			mu:     &sync.Mutex{},
		}
	})

	return redditClientInstance
}

func (rc *RedditClient) RefreshClient() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Client = rc.Config.Client(context.Background())
}

// FetchNewPosts returns the newest posts of a subreddit mapped to ContentItems.
func (rc *RedditClient) FetchNewPosts(ctx context.Context, subreddit string, limit int) ([]models.ContentItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new", REDDIT_API_URL, subreddit)
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	body, err := rc.getWithRetry(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp models.RedditAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to decode listing: %w", err)
	}

	return postsToContentItems(resp, subreddit), nil
}

// SearchPosts runs a keyword search restricted to one subreddit, newest first.
func (rc *RedditClient) SearchPosts(ctx context.Context, subreddit, query string, limit int) ([]models.ContentItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/search", REDDIT_API_URL, subreddit)
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "new")
	params.Set("restrict_sr", "true")
	params.Set("limit", strconv.Itoa(limit))

	body, err := rc.getWithRetry(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp models.RedditAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to decode search listing: %w", err)
	}

	return postsToContentItems(resp, subreddit), nil
}

// FetchComments returns top-level comments of a post. The Reddit comments
// endpoint responds with a two-element array: the post listing and the
// comment listing.
func (rc *RedditClient) FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.ContentItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/comments/%s", REDDIT_API_URL, subreddit, postID)
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("depth", "1")

	body, err := rc.getWithRetry(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var listings []models.RedditAPIResponse
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to decode comment listing: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	items := make([]models.ContentItem, 0, len(listings[1].Data.Children))
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		d := child.Data
		items = append(items, models.ContentItem{
			SourceID:    d.ID,
			Kind:        models.KindComment,
			PostID:      postID,
			Subreddit:   subreddit,
			Body:        truncate(d.Body, 5000),
			Score:       d.Score,
			CreatedAt:   int64(d.CreatedUTC),
			URL:         d.Permalink,
			ContentHash: ContentHash(d.Body),
		})
	}
	return items, nil
}

func (rc *RedditClient) getWithRetry(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	backoff := INITIAL_BACKOFF
	var lastErr error

	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		body, retryable, err := rc.get(ctx, endpoint, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}

		slog.Warn("[RedditClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitter(backoff)):
		}

		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, lastErr)
}

func (rc *RedditClient) get(ctx context.Context, endpoint string, params url.Values) (body []byte, retryable bool, err error) {
	parsedUrl, err := url.Parse(endpoint)
	if err != nil {
		return nil, false, fmt.Errorf("[RedditClient] Failed to parse URL: %w", err)
	}
	parsedUrl.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedUrl.String(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := rc.Client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return b, false, nil
	case http.StatusUnauthorized:
		slog.Warn("[RedditClient] Token expired - Refreshing and Retrying...")
		rc.RefreshClient()
		return nil, true, fmt.Errorf("reddit auth expired")
	case http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("reddit rate limited (429)")
	default:
		return nil, resp.StatusCode >= 500, fmt.Errorf("reddit responded with status %d", resp.StatusCode)
	}
}

func postsToContentItems(resp models.RedditAPIResponse, subreddit string) []models.ContentItem {
	items := make([]models.ContentItem, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		d := child.Data
		score := d.Score
		if score == 0 {
			score = d.Ups
		}
		items = append(items, models.ContentItem{
			SourceID:    d.ID,
			Kind:        models.KindPost,
			Subreddit:   subreddit,
			Title:       truncate(d.Title, 500),
			Body:        truncate(d.Selftext, 10000),
			Score:       score,
			NumComments: d.NumComments,
			CreatedAt:   int64(d.CreatedUTC),
			URL:         d.URL,
			ContentHash: ContentHash(d.Title + d.Selftext),
		})
	}
	return items
}

// ContentHash fingerprints item text so re-ingested duplicates are detectable
// downstream.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	// up to +25%
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
