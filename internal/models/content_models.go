package models

const (
	KindPost    = "post"
	KindComment = "comment"
)

// ContentItem is one ingested post or comment. Immutable once written to raw
// storage.
type ContentItem struct {
	SourceID    string `json:"id"`
	Kind        string `json:"type"`
	PostID      string `json:"post_id,omitempty"`
	Subreddit   string `json:"subreddit"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments,omitempty"`
	CreatedAt   int64  `json:"created_utc"`
	URL         string `json:"url,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

// RawBatch is the envelope written to raw storage, one object per ingestion
// run.
type RawBatch struct {
	Metadata BatchMetadata `json:"metadata"`
	Data     []ContentItem `json:"data"`
}

type BatchMetadata struct {
	Timestamp  string   `json:"timestamp"`
	TotalItems int      `json:"total_items"`
	Subreddits []string `json:"processed_subreddits"`
	Keywords   []string `json:"keywords"`
}

// DedupState is the collector-owned watermark plus the recent-ID set. The map
// value is the item's created_utc, which is what lets the store prune entries
// that have fallen out of the grace window.
type DedupState struct {
	Watermark int64            `json:"watermark"`
	RecentIDs map[string]int64 `json:"recent_ids"`
}

// Seen reports whether an ID is in the recent-ID set.
func (s DedupState) Seen(id string) bool {
	_, ok := s.RecentIDs[id]
	return ok
}
