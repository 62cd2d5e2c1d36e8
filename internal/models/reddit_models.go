package models

type RedditAPIResponse struct {
	Data RedditAPIData `json:"data"`
}

type RedditAPIData struct {
	After    string           `json:"after"`
	Children []RedditAPIChild `json:"children"`
}

type RedditAPIChild struct {
	Kind string             `json:"kind"`
	Data RedditAPIChildData `json:"data"`
}

type RedditAPIChildData struct {
	ID         string  `json:"id"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Body       string  `json:"body"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Score      int     `json:"score"`
	Ups        int     `json:"ups"`
	NumComments int    `json:"num_comments"`
	LinkID     string  `json:"link_id"`
	CreatedUTC float64 `json:"created_utc"`
}
