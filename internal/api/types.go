package api

import "time"

// FeedRef is the denormalized feed information attached to an article.
type FeedRef struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Favicon string `json:"favicon,omitempty"`
}

// Article is the server's canonical article row. The client holds
// denormalized copies that may transiently diverge after an optimistic
// update and are reconciled on the next fetch.
type Article struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Description  string     `json:"description,omitempty"`
	PublishedAt  time.Time  `json:"publishedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	IsRead       bool       `json:"isRead"`
	ReadAt       *time.Time `json:"readAt,omitempty"`
	IsBookmarked bool       `json:"isBookmarked"`
	BookmarkedAt *time.Time `json:"bookmarkedAt,omitempty"`
	Feed         FeedRef    `json:"feed"`
}

// Tag is a user-defined label over feeds. The client only reads tag
// identity; tag management lives on the server.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	FeedCount int    `json:"feedCount"`
}

// Pagination reports the page just served and whether another exists.
type Pagination struct {
	Page    int  `json:"page"`
	HasNext bool `json:"hasNext"`
}

// ArticlePage is one page of articles, pre-sorted by the server as
// (publishedAt desc, createdAt desc).
type ArticlePage struct {
	Articles   []Article  `json:"articles"`
	Pagination Pagination `json:"pagination"`
}

// ListArticlesOpts narrows an article listing. Zero values are omitted
// from the query string.
type ListArticlesOpts struct {
	Page   int
	Limit  int
	FeedID string
	TagID  string
	Search string
}

// ImportResult is the server's summary of an OPML import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}
