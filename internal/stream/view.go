// Package stream maintains independent, paginated views over a shared
// article corpus and keeps them mutually consistent when one article's
// state changes.
package stream

import (
	"strings"
	"time"

	"github.com/khirayama/reader-sub001/internal/api"
)

// ViewAll is the id of the unfiltered "all articles" view. Tag and feed
// views use prefixed ids so the two id spaces cannot collide.
const ViewAll = "all"

const (
	tagPrefix  = "tag:"
	feedPrefix = "feed:"
)

func TagViewID(tagID string) string   { return tagPrefix + tagID }
func FeedViewID(feedID string) string { return feedPrefix + feedID }

// TagID returns the tag id for a tag view, or "" for any other view.
func TagID(viewID string) string {
	if strings.HasPrefix(viewID, tagPrefix) {
		return viewID[len(tagPrefix):]
	}
	return ""
}

// FeedID returns the feed id for a feed view, or "" for any other view.
func FeedID(viewID string) string {
	if strings.HasPrefix(viewID, feedPrefix) {
		return viewID[len(feedPrefix):]
	}
	return ""
}

// View is one independently-paginated projection of the corpus.
// Articles keep the server's sort order (publishedAt desc, createdAt
// desc); the next page to request is Page.
type View struct {
	ID           string
	Articles     []api.Article
	Page         int
	HasMore      bool
	Loading      bool
	Loaded       bool
	ScrollOffset int

	// gen increments on every reset. A response captured under an older
	// generation belongs to a predicate that no longer exists and must
	// be discarded, never applied.
	gen int
}

// Patch is the set of article fields a mutation may change. It always
// carries all four so the read/bookmark invariants (unread implies nil
// ReadAt, unbookmarked implies nil BookmarkedAt) travel together.
type Patch struct {
	IsRead       bool
	ReadAt       *time.Time
	IsBookmarked bool
	BookmarkedAt *time.Time
}

// apply overwrites the denormalized state fields, leaving content
// fields untouched.
func (p Patch) apply(a *api.Article) {
	a.IsRead = p.IsRead
	a.ReadAt = p.ReadAt
	a.IsBookmarked = p.IsBookmarked
	a.BookmarkedAt = p.BookmarkedAt
}
