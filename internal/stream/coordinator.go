package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khirayama/reader-sub001/internal/api"
	"github.com/khirayama/reader-sub001/internal/retry"
)

const defaultPageSize = 20

// Client is the slice of the server API the aggregation core consumes.
type Client interface {
	ListArticles(ctx context.Context, opts api.ListArticlesOpts) (*api.ArticlePage, error)
	ListTags(ctx context.Context, limit int) ([]api.Tag, error)
	MarkArticleRead(ctx context.Context, articleID string) error
	SetBookmark(ctx context.Context, articleID string, bookmarked bool) error
	RefreshFeeds(ctx context.Context) error
}

// Coordinator orchestrates which views exist, when each must be
// (re)initialized, and routes loads and mutations to the Store through
// the retry layer. All view mutation passes through it under one lock,
// which is what makes the single-flight guards and the cross-view
// consistency invariant hold.
type Coordinator struct {
	mu    sync.Mutex
	store *Store

	client  Client
	retrier *retry.Coordinator
	log     *zap.Logger

	pageSize int
	tags     []api.Tag
	search   string
	feedID   string
	active   string

	nowFn func() time.Time
}

type CoordinatorOption func(*Coordinator)

func WithPageSize(n int) CoordinatorOption {
	return func(c *Coordinator) { c.pageSize = n }
}

func WithCoordinatorLogger(log *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

func NewCoordinator(client Client, retrier *retry.Coordinator, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:    NewStore(),
		client:   client,
		retrier:  retrier,
		log:      zap.NewNop(),
		pageSize: defaultPageSize,
		active:   ViewAll,
		nowFn:    time.Now,
	}
	c.store.Ensure(ViewAll)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot is the per-view read model exposed to the UI.
type Snapshot struct {
	ID           string
	Articles     []api.Article
	Loading      bool
	Loaded       bool
	HasMore      bool
	ScrollOffset int
}

// Tab is one entry in the UI's view switcher.
type Tab struct {
	ID     string
	Label  string
	Unread int
}

// LoadTags fetches the tag list and derives the set of tag views:
// views for new tags are created, views for deleted tags destroyed.
func (c *Coordinator) LoadTags(ctx context.Context) error {
	var tags []api.Tag
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		t, err := c.client.ListTags(ctx, 100)
		if err != nil {
			return err
		}
		tags = t
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = tags

	alive := map[string]bool{ViewAll: true}
	for _, t := range tags {
		alive[TagViewID(t.ID)] = true
		c.store.Ensure(TagViewID(t.ID))
	}
	if c.feedID != "" {
		alive[FeedViewID(c.feedID)] = true
	}
	for _, id := range c.store.IDs() {
		if !alive[id] {
			c.store.Drop(id)
		}
	}
	if !alive[c.active] {
		c.active = ViewAll
	}
	return nil
}

// Select makes a view active and reports whether it still needs its
// initial load.
func (c *Coordinator) Select(viewID string) (needLoad bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = viewID
	v := c.store.Ensure(viewID)
	return !v.Loaded && !v.Loading
}

// Active returns the active view id.
func (c *Coordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Load issues a view's initial page-1 request. It is a no-op when the
// view is already loading or already Ready.
func (c *Coordinator) Load(ctx context.Context, viewID string) error {
	return c.loadPage(ctx, viewID, true)
}

// LoadMore requests a view's next page. It is a no-op when a request
// is already in flight or the server reported no next page — the
// single-flight guard that keeps pagination serialized per view.
func (c *Coordinator) LoadMore(ctx context.Context, viewID string) error {
	return c.loadPage(ctx, viewID, false)
}

// Refresh resets a view and reloads it from page 1.
func (c *Coordinator) Refresh(ctx context.Context, viewID string) error {
	c.mu.Lock()
	if v, ok := c.store.Get(viewID); ok && v.Loading {
		c.mu.Unlock()
		return nil
	}
	c.store.Reset(viewID)
	c.mu.Unlock()
	return c.loadPage(ctx, viewID, true)
}

func (c *Coordinator) loadPage(ctx context.Context, viewID string, initial bool) error {
	c.mu.Lock()
	v := c.store.Ensure(viewID)
	if v.Loading || (initial && v.Loaded) || (!initial && !v.HasMore) {
		c.mu.Unlock()
		return nil
	}
	v.Loading = true
	page := v.Page
	gen := v.gen
	opts := api.ListArticlesOpts{
		Page:   page,
		Limit:  c.pageSize,
		TagID:  TagID(viewID),
		FeedID: FeedID(viewID),
		Search: c.search,
	}
	c.mu.Unlock()

	var res *api.ArticlePage
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		p, err := c.client.ListArticles(ctx, opts)
		if err != nil {
			return err
		}
		res = p
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.store.Get(viewID)
	if !ok {
		// View destroyed while the request was in flight; the stale
		// response is discarded.
		return nil
	}
	if cur.gen != gen {
		// View reset while the request was in flight (filter change or
		// refresh); the response was computed under the old predicate.
		// The flags are left alone: they now describe the post-reset
		// request, not this one.
		c.log.Debug("stale response discarded",
			zap.String("view", viewID),
			zap.Int("page", page))
		return nil
	}
	if err != nil {
		cur.Loading = false
		cur.Loaded = true
		c.log.Warn("page load failed",
			zap.String("view", viewID),
			zap.Int("page", page),
			zap.Error(err))
		return fmt.Errorf("loading page %d: %w", page, err)
	}
	c.store.AppendPage(viewID, page, res.Articles, res.Pagination.HasNext)
	c.log.Debug("page applied",
		zap.String("view", viewID),
		zap.Int("page", page),
		zap.Int("count", len(res.Articles)),
		zap.Bool("has_next", res.Pagination.HasNext))
	return nil
}

// MarkRead optimistically marks an article read in every view holding
// it, synchronously, and returns the push that issues the API call
// exactly once. A nil push means nothing needed doing. The optimistic
// patch is not rolled back if the push fails; server truth wins on the
// next reload of the affected views.
func (c *Coordinator) MarkRead(articleID string) (push func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.store.Find(articleID)
	if !ok || a.IsRead {
		return nil
	}
	now := c.nowFn()
	c.store.ApplyMutation(articleID, Patch{
		IsRead:       true,
		ReadAt:       &now,
		IsBookmarked: a.IsBookmarked,
		BookmarkedAt: a.BookmarkedAt,
	})

	return func(ctx context.Context) error {
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.client.MarkArticleRead(ctx, articleID)
		})
		if err != nil {
			return fmt.Errorf("marking read: %w", err)
		}
		return nil
	}
}

// ToggleBookmark flips an article's bookmark state with the same
// optimistic fan-out and deferred push as MarkRead.
func (c *Coordinator) ToggleBookmark(articleID string) (push func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.store.Find(articleID)
	if !ok {
		return nil
	}
	next := !a.IsBookmarked
	var at *time.Time
	if next {
		now := c.nowFn()
		at = &now
	}
	c.store.ApplyMutation(articleID, Patch{
		IsRead:       a.IsRead,
		ReadAt:       a.ReadAt,
		IsBookmarked: next,
		BookmarkedAt: at,
	})

	return func(ctx context.Context) error {
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.client.SetBookmark(ctx, articleID, next)
		})
		if err != nil {
			return fmt.Errorf("setting bookmark: %w", err)
		}
		return nil
	}
}

// Search installs a new global search term and resets every view, whose
// filter predicates all just changed. Returns false when the term is
// unchanged and nothing was reset.
func (c *Coordinator) Search(term string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if term == c.search {
		return false
	}
	c.search = term
	for _, id := range c.store.IDs() {
		c.store.Reset(id)
	}
	return true
}

// SearchTerm returns the current global search term.
func (c *Coordinator) SearchTerm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// SelectFeed swaps the selected-feed view. The previous feed view is
// destroyed; the new one starts Uninitialized. Returns the new view's
// id ("" when feedID is empty) and whether anything changed.
func (c *Coordinator) SelectFeed(feedID string) (viewID string, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if feedID == c.feedID {
		if feedID == "" {
			return "", false
		}
		return FeedViewID(feedID), false
	}
	if c.feedID != "" {
		c.store.Drop(FeedViewID(c.feedID))
	}
	c.feedID = feedID
	if feedID == "" {
		if FeedID(c.active) != "" {
			c.active = ViewAll
		}
		return "", true
	}
	c.store.Ensure(FeedViewID(feedID))
	return FeedViewID(feedID), true
}

// RefreshAll triggers the server-side bulk feed refresh, then resets
// every view so the next selection reloads fresh content.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.client.RefreshFeeds(ctx)
	})
	if err != nil {
		return fmt.Errorf("refreshing feeds: %w", err)
	}
	c.ResetAll()
	return nil
}

// ResetAll resets every view. Also the hook for "a bulk refresh
// completed out-of-band".
func (c *Coordinator) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.store.IDs() {
		c.store.Reset(id)
	}
}

// Snapshot returns a copy of one view's read model.
func (c *Coordinator) Snapshot(viewID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store.Get(viewID)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		ID:           v.ID,
		Articles:     append([]api.Article(nil), v.Articles...),
		Loading:      v.Loading,
		Loaded:       v.Loaded,
		HasMore:      v.HasMore,
		ScrollOffset: v.ScrollOffset,
	}, true
}

// Tabs returns the view switcher entries in display order: all, tags
// in server order, then the selected feed if any.
func (c *Coordinator) Tabs() []Tab {
	c.mu.Lock()
	defer c.mu.Unlock()

	tabs := []Tab{{ID: ViewAll, Label: "All", Unread: c.unreadLocked(ViewAll)}}
	for _, t := range c.tags {
		id := TagViewID(t.ID)
		tabs = append(tabs, Tab{ID: id, Label: t.Name, Unread: c.unreadLocked(id)})
	}
	if c.feedID != "" {
		id := FeedViewID(c.feedID)
		label := c.feedID
		if v, ok := c.store.Get(id); ok && len(v.Articles) > 0 {
			label = v.Articles[0].Feed.Title
		}
		tabs = append(tabs, Tab{ID: id, Label: label, Unread: c.unreadLocked(id)})
	}
	return tabs
}

func (c *Coordinator) unreadLocked(viewID string) int {
	v, ok := c.store.Get(viewID)
	if !ok {
		return 0
	}
	n := 0
	for i := range v.Articles {
		if !v.Articles[i].IsRead {
			n++
		}
	}
	return n
}

// RememberScroll records the active scroll offset for a view.
func (c *Coordinator) RememberScroll(viewID string, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.RememberScroll(viewID, offset)
}

// RecallScroll returns a view's remembered scroll offset.
func (c *Coordinator) RecallScroll(viewID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RecallScroll(viewID)
}
