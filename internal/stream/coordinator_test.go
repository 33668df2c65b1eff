package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/khirayama/reader-sub001/internal/api"
	"github.com/khirayama/reader-sub001/internal/retry"
)

// fakeClient implements Client with scripted pages and call counting.
type fakeClient struct {
	mu        sync.Mutex
	listCalls []api.ListArticlesOpts
	pageFn    func(opts api.ListArticlesOpts) (*api.ArticlePage, error)
	tags      []api.Tag

	readCalls     []string
	bookmarkCalls []string
	refreshCalls  int

	// When non-nil, ListArticles blocks until the channel closes.
	gate chan struct{}
}

func (f *fakeClient) ListArticles(ctx context.Context, opts api.ListArticlesOpts) (*api.ArticlePage, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, opts)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return f.pageFn(opts)
}

func (f *fakeClient) ListTags(ctx context.Context, limit int) ([]api.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags, nil
}

func (f *fakeClient) MarkArticleRead(ctx context.Context, articleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, articleID)
	return nil
}

func (f *fakeClient) SetBookmark(ctx context.Context, articleID string, bookmarked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarkCalls = append(f.bookmarkCalls, fmt.Sprintf("%s=%t", articleID, bookmarked))
	return nil
}

func (f *fakeClient) RefreshFeeds(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return nil
}

func (f *fakeClient) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

// pageOf builds n sequential articles with ids "<prefix><i>".
func pageOf(prefix string, start, n int) []api.Article {
	out := make([]api.Article, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, art(fmt.Sprintf("%s%d", prefix, start+i)))
	}
	return out
}

func staticPage(articles []api.Article, hasNext bool) func(api.ListArticlesOpts) (*api.ArticlePage, error) {
	return func(api.ListArticlesOpts) (*api.ArticlePage, error) {
		return &api.ArticlePage{
			Articles:   articles,
			Pagination: api.Pagination{HasNext: hasNext},
		}, nil
	}
}

func newTestCoordinator(t *testing.T, fc *fakeClient, opts ...CoordinatorOption) *Coordinator {
	t.Helper()
	return NewCoordinator(fc, retry.New(), opts...)
}

func TestLoadInitialPage(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a", "b"), false)}
	c := newTestCoordinator(t, fc, WithPageSize(20))

	if err := c.Load(context.Background(), ViewAll); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap, ok := c.Snapshot(ViewAll)
	if !ok {
		t.Fatal("expected all view to exist")
	}
	if len(snap.Articles) != 2 || !snap.Loaded || snap.Loading || snap.HasMore {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	opts := fc.listCalls[0]
	if opts.Page != 1 || opts.Limit != 20 || opts.TagID != "" || opts.FeedID != "" {
		t.Errorf("unexpected request opts: %+v", opts)
	}
}

func TestLoadIsNoOpWhenReady(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)

	c.Load(context.Background(), ViewAll)
	c.Load(context.Background(), ViewAll)

	if n := fc.listCount(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestConcurrentLoadsSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	fc := &fakeClient{pageFn: staticPage(arts("a"), false), gate: gate}
	c := newTestCoordinator(t, fc)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Load(context.Background(), ViewAll)
		}()
	}

	// Let the racing goroutines hit the guard, then release the one
	// in-flight request.
	close(gate)
	wg.Wait()

	if n := fc.listCount(); n != 1 {
		t.Errorf("expected 1 in-flight request, got %d", n)
	}
}

func TestLoadMorePaginates(t *testing.T) {
	fc := &fakeClient{}
	fc.pageFn = func(opts api.ListArticlesOpts) (*api.ArticlePage, error) {
		switch opts.Page {
		case 1:
			return &api.ArticlePage{Articles: pageOf("a", 0, 20), Pagination: api.Pagination{HasNext: true}}, nil
		case 2:
			return &api.ArticlePage{Articles: pageOf("a", 20, 20), Pagination: api.Pagination{HasNext: false}}, nil
		}
		t.Errorf("unexpected page request %d", opts.Page)
		return &api.ArticlePage{}, nil
	}
	c := newTestCoordinator(t, fc)

	ctx := context.Background()
	c.Load(ctx, ViewAll)
	if err := c.LoadMore(ctx, ViewAll); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	snap, _ := c.Snapshot(ViewAll)
	if len(snap.Articles) != 40 {
		t.Fatalf("expected 40 articles, got %d", len(snap.Articles))
	}
	if snap.Articles[0].ID != "a0" || snap.Articles[39].ID != "a39" {
		t.Errorf("order broken: first=%s last=%s", snap.Articles[0].ID, snap.Articles[39].ID)
	}
	if snap.HasMore {
		t.Error("expected HasMore=false after final page")
	}

	// Exhausted: further LoadMore must not hit the network
	c.LoadMore(ctx, ViewAll)
	if n := fc.listCount(); n != 2 {
		t.Errorf("expected 2 requests total, got %d", n)
	}
}

func TestLoadFailureLeavesViewReady(t *testing.T) {
	fail := true
	fc := &fakeClient{}
	fc.pageFn = func(api.ListArticlesOpts) (*api.ArticlePage, error) {
		if fail {
			return nil, &api.DomainError{Status: 500, Message: "boom"}
		}
		return &api.ArticlePage{Articles: arts("a"), Pagination: api.Pagination{}}, nil
	}
	c := newTestCoordinator(t, fc)

	if err := c.Load(context.Background(), ViewAll); err == nil {
		t.Fatal("expected load error")
	}

	snap, _ := c.Snapshot(ViewAll)
	if !snap.Loaded || snap.Loading {
		t.Errorf("failed view must end Ready, not stuck Loading: %+v", snap)
	}
	if len(snap.Articles) != 0 {
		t.Errorf("expected empty view, got %d articles", len(snap.Articles))
	}

	// Refresh recovers
	fail = false
	if err := c.Refresh(context.Background(), ViewAll); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap, _ = c.Snapshot(ViewAll)
	if len(snap.Articles) != 1 {
		t.Errorf("expected 1 article after refresh, got %d", len(snap.Articles))
	}
}

func TestMarkReadOptimisticFanOut(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a", "b"), false)}
	c := newTestCoordinator(t, fc)

	ctx := context.Background()
	c.Load(ctx, ViewAll)
	c.Load(ctx, TagViewID("t1"))

	push := c.MarkRead("b")
	if push == nil {
		t.Fatal("expected a push for an unread article")
	}

	// Patch visible in every view before the network call runs
	for _, viewID := range []string{ViewAll, TagViewID("t1")} {
		snap, _ := c.Snapshot(viewID)
		for _, a := range snap.Articles {
			if a.ID == "b" && (!a.IsRead || a.ReadAt == nil) {
				t.Errorf("view %s: expected optimistic read state, got %+v", viewID, a)
			}
		}
	}
	if len(fc.readCalls) != 0 {
		t.Fatal("no network call may happen before push")
	}

	if err := push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(fc.readCalls) != 1 || fc.readCalls[0] != "b" {
		t.Errorf("expected exactly one read call for b, got %v", fc.readCalls)
	}

	// Already read: no second push
	if c.MarkRead("b") != nil {
		t.Error("expected nil push for an already-read article")
	}
}

func TestMarkReadUnknownArticle(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)
	c.Load(context.Background(), ViewAll)

	if c.MarkRead("zzz") != nil {
		t.Error("expected nil push for unknown article")
	}
}

func TestToggleBookmark(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)
	ctx := context.Background()
	c.Load(ctx, ViewAll)

	push := c.ToggleBookmark("a")
	if push == nil {
		t.Fatal("expected a push")
	}
	snap, _ := c.Snapshot(ViewAll)
	if !snap.Articles[0].IsBookmarked || snap.Articles[0].BookmarkedAt == nil {
		t.Errorf("expected bookmarked with timestamp: %+v", snap.Articles[0])
	}
	push(ctx)

	// Toggle off clears the timestamp
	push = c.ToggleBookmark("a")
	snap, _ = c.Snapshot(ViewAll)
	if snap.Articles[0].IsBookmarked || snap.Articles[0].BookmarkedAt != nil {
		t.Errorf("expected unbookmarked: %+v", snap.Articles[0])
	}
	push(ctx)

	want := []string{"a=true", "a=false"}
	if len(fc.bookmarkCalls) != 2 || fc.bookmarkCalls[0] != want[0] || fc.bookmarkCalls[1] != want[1] {
		t.Errorf("expected %v, got %v", want, fc.bookmarkCalls)
	}
}

func TestSearchResetsAllViews(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)
	ctx := context.Background()
	c.Load(ctx, ViewAll)
	c.Load(ctx, TagViewID("t1"))

	if !c.Search("golang") {
		t.Fatal("expected Search to report a change")
	}
	for _, viewID := range []string{ViewAll, TagViewID("t1")} {
		snap, _ := c.Snapshot(viewID)
		if snap.Loaded || len(snap.Articles) != 0 {
			t.Errorf("view %s not reset: %+v", viewID, snap)
		}
	}

	// Next load carries the term
	c.Load(ctx, ViewAll)
	last := fc.listCalls[len(fc.listCalls)-1]
	if last.Search != "golang" {
		t.Errorf("expected search in request, got %+v", last)
	}

	// Unchanged term is a no-op
	if c.Search("golang") {
		t.Error("expected false for unchanged term")
	}
}

func TestLoadTagsDerivesViews(t *testing.T) {
	fc := &fakeClient{
		pageFn: staticPage(arts("a"), false),
		tags:   []api.Tag{{ID: "t1", Name: "Go"}, {ID: "t2", Name: "Rust"}},
	}
	c := newTestCoordinator(t, fc)

	ctx := context.Background()
	if err := c.LoadTags(ctx); err != nil {
		t.Fatalf("LoadTags: %v", err)
	}
	for _, id := range []string{TagViewID("t1"), TagViewID("t2")} {
		if _, ok := c.Snapshot(id); !ok {
			t.Errorf("expected view %s to exist", id)
		}
	}

	// Tag t2 deleted server-side: its view goes away, and if it was
	// active the selection falls back to All.
	c.Select(TagViewID("t2"))
	fc.mu.Lock()
	fc.tags = fc.tags[:1]
	fc.mu.Unlock()
	if err := c.LoadTags(ctx); err != nil {
		t.Fatalf("LoadTags: %v", err)
	}
	if _, ok := c.Snapshot(TagViewID("t2")); ok {
		t.Error("expected tag:t2 view to be dropped")
	}
	if c.Active() != ViewAll {
		t.Errorf("expected active view to fall back to all, got %s", c.Active())
	}
}

func TestSelectFeedSwapsView(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)

	viewID, changed := c.SelectFeed("f1")
	if !changed || viewID != FeedViewID("f1") {
		t.Fatalf("unexpected result: %s %t", viewID, changed)
	}
	if _, ok := c.Snapshot(viewID); !ok {
		t.Fatal("expected feed view to exist")
	}

	// Same feed again: no change
	if _, changed := c.SelectFeed("f1"); changed {
		t.Error("expected no change for same feed")
	}

	// Different feed: old view dropped
	c.SelectFeed("f2")
	if _, ok := c.Snapshot(FeedViewID("f1")); ok {
		t.Error("expected feed:f1 to be dropped")
	}

	// Clearing while the feed view is active falls back to All
	c.Select(FeedViewID("f2"))
	if _, changed := c.SelectFeed(""); !changed {
		t.Error("expected change when clearing")
	}
	if c.Active() != ViewAll {
		t.Errorf("expected all active, got %s", c.Active())
	}
}

func TestStaleResponseForDroppedViewDiscarded(t *testing.T) {
	gate := make(chan struct{})
	fc := &fakeClient{pageFn: staticPage(arts("a"), false), gate: gate}
	c := newTestCoordinator(t, fc)

	c.SelectFeed("f1")
	done := make(chan error, 1)
	go func() {
		done <- c.Load(context.Background(), FeedViewID("f1"))
	}()

	// Wait until the request is in flight, then drop the view
	for fc.listCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	c.SelectFeed("")
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("stale load must not error: %v", err)
	}
	if _, ok := c.Snapshot(FeedViewID("f1")); ok {
		t.Error("stale response must not resurrect the dropped view")
	}
}

func TestResetDuringLoadInvalidatesResponse(t *testing.T) {
	gate := make(chan struct{})
	fc := &fakeClient{gate: gate}
	fc.pageFn = func(opts api.ListArticlesOpts) (*api.ArticlePage, error) {
		if opts.Search == "" {
			return &api.ArticlePage{Articles: arts("old1", "old2")}, nil
		}
		return &api.ArticlePage{Articles: arts("new1")}, nil
	}
	c := newTestCoordinator(t, fc)

	done := make(chan error, 1)
	go func() {
		done <- c.Load(context.Background(), ViewAll)
	}()
	for fc.listCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Filter change while the old-predicate request is in flight
	fc.mu.Lock()
	fc.gate = nil
	fc.mu.Unlock()
	if !c.Search("golang") {
		t.Fatal("expected Search to reset")
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("stale load must not error: %v", err)
	}

	// The pre-reset response must not repopulate the reset view
	snap, _ := c.Snapshot(ViewAll)
	if len(snap.Articles) != 0 {
		t.Fatalf("stale articles applied to reset view: %+v", snap.Articles)
	}
	if snap.Loaded {
		t.Fatal("stale response must not mark the reset view Ready")
	}

	// The view remains loadable under the new predicate
	if err := c.Load(context.Background(), ViewAll); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap, _ = c.Snapshot(ViewAll)
	if len(snap.Articles) != 1 || snap.Articles[0].ID != "new1" {
		t.Errorf("expected new-term results, got %+v", snap.Articles)
	}
}

func TestResetDuringLoadMoreDiscardsStaleAppend(t *testing.T) {
	gate := make(chan struct{})
	fc := &fakeClient{}
	fc.pageFn = func(opts api.ListArticlesOpts) (*api.ArticlePage, error) {
		if opts.Page == 1 {
			return &api.ArticlePage{Articles: pageOf("a", 0, 20), Pagination: api.Pagination{HasNext: true}}, nil
		}
		return &api.ArticlePage{Articles: pageOf("a", 20, 20), Pagination: api.Pagination{}}, nil
	}
	c := newTestCoordinator(t, fc)
	c.Load(context.Background(), ViewAll)

	fc.mu.Lock()
	fc.gate = gate
	fc.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- c.LoadMore(context.Background(), ViewAll)
	}()
	for fc.listCount() < 2 {
		time.Sleep(time.Millisecond)
	}

	c.ResetAll()
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("stale load-more must not error: %v", err)
	}

	snap, _ := c.Snapshot(ViewAll)
	if len(snap.Articles) != 0 {
		t.Errorf("stale page appended after reset: %d articles", len(snap.Articles))
	}
	if snap.Loaded {
		t.Error("stale response must not mark the reset view Ready")
	}
}

func TestRefreshAll(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)
	ctx := context.Background()
	c.Load(ctx, ViewAll)

	if err := c.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if fc.refreshCalls != 1 {
		t.Errorf("expected 1 refresh call, got %d", fc.refreshCalls)
	}
	snap, _ := c.Snapshot(ViewAll)
	if snap.Loaded || len(snap.Articles) != 0 {
		t.Errorf("expected views reset after refresh-all: %+v", snap)
	}
}

func TestTabsOrderAndUnread(t *testing.T) {
	fc := &fakeClient{
		tags: []api.Tag{{ID: "t1", Name: "Go"}},
	}
	fc.pageFn = func(opts api.ListArticlesOpts) (*api.ArticlePage, error) {
		a := art("a")
		b := art("b")
		b.IsRead = true
		return &api.ArticlePage{Articles: []api.Article{a, b}}, nil
	}
	c := newTestCoordinator(t, fc)

	ctx := context.Background()
	c.LoadTags(ctx)
	c.SelectFeed("f1")
	c.Load(ctx, ViewAll)

	tabs := c.Tabs()
	if len(tabs) != 3 {
		t.Fatalf("expected 3 tabs, got %d", len(tabs))
	}
	if tabs[0].ID != ViewAll || tabs[1].ID != TagViewID("t1") || tabs[2].ID != FeedViewID("f1") {
		t.Errorf("unexpected tab order: %+v", tabs)
	}
	if tabs[0].Unread != 1 {
		t.Errorf("expected 1 unread in All, got %d", tabs[0].Unread)
	}
	if tabs[1].Label != "Go" {
		t.Errorf("expected tag name label, got %q", tabs[1].Label)
	}
}

func TestScrollMemoryThroughCoordinator(t *testing.T) {
	fc := &fakeClient{pageFn: staticPage(arts("a"), false)}
	c := newTestCoordinator(t, fc)
	c.Load(context.Background(), ViewAll)

	c.RememberScroll(ViewAll, 12)
	if got := c.RecallScroll(ViewAll); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}

	// Reset clears the memory along with the content
	c.ResetAll()
	if got := c.RecallScroll(ViewAll); got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
}
