package stream

import "github.com/khirayama/reader-sub001/internal/api"

// Store owns every view's state. It is the single mutable resource of
// the aggregation core: all cross-view consistency flows through its
// narrow operation set. Store is not safe for concurrent use; the
// Coordinator serializes access.
type Store struct {
	views map[string]*View
}

func NewStore() *Store {
	return &Store{views: make(map[string]*View)}
}

// Ensure returns the view for id, creating it Uninitialized if absent.
func (s *Store) Ensure(id string) *View {
	if v, ok := s.views[id]; ok {
		return v
	}
	v := &View{ID: id, Page: 1, HasMore: true}
	s.views[id] = v
	return v
}

// Get returns the view for id if it exists.
func (s *Store) Get(id string) (*View, bool) {
	v, ok := s.views[id]
	return v, ok
}

// IDs returns the ids of all existing views.
func (s *Store) IDs() []string {
	out := make([]string, 0, len(s.views))
	for id := range s.views {
		out = append(out, id)
	}
	return out
}

// Reset clears a view's articles and rewinds its cursor to page 1. The
// scroll offset is cleared too: after a reset the old offset points
// into content that no longer exists.
func (s *Store) Reset(id string) {
	v, ok := s.views[id]
	if !ok {
		return
	}
	v.Articles = nil
	v.Page = 1
	v.HasMore = true
	v.Loading = false
	v.Loaded = false
	v.ScrollOffset = 0
	v.gen++
}

// Generation returns a view's reset generation; loads capture it so a
// reset can invalidate their response while it is in flight.
func (s *Store) Generation(id string) int {
	if v, ok := s.views[id]; ok {
		return v.gen
	}
	return 0
}

// Drop removes a view entirely (its owning tag was deleted, or the
// selected feed changed).
func (s *Store) Drop(id string) {
	delete(s.views, id)
}

// AppendPage applies one server page to a view. Page 1 replaces the
// article list; later pages append, preserving existing order and
// skipping any article id already present — first-seen wins its
// position. Pages arrive pre-sorted, so no re-sort happens here.
func (s *Store) AppendPage(id string, page int, articles []api.Article, hasNext bool) {
	v := s.Ensure(id)

	if page <= 1 {
		v.Articles = append([]api.Article(nil), articles...)
	} else {
		seen := make(map[string]struct{}, len(v.Articles))
		for _, a := range v.Articles {
			seen[a.ID] = struct{}{}
		}
		for _, a := range articles {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			v.Articles = append(v.Articles, a)
		}
	}

	v.Page = page + 1
	v.HasMore = hasNext
	v.Loading = false
	v.Loaded = true
}

// ApplyMutation fans a state patch out to every view holding a copy of
// the article. This is the sole path by which read/bookmark changes
// propagate; it never touches the network.
func (s *Store) ApplyMutation(articleID string, patch Patch) {
	for _, v := range s.views {
		for i := range v.Articles {
			if v.Articles[i].ID == articleID {
				patch.apply(&v.Articles[i])
				break
			}
		}
	}
}

// Find returns any view's copy of the article, preferring none in
// particular — copies are identical by the fan-out invariant.
func (s *Store) Find(articleID string) (api.Article, bool) {
	for _, v := range s.views {
		for i := range v.Articles {
			if v.Articles[i].ID == articleID {
				return v.Articles[i], true
			}
		}
	}
	return api.Article{}, false
}

// RememberScroll records a view's scroll offset across view switches.
func (s *Store) RememberScroll(id string, offset int) {
	if v, ok := s.views[id]; ok {
		v.ScrollOffset = offset
	}
}

// RecallScroll returns the last remembered offset, or 0 for an unknown
// view.
func (s *Store) RecallScroll(id string) int {
	if v, ok := s.views[id]; ok {
		return v.ScrollOffset
	}
	return 0
}
