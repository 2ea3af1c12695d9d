package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rnr-capital/feedengine/cache"
	"github.com/rnr-capital/feedengine/config"
	"github.com/rnr-capital/feedengine/localstore"
	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/ranking"
	"github.com/rnr-capital/feedengine/remote"
	"github.com/rnr-capital/feedengine/retrieval"
	"github.com/rnr-capital/feedengine/seenset"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

type State string

const (
	StateInitialLoad State = "INITIAL_LOAD"
	StateRendered    State = "RENDERED"
	// A load or continuation yielded zero unseen posts. Terminal UI state
	// until the next refresh, not an error.
	StateExhausted State = "EXHAUSTED"
	StateFailed    State = "FAILED"
)

// ErrStaleLoad marks results that arrived for a superseded load (a forced
// refresh happened while the fetch was in flight). The results are
// discarded, never applied to the newer view.
var ErrStaleLoad = errors.New("results arrived for a stale load")

const feedSubscriptionKey = "feed_posts"

type cursor struct {
	PostId    string
	CreatedAt time.Time
}

/*

Session is the per-login feed controller. It owns the pagination cursor, the
seen-set tracker, the local cache and the subscription registry, replacing
the original client's module-level globals: create one on login, Close it on
logout.

State machine per feed session:

	INITIAL_LOAD -> RENDERED -> (SCROLL_CONTINUATION | PERIODIC_POLL | FORCED_REFRESH) -> RENDERED ...

Methods are safe to call from the render layer's callbacks: mutable state is
guarded by one mutex, continuations coalesce behind an in-flight flag, and a
generation token discards fetches that outlive a forced refresh.

*/
type Session struct {
	cfg      *config.Config
	source   remote.Source
	store    localstore.Store
	renderer Renderer

	seen       *seenset.Tracker
	cache      *cache.Cache
	hidden     *retrieval.HiddenAuthors
	dispatcher *retrieval.Dispatcher
	subs       *SubscriptionManager

	userId string

	mu           sync.Mutex
	viewer       *model.ViewerContext
	state        State
	cursor       *cursor
	generation   string
	pendingNew   int
	scrolledAway bool

	loadingMore int32

	pollStop chan struct{}
	now      func() time.Time
}

func NewSession(cfg *config.Config, source remote.Source, store localstore.Store, renderer Renderer, userId string) *Session {
	seen := seenset.New(store)
	return &Session{
		cfg:        cfg,
		source:     source,
		store:      store,
		renderer:   renderer,
		seen:       seen,
		cache:      cache.New(store),
		hidden:     retrieval.NewHiddenAuthors(store),
		dispatcher: retrieval.NewDispatcher(source, seen),
		subs:       NewSubscriptionManager(),
		userId:     userId,
		state:      StateInitialLoad,
		now:        time.Now,
	}
}

// LoadFeed runs the initial load: strategy dispatch, seen filtering,
// ranking, first page render, then arms the scroll continuation and the
// periodic new-posts poll.
func (s *Session) LoadFeed(ctx context.Context) error {
	return s.load(ctx, false)
}

// ForceRefresh discards the pagination cursor and the rendered list and
// re-enters the initial load. In-flight fetches from before the refresh are
// detected by generation token and dropped.
func (s *Session) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	s.cursor = nil
	s.pendingNew = 0
	s.mu.Unlock()

	if err := s.store.Delete(localstore.KeyLastKnownPostTime); err != nil {
		Logger.LogV2.Errorf("could not clear last known post time:", err)
	}
	s.cache.Invalidate(cache.RegionPosts, "")
	return s.load(ctx, true)
}

func (s *Session) load(ctx context.Context, forced bool) error {
	gen := uuid.New().String()
	s.mu.Lock()
	s.generation = gen
	s.state = StateInitialLoad
	s.mu.Unlock()

	s.seen.ResetIfStale()

	viewer, err := s.refreshViewer(ctx)
	if err != nil {
		s.fail(gen, err)
		return err
	}

	target := s.cfg.CandidateTarget
	strategy := retrieval.StrategyFor(viewer)
	if strategy == retrieval.StrategyActive {
		target = s.cfg.ActiveCandidateTarget
	}
	Logger.LogV2.Debugf("feed load for", s.userId, "strategy:", string(strategy))

	var posts []*model.Post
	if cached, ok := s.cache.GetPosts(); ok && !forced {
		posts = cached
	} else {
		posts, err = s.dispatcher.ChainFor(viewer).Fetch(ctx, target)
		if err != nil {
			s.fail(gen, err)
			return err
		}
		s.cache.SetPosts(posts)
	}

	unseen := []*model.Post{}
	for _, p := range posts {
		if !s.seen.IsSeen(p.Id) {
			unseen = append(unseen, p)
		}
	}
	unseen = s.hidden.FilterHidden(unseen)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrStaleLoad
	}
	s.viewer = viewer

	if len(unseen) == 0 {
		s.state = StateExhausted
		s.mu.Unlock()
		s.renderer.ShowCaughtUp(viewer.FollowingCount())
		return nil
	}

	ranking.Sort(unseen, viewer, s.now())
	page := unseen
	if len(page) > s.cfg.PageSize {
		page = page[:s.cfg.PageSize]
	}

	s.state = StateRendered
	s.advanceCursorLocked(page)
	s.mu.Unlock()

	s.renderer.RenderBatch(page, true)
	s.markRendered(page)
	s.recordLoadMarkers(page)

	s.startPoller()
	s.setupRealtimeListener(ctx, viewer)
	return nil
}

// TriggerLoadMore is the scroll-sentinel entry point. Overlapping triggers
// while a continuation fetch is outstanding coalesce into a no-op: exactly
// one fetch is issued.
func (s *Session) TriggerLoadMore(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.loadingMore, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&s.loadingMore, 0)
	return s.loadMore(ctx)
}

func (s *Session) loadMore(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	viewer := s.viewer
	var before time.Time
	if s.cursor != nil {
		before = s.cursor.CreatedAt
	}
	s.mu.Unlock()
	if viewer == nil {
		return errors.New("feed not loaded yet")
	}

	posts, err := s.dispatcher.OlderChain(viewer, before).Fetch(ctx, s.cfg.PageSize)
	if err != nil {
		// Continuations fail quietly; the sentinel fires again on the
		// next scroll.
		Logger.LogV2.Errorf("load more failed:", err)
		return err
	}
	posts = s.hidden.FilterHidden(posts)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrStaleLoad
	}

	if len(posts) == 0 {
		s.state = StateExhausted
		s.mu.Unlock()
		s.renderer.ShowNoMorePosts()
		return nil
	}

	ranking.Sort(posts, viewer, s.now())
	s.state = StateRendered
	s.advanceCursorLocked(posts)
	s.mu.Unlock()

	s.renderer.RenderBatch(posts, false)
	s.markRendered(posts)
	return nil
}

// advanceCursorLocked moves the cursor to the oldest post of the batch. The
// cursor only ever moves backward in time; a batch that would move it
// forward leaves it untouched.
func (s *Session) advanceCursorLocked(batch []*model.Post) {
	oldest := batch[0]
	for _, p := range batch[1:] {
		if p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}
	if s.cursor == nil || oldest.CreatedAt.Before(s.cursor.CreatedAt) {
		s.cursor = &cursor{PostId: oldest.Id, CreatedAt: oldest.CreatedAt}
	}
}

func (s *Session) markRendered(page []*model.Post) {
	ids := make([]string, 0, len(page))
	for _, p := range page {
		ids = append(ids, p.Id)
	}
	s.seen.MarkAllSeen(ids)
}

func (s *Session) recordLoadMarkers(page []*model.Post) {
	nowMs := s.now().UnixNano() / int64(time.Millisecond)
	if err := s.store.Set(localstore.KeyLastFeedUpdate, nowMs); err != nil {
		Logger.LogV2.Errorf("could not persist last feed update:", err)
	}

	var latest time.Time
	for _, p := range page {
		if p.CreatedAt.After(latest) {
			latest = p.CreatedAt
		}
	}
	if latest.IsZero() {
		return
	}
	latestMs := latest.UnixNano() / int64(time.Millisecond)
	if err := s.store.Set(localstore.KeyLastKnownPostTime, latestMs); err != nil {
		Logger.LogV2.Errorf("could not persist last known post time:", err)
	}
}

func (s *Session) refreshViewer(ctx context.Context) (*model.ViewerContext, error) {
	if profile, ok := s.cache.GetUser(s.userId); ok {
		return model.NewViewerContext(profile), nil
	}
	profile, err := s.source.GetUser(ctx, s.userId)
	if err != nil {
		return nil, errors.Wrap(err, "load viewer profile")
	}
	s.cache.SetUser(profile)
	return model.NewViewerContext(profile), nil
}

func (s *Session) fail(gen string, err error) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()
	s.renderer.ShowError(err)
}

// SetScrolledAway tells the session whether the viewer is away from the top
// of the feed; the periodic poll only peeks for newer posts when they are.
func (s *Session) SetScrolledAway(away bool) {
	s.mu.Lock()
	s.scrolledAway = away
	s.mu.Unlock()
}

// DismissNewPosts clears the pending-new-post counter when the viewer
// dismisses the call-to-action.
func (s *Session) DismissNewPosts() {
	s.mu.Lock()
	s.pendingNew = 0
	s.mu.Unlock()
}

// MarkPostSeen is the render layer's visibility callback: the viewer
// scrolled past the post.
func (s *Session) MarkPostSeen(postId string) {
	s.seen.MarkSeen(postId)
}

// HideAuthor mutes an author for the hide duration and flushes the posts
// cache so the next load honors it.
func (s *Session) HideAuthor(authorId string) {
	s.hidden.Hide(authorId)
	s.cache.Invalidate(cache.RegionPosts, "")
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PendingNewPosts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingNew
}

// CursorTime exposes the pagination position for tests and diagnostics; the
// zero time means no cursor.
func (s *Session) CursorTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return time.Time{}
	}
	return s.cursor.CreatedAt
}

// Close tears down the poller and every realtime subscription. The session
// is dead afterwards; login again for a new one.
func (s *Session) Close() {
	s.mu.Lock()
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
	s.mu.Unlock()
	s.subs.CancelAll()
}
