package feed

import (
	"context"
	"time"

	"github.com/rnr-capital/feedengine/cache"
	"github.com/rnr-capital/feedengine/localstore"
	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

// startPoller arms the fixed-interval background check for newer posts.
// Idempotent: repeated loads reuse the running poller.
func (s *Session) startPoller() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	s.pollStop = stop

	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.checkForNewPosts(context.Background())
			}
		}
	}()
}

// checkForNewPosts peeks the single most recent post and, when it is newer
// than the last known latest, surfaces the dismissible call-to-action. It
// never inserts posts into the rendered feed.
func (s *Session) checkForNewPosts(ctx context.Context) {
	s.mu.Lock()
	away := s.scrolledAway
	s.mu.Unlock()
	if !away {
		return
	}

	nowMs := s.now().UnixNano() / int64(time.Millisecond)
	var lastCheckMs int64
	if ok, err := s.store.Get(localstore.KeyLastPostsCheck, &lastCheckMs); err == nil && ok {
		if nowMs-lastCheckMs < s.cfg.PollInterval.Milliseconds() {
			return
		}
	}

	posts, err := s.source.QueryPosts(ctx, remote.PostFilter{Limit: 1})
	if err != nil {
		Logger.LogV2.Errorf("new posts check failed:", err)
		return
	}
	if len(posts) > 0 {
		s.noteNewerPost(posts[0])
	}

	if err := s.store.Set(localstore.KeyLastPostsCheck, nowMs); err != nil {
		Logger.LogV2.Errorf("could not persist last posts check:", err)
	}
}

func (s *Session) noteNewerPost(latest *model.Post) {
	var knownMs int64
	known := time.Time{}
	if ok, err := s.store.Get(localstore.KeyLastKnownPostTime, &knownMs); err == nil && ok {
		known = time.Unix(0, knownMs*int64(time.Millisecond))
	}
	if !known.IsZero() && !latest.CreatedAt.After(known) {
		return
	}

	s.mu.Lock()
	s.pendingNew++
	count := s.pendingNew
	s.mu.Unlock()
	s.renderer.ShowNewPostsAvailable(count)

	latestMs := latest.CreatedAt.UnixNano() / int64(time.Millisecond)
	if err := s.store.Set(localstore.KeyLastKnownPostTime, latestMs); err != nil {
		Logger.LogV2.Errorf("could not persist last known post time:", err)
	}
}

// setupRealtimeListener replaces the feed's realtime subscription with one
// scoped to the viewer's current follow set. New posts from others raise the
// same call-to-action as the poll; adds and removes flush the posts cache so
// the next load refetches.
func (s *Session) setupRealtimeListener(ctx context.Context, viewer *model.ViewerContext) {
	if viewer.FollowingCount() == 0 {
		s.subs.Cancel(feedSubscriptionKey)
		return
	}

	authors := viewer.FollowedAuthors()
	if len(authors) > remote.MaxAuthorIn {
		authors = authors[:remote.MaxAuthorIn]
	}

	err := s.subs.Replace(feedSubscriptionKey, func() (remote.Cancel, error) {
		events, cancel, err := s.source.Subscribe(ctx, remote.PostFilter{AuthorIn: authors})
		if err != nil {
			return nil, err
		}
		go func() {
			for ev := range events {
				s.handleChangeEvent(ev)
			}
		}()
		return cancel, nil
	})
	if err != nil {
		// The poll still covers new-post discovery, just without push.
		Logger.LogV2.Errorf("could not subscribe to feed changes:", err)
	}
}

func (s *Session) handleChangeEvent(ev remote.ChangeEvent) {
	switch ev.Type {
	case remote.ChangeAdded:
		s.cache.Invalidate(cache.RegionPosts, "")
		if ev.Post == nil || ev.Post.AuthorId == s.userId {
			// The viewer just posted it themselves, no call-to-action.
			return
		}
		s.mu.Lock()
		s.pendingNew++
		count := s.pendingNew
		s.mu.Unlock()
		s.renderer.ShowNewPostsAvailable(count)
	case remote.ChangeRemoved:
		s.cache.Invalidate(cache.RegionPosts, "")
		if ev.Post != nil {
			s.cache.Invalidate(cache.RegionComments, ev.Post.Id)
		}
	}
}
