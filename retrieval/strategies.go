package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

const (
	// Active-user retrieval looks back this far for author activity.
	ActiveLookback = 7 * 24 * time.Hour
	// At most this many candidate authors are considered, queried in
	// batches of remote.MaxAuthorIn.
	ActiveAuthorCap = 20

	// Mixed strategy blend: ~60% following, ~40% active users.
	mixedFollowingShare = 0.6
	mixedActiveShare    = 0.4
)

// RecencyProvider is the plain newest-first query every other strategy
// degrades to.
type RecencyProvider struct {
	Source remote.Source
}

func (p *RecencyProvider) Name() string { return "recency" }

func (p *RecencyProvider) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	return p.Source.QueryPosts(ctx, remote.PostFilter{Limit: limit})
}

// ActiveUsersProvider serves viewers with an empty follow set: posts
// authored by the most recently active users. When the candidate pool comes
// up short the provider tops up from plain recency itself, matching the
// blended result the fuller strategies produce.
type ActiveUsersProvider struct {
	Source remote.Source
	Viewer *model.ViewerContext
	Now    func() time.Time
}

func (p *ActiveUsersProvider) Name() string { return "active_users" }

func (p *ActiveUsersProvider) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	users, err := p.Source.QueryUsers(ctx, remote.UserFilter{
		ActiveSince: p.Now().Add(-ActiveLookback),
		Limit:       ActiveAuthorCap,
	})
	if err != nil {
		return nil, err
	}

	authorIds := []string{}
	for _, u := range users {
		if u.Id != p.Viewer.UserId {
			authorIds = append(authorIds, u.Id)
		}
	}
	if len(authorIds) == 0 {
		// No active authors: let the chain fall through to recency.
		return nil, nil
	}

	// The backend caps disjunctive author queries, batch accordingly.
	posts := []*model.Post{}
	for start := 0; start < len(authorIds); start += remote.MaxAuthorIn {
		end := start + remote.MaxAuthorIn
		if end > len(authorIds) {
			end = len(authorIds)
		}
		batch, err := p.Source.QueryPosts(ctx, remote.PostFilter{
			AuthorIn: authorIds[start:end],
			Limit:    limit * 2,
		})
		if err != nil {
			return nil, err
		}
		posts = append(posts, batch...)
	}
	posts = dedupeById(posts)

	if len(posts) < limit/2 {
		recent, err := p.Source.QueryPosts(ctx, remote.PostFilter{Limit: limit})
		if err != nil {
			Logger.LogV2.Errorf("active users top-up failed:", err)
		} else {
			posts = dedupeById(append(posts, recent...))
		}
	}
	return capTo(posts, limit), nil
}

// FollowingProvider serves established viewers: posts authored by the follow
// set plus self, newest first, requesting double the target so seen
// filtering still leaves a page. When the entire batch is already seen it
// escalates to the older-posts query instead of declaring exhaustion.
type FollowingProvider struct {
	Source remote.Source
	Viewer *model.ViewerContext
	Seen   SeenChecker
	Now    func() time.Time
}

func (p *FollowingProvider) Name() string { return "following" }

func (p *FollowingProvider) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	authors := p.Viewer.FollowedAuthors()
	if len(authors) > remote.MaxAuthorIn {
		authors = authors[:remote.MaxAuthorIn]
	}

	posts, err := p.Source.QueryPosts(ctx, remote.PostFilter{
		AuthorIn: authors,
		Limit:    limit * 2,
	})
	if err != nil {
		return nil, err
	}

	unseen := filterUnseen(posts, p.Seen)
	Logger.LogV2.Debugf("following strategy:", len(posts), "candidates,", len(unseen), "unseen")

	if len(posts) > 0 && len(unseen) == 0 {
		older := &OlderProvider{Source: p.Source, Viewer: p.Viewer, Seen: p.Seen, Now: p.Now}
		return older.Fetch(ctx, limit)
	}
	return capTo(unseen, limit), nil
}

// OlderProvider fetches strictly-older candidates for continuations and for
// the all-seen escalation. Before is the pagination cursor when the session
// has one; otherwise the oldest-seen time bounds the query, defaulting to a
// 24h lookback inside the tracker.
type OlderProvider struct {
	Source remote.Source
	Viewer *model.ViewerContext
	Seen   SeenChecker
	Now    func() time.Time
	Before time.Time
}

func (p *OlderProvider) Name() string { return "older" }

func (p *OlderProvider) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	before := p.Before
	if before.IsZero() {
		before = p.Seen.OldestSeenTime()
	}
	posts, err := p.Source.QueryPosts(ctx, remote.PostFilter{
		Before: before,
		Limit:  limit * 3,
	})
	if err != nil {
		return nil, err
	}

	filtered := []*model.Post{}
	for _, post := range posts {
		if !p.Viewer.IsFollowing(post.AuthorId) && !p.Viewer.IsSelf(post.AuthorId) {
			continue
		}
		if p.Seen.IsSeen(post.Id) {
			continue
		}
		filtered = append(filtered, post)
	}
	return capTo(filtered, limit), nil
}

// MixedProvider serves light viewers (a handful of follows): a blend of the
// following feed and the active-users pool. The two sub-fetches run
// concurrently and join before blending; ordering between the branches is
// unspecified, dedupe keeps the first occurrence.
type MixedProvider struct {
	Following *FollowingProvider
	Active    *ActiveUsersProvider
	Recency   *RecencyProvider
	Seen      SeenChecker
}

func (p *MixedProvider) Name() string { return "mixed" }

func (p *MixedProvider) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	followingTarget := int(float64(limit) * mixedFollowingShare)
	activeTarget := int(float64(limit) * mixedActiveShare)

	var wg sync.WaitGroup
	var followingPosts, activePosts []*model.Post
	var followingErr, activeErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		followingPosts, followingErr = p.Following.Fetch(ctx, followingTarget)
	}()
	go func() {
		defer wg.Done()
		activePosts, activeErr = p.Active.Fetch(ctx, activeTarget)
	}()
	wg.Wait()

	if followingErr != nil && activeErr != nil {
		return nil, followingErr
	}
	if followingErr != nil {
		Logger.LogV2.Errorf("mixed: following branch failed:", followingErr)
	}
	if activeErr != nil {
		Logger.LogV2.Errorf("mixed: active branch failed:", activeErr)
	}

	blended := dedupeById(append(followingPosts, activePosts...))
	unseen := filterUnseen(blended, p.Seen)

	if len(unseen) < limit/2 {
		recent, err := p.Recency.Fetch(ctx, limit)
		if err != nil {
			Logger.LogV2.Errorf("mixed top-up failed:", err)
		} else {
			unseen = filterUnseen(dedupeById(append(unseen, recent...)), p.Seen)
		}
	}
	return capTo(unseen, limit), nil
}
