package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
	"github.com/rnr-capital/feedengine/remote/memsource"
)

var retNow = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return retNow }

type fakeSeen struct {
	seen   map[string]bool
	oldest time.Time
}

func newFakeSeen(ids ...string) *fakeSeen {
	f := &fakeSeen{seen: map[string]bool{}, oldest: retNow.Add(-24 * time.Hour)}
	for _, id := range ids {
		f.seen[id] = true
	}
	return f
}

func (f *fakeSeen) IsSeen(id string) bool     { return f.seen[id] }
func (f *fakeSeen) OldestSeenTime() time.Time { return f.oldest }

// recordingSource wraps the in-memory source and keeps every post filter it
// was queried with, so tests can assert on the exact queries a strategy made.
type recordingSource struct {
	*memsource.Source

	mu      sync.Mutex
	filters []remote.PostFilter
}

func newRecordingSource() *recordingSource {
	return &recordingSource{Source: memsource.New()}
}

func (r *recordingSource) QueryPosts(ctx context.Context, filter remote.PostFilter) ([]*model.Post, error) {
	r.mu.Lock()
	r.filters = append(r.filters, filter)
	r.mu.Unlock()
	return r.Source.QueryPosts(ctx, filter)
}

func (r *recordingSource) recorded() []remote.PostFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remote.PostFilter{}, r.filters...)
}

func seedPost(s *memsource.Source, id, author string, age time.Duration) {
	s.SeedPost(&model.Post{Id: id, AuthorId: author, CreatedAt: retNow.Add(-age)})
}

func seedActiveUser(s *memsource.Source, id string, lastSeenAgo time.Duration) {
	s.SeedUser(&model.UserProfile{Id: id, Name: id, LastSeen: retNow.Add(-lastSeenAgo)})
}

func TestStrategyForThresholds(t *testing.T) {
	cases := []struct {
		following int
		want      StrategyName
	}{
		{0, StrategyNew},
		{1, StrategyLight},
		{4, StrategyLight},
		{5, StrategyActive},
		{12, StrategyActive},
	}
	for _, c := range cases {
		follows := make([]string, c.following)
		for i := range follows {
			follows[i] = fmt.Sprintf("u%d", i)
		}
		v := model.NewViewerContext(&model.UserProfile{Id: "me", Following: follows})
		assert.Equal(t, c.want, StrategyFor(v), "following=%d", c.following)
	}
}

type stubProvider struct {
	name  string
	posts []*model.Post
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	s.calls++
	return s.posts, s.err
}

func TestChainFallsBackOnError(t *testing.T) {
	failing := &stubProvider{name: "failing", err: errors.New("backend down")}
	backup := &stubProvider{name: "backup", posts: []*model.Post{{Id: "p1"}}}

	posts, err := NewChain(failing, backup).Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "p1", posts[0].Id)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestChainErrorsOnlyWhenAllFail(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("down")}
	b := &stubProvider{name: "b", err: errors.New("also down")}

	_, err := NewChain(a, b).Fetch(context.Background(), 5)
	assert.Error(t, err)
}

func TestChainEmptySuccessIsNotAnError(t *testing.T) {
	failing := &stubProvider{name: "failing", err: errors.New("down")}
	empty := &stubProvider{name: "empty"}

	posts, err := NewChain(failing, empty).Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

// A brand-new viewer with zero follows gets content from recently active
// users, not an empty feed.
func TestNewViewerGetsActiveUserPosts(t *testing.T) {
	source := newRecordingSource()
	seedActiveUser(source.Source, "alice", time.Hour)
	seedActiveUser(source.Source, "bob", 2*time.Hour)
	seedActiveUser(source.Source, "dormant", 30*24*time.Hour)
	seedPost(source.Source, "p_alice", "alice", time.Hour)
	seedPost(source.Source, "p_bob", "bob", 2*time.Hour)
	seedPost(source.Source, "p_dormant", "dormant", time.Hour)

	viewer := model.NewViewerContext(&model.UserProfile{Id: "me"})
	d := &Dispatcher{Source: source, Seen: newFakeSeen(), Now: fixedNow}
	chain := d.ChainFor(viewer)
	assert.Equal(t, []string{"active_users", "recency"}, chain.Names())

	posts, err := chain.Fetch(context.Background(), 4)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, p := range posts {
		ids[p.Id] = true
	}
	assert.True(t, ids["p_alice"])
	assert.True(t, ids["p_bob"])
	assert.False(t, ids["p_dormant"], "authors inactive beyond the lookback are excluded")
}

func TestActiveUsersSkipsSelfAndBatchesAuthors(t *testing.T) {
	source := newRecordingSource()
	seedActiveUser(source.Source, "me", time.Hour)
	for i := 0; i < 14; i++ {
		id := fmt.Sprintf("author%02d", i)
		seedActiveUser(source.Source, id, time.Hour)
		seedPost(source.Source, "p_"+id, id, time.Duration(i)*time.Minute)
	}

	viewer := model.NewViewerContext(&model.UserProfile{Id: "me"})
	p := &ActiveUsersProvider{Source: source, Viewer: viewer, Now: fixedNow}
	posts, err := p.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, posts, 10)

	// 14 eligible authors plus self means two author batches within the
	// backend's disjunction cap, each asking for double the target.
	for _, f := range source.recorded() {
		assert.LessOrEqual(t, len(f.AuthorIn), remote.MaxAuthorIn)
		for _, id := range f.AuthorIn {
			assert.NotEqual(t, "me", id)
		}
		assert.Equal(t, 20, f.Limit)
	}
}

func TestActiveUsersFallsThroughWhenNoAuthors(t *testing.T) {
	source := newRecordingSource()
	seedPost(source.Source, "recent", "somebody", time.Hour)

	viewer := model.NewViewerContext(&model.UserProfile{Id: "me"})
	d := &Dispatcher{Source: source, Seen: newFakeSeen(), Now: fixedNow}

	posts, err := d.ChainFor(viewer).Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "recent", posts[0].Id)
}

// An established viewer whose entire recent following feed has been seen gets
// older unseen posts instead of a dead end.
func TestFollowingAllSeenEscalatesToOlder(t *testing.T) {
	source := newRecordingSource()
	follows := []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7"}
	// Enough seen posts to fill the doubled following query, which pushes
	// the older unseen post out of its reach.
	seenIds := []string{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("recent_%02d", i)
		seedPost(source.Source, id, follows[i%len(follows)], time.Duration(i+1)*time.Hour)
		seenIds = append(seenIds, id)
	}
	seedPost(source.Source, "old_f1", "f1", 30*time.Hour)
	seedPost(source.Source, "old_stranger", "nobody", 30*time.Hour)

	seen := newFakeSeen(seenIds...)
	viewer := model.NewViewerContext(&model.UserProfile{Id: "me", Following: follows})
	p := &FollowingProvider{Source: source, Viewer: viewer, Seen: seen, Now: fixedNow}

	posts, err := p.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "old_f1", posts[0].Id, "only followed unseen posts survive the older query")

	filters := source.recorded()
	require.Len(t, filters, 2)
	assert.NotEmpty(t, filters[0].AuthorIn)
	assert.True(t, filters[1].Before.Equal(seen.oldest), "escalation queries before the oldest seen time")
	assert.Equal(t, 15, filters[1].Limit)
}

func TestFollowingCapsAuthorList(t *testing.T) {
	source := newRecordingSource()
	follows := make([]string, 15)
	for i := range follows {
		follows[i] = fmt.Sprintf("f%02d", i)
	}
	viewer := model.NewViewerContext(&model.UserProfile{Id: "me", Following: follows})
	p := &FollowingProvider{Source: source, Viewer: viewer, Seen: newFakeSeen(), Now: fixedNow}

	_, err := p.Fetch(context.Background(), 5)
	require.NoError(t, err)

	filters := source.recorded()
	require.Len(t, filters, 1)
	assert.Len(t, filters[0].AuthorIn, remote.MaxAuthorIn)
}

func TestOlderProviderUsesCursorWhenSet(t *testing.T) {
	source := newRecordingSource()
	cursor := retNow.Add(-6 * time.Hour)
	seedPost(source.Source, "older", "f1", 8*time.Hour)
	seedPost(source.Source, "newer", "f1", 2*time.Hour)

	viewer := model.NewViewerContext(&model.UserProfile{Id: "me", Following: []string{"f1"}})
	p := &OlderProvider{Source: source, Viewer: viewer, Seen: newFakeSeen(), Now: fixedNow, Before: cursor}

	posts, err := p.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "older", posts[0].Id)

	filters := source.recorded()
	require.Len(t, filters, 1)
	assert.True(t, filters[0].Before.Equal(cursor))
}

func TestMixedBlendsAndDedupes(t *testing.T) {
	source := newRecordingSource()
	seedActiveUser(source.Source, "friend", time.Hour)
	seedActiveUser(source.Source, "popular", time.Hour)
	seedPost(source.Source, "p_friend", "friend", time.Hour)
	seedPost(source.Source, "p_popular", "popular", 2*time.Hour)

	viewer := model.NewViewerContext(&model.UserProfile{Id: "me", Following: []string{"friend"}})
	seen := newFakeSeen()
	d := &Dispatcher{Source: source, Seen: seen, Now: fixedNow}
	chain := d.ChainFor(viewer)
	assert.Equal(t, []string{"mixed", "recency"}, chain.Names())

	posts, err := chain.Fetch(context.Background(), 10)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, p := range posts {
		counts[p.Id]++
	}
	// p_friend is reachable through both branches and the recency top-up;
	// it must appear exactly once.
	assert.Equal(t, 1, counts["p_friend"])
	assert.Equal(t, 1, counts["p_popular"])
}

func TestMixedSurvivesOneBranchFailing(t *testing.T) {
	branchSource := memsource.New()
	seedPost(branchSource, "p1", "friend", time.Hour)

	viewer := model.NewViewerContext(&model.UserProfile{Id: "me", Following: []string{"friend"}})
	seen := newFakeSeen()

	failing := memsource.New()
	failing.FailNextWith(errors.New("backend down"))

	p := &MixedProvider{
		Following: &FollowingProvider{Source: branchSource, Viewer: viewer, Seen: seen, Now: fixedNow},
		Active:    &ActiveUsersProvider{Source: failing, Viewer: viewer, Now: fixedNow},
		Recency:   &RecencyProvider{Source: branchSource},
		Seen:      seen,
	}
	posts, err := p.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].Id)
}
