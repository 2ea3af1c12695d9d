package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnr-capital/feedengine/localstore"
	"github.com/rnr-capital/feedengine/model"
)

func newTestCache() (*Cache, *localstore.MemStore, *time.Time) {
	store := localstore.NewMemStore()
	c := New(store)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, store, &now
}

func TestUserTTLBoundary(t *testing.T) {
	c, _, now := newTestCache()

	c.SetUser(&model.UserProfile{Id: "u1", Name: "Ada"})

	// Hit at T+9min.
	*now = now.Add(9 * time.Minute)
	profile, ok := c.GetUser("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", profile.Name)

	// Miss at T+11min: the caller refetches.
	*now = now.Add(2 * time.Minute)
	_, ok = c.GetUser("u1")
	assert.False(t, ok)
}

func TestPostsTTL(t *testing.T) {
	c, _, now := newTestCache()

	c.SetPosts([]*model.Post{{Id: "p1", AuthorId: "u1"}})

	posts, ok := c.GetPosts()
	require.True(t, ok)
	assert.Len(t, posts, 1)

	*now = now.Add(PostsTTL + time.Second)
	_, ok = c.GetPosts()
	assert.False(t, ok)
}

func TestCommentsTTL(t *testing.T) {
	c, _, now := newTestCache()

	c.SetComments("p1", []*model.Comment{{Id: "c1", PostId: "p1"}})

	comments, ok := c.GetComments("p1")
	require.True(t, ok)
	assert.Len(t, comments, 1)

	*now = now.Add(CommentsTTL + time.Second)
	_, ok = c.GetComments("p1")
	assert.False(t, ok)
}

func TestGetReturnsCopies(t *testing.T) {
	c, _, _ := newTestCache()

	c.SetUser(&model.UserProfile{Id: "u1", Name: "Ada", Following: []string{"u2"}})

	first, ok := c.GetUser("u1")
	require.True(t, ok)
	first.Name = "mutated"
	first.Following[0] = "mutated"

	second, ok := c.GetUser("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", second.Name)
	assert.Equal(t, []string{"u2"}, second.Following)
}

func TestInvalidate(t *testing.T) {
	c, _, _ := newTestCache()

	c.SetUser(&model.UserProfile{Id: "u1"})
	c.SetUser(&model.UserProfile{Id: "u2"})
	c.SetPosts([]*model.Post{{Id: "p1"}})
	c.SetComments("p1", []*model.Comment{{Id: "c1"}})

	c.Invalidate(RegionUsers, "u1")
	_, ok := c.GetUser("u1")
	assert.False(t, ok)
	_, ok = c.GetUser("u2")
	assert.True(t, ok)

	c.Invalidate(RegionPosts, "")
	_, ok = c.GetPosts()
	assert.False(t, ok)

	c.Invalidate(RegionAll, "")
	_, ok = c.GetUser("u2")
	assert.False(t, ok)
	_, ok = c.GetComments("p1")
	assert.False(t, ok)
}

func TestSnapshotRoundtrip(t *testing.T) {
	store := localstore.NewMemStore()
	c := New(store)
	c.SetUser(&model.UserProfile{Id: "u1", Name: "Ada"})
	c.SetPosts([]*model.Post{{Id: "p1", AuthorId: "u1", CreatedAt: time.Now()}})

	reloaded := New(store)
	profile, ok := reloaded.GetUser("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", profile.Name)
	posts, ok := reloaded.GetPosts()
	require.True(t, ok)
	assert.Len(t, posts, 1)
}

func TestExpiredPostsListNotResurrected(t *testing.T) {
	store := localstore.NewMemStore()
	c := New(store)
	past := time.Now().Add(-PostsTTL - time.Minute)
	c.now = func() time.Time { return past }
	c.SetPosts([]*model.Post{{Id: "p1"}})

	reloaded := New(store)
	_, ok := reloaded.GetPosts()
	assert.False(t, ok)
}

func TestWriteFailureKeepsMemoryValid(t *testing.T) {
	store := localstore.NewMemStore()
	store.FailWrites = true
	c := New(store)

	c.SetUser(&model.UserProfile{Id: "u1", Name: "Ada"})
	profile, ok := c.GetUser("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", profile.Name)
}

func TestStats(t *testing.T) {
	c, _, _ := newTestCache()
	c.SetUser(&model.UserProfile{Id: "u1"})

	c.GetUser("u1")
	c.GetUser("missing")

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}
