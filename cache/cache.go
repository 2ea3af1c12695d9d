package cache

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/rnr-capital/feedengine/localstore"
	"github.com/rnr-capital/feedengine/model"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

// TTLs per region. The cache is advisory: beyond TTL a Get reports a miss
// and the caller refetches, it never returns stale data as a hit.
const (
	UserTTL     = 10 * time.Minute
	PostsTTL    = 5 * time.Minute
	CommentsTTL = 2 * time.Minute
)

type Region string

const (
	RegionUsers    Region = "users"
	RegionPosts    Region = "posts"
	RegionComments Region = "comments"
	RegionAll      Region = "all"
)

type cachedUser struct {
	Profile  *model.UserProfile `json:"profile"`
	CachedAt time.Time          `json:"cachedAt"`
}

type cachedPosts struct {
	Data        []*model.Post `json:"data"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

type cachedComments struct {
	Data     []*model.Comment `json:"data"`
	CachedAt time.Time        `json:"cachedAt"`
}

type snapshot struct {
	Users     map[string]cachedUser     `json:"users"`
	Posts     cachedPosts               `json:"posts"`
	Comments  map[string]cachedComments `json:"comments"`
	Timestamp time.Time                 `json:"timestamp"`
}

// Cache is the short-TTL local cache of user profiles, the recent posts
// list, and per-post comments. Every mutating write attempts a best-effort
// snapshot into the local store; failures are logged and ignored, the
// in-memory state stays valid regardless.
//
// Safe for concurrent use: the feed session reads it from load paths while
// realtime change events invalidate it from their own goroutine.
type Cache struct {
	mu       sync.Mutex
	store    localstore.Store
	users    map[string]cachedUser
	posts    cachedPosts
	comments map[string]cachedComments

	hits   int
	misses int

	now func() time.Time
}

func New(store localstore.Store) *Cache {
	c := &Cache{
		store:    store,
		users:    map[string]cachedUser{},
		comments: map[string]cachedComments{},
		now:      time.Now,
	}
	c.load()
	return c
}

func (c *Cache) load() {
	var snap snapshot
	ok, err := c.store.Get(localstore.KeyAppCache, &snap)
	if err != nil {
		Logger.LogV2.Errorf("could not load cache snapshot:", err)
		return
	}
	if !ok {
		return
	}
	if snap.Users != nil {
		c.users = snap.Users
	}
	if snap.Comments != nil {
		c.comments = snap.Comments
	}
	// Drop an expired posts list outright instead of resurrecting it.
	if c.now().Sub(snap.Posts.LastUpdated) <= PostsTTL {
		c.posts = snap.Posts
	}
}

// GetUser returns a deep copy of the cached profile, or a miss when absent
// or older than UserTTL.
func (c *Cache) GetUser(id string) (*model.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.users[id]
	if !ok || entry.Profile == nil || c.now().Sub(entry.CachedAt) >= UserTTL {
		c.misses++
		return nil, false
	}
	c.hits++
	var copied model.UserProfile
	if err := copier.Copy(&copied, entry.Profile); err != nil {
		Logger.LogV2.Errorf("cache copy failed:", err)
		return nil, false
	}
	return &copied, true
}

func (c *Cache) SetUser(profile *model.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var copied model.UserProfile
	if err := copier.Copy(&copied, profile); err != nil {
		Logger.LogV2.Errorf("cache copy failed:", err)
		return
	}
	c.users[profile.Id] = cachedUser{Profile: &copied, CachedAt: c.now()}
	c.persist()
}

// GetPosts returns a copy of the shared recent-posts list while it is inside
// PostsTTL.
func (c *Cache) GetPosts() ([]*model.Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.posts.Data) == 0 || c.now().Sub(c.posts.LastUpdated) >= PostsTTL {
		c.misses++
		return nil, false
	}
	c.hits++
	copied := make([]*model.Post, 0, len(c.posts.Data))
	if err := copier.Copy(&copied, &c.posts.Data); err != nil {
		Logger.LogV2.Errorf("cache copy failed:", err)
		return nil, false
	}
	return copied, true
}

func (c *Cache) SetPosts(posts []*model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]*model.Post, 0, len(posts))
	if err := copier.Copy(&copied, &posts); err != nil {
		Logger.LogV2.Errorf("cache copy failed:", err)
		return
	}
	c.posts = cachedPosts{Data: copied, LastUpdated: c.now()}
	c.persist()
}

func (c *Cache) GetComments(postId string) ([]*model.Comment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.comments[postId]
	if !ok || c.now().Sub(entry.CachedAt) >= CommentsTTL {
		c.misses++
		return nil, false
	}
	c.hits++
	copied := make([]*model.Comment, 0, len(entry.Data))
	if err := copier.Copy(&copied, &entry.Data); err != nil {
		Logger.LogV2.Errorf("cache copy failed:", err)
		return nil, false
	}
	return copied, true
}

func (c *Cache) SetComments(postId string, comments []*model.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]*model.Comment, 0, len(comments))
	if err := copier.Copy(&copied, &comments); err != nil {
		Logger.LogV2.Errorf("cache copy failed:", err)
		return
	}
	c.comments[postId] = cachedComments{Data: copied, CachedAt: c.now()}
	c.persist()
}

// Invalidate clears one entry (users/comments with a key) or an entire
// region (empty key, or RegionPosts/RegionAll).
func (c *Cache) Invalidate(region Region, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch region {
	case RegionUsers:
		if key == "" {
			c.users = map[string]cachedUser{}
		} else {
			delete(c.users, key)
		}
	case RegionPosts:
		c.posts = cachedPosts{}
	case RegionComments:
		if key == "" {
			c.comments = map[string]cachedComments{}
		} else {
			delete(c.comments, key)
		}
	case RegionAll:
		c.users = map[string]cachedUser{}
		c.posts = cachedPosts{}
		c.comments = map[string]cachedComments{}
		if err := c.store.Delete(localstore.KeyAppCache); err != nil {
			Logger.LogV2.Errorf("could not clear cache snapshot:", err)
		}
		return
	}
	c.persist()
}

// Stats reports hit/miss counters for the session.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) persist() {
	snap := snapshot{
		Users:     c.users,
		Posts:     c.posts,
		Comments:  c.comments,
		Timestamp: c.now(),
	}
	if err := c.store.Set(localstore.KeyAppCache, snap); err != nil {
		// Best effort only, cache stays valid in memory.
		Logger.LogV2.Errorf("could not save cache snapshot:", err)
	}
}
