package remote

import (
	"context"
	"time"

	"github.com/rnr-capital/feedengine/model"
)

// The hosted backend caps disjunctive author queries at 10 ids per call.
const MaxAuthorIn = 10

// PostFilter describes one posts query. Results are always ordered by
// CreatedAt descending. AuthorIn beyond MaxAuthorIn is rejected, chunking is
// the caller's job, same as against the hosted backend.
type PostFilter struct {
	AuthorIn []string
	Before   time.Time
	Limit    int
}

// UserFilter describes one users query, ordered by LastSeen descending.
type UserFilter struct {
	ActiveSince time.Time
	Limit       int
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

type ChangeEvent struct {
	Type ChangeType
	Post *model.Post
}

// Cancel tears down one realtime subscription. Must be safe to call twice.
type Cancel func()

// Source is the generic remote data source the engine is built over. The
// actual consistency, fan-out and persistence live behind it in the vendor
// platform; every call may fail with a recoverable remote error.
type Source interface {
	QueryPosts(ctx context.Context, filter PostFilter) ([]*model.Post, error)
	QueryUsers(ctx context.Context, filter UserFilter) ([]*model.UserProfile, error)
	GetUser(ctx context.Context, id string) (*model.UserProfile, error)
	Subscribe(ctx context.Context, filter PostFilter) (<-chan ChangeEvent, Cancel, error)
}
