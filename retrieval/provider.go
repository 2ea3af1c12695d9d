package retrieval

import (
	"context"
	"time"

	"github.com/rnr-capital/feedengine/model"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

// SeenChecker is the slice of the seen-set tracker the strategies need.
type SeenChecker interface {
	IsSeen(postId string) bool
	OldestSeenTime() time.Time
}

// Provider is one named candidate-retrieval algorithm. Providers return the
// raw candidate set for a viewer context; filtering against the seen set
// beyond what the strategy itself requires, ranking, and pagination happen
// upstream.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]*model.Post, error)
}

// Chain tries providers in order until one yields results. A failing
// provider is logged and downgraded to the next one instead of propagating,
// so scattered per-strategy fallbacks collapse into one place. The chain
// only errors when every provider errored, which is the genuine load
// failure the top level surfaces with a retry affordance.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Fetch(ctx context.Context, limit int) ([]*model.Post, error) {
	var lastErr error
	succeeded := false
	for _, p := range c.providers {
		posts, err := p.Fetch(ctx, limit)
		if err != nil {
			Logger.LogV2.Errorf("strategy", p.Name(), "failed, falling back:", err)
			lastErr = err
			continue
		}
		succeeded = true
		if len(posts) > 0 {
			return posts, nil
		}
	}
	if !succeeded {
		return nil, lastErr
	}
	return []*model.Post{}, nil
}

// Names lists the chain's providers in order, for logging and tests.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

func dedupeById(posts []*model.Post) []*model.Post {
	seen := make(map[string]bool, len(posts))
	unique := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil || p.Id == "" || seen[p.Id] {
			continue
		}
		seen[p.Id] = true
		unique = append(unique, p)
	}
	return unique
}

func filterUnseen(posts []*model.Post, seen SeenChecker) []*model.Post {
	unseen := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if !seen.IsSeen(p.Id) {
			unseen = append(unseen, p)
		}
	}
	return unseen
}

func capTo(posts []*model.Post, limit int) []*model.Post {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}
