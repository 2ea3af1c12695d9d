package retrieval

import (
	"time"

	"github.com/rnr-capital/feedengine/model"
	"github.com/rnr-capital/feedengine/remote"
)

type StrategyName string

const (
	// 0 followed: discover content from recently active users.
	StrategyNew StrategyName = "new"
	// 1-4 followed: blend following with active users.
	StrategyLight StrategyName = "light"
	// 5+ followed: the following feed proper.
	StrategyActive StrategyName = "active"
)

const lightFollowThreshold = 5

// StrategyFor picks the retrieval strategy once per feed load based on the
// viewer's follow-set size.
func StrategyFor(viewer *model.ViewerContext) StrategyName {
	switch n := viewer.FollowingCount(); {
	case n == 0:
		return StrategyNew
	case n < lightFollowThreshold:
		return StrategyLight
	default:
		return StrategyActive
	}
}

// Dispatcher wires providers into the fallback chain for a viewer. Every
// chain ends in plain recency so a single remote failure never takes the
// whole feed down.
type Dispatcher struct {
	Source remote.Source
	Seen   SeenChecker
	Now    func() time.Time
}

func NewDispatcher(source remote.Source, seen SeenChecker) *Dispatcher {
	return &Dispatcher{Source: source, Seen: seen, Now: time.Now}
}

// ChainFor builds the initial-load chain for the viewer's strategy.
func (d *Dispatcher) ChainFor(viewer *model.ViewerContext) *Chain {
	recency := &RecencyProvider{Source: d.Source}
	active := &ActiveUsersProvider{Source: d.Source, Viewer: viewer, Now: d.Now}
	following := &FollowingProvider{Source: d.Source, Viewer: viewer, Seen: d.Seen, Now: d.Now}

	switch StrategyFor(viewer) {
	case StrategyNew:
		return NewChain(active, recency)
	case StrategyLight:
		mixed := &MixedProvider{Following: following, Active: active, Recency: recency, Seen: d.Seen}
		return NewChain(mixed, recency)
	default:
		return NewChain(following, recency)
	}
}

// OlderChain builds the continuation chain: strictly-older candidates only,
// bounded by the session's pagination cursor when one exists.
func (d *Dispatcher) OlderChain(viewer *model.ViewerContext, before time.Time) *Chain {
	older := &OlderProvider{Source: d.Source, Viewer: viewer, Seen: d.Seen, Now: d.Now, Before: before}
	return NewChain(older)
}
