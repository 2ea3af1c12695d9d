package model

import (
	"time"
)

/*

ViewerContext captures who is looking at the feed for one load

UserId: the current user
Following: the viewer's follow set at load time
LastFeedLoad: when this viewer last loaded the feed, zero on first load

Not persisted by the engine, rebuilt from the user profile on every load.

*/
type ViewerContext struct {
	UserId       string
	Following    []string
	LastFeedLoad time.Time

	followSet map[string]bool
}

func NewViewerContext(profile *UserProfile) *ViewerContext {
	v := &ViewerContext{
		UserId:    profile.Id,
		Following: profile.Following,
		followSet: make(map[string]bool, len(profile.Following)),
	}
	for _, id := range profile.Following {
		v.followSet[id] = true
	}
	return v
}

func (v *ViewerContext) IsSelf(userId string) bool {
	return userId == v.UserId
}

func (v *ViewerContext) IsFollowing(userId string) bool {
	return v.followSet[userId]
}

func (v *ViewerContext) FollowingCount() int {
	return len(v.Following)
}

// Authors whose posts the Following strategy queries: follow set plus self.
func (v *ViewerContext) FollowedAuthors() []string {
	authors := make([]string, 0, len(v.Following)+1)
	authors = append(authors, v.Following...)
	return append(authors, v.UserId)
}
