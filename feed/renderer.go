package feed

import (
	"github.com/rnr-capital/feedengine/model"
)

// Renderer is the ordered-list contract to the external render layer. The
// engine decides which posts appear and in what order; everything visual is
// on the other side of this interface.
type Renderer interface {
	// RenderBatch appends posts in order. firstBatch means the view should
	// be cleared before appending.
	RenderBatch(posts []*model.Post, firstBatch bool)

	// ShowCaughtUp presents the explicit "caught up" affordance when a
	// load yields zero unseen posts. followingCount lets the layer pick
	// between onboarding (follow somebody) and the all-caught-up state.
	// Terminal for the session until the next refresh, not an error.
	ShowCaughtUp(followingCount int)

	// ShowNoMorePosts marks the end of a scroll continuation.
	ShowNoMorePosts()

	// ShowNewPostsAvailable surfaces the dismissible call-to-action with
	// the pending-post count. Posts are never auto-inserted.
	ShowNewPostsAvailable(count int)

	// ShowError presents a load failure with a manual retry affordance.
	// The feed never silently stays empty after a genuine failure.
	ShowError(err error)
}
