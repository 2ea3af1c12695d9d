package retrieval

import (
	"time"

	"github.com/rnr-capital/feedengine/localstore"
	"github.com/rnr-capital/feedengine/model"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

// Viewers can mute an author; their posts stay out of the feed until the
// marker expires.
const HideDuration = 7 * 24 * time.Hour

// HiddenAuthors reads and writes the per-author "hidden until" markers.
type HiddenAuthors struct {
	store localstore.Store
	now   func() time.Time
}

func NewHiddenAuthors(store localstore.Store) *HiddenAuthors {
	return &HiddenAuthors{store: store, now: time.Now}
}

func (h *HiddenAuthors) Hide(authorId string) {
	until := h.now().Add(HideDuration).UnixNano() / int64(time.Millisecond)
	if err := h.store.Set(localstore.KeyHiddenUserPrefix+authorId, until); err != nil {
		Logger.LogV2.Errorf("could not persist hidden author:", err)
	}
}

func (h *HiddenAuthors) IsHidden(authorId string) bool {
	var untilMs int64
	ok, err := h.store.Get(localstore.KeyHiddenUserPrefix+authorId, &untilMs)
	if err != nil || !ok {
		return false
	}
	return h.now().UnixNano()/int64(time.Millisecond) < untilMs
}

// FilterHidden drops posts from muted authors out of a candidate list.
func (h *HiddenAuthors) FilterHidden(posts []*model.Post) []*model.Post {
	visible := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if h.IsHidden(p.AuthorId) {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}
