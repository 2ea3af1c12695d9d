package localstore

// Store is the local-storage equivalent the engine persists its client-side
// state into: independently read/written JSON blobs keyed by name, with no
// transactional guarantee across keys. Consumers treat write failures as
// non-fatal; the in-memory state stays authoritative for the session.
type Store interface {
	// Get unmarshals the blob at key into into. ok is false when the key
	// does not exist.
	Get(key string, into interface{}) (ok bool, err error)
	Set(key string, value interface{}) error
	Delete(key string) error
}

// Keys shared across components. Kept close to the original client's
// localStorage names so exported state stays recognizable.
const (
	KeySeenPosts         = "seenPosts"
	KeyLastSeenReset     = "lastSeenReset"
	KeyLastFeedUpdate    = "lastFeedUpdate"
	KeyLastKnownPostTime = "lastKnownPostTime"
	KeyLastPostsCheck    = "lastPostsCheck"
	KeyAppCache          = "app_cache"

	// Per-author mute markers, suffixed with the author id.
	KeyHiddenUserPrefix = "hidden_user_"
)
