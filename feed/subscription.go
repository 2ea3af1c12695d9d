package feed

import (
	"sync"

	"github.com/rnr-capital/feedengine/remote"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

// SubscriptionFactory opens one realtime subscription and returns its
// teardown handle.
type SubscriptionFactory func() (remote.Cancel, error)

// SubscriptionManager owns every long-lived realtime listener for a view,
// keyed by logical resource. One subscription per key: installing a new one
// tears down the previous holder first, which is what prevents leaked
// listeners and duplicate-update storms when a view is re-entered.
type SubscriptionManager struct {
	mu   sync.Mutex
	subs map[string]remote.Cancel
}

func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{subs: map[string]remote.Cancel{}}
}

// Replace cancels any subscription registered under key, then installs the
// one the factory produces. On factory failure the key is left empty.
func (m *SubscriptionManager) Replace(key string, factory SubscriptionFactory) error {
	m.mu.Lock()
	if cancel, ok := m.subs[key]; ok {
		cancel()
		delete(m.subs, key)
	}
	m.mu.Unlock()

	cancel, err := factory()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.subs[key]; ok {
		// A concurrent Replace won; keep the newest and drop ours.
		old()
	}
	m.subs[key] = cancel
	return nil
}

func (m *SubscriptionManager) Cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.subs[key]; ok {
		cancel()
		delete(m.subs, key)
	}
}

// CancelAll tears down everything; called when the consuming view is left.
func (m *SubscriptionManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, cancel := range m.subs {
		cancel()
		delete(m.subs, key)
	}
	Logger.LogV2.Debug("all realtime subscriptions cancelled")
}

// Active reports how many subscriptions are currently held.
func (m *SubscriptionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
