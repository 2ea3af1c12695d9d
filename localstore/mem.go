package localstore

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// MemStore is an in-memory Store for tests. FailWrites simulates quota or
// serialization failures so callers' swallow-and-log paths get exercised.
type MemStore struct {
	mu         sync.Mutex
	blob       map[string]json.RawMessage
	FailWrites bool
}

func NewMemStore() *MemStore {
	return &MemStore{blob: map[string]json.RawMessage{}}
}

func (s *MemStore) Get(key string, into interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.blob[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, errors.Wrapf(err, "decode key %s", key)
	}
	return true, nil
}

func (s *MemStore) Set(key string, value interface{}) error {
	if s.FailWrites {
		return errors.New("store write rejected")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode key %s", key)
	}
	s.mu.Lock()
	s.blob[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Delete(key string) error {
	if s.FailWrites {
		return errors.New("store write rejected")
	}
	s.mu.Lock()
	delete(s.blob, key)
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys, handy for assertions.
func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.blob))
	for k := range s.blob {
		keys = append(keys, k)
	}
	return keys
}

var _ Store = (*MemStore)(nil)
var _ Store = (*FileStore)(nil)
