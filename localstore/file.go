package localstore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps every key in one JSON file, written atomically via a
// temp-file rename. This is the default device-local persistence.
type FileStore struct {
	path string

	mu   sync.Mutex
	blob map[string]json.RawMessage
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, blob: map[string]json.RawMessage{}}

	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read local store")
	}
	if err := json.Unmarshal(data, &s.blob); err != nil {
		// A corrupt store is discarded rather than bricking the client.
		s.blob = map[string]json.RawMessage{}
	}
	return s, nil
}

func (s *FileStore) Get(key string, into interface{}) (bool, error) {
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

func (s *FileStore) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode key %s", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob[key] = raw
	return s.flushLocked()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blob[key]; !ok {
		return nil
	}
	delete(s.blob, key)
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	data, err := json.Marshal(s.blob)
	if err != nil {
		return errors.Wrap(err, "encode local store")
	}
	tmp := s.path + ".tmp"
	if err := ioutil.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write local store")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace local store")
	}
	return nil
}

// DefaultPath puts the store under the user config dir, one file per profile.
func DefaultPath(profile string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "feedengine", profile+".json")
}
