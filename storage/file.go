package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"
)

// FileStore persists keys as a single JSON object on disk. The whole map is
// held in memory and rewritten on every mutation; values are small
// preference strings, so the rewrite cost is negligible.
type FileStore struct {
	path string
	mu   sync.Mutex
	m    map[string]string
}

// NewFileStore opens (or creates) the store at path. A missing or corrupt
// file starts the store empty instead of failing.
func NewFileStore(path string) *FileStore {
	s := &FileStore{
		path: path,
		m:    make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Failed to read store file %s, starting empty: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		log.Warnf("Store file %s is corrupt, starting empty: %v", path, err)
		s.m = make(map[string]string)
	}
	return s
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	s.flushLocked()
}

func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	s.flushLocked()
}

// flushLocked writes the map through a temp file rename so a crash mid-write
// cannot corrupt the previous contents. Callers hold s.mu.
func (s *FileStore) flushLocked() {
	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		log.Warnf("Failed to encode store file: %v", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Warnf("Failed to create store directory: %v", err)
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Warnf("Failed to write store file: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Warnf("Failed to replace store file: %v", err)
	}
}
