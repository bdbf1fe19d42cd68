// Package storage provides the widget's best-effort local key-value store.
// Reads and writes never fail the caller: any underlying error is logged and
// degrades to "key absent" / no-op, matching the widget contract that a
// broken preference store must never break a submission.
package storage

// Storage keys. The gala- prefix is kept from the original widget so
// existing installations keep their identity and counters.
const (
	KeyUserID       = "gala-userId"
	KeyAchievements = "gala-userAchievements"
	KeyLastSubmit   = "gala-last-submit"
	KeySubmitWindow = "gala-submit-window"
	KeySubmitCount  = "gala-submit-count"
	KeyTheme        = "gala-theme"
	KeyTestMode     = "gala-test-mode"
)

// Store is a persistent per-installation string store.
type Store interface {
	// Get returns the stored value and true, or "" and false when the key
	// is absent or the store is unavailable.
	Get(key string) (string, bool)
	// Set stores the value. Failures are logged, never returned.
	Set(key, value string)
	// Delete removes the key. Failures are logged, never returned.
	Delete(key string)
}

// MemStore is an in-memory Store used in tests and as a last-resort
// fallback when no persistent backend can be opened.
type MemStore struct {
	m map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	v, ok := s.m[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) {
	s.m[key] = value
}

func (s *MemStore) Delete(key string) {
	delete(s.m, key)
}
