// Package identity manages the stable per-installation user id.
package identity

import (
	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/yobozavrik/SupportFeedback/storage"
)

// EnsureUserID returns the persisted user id, generating and storing a new
// UUID on first use. The id is immutable once created; if the store cannot
// persist it, a fresh id is handed out per process, which only costs
// continuity of achievements and rate counters.
func EnsureUserID(store storage.Store) string {
	if id, ok := store.Get(storage.KeyUserID); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	store.Set(storage.KeyUserID, id)
	log.Infof("Generated new user id %s", id)
	return id
}
