// Package achievements tracks the secret-shopper milestone: leave feedback
// from N distinct stores. State is persisted as JSON in the local store and
// only ever grows.
package achievements

import (
	"encoding/json"

	"github.com/apex/log"

	"github.com/yobozavrik/SupportFeedback/models"
	"github.com/yobozavrik/SupportFeedback/storage"
)

// secretShopperKey matches the original widget's record layout so existing
// progress survives the migration.
const secretShopperKey = "secretShopper"

type secretShopper struct {
	Earned bool     `json:"earned"`
	Stores []string `json:"stores"`
}

type record map[string]*secretShopper

// Tracker owns the persisted achievement record for one identity.
type Tracker struct {
	store storage.Store
	goal  int
}

// NewTracker creates a Tracker with the given distinct-store goal.
func NewTracker(store storage.Store, goal int) *Tracker {
	return &Tracker{store: store, goal: goal}
}

// TrackVisit registers a successful submission from storeID and reports
// whether the milestone was earned by this very visit. The default store id
// does not count, repeat visits are ignored, and once earned the flag never
// flips back, so the celebratory notice can fire at most once.
func (t *Tracker) TrackVisit(storeID string) bool {
	if storeID == "" || storeID == models.DefaultStoreID {
		return false
	}

	rec := t.load()
	ss := rec[secretShopperKey]

	for _, s := range ss.Stores {
		if s == storeID {
			return false
		}
	}
	ss.Stores = append(ss.Stores, storeID)

	earnedNow := false
	if !ss.Earned && len(ss.Stores) >= t.goal {
		ss.Earned = true
		earnedNow = true
		log.Infof("Secret shopper milestone earned after %d stores", len(ss.Stores))
	}

	t.save(rec)
	return earnedNow
}

// Progress returns the distinct-store count, the goal, and whether the
// milestone has been earned.
func (t *Tracker) Progress() (int, int, bool) {
	ss := t.load()[secretShopperKey]
	return len(ss.Stores), t.goal, ss.Earned
}

// load reads the persisted record, resetting to the default on any parse
// failure instead of crashing or locking the user out.
func (t *Tracker) load() record {
	rec := record{secretShopperKey: {Stores: []string{}}}

	raw, ok := t.store.Get(storage.KeyAchievements)
	if !ok || raw == "" {
		return rec
	}
	var parsed record
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warnf("Unable to parse achievements data, resetting: %v", err)
		t.save(rec)
		return rec
	}
	if parsed[secretShopperKey] == nil {
		parsed[secretShopperKey] = &secretShopper{Stores: []string{}}
	}
	return parsed
}

func (t *Tracker) save(rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Warnf("Unable to encode achievements data: %v", err)
		return
	}
	t.store.Set(storage.KeyAchievements, string(data))
}
