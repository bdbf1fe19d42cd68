// Package models holds the submission record passed explicitly through the
// pipeline. There is no shared mutable form state: each submit action builds
// one Submission value and hands it down the chain.
package models

import (
	"github.com/apex/log"
	"github.com/golang/geo/s2"

	img "github.com/yobozavrik/SupportFeedback/image"
)

// Category is the fixed set of feedback categories.
type Category string

const (
	CategoryComplaint  Category = "Complaint"
	CategoryPraise     Category = "Praise"
	CategoryOutOfStock Category = "OutOfStock"
	CategorySuggestion Category = "Suggestion"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryComplaint, CategoryPraise, CategoryOutOfStock, CategorySuggestion:
		return true
	}
	return false
}

// Geolocation is an optional lat/long pair attached to a submission.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair is a real point on the globe.
func (g Geolocation) Valid() bool {
	return s2.LatLngFromDegrees(g.Latitude, g.Longitude).IsValid()
}

// Submission is one user-initiated feedback report, constructed fresh per
// submit action and discarded afterwards.
type Submission struct {
	UserID          string
	ApplicationID   string
	StoreID         string
	Category        Category
	Rating          int
	Text            string
	Product         string
	ComplaintReason string
	Phone           string
	Geolocation     *Geolocation
	Photo           *img.Result
	ClientToken     string
}

// DefaultStoreID is used when the launch context carries no store id.
const DefaultStoreID = "unknown_store"

// NormalizeConditionals blanks the category-conditional fields when their
// category is not selected, and drops invalid geolocation pairs.
func (s *Submission) NormalizeConditionals() {
	if s.Category != CategoryOutOfStock {
		s.Product = ""
	}
	if s.Category != CategoryComplaint {
		s.ComplaintReason = ""
	}
	if s.Geolocation != nil && !s.Geolocation.Valid() {
		log.Warnf("Dropping invalid geolocation (%f, %f)",
			s.Geolocation.Latitude, s.Geolocation.Longitude)
		s.Geolocation = nil
	}
}
