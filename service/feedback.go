// Package service contains the submission orchestrator: the state machine
// that takes raw form input through validation, rate checking, encoding and
// transmission. Side effects (rate counters, achievements) happen only after
// the webhook confirmed the submission.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/yobozavrik/SupportFeedback/abuse"
	"github.com/yobozavrik/SupportFeedback/achievements"
	img "github.com/yobozavrik/SupportFeedback/image"
	"github.com/yobozavrik/SupportFeedback/models"
	"github.com/yobozavrik/SupportFeedback/storage"
	"github.com/yobozavrik/SupportFeedback/webhook"
)

// State is the orchestrator's position in the submission pipeline.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateRateChecking
	StateEncoding
	StateSending
)

// Sender abstracts the resilient transport.
type Sender interface {
	Send(ctx context.Context, url string, payload []byte, contentType string) error
}

// Input is the raw form state captured at submit time.
type Input struct {
	StoreID         string
	Category        string
	Rating          int
	Text            string
	Product         string
	ComplaintReason string
	Phone           string
	Honeypot        string
	Geolocation     *models.Geolocation
	PhotoData       []byte
	PhotoName       string
}

// Receipt is returned to the UI after a confirmed submission.
type Receipt struct {
	ApplicationID     string
	AchievementEarned bool
}

// Feedback is the submission orchestrator for one widget instance.
type Feedback struct {
	store    storage.Store
	guard    *abuse.Guard
	tracker  *achievements.Tracker
	sender   Sender
	userID   string
	prodURL  string
	testURL  string
	now      func() time.Time
	state    atomic.Int32
	inFlight atomic.Bool
}

// NewFeedback wires the orchestrator.
func NewFeedback(store storage.Store, guard *abuse.Guard, tracker *achievements.Tracker,
	sender Sender, userID, webhookURL, testWebhookURL string) *Feedback {
	return &Feedback{
		store:   store,
		guard:   guard,
		tracker: tracker,
		sender:  sender,
		userID:  userID,
		prodURL: webhookURL,
		testURL: testWebhookURL,
		now:     time.Now,
	}
}

// State returns the current pipeline state, mainly for logging and tests.
func (f *Feedback) State() State {
	return State(f.state.Load())
}

func (f *Feedback) setState(s State) {
	f.state.Store(int32(s))
}

// Submit runs one submission through the pipeline. Only one submission may
// be in flight per instance; concurrent calls get ErrBusy.
func (f *Feedback) Submit(ctx context.Context, in Input) (Receipt, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return Receipt{}, ErrBusy
	}
	defer func() {
		f.setState(StateIdle)
		f.inFlight.Store(false)
	}()

	// Bots fill hidden fields; humans cannot. Rejected before anything
	// else so automated posts never consume budget or reach the network.
	if strings.TrimSpace(in.Honeypot) != "" {
		log.Warn("Honeypot field filled, dropping submission")
		return Receipt{}, &ValidationError{Message: "submission failed"}
	}

	f.setState(StateValidating)
	text := SanitizeText(in.Text)
	if len([]rune(text)) < MinTextLen {
		return Receipt{}, &ValidationError{
			Message: fmt.Sprintf("please add more detail (at least %d characters)", MinTextLen),
		}
	}
	if len([]rune(text)) > MaxTextLen {
		return Receipt{}, &ValidationError{
			Message: fmt.Sprintf("please shorten the message to %d characters", MaxTextLen),
		}
	}

	category := models.Category(in.Category)
	if !category.Valid() {
		return Receipt{}, &ValidationError{Message: "unknown feedback category"}
	}
	if in.Rating < 0 || in.Rating > 5 {
		return Receipt{}, &ValidationError{Message: "rating must be between 0 and 5"}
	}

	f.setState(StateRateChecking)
	if ok, why := f.guard.Allow(); !ok {
		log.Warnf("Submission blocked by abuse guard: %v", why)
		return Receipt{}, &RateLimitError{Reason: why}
	}

	f.setState(StateEncoding)
	storeID := in.StoreID
	if storeID == "" {
		storeID = models.DefaultStoreID
	}

	now := f.now()
	sub := &models.Submission{
		UserID:          f.userID,
		ApplicationID:   webhook.NewApplicationID(now),
		StoreID:         storeID,
		Category:        category,
		Rating:          in.Rating,
		Text:            text,
		Product:         in.Product,
		ComplaintReason: in.ComplaintReason,
		Phone:           in.Phone,
		Geolocation:     in.Geolocation,
	}
	sub.ClientToken = webhook.NewClientToken(f.userID, sub.ApplicationID, storeID, now)
	sub.NormalizeConditionals()

	if len(in.PhotoData) > 0 {
		photo, err := img.Normalize(in.PhotoData, in.PhotoName)
		if err != nil {
			// Size/signature problems are hard, user-correctable rejections.
			return Receipt{}, &ValidationError{Message: err.Error()}
		}
		sub.Photo = &photo
	}

	payload, contentType, err := webhook.EncodeMultipart(sub)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	f.setState(StateSending)
	if err := f.sender.Send(ctx, f.ActiveWebhookURL(), payload, contentType); err != nil {
		// No persisted mutation on failure: the user may simply retry.
		return Receipt{}, err
	}

	// Confirmed delivery: consume rate budget first, then track the visit.
	f.guard.RecordAttempt()
	earned := f.tracker.TrackVisit(storeID)

	log.Infof("Submission %s delivered (store %s)", sub.ApplicationID, storeID)
	return Receipt{ApplicationID: sub.ApplicationID, AchievementEarned: earned}, nil
}
