package service

import (
	"errors"

	"github.com/yobozavrik/SupportFeedback/abuse"
)

// ErrBusy is returned when a submission is already in flight. The widget UI
// disables the submit control for the duration, but the service enforces
// single-flight on its own so direct callers get a defined answer.
var ErrBusy = errors.New("a submission is already in progress")

// ValidationError is a user-correctable input problem. It never consumes
// rate budget and never reaches the network.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RateLimitError is an abuse-guard refusal, carrying which rule tripped so
// the UI can show the matching message.
type RateLimitError struct {
	Reason abuse.Rejection
}

func (e *RateLimitError) Error() string {
	return e.Reason.String()
}
