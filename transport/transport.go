// Package transport performs the webhook POST with a per-attempt timeout,
// bounded retries and exponential backoff.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"
)

// Options configures the retry behavior of a send.
type Options struct {
	// Retries is how many times to retry after the initial attempt.
	Retries int
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Backoff is the base delay; attempt n sleeps Backoff * 2^n.
	Backoff time.Duration
}

// DefaultOptions mirror the widget's production settings.
func DefaultOptions() Options {
	return Options{
		Retries: 2,
		Timeout: 10 * time.Second,
		Backoff: 800 * time.Millisecond,
	}
}

// Error is the terminal transport failure after all attempts are exhausted.
type Error struct {
	Attempts int
	Status   int // last HTTP status, 0 for network-level failures
	Cause    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook request failed after %d attempts: HTTP %d", e.Attempts, e.Status)
	}
	return fmt.Sprintf("webhook request failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// statusError marks a completed response outside the 2xx range.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

// Client sends payloads with retries. The zero value is not usable; use
// NewClient.
type Client struct {
	http  *http.Client
	opts  Options
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a transport client. Cookies are never sent and
// redirects are followed, matching the original fetch configuration.
func NewClient(opts Options) *Client {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		sleep: sleepCtx,
	}
}

// Send POSTs the payload to url, retrying per the configured policy.
// A non-2xx response counts as a failed attempt. The response body is never
// parsed; on success it is drained and discarded.
func (c *Client) Send(ctx context.Context, url string, payload []byte, contentType string) error {
	var lastErr error
	var lastStatus int

	attempts := c.opts.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		status, err := c.attempt(ctx, url, payload, contentType)
		if err == nil {
			return nil
		}
		lastErr = err
		lastStatus = status

		if attempt == attempts-1 {
			break
		}

		delay := c.opts.Backoff * (1 << attempt)
		log.Warnf("Webhook attempt %d/%d failed (%v), retrying in %s", attempt+1, attempts, err, delay)
		if err := c.sleep(ctx, delay); err != nil {
			// The caller gave up; report what we had.
			lastErr = err
			break
		}
	}

	var se *statusError
	if errors.As(lastErr, &se) {
		return &Error{Attempts: attempts, Status: lastStatus, Cause: lastErr}
	}
	return &Error{Attempts: attempts, Cause: lastErr}
}

// attempt performs one POST bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, url string, payload []byte, contentType string) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the body is not parsed.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &statusError{status: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
