// Package webhook builds the outbound multipart payload for the feedback
// webhook.
package webhook

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/yobozavrik/SupportFeedback/models"
)

// NewApplicationID derives the human-readable ticket id from the current
// time: "GB-" plus uppercase base36 milliseconds. Two devices submitting in
// the same millisecond can collide; the server is the source of truth for
// ticket identity, this id is a display and correlation hint only.
func NewApplicationID(t time.Time) string {
	return "GB-" + strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))
}

// NewClientToken joins the identifying fields with the current time and
// base64-encodes them. This is NOT a cryptographic integrity check: the
// encoding is trivially reversible and visible to anyone inspecting the
// request. It only raises the cost of naive replay and request forgery.
func NewClientToken(userID, applicationID, storeID string, t time.Time) string {
	raw := fmt.Sprintf("%s.%s.%s.%d", userID, applicationID, storeID, t.UnixMilli())
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// EncodeMultipart serializes the submission into a multipart/form-data body.
// It returns the body and its content type (which carries the boundary).
func EncodeMultipart(sub *models.Submission) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value string
	}{
		{"userId", sub.UserID},
		{"applicationId", sub.ApplicationID},
		{"storeId", sub.StoreID},
		{"clientToken", sub.ClientToken},
		{"category", string(sub.Category)},
		{"rating", strconv.Itoa(sub.Rating)},
		{"product", sub.Product},
		{"complaintReason", sub.ComplaintReason},
		{"text", sub.Text},
		{"phone", sub.Phone},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	if sub.Geolocation != nil {
		geo, err := json.Marshal(sub.Geolocation)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode geolocation: %w", err)
		}
		if err := w.WriteField("geolocation", string(geo)); err != nil {
			return nil, "", fmt.Errorf("failed to write geolocation: %w", err)
		}
	}

	if sub.Photo != nil {
		part, err := w.CreateFormFile("file", sub.Photo.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(sub.Photo.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
