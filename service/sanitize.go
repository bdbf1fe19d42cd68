package service

import (
	"regexp"
	"strings"
)

const (
	// MinTextLen and MaxTextLen bound the sanitized feedback text.
	MinTextLen = 15
	MaxTextLen = 800
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	scriptOpenTag  = regexp.MustCompile(`(?i)<\s*script`)
	handlerDouble  = regexp.MustCompile(`(?i)on[a-z]+\s*=\s*"[^"]*"`)
	handlerSingle  = regexp.MustCompile(`(?i)on[a-z]+\s*=\s*'[^']*'`)
	handlerNaked   = regexp.MustCompile(`(?i)on[a-z]+\s*=\s*[^\s>]+`)
)

// SanitizeText strips control characters, neutralizes opening script tags
// and removes inline event-handler attributes. It does not enforce length;
// the orchestrator checks bounds on the sanitized result.
func SanitizeText(raw string) string {
	s := strings.TrimSpace(raw)
	s = controlChars.ReplaceAllString(s, "")
	s = scriptOpenTag.ReplaceAllString(s, "&lt;script")
	s = handlerDouble.ReplaceAllString(s, "")
	s = handlerSingle.ReplaceAllString(s, "")
	s = handlerNaked.ReplaceAllString(s, "")
	return s
}
