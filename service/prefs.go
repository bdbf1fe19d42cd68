package service

import (
	"github.com/apex/log"

	"github.com/yobozavrik/SupportFeedback/storage"
)

// Theme preference values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Theme returns the stored theme preference, or "" when unset or invalid.
func (f *Feedback) Theme() string {
	v, _ := f.store.Get(storage.KeyTheme)
	if v != ThemeLight && v != ThemeDark {
		return ""
	}
	return v
}

// SetTheme persists the theme preference; unknown values are ignored.
func (f *Feedback) SetTheme(theme string) {
	if theme != ThemeLight && theme != ThemeDark {
		log.Warnf("Ignoring unknown theme %q", theme)
		return
	}
	f.store.Set(storage.KeyTheme, theme)
}

// TestMode reports whether submissions go to the test webhook.
func (f *Feedback) TestMode() bool {
	v, _ := f.store.Get(storage.KeyTestMode)
	return v == "1" || v == "true"
}

// SetTestMode toggles the target webhook between production and test.
func (f *Feedback) SetTestMode(enabled bool) {
	if enabled {
		f.store.Set(storage.KeyTestMode, "1")
	} else {
		f.store.Delete(storage.KeyTestMode)
	}
	log.Infof("Test mode set to %v", enabled)
}

// ActiveWebhookURL resolves the submission target for the current mode.
func (f *Feedback) ActiveWebhookURL() string {
	if f.TestMode() {
		return f.testURL
	}
	return f.prodURL
}
