// Package handlers exposes the widget API consumed by the form UI layer.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/yobozavrik/SupportFeedback/achievements"
	"github.com/yobozavrik/SupportFeedback/gemini"
	img "github.com/yobozavrik/SupportFeedback/image"
	"github.com/yobozavrik/SupportFeedback/models"
	"github.com/yobozavrik/SupportFeedback/service"
	"github.com/yobozavrik/SupportFeedback/transport"
)

// Analyzer is the writing-help dependency, split out so tests can stub the
// Gemini call.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*gemini.Analysis, error)
}

// Handlers holds the HTTP handlers for the widget API.
type Handlers struct {
	feedback *service.Feedback
	tracker  *achievements.Tracker
	assist   Analyzer
}

// NewHandlers creates the widget API handlers.
func NewHandlers(feedback *service.Feedback, tracker *achievements.Tracker, assist Analyzer) *Handlers {
	return &Handlers{feedback: feedback, tracker: tracker, assist: assist}
}

// HealthCheck handles health check requests.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "support-feedback",
	})
}

// SubmitFeedback accepts the multipart form from the UI and runs it through
// the submission pipeline. The store id is a launch parameter: it arrives as
// a query parameter and defaults to the unknown store.
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	in := service.Input{
		StoreID:         c.DefaultQuery("store_id", models.DefaultStoreID),
		Category:        c.PostForm("category"),
		Text:            c.PostForm("text"),
		Product:         c.PostForm("product"),
		ComplaintReason: c.PostForm("complaintReason"),
		Phone:           c.PostForm("phone"),
		Honeypot:        c.PostForm("website"),
	}

	if v := c.PostForm("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be an integer"})
			return
		}
		in.Rating = rating
	}

	if lat, lng := c.PostForm("latitude"), c.PostForm("longitude"); lat != "" && lng != "" {
		latF, errLat := strconv.ParseFloat(lat, 64)
		lngF, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geolocation"})
			return
		}
		in.Geolocation = &models.Geolocation{Latitude: latF, Longitude: lngF}
	}

	if file, err := c.FormFile("file"); err == nil && file != nil {
		if file.Size > img.MaxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": img.ErrTooLarge.Error()})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read attached file"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read attached file"})
			return
		}
		in.PhotoData = data
		in.PhotoName = file.Filename
	}

	receipt, err := h.feedback.Submit(c.Request.Context(), in)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"application_id":     receipt.ApplicationID,
		"achievement_earned": receipt.AchievementEarned,
	})
}

// writeSubmitError maps pipeline errors onto HTTP statuses.
func (h *Handlers) writeSubmitError(c *gin.Context, err error) {
	var ve *service.ValidationError
	var re *service.RateLimitError
	var te *transport.Error

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.As(err, &re):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": re.Error()})
	case errors.As(err, &te):
		c.JSON(http.StatusBadGateway, gin.H{"error": te.Error()})
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Errorf("Unexpected submission failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
	}
}

// Assist runs the writing-help analysis for a draft text.
func (h *Handlers) Assist(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read JSON input"})
		return
	}

	analysis, err := h.assist.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, gemini.ErrTextTooShort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Assist analysis failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis is unavailable right now"})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// GetAchievements returns the secret-shopper progress.
func (h *Handlers) GetAchievements(c *gin.Context) {
	n, goal, earned := h.tracker.Progress()
	c.JSON(http.StatusOK, gin.H{
		"secret_shopper": gin.H{
			"progress": n,
			"goal":     goal,
			"earned":   earned,
		},
	})
}

// GetTheme returns the stored theme preference.
func (h *Handlers) GetTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": h.feedback.Theme()})
}

// PutTheme stores the theme preference.
func (h *Handlers) PutTheme(c *gin.Context) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read JSON input"})
		return
	}
	if req.Theme != service.ThemeLight && req.Theme != service.ThemeDark {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme must be light or dark"})
		return
	}
	h.feedback.SetTheme(req.Theme)
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

// ToggleTestMode flips the submission target between prod and test webhook.
func (h *Handlers) ToggleTestMode(c *gin.Context) {
	enabled := !h.feedback.TestMode()
	h.feedback.SetTestMode(enabled)
	c.JSON(http.StatusOK, gin.H{"test_mode": enabled})
}
