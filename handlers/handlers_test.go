package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yobozavrik/SupportFeedback/abuse"
	"github.com/yobozavrik/SupportFeedback/achievements"
	"github.com/yobozavrik/SupportFeedback/gemini"
	"github.com/yobozavrik/SupportFeedback/service"
	"github.com/yobozavrik/SupportFeedback/storage"
)

type stubSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSender) Send(context.Context, string, []byte, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

type stubAnalyzer struct {
	analysis *gemini.Analysis
	err      error
}

func (s *stubAnalyzer) Analyze(context.Context, string) (*gemini.Analysis, error) {
	return s.analysis, s.err
}

func newTestRouter(sender *stubSender, assist Analyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	store := storage.NewMemStore()
	guard := abuse.NewGuard(store)
	tracker := achievements.NewTracker(store, 3)
	feedback := service.NewFeedback(store, guard, tracker, sender,
		"user-1", "https://hooks.example/prod", "https://hooks.example/test")
	h := NewHandlers(feedback, tracker, assist)

	r := gin.New()
	api := r.Group("/api/v1")
	{
		api.POST("/feedback", h.SubmitFeedback)
		api.POST("/assist", h.Assist)
		api.GET("/achievements", h.GetAchievements)
		api.GET("/preferences/theme", h.GetTheme)
		api.PUT("/preferences/theme", h.PutTheme)
		api.POST("/test-mode", h.ToggleTestMode)
	}
	r.GET("/health", h.HealthCheck)
	return r
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func submit(t *testing.T, r *gin.Engine, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func validFields() map[string]string {
	return map[string]string{
		"category": "Praise",
		"rating":   "5",
		"text":     "the new dumpling flavors are fantastic",
	}
}

func TestSubmitFeedbackSuccess(t *testing.T) {
	sender := &stubSender{}
	r := newTestRouter(sender, &stubAnalyzer{})

	rec := submit(t, r, "/api/v1/feedback?store_id=store-7", validFields())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		ApplicationID     string `json:"application_id"`
		AchievementEarned bool   `json:"achievement_earned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ApplicationID, "GB-"))
	assert.Equal(t, 1, sender.calls)
}

func TestSubmitFeedbackShortTextRejected(t *testing.T) {
	sender := &stubSender{}
	r := newTestRouter(sender, &stubAnalyzer{})

	fields := validFields()
	fields["text"] = "too short"
	rec := submit(t, r, "/api/v1/feedback", fields)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, sender.calls)
}

func TestSubmitFeedbackHoneypotRejected(t *testing.T) {
	sender := &stubSender{}
	r := newTestRouter(sender, &stubAnalyzer{})

	fields := validFields()
	fields["website"] = "https://spam.example"
	rec := submit(t, r, "/api/v1/feedback", fields)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, sender.calls, "honeypot must never reach the webhook")
}

func TestSubmitFeedbackCooldownMapsTo429(t *testing.T) {
	sender := &stubSender{}
	r := newTestRouter(sender, &stubAnalyzer{})

	require.Equal(t, http.StatusOK, submit(t, r, "/api/v1/feedback", validFields()).Code)
	rec := submit(t, r, "/api/v1/feedback", validFields())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, sender.calls)
}

func TestSubmitFeedbackBadRating(t *testing.T) {
	r := newTestRouter(&stubSender{}, &stubAnalyzer{})

	fields := validFields()
	fields["rating"] = "a lot"
	rec := submit(t, r, "/api/v1/feedback", fields)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssist(t *testing.T) {
	analysis := &gemini.Analysis{
		Sentiment:   "positive",
		Summary:     "happy customer",
		Suggestions: []string{"add store name", "mention the date", "be specific"},
	}
	r := newTestRouter(&stubSender{}, &stubAnalyzer{analysis: analysis})

	body := bytes.NewBufferString(`{"text":"the dumplings were excellent"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assist", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got gemini.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "positive", got.Sentiment)
	assert.Len(t, got.Suggestions, 3)
}

func TestAssistShortTextIsUserError(t *testing.T) {
	r := newTestRouter(&stubSender{}, &stubAnalyzer{err: gemini.ErrTextTooShort})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assist",
		bytes.NewBufferString(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThemeRoundTrip(t *testing.T) {
	r := newTestRouter(&stubSender{}, &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/theme",
		bytes.NewBufferString(`{"theme":"dark"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/theme", nil))
	assert.JSONEq(t, `{"theme":"dark"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/api/v1/preferences/theme",
		bytes.NewBufferString(`{"theme":"sepia"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestModeToggle(t *testing.T) {
	r := newTestRouter(&stubSender{}, &stubAnalyzer{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/test-mode", nil))
	assert.JSONEq(t, `{"test_mode":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/test-mode", nil))
	assert.JSONEq(t, `{"test_mode":false}`, rec.Body.String())
}

func TestAchievementsProgress(t *testing.T) {
	sender := &stubSender{}
	r := newTestRouter(sender, &stubAnalyzer{})

	require.Equal(t, http.StatusOK, submit(t, r, "/api/v1/feedback?store_id=store-1", validFields()).Code)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/achievements", nil))
	assert.JSONEq(t, `{"secret_shopper":{"progress":1,"goal":3,"earned":false}}`, rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(&stubSender{}, &stubAnalyzer{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
