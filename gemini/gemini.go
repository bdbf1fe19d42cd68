// Package gemini provides the writing-help call: it asks a Gemini model to
// assess a draft feedback text and suggest improvements. It is a side
// feature; failures surface to the caller and never touch the submission
// pipeline.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const promptSystem = `You are a friendly AI assistant for a retail chain's feedback widget. Your goal is to help customers write clear and constructive feedback. Analyze the user's draft and provide the overall sentiment, a short summary of the key point, and three concrete suggestions for improving the feedback. Respond ONLY with JSON matching the schema.`

// ErrTextTooShort is returned for drafts too small to analyze.
var ErrTextTooShort = errors.New("please write at least a few words before asking for analysis")

// Analysis is the structured writing help returned to the UI.
type Analysis struct {
	Sentiment   string   `json:"sentiment"`
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

type schemaProperty struct {
	Type  string          `json:"type"`
	Items *schemaProperty `json:"items,omitempty"`
}

type responseSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"response_mime_type,omitempty"`
	ResponseSchema   *responseSchema `json:"response_schema,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Gemini client. The limiter throttles the widget's
// assist button so a stuck finger cannot burn through the API quota.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

// Analyze asks the model for sentiment, summary and suggestions for the
// draft text.
func (c *Client) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if len([]rune(text)) < 10 {
		return nil, ErrTextTooShort
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := geminiRequest{
		SystemInstruction: &content{Parts: []part{{Text: promptSystem}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: &responseSchema{
				Type: "OBJECT",
				Properties: map[string]schemaProperty{
					"sentiment":   {Type: "STRING"},
					"summary":     {Type: "STRING"},
					"suggestions": {Type: "ARRAY", Items: &schemaProperty{Type: "STRING"}},
				},
				Required: []string{"sentiment", "summary", "suggestions"},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini response has no candidates")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(parsed.Candidates[0].Content.Parts[0].Text), &analysis); err != nil {
		return nil, fmt.Errorf("gemini response is not valid analysis JSON: %w", err)
	}
	return &analysis, nil
}
