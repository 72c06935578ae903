package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/abelbrown/signalscout/internal/logging"
)

// ErrUnavailable is returned when the classifier is not configured.
var ErrUnavailable = errors.New("intent classifier unavailable")

const (
	messagesURL      = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	classifyTimeout  = 30 * time.Second
	maxBodyChars     = 1000
)

// jsonObjectRe pulls the first JSON object out of a model reply that
// might wrap it in prose.
var jsonObjectRe = regexp.MustCompile(`\{[^{}]+\}`)

// Claude implements Classifier against Anthropic's Messages API.
type Claude struct {
	// Endpoint overrides the API URL, for tests.
	Endpoint string

	apiKey string
	model  string
	client *http.Client
}

// NewClaude creates a Claude classifier.
func NewClaude(apiKey, model string) *Claude {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &Claude{
		Endpoint: messagesURL,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: classifyTimeout},
	}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Available() bool { return c.apiKey != "" }

const systemPrompt = "You are a B2B sales intelligence analyst. " +
	"Rate the buying intent of social media posts against a target customer profile. " +
	"Return ONLY valid JSON with keys: intent (number 0-1), rationale (string, 1-2 sentences), suggested_response (string)."

func (c *Claude) Classify(ctx context.Context, req Request) (Result, error) {
	if !c.Available() {
		return Result{}, ErrUnavailable
	}

	body := req.Body
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	userPrompt := fmt.Sprintf("ICP: %s\n\nPost Title: %s\nPost Content: %s",
		req.ICPDescription, req.Title, body)

	payload := map[string]any{
		"model":      c.model,
		"max_tokens": 300,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt},
		},
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logging.Warn("classifier API error", "status", resp.StatusCode)
		return Result{}, fmt.Errorf("API error (status %d)", resp.StatusCode)
	}

	var apiResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}

	var text string
	for _, block := range apiResp.Content {
		if block.Type == "text" && block.Text != "" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return Result{}, errors.New("empty classifier response")
	}

	return parseVerdict(text)
}

// parseVerdict extracts the structured verdict from the model's text.
func parseVerdict(text string) (Result, error) {
	raw := jsonObjectRe.FindString(text)
	if raw == "" {
		return Result{}, errors.New("no JSON object in classifier response")
	}

	var verdict struct {
		Intent            float64 `json:"intent"`
		Rationale         string  `json:"rationale"`
		SuggestedResponse string  `json:"suggested_response"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return Result{}, fmt.Errorf("parse verdict: %w", err)
	}
	if verdict.Intent < 0 || verdict.Intent > 1 {
		return Result{}, fmt.Errorf("intent %.2f out of range [0,1]", verdict.Intent)
	}

	return Result{
		Intent:         verdict.Intent,
		Rationale:      verdict.Rationale,
		SuggestedReply: verdict.SuggestedResponse,
	}, nil
}
