package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const describeInstruction = "Describe this image for the conversation."

// Analyzer sends image bytes to a vision-capable model and returns a
// textual description. Like the agent orchestrator, it never fails: errors
// are folded into a reply-able fallback string.
type Analyzer struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnalyzer creates a vision analyzer for an anthropic-messages style API.
func NewAnalyzer(log *slog.Logger, baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Analyzer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "vision")),
	}
}

// Configured reports whether a vision endpoint has been set up.
func (a *Analyzer) Configured() bool {
	return a != nil && a.baseURL != ""
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Describe analyzes the image and returns descriptive text, or a fallback
// string embedding the error detail.
func (a *Analyzer) Describe(ctx context.Context, imageData []byte) string {
	text, err := a.describe(ctx, imageData)
	if err != nil {
		a.logger.Error("image analysis failed", slog.Any("error", err))
		return fmt.Sprintf("Sorry, I could not analyze the image: %v", err)
	}
	return text
}

func (a *Analyzer) describe(ctx context.Context, imageData []byte) (string, error) {
	if !a.Configured() {
		return "", fmt.Errorf("vision endpoint not configured")
	}
	if len(imageData) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	payload := messagesRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: http.DetectContentType(imageData),
						Data:      base64.StdEncoding.EncodeToString(imageData),
					},
				},
				{Type: "text", Text: describeInstruction},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", "2023-06-01")
	if a.apiKey != "" {
		req.Header.Set("x-api-key", a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("vision error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse vision response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("vision response contains no text")
}
