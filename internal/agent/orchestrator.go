package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	sectionLongTerm  = "[long-term memory]"
	sectionShortTerm = "[conversation so far]"
	sectionCurrent   = "[current message]"

	emptyReplyFallback = "The agent returned no reply."
)

// Orchestrator composes prompts and invokes the external agent runtime.
// Invoke never fails: any transport or parse error is folded into a
// human-readable fallback reply so the caller always has text to send.
type Orchestrator struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator for the given agent runtime URL.
func NewOrchestrator(log *slog.Logger, baseURL string, timeout time.Duration) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Orchestrator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "agent")),
	}
}

type invokeRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

type invokeResponse struct {
	Result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// BuildPrompt assembles the ordered prompt sections. Empty context sections
// are omitted entirely; the current-message section is always present.
func BuildPrompt(userMessage, shortTerm, longTerm string) string {
	sections := make([]string, 0, 3)
	if strings.TrimSpace(longTerm) != "" {
		sections = append(sections, sectionLongTerm+"\n"+longTerm)
	}
	if strings.TrimSpace(shortTerm) != "" {
		sections = append(sections, sectionShortTerm+"\n"+shortTerm)
	}
	sections = append(sections, sectionCurrent+"\n"+userMessage)
	return strings.Join(sections, "\n\n")
}

// Invoke sends the composed prompt to the agent runtime, correlated by the
// session id, and returns the reply text or a fallback string.
func (o *Orchestrator) Invoke(ctx context.Context, sessionID, userMessage, shortTerm, longTerm string) string {
	prompt := BuildPrompt(userMessage, shortTerm, longTerm)
	reply, err := o.post(ctx, sessionID, prompt)
	if err != nil {
		o.logger.Error("agent invocation failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return fmt.Sprintf("Sorry, something went wrong while answering: %v", err)
	}
	return reply
}

func (o *Orchestrator) post(ctx context.Context, sessionID, prompt string) (string, error) {
	body, err := json.Marshal(invokeRequest{Prompt: prompt, SessionID: sessionID})
	if err != nil {
		return "", err
	}

	url := o.baseURL + "/invocations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent runtime error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed invokeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse agent response: %w", err)
	}
	if len(parsed.Result.Content) == 0 || strings.TrimSpace(parsed.Result.Content[0].Text) == "" {
		return emptyReplyFallback, nil
	}
	return parsed.Result.Content[0].Text, nil
}
