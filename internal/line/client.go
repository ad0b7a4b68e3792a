package line

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

const contentMaxBytes int64 = 10 << 20 // 10 MiB

// Client talks to the messaging platform's reply and content APIs.
type Client struct {
	apiBase     string
	blobBase    string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a platform client authorized by the channel access token.
func NewClient(log *slog.Logger, apiBase, blobBase, accessToken string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiBase:     strings.TrimRight(apiBase, "/"),
		blobBase:    strings.TrimRight(blobBase, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log.With(slog.String("component", "line_client")),
	}
}

type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []replyMessage `json:"messages"`
}

type replyMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply delivers text to the conversation identified by the reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := replyRequest{
		ReplyToken: replyToken,
		Messages:   []replyMessage{{Type: "text", Text: text}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := c.apiBase + "/v2/bot/message/reply"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reply failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// GetMessageContent downloads the binary content of a message (image bytes).
func (c *Client) GetMessageContent(ctx context.Context, messageID string) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.blobBase, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch message content: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, contentMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read message content: %w", err)
	}
	return data, nil
}
