package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-bot/kaiwa/internal/line"
)

type fakeDispatcher struct {
	batches [][]line.Event
}

func (f *fakeDispatcher) DispatchBatch(ctx context.Context, events []line.Event) {
	f.batches = append(f.batches, events)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(line.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReceive_ValidSignature(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(nil, dispatcher, "secret")

	body := `{"events":[{"type":"message","source":{"type":"user","userId":"U1"},"message":{"type":"text","text":"hello"},"replyToken":"rt-1"}]}`
	rec := postWebhook(h, body, signBody("secret", []byte(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"message":"OK"}` {
		t.Fatalf("unexpected body: %s", got)
	}
	if len(dispatcher.batches) != 1 || len(dispatcher.batches[0]) != 1 {
		t.Fatalf("expected one dispatched batch with one event, got %v", dispatcher.batches)
	}
	event := dispatcher.batches[0][0]
	if event.Message.Text != "hello" || event.Source.UserID != "U1" {
		t.Fatalf("event fields lost in transit: %+v", event)
	}
}

func TestReceive_MissingSignature(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(nil, dispatcher, "secret")

	rec := postWebhook(h, `{"events":[]}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	if len(dispatcher.batches) != 0 {
		t.Fatal("unverified delivery must not reach the dispatcher")
	}
}

func TestReceive_WrongSignature(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(nil, dispatcher, "secret")

	body := `{"events":[]}`
	rec := postWebhook(h, body, signBody("other-secret", []byte(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(dispatcher.batches) != 0 {
		t.Fatal("unverified delivery must not reach the dispatcher")
	}
}

func TestReceive_MalformedPayload(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(nil, dispatcher, "secret")

	body := `{"events":`
	rec := postWebhook(h, body, signBody("secret", []byte(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(dispatcher.batches) != 0 {
		t.Fatal("malformed delivery must not reach the dispatcher")
	}
}

func TestReceive_EmptyEventList(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(nil, dispatcher, "secret")

	body := `{"events":[]}`
	rec := postWebhook(h, body, signBody("secret", []byte(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(dispatcher.batches) != 1 || len(dispatcher.batches[0]) != 0 {
		t.Fatalf("expected one empty batch, got %v", dispatcher.batches)
	}
}
