package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDescribe_ReturnsTextBlock(t *testing.T) {
	t.Parallel()

	var gotReq messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key-1" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"a cat on a sofa"}]}`))
	}))
	defer srv.Close()

	a := NewAnalyzer(nil, srv.URL, "key-1", "vision-model", 1024, time.Second)
	got := a.Describe(context.Background(), []byte{0xff, 0xd8, 0xff, 0xe0})
	if got != "a cat on a sofa" {
		t.Fatalf("unexpected description: %q", got)
	}

	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Content) != 2 {
		t.Fatalf("unexpected request shape: %+v", gotReq)
	}
	if gotReq.Messages[0].Content[0].Source == nil || gotReq.Messages[0].Content[0].Source.Type != "base64" {
		t.Fatalf("image block missing base64 source: %+v", gotReq.Messages[0].Content[0])
	}
	if gotReq.Messages[0].Content[1].Text != describeInstruction {
		t.Fatalf("unexpected instruction: %q", gotReq.Messages[0].Content[1].Text)
	}
}

func TestDescribe_FallbackOnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewAnalyzer(nil, srv.URL, "key", "vision-model", 1024, time.Second)
	got := a.Describe(context.Background(), []byte{0x01})
	if !strings.Contains(got, "model overloaded") {
		t.Fatalf("fallback must embed the error detail, got %q", got)
	}
}

func TestDescribe_NotConfigured(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(nil, "", "", "", 0, 0)
	got := a.Describe(context.Background(), []byte{0x01})
	if !strings.Contains(got, "not configured") {
		t.Fatalf("expected configuration fallback, got %q", got)
	}
}
