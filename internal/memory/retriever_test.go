package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaiwa-bot/kaiwa/internal/transcript"
)

type fakeTurnReader struct {
	turns []transcript.Turn
	err   error
}

func (f *fakeTurnReader) Recent(ctx context.Context, identity, sessionID string, limit int) ([]transcript.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.turns) {
		return f.turns[:limit], nil
	}
	return f.turns, nil
}

type factQuery struct {
	namespace string
	identity  string
	topK      int
}

type fakeFactStore struct {
	queries  []factQuery
	byNS     map[string][]string
	failNS   map[string]error
}

func (f *fakeFactStore) Search(ctx context.Context, namespace, identity string, vector []float32, topK int) ([]string, error) {
	f.queries = append(f.queries, factQuery{namespace: namespace, identity: identity, topK: topK})
	if err, ok := f.failNS[namespace]; ok {
		return nil, err
	}
	snippets := f.byNS[namespace]
	if topK < len(snippets) {
		snippets = snippets[:topK]
	}
	return snippets, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func TestRecentTurns_FlattensRoleTaggedLines(t *testing.T) {
	t.Parallel()

	now := time.Now()
	reader := &fakeTurnReader{turns: []transcript.Turn{
		{UserText: "hello", AssistantText: "hi there", CreatedAt: now.Add(-time.Minute)},
		{UserText: "how are you", AssistantText: "fine", CreatedAt: now},
	}}
	r := NewRetriever(nil, reader, nil, nil, nil, 10, 3)

	got := r.RecentTurns(context.Background(), "U1", "sess-1")
	if got.Degraded {
		t.Fatal("unexpected degraded result")
	}
	want := []string{"USER: hello", "ASSISTANT: hi there", "USER: how are you", "ASSISTANT: fine"}
	if len(got.Lines) != len(want) {
		t.Fatalf("unexpected lines: %v", got.Lines)
	}
	for i := range want {
		if got.Lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, got.Lines[i], want[i])
		}
	}
}

func TestRecentTurns_DegradesOnStoreFailure(t *testing.T) {
	t.Parallel()

	reader := &fakeTurnReader{err: errors.New("log unreachable")}
	r := NewRetriever(nil, reader, nil, nil, nil, 10, 3)

	got := r.RecentTurns(context.Background(), "U1", "sess-1")
	if !got.Degraded || len(got.Lines) != 0 {
		t.Fatalf("expected empty degraded retrieval, got %+v", got)
	}
}

func TestSearchFacts_NamespaceOrderAndTopK(t *testing.T) {
	t.Parallel()

	store := &fakeFactStore{byNS: map[string][]string{
		"facts":       {"f1", "f2", "f3", "f4"},
		"preferences": {"p1", "p2"},
	}}
	r := NewRetriever(nil, nil, store, &fakeEmbedder{}, []string{"facts", "preferences"}, 10, 3)

	got := r.SearchFacts(context.Background(), "U1", "query")
	if got.Degraded {
		t.Fatal("unexpected degraded result")
	}
	want := []string{"f1", "f2", "f3", "p1", "p2"}
	if len(got.Lines) != len(want) {
		t.Fatalf("unexpected snippets: %v", got.Lines)
	}
	for i := range want {
		if got.Lines[i] != want[i] {
			t.Fatalf("snippet %d: got %q, want %q", i, got.Lines[i], want[i])
		}
	}

	if len(store.queries) != 2 {
		t.Fatalf("expected exactly two namespace queries, got %d", len(store.queries))
	}
	if store.queries[0].namespace != "facts" || store.queries[1].namespace != "preferences" {
		t.Fatalf("unexpected namespace order: %+v", store.queries)
	}
	for _, q := range store.queries {
		if q.topK != 3 {
			t.Fatalf("expected topK 3 per namespace, got %d", q.topK)
		}
		if q.identity != "U1" {
			t.Fatalf("expected identity scope, got %q", q.identity)
		}
	}
}

func TestSearchFacts_OneNamespaceFailureKeepsOthers(t *testing.T) {
	t.Parallel()

	store := &fakeFactStore{
		byNS:   map[string][]string{"preferences": {"p1"}},
		failNS: map[string]error{"facts": errors.New("search down")},
	}
	r := NewRetriever(nil, nil, store, &fakeEmbedder{}, []string{"facts", "preferences"}, 10, 3)

	got := r.SearchFacts(context.Background(), "U1", "query")
	if !got.Degraded {
		t.Fatal("expected degraded marker after a namespace failure")
	}
	if len(got.Lines) != 1 || got.Lines[0] != "p1" {
		t.Fatalf("expected surviving namespace snippets, got %v", got.Lines)
	}
}

func TestSearchFacts_NoStoreConfigured(t *testing.T) {
	t.Parallel()

	r := NewRetriever(nil, nil, nil, nil, nil, 10, 3)
	got := r.SearchFacts(context.Background(), "U1", "query")
	if got.Degraded || len(got.Lines) != 0 {
		t.Fatalf("expected immediate empty retrieval, got %+v", got)
	}
}

func TestSearchFacts_EmbedderFailureDegrades(t *testing.T) {
	t.Parallel()

	store := &fakeFactStore{byNS: map[string][]string{"facts": {"f1"}}}
	r := NewRetriever(nil, nil, store, &fakeEmbedder{err: errors.New("embed down")}, []string{"facts"}, 10, 3)

	got := r.SearchFacts(context.Background(), "U1", "query")
	if !got.Degraded || len(got.Lines) != 0 {
		t.Fatalf("expected empty degraded retrieval, got %+v", got)
	}
	if len(store.queries) != 0 {
		t.Fatal("no store call expected when embedding fails")
	}
}
