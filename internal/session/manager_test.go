package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	sessions map[string]Session
	getErr   error
	putErr   error
	puts     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]Session{}}
}

func (s *fakeStore) Get(ctx context.Context, identity string) (Session, error) {
	if s.getErr != nil {
		return Session{}, s.getErr
	}
	sess, ok := s.sessions[identity]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *fakeStore) Put(ctx context.Context, sess Session) error {
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.sessions[sess.Identity] = sess
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, identity string) error {
	delete(s.sessions, identity)
	return nil
}

func (s *fakeStore) List(ctx context.Context) ([]Session, error) {
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func (s *fakeStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func TestResolve_CreatesThenReuses(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(nil, store, 24*time.Hour)

	first := m.Resolve(context.Background(), "U1")
	if !first.Created || first.Transient {
		t.Fatalf("expected created durable session, got %+v", first)
	}
	if first.SessionID == "" {
		t.Fatal("expected a minted session id")
	}

	second := m.Resolve(context.Background(), "U1")
	if second.Created || second.Transient {
		t.Fatalf("expected reused session, got %+v", second)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("resolve not idempotent within TTL: %q != %q", second.SessionID, first.SessionID)
	}
}

func TestResolve_RefreshesExpiry(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(nil, store, time.Hour)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	m.Resolve(context.Background(), "U1")

	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	m.Resolve(context.Background(), "U1")

	got := store.sessions["U1"].ExpiresAt
	want := base.Add(30 * time.Minute).Add(time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expiry not refreshed: got %v, want %v", got, want)
	}
}

func TestResolve_NewSessionAfterExpiry(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(nil, store, time.Hour)

	first := m.Resolve(context.Background(), "U1")

	// The store reports expired records as absent.
	delete(store.sessions, "U1")

	second := m.Resolve(context.Background(), "U1")
	if !second.Created {
		t.Fatalf("expected a fresh session after expiry, got %+v", second)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("expected a session id distinct from the expired one")
	}
}

func TestResolve_TransientOnLookupFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.getErr = errors.New("store unreachable")
	m := NewManager(nil, store, time.Hour)

	res := m.Resolve(context.Background(), "U1")
	if !res.Transient {
		t.Fatalf("expected transient session on store failure, got %+v", res)
	}
	if res.SessionID == "" {
		t.Fatal("transient resolution must still carry a session id")
	}
	if len(store.sessions) != 0 {
		t.Fatal("transient session must not be persisted")
	}
}

func TestResolve_TransientOnCreateWriteFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.putErr = errors.New("store unreachable")
	m := NewManager(nil, store, time.Hour)

	res := m.Resolve(context.Background(), "U1")
	if !res.Transient || res.SessionID == "" {
		t.Fatalf("expected transient session when the create write fails, got %+v", res)
	}
}

func TestResolve_RefreshWriteFailureStillReturnsStoredID(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sessions["U1"] = Session{Identity: "U1", SessionID: "sess-1", ExpiresAt: time.Now().Add(time.Hour)}
	store.putErr = errors.New("store unreachable")
	m := NewManager(nil, store, time.Hour)

	res := m.Resolve(context.Background(), "U1")
	if res.Transient || res.SessionID != "sess-1" {
		t.Fatalf("expected stored session id despite refresh failure, got %+v", res)
	}
}
