package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/TheBase/TheBase/internal/store"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]store.User
}

func (m *memUsers) CreateUser(ctx context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return store.ErrDuplicate
	}
	u.ID = "u-" + u.Email
	m.users[u.Email] = *u
	return nil
}

func (m *memUsers) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(&memUsers{users: map[string]store.User{}}, time.Hour)
	m.cost = bcrypt.MinCost
	return m
}

func TestSignUpSignInSignOut(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var events []string
	m.Subscribe(func(s *Session, ev Event) { events = append(events, ev.Type) })

	s, err := m.SignUp(ctx, "Me@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if s.Email != "me@example.com" || len(s.Token) != 64 {
		t.Fatalf("unexpected session %+v", s)
	}
	if _, err := m.SignUp(ctx, "me@example.com", "hunter22"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := m.SignIn(ctx, "me@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.SignIn(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user should be invalid credentials, got %v", err)
	}

	got, err := m.Lookup(s.Token)
	if err != nil || got != s {
		t.Fatalf("lookup: %v", err)
	}
	if err := m.SignOut(s.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := m.Lookup(s.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after sign out, got %v", err)
	}
	if err := m.SignOut(s.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second sign out: %v", err)
	}
	if len(events) != 2 || events[0] != EventSignedIn || events[1] != EventSignedOut {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.SignUp(ctx, "a@example.com", "password1"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	first, _ := m.SignIn(ctx, "a@example.com", "password1")
	second, _ := m.SignIn(ctx, "a@example.com", "password1")

	var firstEvents, secondEvents int
	first.Subscribe(func(Event) { firstEvents++ })
	unsub := second.Subscribe(func(Event) { secondEvents++ })
	unsub()

	if err := m.SignOut(first.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if first.Active() || !second.Active() {
		t.Fatal("signing out one session must not end the other")
	}
	if _, err := m.Lookup(second.Token); err != nil {
		t.Fatalf("second session should remain: %v", err)
	}
	if err := m.SignOut(second.Token); err != nil {
		t.Fatalf("sign out second: %v", err)
	}
	if firstEvents != 1 || secondEvents != 0 {
		t.Fatalf("unexpected deliveries first=%d second=%d", firstEvents, secondEvents)
	}
}

func TestLookupExpires(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := m.SignUp(ctx, "b@example.com", "password1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	var ended bool
	s.Subscribe(func(ev Event) { ended = ev.Type == EventSignedOut })

	now = now.Add(2 * time.Hour)
	if _, err := m.Lookup(s.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if !ended || m.Count() != 0 {
		t.Fatalf("expired session should be signed out (ended=%v count=%d)", ended, m.Count())
	}
}

func TestSignUpValidation(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.SignUp(context.Background(), "not-an-email", "password1"); err == nil {
		t.Fatal("expected invalid email error")
	}
	if _, err := m.SignUp(context.Background(), "c@example.com", "123"); err == nil {
		t.Fatal("expected short password error")
	}
}
