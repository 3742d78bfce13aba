// Package session manages dashboard sign-in sessions. Each session is an
// explicit object with its own change subscribers; many can coexist.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/TheBase/TheBase/internal/store"
)

// Auth state changes delivered to subscribers.
const (
	EventSignedIn  = "SIGNED_IN"
	EventSignedOut = "SIGNED_OUT"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	ErrNoSession          = errors.New("no active session")
)

// MinPasswordLength is enforced on sign-up.
const MinPasswordLength = 6

// Event is an auth state change.
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Users is the account storage the manager needs.
type Users interface {
	CreateUser(ctx context.Context, u *store.User) error
	UserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Session is one signed-in user.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
	ended   bool
}

// Subscribe registers fn for this session's changes. The returned func
// removes the subscription.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = map[int]func(Event){}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Active reports whether the session has not been signed out.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

func (s *Session) end(ev Event) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Manager issues and tracks sessions.
type Manager struct {
	users Users
	ttl   time.Duration
	cost  int
	now   func() time.Time

	mu      sync.RWMutex
	cache   map[string]*Session
	subs    map[int]func(*Session, Event)
	nextSub int
}

// NewManager creates a manager whose sessions live for ttl.
func NewManager(users Users, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{
		users: users,
		ttl:   ttl,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
		cache: make(map[string]*Session),
		subs:  make(map[int]func(*Session, Event)),
	}
}

// SetCost changes the bcrypt cost for new password hashes.
func (m *Manager) SetCost(cost int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cost = cost
}

// Subscribe observes changes of every session.
func (m *Manager) Subscribe(fn func(*Session, Event)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SignUp creates an account and signs it in.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	m.mu.RLock()
	cost := m.cost
	m.mu.RUnlock()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	err = m.users.CreateUser(ctx, &store.User{Email: email, PasswordHash: string(hash)})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("User signed up", "email", email)
	return m.SignIn(ctx, email, password)
}

// SignIn checks credentials and opens a new session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := m.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		Token:     token,
		UserID:    u.ID,
		Email:     u.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.cache[token] = s
	m.mu.Unlock()

	m.notify(s, Event{Type: EventSignedIn, UserID: u.ID, Email: u.Email, At: now})
	return s, nil
}

// SignOut ends the session for token.
func (m *Manager) SignOut(token string) error {
	m.mu.Lock()
	s, ok := m.cache[token]
	delete(m.cache, token)
	m.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	m.endSession(s)
	return nil
}

// Lookup returns the live session for token. Expired sessions are signed out.
func (m *Manager) Lookup(token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.cache[token]
	m.mu.RUnlock()
	if !ok || token == "" {
		return nil, ErrNoSession
	}
	if !m.now().Before(s.ExpiresAt) {
		_ = m.SignOut(token)
		return nil, ErrNoSession
	}
	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

func (m *Manager) endSession(s *Session) {
	ev := Event{Type: EventSignedOut, UserID: s.UserID, Email: s.Email, At: m.now()}
	s.end(ev)
	m.notify(s, ev)
}

func (m *Manager) notify(s *Session, ev Event) {
	m.mu.RLock()
	subs := make([]func(*Session, Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(s, ev)
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
