package authflow

import (
	"context"
	"strconv"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Flag keys written by the session store. The outbound API layer reads the
// durable token; route guards read these session-scoped flags.
const (
	FlagAuthenticated   = "isAuthenticated"
	FlagNormalizedEmail = "userEmail"
	FlagIsAdmin         = "isAdmin"
)

var flagKeys = []string{FlagAuthenticated, FlagNormalizedEmail, FlagIsAdmin}

// DurableStore persists the bearer token across page instances.
type DurableStore interface {
	SetToken(ctx context.Context, token string) error
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// FlagStore holds the session-scoped string flags consumed synchronously by
// route guards.
type FlagStore interface {
	Set(key, value string)
	Get(key string) (string, bool)
	Delete(key string)
}

// MemoryDurableStore is the in-process DurableStore used by default and in
// tests.
type MemoryDurableStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

func NewMemoryDurableStore() *MemoryDurableStore {
	return &MemoryDurableStore{}
}

func (m *MemoryDurableStore) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

func (m *MemoryDurableStore) Token(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return "", nil
	}
	return m.token, nil
}

func (m *MemoryDurableStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}

// MemoryFlagStore is the in-process FlagStore.
type MemoryFlagStore struct {
	mu    sync.RWMutex
	flags map[string]string
}

func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{flags: map[string]string{}}
}

func (m *MemoryFlagStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = value
}

func (m *MemoryFlagStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.flags[key]
	return v, ok
}

func (m *MemoryFlagStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, key)
}

// SessionStore writes session state through to both the durable token store
// and the session-scoped flags. Only the bootstrap sequencer and the auth
// context mutate it; everything else reads.
type SessionStore struct {
	durable DurableStore
	flags   FlagStore
	logger  Logger
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionStoreLogger overrides the default logger.
func WithSessionStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionStore builds a write-through store. Nil arguments fall back to
// the in-memory implementations.
func NewSessionStore(durable DurableStore, flags FlagStore, opts ...SessionStoreOption) *SessionStore {
	if durable == nil {
		durable = NewMemoryDurableStore()
	}
	if flags == nil {
		flags = NewMemoryFlagStore()
	}

	s := &SessionStore{
		durable: durable,
		flags:   flags,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Set persists the session and the guard-facing profile flags.
func (s *SessionStore) Set(ctx context.Context, session Session, profile DerivedProfile) error {
	if err := s.durable.SetToken(ctx, session.AccessToken); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist access token")
	}

	s.flags.Set(FlagAuthenticated, strconv.FormatBool(session.Authenticated))
	s.flags.Set(FlagNormalizedEmail, profile.NormalizedEmail)
	s.flags.Set(FlagIsAdmin, strconv.FormatBool(profile.IsAdmin))

	return nil
}

// Clear removes every key the store ever wrote. Partial clearing is a
// correctness bug: a stale authenticated flag with no token violates the
// store invariant.
func (s *SessionStore) Clear(ctx context.Context) error {
	for _, key := range flagKeys {
		s.flags.Delete(key)
	}

	if err := s.durable.Clear(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear durable token")
	}

	return nil
}

// Get reads back the current session. It returns ErrSessionCorrupt when the
// flags claim an authenticated session but no token survives; callers are
// expected to force a full Clear and re-initialize.
func (s *SessionStore) Get(ctx context.Context) (Session, error) {
	token, err := s.durable.Token(ctx)
	if err != nil {
		return Session{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read durable token")
	}

	authenticated := false
	if raw, ok := s.flags.Get(FlagAuthenticated); ok {
		authenticated, _ = strconv.ParseBool(raw)
	}

	if authenticated && token == "" {
		return Session{}, ErrSessionCorrupt
	}

	return Session{
		AccessToken:   token,
		Authenticated: authenticated,
	}, nil
}

// Flags exposes the guard-facing flag store for read-only collaborators.
func (s *SessionStore) Flags() FlagStore {
	return s.flags
}
