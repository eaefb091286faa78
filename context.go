package authflow

import (
	"context"
	"sync"
	"time"
)

// tokenExpiryMargin is the slack applied when deciding whether a cached
// token is still worth handing out, covering clock skew and request
// latency.
const tokenExpiryMargin = 30 * time.Second

var identityCtxKey = &contextKey{"identity"}
var profileCtxKey = &contextKey{"profile"}

type contextKey struct {
	name string
}

// WithIdentityContext sets the Identity in the given context.
func WithIdentityContext(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(*Identity)
	return raw, ok
}

// WithProfileContext sets the DerivedProfile in the given context.
func WithProfileContext(ctx context.Context, profile *DerivedProfile) context.Context {
	return context.WithValue(ctx, profileCtxKey, profile)
}

// ProfileFromContext finds the derived profile from the context.
func ProfileFromContext(ctx context.Context) (*DerivedProfile, bool) {
	raw, ok := ctx.Value(profileCtxKey).(*DerivedProfile)
	return raw, ok
}

// AuthContext is the single source of truth the rest of the application may
// observe or call. Route guards, the outbound API client, and UI code read
// it; nothing else touches the sequencer or stores directly.
type AuthContext struct {
	sequencer *Sequencer
	provider  ProviderClient
	store     *SessionStore
	logger    Logger

	mu      sync.RWMutex
	loading bool
	result  *Result
}

// AuthContextOption customizes an AuthContext.
type AuthContextOption func(*AuthContext)

// WithAuthContextLogger overrides the default logger.
func WithAuthContextLogger(logger Logger) AuthContextOption {
	return func(a *AuthContext) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthContext wires the context to its sequencer. It starts in the
// loading state; call Bootstrap before rendering anything that depends on
// auth state.
func NewAuthContext(sequencer *Sequencer, provider ProviderClient, store *SessionStore, opts ...AuthContextOption) *AuthContext {
	a := &AuthContext{
		sequencer: sequencer,
		provider:  provider,
		store:     store,
		logger:    defLogger{},
		loading:   true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Bootstrap runs the sequencer to completion and publishes the result.
// IsLoading stays true for the entire initializing phase so guards never
// decide against partial state.
func (a *AuthContext) Bootstrap(ctx context.Context) (*Result, error) {
	result, err := a.sequencer.Run(ctx)

	a.mu.Lock()
	a.result = result
	a.loading = false
	a.mu.Unlock()

	return result, err
}

// IsLoading reports whether bootstrap (or an interactive flow) is still in
// flight. Guards must treat true as "render nothing yet", never as deny.
func (a *AuthContext) IsLoading() bool {
	a.mu.RLock()
	loading := a.loading
	a.mu.RUnlock()

	return loading || a.sequencer.State() == StateRedirectNavigated
}

// IsAuthenticated reports whether the bootstrap ended with a live session.
func (a *AuthContext) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.result != nil && a.result.State == StateReadyAuthenticated
}

// Identity returns the current identity, or nil when unauthenticated.
func (a *AuthContext) Identity() *Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.result == nil {
		return nil
	}
	return a.result.Identity
}

// Profile returns the derived profile, or nil when unauthenticated.
func (a *AuthContext) Profile() *DerivedProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.result == nil {
		return nil
	}
	return a.result.Profile
}

// LoginMessage returns the inline message for the login control, empty when
// the last bootstrap had nothing to report.
func (a *AuthContext) LoginMessage() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.result == nil {
		return ""
	}
	return a.result.LoginMessage
}

// Login begins the interactive redirect flow. The call navigates the page
// away and does not produce a usable result in this page instance; a second
// call while the first is pending is a rejected no-op.
func (a *AuthContext) Login(ctx context.Context) error {
	return a.sequencer.BeginLogin(ctx)
}

// Logout clears local session state and navigates to the provider's logout
// endpoint.
func (a *AuthContext) Logout(ctx context.Context) error {
	identity := a.Identity()
	if identity == nil {
		identity = &Identity{}
	}

	return a.sequencer.BeginLogout(ctx, *identity)
}

// GetAccessToken returns a bearer token for outbound calls. A cached token
// that is absent or stale triggers a silent refresh rather than handing out
// a known-bad value. Concurrent callers are safe; last writer wins, which
// is acceptable because token refresh is idempotent.
func (a *AuthContext) GetAccessToken(ctx context.Context) (string, error) {
	identity := a.Identity()
	if identity == nil {
		return "", ErrLoginRequired
	}

	session, err := a.currentSession()
	if err == nil && session.AccessToken != "" && !session.IsExpired(tokenExpiryMargin) {
		return session.AccessToken, nil
	}
	if err != nil {
		a.logger.Warn("token: cached session unusable, refreshing: %v", err)
	}

	fresh, err := a.provider.AcquireTokenSilently(ctx, *identity)
	if err != nil {
		return "", err
	}

	profile := DerivedProfile{}
	if p := a.Profile(); p != nil {
		profile = *p
	}

	if err := a.store.Set(ctx, *fresh, profile); err != nil {
		a.logger.Error("token: failed to persist refreshed session: %v", err)
	}

	a.mu.Lock()
	if a.result != nil {
		a.result.Session = fresh
	}
	a.mu.Unlock()

	return fresh.AccessToken, nil
}

func (a *AuthContext) currentSession() (Session, error) {
	a.mu.RLock()
	cached := (*Session)(nil)
	if a.result != nil {
		cached = a.result.Session
	}
	a.mu.RUnlock()

	if cached != nil {
		return *cached, nil
	}

	return Session{}, ErrLoginRequired
}
