package authflow

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated subject as reported by
// the identity provider. It is read-only to everything outside the provider
// client and lives until logout or the end of the page instance.
type Identity struct {
	SubjectID   string
	Identifier  string
	DisplayName string
}

// Session holds the bearer token produced by a token acquisition. ExpiresAt
// is advisory; the provider remains the authority on token freshness.
type Session struct {
	AccessToken   string
	ExpiresAt     time.Time
	Authenticated bool
}

// IsExpired reports whether the session token expires within margin.
// Sessions without an expiration timestamp never expire locally.
func (s Session) IsExpired(margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(s.ExpiresAt)
}

// ProviderClient is the narrow boundary around the external identity
// provider. Initialize must complete before any other operation.
// BeginInteractiveLogin and BeginLogout are the only operations that cause
// full navigation; their results arrive on the next page instance through
// CompletePendingRedirect.
type ProviderClient interface {
	Initialize(ctx context.Context) error

	// CompletePendingRedirect consumes a previously detected redirect
	// payload. It returns (nil, nil) when there was nothing pending.
	CompletePendingRedirect(ctx context.Context, payload RedirectPayload) (*Identity, error)

	// CurrentIdentity reports the identity cached from an earlier page
	// instance, if any, so a warm return visit can go straight to silent
	// acquisition.
	CurrentIdentity() *Identity

	AcquireTokenSilently(ctx context.Context, identity Identity) (*Session, error)
	BeginInteractiveLogin(ctx context.Context) error
	BeginLogout(ctx context.Context, identity Identity) error
}

// Navigator abstracts the hosting environment's location bar. ReplaceURL
// rewrites the visible URL without navigating; Navigate abandons the current
// page instance entirely.
type Navigator interface {
	CurrentURL() string
	ReplaceURL(url string)
	Navigate(url string)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHFLOW "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
