package authflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider drives the auth context through whichever bootstrap outcome a
// guard scenario needs.
type stubProvider struct {
	identity *Identity
	session  *Session
}

func (s *stubProvider) Initialize(context.Context) error { return nil }

func (s *stubProvider) CompletePendingRedirect(context.Context, RedirectPayload) (*Identity, error) {
	return nil, nil
}

func (s *stubProvider) CurrentIdentity() *Identity { return s.identity }

func (s *stubProvider) AcquireTokenSilently(context.Context, Identity) (*Session, error) {
	if s.session == nil {
		return nil, ErrLoginRequired
	}
	return s.session, nil
}

func (s *stubProvider) BeginInteractiveLogin(context.Context) error { return nil }

func (s *stubProvider) BeginLogout(context.Context, Identity) error { return nil }

func guardTestContext(t *testing.T, provider *stubProvider, isAdmin bool) *AuthContext {
	t.Helper()

	directory := directoryForAdmin(isAdmin)
	store := NewSessionStore(nil, nil)
	resolver := NewResolver(directory, "admin-group")
	nav := &staticNavigator{url: "https://app.example.com/"}
	seq := NewSequencer(provider, store, resolver, nav, ProfileConfig{PrimaryDomain: "paconsulting.com"})

	return NewAuthContext(seq, provider, store)
}

type staticNavigator struct{ url string }

func (n *staticNavigator) CurrentURL() string    { return n.url }
func (n *staticNavigator) ReplaceURL(url string) { n.url = url }
func (n *staticNavigator) Navigate(string)       {}

type staticDirectory struct{ groups []Group }

func (d staticDirectory) Memberships(context.Context, string) ([]Group, error) {
	return d.groups, nil
}

func directoryForAdmin(isAdmin bool) DirectoryClient {
	if isAdmin {
		return staticDirectory{groups: []Group{{ID: "admin-group"}}}
	}
	return staticDirectory{}
}

func TestGuardDecision(t *testing.T) {
	ctx := context.Background()

	authedProvider := func() *stubProvider {
		return &stubProvider{
			identity: &Identity{SubjectID: "oid-1", Identifier: "jane.doe@paconsulting.com"},
			session: &Session{
				AccessToken:   "token",
				ExpiresAt:     time.Now().Add(time.Hour),
				Authenticated: true,
			},
		}
	}

	t.Run("loading yields pending, not denial", func(t *testing.T) {
		a := guardTestContext(t, authedProvider(), false)

		assert.Equal(t, guardPending, guardDecision(a, false))
		assert.Equal(t, guardPending, guardDecision(a, true))
	})

	t.Run("unauthenticated is denied", func(t *testing.T) {
		a := guardTestContext(t, &stubProvider{}, false)
		_, err := a.Bootstrap(ctx)
		require.NoError(t, err)

		assert.Equal(t, guardDenyUnauthenticated, guardDecision(a, false))
		assert.Equal(t, guardDenyUnauthenticated, guardDecision(a, true))
	})

	t.Run("authenticated non admin", func(t *testing.T) {
		a := guardTestContext(t, authedProvider(), false)
		_, err := a.Bootstrap(ctx)
		require.NoError(t, err)

		assert.Equal(t, guardAllow, guardDecision(a, false))
		assert.Equal(t, guardDenyForbidden, guardDecision(a, true))
	})

	t.Run("authenticated admin", func(t *testing.T) {
		a := guardTestContext(t, authedProvider(), true)
		_, err := a.Bootstrap(ctx)
		require.NoError(t, err)

		assert.Equal(t, guardAllow, guardDecision(a, false))
		assert.Equal(t, guardAllow, guardDecision(a, true))
	})

	t.Run("interactive flow in flight yields pending", func(t *testing.T) {
		a := guardTestContext(t, &stubProvider{}, false)
		_, err := a.Bootstrap(ctx)
		require.NoError(t, err)
		require.NoError(t, a.Login(ctx))

		assert.Equal(t, guardPending, guardDecision(a, false))
	})
}
