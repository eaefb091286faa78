package entra

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/goliatone/go-authflow"
)

// Cache keys. The cache must outlive a navigation for the interactive
// continuation to work, so production shells supply a persistent
// implementation; the in-memory default is enough for silent-only use and
// tests.
const (
	cacheKeyIdentity     = "entra.identity"
	cacheKeyRefreshToken = "entra.refresh_token"
	cacheKeyAccessToken  = "entra.access_token"
	cacheKeyExpiresAt    = "entra.expires_at"
	cacheKeyPendingState = "entra.pending_state"
)

// silentExpiryMargin guards against handing out a token that dies mid
// request.
const silentExpiryMargin = 30 * time.Second

// Cache stores the provider's own string state across page instances.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryCache is the default in-process Cache.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: map[string]string{}}
}

func (m *MemoryCache) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryCache) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// Client implements authflow.ProviderClient against an AAD-style tenant
// using the fragment-encoded redirect flow. Interactive operations always
// navigate; there is no popup path.
type Client struct {
	cfg       Config
	oauth     *oauth2.Config
	nav       authflow.Navigator
	cache     Cache
	logger    authflow.Logger
	validator *TokenValidator

	mu            sync.Mutex
	initialized   bool
	loginInFlight bool
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger authflow.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache supplies a persistent cache so identity and refresh state
// survive the interactive navigation.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithTokenValidator enables id_token signature validation.
func WithTokenValidator(v *TokenValidator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// New builds a Client. Configuration problems surface from Initialize, not
// here, so the application shell can construct its wiring unconditionally.
func New(cfg Config, nav authflow.Navigator, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		nav:    nav,
		cache:  NewMemoryCache(),
		logger: noopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Initialize validates configuration and loads any cached identity. It must
// be called before any other operation. A misconfigured provider reports
// ErrProviderUnavailable; callers log it and boot unauthenticated.
func (c *Client) Initialize(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	if err := c.cfg.Validate(); err != nil {
		return sentinelError(authflow.ErrProviderUnavailable, "invalid provider configuration",
			map[string]any{"cause": err.Error()})
	}

	if c.cfg.JWKSURL != "" && c.validator == nil {
		validator, err := NewTokenValidator(c.cfg.JWKSURL)
		if err != nil {
			return sentinelError(authflow.ErrProviderUnavailable, "failed to configure id token validation",
				map[string]any{"cause": err.Error()})
		}
		c.validator = validator
	}

	c.oauth = c.cfg.oauthConfig()
	c.initialized = true
	return nil
}

// CompletePendingRedirect consumes the redirect payload detected on page
// load. It returns (nil, nil) when nothing was pending for this client.
func (c *Client) CompletePendingRedirect(_ context.Context, payload authflow.RedirectPayload) (*authflow.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}

	switch payload.Kind {
	case authflow.PayloadNone:
		return nil, nil
	case authflow.PayloadError:
		c.cache.Delete(cacheKeyPendingState)
		return nil, redirectError(payload.ErrorCode)
	}

	values, err := url.ParseQuery(payload.RawFragment)
	if err != nil {
		return nil, sentinelError(authflow.ErrRedirectFailed, "unparseable redirect fragment", nil)
	}

	pending, hasPending := c.cache.Get(cacheKeyPendingState)
	c.cache.Delete(cacheKeyPendingState)

	// The state parameter pairs this response with the navigation intent
	// recorded before we left. A response with no recorded intent is stale
	// (another tab, a replayed URL); a mismatched one is rejected outright.
	state := values.Get("state")
	if !hasPending {
		return nil, authflow.ErrRedirectExpired
	}
	if state != pending {
		return nil, sentinelError(authflow.ErrRedirectFailed, "state mismatch in redirect response", nil)
	}

	accessToken := values.Get("access_token")
	idToken := values.Get("id_token")
	if idToken == "" {
		return nil, sentinelError(authflow.ErrRedirectFailed, "redirect response carries no identity token", nil)
	}

	identity, err := identityFromIDToken(idToken, c.validator)
	if err != nil {
		return nil, sentinelError(authflow.ErrRedirectFailed, "failed to read identity from response",
			map[string]any{"cause": err.Error()})
	}

	c.storeIdentity(identity)
	if accessToken != "" {
		c.storeAccessToken(accessToken, expiresAtFrom(values.Get("expires_in")))
	}
	if refresh := values.Get("refresh_token"); refresh != "" {
		c.cache.Set(cacheKeyRefreshToken, refresh)
	}

	c.logger.Debug("entra: redirect completed for subject=%s", identity.SubjectID)
	return identity, nil
}

// CurrentIdentity reports the identity cached from an earlier page
// instance, if any.
func (c *Client) CurrentIdentity() *authflow.Identity {
	raw, ok := c.cache.Get(cacheKeyIdentity)
	if !ok || raw == "" {
		return nil
	}

	identity := &authflow.Identity{}
	if err := json.Unmarshal([]byte(raw), identity); err != nil {
		c.logger.Warn("entra: discarding unreadable cached identity: %v", err)
		c.cache.Delete(cacheKeyIdentity)
		return nil
	}

	return identity
}

// AcquireTokenSilently returns a fresh session without user interaction
// when possible: a still-valid cached token first, then a refresh grant.
// Failures that need the user are reported as the InteractionRequired
// family, never acted on here.
func (c *Client) AcquireTokenSilently(ctx context.Context, identity authflow.Identity) (*authflow.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}

	if session := c.cachedSession(); session != nil {
		return session, nil
	}

	refresh, ok := c.cache.Get(cacheKeyRefreshToken)
	if !ok || refresh == "" {
		return nil, authflow.ErrLoginRequired
	}

	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return nil, silentError(err)
	}

	if token.RefreshToken != "" && token.RefreshToken != refresh {
		c.cache.Set(cacheKeyRefreshToken, token.RefreshToken)
	}
	c.storeAccessToken(token.AccessToken, token.Expiry)

	c.logger.Debug("entra: silent acquisition succeeded for subject=%s", identity.SubjectID)
	return &authflow.Session{
		AccessToken:   token.AccessToken,
		ExpiresAt:     token.Expiry,
		Authenticated: true,
	}, nil
}

// BeginInteractiveLogin records a navigation intent and redirects to the
// provider's authorization endpoint. The result arrives on the next page
// instance. A flow this client already started makes this a logged no-op so
// two redirects can never race; the in-flight guard is per client, never
// persisted. Pending state left in the cache by an abandoned flow on an
// earlier page instance is overwritten so the user can always retry.
func (c *Client) BeginInteractiveLogin(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}

	if c.loginInFlight {
		c.logger.Info("entra: interactive login already in progress, ignoring")
		return nil
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	c.cache.Set(cacheKeyPendingState, state)

	authURL, err := url.Parse(c.oauth.Endpoint.AuthURL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "invalid authorization endpoint")
	}

	query := authURL.Query()
	query.Set("client_id", c.cfg.ClientID)
	query.Set("response_type", "id_token token")
	query.Set("response_mode", "fragment")
	query.Set("redirect_uri", c.cfg.RedirectURL)
	query.Set("scope", joinScopes(c.cfg.scopes()))
	query.Set("state", state)
	query.Set("nonce", nonce)
	authURL.RawQuery = query.Encode()

	c.loginInFlight = true
	c.logger.Debug("entra: beginning interactive login")
	c.nav.Navigate(authURL.String())
	return nil
}

// BeginLogout clears local provider state and navigates to the logout
// endpoint.
func (c *Client) BeginLogout(_ context.Context, identity authflow.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}

	c.cache.Delete(cacheKeyIdentity)
	c.cache.Delete(cacheKeyRefreshToken)
	c.cache.Delete(cacheKeyAccessToken)
	c.cache.Delete(cacheKeyExpiresAt)
	c.cache.Delete(cacheKeyPendingState)
	c.loginInFlight = false

	c.logger.Debug("entra: logging out subject=%s", identity.SubjectID)
	c.nav.Navigate(c.cfg.logoutURL())
	return nil
}

func (c *Client) ensureInitialized() error {
	if !c.initialized {
		return sentinelError(authflow.ErrProviderUnavailable, "provider not initialized", nil)
	}
	return nil
}

func (c *Client) cachedSession() *authflow.Session {
	token, ok := c.cache.Get(cacheKeyAccessToken)
	if !ok || token == "" {
		return nil
	}

	var expiresAt time.Time
	if raw, ok := c.cache.Get(cacheKeyExpiresAt); ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			expiresAt = time.Unix(unix, 0)
		}
	}

	session := &authflow.Session{
		AccessToken:   token,
		ExpiresAt:     expiresAt,
		Authenticated: true,
	}
	if session.IsExpired(silentExpiryMargin) {
		return nil
	}

	return session
}

func (c *Client) storeIdentity(identity *authflow.Identity) {
	encoded, err := json.Marshal(identity)
	if err != nil {
		c.logger.Warn("entra: failed to cache identity: %v", err)
		return
	}
	c.cache.Set(cacheKeyIdentity, string(encoded))
}

func (c *Client) storeAccessToken(token string, expiresAt time.Time) {
	c.cache.Set(cacheKeyAccessToken, token)
	if expiresAt.IsZero() {
		c.cache.Delete(cacheKeyExpiresAt)
		return
	}
	c.cache.Set(cacheKeyExpiresAt, strconv.FormatInt(expiresAt.Unix(), 10))
}

// redirectError maps provider error codes onto the cancelled / expired /
// other taxonomy.
func redirectError(code string) error {
	switch code {
	case "access_denied", "user_cancelled", "login_cancelled":
		return authflow.ErrRedirectCancelled
	case "expired_token", "token_expired", "state_expired":
		return authflow.ErrRedirectExpired
	default:
		return sentinelError(authflow.ErrRedirectFailed, "", map[string]any{"code": code})
	}
}

// silentError maps a refresh-grant failure onto the InteractionRequired
// family when the provider says the user has to come back.
func silentError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		switch retrieve.ErrorCode {
		case "interaction_required":
			return authflow.ErrInteractionRequired
		case "consent_required":
			return authflow.ErrConsentRequired
		case "login_required", "invalid_grant":
			return authflow.ErrLoginRequired
		}
	}

	return sentinelError(authflow.ErrProviderFailure, "silent token acquisition failed",
		map[string]any{"cause": err.Error()})
}

// sentinelError returns a copy of base carrying call-site detail. Cloning
// keeps the shared sentinel immutable, and pointing Source back at it keeps
// errors.Is matching across the copy.
func sentinelError(base *goerrors.Error, message string, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}

	if message != "" {
		clone.Message = message
	}
	clone.Source = base
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}

	return clone
}

func expiresAtFrom(expiresIn string) time.Time {
	if expiresIn == "" {
		return time.Time{}
	}
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
