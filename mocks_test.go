package authflow_test

import (
	"context"
	"strings"
	"sync"

	auth "github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/mock"
)

// MockProvider implements auth.ProviderClient
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) CompletePendingRedirect(ctx context.Context, payload auth.RedirectPayload) (*auth.Identity, error) {
	args := m.Called(ctx, payload)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

func (m *MockProvider) CurrentIdentity() *auth.Identity {
	args := m.Called()
	identity, _ := args.Get(0).(*auth.Identity)
	return identity
}

func (m *MockProvider) AcquireTokenSilently(ctx context.Context, identity auth.Identity) (*auth.Session, error) {
	args := m.Called(ctx, identity)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockProvider) BeginInteractiveLogin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) BeginLogout(ctx context.Context, identity auth.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

// MockDirectory implements auth.DirectoryClient
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Memberships(ctx context.Context, bearerToken string) ([]auth.Group, error) {
	args := m.Called(ctx, bearerToken)
	groups, _ := args.Get(0).([]auth.Group)
	return groups, args.Error(1)
}

// MockSink implements auth.ActivitySink
type MockSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (m *MockSink) Record(_ context.Context, event auth.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockSink) Events() []auth.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.ActivityEvent(nil), m.events...)
}

// fakeNavigator records navigation without a browser.
type fakeNavigator struct {
	mu       sync.Mutex
	current  string
	replaced []string
	visited  []string
}

func newFakeNavigator(current string) *fakeNavigator {
	return &fakeNavigator{current: current}
}

func (f *fakeNavigator) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeNavigator) ReplaceURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = url
	f.replaced = append(f.replaced, url)
}

func (f *fakeNavigator) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, url)
}

func (f *fakeNavigator) visitedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visited...)
}

// failingDurableStore errors on every operation.
type failingDurableStore struct {
	err error
}

func (f failingDurableStore) SetToken(context.Context, string) error { return f.err }
func (f failingDurableStore) Token(context.Context) (string, error)  { return "", f.err }
func (f failingDurableStore) Clear(context.Context) error            { return f.err }

func testProfileConfig() auth.ProfileConfig {
	return auth.ProfileConfig{
		PrimaryDomain:  "paconsulting.com",
		TrustedDomains: []string{"conmacdev.onmicrosoft.com"},
	}
}

func hasPrefixAny(urls []string, prefix string) bool {
	for _, u := range urls {
		if strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}
