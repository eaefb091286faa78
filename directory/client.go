// Package directory is a thin client for the external membership
// directory. Only the authorization resolver calls it.
package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-authflow"
)

// DefaultBaseURL points at the Graph-style membership endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const membershipsPath = "/me/memberOf"

// Client lists group memberships for the caller identified by a bearer
// token. It implements authflow.DirectoryClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     authflow.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different directory host. Useful for
// sovereign clouds and tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger authflow.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a directory client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     noopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// membershipsResponse is the wire shape of the membership listing.
type membershipsResponse struct {
	Value []authflow.Group `json:"value"`
}

// Memberships returns the caller's groups. Every transport or decode
// failure is reported as ErrDirectoryUnreachable so the resolver can fail
// closed without inspecting causes.
func (c *Client) Memberships(ctx context.Context, bearerToken string) ([]authflow.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+membershipsPath, nil)
	if err != nil {
		return nil, unreachable("failed to build membership request", map[string]any{"cause": err.Error()})
	}

	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unreachable("membership request failed", map[string]any{"cause": err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unreachable("failed to read membership response", map[string]any{"cause": err.Error()})
	}

	if resp.StatusCode != http.StatusOK {
		// The body can carry hints about the caller; log at debug only.
		c.logger.Debug("directory: membership lookup failed: status=%d body=%s", resp.StatusCode, string(body))
		return nil, unreachable("membership lookup rejected", map[string]any{"status": resp.StatusCode})
	}

	var parsed membershipsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, unreachable("failed to parse membership response", map[string]any{"cause": err.Error()})
	}

	return parsed.Value, nil
}

// unreachable returns a copy of ErrDirectoryUnreachable carrying call-site
// detail. The copy keeps the sentinel in its Unwrap chain so errors.Is
// matches, and leaves the shared sentinel untouched.
func unreachable(message string, meta map[string]any) error {
	clone := authflow.ErrDirectoryUnreachable.Clone()
	if clone == nil {
		return authflow.ErrDirectoryUnreachable
	}

	clone.Message = message
	clone.Source = authflow.ErrDirectoryUnreachable
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}

	return clone
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
