package entra

import (
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const defaultTenant = "common"

// Config holds the redirect-flow configuration for an AAD-style tenant.
// There is deliberately no popup anywhere in this client: every interactive
// operation is a full navigation.
type Config struct {
	// ClientID is the public application (client) identifier.
	ClientID string

	// TenantID is the tenant/realm identifier. Empty means the common
	// endpoint.
	TenantID string

	// RedirectURL is where the provider returns the fragment-encoded
	// response.
	RedirectURL string

	// PostLogoutRedirectURL is where the provider lands after logout.
	// Defaults to RedirectURL.
	PostLogoutRedirectURL string

	// Scopes requested during login and silent acquisition.
	Scopes []string

	// JWKSURL enables id_token signature validation when set. The core
	// treats the provider as opaque, so this defaults to off.
	JWKSURL string
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.RedirectURL, validation.Required, is.URL),
		validation.Field(&c.PostLogoutRedirectURL, is.URL),
		validation.Field(&c.JWKSURL, is.URL),
	)
}

func (c Config) tenant() string {
	if t := strings.TrimSpace(c.TenantID); t != "" {
		return t
	}
	return defaultTenant
}

func (c Config) scopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return []string{"openid", "profile", "User.Read"}
}

func (c Config) endpoint() oauth2.Endpoint {
	return microsoft.AzureADEndpoint(c.tenant())
}

func (c Config) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURL,
		Endpoint:    c.endpoint(),
		Scopes:      c.scopes(),
	}
}

func (c Config) logoutURL() string {
	target := c.PostLogoutRedirectURL
	if target == "" {
		target = c.RedirectURL
	}

	query := url.Values{}
	if target != "" {
		query.Set("post_logout_redirect_uri", target)
	}

	logout := "https://login.microsoftonline.com/" + c.tenant() + "/oauth2/v2.0/logout"
	if encoded := query.Encode(); encoded != "" {
		logout += "?" + encoded
	}
	return logout
}
