package authflow

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ProfileConfig controls how raw provider identifiers are normalized into
// caller-facing addresses.
type ProfileConfig struct {
	// PrimaryDomain is the corporate domain reconstructed addresses land on.
	PrimaryDomain string

	// TrustedDomains are passed through (rewritten onto PrimaryDomain)
	// rather than reconstructed from the display name.
	TrustedDomains []string
}

func (c ProfileConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PrimaryDomain, validation.Required),
	)
}

func (c ProfileConfig) isTrusted(domain string) bool {
	domain = strings.ToLower(domain)
	if domain == strings.ToLower(c.PrimaryDomain) {
		return true
	}
	for _, trusted := range c.TrustedDomains {
		if domain == strings.ToLower(trusted) {
			return true
		}
	}
	return false
}

// DerivedProfile combines identity attributes with an authorization
// decision into the flat shape collaborators consume.
type DerivedProfile struct {
	NormalizedEmail string
	SubjectKey      uuid.UUID
	IsAdmin         bool
}

// DeriveProfile computes the profile for an identity. The derivation is
// best-effort and idempotent: the same identity and decision always produce
// the same profile.
func DeriveProfile(identity Identity, decision Decision, cfg ProfileConfig) DerivedProfile {
	email := NormalizeEmail(identity, cfg)

	profile := DerivedProfile{
		NormalizedEmail: email,
		IsAdmin:         decision.IsAdmin,
	}

	if key, err := hashid.NewUUID(email); err == nil {
		profile.SubjectKey = key
	}

	return profile
}

// NormalizeEmail derives the caller-facing address:
//
//  1. identifiers on a trusted domain keep their local part, rewritten onto
//     the primary domain, case-folded
//  2. otherwise the address is reconstructed as first.last@primary from the
//     first and last display-name tokens
//  3. with neither available the raw identifier is returned unchanged
func NormalizeEmail(identity Identity, cfg ProfileConfig) string {
	raw := strings.TrimSpace(identity.Identifier)

	if local, domain, ok := splitAddress(raw); ok && cfg.isTrusted(domain) {
		return strings.ToLower(local + "@" + cfg.PrimaryDomain)
	}

	tokens := strings.Fields(identity.DisplayName)
	if len(tokens) >= 2 {
		first := strings.ToLower(tokens[0])
		last := strings.ToLower(tokens[len(tokens)-1])
		return first + "." + last + "@" + strings.ToLower(cfg.PrimaryDomain)
	}

	return raw
}

func splitAddress(identifier string) (local, domain string, ok bool) {
	at := strings.LastIndex(identifier, "@")
	if at <= 0 || at == len(identifier)-1 {
		return "", "", false
	}
	return identifier[:at], identifier[at+1:], true
}
