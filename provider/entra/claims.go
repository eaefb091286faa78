package entra

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-authflow"
)

// idTokenClaims is the subset of id_token claims this client reads. The
// token itself stays opaque to everything outside this package.
type idTokenClaims struct {
	jwt.RegisteredClaims
	ObjectID          string `json:"oid,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
}

func (c *idTokenClaims) identity() *authflow.Identity {
	subject := c.ObjectID
	if subject == "" {
		subject = c.Subject
	}

	identifier := c.PreferredUsername
	if identifier == "" {
		identifier = c.Email
	}

	display := strings.TrimSpace(c.Name)
	if display == "" {
		display = identifier
	}

	return &authflow.Identity{
		SubjectID:   subject,
		Identifier:  identifier,
		DisplayName: display,
	}
}

// identityFromIDToken extracts an identity from a raw id_token. With a
// validator the signature is checked first; without one the claims are read
// as-is, matching the opaque-provider contract.
func identityFromIDToken(raw string, validator *TokenValidator) (*authflow.Identity, error) {
	claims := &idTokenClaims{}

	if validator != nil {
		if err := validator.Validate(raw, claims); err != nil {
			return nil, err
		}
		return claims.identity(), nil
	}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}

	return claims.identity(), nil
}
