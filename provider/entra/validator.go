package entra

import (
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenValidator checks id_token signatures against the provider's JWKS.
type TokenValidator struct {
	jwks *keyfunc.JWKS
}

// NewTokenValidator fetches the JWK set from jwksURL and keeps it refreshed
// in the background.
func NewTokenValidator(jwksURL string) (*TokenValidator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("entra: background JWK set refresh failed: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load JWK set")
	}

	return &TokenValidator{jwks: jwks}, nil
}

// Validate parses raw into claims, rejecting tokens whose signature does
// not verify against the JWK set.
func (v *TokenValidator) Validate(raw string, claims jwt.Claims) error {
	if _, err := jwt.ParseWithClaims(raw, claims, v.jwks.Keyfunc); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "id token validation failed")
	}
	return nil
}

// Close stops the background JWKS refresh.
func (v *TokenValidator) Close() {
	v.jwks.EndBackground()
}
