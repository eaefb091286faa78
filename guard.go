package authflow

import (
	"net/http"

	"github.com/goliatone/go-router"
)

// guardVerdict is the decision a guard takes for a request, separated from
// transport so the policy is testable without a router.
type guardVerdict int

const (
	guardAllow guardVerdict = iota
	guardPending
	guardDenyUnauthenticated
	guardDenyForbidden
)

// guardDecision applies the route-guard policy. Loading means "render
// nothing yet": it is never treated as a denial.
func guardDecision(a *AuthContext, requireAdmin bool) guardVerdict {
	if a.IsLoading() {
		return guardPending
	}

	if !a.IsAuthenticated() {
		return guardDenyUnauthenticated
	}

	if requireAdmin {
		profile := a.Profile()
		if profile == nil || !profile.IsAdmin {
			return guardDenyForbidden
		}
	}

	return guardAllow
}

// Protected returns middleware that admits only authenticated callers and
// stows the identity and profile in the request context for handlers.
func (a *AuthContext) Protected() router.MiddlewareFunc {
	return a.guard(false)
}

// AdminOnly returns middleware that additionally requires the derived
// profile's admin flag.
func (a *AuthContext) AdminOnly() router.MiddlewareFunc {
	return a.guard(true)
}

func (a *AuthContext) guard(requireAdmin bool) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			switch guardDecision(a, requireAdmin) {
			case guardPending:
				return c.NoContent(http.StatusNoContent)
			case guardDenyUnauthenticated:
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			case guardDenyForbidden:
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "admin access required",
				})
			}

			ctx := c.Context()
			ctx = WithIdentityContext(ctx, a.Identity())
			ctx = WithProfileContext(ctx, a.Profile())
			c.SetContext(ctx)

			return hf(c)
		}
	}
}
