package authflow

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeProviderUnavailable  = "auth_provider_unavailable"
	TextCodeRedirectCancelled    = "auth_redirect_cancelled"
	TextCodeRedirectExpired      = "auth_redirect_expired"
	TextCodeRedirectFailed       = "auth_redirect_failed"
	TextCodeInteractionRequired  = "auth_interaction_required"
	TextCodeConsentRequired      = "auth_consent_required"
	TextCodeLoginRequired        = "auth_login_required"
	TextCodeProviderFailure      = "auth_provider_failure"
	TextCodeDirectoryUnreachable = "auth_directory_unreachable"
	TextCodeSessionCorrupt       = "auth_session_corrupt"
	TextCodeLoginInProgress      = "auth_login_in_progress"
)

// ErrProviderUnavailable indicates the provider could not be configured
// (e.g. a missing client identifier). The application still boots, just in
// an unauthenticated state.
var ErrProviderUnavailable = goerrors.New("identity provider unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeProviderUnavailable)

// ErrRedirectCancelled is returned when the user abandoned the interactive
// flow at the provider. It is ignored silently.
var ErrRedirectCancelled = goerrors.New("redirect cancelled by user", goerrors.CategoryAuth).
	WithTextCode(TextCodeRedirectCancelled)

// ErrRedirectExpired is returned when the redirect payload is stale.
var ErrRedirectExpired = goerrors.New("redirect response expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeRedirectExpired)

// ErrRedirectFailed covers every other redirect completion failure.
var ErrRedirectFailed = goerrors.New("redirect completion failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeRedirectFailed)

// ErrInteractionRequired, ErrConsentRequired, and ErrLoginRequired all mean
// the same thing to callers: silent acquisition cannot proceed and the user
// must explicitly re-authenticate. They are expected conditions, not faults.
var ErrInteractionRequired = goerrors.New("user interaction required", goerrors.CategoryAuth).
	WithTextCode(TextCodeInteractionRequired).
	WithCode(goerrors.CodeUnauthorized)

var ErrConsentRequired = goerrors.New("user consent required", goerrors.CategoryAuth).
	WithTextCode(TextCodeConsentRequired).
	WithCode(goerrors.CodeUnauthorized)

var ErrLoginRequired = goerrors.New("login required", goerrors.CategoryAuth).
	WithTextCode(TextCodeLoginRequired).
	WithCode(goerrors.CodeUnauthorized)

// ErrProviderFailure is a generic provider-side failure during token work.
var ErrProviderFailure = goerrors.New("identity provider error", goerrors.CategoryOperation).
	WithTextCode(TextCodeProviderFailure)

// ErrDirectoryUnreachable indicates the membership lookup failed; callers
// must treat it as non-admin, never as an open door.
var ErrDirectoryUnreachable = goerrors.New("directory unreachable", goerrors.CategoryOperation).
	WithTextCode(TextCodeDirectoryUnreachable)

// ErrSessionCorrupt indicates the stores disagree (e.g. an authenticated
// flag with no token). Resolved by a full clear and re-initialization.
var ErrSessionCorrupt = goerrors.New("session state corrupt", goerrors.CategoryConflict).
	WithTextCode(TextCodeSessionCorrupt).
	WithCode(goerrors.CodeConflict)

// ErrLoginInProgress is returned when a second interactive login is
// requested while one is already pending. There is only ever a single
// navigation intent.
var ErrLoginInProgress = goerrors.New("interactive login already in progress", goerrors.CategoryConflict).
	WithTextCode(TextCodeLoginInProgress).
	WithCode(goerrors.CodeConflict)

// IsInteractionRequired reports whether err belongs to the family of silent
// acquisition failures that route to the unauthenticated state instead of
// surfacing as faults.
func IsInteractionRequired(err error) bool {
	return errors.Is(err, ErrInteractionRequired) ||
		errors.Is(err, ErrConsentRequired) ||
		errors.Is(err, ErrLoginRequired)
}

// IsRedirectCancelled reports whether err is a user-cancelled redirect.
func IsRedirectCancelled(err error) bool {
	return errors.Is(err, ErrRedirectCancelled)
}
