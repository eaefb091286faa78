package authflow

import (
	"net/url"
	"strings"
)

// PayloadKind classifies what, if anything, the current URL fragment carries
// from the identity provider.
type PayloadKind string

const (
	PayloadNone  PayloadKind = "none"
	PayloadToken PayloadKind = "token"
	PayloadError PayloadKind = "error"
)

// RedirectPayload is the provider response carried in the URL fragment on
// return from an interactive flow. It is produced once per page instance
// and consumed exactly once by the bootstrap sequencer.
type RedirectPayload struct {
	Kind        PayloadKind
	RawFragment string
	ErrorCode   string
}

// fragmentMarkers are the only fragment parameters that identify a provider
// response. An unrelated fragment (a deep-link anchor) carries none of them.
var fragmentMarkers = []string{"access_token", "id_token", "code", "error"}

// ParseRedirect inspects rawURL for a provider response fragment. It is
// pure and synchronous; it never reaches the network and is safe to call
// before any other component initializes.
func ParseRedirect(rawURL string) RedirectPayload {
	fragment := extractFragment(rawURL)
	if fragment == "" {
		return RedirectPayload{Kind: PayloadNone}
	}

	if !hasMarker(fragment) {
		return RedirectPayload{Kind: PayloadNone}
	}

	values, err := url.ParseQuery(fragment)
	if err != nil {
		// A fragment that merely mentions a marker but does not parse as a
		// response is not a provider payload.
		return RedirectPayload{Kind: PayloadNone}
	}

	if code := values.Get("error"); code != "" {
		return RedirectPayload{
			Kind:        PayloadError,
			RawFragment: fragment,
			ErrorCode:   code,
		}
	}

	if values.Get("access_token") != "" || values.Get("id_token") != "" || values.Get("code") != "" {
		return RedirectPayload{
			Kind:        PayloadToken,
			RawFragment: fragment,
		}
	}

	return RedirectPayload{Kind: PayloadNone}
}

// ScrubFragment returns rawURL with a provider response fragment removed so
// routing never re-interprets it. Unrelated fragments are preserved.
func ScrubFragment(rawURL string) string {
	idx := strings.Index(rawURL, "#")
	if idx < 0 {
		return rawURL
	}

	if ParseRedirect(rawURL).Kind == PayloadNone {
		return rawURL
	}

	return rawURL[:idx]
}

func hasMarker(fragment string) bool {
	for _, marker := range fragmentMarkers {
		if strings.Contains(fragment, marker+"=") {
			return true
		}
	}
	return false
}

func extractFragment(rawURL string) string {
	idx := strings.Index(rawURL, "#")
	if idx < 0 {
		return ""
	}
	return rawURL[idx+1:]
}
