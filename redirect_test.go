package authflow_test

import (
	"testing"

	auth "github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
)

func TestParseRedirectClassification(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantKind  auth.PayloadKind
		wantError string
	}{
		{
			name:     "no fragment",
			url:      "https://app.example.com/proposals",
			wantKind: auth.PayloadNone,
		},
		{
			name:     "access token fragment",
			url:      "https://app.example.com/#access_token=abc&state=x",
			wantKind: auth.PayloadToken,
		},
		{
			name:     "id token fragment",
			url:      "https://app.example.com/#id_token=abc.def.ghi&state=x",
			wantKind: auth.PayloadToken,
		},
		{
			name:     "authorization code fragment",
			url:      "https://app.example.com/#code=xyz&state=x",
			wantKind: auth.PayloadToken,
		},
		{
			name:      "error fragment",
			url:       "https://app.example.com/#error=access_denied&error_description=user",
			wantKind:  auth.PayloadError,
			wantError: "access_denied",
		},
		{
			name:     "deep link anchor is not a payload",
			url:      "https://app.example.com/docs#section-2",
			wantKind: auth.PayloadNone,
		},
		{
			name:     "anchor mentioning a marker without a value",
			url:      "https://app.example.com/docs#decode=1",
			wantKind: auth.PayloadNone,
		},
		{
			name:     "query params are not a fragment",
			url:      "https://app.example.com/?access_token=abc",
			wantKind: auth.PayloadNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := auth.ParseRedirect(tt.url)
			assert.Equal(t, tt.wantKind, payload.Kind)
			assert.Equal(t, tt.wantError, payload.ErrorCode)
		})
	}
}

func TestParseRedirectIsPure(t *testing.T) {
	url := "https://app.example.com/#access_token=abc&state=x"

	first := auth.ParseRedirect(url)
	second := auth.ParseRedirect(url)

	assert.Equal(t, first, second)
	assert.Equal(t, "access_token=abc&state=x", first.RawFragment)
}

func TestScrubFragment(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "removes provider response fragment",
			url:  "https://app.example.com/#access_token=abc&state=x",
			want: "https://app.example.com/",
		},
		{
			name: "removes error fragment",
			url:  "https://app.example.com/callback#error=server_error",
			want: "https://app.example.com/callback",
		},
		{
			name: "preserves unrelated anchor",
			url:  "https://app.example.com/docs#section-2",
			want: "https://app.example.com/docs#section-2",
		},
		{
			name: "no fragment",
			url:  "https://app.example.com/",
			want: "https://app.example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ScrubFragment(tt.url))
		})
	}
}
