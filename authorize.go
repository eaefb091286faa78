package authflow

import (
	"context"
	"strings"
)

// DecisionSource records how an authorization decision was reached.
type DecisionSource string

const (
	// SourceDirectoryMatch means the directory returned a group whose id
	// exactly equals the configured admin group id.
	SourceDirectoryMatch DecisionSource = "directory_match"

	// SourceHeuristicFallback means no group id was configured and the
	// identifier heuristic was applied. Degraded security; always logged.
	SourceHeuristicFallback DecisionSource = "heuristic_fallback"

	// SourceUnknown means the lookup could not be completed. Fail-closed.
	SourceUnknown DecisionSource = "unknown"
)

// Decision is the outcome of an authorization resolution.
type Decision struct {
	IsAdmin bool
	Source  DecisionSource
}

// Group is a single directory membership entry. Only the identifier takes
// part in authorization.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// DirectoryClient lists the caller's group memberships using their bearer
// token.
type DirectoryClient interface {
	Memberships(ctx context.Context, bearerToken string) ([]Group, error)
}

// adminHints are the identifier substrings the heuristic fallback accepts.
var adminHints = []string{"admin", "administrator"}

// Resolver determines the caller's role. The directory path is the security
// boundary: it admits only an exact group id match and resolves every
// transport failure to non-admin. The heuristic path exists for
// environments with no directory configured and must be explicitly enabled.
type Resolver struct {
	directory    DirectoryClient
	adminGroupID string
	allowHint    bool
	logger       Logger
	activitySink ActivitySink
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger overrides the default logger.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverActivitySink sets the sink used to flag degraded
// configurations.
func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *Resolver) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithHeuristicFallback enables the identifier-substring fallback for
// deployments without a configured admin group. Weaker than the directory
// path; every use is logged as a degraded-security configuration.
func WithHeuristicFallback() ResolverOption {
	return func(r *Resolver) {
		r.allowHint = true
	}
}

// NewResolver builds a Resolver. An empty adminGroupID disables the
// directory path entirely; in that configuration the resolver fails closed
// (nobody is admin) unless the identifier heuristic is explicitly enabled
// with WithHeuristicFallback.
func NewResolver(directory DirectoryClient, adminGroupID string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		directory:    directory,
		adminGroupID: strings.TrimSpace(adminGroupID),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Resolve determines the caller's role from their session and identity.
// It never returns an error: every failure mode maps to a fail-closed
// Decision.
func (r *Resolver) Resolve(ctx context.Context, session Session, identity Identity) Decision {
	if r.adminGroupID == "" {
		return r.resolveHeuristic(ctx, identity)
	}

	if r.directory == nil {
		r.logger.Warn("authorization: admin group configured but no directory client; failing closed")
		return Decision{IsAdmin: false, Source: SourceUnknown}
	}

	groups, err := r.directory.Memberships(ctx, session.AccessToken)
	if err != nil {
		r.logger.Warn("authorization: directory lookup failed: %v", err)
		return Decision{IsAdmin: false, Source: SourceUnknown}
	}

	// Exact id equality only. Substring or prefix matching here would turn
	// a security boundary into a guessing game.
	for _, group := range groups {
		if group.ID == r.adminGroupID {
			return Decision{IsAdmin: true, Source: SourceDirectoryMatch}
		}
	}

	return Decision{IsAdmin: false, Source: SourceDirectoryMatch}
}

func (r *Resolver) resolveHeuristic(ctx context.Context, identity Identity) Decision {
	if !r.allowHint {
		r.logger.Warn("authorization: no admin group configured and heuristic disabled; failing closed")
		return Decision{IsAdmin: false, Source: SourceUnknown}
	}

	r.logger.Warn("authorization: no admin group configured, using identifier heuristic (degraded security)")
	r.recordDegraded(ctx, identity)

	local := identity.Identifier
	if l, _, ok := splitAddress(identity.Identifier); ok {
		local = l
	}
	local = strings.ToLower(local)

	for _, hint := range adminHints {
		if strings.Contains(local, hint) {
			return Decision{IsAdmin: true, Source: SourceHeuristicFallback}
		}
	}

	return Decision{IsAdmin: false, Source: SourceHeuristicFallback}
}

func (r *Resolver) recordDegraded(ctx context.Context, identity Identity) {
	err := r.activitySink.Record(ctx, ActivityEvent{
		EventType: ActivityEventDegradedAuthz,
		SubjectID: identity.SubjectID,
		Metadata: map[string]any{
			"reason": "admin group not configured",
		},
	})
	if err != nil {
		r.logger.Warn("authorization: activity sink error: %v", err)
	}
}
