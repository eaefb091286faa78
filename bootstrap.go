package authflow

import (
	"context"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_BOOTSTRAP_TRANSITION"

// ErrInvalidTransition is returned when a requested state change is not
// allowed. Seeing it means a caller drove the sequencer out of order; the
// sequencer itself never produces it during a normal page load.
var ErrInvalidTransition = goerrors.New("invalid bootstrap state transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// State is the single finite-state value downstream consumers branch on.
type State string

const (
	StateUninitialized        State = "uninitialized"
	StateInitializing         State = "initializing"
	StateRedirectNavigated    State = "redirect_navigated"
	StateReadyAuthenticated   State = "ready_authenticated"
	StateReadyUnauthenticated State = "ready_unauthenticated"
)

// Ready reports whether the state is terminal for this page instance with
// the page still alive (RedirectNavigated means the browser is leaving).
func (s State) Ready() bool {
	return s == StateReadyAuthenticated || s == StateReadyUnauthenticated
}

// Result is what the sequencer publishes once per page instance. It is the
// only thing the auth context exposes to the rest of the application.
type Result struct {
	State    State
	Identity *Identity
	Profile  *DerivedProfile
	Session  *Session
	Decision Decision

	// LoginMessage is the inline message for the login control when a
	// redirect failed. Nothing from this subsystem surfaces anywhere else.
	LoginMessage string
}

// Sequencer drives startup ordering: parse redirect, complete the pending
// redirect, silent token acquisition, authorization resolution, publish.
// It exclusively owns the transition logic; the session store and auth
// context are passive holders mutated only through its published results.
type Sequencer struct {
	provider   ProviderClient
	store      *SessionStore
	resolver   *Resolver
	nav        Navigator
	profileCfg ProfileConfig

	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	transitions  map[State]map[State]struct{}

	mu     sync.Mutex
	state  State
	result *Result
}

// SequencerOption customizes sequencer construction.
type SequencerOption func(*Sequencer)

// WithSequencerLogger overrides the default logger.
func WithSequencerLogger(logger Logger) SequencerOption {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSequencerClock injects a custom clock (useful for tests).
func WithSequencerClock(clock func() time.Time) SequencerOption {
	return func(s *Sequencer) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSequencerActivitySink sets the ActivitySink used to publish
// bootstrap lifecycle events.
func WithSequencerActivitySink(sink ActivitySink) SequencerOption {
	return func(s *Sequencer) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// NewSequencer returns a sequencer for one page instance. A fresh page load
// gets a fresh sequencer starting at Uninitialized; the interactive login
// continuation is linked across instances by the provider's redirect
// payload, not by in-memory state.
func NewSequencer(provider ProviderClient, store *SessionStore, resolver *Resolver, nav Navigator, profileCfg ProfileConfig, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		provider:   provider,
		store:      store,
		resolver:   resolver,
		nav:        nav,
		profileCfg: profileCfg,
		state:      StateUninitialized,
		transitions: map[State]map[State]struct{}{
			StateUninitialized: {
				StateInitializing: {},
			},
			StateInitializing: {
				StateReadyAuthenticated:   {},
				StateReadyUnauthenticated: {},
			},
			StateReadyUnauthenticated: {
				StateRedirectNavigated: {},
			},
			StateReadyAuthenticated: {
				StateRedirectNavigated: {},
			},
		},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// State reports the current bootstrap state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the published result, or nil while initializing.
func (s *Sequencer) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Run executes the bootstrap sequence. It must complete before dependent UI
// renders. Run is idempotent: the redirect payload is consumed exactly
// once, and a re-render calling Run again gets the already-published result
// without reprocessing.
//
// Run never propagates provider failures: every failure mode resolves to a
// well-defined Ready state so an auth hiccup cannot block the application
// from booting.
func (s *Sequencer) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return s.result, nil
	}

	if err := s.transition(StateInitializing); err != nil {
		return nil, err
	}

	result := s.initialize(ctx)

	target := StateReadyUnauthenticated
	if result.State == StateReadyAuthenticated {
		target = StateReadyAuthenticated
	}
	if err := s.transition(target); err != nil {
		return nil, err
	}

	result.State = s.state
	s.result = result

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventBootstrapReady,
		State:     s.state,
		SubjectID: subjectID(result.Identity),
	})

	return s.result, nil
}

// initialize runs the strictly sequential steps. Each step depends on the
// previous step's output, so nothing here may be reordered.
func (s *Sequencer) initialize(ctx context.Context) *Result {
	unauthenticated := &Result{State: StateReadyUnauthenticated}

	if _, err := s.store.Get(ctx); errors.Is(err, ErrSessionCorrupt) {
		s.logger.Warn("bootstrap: corrupt session state detected, forcing clear")
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.logger.Error("bootstrap: failed to clear corrupt session: %v", clearErr)
		}
	}

	payload := ParseRedirect(s.nav.CurrentURL())

	if err := s.provider.Initialize(ctx); err != nil {
		// Misconfiguration is a visible warning, not a boot failure.
		s.logger.Warn("bootstrap: provider unavailable: %v", err)
		return unauthenticated
	}

	identity := s.consumeRedirect(ctx, payload, unauthenticated)
	if identity == nil {
		identity = s.provider.CurrentIdentity()
	}

	if identity == nil {
		s.clearQuietly(ctx)
		return unauthenticated
	}

	session, err := s.provider.AcquireTokenSilently(ctx, *identity)
	if err != nil {
		if IsInteractionRequired(err) {
			// Expected: the user must explicitly invoke login. Never
			// auto-trigger an interactive redirect from here.
			s.logger.Info("bootstrap: silent acquisition needs interaction, staying unauthenticated")
		} else {
			s.logger.Error("bootstrap: silent acquisition failed: %v", err)
		}
		s.clearQuietly(ctx)
		return unauthenticated
	}

	decision := s.resolver.Resolve(ctx, *session, *identity)
	profile := DeriveProfile(*identity, decision, s.profileCfg)

	if err := s.store.Set(ctx, *session, profile); err != nil {
		s.logger.Error("bootstrap: failed to publish session: %v", err)
		s.clearQuietly(ctx)
		return unauthenticated
	}

	return &Result{
		State:    StateReadyAuthenticated,
		Identity: identity,
		Profile:  &profile,
		Session:  session,
		Decision: decision,
	}
}

// consumeRedirect completes a pending redirect, scrubs the fragment from
// the visible URL, and annotates unauthenticated results with an inline
// login message where the user can retry.
func (s *Sequencer) consumeRedirect(ctx context.Context, payload RedirectPayload, unauthenticated *Result) *Identity {
	if payload.Kind == PayloadNone {
		return nil
	}

	identity, err := s.provider.CompletePendingRedirect(ctx, payload)

	// The fragment is scrubbed whether completion succeeded or not, so
	// routing never re-interprets it. Unrelated anchors survive.
	s.nav.ReplaceURL(ScrubFragment(s.nav.CurrentURL()))

	if err != nil {
		switch {
		case IsRedirectCancelled(err):
			s.logger.Debug("bootstrap: redirect cancelled by user")
		case errors.Is(err, ErrRedirectExpired):
			s.logger.Warn("bootstrap: redirect response expired")
			unauthenticated.LoginMessage = "Your sign-in took too long. Please try again."
		default:
			s.logger.Error("bootstrap: redirect completion failed: %v", err)
			unauthenticated.LoginMessage = "Sign-in failed. Please try again."
		}
		return nil
	}

	if identity != nil {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventRedirectConsumed,
			SubjectID: identity.SubjectID,
		})
	}

	return identity
}

// BeginLogin transitions to RedirectNavigated and asks the provider to
// navigate away. A second call while the first navigation is pending is
// rejected as a no-op with ErrLoginInProgress: there is a single navigation
// intent per page instance.
func (s *Sequencer) BeginLogin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRedirectNavigated {
		s.logger.Info("login already in progress, ignoring")
		return ErrLoginInProgress
	}

	previous := s.state
	if err := s.transition(StateRedirectNavigated); err != nil {
		return err
	}

	if err := s.provider.BeginInteractiveLogin(ctx); err != nil {
		// No navigation happened; restore the prior ready state so the
		// user can retry.
		s.state = previous
		return err
	}

	s.recordActivity(ctx, ActivityEvent{EventType: ActivityEventLoginStarted, State: s.state})

	return nil
}

// BeginLogout clears local session state, then asks the provider to
// navigate to its logout endpoint.
func (s *Sequencer) BeginLogout(ctx context.Context, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRedirectNavigated {
		return ErrLoginInProgress
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("logout: failed to clear session store: %v", err)
	}

	previous := s.state
	if err := s.transition(StateRedirectNavigated); err != nil {
		return err
	}

	if err := s.provider.BeginLogout(ctx, identity); err != nil {
		// Local state is already cleared; restoring the prior state lets
		// the user retry the logout navigation.
		s.state = previous
		return err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		SubjectID: identity.SubjectID,
		State:     s.state,
	})

	return nil
}

func (s *Sequencer) transition(target State) error {
	if allowed, ok := s.transitions[s.state]; ok {
		if _, exists := allowed[target]; exists {
			s.state = target
			return nil
		}
	}

	// Clone before attaching metadata; writing into the shared sentinel
	// would leak state between unrelated failures.
	clone := ErrInvalidTransition.Clone()
	if clone == nil {
		return ErrInvalidTransition
	}
	clone.Source = ErrInvalidTransition
	return clone.WithMetadata(map[string]any{
		"from": string(s.state),
		"to":   string(target),
	})
}

func (s *Sequencer) clearQuietly(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("bootstrap: failed to clear session store: %v", err)
	}
}

func (s *Sequencer) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("bootstrap: activity sink error: %v", err)
	}
}

func subjectID(identity *Identity) string {
	if identity == nil {
		return ""
	}
	return identity.SubjectID
}
