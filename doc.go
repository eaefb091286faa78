// Package authflow coordinates authentication and session bootstrap for
// single-page shells that sign in through a redirect-based identity
// provider.
//
// Bootstrap:
//   - A provider response arrives in the URL fragment on ordinary page load
//     and must be consumed exactly once, before routing can misread or strip
//     it. ParseRedirect classifies the fragment; the Sequencer consumes it
//     and scrubs it from the visible URL.
//   - The Sequencer drives the strict order: parse, provider initialize,
//     complete pending redirect, silent token acquisition, authorization
//     resolution, publish. Silent acquisition failures in the
//     InteractionRequired family land in the unauthenticated state; an
//     interactive redirect is only ever started by an explicit Login call,
//     and never through a popup.
//
// Authorization:
//   - Resolver decides admin standing by exact group-id equality against a
//     directory membership listing and fails closed on any transport error.
//     A substring heuristic exists for directory-less environments, opt-in
//     only, and is flagged as degraded security whenever it runs.
//
// State:
//   - SessionStore writes through to a durable token store and
//     session-scoped guard flags, and clears both atomically on logout.
//   - AuthContext is the only surface the rest of the application touches:
//     identity, loading and authenticated flags, Login, Logout, and
//     GetAccessToken with transparent silent refresh.
package authflow
