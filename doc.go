// Package garden is the backend for the garden planner application: users
// authenticate with a third-party identity provider, persist garden layouts
// (collections of positioned elements) and ask for AI plant recommendations.
//
// Authentication and provisioning:
//   - KeySet caches the provider's published signing keys and resolves the
//     key that signed a given token, refetching the set on a cache miss.
//   - TokenValidator verifies bearer tokens (RS256 only) against the KeySet
//     and checks expiry, issuer and, when configured, audience.
//   - Reconciler maps the token subject to a local user row, provisioning it
//     just-in-time on first sight. Profile data comes from a ProfileResolver
//     strategy selected at startup: trusted caller headers, or a fetch from
//     the provider's user API (see provider/clerk).
//   - Gate sequences validator and reconciler per request and backs the
//     RequireAuth / OptionalAuth router middleware.
//
// Storage:
//   - Bun models and repositories for users, gardens, elements, notes and
//     cached recommendations. Every garden query is scoped to its owner; the
//     uniqueness constraint on provider_subject_id is the sole backstop for
//     concurrent first-sight provisioning.
package garden
