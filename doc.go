// Package twofactor provides a two-factor authentication engine with TOTP
// verification, single-use backup codes, time-boxed setup keys, email
// one-time codes, and Redis-backed brute-force rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine holds no mutable state of its own; all
// credential state lives in Redis and the host's user directory.
//
// # Architecture boundaries
//
// twofactor is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (SetupInvite, MetricsSnapshot, AuditEvent, etc.). All
// internal coordination — secret encryption, credential storage, rate-limit
// accounting — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Manage sessions, cookies, or HTTP routing. The engine is a library
//     invoked by a host login flow or settings page.
//   - Expose Redis clients, internal stores, or ciphertext layouts in its
//     public API.
//   - Retry failed operations internally. Storage and mail failures surface
//     as errors; retries are a caller concern.
//
// # Failure contract
//
// Expected authentication outcomes (wrong code, lockout, expired setup key)
// are sentinel errors matched with errors.Is. The engine never reveals which
// factor failed: a wrong TOTP code, a wrong backup code, and a missing email
// code all surface as [ErrAuthFailed]. Backend outages surface as
// [ErrStoreUnavailable] or [ErrMailUnavailable] and must be mapped by the
// host to a generic retry response, never shown verbatim.
package twofactor
