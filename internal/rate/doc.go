// Package rate implements the failed-attempt budget for authentication
// codes: a Redis counter per (identifier, bucket) pair whose TTL is
// refreshed on every failure, and a separate lockout flag once the
// threshold trips.
//
// # Design
//
// The counter is a sliding-window approximation, not a true sliding log:
// INCR plus EXPIRE-to-window on each failure. Concurrent failures may
// overshoot the threshold by one before the lockout lands; that is
// accepted. Lockout state and the attempt window are mutually exclusive —
// tripping the lockout deletes the counter so the post-lockout window
// starts from zero.
package rate
