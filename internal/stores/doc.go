// Package stores implements Redis persistence for two-factor credential
// state: one hash per user for durable attributes (encrypted secret,
// confirmation flag, backup-code hashes, pending setup, email one-time
// code) and a short-TTL string key for the one-time reveal of freshly
// generated backup codes.
//
// # Atomicity
//
// Single-field reads and writes rely on Redis command atomicity. The only
// multi-step mutation, backup-code consumption, runs under WATCH with a
// bounded retry so concurrent consumers of the same code resolve to exactly
// one success. Disable is a single DEL of the user's hash.
package stores
