// Package cryptobox encrypts small credential secrets at rest with
// AES-256-GCM under a key derived from two long-lived site secrets.
//
// # Architecture boundaries
//
// cryptobox knows nothing about users, storage, or TOTP. It sees opaque
// plaintext strings in and base64 blobs out. The legacy plain-base32
// detection lives here because it is a property of the stored format, but
// the migration-on-read itself is driven by the engine.
package cryptobox
