// Package codehash hashes single-use backup codes with argon2id in PHC
// string encoding. Only hashes are ever stored; verification is a
// constant-time comparison of the recomputed derivation.
package codehash
