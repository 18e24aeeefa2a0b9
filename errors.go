package twofactor

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the two-factor engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is an exported constant or variable used by the two-factor engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrCodeRequired is an exported constant or variable used by the two-factor engine.
	ErrCodeRequired = errors.New("authentication code required")
	// ErrAuthFailed is an exported constant or variable used by the two-factor engine.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrRateLimited is an exported constant or variable used by the two-factor engine.
	ErrRateLimited = errors.New("too many failed attempts")
	// ErrSetupKeyInvalid is an exported constant or variable used by the two-factor engine.
	ErrSetupKeyInvalid = errors.New("setup key invalid or expired")
	// ErrNotConfigured is an exported constant or variable used by the two-factor engine.
	ErrNotConfigured = errors.New("two-factor authentication not configured")
	// ErrSecretCorrupt is an exported constant or variable used by the two-factor engine.
	ErrSecretCorrupt = errors.New("stored secret not decryptable")
	// ErrStoreUnavailable is an exported constant or variable used by the two-factor engine.
	ErrStoreUnavailable = errors.New("credential backend unavailable")
	// ErrMailUnavailable is an exported constant or variable used by the two-factor engine.
	ErrMailUnavailable = errors.New("mail backend unavailable")
)
