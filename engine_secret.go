package twofactor

import (
	"context"
	"errors"

	"github.com/MrEthical07/twofactor/internal/cryptobox"
)

// GetSecret describes the getsecret operation and its observable behavior.
//
// GetSecret returns the user's plaintext TOTP secret, decrypting the stored
// blob. Secrets written before encryption at rest (bare base32) are returned
// as-is and transparently re-encrypted in storage; the second return value
// reports that a migration happened. Returns [ErrNotConfigured] when no
// secret exists and [ErrSecretCorrupt] when the blob is neither decryptable
// nor legacy plaintext.
func (e *Engine) GetSecret(ctx context.Context, userID int64) (string, bool, error) {
	if !e.ready() {
		return "", false, ErrEngineNotReady
	}
	return e.getSecret(ctx, formatUserID(userID))
}

func (e *Engine) getSecret(ctx context.Context, uid string) (string, bool, error) {
	blob, ok, err := e.credentials.SecretBlob(ctx, uid)
	if err != nil {
		return "", false, storeErr(err)
	}
	if !ok || blob == "" {
		return "", false, ErrNotConfigured
	}

	plain, err := e.box.Decrypt(blob)
	if err == nil {
		return plain, false, nil
	}

	if !cryptobox.IsLegacyPlaintext(blob) {
		return "", false, ErrSecretCorrupt
	}

	encrypted, err := e.box.Encrypt(blob)
	if err != nil {
		return "", false, err
	}
	if err := e.credentials.SetSecretBlob(ctx, uid, encrypted); err != nil {
		return "", false, storeErr(err)
	}

	e.metricInc(MetricSecretMigrated)
	e.emitAudit(ctx, auditEventSecretMigrated, true, uid, nil, nil)
	return blob, true, nil
}

// GenerateSecret describes the generatesecret operation and its observable behavior.
//
// GenerateSecret is idempotent: when a decryptable secret already exists it
// is returned unchanged rather than rotated, so an in-progress QR-code scan
// stays valid across repeated setup-page loads. A fresh secret is minted and
// stored encrypted only when none exists.
func (e *Engine) GenerateSecret(ctx context.Context, userID int64) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.generateSecret(ctx, formatUserID(userID))
}

func (e *Engine) generateSecret(ctx context.Context, uid string) (string, error) {
	existing, _, err := e.getSecret(ctx, uid)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		return "", err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return "", err
	}
	encrypted, err := e.box.Encrypt(secret)
	if err != nil {
		return "", err
	}
	if err := e.credentials.SetSecretBlob(ctx, uid, encrypted); err != nil {
		return "", storeErr(err)
	}

	return secret, nil
}
