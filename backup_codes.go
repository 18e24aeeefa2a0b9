package twofactor

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/MrEthical07/twofactor/internal/codehash"
	"github.com/MrEthical07/twofactor/internal/stores"
)

const backupCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// backupCodeVault generates, verifies, and consumes single-use recovery
// codes. Plaintext codes exist only in the return value of Generate; storage
// holds argon2id hashes.
type backupCodeVault struct {
	store  *stores.CredentialStore
	hasher *codehash.Hasher
	count  int
	length int
}

func newBackupCodeVault(store *stores.CredentialStore, cfg BackupCodeConfig) *backupCodeVault {
	return &backupCodeVault{
		store:  store,
		hasher: codehash.New(),
		count:  cfg.Count,
		length: cfg.Length,
	}
}

// Generate mints a fresh code set and replaces the stored hash list
// wholesale; any codes from a prior generation stop working immediately.
func (v *backupCodeVault) Generate(ctx context.Context, userID string) ([]string, error) {
	codes := make([]string, 0, v.count)
	hashes := make([]string, 0, v.count)

	for i := 0; i < v.count; i++ {
		code, err := newBackupCode(v.length)
		if err != nil {
			return nil, err
		}
		hash, err := v.hasher.Hash(code)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, hash)
	}

	if err := v.store.ReplaceBackupCodeHashes(ctx, userID, hashes); err != nil {
		return nil, err
	}

	return codes, nil
}

// VerifyAndConsume checks code against the stored hash list and, on match,
// removes that single hash. Matching is case-insensitive; consumption is
// atomic from the caller's perspective.
func (v *backupCodeVault) VerifyAndConsume(ctx context.Context, userID, code string) (bool, error) {
	canonical := canonicalizeBackupCode(code)
	if len(canonical) != v.length {
		return false, nil
	}

	return v.store.ConsumeBackupCodeHash(ctx, userID, func(hash string) (bool, error) {
		return v.hasher.Verify(canonical, hash)
	})
}

// Remaining returns how many unused codes the user still holds.
func (v *backupCodeVault) Remaining(ctx context.Context, userID string) (int, error) {
	hashes, err := v.store.BackupCodeHashes(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

func newBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func canonicalizeBackupCode(code string) string {
	s := strings.ToLower(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
