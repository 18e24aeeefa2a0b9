package twofactor

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/twofactor/internal/stores"
)

const setupKeyBytes = 32

var errSetupTokenMalformed = errors.New("setup token malformed")

// setupKeyIssuer issues and validates the time-boxed opaque key that binds
// a user to an in-progress enrollment. The token encodes the target user so
// the confirmation page needs no server-side session.
type setupKeyIssuer struct {
	store *stores.CredentialStore
	ttl   time.Duration
	now   func() time.Time
}

func newSetupKeyIssuer(store *stores.CredentialStore, ttl time.Duration, now func() time.Time) *setupKeyIssuer {
	return &setupKeyIssuer{
		store: store,
		ttl:   ttl,
		now:   now,
	}
}

// GenerateKey opens a setup flow for the user and returns the opaque token
// for the emailed link. A fresh call overwrites any prior pending setup:
// only one flow is open per user at a time.
func (i *setupKeyIssuer) GenerateKey(ctx context.Context, userID int64) (string, error) {
	raw := make([]byte, setupKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	key := base64.RawURLEncoding.EncodeToString(raw)

	record := stores.PendingSetupRecord{
		Key:       key,
		CreatedAt: i.now().Unix(),
	}
	if err := i.store.SetPendingSetup(ctx, formatUserID(userID), record); err != nil {
		return "", err
	}

	return encodeSetupToken(userID, key), nil
}

// VerifyKey fails closed: malformed token, no pending setup, expired record,
// or key mismatch all return false. An expired structured record is deleted
// as a side effect so stale flows are garbage-collected on the next check.
// Legacy bare-string records are compared directly and never expire.
func (i *setupKeyIssuer) VerifyKey(ctx context.Context, token string) (bool, error) {
	userID, key, err := parseSetupToken(token)
	if err != nil {
		return false, nil
	}

	record, err := i.store.PendingSetup(ctx, formatUserID(userID))
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	if !record.Legacy {
		age := i.now().Unix() - record.CreatedAt
		if age > int64(i.ttl/time.Second) {
			if err := i.store.DeletePendingSetup(ctx, formatUserID(userID)); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	return subtle.ConstantTimeCompare([]byte(record.Key), []byte(key)) == 1, nil
}

func encodeSetupToken(userID int64, key string) string {
	return base64.RawURLEncoding.EncodeToString(
		[]byte(strconv.FormatInt(userID, 10) + ":" + key),
	)
}

func parseSetupToken(token string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return 0, "", errSetupTokenMalformed
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, "", errSetupTokenMalformed
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", errSetupTokenMalformed
	}

	return userID, parts[1], nil
}

func formatUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
