package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	fieldSecret       = "secret"
	fieldConfirmed    = "confirmed"
	fieldBackupCodes  = "backup_codes"
	fieldPendingSetup = "pending_setup"
	fieldEmailOTP     = "email_otp"

	consumeRetries = 3
)

var (
	// ErrCredentialsUnavailable indicates the credential backend is unreachable.
	ErrCredentialsUnavailable = errors.New("credential backend unavailable")
	// ErrConsumeConflict indicates the backup-code list changed under
	// concurrent consumption more times than the store was willing to retry.
	ErrConsumeConflict = errors.New("backup code consume conflict")
)

// PendingSetupRecord is the stored pending_setup attribute. Legacy records
// written as a bare key string decode with Legacy set; they carry no
// creation time and never expire (pre-existing-data compatibility shim,
// kept deliberately — see VerifyKey in the root package).
type PendingSetupRecord struct {
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
	Legacy    bool   `json:"-"`
}

// EmailOTPRecord is the stored email_otp attribute: a short-lived single-use
// numeric code with its issuance timestamp.
type EmailOTPRecord struct {
	Code      string `json:"code"`
	CreatedAt int64  `json:"created_at"`
}

// CredentialStore keeps all two-factor attributes of a user in a single
// Redis hash. One hash per user makes DeleteAll a single DEL and lets
// backup-code consumption run as an optimistic WATCH transaction on one key.
type CredentialStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCredentialStore creates a credential store with the given key prefix.
func NewCredentialStore(redisClient redis.UniversalClient, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = "tfc"
	}
	return &CredentialStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CredentialStore) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *CredentialStore) getField(ctx context.Context, userID, field string) (string, bool, error) {
	val, err := s.redis.HGet(ctx, s.key(userID), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return val, true, nil
}

func (s *CredentialStore) setField(ctx context.Context, userID, field, value string) error {
	if err := s.redis.HSet(ctx, s.key(userID), field, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return nil
}

func (s *CredentialStore) delField(ctx context.Context, userID string, fields ...string) error {
	if err := s.redis.HDel(ctx, s.key(userID), fields...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return nil
}

// SecretBlob returns the stored (usually encrypted) secret attribute.
func (s *CredentialStore) SecretBlob(ctx context.Context, userID string) (string, bool, error) {
	return s.getField(ctx, userID, fieldSecret)
}

// SetSecretBlob overwrites the stored secret attribute.
func (s *CredentialStore) SetSecretBlob(ctx context.Context, userID, blob string) error {
	return s.setField(ctx, userID, fieldSecret, blob)
}

// Confirmed reports whether the user has completed app-based setup.
func (s *CredentialStore) Confirmed(ctx context.Context, userID string) (bool, error) {
	val, ok, err := s.getField(ctx, userID, fieldConfirmed)
	if err != nil {
		return false, err
	}
	return ok && val == "1", nil
}

// SetConfirmed marks app-based setup as completed.
func (s *CredentialStore) SetConfirmed(ctx context.Context, userID string) error {
	return s.setField(ctx, userID, fieldConfirmed, "1")
}

// BackupCodeHashes returns the stored list of unused backup-code hashes in
// order. An absent attribute returns an empty list.
func (s *CredentialStore) BackupCodeHashes(ctx context.Context, userID string) ([]string, error) {
	val, ok, err := s.getField(ctx, userID, fieldBackupCodes)
	if err != nil {
		return nil, err
	}
	if !ok || val == "" {
		return nil, nil
	}

	var hashes []string
	if err := json.Unmarshal([]byte(val), &hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return hashes, nil
}

// ReplaceBackupCodeHashes replaces the full backup-code hash list. Old codes
// become invalid immediately.
func (s *CredentialStore) ReplaceBackupCodeHashes(ctx context.Context, userID string, hashes []string) error {
	encoded, err := json.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return s.setField(ctx, userID, fieldBackupCodes, string(encoded))
}

// ConsumeBackupCodeHash finds the first stored hash that match accepts and
// removes exactly that hash, preserving list order, inside a WATCH
// transaction on the user's credential key. Two near-simultaneous consumers
// of the same code get exactly one success: the loser's transaction fails
// and its retry no longer finds a matching hash.
func (s *CredentialStore) ConsumeBackupCodeHash(
	ctx context.Context,
	userID string,
	match func(hash string) (bool, error),
) (bool, error) {
	key := s.key(userID)

	for attempt := 0; attempt < consumeRetries; attempt++ {
		consumed := false

		txFn := func(tx *redis.Tx) error {
			val, err := tx.HGet(ctx, key, fieldBackupCodes).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}
			if val == "" {
				return nil
			}

			var hashes []string
			if err := json.Unmarshal([]byte(val), &hashes); err != nil {
				return err
			}

			matchIdx := -1
			for i, h := range hashes {
				ok, err := match(h)
				if err != nil {
					return err
				}
				if ok {
					matchIdx = i
					break
				}
			}
			if matchIdx < 0 {
				return nil
			}

			remaining := append(hashes[:matchIdx:matchIdx], hashes[matchIdx+1:]...)
			encoded, err := json.Marshal(remaining)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if len(remaining) == 0 {
					pipe.HDel(ctx, key, fieldBackupCodes)
				} else {
					pipe.HSet(ctx, key, fieldBackupCodes, string(encoded))
				}
				return nil
			})
			if err != nil {
				return err
			}

			consumed = true
			return nil
		}

		err := s.redis.Watch(ctx, txFn, key)
		if err == nil {
			return consumed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}

	return false, ErrConsumeConflict
}

// PendingSetup returns the stored pending-setup record, decoding legacy
// bare-string values into a Legacy-tagged record. Returns nil when no setup
// flow is open.
func (s *CredentialStore) PendingSetup(ctx context.Context, userID string) (*PendingSetupRecord, error) {
	val, ok, err := s.getField(ctx, userID, fieldPendingSetup)
	if err != nil {
		return nil, err
	}
	if !ok || val == "" {
		return nil, nil
	}

	var record PendingSetupRecord
	if err := json.Unmarshal([]byte(val), &record); err == nil && record.Key != "" {
		return &record, nil
	}

	// Bare key string written by the pre-structured format.
	return &PendingSetupRecord{Key: val, Legacy: true}, nil
}

// SetPendingSetup overwrites any prior pending setup for the user; only one
// setup flow is open at a time.
func (s *CredentialStore) SetPendingSetup(ctx context.Context, userID string, record PendingSetupRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return s.setField(ctx, userID, fieldPendingSetup, string(encoded))
}

// DeletePendingSetup removes the pending-setup record.
func (s *CredentialStore) DeletePendingSetup(ctx context.Context, userID string) error {
	return s.delField(ctx, userID, fieldPendingSetup)
}

// EmailOTP returns the stored email one-time code, or nil when none is
// outstanding.
func (s *CredentialStore) EmailOTP(ctx context.Context, userID string) (*EmailOTPRecord, error) {
	val, ok, err := s.getField(ctx, userID, fieldEmailOTP)
	if err != nil {
		return nil, err
	}
	if !ok || val == "" {
		return nil, nil
	}

	var record EmailOTPRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return &record, nil
}

// SetEmailOTP overwrites the outstanding email one-time code.
func (s *CredentialStore) SetEmailOTP(ctx context.Context, userID string, record EmailOTPRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return s.setField(ctx, userID, fieldEmailOTP, string(encoded))
}

// DeleteEmailOTP removes the outstanding email one-time code.
func (s *CredentialStore) DeleteEmailOTP(ctx context.Context, userID string) error {
	return s.delField(ctx, userID, fieldEmailOTP)
}

// DeleteAll removes every two-factor attribute of the user in one DEL, so a
// half-disabled state is never observable.
func (s *CredentialStore) DeleteAll(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return nil
}
