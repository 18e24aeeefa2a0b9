package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevealStore holds freshly generated plaintext backup codes for one
// retrieval within a short TTL. Codes are never persisted anywhere else in
// plaintext; once taken (or expired) they are gone.
type RevealStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRevealStore creates a reveal store with the given key prefix.
func NewRevealStore(redisClient redis.UniversalClient, prefix string) *RevealStore {
	if prefix == "" {
		prefix = "tfr"
	}
	return &RevealStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevealStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Save stores the plaintext codes under the user's reveal key with the
// given TTL, replacing any unclaimed prior set.
func (s *RevealStore) Save(ctx context.Context, userID string, codes []string, ttl time.Duration) error {
	encoded, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return nil
}

// Take atomically retrieves and deletes the stored codes. The second return
// is false when nothing was stored or the entry already expired.
func (s *RevealStore) Take(ctx context.Context, userID string) ([]string, bool, error) {
	val, err := s.redis.GetDel(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}

	var codes []string
	if err := json.Unmarshal([]byte(val), &codes); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return codes, true, nil
}
