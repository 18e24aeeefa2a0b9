package twofactor

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/MrEthical07/twofactor/internal/rate"
)

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// IsRequired describes the isrequired operation and its observable behavior.
//
// IsRequired reports whether the user's role set mandates two-factor
// authentication: administrator-equivalent roles always do, otherwise any
// intersection with the configured required-role list does.
func (e *Engine) IsRequired(user UserRecord) bool {
	if e == nil {
		return false
	}
	for _, role := range user.Roles {
		for _, admin := range e.config.Policy.AdminRoles {
			if role == admin {
				return true
			}
		}
		for _, required := range e.config.Policy.RequiredRoles {
			if role == required {
				return true
			}
		}
	}
	return false
}

// IsEnabled describes the isenabled operation and its observable behavior.
//
// IsEnabled reports whether the user has completed app-based setup.
// IsEnabled may return an error when the credential backend is unavailable.
func (e *Engine) IsEnabled(ctx context.Context, userID int64) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	enabled, err := e.credentials.Confirmed(ctx, formatUserID(userID))
	if err != nil {
		return false, storeErr(err)
	}
	return enabled, nil
}

// CheckUser resolves an identifier to its two-factor requirement without
// revealing whether the identifier exists: unknown users return (false, nil)
// exactly like known users outside the required roles, and a random delay is
// added to mask the lookup-time difference. The delay is best-effort timing
// mitigation, not a constant-time guarantee.
func (e *Engine) CheckUser(ctx context.Context, identifier string) (bool, error) {
	if !e.ready() || e.directory == nil {
		return false, ErrEngineNotReady
	}

	defer e.randomDelay()

	user, err := e.directory.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return false, nil
	}
	return e.IsRequired(user), nil
}

func (e *Engine) randomDelay() {
	max := e.config.Policy.CheckUserMaxDelay
	if max <= 0 {
		return
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return
	}
	time.Sleep(time.Duration(n.Int64()))
}

// Disable describes the disable operation and its observable behavior.
//
// Disable removes the user's secret, confirmation flag, pending setup, and
// backup codes in a single storage operation; a half-disabled state is never
// observable. Disable may return an error when the credential backend is
// unavailable.
func (e *Engine) Disable(ctx context.Context, userID int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	uid := formatUserID(userID)
	if err := e.credentials.DeleteAll(ctx, uid); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricDisabled)
	e.emitAudit(ctx, auditEventDisabled, true, uid, nil, nil)
	return nil
}

// LockoutRemaining describes the lockoutremaining operation and its observable behavior.
//
// LockoutRemaining returns how long the user's auth_code bucket stays locked
// out, or zero when no lockout is active. Polling it never extends the
// lockout.
func (e *Engine) LockoutRemaining(ctx context.Context, userID int64) (time.Duration, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	remaining, err := e.limiter.LockoutRemaining(ctx, formatUserID(userID), rate.BucketAuthCode)
	if err != nil {
		return 0, storeErr(err)
	}
	return remaining, nil
}
