package twofactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/twofactor/internal/rate"
)

// Authenticate verifies a second-factor code for the user in the named host
// flow. Factors are tried in a fixed order: backup codes first (shapes can
// collide, so disambiguation is by matching, never by code shape), then the
// email one-time code when app-based setup is incomplete and the call comes
// from the login flow, otherwise the app-based TOTP check.
//
// Every exit is symmetric: a success clears the rate-limit buckets touched
// by this call and a wrong code records a failure in them. An empty code and
// an active lockout are rejected before any factor is tried and never count
// as attempts. Wrong codes of any kind surface as [ErrAuthFailed] without
// revealing which factor mismatched.
func (e *Engine) Authenticate(ctx context.Context, userID int64, code string, authCtx AuthContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID <= 0 {
		return ErrUserNotFound
	}

	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ErrCodeRequired
	}

	uid := formatUserID(userID)
	ip := clientIPFromContext(ctx)

	locked, err := e.limiter.IsLockedOut(ctx, uid, rate.BucketAuthCode)
	if err != nil {
		return storeErr(err)
	}
	if !locked && authCtx == ContextLogin && ip != "" {
		locked, err = e.limiter.IsLockedOut(ctx, ip, rate.BucketLoginCheck)
		if err != nil {
			return storeErr(err)
		}
	}
	if locked {
		e.metricInc(MetricAuthRateLimited)
		e.emitAudit(ctx, auditEventAuthRateLimited, false, uid, ErrRateLimited, nil)
		return ErrRateLimited
	}

	used, err := e.vault.VerifyAndConsume(ctx, uid, trimmed)
	if err != nil {
		return storeErr(err)
	}
	if used {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, uid, nil, nil)
		return e.authSuccess(ctx, uid, authCtx, ip)
	}

	enabled, err := e.credentials.Confirmed(ctx, uid)
	if err != nil {
		return storeErr(err)
	}

	if !enabled && authCtx == ContextLogin && e.config.Policy.AllowEmailFallback {
		return e.authenticateEmailCode(ctx, uid, trimmed, authCtx, ip)
	}

	secret, _, err := e.getSecret(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrSecretCorrupt) {
			return e.authFailure(ctx, uid, authCtx, ip)
		}
		return err
	}

	if e.totp.Verify(secret, trimmed, e.now()) {
		return e.authSuccess(ctx, uid, authCtx, ip)
	}
	return e.authFailure(ctx, uid, authCtx, ip)
}

func (e *Engine) authenticateEmailCode(ctx context.Context, uid, code string, authCtx AuthContext, ip string) error {
	record, err := e.credentials.EmailOTP(ctx, uid)
	if err != nil {
		return storeErr(err)
	}
	if record == nil {
		return e.authFailure(ctx, uid, authCtx, ip)
	}

	age := e.now().Unix() - record.CreatedAt
	if age > int64(e.config.EmailOTP.TTL/time.Second) {
		if err := e.credentials.DeleteEmailOTP(ctx, uid); err != nil {
			return storeErr(err)
		}
		e.metricInc(MetricEmailCodeExpired)
		e.emitAudit(ctx, auditEventEmailCodeExpired, false, uid, ErrAuthFailed, nil)
		return e.authFailure(ctx, uid, authCtx, ip)
	}

	provided := sanitizeNumericCode(code)
	if provided == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(record.Code)) != 1 {
		return e.authFailure(ctx, uid, authCtx, ip)
	}

	if err := e.credentials.DeleteEmailOTP(ctx, uid); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricEmailCodeUsed)
	return e.authSuccess(ctx, uid, authCtx, ip)
}

func (e *Engine) authSuccess(ctx context.Context, uid string, authCtx AuthContext, ip string) error {
	if err := e.limiter.Clear(ctx, uid, rate.BucketAuthCode); err != nil {
		return storeErr(err)
	}
	if authCtx == ContextLogin && ip != "" {
		if err := e.limiter.Clear(ctx, ip, rate.BucketLoginCheck); err != nil {
			return storeErr(err)
		}
	}

	e.metricInc(MetricAuthSuccess)
	e.emitAudit(ctx, auditEventAuthSuccess, true, uid, nil, func() map[string]string {
		return map[string]string{"context": string(authCtx)}
	})
	return nil
}

func (e *Engine) authFailure(ctx context.Context, uid string, authCtx AuthContext, ip string) error {
	if _, err := e.limiter.RecordFailure(ctx, uid, rate.BucketAuthCode); err != nil {
		return storeErr(err)
	}
	if authCtx == ContextLogin && ip != "" {
		if _, err := e.limiter.RecordFailure(ctx, ip, rate.BucketLoginCheck); err != nil {
			return storeErr(err)
		}
	}

	e.metricInc(MetricAuthFailure)
	e.emitAudit(ctx, auditEventAuthFailure, false, uid, ErrAuthFailed, func() map[string]string {
		return map[string]string{"context": string(authCtx)}
	})
	return ErrAuthFailed
}
