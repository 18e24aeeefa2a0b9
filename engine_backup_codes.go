package twofactor

import "context"

// RemainingBackupCodes describes the remainingbackupcodes operation and its observable behavior.
//
// RemainingBackupCodes reports how many unused backup codes the user holds.
// Hosts typically surface this on the security settings page so users can
// regenerate before running out.
func (e *Engine) RemainingBackupCodes(ctx context.Context, userID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	remaining, err := e.vault.Remaining(ctx, formatUserID(userID))
	if err != nil {
		return 0, storeErr(err)
	}
	return remaining, nil
}

// RegenerateBackupCodes describes the regeneratebackupcodes operation and its observable behavior.
//
// RegenerateBackupCodes replaces the user's entire backup-code set with a
// fresh one and returns the plaintext codes. Previously issued codes stop
// working immediately. The new codes are also placed in the one-time reveal
// cache for [Engine.TakeGeneratedBackupCodes].
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID int64) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	uid := formatUserID(userID)
	enabled, err := e.credentials.Confirmed(ctx, uid)
	if err != nil {
		return nil, storeErr(err)
	}
	if !enabled {
		return nil, ErrNotConfigured
	}

	codes, err := e.vault.Generate(ctx, uid)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := e.reveal.Save(ctx, uid, codes, e.config.BackupCodes.RevealTTL); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricBackupCodesGenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, uid, nil, nil)
	return codes, nil
}

// TakeGeneratedBackupCodes describes the takegeneratedbackupcodes operation and its observable behavior.
//
// TakeGeneratedBackupCodes retrieves and deletes the most recently generated
// plaintext backup codes from the reveal cache. The second return value is
// false when no codes are pending, either because none were generated
// recently, the reveal TTL elapsed, or they were already taken.
func (e *Engine) TakeGeneratedBackupCodes(ctx context.Context, userID int64) ([]string, bool, error) {
	if !e.ready() {
		return nil, false, ErrEngineNotReady
	}
	codes, ok, err := e.reveal.Take(ctx, formatUserID(userID))
	if err != nil {
		return nil, false, storeErr(err)
	}
	return codes, ok, nil
}
