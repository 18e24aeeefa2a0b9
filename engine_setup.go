package twofactor

import (
	"context"
	"fmt"
	"net/url"
)

// SendSetup describes the sendsetup operation and its observable behavior.
//
// SendSetup opens (or reopens) the enrollment flow for the user: it issues a
// fresh setup key, mints the shared secret if none exists yet, and emails
// the setup link. The mail send is detached and bounded; its failure never
// rolls back the issued key or secret. The returned [SetupInvite] carries
// everything the host needs to render the setup page directly.
func (e *Engine) SendSetup(ctx context.Context, userID int64) (*SetupInvite, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.directory.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	secret, err := e.generateSecret(ctx, formatUserID(userID))
	if err != nil {
		return nil, err
	}

	token, err := e.setupKeys.GenerateKey(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	account := user.Identifier
	if account == "" {
		account = user.Email
	}

	invite := &SetupInvite{
		Token:        token,
		Secret:       secret,
		ProvisionURI: e.totp.ProvisionURI(secret, account),
		Email:        user.Email,
	}

	link := e.config.Setup.LinkBase + "?key=" + url.QueryEscape(token)
	body := fmt.Sprintf(
		"Two-factor authentication is required for your account.\n\n"+
			"Open the link below to finish setup. The link expires in %s.\n\n%s\n",
		e.config.Setup.KeyTTL, link,
	)
	e.sendMailDetached(user.Email, e.config.Mail.SetupSubject, body, clientIPFromContext(ctx))

	e.metricInc(MetricSetupSent)
	e.emitAudit(ctx, auditEventSetupSent, true, formatUserID(userID), nil, nil)
	return invite, nil
}

// VerifySetupKey describes the verifysetupkey operation and its observable behavior.
//
// VerifySetupKey reports whether the opaque token matches an open, unexpired
// setup flow. Expired structured records are deleted as a side effect.
func (e *Engine) VerifySetupKey(ctx context.Context, token string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ok, err := e.setupKeys.VerifyKey(ctx, token)
	if err != nil {
		return false, storeErr(err)
	}
	return ok, nil
}

// ParseSetupKey decodes the opaque setup token and returns the user it
// targets and the embedded key value. It performs no storage lookup; pair it
// with [Engine.VerifySetupKey] before trusting the result.
func ParseSetupKey(token string) (int64, string, error) {
	userID, key, err := parseSetupToken(token)
	if err != nil {
		return 0, "", ErrSetupKeyInvalid
	}
	return userID, key, nil
}

// Confirm describes the confirm operation and its observable behavior.
//
// Confirm completes enrollment: the setup key must verify, then the code
// must authenticate for the embedded user. On success the confirmation flag
// is set, the pending setup is deleted, and a fresh backup-code set is
// generated. The returned plaintext codes are surfaced exactly once — here
// and through [Engine.TakeGeneratedBackupCodes] within the reveal TTL —
// and never persisted.
func (e *Engine) Confirm(ctx context.Context, token, code string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	ok, err := e.setupKeys.VerifyKey(ctx, token)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		e.metricInc(MetricSetupKeyRejected)
		e.emitAudit(ctx, auditEventSetupKeyRejected, false, "", ErrSetupKeyInvalid, nil)
		return nil, ErrSetupKeyInvalid
	}

	userID, _, err := parseSetupToken(token)
	if err != nil {
		return nil, ErrSetupKeyInvalid
	}

	if err := e.Authenticate(ctx, userID, code, ContextSettings); err != nil {
		return nil, err
	}

	uid := formatUserID(userID)
	if err := e.credentials.SetConfirmed(ctx, uid); err != nil {
		return nil, storeErr(err)
	}
	if err := e.credentials.DeletePendingSetup(ctx, uid); err != nil {
		return nil, storeErr(err)
	}

	codes, err := e.vault.Generate(ctx, uid)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := e.reveal.Save(ctx, uid, codes, e.config.BackupCodes.RevealTTL); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricSetupConfirmed)
	e.metricInc(MetricBackupCodesGenerated)
	e.emitAudit(ctx, auditEventSetupConfirmed, true, uid, nil, nil)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, uid, nil, nil)
	return codes, nil
}
