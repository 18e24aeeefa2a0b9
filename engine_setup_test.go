package twofactor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func waitForMail(t *testing.T, mailer *recordingMailer, want int) []sentMail {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mails := mailer.all(); len(mails) >= want {
			return mails
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d mails, got %d", want, len(mailer.all()))
	return nil
}

func TestSendSetupIssuesInviteAndMail(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Setup.LinkBase = "https://example.com/settings/security"
	})
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}
	if invite.Token == "" || invite.Secret == "" {
		t.Fatalf("incomplete invite: %+v", invite)
	}
	if invite.Email != "alice@example.com" {
		t.Fatalf("unexpected invite email: %q", invite.Email)
	}
	if !strings.HasPrefix(invite.ProvisionURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI: %q", invite.ProvisionURI)
	}
	if !strings.Contains(invite.ProvisionURI, "secret="+invite.Secret) {
		t.Fatal("provisioning URI must embed the secret")
	}

	mails := waitForMail(t, env.mailer, 1)
	if mails[0].To != "alice@example.com" {
		t.Fatalf("mail sent to %q", mails[0].To)
	}
	if !strings.Contains(mails[0].Body, "https://example.com/settings/security?key=") {
		t.Fatalf("mail body missing setup link:\n%s", mails[0].Body)
	}

	ok, err := env.engine.VerifySetupKey(ctx, invite.Token)
	if err != nil {
		t.Fatalf("VerifySetupKey failed: %v", err)
	}
	if !ok {
		t.Fatal("expected freshly issued key to verify")
	}
}

func TestSendSetupUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.SendSetup(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendSetupSecretStableAcrossCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}
	second, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	// A reloaded setup page must not invalidate an in-progress QR scan.
	if first.Secret != second.Secret {
		t.Fatal("expected the secret to survive repeated setup sends")
	}
	// Each send opens a fresh key; only the latest one verifies.
	if first.Token == second.Token {
		t.Fatal("expected a fresh key per send")
	}
	ok, err := env.engine.VerifySetupKey(ctx, first.Token)
	if err != nil {
		t.Fatalf("VerifySetupKey failed: %v", err)
	}
	if ok {
		t.Fatal("expected superseded key to be rejected")
	}
}

func TestSendSetupMailFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailer.fail = true
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.engine.MetricsSnapshot().Counters[MetricMailFailure] > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if env.engine.MetricsSnapshot().Counters[MetricMailFailure] == 0 {
		t.Fatal("expected mail failure metric")
	}

	// The issued key and secret survive the delivery failure.
	ok, err := env.engine.VerifySetupKey(ctx, invite.Token)
	if err != nil {
		t.Fatalf("VerifySetupKey failed: %v", err)
	}
	if !ok {
		t.Fatal("expected key to remain valid after mail failure")
	}
}

func TestConfirmCompletesEnrollment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	enabled, err := env.engine.IsEnabled(ctx, 1)
	if err != nil || enabled {
		t.Fatalf("expected not yet enabled, enabled=%v err=%v", enabled, err)
	}

	code := generateTestCode(t, invite.Secret, env.clock.Now(), env.engine.config.TOTP)
	codes, err := env.engine.Confirm(ctx, invite.Token, code)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(codes) != env.engine.config.BackupCodes.Count {
		t.Fatalf("expected %d backup codes, got %d", env.engine.config.BackupCodes.Count, len(codes))
	}

	enabled, err = env.engine.IsEnabled(ctx, 1)
	if err != nil || !enabled {
		t.Fatalf("expected enabled after Confirm, enabled=%v err=%v", enabled, err)
	}

	// The key is spent: the pending record is gone.
	ok, err := env.engine.VerifySetupKey(ctx, invite.Token)
	if err != nil {
		t.Fatalf("VerifySetupKey failed: %v", err)
	}
	if ok {
		t.Fatal("expected consumed key to be rejected")
	}

	// The same plaintext set is retrievable exactly once from the reveal cache.
	revealed, found, err := env.engine.TakeGeneratedBackupCodes(ctx, 1)
	if err != nil {
		t.Fatalf("TakeGeneratedBackupCodes failed: %v", err)
	}
	if !found || len(revealed) != len(codes) || revealed[0] != codes[0] {
		t.Fatalf("unexpected reveal: found=%v revealed=%v", found, revealed)
	}
	if _, found, _ := env.engine.TakeGeneratedBackupCodes(ctx, 1); found {
		t.Fatal("second take must find nothing")
	}
}

func TestConfirmRejectsInvalidKey(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Confirm(ctx, "not-a-valid-token", "123456"); !errors.Is(err, ErrSetupKeyInvalid) {
		t.Fatalf("expected ErrSetupKeyInvalid, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSetupKeyRejected]; got != 1 {
		t.Fatalf("expected rejection metric 1, got %d", got)
	}
}

func TestConfirmRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	if _, err := env.engine.Confirm(ctx, invite.Token, "000000"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}

	enabled, err := env.engine.IsEnabled(ctx, 1)
	if err != nil || enabled {
		t.Fatalf("expected still disabled after wrong code, enabled=%v err=%v", enabled, err)
	}

	// The key survives a wrong code; the user can retry.
	code := generateTestCode(t, invite.Secret, env.clock.Now(), env.engine.config.TOTP)
	if _, err := env.engine.Confirm(ctx, invite.Token, code); err != nil {
		t.Fatalf("Confirm retry failed: %v", err)
	}
}

func TestConfirmRejectsExpiredKey(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	env.advance(env.engine.config.Setup.KeyTTL + time.Second)

	code := generateTestCode(t, invite.Secret, env.clock.Now(), env.engine.config.TOTP)
	if _, err := env.engine.Confirm(ctx, invite.Token, code); !errors.Is(err, ErrSetupKeyInvalid) {
		t.Fatalf("expected ErrSetupKeyInvalid for expired key, got %v", err)
	}
}

func TestVerifySetupKeyExpiryBoundary(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, 1)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	env.advance(env.engine.config.Setup.KeyTTL - time.Second)
	ok, err := env.engine.VerifySetupKey(ctx, invite.Token)
	if err != nil {
		t.Fatalf("VerifySetupKey failed: %v", err)
	}
	if !ok {
		t.Fatal("expected key just inside the TTL to verify")
	}

	env.advance(2 * time.Second)
	ok, err = env.engine.VerifySetupKey(ctx, invite.Token)
	if err != nil {
		t.Fatalf("VerifySetupKey failed: %v", err)
	}
	if ok {
		t.Fatal("expected key just past the TTL to be rejected")
	}
}

func TestParseSetupKey(t *testing.T) {
	token := encodeSetupToken(42, "some-key")

	userID, key, err := ParseSetupKey(token)
	if err != nil {
		t.Fatalf("ParseSetupKey failed: %v", err)
	}
	if userID != 42 || key != "some-key" {
		t.Fatalf("unexpected parse result: userID=%d key=%q", userID, key)
	}

	for _, bad := range []string{"", "!!!", "bm9jb2xvbg", encodeSetupToken(0, "k")} {
		if _, _, err := ParseSetupKey(bad); !errors.Is(err, ErrSetupKeyInvalid) {
			t.Fatalf("expected ErrSetupKeyInvalid for %q, got %v", bad, err)
		}
	}
}
