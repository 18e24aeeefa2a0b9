package twofactor

import (
	"context"
	"strings"
	"testing"
)

func TestNewBackupCodeShape(t *testing.T) {
	code, err := newBackupCode(8)
	if err != nil {
		t.Fatalf("newBackupCode failed: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("expected 8 characters, got %d", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(backupCodeAlphabet, r) {
			t.Fatalf("unexpected character %q in code", r)
		}
	}

	other, err := newBackupCode(8)
	if err != nil {
		t.Fatalf("newBackupCode failed: %v", err)
	}
	if code == other {
		t.Fatal("two generated codes must differ")
	}
}

func TestCanonicalizeBackupCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abcd1234", "abcd1234"},
		{"ABCD1234", "abcd1234"},
		{" abcd1234 ", "abcd1234"},
		{"abcd-1234", "abcd1234"},
		{"ab cd 12 34", "abcd1234"},
		{"", ""},
	}
	for _, c := range cases {
		if got := canonicalizeBackupCode(c.in); got != c.want {
			t.Fatalf("canonicalizeBackupCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestVaultStoresOnlyHashes(t *testing.T) {
	env := newTestEnv(t, nil)
	_, codes := enroll(t, env, 1)

	hashes, err := env.engine.credentials.BackupCodeHashes(context.Background(), "1")
	if err != nil {
		t.Fatalf("BackupCodeHashes failed: %v", err)
	}
	if len(hashes) != len(codes) {
		t.Fatalf("expected %d hashes, got %d", len(codes), len(hashes))
	}
	for _, hash := range hashes {
		if !strings.HasPrefix(hash, "$argon2id$") {
			t.Fatalf("expected argon2id PHC hash, got %q", hash)
		}
		for _, code := range codes {
			if strings.Contains(hash, code) {
				t.Fatal("stored hash must not contain a raw code")
			}
		}
	}
}

func TestVaultWrongLengthShortCircuits(t *testing.T) {
	env := newTestEnv(t, nil)
	enroll(t, env, 1)

	ok, err := env.engine.vault.VerifyAndConsume(context.Background(), "1", "short")
	if err != nil {
		t.Fatalf("VerifyAndConsume failed: %v", err)
	}
	if ok {
		t.Fatal("expected wrong-length code to be rejected without hashing")
	}
}
