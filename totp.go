package twofactor

import (
	"crypto/rand"
	"encoding/base32"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpSecretBytes = 20

type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	return &totpManager{config: cfg}
}

// GenerateSecret returns a fresh base32-encoded shared secret. Callers own
// persistence; the manager is stateless.
func (m *totpManager) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI encoded in the setup QR code.
func (m *totpManager) ProvisionURI(secretBase32, account string) string {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Verify checks code against the plaintext base32 secret at the given time
// with the configured step tolerance. Codes that are empty, non-numeric, or
// of unexpected length are rejected before any cryptographic work.
func (m *totpManager) Verify(secret, code string, now time.Time) bool {
	trimmed := sanitizeNumericCode(code)
	if len(trimmed) != m.config.Digits {
		return false
	}
	if secret == "" {
		return false
	}

	ok, err := totp.ValidateCustom(trimmed, secret, now, totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// sanitizeNumericCode strips surrounding whitespace and inner separators.
// Returns "" as soon as a non-digit survives, so malformed input never
// reaches a comparison.
func sanitizeNumericCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.TrimSpace(code) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			continue
		default:
			return ""
		}
	}
	return b.String()
}
