package twofactor

import (
	"errors"
	"time"
)

// Config defines a public type used by twofactor APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Crypto      CryptoConfig
	RateLimit   RateLimitConfig
	TOTP        TOTPConfig
	BackupCodes BackupCodeConfig
	Setup       SetupConfig
	EmailOTP    EmailOTPConfig
	Policy      PolicyConfig
	Mail        MailConfig
	Storage     StorageConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
CRYPTO CONFIG
====================================
*/

// CryptoConfig defines a public type used by twofactor APIs.
//
// CryptoConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CryptoConfig struct {
	// SiteKey and SecondKey are the two long-lived site secrets the
	// at-rest encryption key is derived from. Both are required.
	SiteKey   string
	SecondKey string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by twofactor APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Threshold       int
	Window          time.Duration
	LockoutDuration time.Duration
	RedisPrefix     string
}

// TOTPConfig defines a public type used by twofactor APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	// Skew is the accepted time-step tolerance in steps on either side of
	// the current step. 2 absorbs roughly ±60s of client clock drift.
	Skew int
}

// BackupCodeConfig defines a public type used by twofactor APIs.
//
// BackupCodeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BackupCodeConfig struct {
	Count  int
	Length int
	// RevealTTL bounds how long freshly generated plaintext codes stay in
	// the one-time reveal cache before [Engine.TakeGeneratedBackupCodes]
	// can no longer retrieve them.
	RevealTTL time.Duration
}

// SetupConfig defines a public type used by twofactor APIs.
//
// SetupConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SetupConfig struct {
	// KeyTTL is the lifetime of an issued setup key. Stale pending-setup
	// records are garbage-collected on the next verification past this age.
	KeyTTL time.Duration
	// LinkBase is the absolute URL of the host's security settings page.
	// The emailed setup link is LinkBase + "?key=" + token.
	LinkBase string
}

// EmailOTPConfig defines a public type used by twofactor APIs.
//
// EmailOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailOTPConfig struct {
	Digits int
	TTL    time.Duration
}

// PolicyConfig defines a public type used by twofactor APIs.
//
// PolicyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PolicyConfig struct {
	// AdminRoles always require two-factor authentication regardless of
	// RequiredRoles.
	AdminRoles []string
	// RequiredRoles is the host-configured set of roles mandated for
	// two-factor authentication.
	RequiredRoles []string
	// AllowEmailFallback permits the email one-time-code path at login for
	// users who have not completed app-based setup.
	AllowEmailFallback bool
	// CheckUserMaxDelay caps the random delay [Engine.CheckUser] adds to
	// mask timing differences between known and unknown identifiers.
	CheckUserMaxDelay time.Duration
}

// MailConfig defines a public type used by twofactor APIs.
//
// MailConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MailConfig struct {
	Timeout      time.Duration
	SetupSubject string
	CodeSubject  string
}

// StorageConfig defines a public type used by twofactor APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	RedisPrefix string
}

// AuditConfig defines a public type used by twofactor APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by twofactor APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Threshold:       5,
			Window:          15 * time.Minute,
			LockoutDuration: 30 * time.Minute,
			RedisPrefix:     "tfl",
		},
		TOTP: TOTPConfig{
			Issuer: "twofactor",
			Digits: 6,
			Period: 30,
			Skew:   2,
		},
		BackupCodes: BackupCodeConfig{
			Count:     10,
			Length:    8,
			RevealTTL: 5 * time.Minute,
		},
		Setup: SetupConfig{
			KeyTTL: 24 * time.Hour,
		},
		EmailOTP: EmailOTPConfig{
			Digits: 8,
			TTL:    5 * time.Minute,
		},
		Policy: PolicyConfig{
			AdminRoles:         []string{"administrator"},
			AllowEmailFallback: true,
			CheckUserMaxDelay:  150 * time.Millisecond,
		},
		Mail: MailConfig{
			Timeout:      5 * time.Second,
			SetupSubject: "Set up two-factor authentication",
			CodeSubject:  "Your verification code",
		},
		Storage: StorageConfig{
			RedisPrefix: "tfc",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Policy.AdminRoles = append([]string(nil), cfg.Policy.AdminRoles...)
	out.Policy.RequiredRoles = append([]string(nil), cfg.Policy.RequiredRoles...)
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Crypto.SiteKey == "" || cfg.Crypto.SecondKey == "" {
		return errors.New("both crypto site keys are required")
	}
	if cfg.RateLimit.Threshold <= 0 {
		return errors.New("rate limit threshold must be positive")
	}
	if cfg.RateLimit.Window <= 0 || cfg.RateLimit.LockoutDuration <= 0 {
		return errors.New("rate limit window and lockout duration must be positive")
	}
	if cfg.TOTP.Digits != 6 && cfg.TOTP.Digits != 8 {
		return errors.New("totp digits must be 6 or 8")
	}
	if cfg.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if cfg.TOTP.Skew < 0 {
		return errors.New("totp skew must be non-negative")
	}
	if cfg.BackupCodes.Count <= 0 || cfg.BackupCodes.Length < 8 {
		return errors.New("backup code count must be positive and length >= 8")
	}
	if cfg.Setup.KeyTTL <= 0 {
		return errors.New("setup key ttl must be positive")
	}
	if cfg.EmailOTP.Digits < 6 || cfg.EmailOTP.Digits > 10 {
		return errors.New("email otp digits must be between 6 and 10")
	}
	if cfg.EmailOTP.TTL <= 0 {
		return errors.New("email otp ttl must be positive")
	}
	return nil
}
