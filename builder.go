package twofactor

import (
	"errors"
	"time"

	"github.com/MrEthical07/twofactor/internal/audit"
	"github.com/MrEthical07/twofactor/internal/cryptobox"
	"github.com/MrEthical07/twofactor/internal/rate"
	"github.com/MrEthical07/twofactor/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by twofactor APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	directory UserDirectory
	mailer    Mailer
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale. Zero-valued
// sections are not backfilled; start from New() and mutate when only a few
// fields differ from the defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSiteKeys sets the two long-lived secrets the at-rest encryption key
// is derived from.
func (b *Builder) WithSiteKeys(siteKey, secondKey string) *Builder {
	b.config.Crypto.SiteKey = siteKey
	b.config.Crypto.SecondKey = secondKey
	return b
}

// WithRedis sets the Redis client backing credential storage, the reveal
// cache, and rate-limit counters.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserDirectory sets the host's user lookup implementation.
func (b *Builder) WithUserDirectory(directory UserDirectory) *Builder {
	b.directory = directory
	return b
}

// WithMailer sets the outbound mail sender. When omitted, mail is discarded
// via [NoOpMailer].
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. All TTL and expiry math
// flows through it; production callers leave it unset.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRequiredRoles sets the host-configured roles mandated for two-factor
// authentication.
func (b *Builder) WithRequiredRoles(roles []string) *Builder {
	b.config.Policy.RequiredRoles = append([]string(nil), roles...)
	return b
}

// Build validates the configuration and assembles the engine. A Builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	b.built = true

	box, err := cryptobox.New(b.config.Crypto.SiteKey, b.config.Crypto.SecondKey)
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = NoOpMailer{}
	}

	credentials := stores.NewCredentialStore(b.redis, b.config.Storage.RedisPrefix)

	e := &Engine{
		config:      b.config,
		box:         box,
		credentials: credentials,
		reveal:      stores.NewRevealStore(b.redis, b.config.Storage.RedisPrefix+":reveal"),
		limiter: rate.New(b.redis, b.config.RateLimit.RedisPrefix, rate.Config{
			Threshold:       b.config.RateLimit.Threshold,
			Window:          b.config.RateLimit.Window,
			LockoutDuration: b.config.RateLimit.LockoutDuration,
		}),
		totp:      newTOTPManager(b.config.TOTP),
		vault:     newBackupCodeVault(credentials, b.config.BackupCodes),
		directory: b.directory,
		mailer:    mailer,
		metrics:   NewMetrics(b.config.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, b.auditSink),
		now: now,
	}
	e.setupKeys = newSetupKeyIssuer(credentials, b.config.Setup.KeyTTL, now)

	return e, nil
}
