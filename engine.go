package twofactor

import (
	"context"
	"time"

	"github.com/MrEthical07/twofactor/internal/audit"
	"github.com/MrEthical07/twofactor/internal/cryptobox"
	"github.com/MrEthical07/twofactor/internal/rate"
	"github.com/MrEthical07/twofactor/internal/stores"
)

// Engine defines a public type used by twofactor APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	box         *cryptobox.Box
	credentials *stores.CredentialStore
	reveal      *stores.RevealStore
	limiter     *rate.Limiter
	totp        *totpManager
	vault       *backupCodeVault
	setupKeys   *setupKeyIssuer
	directory   UserDirectory
	mailer      Mailer
	audit       *audit.Dispatcher
	metrics     *Metrics
	now         func() time.Time
}

func (e *Engine) ready() bool {
	return e != nil && e.credentials != nil && e.limiter != nil && e.vault != nil && e.setupKeys != nil
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// sendMailDetached dispatches mail without blocking the calling operation.
// The send is bounded by the configured timeout and its failure only shows
// up in audit and metrics; credential state already persisted is unaffected.
func (e *Engine) sendMailDetached(to, subject, body string, ip string) {
	mailer := e.mailer
	timeout := e.config.Mail.Timeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if ip != "" {
			ctx = WithClientIP(ctx, ip)
		}

		if err := mailer.Send(ctx, to, subject, body); err != nil {
			e.metricInc(MetricMailFailure)
			e.emitAudit(ctx, auditEventMailFailure, false, "", err, func() map[string]string {
				return map[string]string{"subject": subject}
			})
		}
	}()
}

// sendMailBounded dispatches mail synchronously with the configured timeout
// and returns [ErrMailUnavailable] on failure. Used where the mail is the
// whole point of the operation.
func (e *Engine) sendMailBounded(ctx context.Context, to, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.config.Mail.Timeout)
	defer cancel()

	if err := e.mailer.Send(sendCtx, to, subject, body); err != nil {
		e.metricInc(MetricMailFailure)
		e.emitAudit(ctx, auditEventMailFailure, false, "", err, func() map[string]string {
			return map[string]string{"subject": subject}
		})
		return ErrMailUnavailable
	}
	return nil
}
