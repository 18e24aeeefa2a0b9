package twofactor

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/twofactor/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditEventAuthSuccess          = "auth_success"
	auditEventAuthFailure          = "auth_failure"
	auditEventAuthRateLimited      = "auth_rate_limited"
	auditEventBackupCodeUsed       = "backup_code_used"
	auditEventBackupCodesGenerated = "backup_codes_generated"
	auditEventEmailCodeSent        = "email_code_sent"
	auditEventEmailCodeExpired     = "email_code_expired"
	auditEventSetupSent            = "setup_sent"
	auditEventSetupConfirmed       = "setup_confirmed"
	auditEventSetupKeyRejected     = "setup_key_rejected"
	auditEventSecretMigrated       = "secret_migrated"
	auditEventDisabled             = "two_factor_disabled"
	auditEventMailFailure          = "mail_failure"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	e.audit.Emit(ctx, event)
}
