package twofactor

import "context"

// UserRecord is the account record returned by [UserDirectory]. UserID is the
// stable numeric identifier all credential state is keyed by; Roles drives the
// requirement check in [Engine.IsRequired].
type UserRecord struct {
	UserID     int64
	Identifier string
	Email      string
	Roles      []string
}

// UserDirectory is the interface that callers must implement to integrate
// twofactor with their user database. The engine never enumerates users; it
// only resolves the identifiers handed to it.
//
// Implementations must return [ErrUserNotFound]-compatible errors for unknown
// users and must not distinguish "not found" from "found but disabled" in
// timing-observable ways beyond what [Engine.CheckUser] already masks.
type UserDirectory interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID int64) (UserRecord, error)
}

// Mailer sends outbound mail on behalf of the engine. Sends are bounded by
// [MailConfig.Timeout]; a slow or failing mailer never blocks credential
// state from being persisted.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NoOpMailer is a [Mailer] that silently discards all mail. Used as the
// default when no mailer is configured and throughout tests.
type NoOpMailer struct{}

// Send implements [Mailer].
func (NoOpMailer) Send(context.Context, string, string, string) error { return nil }

// AuthContext names the host flow an [Engine.Authenticate] call originates
// from. The email one-time-code fallback is only reachable from
// [ContextLogin]; settings-page and setup-confirmation checks always verify
// against the app-based secret.
type AuthContext string

const (
	// ContextLogin is an exported constant or variable used by the two-factor engine.
	ContextLogin AuthContext = "login"
	// ContextSettings is an exported constant or variable used by the two-factor engine.
	ContextSettings AuthContext = "settings"
)

// SetupInvite is returned by [Engine.SendSetup]. Token is the opaque setup
// key embedded in the emailed link; Secret and ProvisionURI feed the QR code
// the host renders on the setup page.
type SetupInvite struct {
	Token        string
	Secret       string
	ProvisionURI string
	Email        string
}
