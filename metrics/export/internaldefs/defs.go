package internaldefs

import (
	twofactor "github.com/MrEthical07/twofactor"
)

// CounterDef defines a public type used by twofactor APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   twofactor.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the two-factor engine.
var CounterDefs = []CounterDef{
	{ID: twofactor.MetricAuthSuccess, Name: "twofactor_auth_success_total", Help: "Successful second-factor verifications."},
	{ID: twofactor.MetricAuthFailure, Name: "twofactor_auth_failure_total", Help: "Failed second-factor verifications."},
	{ID: twofactor.MetricAuthRateLimited, Name: "twofactor_auth_rate_limited_total", Help: "Verification attempts rejected during an active lockout."},
	{ID: twofactor.MetricBackupCodeUsed, Name: "twofactor_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: twofactor.MetricBackupCodesGenerated, Name: "twofactor_backup_codes_generated_total", Help: "Backup-code set generations."},
	{ID: twofactor.MetricEmailCodeSent, Name: "twofactor_email_code_sent_total", Help: "Email one-time codes issued and delivered."},
	{ID: twofactor.MetricEmailCodeUsed, Name: "twofactor_email_code_used_total", Help: "Successful email one-time-code authentications."},
	{ID: twofactor.MetricEmailCodeExpired, Name: "twofactor_email_code_expired_total", Help: "Email one-time codes rejected as expired."},
	{ID: twofactor.MetricSetupSent, Name: "twofactor_setup_sent_total", Help: "Setup invitations issued."},
	{ID: twofactor.MetricSetupConfirmed, Name: "twofactor_setup_confirmed_total", Help: "Completed app-based enrollments."},
	{ID: twofactor.MetricSetupKeyRejected, Name: "twofactor_setup_key_rejected_total", Help: "Setup keys rejected as invalid or expired."},
	{ID: twofactor.MetricSecretMigrated, Name: "twofactor_secret_migrated_total", Help: "Legacy plaintext secrets re-encrypted on read."},
	{ID: twofactor.MetricDisabled, Name: "twofactor_disabled_total", Help: "Two-factor disable operations."},
	{ID: twofactor.MetricMailFailure, Name: "twofactor_mail_failure_total", Help: "Mail delivery failures."},
}
