package twofactor

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/MrEthical07/twofactor/internal/stores"
)

// SendCode describes the sendcode operation and its observable behavior.
//
// SendCode issues a fresh email one-time code for the user and delivers it
// synchronously. Issuing a new code replaces any previous one, so only the
// latest code is ever accepted. Delivery failure surfaces as
// [ErrMailUnavailable]; the stored code is still replaced, which keeps
// retries safe.
func (e *Engine) SendCode(ctx context.Context, userID int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	user, err := e.directory.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	code, err := newNumericCode(e.config.EmailOTP.Digits)
	if err != nil {
		return err
	}

	record := stores.EmailOTPRecord{
		Code:      code,
		CreatedAt: e.now().Unix(),
	}
	if err := e.credentials.SetEmailOTP(ctx, formatUserID(userID), record); err != nil {
		return storeErr(err)
	}

	body := fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires in %s. If you did not request it, you can ignore this message.\n",
		code, e.config.EmailOTP.TTL,
	)
	if err := e.sendMailBounded(ctx, user.Email, e.config.Mail.CodeSubject, body); err != nil {
		return err
	}

	e.metricInc(MetricEmailCodeSent)
	e.emitAudit(ctx, auditEventEmailCodeSent, true, formatUserID(userID), nil, nil)
	return nil
}

// newNumericCode draws each digit independently from crypto/rand so leading
// zeros are as likely as any other digit.
func newNumericCode(digits int) (string, error) {
	buf := make([]byte, digits)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
