package twofactor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSendCodeStoresAndMails(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if err := env.engine.SendCode(ctx, 2); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	record, err := env.engine.credentials.EmailOTP(ctx, "2")
	if err != nil || record == nil {
		t.Fatalf("expected stored code, record=%v err=%v", record, err)
	}
	if len(record.Code) != env.engine.config.EmailOTP.Digits {
		t.Fatalf("expected %d digits, got %q", env.engine.config.EmailOTP.Digits, record.Code)
	}
	for _, r := range record.Code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit %q in code %q", r, record.Code)
		}
	}

	mails := env.mailer.all()
	if len(mails) != 1 {
		t.Fatalf("expected one mail, got %d", len(mails))
	}
	if mails[0].To != "bob@example.com" {
		t.Fatalf("mail sent to %q", mails[0].To)
	}
	if !strings.Contains(mails[0].Body, record.Code) {
		t.Fatal("mail body missing the code")
	}
}

func TestSendCodeReplacesPriorCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if err := env.engine.SendCode(ctx, 2); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	first, err := env.engine.credentials.EmailOTP(ctx, "2")
	if err != nil || first == nil {
		t.Fatalf("expected stored code, record=%v err=%v", first, err)
	}

	if err := env.engine.SendCode(ctx, 2); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	second, err := env.engine.credentials.EmailOTP(ctx, "2")
	if err != nil || second == nil {
		t.Fatalf("expected stored code, record=%v err=%v", second, err)
	}

	if first.Code == second.Code {
		t.Fatal("expected a fresh code per send")
	}

	// Only the latest code authenticates.
	if err := env.engine.Authenticate(ctx, 2, first.Code, ContextLogin); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected superseded code to fail, got %v", err)
	}
	if err := env.engine.Authenticate(ctx, 2, second.Code, ContextLogin); err != nil {
		t.Fatalf("expected latest code to verify, got %v", err)
	}
}

func TestSendCodeMailFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailer.fail = true
	ctx := context.Background()

	if err := env.engine.SendCode(ctx, 2); !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("expected ErrMailUnavailable, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricMailFailure]; got != 1 {
		t.Fatalf("expected mail failure metric 1, got %d", got)
	}
}

func TestSendCodeUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)

	if err := env.engine.SendCode(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNewNumericCodeKeepsLeadingZeros(t *testing.T) {
	seenLeadingZero := false
	for i := 0; i < 200; i++ {
		code, err := newNumericCode(4)
		if err != nil {
			t.Fatalf("newNumericCode failed: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("expected 4 digits, got %q", code)
		}
		if code[0] == '0' {
			seenLeadingZero = true
		}
	}
	if !seenLeadingZero {
		t.Fatal("expected at least one leading zero across 200 samples")
	}
}
