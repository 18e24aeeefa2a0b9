package twofactor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeDirectory struct {
	mu    sync.Mutex
	users map[int64]UserRecord
}

func newFakeDirectory(users ...UserRecord) *fakeDirectory {
	d := &fakeDirectory{users: make(map[int64]UserRecord, len(users))}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

func (d *fakeDirectory) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Identifier == identifier {
			return u, nil
		}
	}
	return UserRecord{}, errors.New("no such user")
}

func (d *fakeDirectory) GetUserByID(_ context.Context, userID int64) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return UserRecord{}, errors.New("no such user")
	}
	return u, nil
}

type recordingMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  bool
	delay time.Duration
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

// testClock is an adjustable time source shared with miniredis so Redis TTLs
// and record timestamps move together.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine    *Engine
	mr        *miniredis.Miniredis
	clock     *testClock
	directory *fakeDirectory
	mailer    *recordingMailer
}

func (env *testEnv) advance(d time.Duration) {
	env.clock.Advance(d)
	env.mr.FastForward(d)
}

func newTestEnv(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := newTestClock()
	directory := newFakeDirectory(
		UserRecord{UserID: 1, Identifier: "alice", Email: "alice@example.com", Roles: []string{"administrator"}},
		UserRecord{UserID: 2, Identifier: "bob", Email: "bob@example.com", Roles: []string{"member"}},
	)
	mailer := &recordingMailer{}

	cfg := defaultConfig()
	cfg.Crypto.SiteKey = "site-key-a"
	cfg.Crypto.SecondKey = "site-key-b"
	cfg.Policy.CheckUserMaxDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserDirectory(directory).
		WithMailer(mailer).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine:    engine,
		mr:        mr,
		clock:     clock,
		directory: directory,
		mailer:    mailer,
	}
}

// enroll completes the full setup flow for the user and returns the TOTP
// secret plus the revealed backup codes.
func enroll(t *testing.T, env *testEnv, userID int64) (string, []string) {
	t.Helper()
	ctx := context.Background()

	invite, err := env.engine.SendSetup(ctx, userID)
	if err != nil {
		t.Fatalf("SendSetup failed: %v", err)
	}

	code := generateTestCode(t, invite.Secret, env.clock.Now(), env.engine.config.TOTP)
	codes, err := env.engine.Confirm(ctx, invite.Token, code)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	return invite.Secret, codes
}

func TestBuilderRequiresRedisAndDirectory(t *testing.T) {
	if _, err := New().WithSiteKeys("a", "b").Build(); err == nil {
		t.Fatal("expected error without redis client")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	if _, err := New().WithSiteKeys("a", "b").WithRedis(client).Build(); err == nil {
		t.Fatal("expected error without user directory")
	}

	if _, err := New().WithRedis(client).WithUserDirectory(newFakeDirectory()).Build(); err == nil {
		t.Fatal("expected error without site keys")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	b := New().WithSiteKeys("a", "b").WithRedis(client).WithUserDirectory(newFakeDirectory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestNilEngineIsInert(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if err := e.Authenticate(ctx, 1, "123456", ContextLogin); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.SendSetup(ctx, 1); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 {
		t.Fatal("expected zero dropped on nil engine")
	}
	e.Close()
}
