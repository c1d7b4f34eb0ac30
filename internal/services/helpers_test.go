package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hospitalrecords/internal/logging"
	"hospitalrecords/internal/models"
	"hospitalrecords/internal/repositories"
)

var testSecret = []byte(strings.Repeat("k", MinSigningKeyLen))

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentCode struct {
	address string
	code    string
}

// fakeNotifier records codes and can be told to fail.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentCode
	sendErr error
}

func (n *fakeNotifier) Channel() string { return "email" }

func (n *fakeNotifier) Address(a *models.Account) string { return a.Email }

func (n *fakeNotifier) SendCode(_ context.Context, address, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, sentCode{address: address, code: code})
	return nil
}

func (n *fakeNotifier) last(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no code was delivered")
	return n.sent[len(n.sent)-1].code
}

// capturingGenerator remembers the codes it hands out, so tests can see a
// code even when delivery fails.
type capturingGenerator struct {
	inner CodeGenerator
	mu    sync.Mutex
	codes []string
}

func (g *capturingGenerator) Generate() (string, error) {
	c, err := g.inner.Generate()
	if err == nil {
		g.mu.Lock()
		g.codes = append(g.codes, c)
		g.mu.Unlock()
	}
	return c, err
}

func (g *capturingGenerator) last(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.codes)
	return g.codes[len(g.codes)-1]
}

type testEnv struct {
	store     *repositories.MemoryStore
	clock     *fakeClock
	hasher    Hasher
	notifier  *fakeNotifier
	generator *capturingGenerator
	otp       *OTPService
	tokens    *TokenService
	sessions  *SessionService
	auth      *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.Discard()
	clock := newFakeClock()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	notifier := &fakeNotifier{}
	store := repositories.NewMemoryStore()

	gen := &capturingGenerator{inner: NewCodeGenerator(OTPLength)}
	otp := NewOTPService(hasher, notifier, log)
	otp.now = clock.Now
	otp.generator = gen

	tokens, err := NewTokenService(testSecret, "test")
	require.NoError(t, err)
	tokens.now = clock.Now

	sessions := NewSessionService(log)
	sessions.now = clock.Now

	auth := NewAuthService(store, hasher, otp, tokens, sessions, log)
	auth.now = clock.Now

	return &testEnv{
		store:     store,
		clock:     clock,
		hasher:    hasher,
		notifier:  notifier,
		generator: gen,
		otp:       otp,
		tokens:    tokens,
		sessions:  sessions,
		auth:      auth,
	}
}

func (e *testEnv) seedAccount(t *testing.T, username, password string) *models.Account {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	a, err := e.store.Accounts().Save(context.Background(), &models.Account{
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Uma",
		LastName:     "One",
		Email:        username + "@hospital.test",
		Role:         "DOCTOR",
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) account(t *testing.T, id int64) *models.Account {
	t.Helper()
	a, err := e.store.Accounts().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

// login runs the full two-step flow and returns the result.
func (e *testEnv) login(t *testing.T, username, password string) *models.LoginResult {
	t.Helper()
	ctx := context.Background()
	_, err := e.auth.Login(ctx, username, password, "10.0.0.1")
	require.NoError(t, err)
	res, err := e.auth.CompleteLogin(ctx, username, e.notifier.last(t), "10.0.0.1")
	require.NoError(t, err)
	return res
}
