package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospitalrecords/internal/models"
	"hospitalrecords/internal/repositories"
)

func TestAuthService_LoginThenCompleteLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	ack, err := env.auth.Login(ctx, "u1", "Secret123", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, ack.AccountID)
	assert.Equal(t, "u1", ack.Username)

	sessions, err := env.store.Sessions().ListByAccount(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions, "no session before the code is verified")

	res, err := env.auth.CompleteLogin(ctx, "u1", env.notifier.last(t), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(86400), res.ExpiresInSeconds)
	assert.Equal(t, a.ID, res.AccountID)
	assert.Equal(t, "DOCTOR", res.Role)
	assert.Equal(t, "Uma", res.FirstName)
	assert.Equal(t, "One", res.LastName)
	assert.True(t, env.tokens.Verify(res.Token))

	sess, err := env.store.Sessions().FindActiveByToken(ctx, res.Token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "10.0.0.1", sess.OriginAddress)

	stored := env.account(t, a.ID)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, env.clock.Now(), *stored.LastLoginAt)
}

func TestAuthService_LoginUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Login(context.Background(), "ghost", "whatever", "")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAuthService_LockoutAfterThreeFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	for i := 1; i <= 3; i++ {
		_, err := env.auth.Login(ctx, "u1", "wrong", "")
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
		assert.Equal(t, i, env.account(t, a.ID).FailedAttempts)
	}
	assert.True(t, env.account(t, a.ID).Locked)

	_, err := env.auth.Login(ctx, "u1", "Secret123", "")
	require.ErrorIs(t, err, ErrAccountLocked)
	assert.Empty(t, env.notifier.sent)
}

func TestAuthService_SuccessResetsFailureCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	for i := 0; i < 2; i++ {
		_, err := env.auth.Login(ctx, "u1", "wrong", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := env.auth.Login(ctx, "u1", "Secret123", "")
	require.NoError(t, err)
	assert.Zero(t, env.account(t, a.ID).FailedAttempts)

	// two more failures must not lock
	for i := 0; i < 2; i++ {
		_, err := env.auth.Login(ctx, "u1", "wrong", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.False(t, env.account(t, a.ID).Locked)
}

func TestAuthService_LoginWithoutAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")
	a.Email = ""
	_, err := env.store.Accounts().Save(ctx, a)
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, "u1", "Secret123", "")
	require.ErrorIs(t, err, ErrMissingNotificationAddress)

	code, err := env.store.Codes().FindNewestValid(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, code)
}

func TestAuthService_DeliveryFailureKeepsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "u1", "Secret123")
	env.notifier.sendErr = errors.New("smtp down")

	_, err := env.auth.Login(ctx, "u1", "Secret123", "")
	require.NoError(t, err)

	res, err := env.auth.CompleteLogin(ctx, "u1", env.generator.last(t), "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestAuthService_CompleteLoginErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no code issued", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, "u1", "Secret123")
		_, err := env.auth.CompleteLogin(ctx, "u1", "123456", "")
		require.ErrorIs(t, err, ErrOTPNotFound)
	})

	t.Run("unknown account", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.auth.CompleteLogin(ctx, "ghost", "123456", "")
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("expired code", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, "u1", "Secret123")
		_, err := env.auth.Login(ctx, "u1", "Secret123", "")
		require.NoError(t, err)

		env.clock.Advance(OTPTTL + time.Second)
		_, err = env.auth.CompleteLogin(ctx, "u1", env.notifier.last(t), "")
		require.ErrorIs(t, err, ErrOTPExpired)
	})

	t.Run("code reused", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, "u1", "Secret123")
		env.login(t, "u1", "Secret123")

		_, err := env.auth.CompleteLogin(ctx, "u1", env.notifier.last(t), "")
		require.ErrorIs(t, err, ErrOTPNotFound)
	})

	t.Run("mismatch is persisted", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.seedAccount(t, "u1", "Secret123")
		_, err := env.auth.Login(ctx, "u1", "Secret123", "")
		require.NoError(t, err)
		wrong := "000000"
		if env.notifier.last(t) == wrong {
			wrong = "111111"
		}

		_, err = env.auth.CompleteLogin(ctx, "u1", wrong, "")
		var mismatch *OTPMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, OTPMaxAttempts-1, mismatch.Remaining)

		code, err := env.store.Codes().FindNewestValid(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, code.Attempts)
	})

	t.Run("first code after reissue", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, "u1", "Secret123")
		_, err := env.auth.Login(ctx, "u1", "Secret123", "")
		require.NoError(t, err)
		first := env.notifier.last(t)

		env.clock.Advance(time.Second)
		_, err = env.auth.Login(ctx, "u1", "Secret123", "")
		require.NoError(t, err)
		second := env.notifier.last(t)
		if first == second {
			t.Skip("generator produced the same code twice")
		}

		_, err = env.auth.CompleteLogin(ctx, "u1", first, "")
		require.Error(t, err)
		_, err = env.auth.CompleteLogin(ctx, "u1", second, "")
		require.NoError(t, err)
	})
}

// failingSessionsStore wraps a store so that every session write fails.
type failingSessionsStore struct {
	repositories.Store
	err error
}

func (s failingSessionsStore) Sessions() repositories.SessionRepository {
	return failingSessions{SessionRepository: s.Store.Sessions(), err: s.err}
}

func (s failingSessionsStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		return fn(ctx, failingSessionsStore{Store: tx, err: s.err})
	})
}

type failingSessions struct {
	repositories.SessionRepository
	err error
}

func (f failingSessions) Save(context.Context, *models.Session) (*models.Session, error) {
	return nil, f.err
}

func TestAuthService_FailuresKeepCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	_, err := env.auth.Login(ctx, "u1", "wrong", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, env.account(t, a.ID).FailedAttempts, "failed attempt must be committed")

	_, err = env.auth.Login(ctx, "u1", "Secret123", "")
	require.NoError(t, err)
	wrong := "000000"
	if env.notifier.last(t) == wrong {
		wrong = "111111"
	}
	_, err = env.auth.CompleteLogin(ctx, "u1", wrong, "")
	require.ErrorIs(t, err, ErrOTPMismatch)

	code, err := env.store.Codes().FindNewestValid(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, 1, code.Attempts, "mismatch must be committed")
}

func TestAuthService_StoreErrorRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	_, err := env.auth.Login(ctx, "u1", "Secret123", "")
	require.NoError(t, err)
	code := env.notifier.last(t)

	dbDown := errors.New("db down")
	env.auth.store = failingSessionsStore{Store: env.store, err: dbDown}
	_, err = env.auth.CompleteLogin(ctx, "u1", code, "")
	require.ErrorIs(t, err, dbDown)
	assert.False(t, IsAuthFailure(err))

	valid, err := env.store.Codes().FindNewestValid(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, valid, "code consumption must be rolled back")
	assert.False(t, valid.Used)
	assert.Nil(t, env.account(t, a.ID).LastLoginAt)

	env.auth.store = env.store
	res, err := env.auth.CompleteLogin(ctx, "u1", code, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestAuthService_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "u1", "Secret123")
	res := env.login(t, "u1", "Secret123")

	require.ErrorIs(t, env.auth.Logout(ctx, "never-issued"), ErrInvalidSession)
	require.ErrorIs(t, env.auth.Logout(ctx, ""), ErrInvalidSession)

	require.NoError(t, env.auth.Logout(ctx, "Bearer "+res.Token))
	require.ErrorIs(t, env.auth.Logout(ctx, res.Token), ErrInvalidSession)

	_, err := env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestAuthService_PasswordResetClearsLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	for i := 0; i < 3; i++ {
		_, _ = env.auth.Login(ctx, "u1", "wrong", "")
	}
	require.True(t, env.account(t, a.ID).Locked)

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "u1"))
	require.NoError(t, env.auth.ResetPassword(ctx, "u1", env.notifier.last(t), "NewPass123"))

	stored := env.account(t, a.ID)
	assert.False(t, stored.Locked)
	assert.Zero(t, stored.FailedAttempts)
	assert.True(t, env.hasher.Compare(stored.PasswordHash, "NewPass123"))

	_, err := env.auth.Login(ctx, "u1", "NewPass123", "")
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, "u1", "Secret123", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ResetPasswordErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("short password", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, "u1", "Secret123")
		require.NoError(t, env.auth.RequestPasswordReset(ctx, "u1"))
		err := env.auth.ResetPassword(ctx, "u1", env.notifier.last(t), "short")
		require.ErrorIs(t, err, ErrPasswordPolicy)
	})

	t.Run("password over bcrypt limit keeps code", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.seedAccount(t, "u1", "Secret123")
		require.NoError(t, env.auth.RequestPasswordReset(ctx, "u1"))
		code := env.notifier.last(t)

		err := env.auth.ResetPassword(ctx, "u1", code, strings.Repeat("a", 80))
		require.ErrorIs(t, err, ErrPasswordPolicy)

		require.NoError(t, env.auth.ResetPassword(ctx, "u1", code, "NewPass123"))
		assert.True(t, env.hasher.Compare(env.account(t, a.ID).PasswordHash, "NewPass123"))
	})

	t.Run("72 byte password accepted", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.seedAccount(t, "u1", "Secret123")
		require.NoError(t, env.auth.RequestPasswordReset(ctx, "u1"))
		long := strings.Repeat("b", MaxPasswordLength)
		require.NoError(t, env.auth.ResetPassword(ctx, "u1", env.notifier.last(t), long))
		assert.True(t, env.hasher.Compare(env.account(t, a.ID).PasswordHash, long))
	})

	t.Run("wrong code keeps password", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.seedAccount(t, "u1", "Secret123")
		require.NoError(t, env.auth.RequestPasswordReset(ctx, "u1"))
		wrong := "000000"
		if env.notifier.last(t) == wrong {
			wrong = "111111"
		}
		err := env.auth.ResetPassword(ctx, "u1", wrong, "NewPass123")
		require.ErrorIs(t, err, ErrOTPMismatch)
		assert.True(t, env.hasher.Compare(env.account(t, a.ID).PasswordHash, "Secret123"))
	})

	t.Run("no code requested", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, "u1", "Secret123")
		err := env.auth.ResetPassword(ctx, "u1", "123456", "NewPass123")
		require.ErrorIs(t, err, ErrOTPNotFound)
	})
}

func TestAuthService_RequestPasswordResetUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, env.auth.RequestPasswordReset(ctx, "ghost"), ErrAccountNotFound)

	env.auth.ConcealUnknownAccounts = true
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ghost"))
	assert.Empty(t, env.notifier.sent)
}

func TestAuthService_RequestPasswordResetIgnoresLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")
	for i := 0; i < 3; i++ {
		_, _ = env.auth.Login(ctx, "u1", "wrong", "")
	}

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "u1"))
	assert.True(t, env.account(t, a.ID).Locked, "requesting a code alone must not unlock")
}

func TestAuthService_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")
	res := env.login(t, "u1", "Secret123")

	env.clock.Advance(time.Hour)
	claims, err := env.auth.Authenticate(ctx, "bearer "+res.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, claims.AccountID)
	assert.Equal(t, "u1", claims.Subject)

	sess, err := env.store.Sessions().FindActiveByToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), sess.LastActivityAt)

	_, err = env.auth.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	env.clock.Advance(TokenTTL)
	_, err = env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Unlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")
	for i := 0; i < 3; i++ {
		_, _ = env.auth.Login(ctx, "u1", "wrong", "")
	}

	unlocked, err := env.auth.Unlock(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.Locked)
	assert.Zero(t, unlocked.FailedAttempts)

	_, err = env.auth.Login(ctx, "u1", "Secret123", "")
	require.NoError(t, err)

	_, err = env.auth.Unlock(ctx, 999)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAuthService_ConcurrentFailuresAreCounted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.auth.Login(ctx, "u1", "wrong", "")
		}()
	}
	wg.Wait()

	stored := env.account(t, a.ID)
	assert.True(t, stored.Locked)
	assert.Equal(t, 3, stored.FailedAttempts, "attempts after the lock are rejected before counting")
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", StripBearer("Bearer abc"))
	assert.Equal(t, "abc", StripBearer("  bearer   abc "))
	assert.Equal(t, "abc", StripBearer("abc"))
	assert.Equal(t, "", StripBearer("Bearer "))
}
