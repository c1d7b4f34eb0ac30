package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospitalrecords/internal/models"
)

func TestOTPService_IssueStoresHashOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	code, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)
	require.Len(t, code, OTPLength)
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)

	stored, err := env.store.Codes().FindNewestValid(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, code, stored.CodeHash)
	assert.True(t, env.hasher.Compare(stored.CodeHash, code))
	assert.Equal(t, env.clock.Now().Add(OTPTTL), stored.ExpiresAt)
	assert.Zero(t, stored.Attempts)
	assert.False(t, stored.Used)
}

func TestOTPService_IssueRequiresAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")
	a.Email = ""

	_, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.ErrorIs(t, err, ErrMissingNotificationAddress)

	stored, err := env.store.Codes().FindNewestValid(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestOTPService_SecondIssueRetiresFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	first, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	second, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)

	if first != second {
		err = env.otp.Verify(ctx, env.store.Codes(), a.ID, first)
		require.ErrorIs(t, err, ErrOTPMismatch)
	}
	require.NoError(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, second))
	// the first code was retired, so nothing is left
	require.ErrorIs(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, first), ErrOTPNotFound)
}

func TestOTPService_VerifyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	code, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)

	require.NoError(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, code))
	require.ErrorIs(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, code), ErrOTPNotFound)
}

func TestOTPService_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	code, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)

	env.clock.Advance(OTPTTL + time.Second)
	require.ErrorIs(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, code), ErrOTPExpired)
}

func TestOTPService_ValidUntilExpiryInstant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	code, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)

	env.clock.Advance(OTPTTL - time.Second)
	require.NoError(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, code))
}

func TestOTPService_MismatchCountsAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedAccount(t, "u1", "Secret123")

	code, err := env.otp.Issue(ctx, env.store.Codes(), a)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for _, want := range []int{2, 1, 0, -1} {
		err := env.otp.Verify(ctx, env.store.Codes(), a.ID, wrong)
		var mismatch *OTPMismatchError
		require.True(t, errors.As(err, &mismatch), "got %v", err)
		assert.Equal(t, want, mismatch.Remaining)
		assert.ErrorIs(t, err, ErrOTPMismatch)
	}

	stored, err := env.store.Codes().FindNewestValid(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Attempts)

	// the ceiling is advisory
	require.NoError(t, env.otp.Verify(ctx, env.store.Codes(), a.ID, code))
}

func TestOTPService_NoCode(t *testing.T) {
	env := newTestEnv(t)
	err := env.otp.Verify(context.Background(), env.store.Codes(), 42, "123456")
	require.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPService_DeliverSwallowsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.sendErr = ErrNotificationDelivery

	assert.NotPanics(t, func() {
		env.otp.Deliver(context.Background(), &models.Account{ID: 1, Email: "a@b.c"}, "123456")
	})
	assert.Empty(t, env.notifier.sent)
}
