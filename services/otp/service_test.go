package otp

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *config.Config) {
	t.Helper()
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &Secret{}, &UsedCode{})
	return NewService(cfg, db, nil), cfg
}

func enrollConfirmed(t *testing.T, service *Service, accountID uint) *Secret {
	t.Helper()
	secret, err := service.Enroll(accountID, "alice")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, service.Confirm(accountID, code))
	return secret
}

func TestService_Enroll(t *testing.T) {
	t.Run("stores an unconfirmed secret", func(t *testing.T) {
		service, _ := newTestService(t)

		secret, err := service.Enroll(1, "alice")
		require.NoError(t, err)
		assert.NotEmpty(t, secret.Secret)
		assert.False(t, secret.Confirmed)
		assert.False(t, service.IsEnrolled(1))
	})

	t.Run("double enrollment rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.Enroll(1, "alice")
		require.NoError(t, err)

		_, err = service.Enroll(1, "alice")
		assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	})

	t.Run("disabled globally", func(t *testing.T) {
		service, cfg := newTestService(t)
		cfg.OTP.Enabled = false

		_, err := service.Enroll(1, "alice")
		assert.ErrorIs(t, err, ErrOTPDisabled)
	})
}

func TestService_ProvisioningURI(t *testing.T) {
	service, _ := newTestService(t)

	secret, err := service.Enroll(1, "alice")
	require.NoError(t, err)

	uri := service.ProvisioningURI(secret, "alice")
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, secret.Secret)
	assert.Contains(t, uri, "alice")
}

func TestService_Confirm(t *testing.T) {
	t.Run("valid code activates enrollment", func(t *testing.T) {
		service, _ := newTestService(t)

		enrollConfirmed(t, service, 1)
		assert.True(t, service.IsEnrolled(1))
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.Enroll(1, "alice")
		require.NoError(t, err)

		assert.ErrorIs(t, service.Confirm(1, "000000"), ErrInvalidCode)
		assert.False(t, service.IsEnrolled(1))
	})

	t.Run("unknown account", func(t *testing.T) {
		service, _ := newTestService(t)
		assert.ErrorIs(t, service.Confirm(9, "123456"), ErrNotEnrolled)
	})
}

func TestService_Verify(t *testing.T) {
	t.Run("valid code accepted once", func(t *testing.T) {
		service, _ := newTestService(t)
		secret := enrollConfirmed(t, service, 1)

		code, err := totp.GenerateCode(secret.Secret, time.Now())
		require.NoError(t, err)

		require.NoError(t, service.Verify(1, code))
		assert.ErrorIs(t, service.Verify(1, code), ErrCodeAlreadyUsed)
	})

	t.Run("replay guard expires with the window", func(t *testing.T) {
		service, _ := newTestService(t)
		secret := enrollConfirmed(t, service, 1)

		now := time.Now()
		code, err := totp.GenerateCode(secret.Secret, now)
		require.NoError(t, err)

		service.SetClock(func() time.Time { return now })
		require.NoError(t, service.Verify(1, code))

		// Outside the replay window the guard record no longer matches,
		// but the code itself is stale by then too.
		service.SetClock(func() time.Time { return now.Add(replayWindow + time.Second) })
		err = service.Verify(1, code)
		assert.NotErrorIs(t, err, ErrCodeAlreadyUsed)
	})

	t.Run("unconfirmed secret cannot verify", func(t *testing.T) {
		service, _ := newTestService(t)

		secret, err := service.Enroll(1, "alice")
		require.NoError(t, err)

		code, err := totp.GenerateCode(secret.Secret, time.Now())
		require.NoError(t, err)

		assert.ErrorIs(t, service.Verify(1, code), ErrNotEnrolled)
	})

	t.Run("invalid code rejected", func(t *testing.T) {
		service, _ := newTestService(t)
		enrollConfirmed(t, service, 1)

		assert.ErrorIs(t, service.Verify(1, "000000"), ErrInvalidCode)
	})
}

func TestService_Unenroll(t *testing.T) {
	service, _ := newTestService(t)
	enrollConfirmed(t, service, 1)

	require.NoError(t, service.Unenroll(1))
	assert.False(t, service.IsEnrolled(1))
	assert.ErrorIs(t, service.Unenroll(1), ErrNotEnrolled)
}

func TestService_CleanupUsedCodes(t *testing.T) {
	service, _ := newTestService(t)
	secret := enrollConfirmed(t, service, 1)

	now := time.Now()
	code, err := totp.GenerateCode(secret.Secret, now)
	require.NoError(t, err)

	service.SetClock(func() time.Time { return now })
	require.NoError(t, service.Verify(1, code))

	service.SetClock(func() time.Time { return now.Add(replayWindow + time.Minute) })
	require.NoError(t, service.CleanupUsedCodes())

	db := service.db
	var count int64
	require.NoError(t, db.Model(&UsedCode{}).Count(&count).Error)
	assert.Zero(t, count)
}
