package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tickwise/internal/entity"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var backupCodePattern = regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}$`)

// enableAndConfirm walks a user through the full MFA enablement and returns
// the raw secret and backup codes.
func enableAndConfirm(t *testing.T, f *authFixture, user *entity.User) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := f.svc.EnableMFA(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.QRCodeURI, "otpauth://totp/")
	require.Len(t, setup.BackupCodes, 10)
	for _, code := range setup.BackupCodes {
		require.Regexp(t, backupCodePattern, code)
	}

	// Secret stored encrypted, not enabled yet.
	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
	require.NotNil(t, stored.MFASecret)
	assert.NotEqual(t, setup.Secret, *stored.MFASecret)
	decrypted, err := f.cipher.Decrypt(*stored.MFASecret)
	require.NoError(t, err)
	assert.Equal(t, setup.Secret, decrypted)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmMFA(ctx, user.ID, code, ClientInfo{}))

	stored, err = f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, stored.MFAEnabled)
	return setup.Secret, setup.BackupCodes
}

func TestMFAEnableConfirmFlow(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := f.registerVerified(t, "trader@example.com", "correct-horse")
	enableAndConfirm(t, f, user)

	assert.True(t, f.audits.has(entity.AuditMFAEnabled))
	assert.Equal(t, "trader@example.com", f.email.sent[len(f.email.sent)-1].To)

	_, err := f.svc.EnableMFA(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrMFAAlreadyEnabled)
}

func TestMFAConfirmWithoutSetup(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := f.registerVerified(t, "trader@example.com", "correct-horse")

	err := f.svc.ConfirmMFA(context.Background(), user.ID, "123456", ClientInfo{})
	assert.ErrorIs(t, err, ErrMFASetupNotStarted)
}

func TestMFAConfirmWrongCode(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")

	_, err := f.svc.EnableMFA(ctx, user.ID)
	require.NoError(t, err)

	err = f.svc.ConfirmMFA(ctx, user.ID, "000000", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
}

func TestLoginWithMFARequiresChallenge(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")
	secret, _ := enableAndConfirm(t, f, user)

	login, err := f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.True(t, login.MFARequired)
	assert.NotEmpty(t, login.MFAToken)
	assert.Empty(t, login.AccessToken, "no tokens before the challenge completes")
	assert.Empty(t, login.RefreshToken)
	assert.Zero(t, f.sessions.countByUser(user.ID, false), "no session before the challenge completes")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	result, err := f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: code})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.True(t, f.audits.has(entity.AuditLoginMFASuccess))
}

func TestLoginWithMFAWrongCode(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")
	enableAndConfirm(t, f, user)

	login, err := f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: "000000"})
	assert.ErrorIs(t, err, ErrInvalidMFACode)
	assert.True(t, f.audits.has(entity.AuditLoginMFAFailed))
	assert.Zero(t, f.sessions.countByUser(user.ID, false))
}

func TestLoginWithMFAGarbageToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.LoginWithMFA(context.Background(), LoginMFAInput{MFAToken: "garbage", Code: "123456"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBackupCodeLogin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")
	_, codes := enableAndConfirm(t, f, user)

	login, err := f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	result, err := f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: codes[0]})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.True(t, f.audits.has(entity.AuditLoginMFABackupCode))

	remaining, err := f.backupCodes.CountUnused(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 9, remaining)

	// A spent code never works again.
	login, err = f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	_, err = f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: codes[0]})
	assert.ErrorIs(t, err, ErrInvalidMFACode)
}

func TestDisableMFA(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")
	secret, _ := enableAndConfirm(t, f, user)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	err = f.svc.DisableMFA(ctx, user.ID, "wrong-password", code, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.DisableMFA(ctx, user.ID, "correct-horse", code, ClientInfo{}))
	assert.True(t, f.audits.has(entity.AuditMFADisabled))

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
	assert.Nil(t, stored.MFASecret)

	remaining, err := f.backupCodes.CountUnused(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining, "backup codes die with MFA")

	// Login no longer challenges.
	login, err := f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.False(t, login.MFARequired)
}

func TestDisableMFAWhenNotEnabled(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := f.registerVerified(t, "trader@example.com", "correct-horse")

	err := f.svc.DisableMFA(context.Background(), user.ID, "correct-horse", "123456", ClientInfo{})
	assert.ErrorIs(t, err, ErrMFANotEnabled)
}

func TestMFAStatusAndBackupCodeRegeneration(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")

	status, err := f.svc.MFAStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	secret, codes := enableAndConfirm(t, f, user)
	status, err = f.svc.MFAStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.EqualValues(t, 10, status.BackupCodesRemaining)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	fresh, err := f.svc.RegenerateBackupCodes(ctx, user.ID, code, ClientInfo{})
	require.NoError(t, err)
	require.Len(t, fresh, 10)
	assert.True(t, f.audits.has(entity.AuditBackupCodesRenewed))

	// The old batch is gone wholesale.
	login, err := f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	_, err = f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: codes[0]})
	assert.ErrorIs(t, err, ErrInvalidMFACode)
}

func TestMFAAttemptsAreThrottled(t *testing.T) {
	// Two attempts allowed, then the limiter trips.
	f := newAuthFixture(t, NewMFALimiter(rate.Every(time.Hour), 2, 0))
	ctx := context.Background()
	user := f.registerVerified(t, "trader@example.com", "correct-horse")
	enableAndConfirmThrottled(t, f, user)

	login, err := f.svc.Login(ctx, LoginInput{Email: "trader@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: "000000"})
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	_, err = f.svc.LoginWithMFA(ctx, LoginMFAInput{MFAToken: login.MFAToken, Code: "000000"})
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// MFA throttling never locks the account itself.
	assert.False(t, f.users.raw(user.ID).IsLocked)
	assert.False(t, f.audits.has(entity.AuditAccountLocked))
}

// enableAndConfirmThrottled enables MFA directly through the repositories so
// the throttle test's limiter budget is not spent during setup.
func enableAndConfirmThrottled(t *testing.T, f *authFixture, user *entity.User) {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.EnableMFA(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, f.users.SetMFAEnabled(ctx, user.ID, true))
}
