package service

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPGenerateAndValidate(t *testing.T) {
	p := NewTOTPProvider("Tickwise")

	secret, err := p.GenerateSecret()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, p.ValidateCode(secret, code))
	assert.False(t, p.ValidateCode(secret, "000000"))
	assert.False(t, p.ValidateCode(secret, "not-a-code"))
}

func TestTOTPAcceptsAdjacentWindow(t *testing.T) {
	p := NewTOTPProvider("Tickwise")
	secret, err := p.GenerateSecret()
	require.NoError(t, err)

	previous, err := totp.GenerateCode(secret, time.Now().Add(-30*time.Second))
	require.NoError(t, err)
	assert.True(t, p.ValidateCode(secret, previous), "skew of one window covers clock drift")
}

func TestTOTPQRCodeURL(t *testing.T) {
	p := NewTOTPProvider("Tickwise")

	uri, err := p.QRCodeURL("trader@example.com", "Tickwise", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=Tickwise")
	assert.Contains(t, uri, "trader@example.com")
}
