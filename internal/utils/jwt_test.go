package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := JWTManager{Secret: []byte("test-secret"), Issuer: "tickwise-test", AccessTokenTTL: 15 * time.Minute}

	token, ttl, err := manager.IssueAccessToken("user-1", "admin", "session-1")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, ttl)

	claims, err := manager.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	manager := JWTManager{Secret: []byte("test-secret")}
	other := JWTManager{Secret: []byte("different-secret")}

	token, _, err := manager.IssueAccessToken("user-1", "user", "session-1")
	require.NoError(t, err)

	_, err = other.ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenExpired(t *testing.T) {
	manager := JWTManager{Secret: []byte("test-secret"), AccessTokenTTL: -time.Minute}

	token, _, err := manager.IssueAccessToken("user-1", "user", "session-1")
	require.NoError(t, err)

	_, err = manager.ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenGarbage(t *testing.T) {
	manager := JWTManager{Secret: []byte("test-secret")}
	_, err := manager.ParseAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
