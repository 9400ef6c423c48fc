package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidMFAToken = errors.New("invalid mfa token")

// MFATokenIssuerJWT issues the short-lived token returned by a successful
// password check on an MFA-enabled account. It proves the password step
// passed without creating any session state.
type MFATokenIssuerJWT struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

type mfaClaims struct {
	UserID string `json:"sub"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func (m MFATokenIssuerJWT) IssueMFAToken(userID string) (string, time.Duration, error) {
	ttl := m.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	claims := mfaClaims{
		UserID: userID,
		Type:   "mfa",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

func (m MFATokenIssuerJWT) ParseMFAToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &mfaClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidMFAToken
		}
		return m.Secret, nil
	})
	if err != nil {
		return "", ErrInvalidMFAToken
	}
	claims, ok := parsed.Claims.(*mfaClaims)
	if !ok || !parsed.Valid || claims.Type != "mfa" {
		return "", ErrInvalidMFAToken
	}
	return claims.UserID, nil
}
