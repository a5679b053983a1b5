package middleware

import (
	"context"
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// HS256Verifier accepts tokens signed with a shared secret. It is only wired in
// development, to run the API without a Clerk instance.
func HS256Verifier(secret []byte) Verifier {
	return func(ctx context.Context, token string) (string, error) {
		claims := &gojwt.RegisteredClaims{}
		_, err := gojwt.ParseWithClaims(token, claims, func(t *gojwt.Token) (any, error) {
			return secret, nil
		}, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Name}))
		if err != nil {
			return "", err
		}
		if claims.Subject == "" {
			return "", errors.New("token has no subject")
		}
		return claims.Subject, nil
	}
}

// SignDevToken mints a token HS256Verifier accepts.
func SignDevToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gojwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "barakah-dev",
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(secret)
}
