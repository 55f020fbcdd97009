package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// IdentityProvider turns a bearer credential into an owner ID.
type IdentityProvider interface {
	Identify(ctx context.Context, credential string) (string, error)
}

// Claims accepts the owner ID either as the standard subject or as the
// userId claim older tokens carry.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// JWT validates HS256 tokens signed by the account service.
// Issuing tokens is that service's job; nothing here signs.
type JWT struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWT(secret string) *JWT {
	return &JWT{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (j *JWT) Identify(_ context.Context, credential string) (string, error) {
	if credential == "" || len(j.secret) == 0 {
		return "", ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := j.parser.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return "", ErrUnauthenticated
	}

	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
}

// Compile-time check: *JWT implements IdentityProvider.
var _ IdentityProvider = (*JWT)(nil)
