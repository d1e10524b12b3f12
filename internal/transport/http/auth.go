package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var errUnauthenticated = errors.New("missing or invalid identity")

type userIDKey struct{}

// Authenticator resolves the calling user. With a secret configured it
// requires an HS256 bearer token and uses its subject; otherwise it trusts
// the X-User-ID header set by the gateway.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Require rejects requests without an identity and stores the user ID in the
// request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.userID(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, envelope{Message: err.Error()})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	}
}

func (a *Authenticator) userID(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
			return id, nil
		}
		return "", errUnauthenticated
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", errUnauthenticated
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", errUnauthenticated
	}
	return claims.Subject, nil
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
