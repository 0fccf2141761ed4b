package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arnnvv/peeple/logging"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

// tokenAuth verifies and issues HS256 tokens. Token issuance flows (OTP, login)
// live outside this service; issue exists for the seeder and tests.
type tokenAuth struct {
	secret []byte
	ttl    time.Duration
}

func newTokenAuth(secret []byte, ttl time.Duration) *tokenAuth {
	return &tokenAuth{secret: secret, ttl: ttl}
}

func (a *tokenAuth) issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	})
	return token.SignedString(a.secret)
}

// parse returns the user id carried in tokenStr. The id is read from "sub",
// or from the legacy "user_id" claim.
func (a *tokenAuth) parse(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	if sub, _ := claims.GetSubject(); sub != "" {
		return sub, nil
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("no user id in token")
}

// userIDFromRequest reads the bearer token from the Authorization header, or
// from ?token= for websocket clients that cannot set headers.
func (a *tokenAuth) userIDFromRequest(r *http.Request) (string, bool) {
	tokenStr := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenStr = strings.TrimPrefix(h, "Bearer ")
	} else {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return "", false
	}
	id, err := a.parse(tokenStr)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected token")
		return "", false
	}
	return id, true
}

// authenticate rejects requests without a valid token and stores the user id in the context.
func (a *tokenAuth) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.userIDFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = logging.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
