// Package authmw provides HTTP middleware for the reviewer endpoints:
// bearer token authentication and reviewer attribution.
package authmw

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type reviewerKey struct{}

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching the expected value. Comparison uses
// constant-time equality to prevent timing side-channel attacks. An
// empty expected token disables the check, for dev setups without a
// reviewer token configured.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			if subtle.ConstantTimeCompare(got, expected) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Reviewer returns middleware that records the X-Reviewer header on the
// request context so decisions can be attributed in logs.
func Reviewer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if who := strings.TrimSpace(r.Header.Get("X-Reviewer")); who != "" {
				r = r.WithContext(context.WithValue(r.Context(), reviewerKey{}, who))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ReviewerFromContext returns the reviewer identity recorded by the
// Reviewer middleware, if any.
func ReviewerFromContext(ctx context.Context) (string, bool) {
	who, ok := ctx.Value(reviewerKey{}).(string)
	return who, ok
}
