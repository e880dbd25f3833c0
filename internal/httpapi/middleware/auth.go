package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// readAuth takes the key from "Authorization: Bearer", X-API-Key, or the
// api_key query parameter (browsers cannot set headers on websocket dials).
func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return strings.TrimSpace(k)
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}

// hasKey matches given against plain keys in constant time, and against
// bcrypt hashes (anything starting with "$2").
func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if strings.HasPrefix(k, "$2") {
			if bcrypt.CompareHashAndPassword([]byte(k), []byte(given)) == nil {
				return true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

// RequireKey only lets through requests presenting one of keys.
// With no keys configured every request passes (local use).
func RequireKey(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasKey(readAuth(r), keys) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		})
	}
}
