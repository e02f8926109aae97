package httpx

import (
	"net/http"
	"strings"
)

// Identity headers are set by the gateway after verifying the bearer token.
// Upstream services trust them and never read the token themselves.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUsername = "X-Username"
)

func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

func Username(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUsername))
}

// RequireUser rejects requests that did not pass through the gateway auth.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r) == "" {
			WriteError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}
