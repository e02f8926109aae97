package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/oneonone/libs/auth"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
)

// tokenVerifier accepts RS256 tokens through the JWKS client when one is
// configured and HS256 tokens signed with secret otherwise.
type tokenVerifier struct {
	secret string
	jwks   *auth.JWKSClient
}

func (v tokenVerifier) verify(ctx context.Context, token string) (*auth.Claims, error) {
	header, err := auth.ParseHeader(token)
	if err != nil {
		return nil, err
	}
	if header.Alg == "RS256" {
		if v.jwks == nil {
			return nil, auth.ErrInvalidToken
		}
		return v.jwks.Verify(ctx, token)
	}
	return auth.ParseAndVerifyHS256(token, v.secret)
}

// stripIdentity removes client supplied identity headers.
func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.HeaderUserID)
		r.Header.Del(httpx.HeaderUsername)
		next.ServeHTTP(w, r)
	})
}

func requireAuth(next http.Handler, v tokenVerifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.HeaderUserID)
		r.Header.Del(httpx.HeaderUsername)

		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}

		claims, err := v.verify(r.Context(), token)
		if err != nil || claims.Sub == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		r.Header.Set(httpx.HeaderUserID, claims.Sub)
		r.Header.Set(httpx.HeaderUsername, claims.Username)
		next.ServeHTTP(w, r)
	})
}
