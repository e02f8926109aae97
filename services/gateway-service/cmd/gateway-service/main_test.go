package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/auth"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
)

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-User", r.Header.Get(httpx.HeaderUserID))
		w.Header().Set("X-Seen-Username", r.Header.Get(httpx.HeaderUsername))
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.NewClaims("user-1", "olivia", time.Now(), time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	h := requireAuth(echoIdentity(), tokenVerifier{secret: secret})

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(httpx.HeaderUserID, "spoofed")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if rw.Header().Get("X-Seen-User") != "user-1" || rw.Header().Get("X-Seen-Username") != "olivia" {
		t.Fatalf("identity headers not injected: %v", rw.Header())
	}

	for _, header := range []string{"", "Bearer ", "Bearer badtoken", "Basic abc"} {
		reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		if header != "" {
			reqBad.Header.Set("Authorization", header)
		}
		rwBad := httptest.NewRecorder()
		h.ServeHTTP(rwBad, reqBad)
		if rwBad.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rwBad.Code)
		}
	}
}

func TestRequireAuthRejectsExpired(t *testing.T) {
	token, err := auth.SignHS256(auth.NewClaims("user-1", "olivia", time.Now().Add(-2*time.Hour), time.Hour), "s")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	requireAuth(echoIdentity(), tokenVerifier{secret: "s"}).ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestRequireAuthRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kid := auth.KeyID(&key.PublicKey)
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []auth.JWK{auth.PublicJWK(&key.PublicKey, kid)}})
	}))
	defer jwks.Close()

	token, err := auth.SignRS256(auth.NewClaims("user-2", "noah", time.Now(), time.Hour), key, kid)
	if err != nil {
		t.Fatal(err)
	}

	withJWKS := requireAuth(echoIdentity(), tokenVerifier{secret: "s", jwks: auth.NewJWKSClient(jwks.URL, time.Minute)})
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	withJWKS.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || rw.Header().Get("X-Seen-User") != "user-2" {
		t.Fatalf("expected verified RS256 token, got %d", rw.Code)
	}

	withoutJWKS := requireAuth(echoIdentity(), tokenVerifier{secret: "s"})
	rw = httptest.NewRecorder()
	withoutJWKS.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("RS256 without JWKS should be rejected, got %d", rw.Code)
	}
}

func TestRoutesProxyToUpstreams(t *testing.T) {
	account := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "account")
		w.Header().Set("X-Seen-User", r.Header.Get(httpx.HeaderUserID))
		w.WriteHeader(http.StatusOK)
	}))
	defer account.Close()
	meeting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "meeting")
		w.Header().Set("X-Seen-User", r.Header.Get(httpx.HeaderUserID))
		w.WriteHeader(http.StatusOK)
	}))
	defer meeting.Close()

	accountURL, _ := url.Parse(account.URL)
	meetingURL, _ := url.Parse(meeting.URL)
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{account: accountURL, meeting: meetingURL}, tokenVerifier{secret: "s"})

	token, err := auth.SignHS256(auth.NewClaims("user-1", "olivia", time.Now(), time.Hour), "s")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path     string
		token    bool
		code     int
		upstream string
	}{
		{"/api/v1/auth/login", false, http.StatusOK, "account"},
		{"/.well-known/jwks.json", false, http.StatusOK, "account"},
		{"/api/v1/account/profile", false, http.StatusUnauthorized, ""},
		{"/api/v1/account/profile", true, http.StatusOK, "account"},
		{"/api/v1/meetings/pending", true, http.StatusOK, "meeting"},
		{"/api/v1/meetings/pending", false, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set(httpx.HeaderUserID, "spoofed")
		if tc.token {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != tc.code || rw.Header().Get("X-Upstream") != tc.upstream {
			t.Fatalf("%s (token=%v): got %d from %q", tc.path, tc.token, rw.Code, rw.Header().Get("X-Upstream"))
		}
		if seen := rw.Header().Get("X-Seen-User"); seen == "spoofed" {
			t.Fatalf("%s: client identity header reached upstream", tc.path)
		}
	}
}
