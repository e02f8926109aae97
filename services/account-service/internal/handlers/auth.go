package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/oneonone/libs/auth"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/sessions"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/storage"
)

type UserStore interface {
	CreateUser(ctx context.Context, u storage.User) error
	GetUserByID(ctx context.Context, id string) (storage.User, error)
	GetUserByUsername(ctx context.Context, username string) (storage.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, userID string, expiresAt time.Time) (string, error)
	GetByRaw(ctx context.Context, raw string) (sessions.RefreshToken, error)
	Rotate(ctx context.Context, id, userID string, expiresAt time.Time) (string, error)
	Revoke(ctx context.Context, id string) error
}

type AuthHandler struct {
	signer     TokenSigner
	users      UserStore
	sessions   SessionStore
	logger     *slog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewAuthHandler(signer TokenSigner, users UserStore, sessionStore SessionStore, logger *slog.Logger, cfg AuthConfig) *AuthHandler {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &AuthHandler{
		signer:     signer,
		users:      users,
		sessions:   sessionStore,
		logger:     logger,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/auth/register", h.SignUp)
	mux.HandleFunc("/api/v1/auth/login", h.Login)
	mux.HandleFunc("/api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", h.Logout)
	mux.HandleFunc("/.well-known/jwks.json", h.JWKS)
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *storage.User `json:"user,omitempty"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "enter a valid email address")
		return
	}
	if err := validatePassword(req.Password, req.Password2, req.Username); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		h.internal(w, r, "hash password", err)
		return
	}
	user := storage.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		CreatedAt:    h.now().UTC(),
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "username or email already registered")
			return
		}
		h.internal(w, r, "create user", err)
		return
	}
	h.logger.Info("user registered", "user_id", user.ID)
	h.issue(w, r, http.StatusCreated, user, "")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.internal(w, r, "lookup user", err)
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.issue(w, r, http.StatusOK, user, "")
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	token, err := h.sessions.GetByRaw(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		h.internal(w, r, "lookup refresh token", err)
		return
	}
	if !token.Active(h.now()) {
		httpx.WriteError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}
	user, err := h.users.GetUserByID(r.Context(), token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		h.internal(w, r, "lookup user", err)
		return
	}
	h.issue(w, r, http.StatusOK, user, token.ID)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	token, err := h.sessions.GetByRaw(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.internal(w, r, "lookup refresh token", err)
		return
	}
	if token.RevokedAt == nil {
		if err := h.sessions.Revoke(r.Context(), token.ID); err != nil {
			h.internal(w, r, "revoke refresh token", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	keys := h.signer.JWKS()
	if len(keys) == 0 {
		httpx.WriteError(w, http.StatusNotFound, "jwks not available")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// issue writes a fresh token pair. When rotateID is set that refresh token
// is revoked in the same step.
func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, user storage.User, rotateID string) {
	now := h.now()
	access, err := h.signer.Sign(auth.NewClaims(user.ID, user.Username, now, h.accessTTL))
	if err != nil {
		h.internal(w, r, "sign token", err)
		return
	}

	expires := now.Add(h.refreshTTL)
	var refresh string
	if rotateID != "" {
		refresh, err = h.sessions.Rotate(r.Context(), rotateID, user.ID, expires)
		if errors.Is(err, sessions.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "refresh token already used")
			return
		}
	} else {
		refresh, err = h.sessions.Create(r.Context(), user.ID, expires)
	}
	if err != nil {
		h.internal(w, r, "issue refresh token", err)
		return
	}

	httpx.WriteJSON(w, status, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.accessTTL / time.Second),
		User:         &user,
	})
}

func (h *AuthHandler) internal(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal error")
}
