package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/storage"
)

// AccountStore is everything the authenticated account API reads or writes.
type AccountStore interface {
	UserStore
	UpdateUser(ctx context.Context, u storage.User) error
	ListUsers(ctx context.Context) ([]storage.User, error)

	ListContacts(ctx context.Context, ownerID string) ([]storage.User, error)
	AddContact(ctx context.Context, ownerID, contactID string) error
	RemoveContact(ctx context.Context, ownerID, contactID string) error
	IsContact(ctx context.Context, ownerID, contactID string) (bool, error)

	ListGroups(ctx context.Context, ownerID string) ([]storage.Group, error)
	GetGroup(ctx context.Context, ownerID string, id int64) (storage.Group, error)
	CreateGroup(ctx context.Context, ownerID, name string) (storage.Group, error)
	RenameGroup(ctx context.Context, ownerID string, id int64, name string) error
	DeleteGroup(ctx context.Context, ownerID string, id int64) error
	AddMember(ctx context.Context, groupID int64, userID string) error
	RemoveMember(ctx context.Context, groupID int64, userID string) error

	ListActiveNotifications(ctx context.Context, ownerID string, now time.Time) ([]storage.Notification, error)
	OpenNotification(ctx context.Context, ownerID string, id int64) (storage.Notification, error)
	DeleteNotification(ctx context.Context, ownerID string, id int64) error
	MarkAllSeen(ctx context.Context, ownerID string, now time.Time) (int64, error)
	DeleteRead(ctx context.Context, ownerID string) (int64, error)
}

type AccountHandler struct {
	store  AccountStore
	logger *slog.Logger
	now    func() time.Time
}

func NewAccountHandler(store AccountStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (h *AccountHandler) Register(mux *http.ServeMux) {
	const p = "/api/v1/account"
	mux.HandleFunc(p+"/profile", h.Profile)
	mux.HandleFunc(p+"/users", h.Users)
	mux.HandleFunc(p+"/contacts", h.Contacts)
	mux.HandleFunc(p+"/contacts/{username}", h.Contact)
	mux.HandleFunc(p+"/groups", h.Groups)
	mux.HandleFunc(p+"/groups/{id}", h.Group)
	mux.HandleFunc(p+"/groups/{id}/members/{username}", h.GroupMember)
	mux.HandleFunc(p+"/notifications", h.Notifications)
	mux.HandleFunc(p+"/notifications/{id}", h.Notification)
	mux.HandleFunc(p+"/notifications/mark-all-seen", h.MarkAllSeen)
	mux.HandleFunc(p+"/notifications/delete-read", h.DeleteRead)
}

func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "already exists")
	default:
		h.logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type profileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  string  `json:"password"`
	Password2 string  `json:"password2"`
}

func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPatch) {
		return
	}
	ctx := r.Context()
	user, err := h.store.GetUserByID(ctx, httpx.UserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.Method == http.MethodGet {
		httpx.WriteJSON(w, http.StatusOK, user)
		return
	}

	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "enter a valid email address")
			return
		}
		user.Email = email
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Password != "" || req.Password2 != "" {
		if err := validatePassword(req.Password, req.Password2, user.Username); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		hash, err := hashPassword(req.Password)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		user.PasswordHash = hash
	}
	if err := h.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "email already registered")
			return
		}
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) Users(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

type usernameRequest struct {
	Username string `json:"username"`
}

// Contacts lists the caller's contacts (GET) or adds one by username (POST).
func (h *AccountHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ctx := r.Context()
	ownerID := httpx.UserID(r)

	if r.Method == http.MethodGet {
		list, err := h.store.ListContacts(ctx, ownerID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, list)
		return
	}

	var req usernameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	contact, err := h.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "user does not exist")
			return
		}
		h.fail(w, r, err)
		return
	}
	if contact.ID == ownerID {
		httpx.WriteError(w, http.StatusBadRequest, "you cannot add yourself as a contact")
		return
	}
	if err := h.store.AddContact(ctx, ownerID, contact.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "contact already exists")
			return
		}
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, contact)
}

func (h *AccountHandler) Contact(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodDelete) {
		return
	}
	ctx := r.Context()
	contact, err := h.store.GetUserByUsername(ctx, r.PathValue("username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.RemoveContact(ctx, httpx.UserID(r), contact.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type groupRequest struct {
	Name string `json:"name"`
}

func (req groupRequest) name() (string, bool) {
	n := strings.TrimSpace(req.Name)
	return n, n != ""
}

func (h *AccountHandler) Groups(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ctx := r.Context()
	ownerID := httpx.UserID(r)

	if r.Method == http.MethodGet {
		list, err := h.store.ListGroups(ctx, ownerID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, list)
		return
	}

	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, ok := req.name()
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	g, err := h.store.CreateGroup(ctx, ownerID, name)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "group with this name already exists")
			return
		}
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, g)
}

func (h *AccountHandler) Group(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	ctx := r.Context()
	ownerID := httpx.UserID(r)

	switch r.Method {
	case http.MethodGet:
		g, err := h.store.GetGroup(ctx, ownerID, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, g)

	case http.MethodPatch:
		var req groupRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		name, ok := req.name()
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := h.store.RenameGroup(ctx, ownerID, id, name); err != nil {
			h.fail(w, r, err)
			return
		}
		g, err := h.store.GetGroup(ctx, ownerID, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, g)

	case http.MethodDelete:
		if err := h.store.DeleteGroup(ctx, ownerID, id); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GroupMember adds (POST) or removes (DELETE) one of the caller's contacts.
func (h *AccountHandler) GroupMember(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	ctx := r.Context()
	ownerID := httpx.UserID(r)

	g, err := h.store.GetGroup(ctx, ownerID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	member, err := h.store.GetUserByUsername(ctx, r.PathValue("username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.store.RemoveMember(ctx, g.ID, member.ID); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	isContact, err := h.store.IsContact(ctx, ownerID, member.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !isContact {
		httpx.WriteError(w, http.StatusBadRequest, "only contacts can be added to a group")
		return
	}
	if err := h.store.AddMember(ctx, g.ID, member.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "user is already in the group")
			return
		}
		h.fail(w, r, err)
		return
	}
	g, err = h.store.GetGroup(ctx, ownerID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (h *AccountHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	list, err := h.store.ListActiveNotifications(r.Context(), httpx.UserID(r), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// Notification opens (GET, marking it seen) or deletes one notification.
func (h *AccountHandler) Notification(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	ctx := r.Context()
	ownerID := httpx.UserID(r)

	if r.Method == http.MethodDelete {
		if err := h.store.DeleteNotification(ctx, ownerID, id); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	n, err := h.store.OpenNotification(ctx, ownerID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, n)
}

func (h *AccountHandler) MarkAllSeen(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	n, err := h.store.MarkAllSeen(r.Context(), httpx.UserID(r), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *AccountHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	n, err := h.store.DeleteRead(r.Context(), httpx.UserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
