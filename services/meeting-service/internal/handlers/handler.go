package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/drafts"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/storage"
)

// Store is the persistence the handlers need. *storage.Store implements it.
type Store interface {
	GetPerson(ctx context.Context, userID string) (model.Person, error)
	IsContact(ctx context.Context, ownerID, userID string) (bool, error)
	EnqueueEvents(ctx context.Context, evts []outbox.Event) error

	CreateMeeting(ctx context.Context, m *model.PendingMeeting) error
	GetMeeting(ctx context.Context, id int64) (model.PendingMeeting, error)
	ListOwnedMeetings(ctx context.Context, ownerID string) ([]model.PendingMeeting, error)
	ListInvitedMeetings(ctx context.Context, userID string) ([]storage.Invitation, error)
	UpdateMeeting(ctx context.Context, m model.PendingMeeting, resetSlots bool, evts []outbox.Event) error
	DeleteMeeting(ctx context.Context, id int64) error

	ListParticipants(ctx context.Context, meetingID int64) ([]model.Participant, error)
	GetParticipant(ctx context.Context, meetingID int64, userID string) (model.Participant, error)
	AddParticipant(ctx context.Context, meetingID int64, userID string, evts []outbox.Event) error
	RemoveParticipant(ctx context.Context, meetingID int64, userID string) error
	UpdateResponse(ctx context.Context, meetingID int64, userID string, response bool, content string, at time.Time) error

	ListSlots(ctx context.Context, meetingID int64, userID string) ([]slots.TimeSlot, error)
	ListMeetingSlots(ctx context.Context, meetingID int64) (map[string][]slots.TimeSlot, error)
	InsertSlot(ctx context.Context, meetingID int64, userID string, ts slots.TimeSlot) error
	DeleteSlots(ctx context.Context, meetingID int64, userID string) (int64, error)
	ReplaceSlots(ctx context.Context, meetingID int64, userID string, ss []slots.TimeSlot, markResponded bool, at time.Time) error

	ListFinalized(ctx context.Context, userID string, from time.Time) ([]model.FinalizedMeeting, error)
	Finalize(ctx context.Context, meetingID int64, meetings []model.FinalizedMeeting, evts []outbox.Event) error
}

type MeetingHandler struct {
	store  Store
	drafts drafts.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewMeetingHandler(store Store, draftStore drafts.Store, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{
		store:  store,
		drafts: draftStore,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *MeetingHandler) Register(mux *http.ServeMux) {
	const p = "/api/v1/meetings/pending/{id}"
	mux.HandleFunc("/api/v1/meetings/pending", h.Pending)
	mux.HandleFunc(p, h.Meeting)
	mux.HandleFunc(p+"/notify", h.NotifyNonResponders)
	mux.HandleFunc(p+"/slots", h.TimeSlots)
	mux.HandleFunc(p+"/participants", h.Participants)
	mux.HandleFunc(p+"/participants/{user_id}", h.Participant)
	mux.HandleFunc(p+"/response", h.Response)
	mux.HandleFunc(p+"/finalize", h.Finalize)
	mux.HandleFunc(p+"/draft", h.Draft)
	mux.HandleFunc(p+"/draft/slots", h.DraftSlots)
	mux.HandleFunc(p+"/draft/slots/{slot_id}", h.DraftSlot)
	mux.HandleFunc(p+"/draft/submit", h.SubmitDraft)
	mux.HandleFunc(p+"/calendar", h.Calendar)
	mux.HandleFunc("/api/v1/meetings/invited", h.Invited)
	mux.HandleFunc("/api/v1/meetings/finalized", h.FinalizedList)
	mux.HandleFunc("/api/v1/meetings/calendar.ics", h.CalendarFeed)
}

type role int

const (
	roleNone role = iota
	roleOwner
	roleParticipant
)

// meetingAccess is the resolved meeting plus the caller's relation to it.
type meetingAccess struct {
	meeting model.PendingMeeting
	userID  string
	role    role
}

// access loads the meeting named in the path and resolves the caller's role.
// It writes the error response itself and returns false on failure.
func (h *MeetingHandler) access(w http.ResponseWriter, r *http.Request) (meetingAccess, bool) {
	userID := httpx.UserID(r)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing user identity")
		return meetingAccess{}, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid meeting id")
		return meetingAccess{}, false
	}
	m, err := h.store.GetMeeting(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return meetingAccess{}, false
	}

	acc := meetingAccess{meeting: m, userID: userID, role: roleNone}
	if m.IsOwner(userID) {
		acc.role = roleOwner
		return acc, true
	}
	_, err = h.store.GetParticipant(r.Context(), id, userID)
	switch {
	case err == nil:
		acc.role = roleParticipant
	case !errors.Is(err, storage.ErrNotFound):
		h.fail(w, r, err)
		return meetingAccess{}, false
	}
	return acc, true
}

func (a meetingAccess) require(w http.ResponseWriter, roles ...role) bool {
	for _, want := range roles {
		if a.role == want {
			return true
		}
	}
	msg := "you are not a participant of this meeting"
	if len(roles) == 1 && roles[0] == roleOwner {
		msg = "only the meeting owner can do this"
	}
	httpx.WriteError(w, http.StatusForbidden, msg)
	return false
}

// fail maps storage errors to responses and logs the unexpected ones.
func (h *MeetingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrBusy):
		httpx.WriteError(w, http.StatusConflict, selection.ErrOverlapsMeeting.Error())
	case errors.Is(err, storage.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "already exists")
	case errors.Is(err, drafts.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// busy returns the merged windows of the user's upcoming finalized meetings.
func (h *MeetingHandler) busy(ctx context.Context, userID string) ([]slots.TimeRange, error) {
	fin, err := h.store.ListFinalized(ctx, userID, h.now())
	if err != nil {
		return nil, err
	}
	return model.BusyRanges(fin), nil
}
