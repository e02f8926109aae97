package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/events"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
)

type meetingRequest struct {
	Title     *string    `json:"title"`
	Deadline  *time.Time `json:"deadline"`
	TimeLimit *int       `json:"time_limit"`
	Message   *string    `json:"message"`
}

func (req meetingRequest) apply(m *model.PendingMeeting) {
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Deadline != nil {
		m.Deadline = req.Deadline.UTC()
	}
	if req.TimeLimit != nil {
		m.TimeLimit = *req.TimeLimit
	}
	if req.Message != nil {
		m.Message = *req.Message
	}
}

type meetingDetail struct {
	model.PendingMeeting
	TimeSlot        []slots.TimeSlot  `json:"time_slot"`
	AvailableRanges []slots.TimeRange `json:"available_ranges"`
}

// Pending lists the caller's own pending meetings (GET) or creates one (POST).
func (h *MeetingHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	userID := httpx.UserID(r)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	if r.Method == http.MethodGet {
		list, err := h.store.ListOwnedMeetings(r.Context(), userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, list)
		return
	}

	var req meetingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	m := model.PendingMeeting{OwnerID: userID}
	req.apply(&m)
	if err := m.Validate(h.now()); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateMeeting(r.Context(), &m); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("meeting created", "meeting_id", m.ID, "owner_id", userID)
	httpx.WriteJSON(w, http.StatusCreated, m)
}

// Meeting serves detail (owner or participant), update and delete (owner).
func (h *MeetingHandler) Meeting(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !acc.require(w, roleOwner, roleParticipant) {
			return
		}
		ownerSlots, err := h.store.ListSlots(r.Context(), acc.meeting.ID, acc.meeting.OwnerID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, meetingDetail{
			PendingMeeting:  acc.meeting,
			TimeSlot:        ownerSlots,
			AvailableRanges: slots.MergeToRanges(ownerSlots),
		})

	case http.MethodPatch:
		if !acc.require(w, roleOwner) {
			return
		}
		h.updateMeeting(w, r, acc.meeting)

	case http.MethodDelete:
		if !acc.require(w, roleOwner) {
			return
		}
		if err := h.store.DeleteMeeting(r.Context(), acc.meeting.ID); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.drafts.Delete(r.Context(), acc.meeting.ID, acc.userID); err != nil {
			h.logger.Warn("draft cleanup failed", "meeting_id", acc.meeting.ID, "err", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *MeetingHandler) updateMeeting(w http.ResponseWriter, r *http.Request, current model.PendingMeeting) {
	var req meetingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	next := current
	req.apply(&next)
	if err := next.Validate(h.now()); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rescheduled := !next.Deadline.Equal(current.Deadline) || next.TimeLimit != current.TimeLimit
	var evts []outbox.Event
	if rescheduled {
		var err error
		evts, err = h.inviteeEvents(r.Context(), next, events.MeetingRescheduled, func(model.Participant) bool { return true })
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.store.UpdateMeeting(r.Context(), next, rescheduled, evts); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("meeting updated", "meeting_id", next.ID, "slots_reset", rescheduled)
	httpx.WriteJSON(w, http.StatusOK, next)
}

// Invited lists meetings the caller was invited to by someone else.
func (h *MeetingHandler) Invited(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	userID := httpx.UserID(r)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	list, err := h.store.ListInvitedMeetings(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// NotifyNonResponders asks every invitee without a response to answer.
func (h *MeetingHandler) NotifyNonResponders(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner) {
		return
	}
	evts, err := h.inviteeEvents(r.Context(), acc.meeting, events.MeetingReminderRequested, func(p model.Participant) bool { return !p.Response })
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.EnqueueEvents(r.Context(), evts); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]int{"notified": len(evts)})
}

// inviteeEvents builds one event per invitee (never the owner) matching keep.
func (h *MeetingHandler) inviteeEvents(ctx context.Context, m model.PendingMeeting, eventType string, keep func(model.Participant) bool) ([]outbox.Event, error) {
	owner, err := h.store.GetPerson(ctx, m.OwnerID)
	if err != nil {
		return nil, err
	}
	participants, err := h.store.ListParticipants(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	var evts []outbox.Event
	for _, p := range participants {
		if p.User.ID == m.OwnerID || !keep(p) {
			continue
		}
		evt, err := outbox.MeetingEvent(eventType, meetingEvent(m, owner, p.User.ID))
		if err != nil {
			return nil, err
		}
		evts = append(evts, evt)
	}
	return evts, nil
}

func meetingEvent(m model.PendingMeeting, owner model.Person, recipientID string) events.MeetingEvent {
	return events.MeetingEvent{
		MeetingID:   m.ID,
		Title:       m.Title,
		OwnerID:     m.OwnerID,
		OwnerName:   owner.DisplayName(),
		RecipientID: recipientID,
		Deadline:    m.Deadline,
		TimeLimit:   m.TimeLimit,
		Message:     m.Message,
	}
}
