package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/oneonone/libs/events"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
)

type inviteRequest struct {
	UserID string `json:"user_id"`
}

type responseRequest struct {
	Response *bool   `json:"response"`
	Content  *string `json:"content"`
}

type participantDetail struct {
	model.Participant
	TimeSlot []slots.TimeSlot `json:"time_slot"`
}

// Participants lists (GET) or invites (POST) a meeting's invitees. Owner only.
func (h *MeetingHandler) Participants(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner) {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodGet {
		all, err := h.store.ListParticipants(ctx, acc.meeting.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		invitees := make([]model.Participant, 0, len(all))
		for _, p := range all {
			if p.User.ID != acc.meeting.OwnerID {
				invitees = append(invitees, p)
			}
		}
		httpx.WriteJSON(w, http.StatusOK, invitees)
		return
	}

	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.UserID == acc.userID {
		httpx.WriteError(w, http.StatusBadRequest, "the owner is already part of the meeting")
		return
	}
	isContact, err := h.store.IsContact(ctx, acc.userID, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !isContact {
		httpx.WriteError(w, http.StatusBadRequest, "user is not one of your contacts")
		return
	}

	owner, err := h.store.GetPerson(ctx, acc.userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	evt, err := outbox.MeetingEvent(events.MeetingInvited, meetingEvent(acc.meeting, owner, req.UserID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.AddParticipant(ctx, acc.meeting.ID, req.UserID, []outbox.Event{evt}); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.store.GetParticipant(ctx, acc.meeting.ID, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("participant invited", "meeting_id", acc.meeting.ID, "user_id", req.UserID)
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// Participant shows one invitee's answer (GET) or removes them (DELETE).
func (h *MeetingHandler) Participant(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner) {
		return
	}
	userID := r.PathValue("user_id")
	if userID == acc.meeting.OwnerID {
		httpx.WriteError(w, http.StatusBadRequest, "the owner is not an invitee")
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodDelete {
		if err := h.store.RemoveParticipant(ctx, acc.meeting.ID, userID); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	p, err := h.store.GetParticipant(ctx, acc.meeting.ID, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !p.Response {
		httpx.WriteError(w, http.StatusNotFound, "participant has not responded yet")
		return
	}
	ts, err := h.store.ListSlots(ctx, acc.meeting.ID, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, participantDetail{Participant: p, TimeSlot: ts})
}

// Response lets an invitee record whether and what they answered.
func (h *MeetingHandler) Response(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPatch) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleParticipant) {
		return
	}
	var req responseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := h.now()
	if !now.Before(acc.meeting.Deadline) {
		httpx.WriteError(w, http.StatusBadRequest, model.ErrResponseAfterDue.Error())
		return
	}

	ctx := r.Context()
	current, err := h.store.GetParticipant(ctx, acc.meeting.ID, acc.userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Response != nil {
		current.Response = *req.Response
	}
	if req.Content != nil {
		current.Content = *req.Content
	}
	if err := h.store.UpdateResponse(ctx, acc.meeting.ID, acc.userID, current.Response, current.Content, now); err != nil {
		h.fail(w, r, err)
		return
	}
	current.ResponseTime = &now
	httpx.WriteJSON(w, http.StatusOK, current)
}
