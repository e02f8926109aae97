package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
)

type draftSlotRequest struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Priority int       `json:"priority"`
}

type draftPriorityRequest struct {
	Priority int `json:"priority"`
}

type draftAdded struct {
	Slot      slots.SelectedSlot   `json:"slot"`
	Selection *selection.Selection `json:"selection"`
}

// constraints collects what a candidate of the caller is checked against.
// Invitees are held to the owner's offer; the owner defines it.
func (h *MeetingHandler) constraints(ctx context.Context, acc meetingAccess) (selection.Constraints, error) {
	c := selection.Constraints{Now: h.now()}
	busy, err := h.busy(ctx, acc.userID)
	if err != nil {
		return c, err
	}
	c.Busy = busy
	if acc.role == roleParticipant {
		ownerSlots, err := h.store.ListSlots(ctx, acc.meeting.ID, acc.meeting.OwnerID)
		if err != nil {
			return c, err
		}
		c.Availability = slots.MergeToRanges(ownerSlots)
	}
	return c, nil
}

// rejectOrFail answers validation outcomes with 422 and anything else via fail.
func (h *MeetingHandler) rejectOrFail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case selection.IsRejection(err):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, selection.ErrSlotNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	default:
		h.fail(w, r, err)
	}
}

// Draft returns (GET) or discards (DELETE) the caller's selection.
func (h *MeetingHandler) Draft(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner, roleParticipant) {
		return
	}
	if r.Method == http.MethodDelete {
		if err := h.drafts.Delete(r.Context(), acc.meeting.ID, acc.userID); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sel, err := h.drafts.Get(r.Context(), acc.meeting.ID, acc.userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sel)
}

// DraftSlots adds one candidate range to the caller's selection.
func (h *MeetingHandler) DraftSlots(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner, roleParticipant) {
		return
	}
	var req draftSlotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	c, err := h.constraints(ctx, acc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	candidate := slots.TimeRange{Start: req.Start.UTC(), End: req.End.UTC()}
	var added slots.SelectedSlot
	sel, err := h.drafts.Update(ctx, acc.meeting.ID, acc.userID, func(s *selection.Selection) error {
		var err error
		added, err = s.Add(candidate, slots.Priority(req.Priority), c)
		return err
	})
	if err != nil {
		h.rejectOrFail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, draftAdded{Slot: added, Selection: sel})
}

// DraftSlot changes a selected slot's priority (PATCH) or removes it (DELETE).
func (h *MeetingHandler) DraftSlot(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPatch, http.MethodDelete) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner, roleParticipant) {
		return
	}
	slotID := r.PathValue("slot_id")

	var fn func(*selection.Selection) error
	if r.Method == http.MethodPatch {
		var req draftPriorityRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		fn = func(s *selection.Selection) error {
			return s.SetPriority(slotID, slots.Priority(req.Priority), h.now())
		}
	} else {
		fn = func(s *selection.Selection) error {
			return s.Remove(slotID, h.now())
		}
	}
	sel, err := h.drafts.Update(r.Context(), acc.meeting.ID, acc.userID, fn)
	if err != nil {
		h.rejectOrFail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sel)
}

// SubmitDraft re-checks the stored selection against current state, then
// replaces the caller's TimeSlots with its 30-minute increments.
func (h *MeetingHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner, roleParticipant) {
		return
	}
	ctx := r.Context()
	now := h.now()
	if acc.role == roleParticipant && !now.Before(acc.meeting.Deadline) {
		httpx.WriteError(w, http.StatusBadRequest, model.ErrResponseAfterDue.Error())
		return
	}

	draft, err := h.drafts.Get(ctx, acc.meeting.ID, acc.userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if draft.Len() == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "selection is empty")
		return
	}
	c, err := h.constraints(ctx, acc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// Availability or busy time may have changed since the slots were drawn.
	fresh := selection.New(acc.meeting.ID, acc.userID)
	for _, s := range draft.Slots {
		if _, err := fresh.Add(s.Range(), s.Priority, c); err != nil {
			h.rejectOrFail(w, r, err)
			return
		}
	}

	increments := fresh.Increments()
	if err := h.store.ReplaceSlots(ctx, acc.meeting.ID, acc.userID, increments, acc.role == roleParticipant, now); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.drafts.Delete(ctx, acc.meeting.ID, acc.userID); err != nil {
		h.logger.Warn("draft cleanup failed", "meeting_id", acc.meeting.ID, "err", err)
	}
	h.logger.Info("selection submitted", "meeting_id", acc.meeting.ID, "user_id", acc.userID, "slots", len(increments))
	httpx.WriteJSON(w, http.StatusOK, increments)
}
