package handlers

import (
	"net/http"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
)

type slotRequest struct {
	StartTime time.Time `json:"start_time"`
	Priority  int       `json:"priority"`
}

// TimeSlots reads (GET), adds (POST) or clears (DELETE) the caller's slots.
func (h *MeetingHandler) TimeSlots(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner, roleParticipant) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.store.ListSlots(r.Context(), acc.meeting.ID, acc.userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, list)

	case http.MethodPost:
		h.createSlot(w, r, acc)

	case http.MethodDelete:
		// The owner retracting availability invalidates every answer.
		target := acc.userID
		if acc.role == roleOwner {
			target = ""
		}
		n, err := h.store.DeleteSlots(r.Context(), acc.meeting.ID, target)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

func (h *MeetingHandler) createSlot(w http.ResponseWriter, r *http.Request, acc meetingAccess) {
	var req slotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := h.now()
	if acc.role == roleParticipant && !now.Before(acc.meeting.Deadline) {
		httpx.WriteError(w, http.StatusBadRequest, model.ErrResponseAfterDue.Error())
		return
	}
	ts := slots.TimeSlot{Start: req.StartTime.UTC(), Priority: slots.Priority(req.Priority)}
	if err := model.ValidateSlot(ts, now); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if acc.role == roleOwner {
		busy, err := h.busy(ctx, acc.userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if slots.OverlapsAny(ts.Range(), busy) {
			httpx.WriteError(w, http.StatusBadRequest, selection.ErrOverlapsMeeting.Error())
			return
		}
	} else {
		ownerSlots, err := h.store.ListSlots(ctx, acc.meeting.ID, acc.meeting.OwnerID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !slots.IsWithinAnyRange(ts.Range(), slots.MergeToRanges(ownerSlots)) {
			httpx.WriteError(w, http.StatusBadRequest, selection.ErrNotWithinAvailability.Error())
			return
		}
	}

	if err := h.store.InsertSlot(ctx, acc.meeting.ID, acc.userID, ts); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ts)
}
