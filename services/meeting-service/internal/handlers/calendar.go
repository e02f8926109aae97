package handlers

import (
	"bytes"
	"net/http"

	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/calendar"
)

// Calendar renders everything the caller may see for one pending meeting.
func (h *MeetingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner, roleParticipant) {
		return
	}
	ctx := r.Context()

	all, err := h.store.ListMeetingSlots(ctx, acc.meeting.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries := []calendar.Entry{}
	for _, rng := range slots.MergeToRanges(all[acc.meeting.OwnerID]) {
		entries = append(entries, calendar.Availability(rng))
	}
	for userID, ts := range all {
		if userID == acc.meeting.OwnerID {
			continue
		}
		if acc.role == roleParticipant && userID != acc.userID {
			continue
		}
		for _, s := range ts {
			entries = append(entries, calendar.ParticipantResponse(userID, s))
		}
	}

	fin, err := h.store.ListFinalized(ctx, acc.userID, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for _, m := range fin {
		entries = append(entries, calendar.Finalized(m))
	}

	draft, err := h.drafts.Get(ctx, acc.meeting.ID, acc.userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for _, s := range draft.Slots {
		entries = append(entries, calendar.Selected(s))
	}

	calendar.Sort(entries)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// FinalizedList returns the caller's upcoming finalized meetings.
func (h *MeetingHandler) FinalizedList(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	userID := httpx.UserID(r)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	fin, err := h.store.ListFinalized(r.Context(), userID, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, fin)
}

// CalendarFeed serves the caller's finalized meetings as text/calendar.
func (h *MeetingHandler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	userID := httpx.UserID(r)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	fin, err := h.store.ListFinalized(r.Context(), userID, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := calendar.EncodeICS(&buf, fin, h.now()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="oneonone.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
