package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/oneonone/libs/events"
	"github.com/md-rashed-zaman/oneonone/libs/httpx"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/finalize"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
)

// Finalize turns the pending meeting into one finalized meeting per proposal
// and declines the leftovers. The pending meeting is gone afterwards.
func (h *MeetingHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	acc, ok := h.access(w, r)
	if !ok || !acc.require(w, roleOwner) {
		return
	}
	var req finalize.Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	participants, err := h.store.ListParticipants(ctx, acc.meeting.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	all, err := h.store.ListMeetingSlots(ctx, acc.meeting.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	windows, err := finalize.Validate(req, finalize.State{Meeting: acc.meeting, Participants: participants, Slots: all})
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	people := map[string]model.Person{}
	for _, p := range participants {
		people[p.User.ID] = p.User
	}
	owner := people[acc.meeting.OwnerID]
	ownerBusy, err := h.busy(ctx, owner.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	meetings := make([]model.FinalizedMeeting, 0, len(req.Slots))
	var evts []outbox.Event
	for i, prop := range req.Slots {
		win := windows[i]
		guest := people[prop.UserID]
		guestBusy, err := h.busy(ctx, guest.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if slots.OverlapsAny(win, ownerBusy) || slots.OverlapsAny(win, guestBusy) {
			httpx.WriteError(w, http.StatusConflict, selection.ErrOverlapsMeeting.Error())
			return
		}
		meetings = append(meetings, model.FinalizedMeeting{
			Title:       acc.meeting.Title,
			Time:        win.Start,
			TimeLimit:   acc.meeting.TimeLimit,
			Owner:       owner,
			Participant: guest,
		})

		start := win.Start
		toGuest := meetingEvent(acc.meeting, owner, guest.ID)
		toGuest.Time, toGuest.CounterpartName = &start, owner.DisplayName()
		toOwner := meetingEvent(acc.meeting, owner, owner.ID)
		toOwner.Time, toOwner.CounterpartName = &start, guest.DisplayName()
		for _, e := range []events.MeetingEvent{toGuest, toOwner} {
			evt, err := outbox.MeetingEvent(events.MeetingFinalized, e)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			evts = append(evts, evt)
		}
	}
	for _, userID := range req.Leftovers {
		evt, err := outbox.MeetingEvent(events.MeetingDeclined, meetingEvent(acc.meeting, owner, userID))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		evts = append(evts, evt)
	}

	if err := h.store.Finalize(ctx, acc.meeting.ID, meetings, evts); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("meeting finalized",
		"meeting_id", acc.meeting.ID,
		"finalized", len(meetings),
		"declined", len(req.Leftovers),
	)
	httpx.WriteJSON(w, http.StatusCreated, meetings)
}
