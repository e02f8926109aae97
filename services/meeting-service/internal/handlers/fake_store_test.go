package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/storage"
)

type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	people       map[string]model.Person
	contacts     map[[2]string]bool
	meetings     map[int64]model.PendingMeeting
	participants map[int64]map[string]model.Participant
	slots        map[int64]map[string][]slots.TimeSlot
	finalized    []model.FinalizedMeeting
	events       []outbox.Event

	// committedDuringFinalize lands in finalized just before Finalize checks
	// for overlaps, as if another request had committed first.
	committedDuringFinalize []model.FinalizedMeeting
}

func newFakeStore(people ...model.Person) *fakeStore {
	s := &fakeStore{
		people:       map[string]model.Person{},
		contacts:     map[[2]string]bool{},
		meetings:     map[int64]model.PendingMeeting{},
		participants: map[int64]map[string]model.Participant{},
		slots:        map[int64]map[string][]slots.TimeSlot{},
	}
	for _, p := range people {
		s.people[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetPerson(_ context.Context, userID string) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.people[userID]
	if !ok {
		return model.Person{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) IsContact(_ context.Context, ownerID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts[[2]string{ownerID, userID}], nil
}

func (s *fakeStore) EnqueueEvents(_ context.Context, evts []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts...)
	return nil
}

func (s *fakeStore) CreateMeeting(_ context.Context, m *model.PendingMeeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.meetings[m.ID] = *m
	s.participants[m.ID] = map[string]model.Participant{
		m.OwnerID: {MeetingID: m.ID, User: s.people[m.OwnerID]},
	}
	s.slots[m.ID] = map[string][]slots.TimeSlot{}
	return nil
}

func (s *fakeStore) GetMeeting(_ context.Context, id int64) (model.PendingMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return model.PendingMeeting{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) ListOwnedMeetings(_ context.Context, ownerID string) ([]model.PendingMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PendingMeeting{}
	for _, m := range s.meetings {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *fakeStore) ListInvitedMeetings(_ context.Context, userID string) ([]storage.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []storage.Invitation{}
	for id, ps := range s.participants {
		m := s.meetings[id]
		p, ok := ps[userID]
		if !ok || m.OwnerID == userID {
			continue
		}
		out = append(out, storage.Invitation{Meeting: m, Owner: s.people[m.OwnerID], Response: p.Response, ResponseTime: p.ResponseTime, Content: p.Content})
	}
	return out, nil
}

func (s *fakeStore) UpdateMeeting(_ context.Context, m model.PendingMeeting, resetSlots bool, evts []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; !ok {
		return storage.ErrNotFound
	}
	s.meetings[m.ID] = m
	if resetSlots {
		s.slots[m.ID] = map[string][]slots.TimeSlot{}
		for uid, p := range s.participants[m.ID] {
			p.Response, p.ResponseTime = false, nil
			s.participants[m.ID][uid] = p
		}
	}
	s.events = append(s.events, evts...)
	return nil
}

func (s *fakeStore) DeleteMeeting(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.meetings, id)
	delete(s.participants, id)
	delete(s.slots, id)
	return nil
}

func (s *fakeStore) ListParticipants(_ context.Context, meetingID int64) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Participant{}
	for _, p := range s.participants[meetingID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

func (s *fakeStore) GetParticipant(_ context.Context, meetingID int64, userID string) (model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[meetingID][userID]
	if !ok {
		return model.Participant{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) AddParticipant(_ context.Context, meetingID int64, userID string, evts []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[meetingID][userID]; ok {
		return storage.ErrConflict
	}
	s.participants[meetingID][userID] = model.Participant{MeetingID: meetingID, User: s.people[userID]}
	s.events = append(s.events, evts...)
	return nil
}

func (s *fakeStore) RemoveParticipant(_ context.Context, meetingID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[meetingID][userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.participants[meetingID], userID)
	delete(s.slots[meetingID], userID)
	return nil
}

func (s *fakeStore) UpdateResponse(_ context.Context, meetingID int64, userID string, response bool, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[meetingID][userID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Response, p.Content, p.ResponseTime = response, content, &at
	s.participants[meetingID][userID] = p
	return nil
}

func (s *fakeStore) ListSlots(_ context.Context, meetingID int64, userID string) ([]slots.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]slots.TimeSlot{}, s.slots[meetingID][userID]...), nil
}

func (s *fakeStore) ListMeetingSlots(_ context.Context, meetingID int64) (map[string][]slots.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]slots.TimeSlot{}
	for uid, ts := range s.slots[meetingID] {
		out[uid] = append([]slots.TimeSlot{}, ts...)
	}
	return out, nil
}

func (s *fakeStore) InsertSlot(_ context.Context, meetingID int64, userID string, ts slots.TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.slots[meetingID][userID] {
		if existing.Start.Equal(ts.Start) {
			return storage.ErrConflict
		}
	}
	s.slots[meetingID][userID] = append(s.slots[meetingID][userID], ts)
	return nil
}

func (s *fakeStore) DeleteSlots(_ context.Context, meetingID int64, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for uid, ts := range s.slots[meetingID] {
		if userID == "" || uid == userID {
			n += int64(len(ts))
			delete(s.slots[meetingID], uid)
		}
	}
	return n, nil
}

func (s *fakeStore) ReplaceSlots(_ context.Context, meetingID int64, userID string, ss []slots.TimeSlot, markResponded bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[meetingID][userID] = append([]slots.TimeSlot{}, ss...)
	if markResponded {
		p := s.participants[meetingID][userID]
		p.Response, p.ResponseTime = true, &at
		s.participants[meetingID][userID] = p
	}
	return nil
}

func (s *fakeStore) ListFinalized(_ context.Context, userID string, from time.Time) ([]model.FinalizedMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.FinalizedMeeting{}
	for _, f := range s.finalized {
		if (f.Owner.ID == userID || f.Participant.ID == userID) && f.Window().End.After(from) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) Finalize(_ context.Context, meetingID int64, meetings []model.FinalizedMeeting, evts []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[meetingID]; !ok {
		return storage.ErrNotFound
	}
	s.finalized = append(s.finalized, s.committedDuringFinalize...)
	s.committedDuringFinalize = nil
	for _, f := range meetings {
		for _, other := range s.finalized {
			shared := other.Owner.ID == f.Owner.ID || other.Participant.ID == f.Participant.ID ||
				other.Owner.ID == f.Participant.ID || other.Participant.ID == f.Owner.ID
			if shared && other.Window().Overlaps(f.Window()) {
				return storage.ErrBusy
			}
		}
	}
	for _, f := range meetings {
		s.nextID++
		f.ID = s.nextID
		s.finalized = append(s.finalized, f)
	}
	s.events = append(s.events, evts...)
	delete(s.meetings, meetingID)
	delete(s.participants, meetingID)
	delete(s.slots, meetingID)
	return nil
}

// seedMeeting stores a meeting owned by owner with guest invited.
func (s *fakeStore) seedMeeting(m model.PendingMeeting, guests ...string) int64 {
	_ = s.CreateMeeting(context.Background(), &m)
	for _, g := range guests {
		s.participants[m.ID][g] = model.Participant{MeetingID: m.ID, User: s.people[g]}
	}
	return m.ID
}

func (s *fakeStore) seedSlots(meetingID int64, userID string, from time.Time, n int) {
	for i := 0; i < n; i++ {
		ts := slots.TimeSlot{Start: from.Add(time.Duration(i) * slots.Duration), Priority: slots.PriorityHigh}
		s.slots[meetingID][userID] = append(s.slots[meetingID][userID], ts)
	}
	if p, ok := s.participants[meetingID][userID]; ok {
		p.Response = true
		s.participants[meetingID][userID] = p
	}
}

var _ Store = (*fakeStore)(nil)
