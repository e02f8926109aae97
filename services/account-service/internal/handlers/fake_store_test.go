package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/sessions"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/storage"
)

type fakeStore struct {
	mu            sync.Mutex
	nextID        int64
	users         map[string]storage.User
	contacts      map[[2]string]bool
	groups        map[int64]storage.Group
	members       map[int64]map[string]bool
	notifications map[int64]storage.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]storage.User{},
		contacts:      map[[2]string]bool{},
		groups:        map[int64]storage.Group{},
		members:       map[int64]map[string]bool{},
		notifications: map[int64]storage.Notification{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) CreateUser(_ context.Context, u storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return storage.ErrConflict
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (s *fakeStore) UpdateUser(_ context.Context, u storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return storage.ErrNotFound
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeStore) ListUsers(_ context.Context) ([]storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *fakeStore) ListContacts(_ context.Context, ownerID string) ([]storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.User
	for k := range s.contacts {
		if k[0] == ownerID {
			out = append(out, s.users[k[1]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *fakeStore) AddContact(_ context.Context, ownerID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{ownerID, contactID}
	if s.contacts[k] {
		return storage.ErrConflict
	}
	s.contacts[k] = true
	return nil
}

func (s *fakeStore) RemoveContact(_ context.Context, ownerID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{ownerID, contactID}
	if !s.contacts[k] {
		return storage.ErrNotFound
	}
	delete(s.contacts, k)
	for id, g := range s.groups {
		if g.OwnerID == ownerID {
			delete(s.members[id], contactID)
		}
	}
	return nil
}

func (s *fakeStore) IsContact(_ context.Context, ownerID, contactID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts[[2]string{ownerID, contactID}], nil
}

func (s *fakeStore) withMembers(g storage.Group) storage.Group {
	g.Members = nil
	for uid := range s.members[g.ID] {
		g.Members = append(g.Members, s.users[uid])
	}
	sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].Username < g.Members[j].Username })
	return g
}

func (s *fakeStore) ListGroups(_ context.Context, ownerID string) ([]storage.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Group
	for _, g := range s.groups {
		if g.OwnerID == ownerID {
			out = append(out, s.withMembers(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetGroup(_ context.Context, ownerID string, id int64) (storage.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok || g.OwnerID != ownerID {
		return storage.Group{}, storage.ErrNotFound
	}
	return s.withMembers(g), nil
}

func (s *fakeStore) CreateGroup(_ context.Context, ownerID, name string) (storage.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.OwnerID == ownerID && g.Name == name {
			return storage.Group{}, storage.ErrConflict
		}
	}
	g := storage.Group{ID: s.id(), OwnerID: ownerID, Name: name, CreatedAt: time.Now().UTC()}
	s.groups[g.ID] = g
	s.members[g.ID] = map[string]bool{}
	return g, nil
}

func (s *fakeStore) RenameGroup(_ context.Context, ownerID string, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok || g.OwnerID != ownerID {
		return storage.ErrNotFound
	}
	g.Name = name
	s.groups[id] = g
	return nil
}

func (s *fakeStore) DeleteGroup(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok || g.OwnerID != ownerID {
		return storage.ErrNotFound
	}
	delete(s.groups, id)
	delete(s.members, id)
	return nil
}

func (s *fakeStore) AddMember(_ context.Context, groupID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID][userID] {
		return storage.ErrConflict
	}
	s.members[groupID][userID] = true
	return nil
}

func (s *fakeStore) RemoveMember(_ context.Context, groupID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.members[groupID][userID] {
		return storage.ErrNotFound
	}
	delete(s.members[groupID], userID)
	return nil
}

func (s *fakeStore) notify(ownerID, title, content string, show, expire time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := storage.Notification{ID: s.id(), OwnerID: ownerID, Title: title, Content: content, ShowTime: show, ExpireTime: expire}
	s.notifications[n.ID] = n
	return n.ID
}

func (s *fakeStore) ListActiveNotifications(_ context.Context, ownerID string, now time.Time) ([]storage.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Notification
	for id, n := range s.notifications {
		if n.OwnerID != ownerID {
			continue
		}
		if n.IsSeen && !n.ExpireTime.After(now) {
			delete(s.notifications, id)
			continue
		}
		if n.ShowTime.After(now) || !n.ExpireTime.After(now) {
			continue
		}
		n.Content = ""
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) OpenNotification(_ context.Context, ownerID string, id int64) (storage.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.OwnerID != ownerID {
		return storage.Notification{}, storage.ErrNotFound
	}
	n.IsSeen = true
	s.notifications[id] = n
	return n, nil
}

func (s *fakeStore) DeleteNotification(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.OwnerID != ownerID {
		return storage.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *fakeStore) MarkAllSeen(_ context.Context, ownerID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.OwnerID == ownerID && !n.IsSeen && !n.ShowTime.After(now) {
			n.IsSeen = true
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) DeleteRead(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.OwnerID == ownerID && n.IsSeen {
			delete(s.notifications, id)
			count++
		}
	}
	return count, nil
}

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]sessions.RefreshToken
	raw    map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]sessions.RefreshToken{}, raw: map[string]string{}}
}

func (f *fakeSessions) Create(_ context.Context, userID string, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.create(userID, expiresAt)
}

func (f *fakeSessions) create(userID string, expiresAt time.Time) (string, error) {
	raw, err := sessions.NewToken()
	if err != nil {
		return "", err
	}
	id := sessions.HashToken(raw)[:12]
	f.tokens[id] = sessions.RefreshToken{ID: id, UserID: userID, Hash: sessions.HashToken(raw), ExpiresAt: expiresAt}
	f.raw[raw] = id
	return raw, nil
}

func (f *fakeSessions) GetByRaw(_ context.Context, raw string) (sessions.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.raw[raw]
	if !ok {
		return sessions.RefreshToken{}, sessions.ErrNotFound
	}
	return f.tokens[id], nil
}

func (f *fakeSessions) Rotate(_ context.Context, id, userID string, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[id]
	if !ok || tok.RevokedAt != nil {
		return "", sessions.ErrNotFound
	}
	now := time.Now()
	tok.RevokedAt = &now
	f.tokens[id] = tok
	return f.create(userID, expiresAt)
}

func (f *fakeSessions) Revoke(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[id]
	if !ok {
		return sessions.ErrNotFound
	}
	now := time.Now()
	tok.RevokedAt = &now
	f.tokens[id] = tok
	return nil
}

var (
	_ AccountStore = (*fakeStore)(nil)
	_ SessionStore = (*fakeSessions)(nil)
)
