package storage

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/db"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/inbox"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Store owns the account tables: users, contacts, groups and notifications.
type Store struct {
	pool  *db.Pool
	inbox *inbox.Repository
}

func NewStore(pool *db.Pool, inboxRepo *inbox.Repository) *Store {
	return &Store{pool: pool, inbox: inboxRepo}
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrConflict
	default:
		return err
	}
}

func utc(t time.Time) time.Time { return t.UTC() }
