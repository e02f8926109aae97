package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/oneonone/libs/db"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrBusy     = errors.New("overlaps with an existing meeting")
)

// Store is the meeting-service view of Postgres. Methods that change more
// than one table run in a single transaction together with their outbox events.
type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
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

// EnqueueEvents writes events without touching any other table.
func (s *Store) EnqueueEvents(ctx context.Context, evts []outbox.Event) error {
	if len(evts) == 0 {
		return nil
	}
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		return s.outbox.InsertAll(ctx, tx, evts)
	})
}

const personColumns = `u.id::text, u.username, u.email, u.first_name, u.last_name`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner, extra ...any) (model.Person, error) {
	var p model.Person
	dest := append([]any{&p.ID, &p.Username, &p.Email, &p.FirstName, &p.LastName}, extra...)
	err := row.Scan(dest...)
	return p, err
}

// GetPerson reads the users table owned by account-service.
func (s *Store) GetPerson(ctx context.Context, userID string) (model.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx, `
		SELECT `+personColumns+`
		FROM users u
		WHERE u.id = $1
	`, userID))
	return p, mapErr(err)
}

func (s *Store) IsContact(ctx context.Context, ownerID, userID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = $1 AND contact_id = $2)
	`, ownerID, userID).Scan(&ok)
	return ok, err
}

func utc(t time.Time) time.Time { return t.UTC() }
