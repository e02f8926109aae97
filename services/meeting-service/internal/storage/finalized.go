package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
)

// ListFinalized returns meetings the user owns or attends that end after from.
func (s *Store) ListFinalized(ctx context.Context, userID string, from time.Time) ([]model.FinalizedMeeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.title, f.time, f.time_limit,
			o.id::text, o.username, o.email, o.first_name, o.last_name,
			p.id::text, p.username, p.email, p.first_name, p.last_name
		FROM finalized_meetings f
		JOIN users o ON o.id = f.owner_id
		JOIN users p ON p.id = f.participant_id
		WHERE (f.owner_id = $1 OR f.participant_id = $1)
			AND f.time + make_interval(mins => f.time_limit) > $2
		ORDER BY f.time ASC, f.id ASC
	`, userID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.FinalizedMeeting{}
	for rows.Next() {
		var f model.FinalizedMeeting
		o, p := &f.Owner, &f.Participant
		if err := rows.Scan(&f.ID, &f.Title, &f.Time, &f.TimeLimit,
			&o.ID, &o.Username, &o.Email, &o.FirstName, &o.LastName,
			&p.ID, &p.Username, &p.Email, &p.FirstName, &p.LastName,
		); err != nil {
			return nil, err
		}
		f.Time = utc(f.Time)
		out = append(out, f)
	}
	return out, rows.Err()
}

const overlapsFinalized = `
	SELECT EXISTS (
		SELECT 1 FROM finalized_meetings
		WHERE (owner_id = ANY($1::uuid[]) OR participant_id = ANY($1::uuid[]))
			AND time < $3
			AND time + make_interval(mins => time_limit) > $2
	)`

// Finalize locks the pending meeting and the user rows of everyone being
// booked, rechecks that no window overlaps their finalized meetings, then
// inserts the finalized rows and events and deletes the pending meeting.
// A concurrent finalize of the same meeting sees ErrNotFound; one that
// would double-book a user sees ErrBusy.
func (s *Store) Finalize(ctx context.Context, meetingID int64, meetings []model.FinalizedMeeting, evts []outbox.Event) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM pending_meetings WHERE id = $1 FOR UPDATE`, meetingID).Scan(&id)
		if err != nil {
			return mapErr(err)
		}
		// Row locks in id order serialize finalizes that share a user.
		if _, err := tx.Exec(ctx, `
			SELECT id FROM users WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE
		`, bookedUsers(meetings)); err != nil {
			return err
		}
		for _, f := range meetings {
			win := f.Window()
			var busy bool
			pair := []string{f.Owner.ID, f.Participant.ID}
			if err := tx.QueryRow(ctx, overlapsFinalized, pair, win.Start, win.End).Scan(&busy); err != nil {
				return err
			}
			if busy {
				return ErrBusy
			}
		}
		return s.finishFinalize(ctx, tx, meetingID, meetings, evts)
	})
}

func (s *Store) finishFinalize(ctx context.Context, tx pgx.Tx, meetingID int64, meetings []model.FinalizedMeeting, evts []outbox.Event) error {
	batch := &pgx.Batch{}
	for _, f := range meetings {
		batch.Queue(`
			INSERT INTO finalized_meetings (title, time, time_limit, owner_id, participant_id)
			VALUES ($1, $2, $3, $4, $5)
		`, f.Title, f.Time, f.TimeLimit, f.Owner.ID, f.Participant.ID)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	if err := s.outbox.InsertAll(ctx, tx, evts); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM pending_meetings WHERE id = $1`, meetingID)
	return err
}

func bookedUsers(meetings []model.FinalizedMeeting) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, f := range meetings {
		for _, id := range []string{f.Owner.ID, f.Participant.ID} {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// DeletePastFinalized removes meetings that ended before cutoff.
func (s *Store) DeletePastFinalized(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM finalized_meetings
		WHERE time + make_interval(mins => time_limit) < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
