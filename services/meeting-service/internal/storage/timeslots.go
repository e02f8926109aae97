package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
)

func (s *Store) ListSlots(ctx context.Context, meetingID int64, userID string) ([]slots.TimeSlot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT start_time, priority
		FROM time_slots
		WHERE meeting_id = $1 AND user_id = $2
		ORDER BY start_time ASC
	`, meetingID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []slots.TimeSlot{}
	for rows.Next() {
		var ts slots.TimeSlot
		if err := rows.Scan(&ts.Start, &ts.Priority); err != nil {
			return nil, err
		}
		ts.Start = utc(ts.Start)
		out = append(out, ts)
	}
	return out, rows.Err()
}

// ListMeetingSlots groups all slots of a meeting by user id.
func (s *Store) ListMeetingSlots(ctx context.Context, meetingID int64) (map[string][]slots.TimeSlot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id::text, start_time, priority
		FROM time_slots
		WHERE meeting_id = $1
		ORDER BY user_id, start_time ASC
	`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]slots.TimeSlot{}
	for rows.Next() {
		var userID string
		var ts slots.TimeSlot
		if err := rows.Scan(&userID, &ts.Start, &ts.Priority); err != nil {
			return nil, err
		}
		ts.Start = utc(ts.Start)
		out[userID] = append(out[userID], ts)
	}
	return out, rows.Err()
}

// InsertSlot returns ErrConflict for a start the user already offered.
func (s *Store) InsertSlot(ctx context.Context, meetingID int64, userID string, ts slots.TimeSlot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO time_slots (meeting_id, user_id, start_time, priority)
		VALUES ($1, $2, $3, $4)
	`, meetingID, userID, ts.Start, int(ts.Priority))
	return mapErr(err)
}

// DeleteSlots removes the user's slots, or every slot of the meeting when
// userID is empty.
func (s *Store) DeleteSlots(ctx context.Context, meetingID int64, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM time_slots
		WHERE meeting_id = $1 AND ($2 = '' OR user_id::text = $2)
	`, meetingID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceSlots swaps the user's slots for ss in one transaction. With
// markResponded the participant row records a response at `at`.
func (s *Store) ReplaceSlots(ctx context.Context, meetingID int64, userID string, ss []slots.TimeSlot, markResponded bool, at time.Time) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM time_slots WHERE meeting_id = $1 AND user_id = $2`, meetingID, userID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, ts := range ss {
			batch.Queue(`
				INSERT INTO time_slots (meeting_id, user_id, start_time, priority)
				VALUES ($1, $2, $3, $4)
			`, meetingID, userID, ts.Start, int(ts.Priority))
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return mapErr(err)
			}
		}
		if !markResponded {
			return nil
		}
		tag, err := tx.Exec(ctx, `
			UPDATE participants SET response = true, response_time = $3
			WHERE meeting_id = $1 AND user_id = $2
		`, meetingID, userID, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
