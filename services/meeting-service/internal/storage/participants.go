package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
)

func scanParticipant(row scanner, meetingID int64) (model.Participant, error) {
	var p model.Participant
	u, err := scanPerson(row, &p.Response, &p.ResponseTime, &p.Content)
	if err != nil {
		return model.Participant{}, err
	}
	p.MeetingID = meetingID
	p.User = u
	return p, nil
}

// ListParticipants includes the owner. Responders come first.
func (s *Store) ListParticipants(ctx context.Context, meetingID int64) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+personColumns+`, p.response, p.response_time, p.content
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.meeting_id = $1
		ORDER BY p.response DESC, p.response_time ASC NULLS LAST, u.username ASC
	`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows, meetingID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetParticipant(ctx context.Context, meetingID int64, userID string) (model.Participant, error) {
	p, err := scanParticipant(s.pool.QueryRow(ctx, `
		SELECT `+personColumns+`, p.response, p.response_time, p.content
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.meeting_id = $1 AND p.user_id = $2
	`, meetingID, userID), meetingID)
	return p, mapErr(err)
}

// AddParticipant returns ErrConflict when the user is already invited.
func (s *Store) AddParticipant(ctx context.Context, meetingID int64, userID string, evts []outbox.Event) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO participants (meeting_id, user_id)
			VALUES ($1, $2)
		`, meetingID, userID); err != nil {
			return mapErr(err)
		}
		return s.outbox.InsertAll(ctx, tx, evts)
	})
}

// RemoveParticipant also drops the user's TimeSlots for the meeting.
func (s *Store) RemoveParticipant(ctx context.Context, meetingID int64, userID string) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM participants WHERE meeting_id = $1 AND user_id = $2`, meetingID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM time_slots WHERE meeting_id = $1 AND user_id = $2`, meetingID, userID)
		return err
	})
}

func (s *Store) UpdateResponse(ctx context.Context, meetingID int64, userID string, response bool, content string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE participants
		SET response = $3, content = $4, response_time = $5
		WHERE meeting_id = $1 AND user_id = $2
	`, meetingID, userID, response, content, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
