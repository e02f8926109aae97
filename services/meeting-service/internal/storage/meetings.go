package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/outbox"
)

const meetingColumns = `m.id, m.owner_id::text, m.title, m.deadline, m.time_limit, m.message, m.created_at`

func scanMeeting(row scanner, extra ...any) (model.PendingMeeting, error) {
	var m model.PendingMeeting
	dest := append([]any{&m.ID, &m.OwnerID, &m.Title, &m.Deadline, &m.TimeLimit, &m.Message, &m.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.PendingMeeting{}, err
	}
	m.Deadline = utc(m.Deadline)
	return m, nil
}

// CreateMeeting inserts m and registers its owner as a participant.
func (s *Store) CreateMeeting(ctx context.Context, m *model.PendingMeeting) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO pending_meetings (owner_id, title, deadline, time_limit, message)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, m.OwnerID, m.Title, m.Deadline, m.TimeLimit, m.Message).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return mapErr(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO participants (meeting_id, user_id)
			VALUES ($1, $2)
		`, m.ID, m.OwnerID)
		return mapErr(err)
	})
}

func (s *Store) GetMeeting(ctx context.Context, id int64) (model.PendingMeeting, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx, `
		SELECT `+meetingColumns+`
		FROM pending_meetings m
		WHERE m.id = $1
	`, id))
	return m, mapErr(err)
}

func (s *Store) ListOwnedMeetings(ctx context.Context, ownerID string) ([]model.PendingMeeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+meetingColumns+`
		FROM pending_meetings m
		WHERE m.owner_id = $1
		ORDER BY m.deadline ASC, m.id ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PendingMeeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Invitation is a pending meeting seen from an invitee.
type Invitation struct {
	Meeting      model.PendingMeeting `json:"meeting"`
	Owner        model.Person         `json:"owner"`
	Response     bool                 `json:"response"`
	ResponseTime *time.Time           `json:"response_time,omitempty"`
	Content      string               `json:"content"`
}

func (s *Store) ListInvitedMeetings(ctx context.Context, userID string) ([]Invitation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+meetingColumns+`, `+personColumns+`, p.response, p.response_time, p.content
		FROM participants p
		JOIN pending_meetings m ON m.id = p.meeting_id
		JOIN users u ON u.id = m.owner_id
		WHERE p.user_id = $1 AND m.owner_id <> $1
		ORDER BY m.deadline ASC, m.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Invitation{}
	for rows.Next() {
		var inv Invitation
		o := &inv.Owner
		inv.Meeting, err = scanMeeting(rows, &o.ID, &o.Username, &o.Email, &o.FirstName, &o.LastName, &inv.Response, &inv.ResponseTime, &inv.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpdateMeeting saves the editable fields. When resetSlots is set every
// TimeSlot of the meeting is dropped, since offered times no longer apply.
func (s *Store) UpdateMeeting(ctx context.Context, m model.PendingMeeting, resetSlots bool, evts []outbox.Event) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE pending_meetings
			SET title = $2, deadline = $3, time_limit = $4, message = $5
			WHERE id = $1
		`, m.ID, m.Title, m.Deadline, m.TimeLimit, m.Message)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if resetSlots {
			if _, err := tx.Exec(ctx, `DELETE FROM time_slots WHERE meeting_id = $1`, m.ID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				UPDATE participants SET response = false, response_time = NULL
				WHERE meeting_id = $1
			`, m.ID); err != nil {
				return err
			}
		}
		return s.outbox.InsertAll(ctx, tx, evts)
	})
}

func (s *Store) DeleteMeeting(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_meetings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
