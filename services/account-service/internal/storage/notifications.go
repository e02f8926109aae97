package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/notify"
)

type Notification struct {
	ID         int64     `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	ShowTime   time.Time `json:"show_time"`
	ExpireTime time.Time `json:"expire_time"`
	IsSeen     bool      `json:"is_seen"`
}

// ListActiveNotifications purges the owner's expired, seen notifications and
// returns the ones visible at now without their content.
func (s *Store) ListActiveNotifications(ctx context.Context, ownerID string, now time.Time) ([]Notification, error) {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE owner_id = $1 AND is_seen AND expire_time <= $2
	`, ownerID, now); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id::text, title, show_time, expire_time, is_seen
		FROM notifications
		WHERE owner_id = $1 AND show_time <= $2 AND expire_time > $2
		ORDER BY expire_time ASC, id ASC
	`, ownerID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.ShowTime, &n.ExpireTime, &n.IsSeen); err != nil {
			return nil, err
		}
		n.ShowTime, n.ExpireTime = utc(n.ShowTime), utc(n.ExpireTime)
		out = append(out, n)
	}
	return out, rows.Err()
}

// OpenNotification returns the full notification and marks it seen.
func (s *Store) OpenNotification(ctx context.Context, ownerID string, id int64) (Notification, error) {
	var n Notification
	err := s.pool.QueryRow(ctx, `
		UPDATE notifications
		SET is_seen = true
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id::text, title, content, show_time, expire_time, is_seen
	`, id, ownerID).Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.ShowTime, &n.ExpireTime, &n.IsSeen)
	if err != nil {
		return Notification{}, mapErr(err)
	}
	n.ShowTime, n.ExpireTime = utc(n.ShowTime), utc(n.ExpireTime)
	return n, nil
}

func (s *Store) DeleteNotification(ctx context.Context, ownerID string, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllSeen only touches notifications that are currently visible.
func (s *Store) MarkAllSeen(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET is_seen = true
		WHERE owner_id = $1 AND NOT is_seen AND show_time <= $2
	`, ownerID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteRead(ctx context.Context, ownerID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE owner_id = $1 AND is_seen`, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Deliver stores recs for a consumed event exactly once. It reports false
// when eventID was already processed.
func (s *Store) Deliver(ctx context.Context, eventID, eventType string, recs []notify.Record) (bool, error) {
	fresh := false
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		ok, err := s.inbox.Record(ctx, tx, eventID, eventType)
		if err != nil || !ok {
			return err
		}
		fresh = true
		if len(recs) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, r := range recs {
			batch.Queue(`
				INSERT INTO notifications (owner_id, title, content, show_time, expire_time)
				VALUES ($1, $2, $3, $4, $5)
			`, r.OwnerID, r.Title, r.Content, r.ShowTime, r.ExpireTime)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return false, err
	}
	return fresh, nil
}
