package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ListContacts(ctx context.Context, ownerID string) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM contacts c
		JOIN users u ON u.id = c.contact_id
		WHERE c.owner_id = $1
		ORDER BY u.username
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddContact returns ErrConflict for an existing contact.
func (s *Store) AddContact(ctx context.Context, ownerID, contactID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contacts (owner_id, contact_id)
		VALUES ($1, $2)
	`, ownerID, contactID)
	return mapErr(err)
}

// RemoveContact also drops the user from every group of the owner.
func (s *Store) RemoveContact(ctx context.Context, ownerID, contactID string) error {
	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM contacts WHERE owner_id = $1 AND contact_id = $2`, ownerID, contactID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM group_members gm
			USING contact_groups g
			WHERE gm.group_id = g.id AND g.owner_id = $1 AND gm.user_id = $2
		`, ownerID, contactID)
		return err
	})
}

func (s *Store) IsContact(ctx context.Context, ownerID, contactID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = $1 AND contact_id = $2)
	`, ownerID, contactID).Scan(&ok)
	return ok, err
}
