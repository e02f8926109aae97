package storage

import (
	"context"
	"time"
)

// Group is a named set of the owner's contacts.
type Group struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Members   []User    `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) ListGroups(ctx context.Context, ownerID string) ([]Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id::text, name, created_at
		FROM contact_groups
		WHERE owner_id = $1
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.CreatedAt = utc(g.CreatedAt)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Members, err = s.groupMembers(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetGroup only finds groups owned by ownerID.
func (s *Store) GetGroup(ctx context.Context, ownerID string, id int64) (Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id::text, name, created_at
		FROM contact_groups
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(&g.ID, &g.OwnerID, &g.Name, &g.CreatedAt)
	if err != nil {
		return Group{}, mapErr(err)
	}
	g.CreatedAt = utc(g.CreatedAt)
	g.Members, err = s.groupMembers(ctx, id)
	return g, err
}

func (s *Store) groupMembers(ctx context.Context, groupID int64) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.username
	`, groupID)
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

// CreateGroup returns ErrConflict when the owner already has a group named name.
func (s *Store) CreateGroup(ctx context.Context, ownerID, name string) (Group, error) {
	g := Group{OwnerID: ownerID, Name: name, Members: []User{}}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contact_groups (owner_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, ownerID, name).Scan(&g.ID, &g.CreatedAt)
	g.CreatedAt = utc(g.CreatedAt)
	return g, mapErr(err)
}

func (s *Store) RenameGroup(ctx context.Context, ownerID string, id int64, name string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contact_groups SET name = $3 WHERE id = $1 AND owner_id = $2
	`, id, ownerID, name)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, ownerID string, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM contact_groups WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember expects the caller to have checked group ownership and contact status.
func (s *Store) AddMember(ctx context.Context, groupID int64, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
	`, groupID, userID)
	return mapErr(err)
}

func (s *Store) RemoveMember(ctx context.Context, groupID int64, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
