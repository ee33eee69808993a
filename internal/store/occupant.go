package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

type OccupantStore struct {
	db *sql.DB
}

func NewOccupantStore(db *sql.DB) *OccupantStore {
	return &OccupantStore{db: db}
}

func scanOccupant(s scanner) (*model.Occupant, error) {
	var o model.Occupant
	err := s.Scan(
		&o.ID, &o.TenantID, &o.Name, &o.ChoreDay, &o.CreatedAt, &o.UpdatedAt,
		&o.UserID, &o.UnitID,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

const occupantSelect = `SELECT o.id, o.tenant_id, o.name, o.chore_day, o.created_at, o.updated_at,
	t.user_id, r.unit_id
	FROM occupants o
	JOIN tenants t ON t.id = o.tenant_id
	JOIN rooms r ON r.id = t.room_id`

func (s *OccupantStore) list(query string, args ...any) ([]model.Occupant, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list occupants: %w", err)
	}
	defer rows.Close()

	var occupants []model.Occupant
	for rows.Next() {
		o, err := scanOccupant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occupant: %w", err)
		}
		occupants = append(occupants, *o)
	}
	return occupants, rows.Err()
}

func (s *OccupantStore) Create(tenantID int64, name string, choreDay int) (*model.Occupant, error) {
	result, err := s.db.Exec(
		`INSERT INTO occupants (tenant_id, name, chore_day) VALUES (?, ?, ?)`,
		tenantID, name, choreDay,
	)
	if err != nil {
		return nil, fmt.Errorf("insert occupant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *OccupantStore) GetByID(id int64) (*model.Occupant, error) {
	row := s.db.QueryRow(occupantSelect+` WHERE o.id = ?`, id)
	o, err := scanOccupant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get occupant: %w", err)
	}
	return o, nil
}

func (s *OccupantStore) ListByTenant(tenantID int64) ([]model.Occupant, error) {
	return s.list(occupantSelect+` WHERE o.tenant_id = ? ORDER BY o.chore_day ASC, o.name ASC`, tenantID)
}

func (s *OccupantStore) ListByUser(userID int64) ([]model.Occupant, error) {
	return s.list(occupantSelect+` WHERE t.user_id = ? AND t.active = 1 ORDER BY o.name ASC`, userID)
}

// ListActiveByUnit returns occupants of the unit's active tenancies.
func (s *OccupantStore) ListActiveByUnit(unitID int64) ([]model.Occupant, error) {
	return s.list(occupantSelect+` WHERE r.unit_id = ? AND t.active = 1 ORDER BY o.id ASC`, unitID)
}

// Update edits an occupant, including the default chore day.
func (s *OccupantStore) Update(id int64, name string, choreDay int) (*model.Occupant, error) {
	_, err := s.db.Exec(
		`UPDATE occupants SET name = ?, chore_day = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, choreDay, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update occupant: %w", err)
	}
	return s.GetByID(id)
}

func (s *OccupantStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM occupants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete occupant: %w", err)
	}
	return nil
}
