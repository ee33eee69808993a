package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

type TenantStore struct {
	db *sql.DB
}

func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

func scanTenant(s scanner) (*model.Tenant, error) {
	var t model.Tenant
	err := s.Scan(
		&t.ID, &t.UserID, &t.RoomID, &t.Active, &t.MoveInDate,
		&t.CreatedAt, &t.UpdatedAt, &t.UnitID, &t.Email, &t.Name,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const tenantSelect = `SELECT t.id, t.user_id, t.room_id, t.active, t.move_in_date, t.created_at, t.updated_at,
	r.unit_id, u.email, u.name
	FROM tenants t
	JOIN rooms r ON r.id = t.room_id
	JOIN users u ON u.id = t.user_id`

func (s *TenantStore) list(query string, args ...any) ([]model.Tenant, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// Create moves a user into a room. A room holds at most one active tenant;
// a second one returns ErrDuplicate.
func (s *TenantStore) Create(userID, roomID int64, moveInDate string) (*model.Tenant, error) {
	result, err := s.db.Exec(
		`INSERT INTO tenants (user_id, room_id, move_in_date) VALUES (?, ?, ?)`,
		userID, roomID, moveInDate,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert tenant: room %d occupied: %w", roomID, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TenantStore) GetByID(id int64) (*model.Tenant, error) {
	row := s.db.QueryRow(tenantSelect+` WHERE t.id = ?`, id)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// GetActiveByUser returns the user's current tenancy, or nil.
func (s *TenantStore) GetActiveByUser(userID int64) (*model.Tenant, error) {
	row := s.db.QueryRow(tenantSelect+` WHERE t.user_id = ? AND t.active = 1 ORDER BY t.id DESC LIMIT 1`, userID)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active tenant: %w", err)
	}
	return t, nil
}

func (s *TenantStore) List() ([]model.Tenant, error) {
	return s.list(tenantSelect + ` ORDER BY r.unit_id ASC, r.number ASC`)
}

func (s *TenantStore) ListByUnit(unitID int64) ([]model.Tenant, error) {
	return s.list(tenantSelect+` WHERE r.unit_id = ? ORDER BY r.number ASC`, unitID)
}

// MoveOut marks a tenancy inactive, freeing the room.
func (s *TenantStore) MoveOut(id int64) (*model.Tenant, error) {
	_, err := s.db.Exec(
		`UPDATE tenants SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("move out tenant: %w", err)
	}
	return s.GetByID(id)
}

// MoveRoom reassigns an active tenant to another room.
func (s *TenantStore) MoveRoom(id, roomID int64) (*model.Tenant, error) {
	_, err := s.db.Exec(
		`UPDATE tenants SET room_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		roomID, id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("move tenant: room %d occupied: %w", roomID, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("move tenant: %w", err)
	}
	return s.GetByID(id)
}

func (s *TenantStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return nil
}
