package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

type UnitStore struct {
	db *sql.DB
}

func NewUnitStore(db *sql.DB) *UnitStore {
	return &UnitStore{db: db}
}

func scanUnit(s scanner) (*model.Unit, error) {
	var u model.Unit
	err := s.Scan(&u.ID, &u.Name, &u.Address, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const unitCols = `id, name, address, timezone, created_at, updated_at`

func (s *UnitStore) Create(name, address, timezone string) (*model.Unit, error) {
	result, err := s.db.Exec(
		`INSERT INTO units (name, address, timezone) VALUES (?, ?, ?)`,
		name, address, timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert unit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UnitStore) GetByID(id int64) (*model.Unit, error) {
	row := s.db.QueryRow(`SELECT `+unitCols+` FROM units WHERE id = ?`, id)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

func (s *UnitStore) List() ([]model.Unit, error) {
	rows, err := s.db.Query(`SELECT ` + unitCols + ` FROM units ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}

func (s *UnitStore) Update(id int64, name, address, timezone string) (*model.Unit, error) {
	_, err := s.db.Exec(
		`UPDATE units SET name = ?, address = ?, timezone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, address, timezone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update unit: %w", err)
	}
	return s.GetByID(id)
}

func (s *UnitStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM units WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	return nil
}
