package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

type RoomStore struct {
	db *sql.DB
}

func NewRoomStore(db *sql.DB) *RoomStore {
	return &RoomStore{db: db}
}

func scanRoom(s scanner) (*model.Room, error) {
	var r model.Room
	err := s.Scan(&r.ID, &r.UnitID, &r.Number, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const roomCols = `id, unit_id, number, created_at, updated_at`

// Create adds a room to a unit. Room numbers are unique per unit; a clash
// returns ErrDuplicate.
func (s *RoomStore) Create(unitID int64, number string) (*model.Room, error) {
	result, err := s.db.Exec(`INSERT INTO rooms (unit_id, number) VALUES (?, ?)`, unitID, number)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert room %q: %w", number, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RoomStore) GetByID(id int64) (*model.Room, error) {
	row := s.db.QueryRow(`SELECT `+roomCols+` FROM rooms WHERE id = ?`, id)
	r, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

func (s *RoomStore) ListByUnit(unitID int64) ([]model.Room, error) {
	rows, err := s.db.Query(`SELECT `+roomCols+` FROM rooms WHERE unit_id = ? ORDER BY number ASC`, unitID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

func (s *RoomStore) Update(id int64, number string) (*model.Room, error) {
	_, err := s.db.Exec(
		`UPDATE rooms SET number = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		number, id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update room %q: %w", number, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	return s.GetByID(id)
}

func (s *RoomStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
