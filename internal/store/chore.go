package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

// ErrWrongUnit is returned when a batch names a row that belongs to another
// unit. Nothing in the batch is applied.
var ErrWrongUnit = errors.New("row belongs to another unit")

// ErrHasHistory is returned when deleting a row would erase finished
// completions.
var ErrHasHistory = errors.New("has completion history")

// ChoreStore holds the recurring chore definitions of each unit.
type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

const definitionCols = `id, unit_id, name, description, active, sort_order, created_at, updated_at`

// definitionOrder lists a unit's chores the way they are shown and rotated.
const definitionOrder = ` ORDER BY sort_order, name, id`

func scanDefinition(s scanner) (*model.ChoreDefinition, error) {
	var d model.ChoreDefinition
	if err := s.Scan(&d.ID, &d.UnitID, &d.Name, &d.Description, &d.Active, &d.SortOrder, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *ChoreStore) one(op, query string, args ...any) (*model.ChoreDefinition, error) {
	d, err := scanDefinition(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

func (s *ChoreStore) many(op, query string, args ...any) ([]model.ChoreDefinition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var defs []model.ChoreDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

func (s *ChoreStore) Create(unitID int64, name, description string, sortOrder int) (*model.ChoreDefinition, error) {
	return s.one("create chore",
		`INSERT INTO chore_definitions (unit_id, name, description, sort_order)
		 VALUES (?, ?, ?, ?) RETURNING `+definitionCols,
		unitID, name, description, sortOrder,
	)
}

func (s *ChoreStore) GetByID(id int64) (*model.ChoreDefinition, error) {
	return s.one("get chore", `SELECT `+definitionCols+` FROM chore_definitions WHERE id = ?`, id)
}

func (s *ChoreStore) ListByUnit(unitID int64) ([]model.ChoreDefinition, error) {
	return s.many("list chores",
		`SELECT `+definitionCols+` FROM chore_definitions WHERE unit_id = ?`+definitionOrder,
		unitID,
	)
}

// ListActiveByUnit returns the definitions that take part in schedule generation.
func (s *ChoreStore) ListActiveByUnit(unitID int64) ([]model.ChoreDefinition, error) {
	return s.many("list active chores",
		`SELECT `+definitionCols+` FROM chore_definitions WHERE unit_id = ? AND active = 1`+definitionOrder,
		unitID,
	)
}

// Update rewrites a definition and returns it, or nil if id is unknown.
func (s *ChoreStore) Update(id int64, name, description string, active bool, sortOrder int) (*model.ChoreDefinition, error) {
	return s.one("update chore",
		`UPDATE chore_definitions
		 SET name = ?, description = ?, active = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? RETURNING `+definitionCols,
		name, description, active, sortOrder, id,
	)
}

// Delete removes a definition together with its still-pending completions.
// A definition with finished completions is kept for the record and
// ErrHasHistory is returned; deactivate it instead. Delete reports false if
// id is unknown.
func (s *ChoreStore) Delete(id int64) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM chore_definitions WHERE id = ?
		 AND NOT EXISTS (SELECT 1 FROM chore_completions WHERE chore_definition_id = ? AND status <> 'pending')`,
		id, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete chore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	d, err := s.GetByID(id)
	if err != nil || d == nil {
		return false, err
	}
	return false, fmt.Errorf("delete chore %d: %w", id, ErrHasHistory)
}

// Reorder gives ids the sort positions 0, 1, 2... within unitID. Every id
// must belong to the unit or ErrWrongUnit is returned and nothing changes.
func (s *ChoreStore) Reorder(unitID int64, ids []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for pos, id := range ids {
		res, err := tx.Exec(
			`UPDATE chore_definitions SET sort_order = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND unit_id = ?`,
			pos, id, unitID,
		)
		if err != nil {
			return fmt.Errorf("reorder chore %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("reorder chore %d: %w", id, ErrWrongUnit)
		}
	}
	return tx.Commit()
}
