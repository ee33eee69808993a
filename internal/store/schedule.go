package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tenantry/internal/model"
)

// ScheduleStore holds weekly chore schedules and their completion records.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// --- Schedule methods ---

func scanSchedule(s scanner) (*model.ChoreSchedule, error) {
	var sc model.ChoreSchedule
	err := s.Scan(&sc.ID, &sc.UnitID, &sc.WeekID, &sc.WeekStart, &sc.WeekEnd, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

const scheduleCols = `id, unit_id, week_id, week_start, week_end, created_at`

// Ensure inserts the (unit, week) schedule unless it already exists, then
// inserts any seeded completions that are missing. Existing completions are
// left untouched. The unique keys on both tables make concurrent calls safe.
func (s *ScheduleStore) Ensure(unitID int64, weekID string, start, end time.Time, seeds []model.CompletionSeed) (*model.ChoreSchedule, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO chore_schedules (unit_id, week_id, week_start, week_end) VALUES (?, ?, ?, ?)
		 ON CONFLICT(unit_id, week_id) DO NOTHING`,
		unitID, weekID, dbTime(start), dbTime(end),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}

	row := tx.QueryRow(`SELECT `+scheduleCols+` FROM chore_schedules WHERE unit_id = ? AND week_id = ?`, unitID, weekID)
	sched, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	if len(seeds) > 0 {
		stmt, err := tx.Prepare(
			`INSERT INTO chore_completions (schedule_id, chore_definition_id, occupant_id, assigned_occupant_id, due_date)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(schedule_id, chore_definition_id, occupant_id) DO NOTHING`,
		)
		if err != nil {
			return nil, fmt.Errorf("prepare completion insert: %w", err)
		}
		defer stmt.Close()

		for _, seed := range seeds {
			if _, err := stmt.Exec(sched.ID, seed.ChoreDefinitionID, seed.OccupantID, seed.OccupantID, seed.DueDate); err != nil {
				return nil, fmt.Errorf("insert completion: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit schedule: %w", err)
	}
	return sched, nil
}

func (s *ScheduleStore) GetByID(id int64) (*model.ChoreSchedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM chore_schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

func (s *ScheduleStore) GetByUnitWeek(unitID int64, weekID string) (*model.ChoreSchedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM chore_schedules WHERE unit_id = ? AND week_id = ?`, unitID, weekID)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule by week: %w", err)
	}
	return sc, nil
}

func (s *ScheduleStore) ListByUnit(unitID int64) ([]model.ChoreSchedule, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleCols+` FROM chore_schedules WHERE unit_id = ? ORDER BY week_start DESC`,
		unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.ChoreSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

// --- Completion methods ---

func scanCompletion(s scanner) (*model.ChoreCompletion, error) {
	var c model.ChoreCompletion
	var completedAt sql.NullTime
	var excusedBy sql.NullInt64

	err := s.Scan(
		&c.ID, &c.ScheduleID, &c.ChoreDefinitionID, &c.OccupantID, &c.AssignedOccupantID,
		&c.DueDate, &c.Status, &completedAt, &c.PhotoPath, &c.Notes, &excusedBy,
		&c.CreatedAt, &c.UpdatedAt, &c.ChoreName, &c.AssigneeName,
	)
	if err != nil {
		return nil, err
	}
	c.CompletedAt = timePtr(completedAt)
	c.ExcusedBy = int64Ptr(excusedBy)
	return &c, nil
}

const completionSelect = `SELECT c.id, c.schedule_id, c.chore_definition_id, c.occupant_id, c.assigned_occupant_id,
	c.due_date, c.status, c.completed_at, c.photo_path, c.notes, c.excused_by, c.created_at, c.updated_at,
	d.name, o.name
	FROM chore_completions c
	JOIN chore_definitions d ON d.id = c.chore_definition_id
	JOIN occupants o ON o.id = c.assigned_occupant_id`

func (s *ScheduleStore) GetCompletion(id int64) (*model.ChoreCompletion, error) {
	row := s.db.QueryRow(completionSelect+` WHERE c.id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *ScheduleStore) ListCompletions(scheduleID int64) ([]model.ChoreCompletion, error) {
	rows, err := s.db.Query(
		completionSelect+` WHERE c.schedule_id = ? ORDER BY c.due_date ASC, d.sort_order ASC, d.name ASC, c.id ASC`,
		scheduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.ChoreCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// CountPendingAssigned counts the pending completions an occupant currently
// holds in a schedule.
func (s *ScheduleStore) CountPendingAssigned(scheduleID, occupantID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_completions WHERE schedule_id = ? AND assigned_occupant_id = ? AND status = 'pending'`,
		scheduleID, occupantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending completions: %w", err)
	}
	return n, nil
}

// Complete moves a pending completion to completed. It reports false when
// the completion was no longer pending.
func (s *ScheduleStore) Complete(id int64, at time.Time, photoPath, notes string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_completions
		 SET status = 'completed', completed_at = ?, photo_path = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		dbTime(at), photoPath, notes, dbTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Excuse moves a pending completion to excused. It reports false when the
// completion was no longer pending.
func (s *ScheduleStore) Excuse(id, excusedBy int64, notes string, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_completions
		 SET status = 'excused', excused_by = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		excusedBy, notes, dbTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("excuse completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkMissed moves every pending completion of a week that ended at or
// before now to missed.
func (s *ScheduleStore) MarkMissed(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE chore_completions SET status = 'missed', updated_at = ?
		 WHERE status = 'pending'
		   AND schedule_id IN (SELECT id FROM chore_schedules WHERE week_end <= ?)`,
		dbTime(now), dbTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("mark missed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
