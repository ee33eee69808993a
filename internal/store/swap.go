package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/tenantry/internal/model"
)

type SwapStore struct {
	db *sql.DB
}

func NewSwapStore(db *sql.DB) *SwapStore {
	return &SwapStore{db: db}
}

func scanSwap(s scanner) (*model.SwapRequest, error) {
	var sw model.SwapRequest
	var respondedAt, resolvedAt sql.NullTime
	err := s.Scan(
		&sw.ID, &sw.ScheduleID, &sw.RequesterID, &sw.TargetID, &sw.Reason, &sw.Status,
		&respondedAt, &resolvedAt, &sw.CreatedAt, &sw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sw.RespondedAt = timePtr(respondedAt)
	sw.ResolvedAt = timePtr(resolvedAt)
	return &sw, nil
}

const swapCols = `id, schedule_id, requester_id, target_id, reason, status, responded_at, resolved_at, created_at, updated_at`

func (s *SwapStore) list(query string, args ...any) ([]model.SwapRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	var swaps []model.SwapRequest
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		swaps = append(swaps, *sw)
	}
	return swaps, rows.Err()
}

// Create opens a pending swap. Only one pending swap may exist per pair of
// occupants per schedule; another returns ErrDuplicate.
func (s *SwapStore) Create(scheduleID, requesterID, targetID int64, reason string) (*model.SwapRequest, error) {
	result, err := s.db.Exec(
		`INSERT INTO swap_requests (schedule_id, requester_id, target_id, reason) VALUES (?, ?, ?, ?)`,
		scheduleID, requesterID, targetID, reason,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert swap: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert swap: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SwapStore) GetByID(id int64) (*model.SwapRequest, error) {
	row := s.db.QueryRow(`SELECT `+swapCols+` FROM swap_requests WHERE id = ?`, id)
	sw, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap: %w", err)
	}
	return sw, nil
}

// HasPending reports whether a pending swap exists between a and b, in
// either direction, for the schedule.
func (s *SwapStore) HasPending(scheduleID, a, b int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM swap_requests
		 WHERE schedule_id = ? AND status = 'pending'
		   AND ((requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?))`,
		scheduleID, a, b, b, a,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check pending swap: %w", err)
	}
	return n > 0, nil
}

func (s *SwapStore) ListBySchedule(scheduleID int64) ([]model.SwapRequest, error) {
	return s.list(`SELECT `+swapCols+` FROM swap_requests WHERE schedule_id = ? ORDER BY created_at DESC, id DESC`, scheduleID)
}

// ListByOccupants returns swaps where any of the occupants is requester or target.
func (s *SwapStore) ListByOccupants(occupantIDs []int64) ([]model.SwapRequest, error) {
	if len(occupantIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(occupantIDs)), ",")
	args := make([]any, 0, len(occupantIDs)*2)
	for _, id := range occupantIDs {
		args = append(args, id)
	}
	for _, id := range occupantIDs {
		args = append(args, id)
	}
	return s.list(
		`SELECT `+swapCols+` FROM swap_requests
		 WHERE requester_id IN (`+placeholders+`) OR target_id IN (`+placeholders+`)
		 ORDER BY created_at DESC, id DESC`,
		args...,
	)
}

func (s *SwapStore) ListByUnit(unitID int64) ([]model.SwapRequest, error) {
	return s.list(
		`SELECT `+swapCols+` FROM swap_requests
		 WHERE schedule_id IN (SELECT id FROM chore_schedules WHERE unit_id = ?)
		 ORDER BY created_at DESC, id DESC`,
		unitID,
	)
}

// Approve resolves a pending swap as approved and, in the same transaction,
// exchanges the current owner of the requester's and target's pending
// completions in the swap's schedule. Occupants' default chore days are not
// touched. It reports false when the swap was no longer pending or its week
// had ended by at.
func (s *SwapStore) Approve(id int64, at time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := dbTime(at)
	result, err := tx.Exec(
		`UPDATE swap_requests SET status = 'approved', responded_at = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'
		   AND schedule_id IN (SELECT id FROM chore_schedules WHERE week_end > ?)`,
		now, now, now, id, now,
	)
	if err != nil {
		return false, fmt.Errorf("approve swap: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return false, nil
	}

	var scheduleID, requesterID, targetID int64
	err = tx.QueryRow(
		`SELECT schedule_id, requester_id, target_id FROM swap_requests WHERE id = ?`, id,
	).Scan(&scheduleID, &requesterID, &targetID)
	if err != nil {
		return false, fmt.Errorf("read swap: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE chore_completions
		 SET assigned_occupant_id = CASE assigned_occupant_id WHEN ? THEN ? ELSE ? END, updated_at = ?
		 WHERE schedule_id = ? AND status = 'pending' AND assigned_occupant_id IN (?, ?)`,
		requesterID, targetID, requesterID, now,
		scheduleID, requesterID, targetID,
	)
	if err != nil {
		return false, fmt.Errorf("exchange completions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit approval: %w", err)
	}
	return true, nil
}

// Resolve moves a pending swap to a terminal status other than approved.
// It reports false when the swap was no longer pending.
func (s *SwapStore) Resolve(id int64, status string, at time.Time) (bool, error) {
	now := dbTime(at)
	var respondedAt any
	if status == model.SwapRejected {
		respondedAt = now
	}
	result, err := s.db.Exec(
		`UPDATE swap_requests SET status = ?, responded_at = COALESCE(?, responded_at), resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		status, respondedAt, now, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("resolve swap: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ExpireEnded expires every pending swap whose schedule's week ended at or
// before now.
func (s *SwapStore) ExpireEnded(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE swap_requests SET status = 'expired', resolved_at = ?, updated_at = ?
		 WHERE status = 'pending'
		   AND schedule_id IN (SELECT id FROM chore_schedules WHERE week_end <= ?)`,
		dbTime(now), dbTime(now), dbTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire swaps: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
