package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tenantry/internal/model"
)

type RequestStore struct {
	db *sql.DB
}

func NewRequestStore(db *sql.DB) *RequestStore {
	return &RequestStore{db: db}
}

const requestCols = `id, tenant_id, kind, title, description, about_occupant_id, status, admin_notes, resolved_at, created_at, updated_at`

func scanRequest(s scanner) (*model.Request, error) {
	var r model.Request
	var about sql.NullInt64
	var resolvedAt sql.NullTime
	err := s.Scan(&r.ID, &r.TenantID, &r.Kind, &r.Title, &r.Description, &about,
		&r.Status, &r.AdminNotes, &resolvedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.AboutOccupantID = int64Ptr(about)
	r.ResolvedAt = timePtr(resolvedAt)
	return &r, nil
}

func (s *RequestStore) Create(tenantID int64, kind, title, description string, aboutOccupantID *int64) (*model.Request, error) {
	result, err := s.db.Exec(
		`INSERT INTO requests (tenant_id, kind, title, description, about_occupant_id) VALUES (?, ?, ?, ?, ?)`,
		tenantID, kind, title, description, nullInt64(aboutOccupantID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RequestStore) GetByID(id int64) (*model.Request, error) {
	row := s.db.QueryRow(`SELECT `+requestCols+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (s *RequestStore) ListByTenant(tenantID int64) ([]model.Request, error) {
	return s.list(`SELECT `+requestCols+` FROM requests WHERE tenant_id = ? ORDER BY created_at DESC, id DESC`, tenantID)
}

// List returns all requests, optionally filtered by status.
func (s *RequestStore) List(status string) ([]model.Request, error) {
	if status == "" {
		return s.list(`SELECT ` + requestCols + ` FROM requests ORDER BY created_at DESC, id DESC`)
	}
	return s.list(`SELECT `+requestCols+` FROM requests WHERE status = ? ORDER BY created_at DESC, id DESC`, status)
}

func (s *RequestStore) list(query string, args ...any) ([]model.Request, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// Review moves an open or approved request to status. resolved_at is set
// once the request reaches a final state. Reports false if the request was
// already final.
func (s *RequestStore) Review(id int64, status, notes string, at time.Time) (bool, error) {
	var resolvedAt any
	if status == model.RequestDenied || status == model.RequestResolved {
		resolvedAt = dbTime(at)
	}
	result, err := s.db.Exec(
		`UPDATE requests SET status = ?, admin_notes = ?, resolved_at = COALESCE(?, resolved_at),
		   updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN ('open', 'approved')`,
		status, notes, resolvedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("review request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
