package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

type LeaseStore struct {
	db *sql.DB
}

func NewLeaseStore(db *sql.DB) *LeaseStore {
	return &LeaseStore{db: db}
}

const leaseCols = `id, tenant_id, version, document_key, file_name, content_type, start_date, end_date, uploaded_by, created_at`

func scanLease(s scanner) (*model.Lease, error) {
	var l model.Lease
	var uploadedBy sql.NullInt64
	err := s.Scan(&l.ID, &l.TenantID, &l.Version, &l.DocumentKey, &l.FileName, &l.ContentType,
		&l.StartDate, &l.EndDate, &uploadedBy, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.UploadedBy = int64Ptr(uploadedBy)
	return &l, nil
}

// Create stores a new lease version for the tenant. Versions start at 1 and
// increase by one per upload; earlier versions are kept.
func (s *LeaseStore) Create(l model.Lease) (*model.Lease, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRow(`SELECT COALESCE(MAX(version), 0) + 1 FROM leases WHERE tenant_id = ?`, l.TenantID).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("next lease version: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO leases (tenant_id, version, document_key, file_name, content_type, start_date, end_date, uploaded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.TenantID, version, l.DocumentKey, l.FileName, l.ContentType, l.StartDate, l.EndDate, nullInt64(l.UploadedBy),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert lease version %d: %w", version, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert lease: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	created, err := scanLease(tx.QueryRow(`SELECT `+leaseCols+` FROM leases WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get lease: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *LeaseStore) GetByID(id int64) (*model.Lease, error) {
	row := s.db.QueryRow(`SELECT `+leaseCols+` FROM leases WHERE id = ?`, id)
	l, err := scanLease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lease: %w", err)
	}
	return l, nil
}

// ListByTenant returns every lease version for a tenant, newest first.
func (s *LeaseStore) ListByTenant(tenantID int64) ([]model.Lease, error) {
	rows, err := s.db.Query(
		`SELECT `+leaseCols+` FROM leases WHERE tenant_id = ? ORDER BY version DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()

	var leases []model.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		leases = append(leases, *l)
	}
	return leases, rows.Err()
}
