package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/tenantry/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, email, name, role, created_at, updated_at`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// one runs a single-row query and maps no rows to (nil, nil).
func (s *UserStore) one(op, query string, args ...any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *UserStore) Create(email, name, role string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(
		`INSERT INTO users (email, name, role) VALUES (?, ?, ?) RETURNING `+userCols,
		email, name, role,
	))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create user %q: %w", email, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	return s.one("get user", `SELECT `+userCols+` FROM users WHERE id = ?`, id)
}

// GetByEmail matches case-insensitively.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	return s.one("get user by email", `SELECT `+userCols+` FROM users WHERE email = ?`, email)
}

func (s *UserStore) ListAdmins() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT `+userCols+` FROM users WHERE role = ? ORDER BY id`, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, *u)
	}
	return admins, rows.Err()
}

// UpdateName sets the display name shown to housemates and in emails. It
// returns nil for an unknown id.
func (s *UserStore) UpdateName(id int64, name string) (*model.User, error) {
	return s.one("update user name",
		`UPDATE users SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? RETURNING `+userCols,
		name, id,
	)
}

// EnsureAdmin creates the user as an admin or promotes an existing one. A
// user with an active tenancy is left alone and ErrHasTenancy is returned.
func (s *UserStore) EnsureAdmin(email string) (*model.User, error) {
	u, err := s.one("ensure admin",
		`INSERT INTO users (email, role) VALUES (?, 'admin')
		 ON CONFLICT(email) DO UPDATE SET role = 'admin', updated_at = CURRENT_TIMESTAMP
		 WHERE NOT EXISTS (SELECT 1 FROM tenants WHERE tenants.user_id = users.id AND tenants.active = 1)
		 RETURNING `+userCols,
		email,
	)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("ensure admin %q: %w", email, ErrHasTenancy)
	}
	return u, nil
}
