package store

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/tenantry/internal/model"
)

// CodeTTL is how long an issued sign-in code stays redeemable.
const CodeTTL = 15 * time.Minute

var (
	// ErrCodeExpired means no pending code exists for the address.
	ErrCodeExpired = errors.New("code expired or already used")
	// ErrCodeIncorrect means the code did not match and attempts remain.
	ErrCodeIncorrect = errors.New("incorrect code")
	// ErrCodeLocked means the attempt limit was reached and the code is burnt.
	ErrCodeLocked = errors.New("too many attempts")
)

// MagicLinkStore issues and redeems one-time sign-in codes.
type MagicLinkStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewMagicLinkStore(db *sql.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db, now: time.Now}
}

const magicLinkCols = `id, email, code_hash, expires_at, used_at, attempts, created_at`

func scanMagicLink(s scanner) (*model.MagicLink, error) {
	var ml model.MagicLink
	var usedAt sql.NullTime
	if err := s.Scan(&ml.ID, &ml.Email, &ml.CodeHash, &ml.ExpiresAt, &usedAt, &ml.Attempts, &ml.CreatedAt); err != nil {
		return nil, err
	}
	ml.UsedAt = timePtr(usedAt)
	return &ml, nil
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}

// Issue burns any pending code for email and stores a fresh one. The clear
// code is returned for delivery and never persisted.
func (s *MagicLinkStore) Issue(email string) (*model.MagicLink, string, error) {
	code, err := newCode()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash code: %w", err)
	}

	now := dbTime(s.now())
	tx, err := s.db.Begin()
	if err != nil {
		return nil, "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE magic_links SET used_at = ? WHERE email = ? AND used_at IS NULL`,
		now, email,
	); err != nil {
		return nil, "", fmt.Errorf("burn pending codes: %w", err)
	}
	ml, err := scanMagicLink(tx.QueryRow(
		`INSERT INTO magic_links (email, code_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?) RETURNING `+magicLinkCols,
		email, string(hash), now.Add(CodeTTL), now,
	))
	if err != nil {
		return nil, "", fmt.Errorf("insert code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit: %w", err)
	}
	return ml, code, nil
}

// Pending returns the newest unexpired, unused code for email, or nil.
func (s *MagicLinkStore) Pending(email string) (*model.MagicLink, error) {
	ml, err := scanMagicLink(s.db.QueryRow(
		`SELECT `+magicLinkCols+` FROM magic_links
		 WHERE email = ? AND used_at IS NULL AND expires_at > ?
		 ORDER BY id DESC LIMIT 1`,
		email, dbTime(s.now()),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending code: %w", err)
	}
	return ml, nil
}

// Redeem checks code against the pending code for email and consumes it on a
// match. A miss counts as an attempt; reaching maxAttempts burns the code.
// Only one of several concurrent redemptions of the same code succeeds.
func (s *MagicLinkStore) Redeem(email, code string, maxAttempts int) (*model.MagicLink, error) {
	ml, err := s.Pending(email)
	if err != nil {
		return nil, err
	}
	if ml == nil {
		return nil, ErrCodeExpired
	}
	if ml.Attempts >= maxAttempts {
		if _, err := s.burn(ml.ID); err != nil {
			return nil, err
		}
		return nil, ErrCodeLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(ml.CodeHash), []byte(code)) != nil {
		var attempts int
		err := s.db.QueryRow(
			`UPDATE magic_links SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
			ml.ID,
		).Scan(&attempts)
		if err != nil {
			return nil, fmt.Errorf("count attempt: %w", err)
		}
		if attempts < maxAttempts {
			return nil, ErrCodeIncorrect
		}
		if _, err := s.burn(ml.ID); err != nil {
			return nil, err
		}
		return nil, ErrCodeLocked
	}

	ok, err := s.burn(ml.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCodeExpired
	}
	return ml, nil
}

// burn marks a code used and reports whether this call was the one to do it.
func (s *MagicLinkStore) burn(id int64) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE magic_links SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		dbTime(s.now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("burn code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes codes past their expiry, used or not.
func (s *MagicLinkStore) DeleteExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM magic_links WHERE expires_at <= ?`, dbTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return res.RowsAffected()
}
