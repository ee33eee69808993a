// Package backup writes passphrase-encrypted SQLite snapshots to object
// storage and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukerupert/tenantry/internal/storage"
)

const (
	keyPrefix   = "backups/"
	contentType = "application/octet-stream"
)

// Key returns the object key of a snapshot taken at t.
func Key(t time.Time) string {
	return keyPrefix + "tenantry-" + t.UTC().Format("2006-01-02T150405Z") + ".db.enc"
}

// Snapshot copies the live database with VACUUM INTO, encrypts the copy and
// stores it. It returns the object key.
func Snapshot(ctx context.Context, db *sql.DB, files storage.Store, passphrase string, now time.Time) (string, error) {
	if passphrase == "" {
		return "", errors.New("backup passphrase is required")
	}

	tmpDir, err := os.MkdirTemp("", "tenantry-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	copyPath := filepath.Join(tmpDir, "snapshot.db")
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, copyPath); err != nil {
		return "", fmt.Errorf("vacuum into: %w", err)
	}
	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Seal(plaintext, passphrase)
	if err != nil {
		return "", err
	}

	key := Key(now)
	if err := files.Put(ctx, key, bytes.NewReader(sealed), int64(len(sealed)), contentType); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return key, nil
}

// Restore fetches and decrypts a snapshot, checks its integrity and writes
// it to dst. dst must not be the path of an open database.
func Restore(ctx context.Context, files storage.Store, key, passphrase, dst string) error {
	body, err := files.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get snapshot: %w", err)
	}
	sealed, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Unseal(sealed, passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")
	return nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
