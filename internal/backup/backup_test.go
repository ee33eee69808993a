package backup

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/storage"
	"github.com/dukerupert/tenantry/internal/store"
)

func setupSource(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "live.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := store.NewUnitStore(db).Create("Maple House", "12 Maple St", "America/Toronto"); err != nil {
		t.Fatalf("create unit: %v", err)
	}
	return db
}

func TestKey(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 30, 15, 0, time.FixedZone("EST", -5*3600))
	if got, want := Key(at), "backups/tenantry-2024-03-04T143015Z.db.enc"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	db := setupSource(t)
	files, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	key, err := Snapshot(ctx, db, files, "hunter2", now)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if key != Key(now) {
		t.Errorf("key = %q, want %q", key, Key(now))
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := Restore(ctx, files, key, "hunter2", dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()

	var name string
	if err := restored.QueryRow(`SELECT name FROM units`).Scan(&name); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if name != "Maple House" {
		t.Errorf("restored unit = %q, want Maple House", name)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	db := setupSource(t)
	files, _ := storage.NewDiskStore(t.TempDir())

	key, err := Snapshot(ctx, db, files, "right", time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	err = Restore(ctx, files, key, "wrong", filepath.Join(t.TempDir(), "out.db"))
	if !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	files, _ := storage.NewDiskStore(t.TempDir())
	err := Restore(context.Background(), files, "backups/nope.db.enc", "pw", filepath.Join(t.TempDir(), "out.db"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want storage.ErrNotFound", err)
	}
}

func TestSnapshotRequiresPassphrase(t *testing.T) {
	db := setupSource(t)
	files, _ := storage.NewDiskStore(t.TempDir())
	if _, err := Snapshot(context.Background(), db, files, "", time.Now()); err == nil {
		t.Error("expected error without passphrase")
	}
}
