// Command tenantry-backup writes an encrypted snapshot of the database to
// the configured file storage, or restores one.
//
//	tenantry-backup                      # snapshot now
//	tenantry-backup --restore KEY --out restored.db
//
// The passphrase is read from TENANTRY_BACKUP_PASSPHRASE.
package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dukerupert/tenantry/internal/backup"
	"github.com/dukerupert/tenantry/internal/config"
	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/logging"
	"github.com/dukerupert/tenantry/internal/storage"
)

func main() {
	restoreKey := pflag.String("restore", "", "object key of the snapshot to restore")
	out := pflag.String("out", "", "where to write the restored database")
	pflag.Parse()

	cfg, err := config.Load(nil)
	logger := logging.Setup("info", "text")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}
	logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)

	passphrase := os.Getenv("TENANTRY_BACKUP_PASSPHRASE")
	if passphrase == "" {
		logger.Error("TENANTRY_BACKUP_PASSPHRASE is not set")
		os.Exit(2)
	}

	files, err := storage.New(cfg.S3, cfg.UploadDir)
	if err != nil {
		logger.Error("open file storage", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *restoreKey != "" {
		if *out == "" {
			logger.Error("--out is required with --restore")
			os.Exit(2)
		}
		if err := backup.Restore(ctx, files, *restoreKey, passphrase, *out); err != nil {
			logger.Error("restore failed", "key", *restoreKey, "error", err)
			os.Exit(1)
		}
		logger.Info("restore complete", "key", *restoreKey, "path", *out)
		return
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	key, err := backup.Snapshot(ctx, db, files, passphrase, time.Now())
	if err != nil {
		logger.Error("snapshot failed", "error", err)
		os.Exit(1)
	}
	logger.Info("snapshot stored", "key", key)
}
