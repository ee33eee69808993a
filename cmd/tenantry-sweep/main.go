// Command tenantry-sweep runs one sweep pass and exits, for hosts that
// prefer cron to the server's built-in ticker.
package main

import (
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dukerupert/tenantry/internal/chore"
	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/logging"
	"github.com/dukerupert/tenantry/internal/store"
	"github.com/dukerupert/tenantry/internal/sweep"
)

func main() {
	dbPath := pflag.String("db", envOr("TENANTRY_DB_PATH", "tenantry.db"), "path to the SQLite database")
	level := pflag.String("log-level", envOr("TENANTRY_LOG_LEVEL", "info"), "debug, info, warn or error")
	at := pflag.String("at", "", "sweep as of this RFC 3339 time instead of now")
	pflag.Parse()

	logger := logging.Setup(*level, "text")

	now := time.Now()
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			logger.Error("parse --at", "error", err)
			os.Exit(2)
		}
		now = t
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := chore.NewService(db, chore.WithLogger(logger.With("component", "chore")))
	s := sweep.NewScheduler(svc, store.NewSessionStore(db), store.NewMagicLinkStore(db), sweep.DefaultInterval, logger)

	res, err := s.RunOnce(now)
	logger.Info("sweep finished",
		"missed", res.Missed,
		"expired_swaps", res.Expired,
		"sessions", res.Sessions,
		"codes", res.Codes,
	)
	if err != nil {
		logger.Error("sweep failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
