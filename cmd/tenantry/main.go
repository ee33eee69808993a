package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/config"
	"github.com/dukerupert/tenantry/internal/database"
	"github.com/dukerupert/tenantry/internal/email"
	"github.com/dukerupert/tenantry/internal/logging"
	"github.com/dukerupert/tenantry/internal/middleware"
	"github.com/dukerupert/tenantry/internal/push"
	"github.com/dukerupert/tenantry/internal/server"
	"github.com/dukerupert/tenantry/internal/storage"
	"github.com/dukerupert/tenantry/internal/store"
	"github.com/dukerupert/tenantry/internal/sweep"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("TENANTRY_VAPID_PUBLIC_KEY=%s\nTENANTRY_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(2)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AdminEmail != "" {
		if _, err := store.NewUserStore(db).EnsureAdmin(cfg.AdminEmail); err != nil {
			slog.Error("ensure admin", "email", cfg.AdminEmail, "error", err)
			os.Exit(1)
		}
	}

	files, err := storage.New(cfg.S3, cfg.UploadDir)
	if err != nil {
		slog.Error("open file storage", "error", err)
		os.Exit(1)
	}

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom, cfg.BaseURL)
	if !emailClient.Configured() {
		slog.Warn("postmark not configured, sign-in codes will not be delivered")
	}
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber, store.NewPushStore(db),
		push.WithLogger(logger.With("component", "push")))

	var limiter middleware.Limiter
	memLimiter := middleware.NewRateLimiter()
	limiter = memLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = middleware.NewRedisLimiter(rdb, "tenantry:ratelimit:", logger.With("component", "ratelimit"))
		slog.Info("rate limiting via redis", "addr", cfg.RedisAddr)
	}

	srv := server.New(db, server.Deps{
		Email:          emailClient,
		Push:           pushSvc,
		Files:          files,
		Limiter:        limiter,
		Impersonator:   auth.NewImpersonator(cfg.JWTSecret, time.Hour),
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Missed chores, expired swaps, stale sessions and codes
	sweeper := sweep.NewScheduler(srv.ChoreService(), srv.SessionStore(), srv.MagicLinkStore(), cfg.SweepInterval, logger.With("component", "sweep"))
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper.Start(sweepCtx)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				memLimiter.Cleanup()
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("tenantry starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	sweeper.Stop()
	sweepCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
