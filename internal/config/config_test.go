package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the .env lookup at a file that does not exist unless the
// test writes it.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	t.Setenv("TENANTRY_ENV_FILE", path)
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "tenantry.db" || cfg.LogLevel != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("sweep interval = %s", cfg.SweepInterval)
	}
	if cfg.S3.Enabled() {
		t.Error("S3 should be disabled without credentials")
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("addr = %s", cfg.Addr())
	}
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("TENANTRY_PORT", "9090")
	t.Setenv("TENANTRY_ADMIN_EMAIL", " Owner@Example.com ")
	t.Setenv("TENANTRY_S3_BUCKET", "leases")
	t.Setenv("TENANTRY_S3_ACCESS_KEY", "ak")
	t.Setenv("TENANTRY_S3_SECRET_KEY", "sk")
	t.Setenv("TENANTRY_ALLOWED_ORIGINS", "app.example.com, admin.example.com,")
	t.Setenv("TENANTRY_SWEEP_INTERVAL", "30s")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %s", cfg.Port)
	}
	if cfg.AdminEmail != "owner@example.com" {
		t.Errorf("admin email = %q", cfg.AdminEmail)
	}
	if !cfg.S3.Enabled() {
		t.Error("S3 should be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "admin.example.com" {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("sweep interval = %s", cfg.SweepInterval)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("TENANTRY_PORT", "9090")
	t.Setenv("TENANTRY_DB_PATH", "env.db")

	cfg, err := Load([]string{"--port", "7070", "--db=/tmp/flag.db", "--log-level", "debug", "--base-url", "https://rent.example.com"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" || cfg.DBPath != "/tmp/flag.db" || cfg.LogLevel != "debug" || cfg.BaseURL != "https://rent.example.com" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestDotEnvFile(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("TENANTRY_JWT_SECRET=from-file\nTENANTRY_PORT=6060\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Real environment wins over the file.
	t.Setenv("TENANTRY_PORT", "9090")
	t.Cleanup(func() { os.Unsetenv("TENANTRY_JWT_SECRET") })

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-file" {
		t.Errorf("jwt secret = %q", cfg.JWTSecret)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %s, want environment value", cfg.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad port", nil, []string{"--port", "http"}},
		{"bad interval", map[string]string{"TENANTRY_SWEEP_INTERVAL": "often"}, nil},
		{"zero interval", nil, []string{"--sweep-interval", "0s"}},
		{"half vapid", map[string]string{"TENANTRY_VAPID_PUBLIC_KEY": "pub"}, nil},
		{"unknown flag", nil, []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}
