package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myphonelist/backend/internal/storage"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"DATABASE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "HTTP_ADDR", "FRONTEND_URL",
		"INBOX_DIR", "EXPORT_STORAGE", "EXPORT_DIR", "EXPORT_URL_PREFIX", "LOG_LEVEL", "LOG_FORMAT",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_PATH_STYLE",
	} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.DSN() != "phonelist.db" {
		t.Errorf("expected default sqlite path, got %q", cfg.DSN())
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.InboxDir != "" {
		t.Errorf("expected inbox disabled by default, got %q", cfg.InboxDir)
	}
	if cfg.ExportStorage != "local" || cfg.ExportDir != "exports" {
		t.Errorf("unexpected export defaults: %q %q", cfg.ExportStorage, cfg.ExportDir)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format, got %q", cfg.LogFormat)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("INBOX_DIR", "/var/inbox")
	t.Setenv("EXPORT_STORAGE", "s3")

	cfg := FromEnv()
	if cfg.DSN() != "postgres://u:p@db:5432/x" {
		t.Errorf("unexpected dsn %q", cfg.DSN())
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.InboxDir != "/var/inbox" || cfg.ExportStorage != "s3" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestDSN_PostgresDefault(t *testing.T) {
	cfg := &Config{DatabaseDriver: "postgres"}
	if cfg.DSN() == "" {
		t.Error("expected a default postgres dsn")
	}
	cfg = &Config{DatabaseDriver: "memory", SQLitePath: "x.db"}
	if cfg.DSN() != "" {
		t.Errorf("memory driver takes no dsn, got %q", cfg.DSN())
	}
}

func TestStorage_S3Settings(t *testing.T) {
	t.Setenv("EXPORT_STORAGE", "s3")
	t.Setenv("S3_BUCKET", "phonelist-backups")
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("S3_PATH_STYLE", "TRUE")
	t.Setenv("EXPORT_DIR", "")
	t.Setenv("EXPORT_URL_PREFIX", "")

	want := storage.Options{
		Driver:   "s3",
		LocalDir: "exports",
		S3: storage.S3Config{
			Bucket:    "phonelist-backups",
			Region:    "us-east-1",
			Endpoint:  "http://minio:9000",
			PathStyle: true,
		},
	}
	if diff := cmp.Diff(want, FromEnv().Storage()); diff != "" {
		t.Errorf("storage options mismatch (-want +got):\n%s", diff)
	}
}
