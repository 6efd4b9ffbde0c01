package testutil

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		if cfg.Host != "localhost" || cfg.Port != "55432" {
			t.Fatalf("unexpected host/port: %s:%s", cfg.Host, cfg.Port)
		}
		if cfg.User != "portal" || cfg.Password != "portal" || cfg.DBName != "portal" {
			t.Fatalf("unexpected credentials: %+v", cfg)
		}
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_PORT", "5432")
		if got := DefaultTestDBConfig().Port; got != "5432" {
			t.Fatalf("Port = %s, want 5432", got)
		}
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "portal"}
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "postgres://u:p%40ss@db:5432/portal?") {
		t.Fatalf("unexpected DSN: %s", dsn)
	}
	if !strings.HasSuffix(dsn, "sslmode=disable") {
		t.Fatalf("expected sslmode=disable default: %s", dsn)
	}
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("TESTUTIL_FLAG", v)
		if !envBool("TESTUTIL_FLAG") {
			t.Errorf("envBool(%q) = false, want true", v)
		}
	}
	t.Setenv("TESTUTIL_FLAG", "nope")
	if envBool("TESTUTIL_FLAG") {
		t.Error("envBool(nope) = true, want false")
	}
}

func TestGenerateSchemaName(t *testing.T) {
	a, b := generateSchemaName(), generateSchemaName()
	if !strings.HasPrefix(a, "t_") || a == b {
		t.Fatalf("unexpected schema names %q %q", a, b)
	}
}

func TestHelpers(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !FixedTimeFunc(ts)().Equal(ts) {
		t.Fatal("FixedTimeFunc should return the fixed time")
	}
	if p := BoolPtr(false); p == nil || *p {
		t.Fatal("BoolPtr(false) should point at false")
	}
}
