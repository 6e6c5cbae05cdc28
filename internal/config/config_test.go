package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.Engine != "cse" {
		t.Errorf("expected default engine cse, got %q", cfg.Search.Engine)
	}
	if cfg.Search.SleepMS != 1100 {
		t.Errorf("expected default sleep 1100ms, got %d", cfg.Search.SleepMS)
	}
	if cfg.Search.PageSize != 8 {
		t.Errorf("expected default page size 8, got %d", cfg.Search.PageSize)
	}
	if cfg.Audit.Backend != "csv" {
		t.Errorf("expected default audit backend csv, got %q", cfg.Audit.Backend)
	}
	if cfg.Download.OutDir != "CATALOGO" {
		t.Errorf("expected default out dir CATALOGO, got %q", cfg.Download.OutDir)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FERRET_CSE_KEY", "env-key")
	t.Setenv("FERRET_CSE_CX", "env-cx")
	t.Setenv("FERRET_SEARCH_ENGINE", "scrape")
	t.Setenv("FERRET_AUDIT_DATABASE_URL", "postgres://u:p@localhost/ferret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CSE.Key != "env-key" || cfg.CSE.CX != "env-cx" {
		t.Errorf("expected credentials from environment, got %+v", cfg.CSE)
	}
	if cfg.Search.Engine != "scrape" {
		t.Errorf("expected engine from environment, got %q", cfg.Search.Engine)
	}
	if cfg.Audit.DatabaseURL != "postgres://u:p@localhost/ferret" {
		t.Errorf("expected dsn from environment, got %q", cfg.Audit.DatabaseURL)
	}
}

func TestInitLogger(t *testing.T) {
	if err := InitLogger(LogConfig{Level: "debug", Format: "json"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := InitLogger(LogConfig{Level: "nope"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := InitLogger(LogConfig{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
