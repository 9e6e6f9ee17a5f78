package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phillarmonic/credstore/internal/secrets"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.BackendKind() != secrets.BackendAuto {
		t.Errorf("Expected auto backend, got %s", cfg.BackendKind())
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected 'warn', got '%s'", cfg.LogLevel)
	}
	bc := cfg.BackendConfig()
	if bc.SecretService.Encryption != "dh" || bc.Keyutils.SkipPersistent {
		t.Errorf("Unexpected backend config: %+v", bc)
	}
}

func TestParse_AllKeys(t *testing.T) {
	data := `
backend: keyctl
target: work
log_level: debug
workers: 8
metrics_textfile: /tmp/credstore.prom
secret_service:
  encryption: plain
keyutils:
  persistent: false
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.BackendKind() != secrets.BackendKeyutils {
		t.Errorf("Expected keyutils, got %s", cfg.BackendKind())
	}
	if cfg.Target != "work" || cfg.Workers != 8 || cfg.MetricsTextfile != "/tmp/credstore.prom" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	bc := cfg.BackendConfig()
	if bc.SecretService.Encryption != "plain" {
		t.Errorf("Expected plain encryption, got %s", bc.SecretService.Encryption)
	}
	if !bc.Keyutils.SkipPersistent {
		t.Error("Expected persistent: false to skip the persistent keyring")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad backend", "backend: floppy", "unknown backend"},
		{"bad encryption", "secret_service:\n  encryption: rot13", "encryption"},
		{"bad log level", "log_level: loud", "log_level"},
		{"negative workers", "workers: -1", "workers"},
		{"bad yaml", "backend: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("backend: mock\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendKind() != secrets.BackendMock {
		t.Errorf("Expected mock backend, got %s", cfg.BackendKind())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing explicit file")
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendKind() != secrets.BackendAuto {
		t.Errorf("Expected defaults without a file, got %s", cfg.BackendKind())
	}

	if err := os.MkdirAll(filepath.Join(dir, "credstore"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "credstore", DefaultFilename), []byte("workers: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("Expected 2 workers from XDG config, got %d", cfg.Workers)
	}
}
