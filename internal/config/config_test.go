package config

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), LoadOptions{SearchDirs: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `process:
  timeout: 30s
  kill_signal: kill
latest:
  source: registry
registry:
  url: https://npm.example.com
yarn:
  lockfile: custom.lock
`
	if err := os.WriteFile(filepath.Join(dir, "proddeps.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), LoadOptions{SearchDirs: []string{dir}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Process.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Process.Timeout)
	}
	if sig, _ := cfg.Process.Signal(); sig != syscall.SIGKILL {
		t.Errorf("Signal = %v, want SIGKILL", sig)
	}
	if cfg.Latest.Source != SourceRegistry {
		t.Errorf("Source = %q, want %q", cfg.Latest.Source, SourceRegistry)
	}
	if cfg.Registry.URL != "https://npm.example.com" {
		t.Errorf("URL = %q", cfg.Registry.URL)
	}
	if cfg.Registry.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.Registry.MaxRetries)
	}
	if cfg.Yarn.Lockfile != "custom.lock" {
		t.Errorf("Lockfile = %q, want %q", cfg.Yarn.Lockfile, "custom.lock")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PRODDEPS_LATEST_SOURCE", "registry")
	t.Setenv("PRODDEPS_PROCESS_TIMEOUT", "2m")

	cfg, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Latest.Source != SourceRegistry {
		t.Errorf("Source = %q, want %q", cfg.Latest.Source, SourceRegistry)
	}
	if cfg.Process.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %s, want 2m", cfg.Process.Timeout)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadInvalidSource(t *testing.T) {
	t.Setenv("PRODDEPS_LATEST_SOURCE", "carrier-pigeon")

	if _, err := Load(context.Background(), LoadOptions{}); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Load(ctx, LoadOptions{}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestSignal(t *testing.T) {
	tests := []struct {
		name    string
		want    syscall.Signal
		wantErr bool
	}{
		{"SIGTERM", syscall.SIGTERM, false},
		{"term", syscall.SIGTERM, false},
		{"SIGKILL", syscall.SIGKILL, false},
		{"int", syscall.SIGINT, false},
		{"SIGHUP", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProcessConfig{KillSignal: tt.name}.Signal()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Signal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Signal() = %v, want %v", got, tt.want)
			}
		})
	}
}
