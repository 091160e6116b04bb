package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vision.WindowSize != 4 {
		t.Errorf("expected default window size 4, got %d", cfg.Vision.WindowSize)
	}
	if cfg.Compact.Strategy != "summarize" {
		t.Errorf("expected default strategy summarize, got %q", cfg.Compact.Strategy)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9000"
vision:
  window_size: 3
  escalation_cooldown: 5s
  frame_queue_size: 10
  event_queue_size: 20
compact:
  strategy: shorten
  max_human_messages: 6
  min_messages: 8
  keep_recent: 5
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("listen not overlaid: %q", cfg.Listen)
	}
	if cfg.Vision.WindowSize != 3 || cfg.Vision.EscalationCooldown != 5*time.Second {
		t.Errorf("vision section not overlaid: %+v", cfg.Vision)
	}
	if cfg.LLM.Decision.Model == "" {
		t.Error("untouched defaults must survive the overlay")
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.Compact.Strategy = "amnesia"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestValidateRejectsZeroWindow(t *testing.T) {
	cfg := Default()
	cfg.Vision.WindowSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero window size")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
