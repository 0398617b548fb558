package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("sweep interval = %s", cfg.SweepInterval)
	}
	if cfg.Workers != 4 {
		t.Fatalf("workers = %d", cfg.Workers)
	}
	if cfg.RepeatPolicy != string(RepeatPolicyIntervalBoundary) {
		t.Fatalf("repeat policy = %s", cfg.RepeatPolicy)
	}
	if cfg.Selection.Strategy != "random" {
		t.Fatalf("selection strategy = %s", cfg.Selection.Strategy)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ESCALATION_SWEEP_INTERVAL", "30s")
	t.Setenv("ESCALATION_WORKERS", "8")
	t.Setenv("ESCALATION_REPEAT_POLICY", "cap_only")
	t.Setenv("ESCALATION_SELECTION_STRATEGY", "round_robin")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SweepInterval != 30*time.Second || cfg.Workers != 8 {
		t.Fatalf("env overrides ignored: %+v", cfg)
	}
	if cfg.RepeatPolicy != string(RepeatPolicyCapOnly) || cfg.Selection.Strategy != "round_robin" {
		t.Fatalf("env overrides ignored: %+v", cfg)
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalation.yaml")
	content := []byte("sweep_interval: 2m\nworkers: 2\nselection:\n  strategy: round_robin\n  seed: 7\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ESCALATION_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SweepInterval != 2*time.Minute || cfg.Workers != 2 {
		t.Fatalf("yaml not merged: %+v", cfg)
	}
	if cfg.Selection.Strategy != "round_robin" || cfg.Selection.Seed != 7 {
		t.Fatalf("yaml selection not merged: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("ESCALATION_REPEAT_POLICY", "every_tick")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("invalid repeat policy accepted")
	}
	t.Setenv("ESCALATION_REPEAT_POLICY", "cap_only")
	t.Setenv("ESCALATION_SELECTION_STRATEGY", "alphabetical")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("invalid selection strategy accepted")
	}
}
