package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Compose.DPI != 200 {
		t.Errorf("DPI = %d, want 200", cfg.Compose.DPI)
	}
	if cfg.Compose.MinScale != 0.7 || cfg.Compose.MaxScale != 1.0 {
		t.Errorf("scale bounds = %v/%v, want 0.7/1.0", cfg.Compose.MinScale, cfg.Compose.MaxScale)
	}
	if !cfg.Compose.PreserveAspectRatio || !cfg.Compose.AddMargin || !cfg.Compose.AutoFit {
		t.Error("layout toggles should default on")
	}
	if cfg.Worker.JobTimeout != 120*time.Second {
		t.Errorf("job timeout = %v, want 120s", cfg.Worker.JobTimeout)
	}
	if cfg.Axiom.Dataset != "dev_pagecomposer" {
		t.Errorf("dataset = %q", cfg.Axiom.Dataset)
	}
}

func TestFromEnvOverridesAndClamping(t *testing.T) {
	t.Setenv("COMPOSE_DPI", "900")
	t.Setenv("COMPOSE_MIN_SCALE", "0.9")
	t.Setenv("COMPOSE_MAX_SCALE", "0.8")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("COMPOSE_FORMAT", "PNG")

	cfg := FromEnv()
	if cfg.Compose.DPI != 300 {
		t.Errorf("DPI = %d, want clamped 300", cfg.Compose.DPI)
	}
	if cfg.Compose.MinScale != 0.8 {
		t.Errorf("MinScale = %v, want lowered to MaxScale", cfg.Compose.MinScale)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Worker.Concurrency)
	}
	if cfg.Compose.Format != "png" {
		t.Errorf("format = %q, want png", cfg.Compose.Format)
	}
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("COMPOSE_DPI", "not-a-number")
	t.Setenv("JOB_TIMEOUT", "soon")

	cfg := FromEnv()
	if cfg.Compose.DPI != 200 {
		t.Errorf("DPI = %d, want default 200", cfg.Compose.DPI)
	}
	if cfg.Worker.JobTimeout != 120*time.Second {
		t.Errorf("timeout = %v, want default", cfg.Worker.JobTimeout)
	}
}

func TestComposeOptions(t *testing.T) {
	cfg := FromEnv()
	opts := cfg.Compose.Options()
	if opts.DPI != cfg.Compose.DPI || opts.MinScale != cfg.Compose.MinScale {
		t.Errorf("options do not mirror config: %+v", opts)
	}
}
