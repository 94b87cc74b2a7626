package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.EyeARThresh != 0.25 {
		t.Errorf("EyeARThresh = %v, want 0.25", cfg.EyeARThresh)
	}
	if cfg.MouthARThresh != 0.5 {
		t.Errorf("MouthARThresh = %v, want 0.5", cfg.MouthARThresh)
	}
	if cfg.EyeFrames != 20 {
		t.Errorf("EyeFrames = %d, want 20", cfg.EyeFrames)
	}
	if cfg.MouthFrames != 35 {
		t.Errorf("MouthFrames = %d, want 35", cfg.MouthFrames)
	}
	if !cfg.EnableCSVLogging {
		t.Error("EnableCSVLogging should default to true")
	}
	if len(cfg.ModelURLs) != 2 {
		t.Errorf("got %d model URLs, want 2", len(cfg.ModelURLs))
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENVIRONMENT", "dev")
	t.Setenv("EYE_AR_THRESH", "0.3")
	t.Setenv("EYE_FRAMES_THRESHOLD", "15")
	t.Setenv("ENABLE_CSV_LOGGING", "false")
	t.Setenv("MODEL_URLS", "https://a.example/m.task, https://b.example/m.task ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if !cfg.IsDev() {
		t.Error("IsDev() should be true with ENVIRONMENT=dev")
	}
	if cfg.EyeARThresh != 0.3 {
		t.Errorf("EyeARThresh = %v, want 0.3", cfg.EyeARThresh)
	}
	if cfg.EyeFrames != 15 {
		t.Errorf("EyeFrames = %d, want 15", cfg.EyeFrames)
	}
	if cfg.EnableCSVLogging {
		t.Error("EnableCSVLogging should be false")
	}
	want := []string{"https://a.example/m.task", "https://b.example/m.task"}
	if len(cfg.ModelURLs) != len(want) || cfg.ModelURLs[0] != want[0] || cfg.ModelURLs[1] != want[1] {
		t.Errorf("ModelURLs = %v, want %v", cfg.ModelURLs, want)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("ENVIRONMENT", "staging")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestDSNForLogMasksPassword(t *testing.T) {
	cfg := &Config{DBHost: "localhost", DBPort: "5432", DBUser: "postgres", DBPassword: "hunter2", DBName: "drowsydetect", DBSSLMode: "disable"}

	if !strings.Contains(cfg.DSN(), "hunter2") {
		t.Error("DSN should carry the real password")
	}
	masked := cfg.DSNForLog()
	if strings.Contains(masked, "hunter2") {
		t.Errorf("DSNForLog leaks the password: %q", masked)
	}
	if !strings.Contains(masked, "password=***") {
		t.Errorf("DSNForLog missing mask: %q", masked)
	}
}

func TestLandmarkIndexSets(t *testing.T) {
	if len(LeftEyeIndices) != 6 || len(RightEyeIndices) != 6 {
		t.Fatalf("eye index sets must have 6 points, got %d and %d", len(LeftEyeIndices), len(RightEyeIndices))
	}
	if len(MouthIndices) != 12 {
		t.Fatalf("mouth index set must have 12 points, got %d", len(MouthIndices))
	}
	for _, idx := range append(append(append([]int{}, LeftEyeIndices...), RightEyeIndices...), MouthIndices...) {
		if idx < 0 || idx >= 468 {
			t.Errorf("index %d outside the 468-point mesh", idx)
		}
	}
}
