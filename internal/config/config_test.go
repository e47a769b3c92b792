package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolateDirs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("APPDATA", filepath.Join(dir, "config"))
	t.Setenv("LOCALAPPDATA", filepath.Join(dir, "data"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolateDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("default log level: %q", cfg.LogLevel)
	}
	if cfg.Recordings.Format != "wav" {
		t.Fatalf("default format: %q", cfg.Recordings.Format)
	}
	if cfg.Capture.SampleRate != 16000 || cfg.Capture.Channels != 1 {
		t.Fatalf("default capture format: %+v", cfg.Capture)
	}
	if cfg.Capture.ChunkFrames != 1024 {
		t.Fatalf("default chunk frames: %d", cfg.Capture.ChunkFrames)
	}
	if cfg.Capture.SpeakerGain != 1.0 || cfg.Capture.MicGain != 1.0 {
		t.Fatalf("default gains: %+v", cfg.Capture)
	}
	if cfg.Capture.PrefsPath == "" || cfg.Recordings.Dir == "" {
		t.Fatal("paths should have defaults")
	}
}

func TestSaveAndReload(t *testing.T) {
	isolateDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.LogLevel = "debug"
	cfg.Recordings.Format = "aac"
	cfg.Capture.SpeakerGain = 1.5

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.LogLevel != "debug" || got.Recordings.Format != "aac" || got.Capture.SpeakerGain != 1.5 {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	isolateDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dir := filepath.Dir(configPath())
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
