package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

type Config struct {
	LogLevel   string        `json:"log_level"`
	Recordings RecordsConfig `json:"recordings"`
	Capture    CaptureConfig `json:"capture"`
}

type RecordsConfig struct {
	Dir    string `json:"dir"`    // where finished recordings land
	Format string `json:"format"` // "wav" or "aac"
}

type CaptureConfig struct {
	SampleRate  int     `json:"sample_rate"` // mixed/target rate
	Channels    int     `json:"channels"`
	ChunkFrames int     `json:"chunk_frames"`
	SpeakerGain float64 `json:"speaker_gain"`
	MicGain     float64 `json:"mic_gain"`
	PrefsPath   string  `json:"prefs_path"` // device preference store
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	path := configPath()

	cfg := &Config{
		LogLevel: "info",
		Recordings: RecordsConfig{
			Dir:    filepath.Join(dataDir(), "recordings"),
			Format: "wav",
		},
		Capture: CaptureConfig{
			SampleRate:  16000,
			Channels:    1,
			ChunkFrames: 1024,
			SpeakerGain: 1.0,
			MicGain:     1.0,
			PrefsPath:   filepath.Join(dataDir(), "device_prefs.json"),
		},
	}

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Save writes the config to disk. The write goes through a temp file and
// rename so a crash never leaves a half-written config behind.
func (c *Config) Save() error {
	path := configPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "meetingscribe", "config.json")
}

// dataDir returns the platform-specific data directory for recordings and
// learned device state.
func dataDir() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "meetingscribe")
}
