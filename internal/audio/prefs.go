package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Preference accumulates recording outcomes for one (context, endpoint name)
// pair.
type Preference struct {
	Success  int       `json:"success"`
	Failure  int       `json:"failure"`
	LastUsed time.Time `json:"last_used"`
}

// Attempts returns the total recorded outcomes.
func (p Preference) Attempts() int {
	return p.Success + p.Failure
}

// SuccessRatio returns success/attempts, or 0 with no attempts.
func (p Preference) SuccessRatio() float64 {
	total := p.Attempts()
	if total == 0 {
		return 0
	}
	return float64(p.Success) / float64(total)
}

// prefTable is the on-disk document: the full preference table plus the
// endpoint block-list, written as a whole on every change.
type prefTable struct {
	Preferences map[string]Preference `json:"preferences"`
	Blocked     []string              `json:"blocked"`
}

// PrefStore persists the selector's learned state. Writes are atomic: the
// document lands fully or not at all (temp file + rename).
type PrefStore struct {
	path string
}

func NewPrefStore(path string) *PrefStore {
	return &PrefStore{path: path}
}

func prefKey(ctx Context, name string) string {
	return ctx.String() + "|" + name
}

// Load reads the persisted table. A missing file yields an empty table; a
// corrupt file is an error so the caller can decide, not a silent reset.
func (s *PrefStore) Load() (map[string]Preference, map[string]bool, error) {
	prefs := map[string]Preference{}
	blocked := map[string]bool{}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return prefs, blocked, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read preference store: %w", err)
	}

	var table prefTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, nil, fmt.Errorf("parse preference store %s: %w", s.path, err)
	}
	if table.Preferences != nil {
		prefs = table.Preferences
	}
	for _, name := range table.Blocked {
		blocked[name] = true
	}
	return prefs, blocked, nil
}

// Save rewrites the full table atomically.
func (s *PrefStore) Save(prefs map[string]Preference, blocked map[string]bool) error {
	table := prefTable{
		Preferences: prefs,
		Blocked:     make([]string, 0, len(blocked)),
	}
	for name, on := range blocked {
		if on {
			table.Blocked = append(table.Blocked, name)
		}
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preference store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preference dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preference store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit preference store: %w", err)
	}
	return nil
}
