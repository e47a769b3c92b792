package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPrefStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store := NewPrefStore(path)

	prefs := map[string]Preference{
		prefKey(ContextMeetingCapture, "Stereo Mix"): {Success: 3, Failure: 1, LastUsed: time.Now().UTC()},
	}
	blocked := map[string]bool{"Broken Mic": true}

	if err := store.Save(prefs, blocked); err != nil {
		t.Fatalf("Save: %v", err)
	}

	gotPrefs, gotBlocked, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pref, ok := gotPrefs[prefKey(ContextMeetingCapture, "Stereo Mix")]
	if !ok {
		t.Fatal("preference entry missing after round trip")
	}
	if pref.Success != 3 || pref.Failure != 1 {
		t.Fatalf("counts lost: %+v", pref)
	}
	if !gotBlocked["Broken Mic"] {
		t.Fatal("block-list lost")
	}
}

func TestPrefStoreMissingFileIsEmpty(t *testing.T) {
	store := NewPrefStore(filepath.Join(t.TempDir(), "absent.json"))
	prefs, blocked, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(prefs) != 0 || len(blocked) != 0 {
		t.Fatal("missing file should load empty tables")
	}
}

func TestPrefStoreCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewPrefStore(path).Load(); err == nil {
		t.Fatal("corrupt store should be an error, not a silent reset")
	}
}

func TestPrefStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewPrefStore(filepath.Join(dir, "prefs.json"))
	if err := store.Save(map[string]Preference{}, map[string]bool{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "prefs.json" {
		t.Fatalf("expected only the committed file, found %v", entries)
	}
}

func TestPreferenceRatio(t *testing.T) {
	if got := (Preference{}).SuccessRatio(); got != 0 {
		t.Fatalf("no attempts should ratio 0, got %f", got)
	}
	if got := (Preference{Success: 1, Failure: 4}).SuccessRatio(); got != 0.2 {
		t.Fatalf("expected 0.2, got %f", got)
	}
}
