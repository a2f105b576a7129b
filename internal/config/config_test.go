package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 70 || cfg.Pitch != 1.0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "climpd.conf")
	os.WriteFile(path, []byte(
		"AudioPlayer.Volume = 500\n"+
			"AudioPlayer.Pitch = 99\n"+
			"AudioPlayer.Speed = 0.0001\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 100 {
		t.Errorf("Volume = %d, want clamped to 100", cfg.Volume)
	}
	if cfg.Pitch != 10.0 {
		t.Errorf("Pitch = %v, want clamped to 10.0", cfg.Pitch)
	}
	if cfg.Speed != 0.1 {
		t.Errorf("Speed = %v, want clamped to 0.1", cfg.Speed)
	}
}

func TestLoadIgnoresUnknownKeysAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "climpd.conf")
	os.WriteFile(path, []byte(
		"# a comment\n"+
			"; also a comment\n"+
			"Some.Unknown.Key = 1\n"+
			"AudioPlayer.Volume = 42\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 42 {
		t.Errorf("Volume = %d, want 42", cfg.Volume)
	}
}

func TestLoadInvalidValueKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "climpd.conf")
	os.WriteFile(path, []byte("AudioPlayer.Volume = not-a-number\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 70 {
		t.Errorf("Volume = %d, want default 70 retained on parse failure", cfg.Volume)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "climpd.conf")

	cfg := Default()
	cfg.Volume = 33
	cfg.Repeat = true
	cfg.KeepChanges = true
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Volume != 33 || !reloaded.Repeat || !reloaded.KeepChanges {
		t.Errorf("round-trip mismatch: %+v", reloaded)
	}
}

func TestParseBoolVocabulary(t *testing.T) {
	trueCases := []string{"true", "Yes", "ON", "y", "1"}
	falseCases := []string{"false", "No", "OFF", "n", "0"}
	for _, s := range trueCases {
		if v, ok := ParseBool(s); !ok || !v {
			t.Errorf("ParseBool(%q) = %v, %v; want true, true", s, v, ok)
		}
	}
	for _, s := range falseCases {
		if v, ok := ParseBool(s); !ok || v {
			t.Errorf("ParseBool(%q) = %v, %v; want false, true", s, v, ok)
		}
	}
	if _, ok := ParseBool("maybe"); ok {
		t.Errorf("ParseBool(maybe) should fail")
	}
}
