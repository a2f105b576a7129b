package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/climp/climpd/internal/media"
	"github.com/climp/climpd/internal/playlist"
)

func TestLoadHTTPInsertsSingleMedia(t *testing.T) {
	pl := playlist.New()
	l := New()
	if err := l.Load(pl, "http://example.com/stream.mp3"); err != nil {
		t.Fatal(err)
	}
	if pl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pl.Size())
	}
}

func TestLoadRegularFileInsertsSingleMedia(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	pl := playlist.New()
	l := New()
	if err := l.Load(pl, path); err != nil {
		t.Fatal(err)
	}
	if pl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pl.Size())
	}
}

func TestLoadPlaylistFileMergesEntries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp3")
	b := filepath.Join(dir, "b.mp3")
	os.WriteFile(a, []byte("x"), 0o644)
	os.WriteFile(b, []byte("x"), 0o644)

	listPath := filepath.Join(dir, "list.m3u")
	os.WriteFile(listPath, []byte("file://"+a+"\nfile://"+b+"\n"), 0o644)

	pl := playlist.New()
	l := New()
	if err := l.Load(pl, listPath); err != nil {
		t.Fatal(err)
	}
	if pl.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", pl.Size())
	}
}

func TestLoadFileURIStripsScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	pl := playlist.New()
	l := New()
	if err := l.Load(pl, "file://"+path); err != nil {
		t.Fatal(err)
	}
	if pl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pl.Size())
	}
}

func TestLoadSearchesConfiguredDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	pl := playlist.New()
	l := New()
	l.AddDir(dir)
	if err := l.Load(pl, "song.mp3"); err != nil {
		t.Fatal(err)
	}
	if pl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pl.Size())
	}
}

func TestLoadUnresolvedArgFails(t *testing.T) {
	pl := playlist.New()
	l := New()
	if err := l.Load(pl, "nonexistent.mp3"); err == nil {
		t.Fatalf("expected ErrNotFound")
	}
}

func TestLoadSubmitsNewMediaToScanner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	pl := playlist.New()
	l := New()
	l.SetScanner(media.NewScanner(nil))
	if err := l.Load(pl, path); err != nil {
		t.Fatal(err)
	}

	m, err := pl.At(0)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !m.Parsed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !m.Parsed() {
		t.Fatalf("expected scanner to mark media parsed or unparsed")
	}
}

func TestScanDirSkipsVideoExtensions(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "sub", "c.flac"), []byte("x"), 0o644)

	uris, err := ScanDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(uris) != 2 {
		t.Fatalf("ScanDir returned %d entries, want 2: %v", len(uris), uris)
	}
}
