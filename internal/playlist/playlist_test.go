package playlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/climp/climpd/internal/media"
)

func mustMedia(t *testing.T, dir, name string) *media.Media {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := media.New(path)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInsertAndSize(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))
	p.InsertBack(mustMedia(t, dir, "b.mp3"))
	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}
}

func TestAtNegativeIndex(t *testing.T) {
	dir := t.TempDir()
	p := New()
	a := mustMedia(t, dir, "a.mp3")
	b := mustMedia(t, dir, "b.mp3")
	p.InsertBack(a)
	p.InsertBack(b)

	got, err := p.At(-1)
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Errorf("At(-1) returned wrong media")
	}
}

func TestAtOutOfRange(t *testing.T) {
	p := New()
	if _, err := p.At(0); err == nil {
		t.Fatalf("expected error on empty playlist")
	}
}

func TestNextLinearNoRepeatReturnsNilAtEnd(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))
	p.InsertBack(mustMedia(t, dir, "b.mp3"))

	if m := p.Next(); m == nil {
		t.Fatal("expected first track")
	}
	if m := p.Next(); m == nil {
		t.Fatal("expected second track")
	}
	if m := p.Next(); m != nil {
		t.Fatal("expected nil at end without repeat")
	}
	if p.Index() != NoIndex {
		t.Errorf("Index() = %d, want NoIndex after exhaustion", p.Index())
	}
}

func TestNextLinearRepeatWraps(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))
	p.InsertBack(mustMedia(t, dir, "b.mp3"))
	p.SetRepeat(true)

	first := p.Next()
	p.Next()
	third := p.Next() // wraps back to first
	if third != first {
		t.Errorf("expected wrap to first track with repeat on")
	}
}

func TestNextEmptyPlaylistReturnsNil(t *testing.T) {
	p := New()
	if m := p.Next(); m != nil {
		t.Fatalf("expected nil on empty playlist")
	}
}

func TestShuffleNoRepeatTerminatesAfterOneCycle(t *testing.T) {
	dir := t.TempDir()
	p := New()
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		p.InsertBack(mustMedia(t, dir, name))
	}
	p.SetShuffle(true)

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		m := p.Next()
		if m == nil {
			t.Fatalf("call %d: expected a track, got nil", i)
		}
		if seen[m.URI] {
			t.Fatalf("track %s drawn twice within one cycle", m.URI)
		}
		seen[m.URI] = true
	}
	if m := p.Next(); m != nil {
		t.Fatalf("expected nil on 4th call (cycle exhausted, no repeat)")
	}
}

func TestTakeRemovesAndShiftsCursor(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))
	p.InsertBack(mustMedia(t, dir, "b.mp3"))
	p.InsertBack(mustMedia(t, dir, "c.mp3"))
	p.Next() // index 0
	p.Next() // index 1 (b.mp3)

	removed, err := p.Take(0)
	if err != nil {
		t.Fatal(err)
	}
	if removed.Display != "a.mp3" {
		t.Errorf("removed wrong entry")
	}
	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}
	if p.Index() != 0 {
		t.Errorf("Index() = %d after Take(0), want 0 (cursor shifted to stay on b.mp3)", p.Index())
	}
}

func TestClearResetsCursorToNone(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))
	p.Next()
	p.Clear()
	if p.Index() != NoIndex {
		t.Errorf("Index() = %d after Clear, want NoIndex", p.Index())
	}
	if p.Size() != 0 {
		t.Errorf("Size() = %d after Clear, want 0", p.Size())
	}
}

func TestSortNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	p := New()
	for _, name := range []string{"track9.mp3", "track10.mp3", "track1.mp3"} {
		p.InsertBack(mustMedia(t, dir, name))
	}
	p.Sort()

	items := p.Items()
	want := []string{"track1.mp3", "track9.mp3", "track10.mp3"}
	for i, m := range items {
		if m.Display != want[i] {
			t.Errorf("position %d = %q, want %q", i, m.Display, want[i])
		}
	}
	if p.Index() != NoIndex {
		t.Errorf("Index() after Sort = %d, want NoIndex", p.Index())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))
	p.InsertBack(mustMedia(t, dir, "b.mp3"))

	listPath := filepath.Join(dir, "list.m3u")
	if err := p.Save(listPath); err != nil {
		t.Fatal(err)
	}

	wantURIs := []string{}
	for _, m := range p.Items() {
		wantURIs = append(wantURIs, m.URI)
	}

	p.Clear()
	if err := p.Load(listPath); err != nil {
		t.Fatal(err)
	}
	if p.Size() != 2 {
		t.Fatalf("Size() after load = %d, want 2", p.Size())
	}
	for i, m := range p.Items() {
		if m.URI != wantURIs[i] {
			t.Errorf("loaded entry %d = %q, want %q", i, m.URI, wantURIs[i])
		}
	}
}

func TestLoadInvalidEntryRollsBack(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.InsertBack(mustMedia(t, dir, "a.mp3"))

	bad := filepath.Join(dir, "bad.m3u")
	os.WriteFile(bad, []byte("not-an-absolute-path-or-uri\n"), 0o644)

	if err := p.Load(bad); err == nil {
		t.Fatalf("expected error loading invalid entry")
	}
	if p.Size() != 1 {
		t.Fatalf("Size() after failed load = %d, want 1 (rolled back)", p.Size())
	}
}

func TestDeckSizeMatchesPlaylistSizeInvariant(t *testing.T) {
	dir := t.TempDir()
	p := New()
	for i := 0; i < 5; i++ {
		p.InsertBack(mustMedia(t, dir, string(rune('a'+i))+".mp3"))
	}
	if p.deck.Size() != p.Size() {
		t.Fatalf("deck size %d != playlist size %d", p.deck.Size(), p.Size())
	}
	p.Take(2)
	if p.deck.Size() != p.Size() {
		t.Fatalf("after Take: deck size %d != playlist size %d", p.deck.Size(), p.Size())
	}
	p.Clear()
	if p.deck.Size() != p.Size() {
		t.Fatalf("after Clear: deck size %d != playlist size %d", p.deck.Size(), p.Size())
	}
}
