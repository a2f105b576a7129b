// Package playlist implements the ordered sequence of media an engine
// plays from: cursor-based advance under repeat/shuffle policy, a
// non-repeating shuffle deck sized in lockstep with the sequence, and
// line-based persistence to .m3u-style playlist files.
//
// Grounded on the teacher's internal/playlist/playlist.go (Playlist with
// an RWMutex-guarded slice, checksum/index lookups, Next/Current/Clone)
// generalized from "tracks in a library" to climp's ref-counted Media,
// and on internal/playlist/store.go for atomic on-disk persistence.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/climp/climpd/internal/media"
	"github.com/climp/climpd/internal/shuffle"
)

// NoIndex is the cursor value meaning "no current track" (spec's NONE).
const NoIndex = -1

var (
	// ErrOutOfRange is returned by index-addressed operations given an
	// index outside [0, size).
	ErrOutOfRange = errors.New("playlist: index out of range")
	// ErrEmpty is returned by operations that require a non-empty playlist.
	ErrEmpty = errors.New("playlist: empty")
)

// Playlist is an ordered sequence of media with a cursor and repeat/
// shuffle flags. Invariant: deck.Size() == len(items) after every
// mutating operation.
type Playlist struct {
	mu      sync.RWMutex
	items   []*media.Media
	index   int
	repeat  bool
	shuffle bool
	deck    *shuffle.Deck
}

// New creates an empty playlist.
func New() *Playlist {
	return &Playlist{index: NoIndex, deck: shuffle.New(0)}
}

// Size returns the number of entries.
func (p *Playlist) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Empty reports whether the playlist has no entries.
func (p *Playlist) Empty() bool {
	return p.Size() == 0
}

// InsertBack appends m to the end of the playlist.
func (p *Playlist) InsertBack(m *media.Media) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertBackLocked(m)
}

func (p *Playlist) insertBackLocked(m *media.Media) {
	p.items = append(p.items, m.Retain())
	p.deck.Add(1)
}

// EmplaceBack resolves arg into a Media and appends it.
func (p *Playlist) EmplaceBack(arg string) error {
	m, err := media.New(arg)
	if err != nil {
		return err
	}
	p.InsertBack(m)
	return nil
}

// AddList appends every media in list, in order.
func (p *Playlist) AddList(list []*media.Media) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range list {
		p.insertBackLocked(m)
	}
}

// RemoveMediaList removes every occurrence of each media in list (matched
// by URI).
func (p *Playlist) RemoveMediaList(list []*media.Media) {
	p.mu.Lock()
	defer p.mu.Unlock()

	remove := make(map[string]bool, len(list))
	for _, m := range list {
		remove[m.URI] = true
	}

	kept := p.items[:0]
	removedBefore := 0
	for i, m := range p.items {
		if remove[m.URI] {
			m.Release()
			if p.index != NoIndex && i < p.index {
				removedBefore++
			}
			continue
		}
		kept = append(kept, m)
	}
	removedCount := len(p.items) - len(kept)
	p.items = kept
	if removedCount > 0 {
		p.deck.Remove(removedCount)
		p.relocateAfterRemoval(removedBefore)
	}
}

func (p *Playlist) relocateAfterRemoval(removedBefore int) {
	if len(p.items) == 0 {
		p.index = NoIndex
		return
	}
	if p.index == NoIndex {
		return
	}
	p.index -= removedBefore
	if p.index < 0 {
		p.index = 0
	}
	if p.index > len(p.items) {
		p.index = len(p.items)
	}
}

// Clear removes every entry; per spec, the cursor becomes NONE.
func (p *Playlist) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.items {
		m.Release()
	}
	p.items = nil
	p.index = NoIndex
	p.deck = shuffle.New(0)
}

// At returns the media at index i. A negative i counts from the back
// (-1 is the last element).
func (p *Playlist) At(i int) (*media.Media, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.resolveIndex(i)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return p.items[idx], nil
}

func (p *Playlist) resolveIndex(i int) (int, bool) {
	n := len(p.items)
	if i < 0 {
		i = n + i
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// Take removes and returns the media at index i.
func (p *Playlist) Take(i int) (*media.Media, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.resolveIndex(i)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	m := p.items[idx]
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	p.deck.Remove(1)
	removedBefore := 0
	if p.index != NoIndex && idx < p.index {
		removedBefore = 1
	}
	p.relocateAfterRemoval(removedBefore)
	m.Release()
	return m, nil
}

// IndexOf returns the index of m (matched by URI), or -1 if absent.
func (p *Playlist) IndexOf(m *media.Media) int {
	return p.IndexOfURI(m.URI)
}

// IndexOfPath returns the index of the first entry whose Path equals
// path (matched by filesystem path rather than full URI).
func (p *Playlist) IndexOfPath(path string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, m := range p.items {
		if m.Path == path {
			return i
		}
	}
	return -1
}

// IndexOfURI returns the index of the first entry with the given URI, or
// -1 if absent.
func (p *Playlist) IndexOfURI(uri string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, m := range p.items {
		if m.URI == uri {
			return i
		}
	}
	return -1
}

// Items returns a snapshot copy of the playlist's entries in order.
func (p *Playlist) Items() []*media.Media {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*media.Media, len(p.items))
	copy(out, p.items)
	return out
}

// Index returns the current cursor value (NoIndex if none).
func (p *Playlist) Index() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// SetRepeat sets the repeat flag.
func (p *Playlist) SetRepeat(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = v
}

// Repeat returns the repeat flag.
func (p *Playlist) Repeat() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.repeat
}

// ToggleRepeat flips and returns the new repeat flag.
func (p *Playlist) ToggleRepeat() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = !p.repeat
	return p.repeat
}

// SetShuffle sets the shuffle flag. Turning shuffle on resets the deck so
// the next Next() starts a fresh cycle over the current contents.
func (p *Playlist) SetShuffle(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = v
	if v {
		p.deck.Reset()
	}
}

// Shuffle returns the shuffle flag.
func (p *Playlist) Shuffle() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shuffle
}

// ToggleShuffle flips and returns the new shuffle flag.
func (p *Playlist) ToggleShuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = !p.shuffle
	if p.shuffle {
		p.deck.Reset()
	}
	return p.shuffle
}

// Next returns the next media to play per shuffle/repeat policy,
// advancing the cursor. Returns nil when the playlist is finished and
// not repeating.
func (p *Playlist) Next() *media.Media {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) == 0 {
		p.index = NoIndex
		return nil
	}

	if p.shuffle {
		return p.nextShuffledLocked()
	}
	return p.nextLinearLocked()
}

func (p *Playlist) nextShuffledLocked() *media.Media {
	if p.deck.CycleDone() {
		if !p.repeat {
			p.deck.Reset()
			p.index = NoIndex
			return nil
		}
		p.deck.Reset()
	}
	idx := p.deck.Draw()
	p.index = idx
	return p.items[idx]
}

func (p *Playlist) nextLinearLocked() *media.Media {
	next := p.index + 1
	if next >= len(p.items) {
		if !p.repeat {
			p.index = NoIndex
			return nil
		}
		next = 0
	}
	p.index = next
	return p.items[next]
}

// Sort orders the playlist by a version-aware natural comparison of each
// entry's hierarchical path (so track10 follows track9, not track1).
// After sorting the cursor becomes NONE and the deck resets.
func (p *Playlist) Sort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	sort.SliceStable(p.items, func(i, j int) bool {
		return naturalLess(sortKey(p.items[i]), sortKey(p.items[j]))
	})
	p.index = NoIndex
	p.deck.Reset()
}

func sortKey(m *media.Media) string {
	if m.Path != "" {
		return m.Path
	}
	return m.URI
}

// Save writes the playlist's URIs to path, one per line, in order.
func (p *Playlist) Save(path string) error {
	p.mu.RLock()
	lines := make([]string, len(p.items))
	for i, m := range p.items {
		lines[i] = m.URI
	}
	p.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("playlist: save: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# climp playlist")
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("playlist: save: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("playlist: save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("playlist: save: %w", err)
	}
	return nil
}

// Load replaces the playlist's contents with the entries in path. Lines
// starting with '#' and blank lines are ignored; every remaining line
// must be an absolute path or a valid URI. Loading is all-or-nothing: any
// failure rolls the playlist back to its pre-load size.
func (p *Playlist) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("playlist: load: %w", err)
	}
	defer f.Close()

	if err := p.LoadReader(f); err != nil {
		return fmt.Errorf("playlist: load %s: %w", path, err)
	}
	return nil
}

// LoadReader replaces the playlist's contents with the entries read from
// r, one URI or absolute path per line, '#'-prefixed and blank lines
// ignored. Used both by Load (an on-disk m3u) and by the `stdin` command
// (the client's transferred standard input). Loading is all-or-nothing:
// any failure leaves the playlist untouched.
func (p *Playlist) LoadReader(r io.Reader) error {
	var loaded []*media.Media
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			if u, err := url.Parse(line); err != nil || !u.IsAbs() {
				for _, m := range loaded {
					m.Release()
				}
				return fmt.Errorf("invalid entry %q", line)
			}
		}
		m, err := media.New(line)
		if err != nil {
			for _, m := range loaded {
				m.Release()
			}
			return err
		}
		loaded = append(loaded, m)
	}
	if err := scanner.Err(); err != nil {
		for _, m := range loaded {
			m.Release()
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.items {
		m.Release()
	}
	p.items = nil
	for _, m := range loaded {
		p.items = append(p.items, m.Retain())
	}
	p.index = NoIndex
	p.deck = shuffle.New(len(p.items))
	return nil
}

// naturalLess compares two strings splitting them into alternating runs
// of digits and non-digits, so that numeric runs compare by value
// ("track9" < "track10") rather than lexicographically.
func naturalLess(a, b string) bool {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		ac, bc := a[ai], b[bi]
		if isDigit(ac) && isDigit(bc) {
			as, bs := ai, bi
			for ai < len(a) && isDigit(a[ai]) {
				ai++
			}
			for bi < len(b) && isDigit(b[bi]) {
				bi++
			}
			an := strings.TrimLeft(a[as:ai], "0")
			bn := strings.TrimLeft(b[bs:bi], "0")
			if len(an) != len(bn) {
				return len(an) < len(bn)
			}
			if an != bn {
				return an < bn
			}
			continue
		}
		if ac != bc {
			return ac < bc
		}
		ai++
		bi++
	}
	return len(a)-ai < len(b)-bi
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
