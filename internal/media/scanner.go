package media

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dhowden/tag"
)

// lookupTimeout is the per-URI budget before a scan is abandoned and the
// media stays unparsed (§5, "the scanner has a per-URI timeout of 5
// seconds").
const lookupTimeout = 5 * time.Second

// Scanner reads tag metadata asynchronously on a background pool. It
// guarantees at most one concurrent lookup per media URI by owning a
// pending map keyed on submission, mirroring the teacher's TrackLibrary
// map-keyed-by-checksum pattern (internal/playlist/library.go) applied to
// URIs instead of checksums.
type Scanner struct {
	log *slog.Logger

	mu      sync.Mutex
	pending map[string]*Media
}

// NewScanner creates a Scanner that logs through log (or slog.Default if
// nil).
func NewScanner(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log, pending: make(map[string]*Media)}
}

// Submit queues a metadata lookup for m. If m is HTTP, already parsed, or
// already has a lookup in flight, Submit is a no-op. The lookup runs on a
// separate goroutine; the caller is never blocked and no callback is
// required — readers observe completion via m.Parsed().
func (s *Scanner) Submit(m *Media) {
	if m == nil || m.IsHTTP() || m.Parsed() {
		return
	}

	s.mu.Lock()
	if _, inFlight := s.pending[m.URI]; inFlight {
		s.mu.Unlock()
		return
	}
	s.pending[m.URI] = m
	s.mu.Unlock()

	go s.run(m)
}

func (s *Scanner) run(m *Media) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, m.URI)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	type result struct {
		info Info
		err  error
	}
	done := make(chan result, 1)

	go func() {
		info, err := readTags(m.Path)
		done <- result{info, err}
	}()

	select {
	case <-ctx.Done():
		s.log.Warn("tag scan timed out", "uri", m.URI)
		m.MarkUnparsed()
	case r := <-done:
		if r.err != nil {
			s.log.Warn("tag scan failed", "uri", m.URI, "error", r.err)
			m.MarkUnparsed()
			return
		}
		m.SetInfo(r.info)
	}
}

// readTags opens path and extracts title/artist/album/track via
// github.com/dhowden/tag, the teacher's tag-reading dependency
// (internal/playlist/track.go's extractTrackMetadata).
func readTags(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Info{}, err
	}

	info := Info{Seekable: true}
	info.Title = m.Title()
	info.Artist = m.Artist()
	info.Album = m.Album()
	if num, _ := m.Track(); num != 0 {
		info.Track = num
	}
	// dhowden/tag does not expose duration, so Info.Duration stays 0;
	// nothing else in the repository fills it in.
	return info, nil
}
