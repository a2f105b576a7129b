// Package media represents playable audio resources: URI normalization,
// ref-counted sharing, and the mutable metadata record a track carries once
// its tags have been read.
package media

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

var (
	// ErrNotFound is returned when a user-supplied argument does not
	// resolve to an existing regular file and is not itself a valid URI.
	ErrNotFound = errors.New("media: not found")
	// ErrNotRegular is returned when the resolved path exists but is not
	// a regular file (a directory, device, etc.).
	ErrNotRegular = errors.New("media: not a regular file")
)

// Info is the mutable, tag-derived metadata record of a Media. The zero
// value represents an unparsed track (title falls back to the display
// name).
type Info struct {
	Title    string
	Artist   string
	Album    string
	Track    int
	Duration int // seconds
	Seekable bool
}

// Media is one addressable audio resource. It is immutable except for its
// Info record and Parsed flag, both guarded by refs so the scanner can
// publish updates the engine and playlist observe.
//
// The reference count is kept only by playlist membership: the playlist
// calls Retain on insert and Release on removal. The engine's active-track
// slot, the scanner's pending-lookup table and command-handler locals hold
// plain pointers and do not touch the count. A Media is never explicitly
// freed in Go (the GC reclaims it once unreferenced); the count is
// diagnostic only.
type Media struct {
	URI      string
	Path     string // hierarchical part: absolute filesystem path for file:// URIs, "" for http(s)
	Display  string

	refs   atomic.Int32
	info   atomic.Pointer[Info]
	parsed atomic.Bool
}

// New creates a Media from a user-supplied argument string. If the
// argument already parses as an http(s) or file URI it is kept as-is
// (after validating a file:// URI's path exists); otherwise it must name
// an existing regular file, whose absolute path is canonicalized and
// prefixed with file://.
func New(arg string) (*Media, error) {
	if u, err := url.Parse(arg); err == nil && u.IsAbs() {
		switch u.Scheme {
		case "http", "https":
			return newMedia(arg, "", filepath.Base(u.Path)), nil
		case "file":
			path := u.Path
			return fromPath(arg, path)
		}
	}
	return fromArgPath(arg)
}

func fromArgPath(arg string) (*Media, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("media: %s: %w", arg, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, arg)
		}
		return nil, fmt.Errorf("media: %s: %w", arg, err)
	}
	return fromPath("file://"+real, real)
}

func fromPath(uri, path string) (*Media, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("media: %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return newMedia(uri, path, filepath.Base(path)), nil
}

func newMedia(uri, path, display string) *Media {
	m := &Media{URI: uri, Path: path, Display: display}
	m.info.Store(&Info{})
	// HTTP(S) resources are permanently "not to be parsed": mark them
	// parsed immediately with zero info so the scanner never submits them.
	if !strings.HasPrefix(uri, "file://") {
		m.parsed.Store(true)
	}
	return m
}

// IsHTTP reports whether this Media addresses a remote http(s) resource.
func (m *Media) IsHTTP() bool {
	return strings.HasPrefix(m.URI, "http://") || strings.HasPrefix(m.URI, "https://")
}

// Parsed reports whether the tag scanner has (successfully or not) finished
// attempting to populate Info. Readers use this as a publication fence:
// once true, Info() reflects the scanner's final result (or remains the
// zero value if the lookup failed).
func (m *Media) Parsed() bool {
	return m.parsed.Load()
}

// Info returns a snapshot of the current metadata record.
func (m *Media) Info() Info {
	return *m.info.Load()
}

// SetInfo publishes new metadata and marks the media parsed. Only the
// scanner calls this.
func (m *Media) SetInfo(info Info) {
	m.info.Store(&info)
	m.parsed.Store(true)
}

// MarkUnparsed records that the scanner attempted and failed to read tags;
// the media stays usable with its filename-derived display name.
func (m *Media) MarkUnparsed() {
	m.parsed.Store(true)
}

// Retain increments the reference count and returns the receiver for
// convenient chaining at call sites (pl.active = media.Retain()).
func (m *Media) Retain() *Media {
	m.refs.Add(1)
	return m
}

// Release decrements the reference count. It never deallocates (Go's GC
// owns that); it exists purely so holders can assert "I was the last
// reference" for diagnostics.
func (m *Media) Release() int32 {
	return m.refs.Add(-1)
}

// RefCount returns the current reference count.
func (m *Media) RefCount() int32 {
	return m.refs.Load()
}

// DisplayTitle returns Info.Title if parsed and non-empty, else the
// filename-derived display name.
func (m *Media) DisplayTitle() string {
	if info := m.Info(); m.Parsed() && info.Title != "" {
		return info.Title
	}
	return m.Display
}
