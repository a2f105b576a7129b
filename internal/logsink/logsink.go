// Package logsink implements climpd's append-only log: a slog.Handler
// backed by a single file, plus the extra operations spec §4.K calls for
// that slog does not provide — a continuation write (append) and a full
// dump of the log's contents for the get-log command.
//
// Grounded on original_source/src/server/core/climpd-log.c
// (climpd_log_d/i/w/e per-severity writes, climpd_log_append for
// continuation lines, climpd_log_print(fd) for remote retrieval, and
// climpd_log_fd for direct descriptor exposure). The teacher repo logs
// through the stdlib log/slog package directly with no custom handler
// (see its main.go); this package keeps that choice — slog.Handler — but
// backs it with a plain file instead of stderr, since spec §6 requires a
// per-user log file.
package logsink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Sink is a slog.Handler that writes one line per record to an append-only
// file, plus the continuation/dump operations the get-log command and the
// daemon's own diagnostics need.
type Sink struct {
	mu   *sync.Mutex
	file *os.File
	attr []slog.Attr
}

// Open opens (creating if necessary) the log file at path for appending
// and returns a Sink backed by it.
func Open(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logsink: open %s: %w", path, err)
	}
	return &Sink{mu: &sync.Mutex{}, file: f}, nil
}

// Logger wraps s in a *slog.Logger for callers that want the standard
// structured-logging surface.
func (s *Sink) Logger() *slog.Logger {
	return slog.New(s)
}

// Enabled implements slog.Handler; logsink records every level, leaving
// filtering to the caller's logger configuration.
func (s *Sink) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler, formatting one line as
// "TIMESTAMP SEVERITY [tag] message key=value ...".
func (s *Sink) Handle(_ context.Context, r slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := "climpd"
	var fields []string
	for _, a := range s.attr {
		if a.Key == "tag" {
			tag = a.Value.String()
			continue
		}
		fields = append(fields, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "tag" {
			tag = a.Value.String()
			return true
		}
		fields = append(fields, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})

	line := fmt.Sprintf("%s %s [%s] %s", r.Time.Format(time.RFC3339), severity(r.Level), tag, r.Message)
	for _, f := range fields {
		line += " " + f
	}
	line += "\n"
	_, err := s.file.WriteString(line)
	return err
}

// WithAttrs implements slog.Handler.
func (s *Sink) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Sink{mu: s.mu, file: s.file, attr: append(append([]slog.Attr{}, s.attr...), attrs...)}
}

// WithGroup implements slog.Handler. logsink has no grouping concept;
// groups degrade to attributes with no prefix, which is adequate for a
// flat line-oriented log.
func (s *Sink) WithGroup(string) slog.Handler { return s }

func severity(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Append writes msg as a continuation of the previous line: no
// timestamp/severity/tag prefix, no trailing newline added beyond what
// msg itself carries. This mirrors climpd_log_append's use for building up
// one logical line (e.g. a progress readout) across multiple calls.
func (s *Sink) Append(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteString(msg)
	return err
}

// Dump copies the full log file contents to w, for the get-log command
// (spec §4.F/§4.K). It reads from the start of the file independent of
// the append file offset.
func (s *Sink) Dump(w io.Writer) error {
	s.mu.Lock()
	path := s.file.Name()
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("logsink: dump: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Fd exposes the underlying file descriptor, for ancillary-fd transfer
// contracts that want direct access to the log (mirrors climpd_log_fd).
func (s *Sink) Fd() uintptr {
	return s.file.Fd()
}

// Close closes the underlying file.
func (s *Sink) Close() error {
	return s.file.Close()
}
