// Package status maps the handler-facing Go errors used across climpd
// into the single signed integer the IPC status-reply record carries:
// 0 for success, otherwise a negated POSIX errno, per spec §4.H/§7.
//
// Grounded on original_source's pervasive "return -errno" convention
// (e.g. climpd-control.c, media-loader.c) — every C handler in the
// original propagates a negative errno up to the IPC reply; this package
// is the Go-side equivalent translation layer, new code since the teacher
// repo has no such taxonomy (its handlers return plain Go errors to an
// HTTP framework instead of a wire status code).
package status

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/climp/climpd/internal/engine"
	"github.com/climp/climpd/internal/loader"
	"github.com/climp/climpd/internal/media"
)

// OK is the status value for a successful handler.
const OK = 0

// FromError maps err to a negated POSIX errno. A nil error maps to OK.
// Errors with no more specific mapping fall back to -EINVAL, matching the
// original's default for "command usage error".
func FromError(err error) int32 {
	if err == nil {
		return OK
	}
	switch {
	case errors.Is(err, media.ErrNotFound), errors.Is(err, loader.ErrNotFound):
		return -int32(unix.ENOENT)
	case errors.Is(err, media.ErrNotRegular):
		return -int32(unix.EISDIR)
	case errors.Is(err, engine.ErrNoMedium):
		return -int32(unix.ENOENT)
	case errors.Is(err, engine.ErrRange):
		return -int32(unix.ERANGE)
	case errors.Is(err, engine.ErrUnseekable):
		return -int32(unix.ESPIPE)
	default:
		return -int32(unix.EINVAL)
	}
}

// Reason returns a short human-readable string for a negated-errno status,
// the way the client prints "server sent error: <reason>" per spec §7.
func Reason(code int32) string {
	if code == OK {
		return "success"
	}
	return unix.Errno(-code).Error()
}
