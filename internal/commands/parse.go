package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseInt rejects any input that leaves trailing characters once the
// leading sign and digits are consumed, per spec §4.F ("number parsing
// rejects anything that leaves trailing non-digits").
//
// Grounded on original_source/src/climpd/util/strconvert.c's str_to_int
// (strtol, then reject a non-NUL *end).
func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

// parseFloat is the float counterpart of parseInt (str_to_float).
func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

// parseSeek parses a seek target in seconds, `m:ss`, `m.ss`, or `m,ss`
// form, per spec §4.F. Grounded on strconvert.c's str_to_sec: a leading
// integer, optionally followed by one of ':' '.' ',' and a trailing
// integer of seconds.
func parseSeek(s string) (time.Duration, error) {
	sep := strings.IndexAny(s, ":.,")
	if sep < 0 {
		secs, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid seek time %q", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	minutes, err := strconv.Atoi(s[:sep])
	if err != nil {
		return 0, fmt.Errorf("invalid seek time %q", s)
	}
	secs, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid seek time %q", s)
	}
	total := minutes*60 + secs
	if minutes < 0 {
		total = minutes*60 - secs
	}
	return time.Duration(total) * time.Second, nil
}
