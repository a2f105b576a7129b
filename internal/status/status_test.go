package status

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/climp/climpd/internal/engine"
)

func TestFromErrorNilIsOK(t *testing.T) {
	if FromError(nil) != OK {
		t.Fatalf("FromError(nil) != OK")
	}
}

func TestFromErrorMapsKnownSentinels(t *testing.T) {
	if FromError(engine.ErrRange) >= 0 {
		t.Errorf("expected negative status for ErrRange")
	}
	if FromError(engine.ErrNoMedium) >= 0 {
		t.Errorf("expected negative status for ErrNoMedium")
	}
}

func TestFromErrorDefaultsToEinval(t *testing.T) {
	if got := FromError(errors.New("something else")); got != -int32(unix.EINVAL) {
		t.Errorf("FromError(unmapped) = %d, want -EINVAL (%d)", got, -int32(unix.EINVAL))
	}
}

func TestReasonOfOK(t *testing.T) {
	if Reason(OK) != "success" {
		t.Errorf("Reason(OK) = %q", Reason(OK))
	}
}
