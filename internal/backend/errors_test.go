package backend

import (
	"errors"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("daemon unreachable")
	err := &Error{Op: "create", ContainerName: "wsk0_1_foo", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through Error to its wrapped cause")
	}
	if got := err.Error(); got == "" {
		t.Error("Error() should not be empty")
	}
}

func TestErrLogSizeUnavailableIsDistinct(t *testing.T) {
	if errors.Is(ErrLogSizeUnavailable, errors.New("LOG_SIZE_UNAVAILABLE")) {
		t.Error("ErrLogSizeUnavailable should be a distinct sentinel, not string-comparable")
	}
}
