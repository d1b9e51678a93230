package vmtrace

import (
	"errors"
	"fmt"

	"github.com/getsentry/vmtrace/internal/errorutil"
)

// ErrReconstructorFailed is returned for every event submitted after a
// reconstructor hit a fatal error.
var ErrReconstructorFailed = errors.New("vmtrace: reconstructor is unusable after a previous failure")

// StackMismatchError reports an exit event that does not match the innermost
// open call.
type StackMismatchError struct {
	// Popped is the method of the innermost open call.
	Popped uint64
	// Requested is the method the exit event was recorded for.
	Requested uint64
}

func (e *StackMismatchError) Error() string {
	return fmt.Sprintf(
		"vmtrace: %v: attempt to exit from method 0x%x while in method 0x%x",
		errorutil.ErrDataIntegrity,
		e.Requested,
		e.Popped,
	)
}

func (e *StackMismatchError) Unwrap() error {
	return errorutil.ErrDataIntegrity
}

type failedError struct {
	cause error
}

func (e *failedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrReconstructorFailed, e.cause)
}

func (e *failedError) Is(target error) bool {
	return target == ErrReconstructorFailed
}

func (e *failedError) Unwrap() error {
	return e.cause
}
