package capture

import (
	"errors"
	"fmt"
)

// Class partitions capture failures for callers. Every entry into StateFailed
// carries exactly one class.
type Class int

const (
	ClassUnknown Class = iota
	ClassPermissionDenied
	ClassDeviceNotFound
	ClassInvalidFileType
	ClassFileTooLarge
	ClassSubmissionFailed
)

func (c Class) String() string {
	switch c {
	case ClassPermissionDenied:
		return "permission_denied"
	case ClassDeviceNotFound:
		return "device_not_found"
	case ClassInvalidFileType:
		return "invalid_file_type"
	case ClassFileTooLarge:
		return "file_too_large"
	case ClassSubmissionFailed:
		return "submission_failed"
	default:
		return "unknown"
	}
}

// Sentinel causes devices wrap so acquisition failures classify correctly.
var (
	ErrPermissionDenied = errors.New("capture: permission denied")
	ErrDeviceNotFound   = errors.New("capture: device not found")
)

// Operation guard errors. These never enter StateFailed; they reject the call.
var (
	ErrInvalidState = errors.New("capture: operation not valid in current state")
	ErrBusy         = errors.New("capture: another operation is in flight")
	ErrCancelled    = errors.New("capture: session cancelled")
	ErrClosed       = errors.New("capture: controller closed")
)

// Error is a classified capture failure wrapping its cause.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture: %s", e.Class)
	}
	return fmt.Sprintf("capture: %s: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps cause under the given class.
func newError(class Class, cause error) *Error {
	return &Error{Class: class, Err: cause}
}

// classifyAcquisition maps a device open failure onto the error taxonomy.
func classifyAcquisition(err error) *Error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return newError(ClassPermissionDenied, err)
	case errors.Is(err, ErrDeviceNotFound):
		return newError(ClassDeviceNotFound, err)
	default:
		return newError(ClassUnknown, err)
	}
}

// ClassOf extracts the classification from err, or ClassUnknown when err is
// not a classified capture error.
func ClassOf(err error) Class {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassUnknown
}
