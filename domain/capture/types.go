package capture

import (
	"context"
	"image"

	"github.com/devkan/FirstAidVox-sub002/domain/device"
)

// State enumerates finite states of the capture session lifecycle.
type State int

const (
	StateIdle State = iota
	StateActivating
	StateStreaming
	StateReviewing
	StateUploading
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivating:
		return "activating"
	case StateStreaming:
		return "streaming"
	case StateReviewing:
		return "reviewing"
	case StateUploading:
		return "uploading"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PermissionState is the tri-state outcome of acquisition attempts.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (p PermissionState) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Track is one constituent of a live media stream. Stop releases it and is
// safe to call more than once.
type Track interface {
	Stop()
}

// MediaStream is the live acquisition resource. It is exclusively owned by the
// controller; Frame reads the current visual frame at native resolution.
type MediaStream interface {
	Frame(ctx context.Context) (image.Image, error)
	Tracks() []Track
}

// StreamDevice opens an exclusive media stream honoring constraints. Open
// failures are classified at the controller boundary; devices should wrap
// ErrPermissionDenied or ErrDeviceNotFound where the cause is known.
type StreamDevice interface {
	Open(ctx context.Context, c device.Constraints) (MediaStream, error)
}

// Payload is an owned binary image: encoded bytes plus declared MIME type.
type Payload struct {
	Bytes []byte
	MIME  string
	Name  string
}

// Handoff receives a finalized image payload and returns an opaque identifier.
// progress may be nil; when set it receives percentages in [0,100].
type Handoff interface {
	Submit(ctx context.Context, p Payload, progress func(pct int)) (string, error)
}

// StateListener is called on each successful state transition.
type StateListener func(prev, next State)

// Stats counts controller activity since construction. Failures counts
// entries into the failed state; a frame-encode error leaves the session
// streaming and is not one.
type Stats struct {
	Activations uint64
	Captures    uint64
	Imports     uint64
	Submissions uint64
	Failures    uint64
}

// Interface slices for consumers.
type StateSource interface{ Current() State }

type Acquisition interface {
	Activate(ctx context.Context) error
	Deactivate()
	CaptureFrame(ctx context.Context) error
}

type FileImport interface {
	ImportFile(name, mimeType string, data []byte) error
}

type Review interface {
	Retake() error
	Submit(ctx context.Context) (string, error)
	Retry(ctx context.Context) (string, error)
}

type Lifecycle interface {
	Cancel()
	Close()
}

// ControllerContract aggregates the full controller surface for DI.
type ControllerContract interface {
	StateSource
	Acquisition
	FileImport
	Review
	Lifecycle
	AddListener(StateListener)
	LastError() *Error
	Permission() PermissionState
	Progress() int
	CapturedImage() *Payload
	Preview() *Preview
	HandoffID() string
	Stats() Stats
}
