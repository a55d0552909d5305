// Package camera provides stream-device implementations for the capture
// controller. On a desktop host the acquisition backend is the screen grabber.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/vova616/screenshot"

	"github.com/devkan/FirstAidVox-sub002/domain/capture"
	"github.com/devkan/FirstAidVox-sub002/domain/device"
)

// ErrStreamStopped is returned by Frame after every track has been stopped.
var ErrStreamStopped = errors.New("camera: stream stopped")

// ScreenDevice implements capture.StreamDevice over the desktop display.
type ScreenDevice struct {
	Logger *slog.Logger
}

// Open probes the display and returns a live stream bound to a capture
// rectangle derived from the constraint hints.
func (d *ScreenDevice) Open(ctx context.Context, c device.Constraints) (capture.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrDeviceNotFound, err)
	}
	s := &screenStream{rect: captureRect(screen, c), logger: d.Logger}
	s.tracks = []capture.Track{&screenTrack{stream: s}}
	if d.Logger != nil {
		d.Logger.Debug("screen stream opened", "rect", s.rect.String(), "facing", c.Facing.String())
	}
	return s, nil
}

// captureRect centers the constraint hints inside the screen bounds. Hints
// larger than the screen, or absent, yield the full screen.
func captureRect(screen image.Rectangle, c device.Constraints) image.Rectangle {
	if c.Width <= 0 || c.Height <= 0 {
		return screen
	}
	w, h := c.Width, c.Height
	if w > screen.Dx() {
		w = screen.Dx()
	}
	if h > screen.Dy() {
		h = screen.Dy()
	}
	x := screen.Min.X + (screen.Dx()-w)/2
	y := screen.Min.Y + (screen.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

type screenStream struct {
	rect    image.Rectangle
	logger  *slog.Logger
	tracks  []capture.Track
	stopped atomic.Bool
}

func (s *screenStream) Frame(ctx context.Context) (image.Image, error) {
	if s.stopped.Load() {
		return nil, ErrStreamStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, fmt.Errorf("camera: grab: %w", err)
	}
	return img, nil
}

func (s *screenStream) Tracks() []capture.Track { return s.tracks }

// screenTrack is the single constituent of a screen stream.
type screenTrack struct {
	stream *screenStream
}

// Stop releases the track. Safe to call more than once.
func (t *screenTrack) Stop() { t.stream.stopped.Store(true) }

var _ capture.StreamDevice = (*ScreenDevice)(nil)
