package capture

import (
	"bytes"
	"errors"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrPreviewRevoked is returned by accessors of an invalidated preview handle.
var ErrPreviewRevoked = errors.New("capture: preview revoked")

// Preview is the single revocable display handle over the captured image.
// The controller guarantees at most one live Preview; issuing a new one
// revokes the previous handle first. Callers must not retain a revoked handle.
// Safe for concurrent use: Revoke may run on the controller loop while a
// display consumer reads the handle.
type Preview struct {
	mu      sync.Mutex
	payload Payload
	thumb   image.Image // nil when the payload could not be decoded
	revoked bool
}

// newPreview builds a handle over p with a bounded thumbnail. Thumbnail
// generation is best-effort: undecodable payloads still yield a valid handle.
func newPreview(p Payload, thumbMax int) *Preview {
	pv := &Preview{payload: p}
	if thumbMax <= 0 {
		return pv
	}
	if img, err := imaging.Decode(bytes.NewReader(p.Bytes)); err == nil {
		pv.thumb = imaging.Fit(img, thumbMax, thumbMax, imaging.Lanczos)
	}
	return pv
}

// Bytes returns the displayable payload bytes.
func (p *Preview) Bytes() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revoked {
		return nil, ErrPreviewRevoked
	}
	return p.payload.Bytes, nil
}

// MIME returns the payload's declared MIME type.
func (p *Preview) MIME() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revoked {
		return "", ErrPreviewRevoked
	}
	return p.payload.MIME, nil
}

// Thumbnail returns the downscaled review image, when one could be decoded.
func (p *Preview) Thumbnail() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revoked {
		return nil, ErrPreviewRevoked
	}
	return p.thumb, nil
}

// Revoked reports whether the handle has been invalidated.
func (p *Preview) Revoked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked
}

// Revoke invalidates the handle and drops its backing references. Idempotent.
func (p *Preview) Revoke() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revoked {
		return
	}
	p.revoked = true
	p.payload = Payload{}
	p.thumb = nil
}
