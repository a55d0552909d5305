// Package handoff carries finalized capture payloads into the voice/message
// session. Implementations satisfy the capture.Handoff contract; the
// controller stays agnostic of the transport behind it.
package handoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devkan/FirstAidVox-sub002/domain/capture"
)

// Simulated is a local handoff: stepped progress, a fresh identifier, no
// network transfer. Used when no session endpoint is configured and in tests.
type Simulated struct {
	Steps     int           // progress steps, default 5
	StepDelay time.Duration // pause between steps
	Fail      error         // non-nil forces every submission to fail
	Logger    *slog.Logger
}

func (s *Simulated) Submit(ctx context.Context, p capture.Payload, progress func(pct int)) (string, error) {
	steps := s.Steps
	if steps <= 0 {
		steps = 5
	}
	for i := 1; i <= steps; i++ {
		if s.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.StepDelay):
			}
		}
		if progress != nil {
			progress(i * 100 / steps)
		}
	}
	if s.Fail != nil {
		return "", s.Fail
	}
	id := uuid.NewString()
	if s.Logger != nil {
		s.Logger.Info("handoff simulated", "id", id, "mime", p.MIME, "bytes", len(p.Bytes))
	}
	return id, nil
}

var _ capture.Handoff = (*Simulated)(nil)
