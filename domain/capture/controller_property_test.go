package capture

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

// Property-based sequences over the full operation surface. Every operation
// blocks until its transition resolves, so invariants hold between steps.

func TestProperty_OperationSequencesPreserveInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dev := &fakeDevice{}
		h := &fakeHandoff{}
		c := newTestController(dev, h)
		defer c.Close()

		ops := []string{"activate", "deactivate", "capture", "import", "importBad", "retake", "submit", "submitFail", "retry", "cancel"}
		n := rapid.IntRange(1, 40).Draw(rt, "num_ops")
		ctx := context.Background()

		for i := 0; i < n; i++ {
			op := rapid.SampledFrom(ops).Draw(rt, "op")
			switch op {
			case "activate":
				_ = c.Activate(ctx)
			case "deactivate":
				c.Deactivate()
			case "capture":
				_ = c.CaptureFrame(ctx)
			case "import":
				_ = c.ImportFile("p.png", "image/png", []byte{1, 2, 3})
			case "importBad":
				err := c.ImportFile("n.txt", "text/plain", []byte{1})
				if err == nil {
					rt.Fatal("non-image import must always fail")
				}
			case "retake":
				_ = c.Retake()
			case "submit":
				h.setErr(nil)
				_, _ = c.Submit(ctx)
			case "submitFail":
				h.setErr(errors.New("session down"))
				_, _ = c.Submit(ctx)
			case "retry":
				h.setErr(nil)
				_, _ = c.Retry(ctx)
			case "cancel":
				c.Cancel()
				if st := c.Current(); st != StateIdle {
					rt.Fatalf("cancel left state %v", st)
				}
				if c.CapturedImage() != nil {
					rt.Fatal("cancel left a captured image")
				}
			}
			checkInvariants(rt, c, dev)
		}
	})
}

func checkInvariants(rt *rapid.T, c *Controller, dev *fakeDevice) {
	st := c.Current()

	// At most one media handle, live exactly while streaming.
	live := dev.liveStreams()
	if live > 1 {
		rt.Fatalf("%d live streams", live)
	}
	if (live == 1) != (st == StateStreaming) {
		rt.Fatalf("state %v with %d live streams", st, live)
	}

	// Captured image presence tracks the states that carry one. A Failed
	// session holds a payload only after a submission failure.
	p := c.CapturedImage()
	switch st {
	case StateReviewing, StateCompleted:
		if p == nil {
			rt.Fatalf("state %v without payload", st)
		}
	case StateFailed:
		le := c.LastError()
		if le == nil {
			rt.Fatal("failed state without classification")
		}
		if p != nil && le.Class != ClassSubmissionFailed {
			rt.Fatalf("payload retained in failed state with class %v", le.Class)
		}
		if p == nil && le.Class == ClassSubmissionFailed {
			rt.Fatal("submission failure must preserve the payload")
		}
	default:
		if p != nil {
			rt.Fatalf("state %v with stale payload", st)
		}
	}

	// Exactly one preview per payload, none without.
	pv := c.Preview()
	if (pv != nil) != (p != nil) {
		rt.Fatalf("preview/payload mismatch in state %v", st)
	}
	if pv != nil && pv.Revoked() {
		rt.Fatal("controller exposed a revoked preview")
	}
}
