package capture

import (
	"bytes"
	"context"
	"log/slog"
	"mime"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"github.com/devkan/FirstAidVox-sub002/config"
	"github.com/devkan/FirstAidVox-sub002/domain/device"
)

// Controller coordinates one capture session at a time: live-stream or
// file-import acquisition, review, and handoff to the session collaborator.
// All operations are serialized through an event loop; an operation issued
// while an asynchronous stage (acquisition, encoding, handoff) is in flight
// is rejected with ErrBusy, except Cancel, which queues behind the in-flight
// stage and resolves once it does.
type Controller struct {
	logger      *slog.Logger
	cfg         *config.Config
	device      StreamDevice
	handoff     Handoff
	constraints device.Constraints

	// Loop-owned; never touched outside the event loop.
	stream       MediaStream
	inFlight     bool
	cancelFlight context.CancelFunc
	cancelWait   []chan struct{}
	closing      bool
	listeners    []StateListener

	// Observable snapshot. Written only by the loop, read by getters.
	mu         sync.Mutex
	state      State
	payload    *Payload
	preview    *Preview
	lastErr    *Error
	handoffID  string
	permission PermissionState
	progress   int

	activations atomic.Uint64
	captures    atomic.Uint64
	imports     atomic.Uint64
	submissions atomic.Uint64
	failures    atomic.Uint64

	events   chan interface{}
	quit     chan struct{}
	quitOnce sync.Once
	closed   atomic.Bool
}

// NewController constructs a controller and starts its event loop.
func NewController(logger *slog.Logger, cfg *config.Config, dev StreamDevice, h Handoff, cons device.Constraints) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Controller{
		logger:      logger,
		cfg:         cfg,
		device:      dev,
		handoff:     h,
		constraints: cons,
		state:       StateIdle,
		permission:  PermissionUnknown,
		events:      make(chan interface{}, 64),
		quit:        make(chan struct{}),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				if logger != nil {
					logger.Error("controller panic", "error", r, "stack", stack)
				}
			}
			c.quitOnce.Do(func() { close(c.quit) })
		}()
		c.loop()
	}()
	return c
}

// events
type (
	evtActivate struct {
		ctx  context.Context
		done chan error
	}
	evtOpened struct {
		stream MediaStream
		err    error
		done   chan error
	}
	evtDeactivate   struct{ done chan struct{} }
	evtCaptureFrame struct {
		ctx  context.Context
		done chan error
	}
	evtEncoded struct {
		payload *Payload
		err     error
		done    chan error
	}
	evtImport struct {
		name     string
		mimeType string
		data     []byte
		done     chan error
	}
	evtRetake struct{ done chan error }
	evtSubmit struct {
		ctx   context.Context
		retry bool
		done  chan submitResult
	}
	evtHandoff struct {
		id   string
		err  error
		done chan submitResult
	}
	evtProgress    struct{ pct int }
	evtCancel      struct{ done chan struct{} }
	evtAddListener struct{ l StateListener }
	evtClose       struct{}
)

type submitResult struct {
	id  string
	err error
}

func (c *Controller) loop() {
	for ev := range c.events {
		switch e := ev.(type) {
		case evtAddListener:
			c.listeners = append(c.listeners, e.l)
		case evtActivate:
			c.handleActivate(e)
		case evtOpened:
			c.handleOpened(e)
		case evtDeactivate:
			c.handleDeactivate(e)
		case evtCaptureFrame:
			c.handleCaptureFrame(e)
		case evtEncoded:
			c.handleEncoded(e)
		case evtImport:
			c.handleImport(e)
		case evtRetake:
			c.handleRetake(e)
		case evtSubmit:
			c.handleSubmit(e)
		case evtHandoff:
			c.handleHandoff(e)
		case evtProgress:
			c.handleProgress(e)
		case evtCancel:
			c.handleCancel(e)
		case evtClose:
			c.closing = true
			if c.cancelFlight != nil {
				c.cancelFlight()
			}
		}
		if c.closing && !c.inFlight {
			c.teardown()
			c.transition(StateIdle)
			c.notifyCancelWaiters()
			return
		}
	}
}

// transition moves the session to next, logs it, and notifies listeners.
func (c *Controller) transition(next State) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Debug("capture state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range c.listeners {
		l(prev, next)
	}
}

// resolveFlight clears the in-flight marker and reports whether a cancel (or
// close) arrived while the stage was pending.
func (c *Controller) resolveFlight() bool {
	c.inFlight = false
	c.cancelFlight = nil
	return len(c.cancelWait) > 0 || c.closing
}

func (c *Controller) notifyCancelWaiters() {
	for _, ch := range c.cancelWait {
		close(ch)
	}
	c.cancelWait = nil
}

// releaseStream stops every track of the bound stream and clears the handle.
// Idempotent: a nil handle is a no-op.
func (c *Controller) releaseStream() {
	if c.stream == nil {
		return
	}
	for _, t := range c.stream.Tracks() {
		t.Stop()
	}
	c.stream = nil
}

// releaseCapture revokes the preview and drops the captured payload.
func (c *Controller) releaseCapture() {
	c.mu.Lock()
	if c.preview != nil {
		c.preview.Revoke()
		c.preview = nil
	}
	c.payload = nil
	c.mu.Unlock()
}

// setCapture installs a fresh payload and preview, revoking the previous
// preview before the new one is assigned.
func (c *Controller) setCapture(p *Payload) {
	pv := newPreview(*p, c.cfg.ThumbnailMax)
	c.mu.Lock()
	if c.preview != nil {
		c.preview.Revoke()
	}
	c.preview = pv
	c.payload = p
	c.lastErr = nil
	c.mu.Unlock()
}

// teardown is the single cleanup routine invoked from every terminal and
// cancel transition: stream, preview, payload, error and progress all reset.
func (c *Controller) teardown() {
	c.releaseStream()
	c.releaseCapture()
	c.mu.Lock()
	c.lastErr = nil
	c.handoffID = ""
	c.progress = 0
	c.mu.Unlock()
}

func (c *Controller) handleActivate(e evtActivate) {
	if c.inFlight {
		e.done <- ErrBusy
		return
	}
	st := c.Current()
	if st != StateIdle && st != StateFailed {
		e.done <- ErrInvalidState
		return
	}
	// A new acquisition discards any capture preserved by an earlier failure.
	c.releaseCapture()
	c.activations.Add(1)
	c.transition(StateActivating)
	ctx, cancel := context.WithCancel(e.ctx)
	c.cancelFlight = cancel
	c.inFlight = true
	dev, cons := c.device, c.constraints
	go func() {
		defer recoverLog(c.logger, "acquisition goroutine panic")
		stream, err := dev.Open(ctx, cons)
		cancel()
		c.events <- evtOpened{stream: stream, err: err, done: e.done}
	}()
}

func (c *Controller) handleOpened(e evtOpened) {
	if c.resolveFlight() {
		if e.stream != nil {
			for _, t := range e.stream.Tracks() {
				t.Stop()
			}
		}
		c.teardown()
		c.transition(StateIdle)
		c.notifyCancelWaiters()
		e.done <- ErrCancelled
		return
	}
	if e.err != nil {
		cls := classifyAcquisition(e.err)
		c.failures.Add(1)
		c.mu.Lock()
		c.lastErr = cls
		if cls.Class == ClassPermissionDenied {
			c.permission = PermissionDenied
		}
		c.mu.Unlock()
		c.transition(StateFailed)
		e.done <- cls
		return
	}
	c.stream = e.stream
	c.mu.Lock()
	c.permission = PermissionGranted
	c.lastErr = nil
	c.mu.Unlock()
	c.transition(StateStreaming)
	e.done <- nil
}

func (c *Controller) handleDeactivate(e evtDeactivate) {
	if c.inFlight {
		switch c.Current() {
		case StateActivating, StateStreaming:
			// Pending acquisition or capture: resolve as a cancel so the
			// handle never leaks.
			c.cancelWait = append(c.cancelWait, e.done)
			if c.cancelFlight != nil {
				c.cancelFlight()
			}
		default:
			// Uploading holds no media handle; nothing to release.
			close(e.done)
		}
		return
	}
	c.releaseStream()
	if c.Current() == StateStreaming {
		c.transition(StateIdle)
	}
	close(e.done)
}

func (c *Controller) handleCaptureFrame(e evtCaptureFrame) {
	if c.inFlight {
		e.done <- ErrBusy
		return
	}
	if c.Current() != StateStreaming {
		e.done <- ErrInvalidState
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	c.cancelFlight = cancel
	c.inFlight = true
	stream, quality := c.stream, c.cfg.JPEGQuality
	go func() {
		defer recoverLog(c.logger, "frame encode goroutine panic")
		p, err := encodeFrame(ctx, stream, quality)
		cancel()
		c.events <- evtEncoded{payload: p, err: err, done: e.done}
	}()
}

// encodeFrame reads the current frame and compresses it to JPEG.
func encodeFrame(ctx context.Context, s MediaStream, quality int) (*Payload, error) {
	img, err := s.Frame(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return &Payload{Bytes: buf.Bytes(), MIME: "image/jpeg", Name: "capture.jpg"}, nil
}

func (c *Controller) handleEncoded(e evtEncoded) {
	if c.resolveFlight() {
		c.teardown()
		c.transition(StateIdle)
		c.notifyCancelWaiters()
		e.done <- ErrCancelled
		return
	}
	if e.err != nil {
		// No state change: the stream stays live and the caller may retry.
		e.done <- newError(ClassUnknown, e.err)
		return
	}
	c.captures.Add(1)
	c.setCapture(e.payload)
	c.releaseStream() // implicit deactivate, same transition
	c.transition(StateReviewing)
	e.done <- nil
}

func (c *Controller) handleImport(e evtImport) {
	if c.inFlight {
		e.done <- ErrBusy
		return
	}
	st := c.Current()
	if st != StateIdle && st != StateFailed {
		e.done <- ErrInvalidState
		return
	}
	mt, err := validateImport(e.mimeType, int64(len(e.data)), c.cfg.MaxImportBytes)
	if err != nil {
		e.done <- err
		return
	}
	c.imports.Add(1)
	c.setCapture(&Payload{Bytes: e.data, MIME: mt, Name: e.name})
	c.transition(StateReviewing)
	e.done <- nil
}

// validateImport checks the declared type and the size ceiling, returning the
// canonical media type on success.
func validateImport(declared string, size, max int64) (string, error) {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return "", newError(ClassInvalidFileType, nil)
	}
	if size > max {
		return "", newError(ClassFileTooLarge, nil)
	}
	return mt, nil
}

func (c *Controller) handleRetake(e evtRetake) {
	if c.inFlight {
		e.done <- ErrBusy
		return
	}
	c.mu.Lock()
	ok := c.state == StateReviewing || (c.state == StateFailed && c.payload != nil)
	c.mu.Unlock()
	if !ok {
		e.done <- ErrInvalidState
		return
	}
	c.releaseCapture()
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.transition(StateIdle)
	e.done <- nil
}

func (c *Controller) handleSubmit(e evtSubmit) {
	if c.inFlight {
		e.done <- submitResult{err: ErrBusy}
		return
	}
	c.mu.Lock()
	var ok bool
	if e.retry {
		ok = c.state == StateFailed && c.lastErr != nil && c.lastErr.Class == ClassSubmissionFailed
	} else {
		ok = c.state == StateReviewing
	}
	var payload Payload
	if ok && c.payload != nil {
		payload = *c.payload
	} else {
		ok = false
	}
	if ok {
		c.progress = 0
	}
	c.mu.Unlock()
	if !ok {
		e.done <- submitResult{err: ErrInvalidState}
		return
	}
	c.submissions.Add(1)
	c.transition(StateUploading)
	ctx, cancel := context.WithCancel(e.ctx)
	c.cancelFlight = cancel
	c.inFlight = true
	h := c.handoff
	progress := func(pct int) {
		select {
		case c.events <- evtProgress{pct: pct}:
		default:
		}
	}
	go func() {
		defer recoverLog(c.logger, "handoff goroutine panic")
		id, err := h.Submit(ctx, payload, progress)
		cancel()
		c.events <- evtHandoff{id: id, err: err, done: e.done}
	}()
}

func (c *Controller) handleProgress(e evtProgress) {
	c.mu.Lock()
	if c.state == StateUploading {
		pct := e.pct
		if pct > 100 {
			pct = 100
		}
		if pct > c.progress {
			c.progress = pct
		}
	}
	c.mu.Unlock()
}

func (c *Controller) handleHandoff(e evtHandoff) {
	if c.resolveFlight() {
		c.teardown()
		c.transition(StateIdle)
		c.notifyCancelWaiters()
		e.done <- submitResult{err: ErrCancelled}
		return
	}
	if e.err != nil {
		cls := newError(ClassSubmissionFailed, e.err)
		c.failures.Add(1)
		c.mu.Lock()
		c.lastErr = cls
		c.mu.Unlock()
		// Payload and preview are preserved for Retry.
		c.transition(StateFailed)
		e.done <- submitResult{err: cls}
		return
	}
	c.mu.Lock()
	c.handoffID = e.id
	c.lastErr = nil
	if c.progress < 100 {
		c.progress = 100
	}
	c.mu.Unlock()
	c.transition(StateCompleted)
	e.done <- submitResult{id: e.id}
}

func (c *Controller) handleCancel(e evtCancel) {
	if c.inFlight {
		c.cancelWait = append(c.cancelWait, e.done)
		if c.cancelFlight != nil {
			c.cancelFlight()
		}
		return
	}
	c.teardown()
	c.transition(StateIdle)
	close(e.done)
}

// send posts an event unless the controller has shut down.
func (c *Controller) send(ev interface{}) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.quit:
		return ErrClosed
	}
}

// Public API implements ControllerContract.

// Activate requests the media stream and blocks until the session is
// Streaming, Failed, or cancelled.
func (c *Controller) Activate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)
	if err := c.send(evtActivate{ctx: ctx, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-c.quit:
		return ErrClosed
	}
}

// Deactivate stops every track of the bound stream and clears the handle.
// Idempotent: with no active handle it is a no-op, never an error.
func (c *Controller) Deactivate() {
	done := make(chan struct{})
	if err := c.send(evtDeactivate{done: done}); err != nil {
		return
	}
	select {
	case <-done:
	case <-c.quit:
	}
}

// CaptureFrame reads the current frame of the live stream, encodes it, and
// moves the session to Reviewing, releasing the stream in the same transition.
func (c *Controller) CaptureFrame(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)
	if err := c.send(evtCaptureFrame{ctx: ctx, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-c.quit:
		return ErrClosed
	}
}

// ImportFile validates and adopts an externally chosen image, bypassing the
// stream path entirely.
func (c *Controller) ImportFile(name, mimeType string, data []byte) error {
	done := make(chan error, 1)
	if err := c.send(evtImport{name: name, mimeType: mimeType, data: data, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-c.quit:
		return ErrClosed
	}
}

// Retake discards the captured image and returns to Idle.
func (c *Controller) Retake() error {
	done := make(chan error, 1)
	if err := c.send(evtRetake{done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-c.quit:
		return ErrClosed
	}
}

// Submit hands the captured image to the session collaborator and returns the
// opaque identifier it issued.
func (c *Controller) Submit(ctx context.Context) (string, error) {
	return c.submit(ctx, false)
}

// Retry re-attempts a failed submission with the preserved payload. Valid only
// after a SubmissionFailed classification.
func (c *Controller) Retry(ctx context.Context) (string, error) {
	return c.submit(ctx, true)
}

func (c *Controller) submit(ctx context.Context, retry bool) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan submitResult, 1)
	if err := c.send(evtSubmit{ctx: ctx, retry: retry, done: done}); err != nil {
		return "", err
	}
	select {
	case res := <-done:
		return res.id, res.err
	case <-c.quit:
		return "", ErrClosed
	}
}

// Cancel performs full teardown and returns the session to Idle. Safe while
// an acquisition or submission is pending; it resolves once the pending stage
// does. Always succeeds.
func (c *Controller) Cancel() {
	done := make(chan struct{})
	if err := c.send(evtCancel{done: done}); err != nil {
		return
	}
	select {
	case <-done:
	case <-c.quit:
	}
}

// AddListener registers a transition listener.
func (c *Controller) AddListener(l StateListener) { _ = c.send(evtAddListener{l: l}) }

// Close tears the controller down and stops the event loop. Idempotent.
func (c *Controller) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		<-c.quit
		return
	}
	select {
	case c.events <- evtClose{}:
	case <-c.quit:
		return
	}
	<-c.quit
}

// Current returns the session state.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the classification carried by the last Failed entry, or
// nil after a successful transition cleared it.
func (c *Controller) LastError() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Permission reports the tri-state acquisition permission outcome.
func (c *Controller) Permission() PermissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// Progress returns the upload percentage, monotonically non-decreasing while
// Uploading.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// CapturedImage returns the owned payload, nil outside the states that carry
// one. Callers must treat it as read-only.
func (c *Controller) CapturedImage() *Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}

// Preview returns the current display handle, nil when none is live.
func (c *Controller) Preview() *Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// HandoffID returns the identifier recorded by the last completed submission.
func (c *Controller) HandoffID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handoffID
}

// Stats returns activity counters since construction.
func (c *Controller) Stats() Stats {
	return Stats{
		Activations: c.activations.Load(),
		Captures:    c.captures.Load(),
		Imports:     c.imports.Load(),
		Submissions: c.submissions.Load(),
		Failures:    c.failures.Load(),
	}
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.Error(msg, "error", r)
		}
	}
}

// Ensure contract satisfaction
var _ ControllerContract = (*Controller)(nil)
