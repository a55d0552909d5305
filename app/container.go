package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/devkan/FirstAidVox-sub002/camera"
	"github.com/devkan/FirstAidVox-sub002/config"
	"github.com/devkan/FirstAidVox-sub002/domain/capture"
	"github.com/devkan/FirstAidVox-sub002/domain/device"
	"github.com/devkan/FirstAidVox-sub002/domain/handoff"
)

// Container assembles config, device, handoff and the capture controller.
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Capability  device.Capability
	Constraints device.Constraints
	Device      capture.StreamDevice
	Handoff     capture.Handoff
	Tracker     *handoff.Tracker
	Controller  *capture.Controller
}

// BuildContainer constructs all components. Side-effects limited to probing
// host signals; the controller event loop starts immediately.
func BuildContainer(cfg *config.Config, logger *slog.Logger, signals device.Signals) *Container {
	c := &Container{Config: cfg, Logger: logger}
	c.Capability = device.Probe(signals)
	c.Constraints = device.BuildConstraints(c.Capability)
	if cfg.CaptureWidth > 0 {
		c.Constraints.Width = cfg.CaptureWidth
	}
	if cfg.CaptureHeight > 0 {
		c.Constraints.Height = cfg.CaptureHeight
	}
	c.Device = &camera.ScreenDevice{Logger: logger}
	c.Tracker = handoff.NewTracker()
	if cfg.HandoffURL != "" {
		c.Handoff = &handoff.WS{
			URL:     cfg.HandoffURL,
			Timeout: time.Duration(cfg.HandoffTimeoutMs) * time.Millisecond,
			Logger:  logger,
			Tracker: c.Tracker,
		}
	} else {
		c.Handoff = &handoff.Simulated{
			Steps:     cfg.SimulateSteps,
			StepDelay: time.Duration(cfg.SimulateStepMs) * time.Millisecond,
			Logger:    logger,
		}
	}
	c.Controller = capture.NewController(logger, cfg, c.Device, c.Handoff, c.Constraints)
	return c
}

// Shutdown closes the controller and waits for in-flight handoffs to drain.
func (c *Container) Shutdown(timeout time.Duration) {
	c.Controller.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Tracker.Wait(ctx); err != nil {
		c.Tracker.CancelAll()
		if c.Logger != nil {
			c.Logger.Warn("handoff drain timed out", "error", err)
		}
	}
}
