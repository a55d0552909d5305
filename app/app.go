package app

import (
	"context"
	"fmt"
	"os"

	"github.com/devkan/FirstAidVox-sub002/domain/capture"
)

// RunCapture drives the stream path end to end: activate the device, capture
// one frame, review implicitly, and hand the image off to the session.
// When outPath is non-empty the encoded payload is also written to disk.
func RunCapture(ctx context.Context, c *Container, outPath string) (string, error) {
	ctrl := c.Controller
	if err := ctrl.Activate(ctx); err != nil {
		return "", fmt.Errorf("activate: %w", err)
	}
	if err := ctrl.CaptureFrame(ctx); err != nil {
		ctrl.Cancel()
		return "", fmt.Errorf("capture frame: %w", err)
	}
	if outPath != "" {
		if err := writePayload(ctrl.CapturedImage(), outPath); err != nil {
			ctrl.Cancel()
			return "", err
		}
	}
	return submitAndLog(ctx, c)
}

// RunImport drives the file path: validate the chosen image and hand it off.
func RunImport(ctx context.Context, c *Container, name, mimeType string, data []byte) (string, error) {
	if err := c.Controller.ImportFile(name, mimeType, data); err != nil {
		return "", fmt.Errorf("import %s: %w", name, err)
	}
	return submitAndLog(ctx, c)
}

func submitAndLog(ctx context.Context, c *Container) (string, error) {
	id, err := c.Controller.Submit(ctx)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if c.Logger != nil {
		c.Logger.Info("image handed off to session",
			"id", id,
			"state", c.Controller.Current().String(),
			"progress", c.Controller.Progress(),
		)
	}
	return id, nil
}

func writePayload(p *capture.Payload, path string) error {
	if p == nil {
		return fmt.Errorf("no captured payload to write")
	}
	if err := os.WriteFile(path, p.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
