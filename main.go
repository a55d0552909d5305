package main

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/devkan/FirstAidVox-sub002/app"
	"github.com/devkan/FirstAidVox-sub002/assets"
	"github.com/devkan/FirstAidVox-sub002/config"
	"github.com/devkan/FirstAidVox-sub002/debug"
	"github.com/devkan/FirstAidVox-sub002/domain/device"
)

const shutdownGrace = 5 * time.Second

func main() {
	var (
		cfgPath    string
		debugFlag  bool
		handoffURL string
		mobile     bool
	)

	root := &cobra.Command{
		Use:          "favcapture",
		Short:        "Capture an image and hand it off to a FirstAidVox session",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "favcapture.json", "path to the JSON config file")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging and runtime stats")
	root.PersistentFlags().StringVar(&handoffURL, "handoff-url", "", "websocket session endpoint; empty simulates the handoff locally")
	root.PersistentFlags().BoolVar(&mobile, "mobile", false, "probe as a mobile-class device (rear-facing preference)")

	build := func() (*app.Container, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		if debugFlag {
			cfg.Debug = true
		}
		if handoffURL != "" {
			cfg.HandoffURL = handoffURL
		}
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger := NewLogger(level)
		if cfg.Debug {
			debug.StartRuntimeLogger(2*time.Second, logger)
		}
		signals := device.Signals{}
		if mobile {
			signals = device.Signals{CoarsePointer: true, TouchPoints: 5, ViewportWidth: 390}
		}
		return app.BuildContainer(cfg, logger, signals), nil
	}

	var outPath string
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a frame from the live stream and submit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			defer c.Shutdown(shutdownGrace)
			id, err := app.RunCapture(cmd.Context(), c, outPath)
			if err != nil {
				return err
			}
			cmd.Println(id)
			return nil
		},
	}
	captureCmd.Flags().StringVarP(&outPath, "out", "o", "", "also write the captured JPEG to this path")

	var useSample bool
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import an image file and submit it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, mimeType, data, err := importSource(args, useSample)
			if err != nil {
				return err
			}
			c, err := build()
			if err != nil {
				return err
			}
			defer c.Shutdown(shutdownGrace)
			id, err := app.RunImport(cmd.Context(), c, name, mimeType, data)
			if err != nil {
				return err
			}
			cmd.Println(id)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&useSample, "sample", false, "use the embedded sample image")

	root.AddCommand(captureCmd, importCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// importSource resolves the import payload from the CLI arguments.
func importSource(args []string, useSample bool) (name, mimeType string, data []byte, err error) {
	if useSample || len(args) == 0 {
		return "sample.png", "image/png", assets.SamplePNG, nil
	}
	path := args[0]
	data, err = os.ReadFile(path)
	if err != nil {
		return "", "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	name = filepath.Base(path)
	mimeType = mime.TypeByExtension(filepath.Ext(path))
	return name, mimeType, data, nil
}
