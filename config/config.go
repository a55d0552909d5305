package config

import (
	"encoding/json"
	"os"
)

// Config holds runtime configuration for capture and handoff behavior.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Capture parameters
	JPEGQuality    int   `json:"jpeg_quality"`
	MaxImportBytes int64 `json:"max_import_bytes"`
	ThumbnailMax   int   `json:"thumbnail_max"`

	// Resolution hint overrides; 0 means derive from device capability.
	CaptureWidth  int `json:"capture_width"`
	CaptureHeight int `json:"capture_height"`

	// Handoff parameters. Empty URL selects the local simulated handoff.
	HandoffURL       string `json:"handoff_url"`
	SimulateSteps    int    `json:"simulate_steps"`
	SimulateStepMs   int    `json:"simulate_step_ms"`
	HandoffTimeoutMs int    `json:"handoff_timeout_ms"`
}

const (
	defaultJPEGQuality    = 90
	defaultMaxImportBytes = 10 << 20 // 10 MiB
	defaultThumbnailMax   = 320
	defaultSimulateSteps  = 5
	defaultSimulateStepMs = 50
	defaultHandoffTimeout = 15000
)

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:            false,
		JPEGQuality:      defaultJPEGQuality,
		MaxImportBytes:   defaultMaxImportBytes,
		ThumbnailMax:     defaultThumbnailMax,
		CaptureWidth:     0,
		CaptureHeight:    0,
		HandoffURL:       "",
		SimulateSteps:    defaultSimulateSteps,
		SimulateStepMs:   defaultSimulateStepMs,
		HandoffTimeoutMs: defaultHandoffTimeout,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = defaultJPEGQuality
	}
	if c.MaxImportBytes <= 0 {
		c.MaxImportBytes = defaultMaxImportBytes
	}
	if c.ThumbnailMax < 0 {
		c.ThumbnailMax = defaultThumbnailMax
	}
	if c.CaptureWidth < 0 {
		c.CaptureWidth = 0
	}
	if c.CaptureHeight < 0 {
		c.CaptureHeight = 0
	}
	if c.SimulateSteps <= 0 {
		c.SimulateSteps = defaultSimulateSteps
	}
	if c.SimulateStepMs < 0 {
		c.SimulateStepMs = defaultSimulateStepMs
	}
	if c.HandoffTimeoutMs <= 0 {
		c.HandoffTimeoutMs = defaultHandoffTimeout
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
