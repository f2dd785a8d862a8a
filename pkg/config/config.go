// Package config provides configuration loading and management for mritk.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mritk/pkg/concentration"
	"mritk/pkg/orientation"
	"mritk/pkg/volume"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Geometry parameters
	Geometry struct {
		// Rtol is the relative tolerance for comparing affines of two volumes
		Rtol float64 `yaml:"rtol"`

		// Orientation names the world coordinate system of loaded volumes
		Orientation string `yaml:"orientation"`

		// Neighbours is how many valid voxels to return per query
		Neighbours int `yaml:"neighbours"`
	} `yaml:"geometry"`

	// Concentration parameters
	Concentration struct {
		// Relaxivity is the contrast agent T1 relaxivity r1 in 1/(mM ms)
		Relaxivity float64 `yaml:"relaxivity"`

		// R1Scale converts T1 to R1 units
		R1Scale float64 `yaml:"r1Scale"`

		// T1Low and T1High bound the T1 values converted to R1. A zero
		// T1High means no upper bound.
		T1Low  float64 `yaml:"t1Low"`
		T1High float64 `yaml:"t1High"`
	} `yaml:"concentration"`

	// View parameters
	View struct {
		// SliceX, SliceY and SliceZ are relative (0-1) slice positions
		SliceX float64 `yaml:"sliceX"`
		SliceY float64 `yaml:"sliceY"`
		SliceZ float64 `yaml:"sliceZ"`

		// Format is the image format, png or jpg
		Format string `yaml:"format"`
	} `yaml:"view"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Geometry.Rtol = volume.DefaultRtol
	cfg.Geometry.Orientation = orientation.RAS
	cfg.Geometry.Neighbours = 1

	cfg.Concentration.Relaxivity = concentration.DefaultRelaxivity
	cfg.Concentration.R1Scale = concentration.DefaultR1Scale
	cfg.Concentration.T1Low = 1

	cfg.View.SliceX = 0.5
	cfg.View.SliceY = 0.5
	cfg.View.SliceZ = 0.5
	cfg.View.Format = "png"

	return cfg
}

// T1Bounds returns the configured T1 window.
func (c *Config) T1Bounds() concentration.T1Bounds {
	b := concentration.T1Bounds{Low: c.Concentration.T1Low, High: c.Concentration.T1High}
	if b.High == 0 {
		b.High = math.Inf(1)
	}
	return b
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if c.Geometry.Rtol < 0 {
		return fmt.Errorf("geometry.rtol must be non-negative, got %g", c.Geometry.Rtol)
	}
	if err := orientation.Validate(c.Geometry.Orientation); err != nil {
		return fmt.Errorf("geometry.orientation: %w", err)
	}
	if c.Geometry.Neighbours < 1 {
		return fmt.Errorf("geometry.neighbours must be at least 1, got %d", c.Geometry.Neighbours)
	}
	if c.Concentration.Relaxivity <= 0 {
		return fmt.Errorf("concentration.relaxivity must be positive, got %g", c.Concentration.Relaxivity)
	}
	if b := c.T1Bounds(); b.Low > b.High {
		return fmt.Errorf("concentration.t1Low %g exceeds t1High %g", b.Low, b.High)
	}
	for _, f := range []float64{c.View.SliceX, c.View.SliceY, c.View.SliceZ} {
		if f < 0 || f > 1 {
			return fmt.Errorf("view slice positions must be in [0, 1], got %g", f)
		}
	}
	switch c.View.Format {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("view.format must be png or jpg, got %q", c.View.Format)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
