// Package config loads optional tuning overrides for the tracker and the
// motion extractor. All fields are pointers so a partial JSON file only
// overrides what it names; everything else keeps the built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/video"
)

// TuningConfig is the root tuning schema. The JSON shape is stable; new
// knobs get new optional fields.
type TuningConfig struct {
	// Tracker params
	SearchRadiusPx     *float64 `json:"search_radius_px,omitempty"`
	SearchWindowHalfPx *int     `json:"search_window_half_px,omitempty"`
	SignatureMaxL1     *float64 `json:"signature_max_l1,omitempty"`
	BootstrapFrames    *int     `json:"bootstrap_frames,omitempty"`
	AreaCostWeight     *float64 `json:"area_cost_weight,omitempty"`
	MinBlobArea        *float64 `json:"min_blob_area,omitempty"`
	MaxBlobArea        *float64 `json:"max_blob_area,omitempty"`

	// Kalman filter params
	ProcessNoisePos  *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel  *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`

	// Motion extractor params
	DiffThreshold *float64 `json:"diff_threshold,omitempty"`

	// Worker pool params
	Workers      *int    `json:"workers,omitempty"`
	PollInterval *string `json:"poll_interval,omitempty"` // duration string like "250ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.SearchRadiusPx != nil && *c.SearchRadiusPx <= 0 {
		return fmt.Errorf("search_radius_px must be positive, got %f", *c.SearchRadiusPx)
	}
	if c.SearchWindowHalfPx != nil && *c.SearchWindowHalfPx <= 0 {
		return fmt.Errorf("search_window_half_px must be positive, got %d", *c.SearchWindowHalfPx)
	}
	if c.SignatureMaxL1 != nil && *c.SignatureMaxL1 <= 0 {
		return fmt.Errorf("signature_max_l1 must be positive, got %f", *c.SignatureMaxL1)
	}
	if c.MinBlobArea != nil && *c.MinBlobArea < 0 {
		return fmt.Errorf("min_blob_area must be non-negative, got %f", *c.MinBlobArea)
	}
	if c.MinBlobArea != nil && c.MaxBlobArea != nil && *c.MaxBlobArea < *c.MinBlobArea {
		return fmt.Errorf("max_blob_area %f below min_blob_area %f", *c.MaxBlobArea, *c.MinBlobArea)
	}
	if c.DiffThreshold != nil && (*c.DiffThreshold < 0 || *c.DiffThreshold > 255) {
		return fmt.Errorf("diff_threshold must be between 0 and 255, got %f", *c.DiffThreshold)
	}
	if c.Workers != nil && *c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if c.PollInterval != nil && *c.PollInterval != "" {
		if _, err := time.ParseDuration(*c.PollInterval); err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
	}
	return nil
}

// TrackerConfig materializes the tracker tuning: defaults overlaid with any
// configured fields.
func (c *TuningConfig) TrackerConfig() pipeline.TrackerConfig {
	cfg := pipeline.DefaultTrackerConfig()
	if c.SearchRadiusPx != nil {
		cfg.SearchRadiusPx = *c.SearchRadiusPx
	}
	if c.SearchWindowHalfPx != nil {
		cfg.SearchWindowHalfPx = *c.SearchWindowHalfPx
	}
	if c.SignatureMaxL1 != nil {
		cfg.SignatureMaxL1 = *c.SignatureMaxL1
	}
	if c.BootstrapFrames != nil {
		cfg.BootstrapFrames = *c.BootstrapFrames
	}
	if c.AreaCostWeight != nil {
		cfg.AreaCostWeight = *c.AreaCostWeight
	}
	if c.MinBlobArea != nil {
		cfg.MinBlobArea = *c.MinBlobArea
	}
	if c.MaxBlobArea != nil {
		cfg.MaxBlobArea = *c.MaxBlobArea
	}
	if c.ProcessNoisePos != nil {
		cfg.Filter.ProcessNoisePos = *c.ProcessNoisePos
	}
	if c.ProcessNoiseVel != nil {
		cfg.Filter.ProcessNoiseVel = *c.ProcessNoiseVel
	}
	if c.MeasurementNoise != nil {
		cfg.Filter.MeasurementNoise = *c.MeasurementNoise
	}
	return cfg
}

// Extractor materializes the motion extractor: defaults overlaid with any
// configured fields.
func (c *TuningConfig) Extractor() *video.GoCVExtractor {
	ext := video.NewGoCVExtractor()
	if c.DiffThreshold != nil {
		ext.DiffThreshold = float32(*c.DiffThreshold)
	}
	if c.MinBlobArea != nil {
		ext.MinBlobArea = *c.MinBlobArea
	}
	if c.MaxBlobArea != nil {
		ext.MaxBlobArea = *c.MaxBlobArea
	}
	return ext
}

// GetWorkers returns the workers value, or zero to take the pool default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetPollInterval parses and returns the PollInterval as a time.Duration,
// or zero to take the pool default.
func (c *TuningConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil {
		return 0
	}
	return d
}
