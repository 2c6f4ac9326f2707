// Package config loads the plate pipeline's tunables from JSON.
//
// Every field is optional: a nil pointer means "use the default", and the Get*
// accessors hold those defaults. The same JSON shape is served by the HTTP API
// at /api/config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/plate/recognize"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig is the root configuration for plate recognition.
type PipelineConfig struct {
	// Preprocessing
	StandardContrast   *float64  `json:"standard_contrast,omitempty"`
	Threshold          *int      `json:"threshold,omitempty"`
	AggressiveContrast *float64  `json:"aggressive_contrast,omitempty"`
	BlockSize          *int      `json:"block_size,omitempty"`
	AdaptiveOffset     *float64  `json:"adaptive_offset,omitempty"`
	RotationAngles     []float64 `json:"rotation_angles,omitempty"`

	// Selection
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	MinTextLength *int     `json:"min_text_length,omitempty"`
	Parallel      *bool    `json:"parallel,omitempty"`

	// Recognizer
	RecognizerTimeout  *string `json:"recognizer_timeout,omitempty"` // duration string like "15s"
	RecognizerEndpoint *string `json:"recognizer_endpoint,omitempty"`
	Language           *string `json:"language,omitempty"`
	Whitelist          *string `json:"whitelist,omitempty"`
	PageSegMode        *int    `json:"page_seg_mode,omitempty"`

	// Frame adjustments applied before preprocessing
	Frame *FrameConfig `json:"frame,omitempty"`
}

// FrameConfig mirrors preprocess.Settings.
type FrameConfig struct {
	Contrast   *float64 `json:"contrast,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Sharpen    *bool    `json:"sharpen,omitempty"`
	AutoCrop   *bool    `json:"auto_crop,omitempty"`
}

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParsePipelineConfig(data)
}

// ParsePipelineConfig decodes and validates JSON config bytes.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. Panics if the file cannot be loaded; intended for test
// setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are in range.
func (c *PipelineConfig) Validate() error {
	for name, v := range map[string]*float64{
		"standard_contrast":   c.StandardContrast,
		"aggressive_contrast": c.AggressiveContrast,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 255) {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", *c.Threshold)
	}
	if c.BlockSize != nil && (*c.BlockSize < 3 || *c.BlockSize%2 == 0) {
		return fmt.Errorf("block_size must be an odd number >= 3, got %d", *c.BlockSize)
	}
	for _, a := range c.RotationAngles {
		if a < -45 || a > 45 {
			return fmt.Errorf("rotation_angles must be within ±45 degrees, got %f", a)
		}
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 100) {
		return fmt.Errorf("min_confidence must be between 0 and 100, got %f", *c.MinConfidence)
	}
	if c.MinTextLength != nil && *c.MinTextLength < 1 {
		return fmt.Errorf("min_text_length must be at least 1, got %d", *c.MinTextLength)
	}
	if c.RecognizerTimeout != nil && *c.RecognizerTimeout != "" {
		if _, err := time.ParseDuration(*c.RecognizerTimeout); err != nil {
			return fmt.Errorf("invalid recognizer_timeout '%s': %w", *c.RecognizerTimeout, err)
		}
	}
	if c.PageSegMode != nil && (*c.PageSegMode < 0 || *c.PageSegMode > 13) {
		return fmt.Errorf("page_seg_mode must be between 0 and 13, got %d", *c.PageSegMode)
	}
	if f := c.Frame; f != nil {
		if f.Contrast != nil && *f.Contrast <= 0 {
			return fmt.Errorf("frame.contrast must be positive, got %f", *f.Contrast)
		}
		if f.Brightness != nil && *f.Brightness <= 0 {
			return fmt.Errorf("frame.brightness must be positive, got %f", *f.Brightness)
		}
	}
	return nil
}

// GetStandardContrast returns the standard_contrast value or the default.
func (c *PipelineConfig) GetStandardContrast() float64 {
	if c.StandardContrast == nil {
		return preprocess.DefaultStandardContrast
	}
	return *c.StandardContrast
}

// GetThreshold returns the threshold value or the default.
func (c *PipelineConfig) GetThreshold() int {
	if c.Threshold == nil {
		return preprocess.DefaultThreshold
	}
	return *c.Threshold
}

// GetAggressiveContrast returns the aggressive_contrast value or the default.
func (c *PipelineConfig) GetAggressiveContrast() float64 {
	if c.AggressiveContrast == nil {
		return preprocess.DefaultAggressiveContrast
	}
	return *c.AggressiveContrast
}

// GetBlockSize returns the block_size value or the default.
func (c *PipelineConfig) GetBlockSize() int {
	if c.BlockSize == nil {
		return preprocess.DefaultBlockSize
	}
	return *c.BlockSize
}

// GetAdaptiveOffset returns the adaptive_offset value or the default.
func (c *PipelineConfig) GetAdaptiveOffset() float64 {
	if c.AdaptiveOffset == nil {
		return preprocess.DefaultOffset
	}
	return *c.AdaptiveOffset
}

// GetRotationAngles returns a copy of rotation_angles or the defaults.
func (c *PipelineConfig) GetRotationAngles() []float64 {
	src := c.RotationAngles
	if len(src) == 0 {
		src = preprocess.DefaultAngles
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *PipelineConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 50
	}
	return *c.MinConfidence
}

// GetMinTextLength returns the min_text_length value or the default.
func (c *PipelineConfig) GetMinTextLength() int {
	if c.MinTextLength == nil {
		return 6
	}
	return *c.MinTextLength
}

// GetParallel returns the parallel value or the default.
func (c *PipelineConfig) GetParallel() bool {
	if c.Parallel == nil {
		return false // default: modes run in order
	}
	return *c.Parallel
}

// GetRecognizerTimeout parses and returns recognizer_timeout.
func (c *PipelineConfig) GetRecognizerTimeout() time.Duration {
	if c.RecognizerTimeout == nil || *c.RecognizerTimeout == "" {
		return recognize.DefaultTimeout
	}
	d, err := time.ParseDuration(*c.RecognizerTimeout)
	if err != nil {
		return recognize.DefaultTimeout // default on parse error
	}
	return d
}

// GetRecognizerEndpoint returns the remote OCR endpoint, empty for the local
// engine.
func (c *PipelineConfig) GetRecognizerEndpoint() string {
	if c.RecognizerEndpoint == nil {
		return ""
	}
	return *c.RecognizerEndpoint
}

// GetLanguage returns the language value or the default.
func (c *PipelineConfig) GetLanguage() string {
	if c.Language == nil || *c.Language == "" {
		return "eng"
	}
	return *c.Language
}

// GetWhitelist returns the whitelist value or the plate character set.
func (c *PipelineConfig) GetWhitelist() string {
	if c.Whitelist == nil {
		return recognize.PlateWhitelist
	}
	return *c.Whitelist
}

// GetPageSegMode returns the page_seg_mode value or the default.
func (c *PipelineConfig) GetPageSegMode() recognize.PageSegMode {
	if c.PageSegMode == nil {
		return recognize.PageSegSingleBlock
	}
	return recognize.PageSegMode(*c.PageSegMode)
}

// Preprocessor builds the preprocessing stage from this config.
func (c *PipelineConfig) Preprocessor() *preprocess.Preprocessor {
	return &preprocess.Preprocessor{
		StandardContrast:   c.GetStandardContrast(),
		Threshold:          uint8(c.GetThreshold()),
		AggressiveContrast: c.GetAggressiveContrast(),
		BlockSize:          c.GetBlockSize(),
		Offset:             c.GetAdaptiveOffset(),
		Angles:             c.GetRotationAngles(),
	}
}

// RecognizeOptions builds the per-call recognizer options.
func (c *PipelineConfig) RecognizeOptions() recognize.Options {
	return recognize.Options{
		Language:    c.GetLanguage(),
		Whitelist:   c.GetWhitelist(),
		PageSegMode: c.GetPageSegMode(),
	}
}

// FrameSettings returns the capture-side adjustments.
func (c *PipelineConfig) FrameSettings() preprocess.Settings {
	s := preprocess.DefaultSettings()
	s.Language = c.GetLanguage()
	f := c.Frame
	if f == nil {
		return s
	}
	if f.Contrast != nil {
		s.Contrast = *f.Contrast
	}
	if f.Brightness != nil {
		s.Brightness = *f.Brightness
	}
	if f.Sharpen != nil {
		s.Sharpen = *f.Sharpen
	}
	if f.AutoCrop != nil {
		s.AutoCrop = *f.AutoCrop
	}
	return s
}

// Resolved returns a copy with every field populated from its effective
// value, suitable for display.
func (c *PipelineConfig) Resolved() *PipelineConfig {
	fs := c.FrameSettings()
	return &PipelineConfig{
		StandardContrast:   ptrFloat64(c.GetStandardContrast()),
		Threshold:          ptrInt(c.GetThreshold()),
		AggressiveContrast: ptrFloat64(c.GetAggressiveContrast()),
		BlockSize:          ptrInt(c.GetBlockSize()),
		AdaptiveOffset:     ptrFloat64(c.GetAdaptiveOffset()),
		RotationAngles:     c.GetRotationAngles(),
		MinConfidence:      ptrFloat64(c.GetMinConfidence()),
		MinTextLength:      ptrInt(c.GetMinTextLength()),
		Parallel:           ptrBool(c.GetParallel()),
		RecognizerTimeout:  ptrString(c.GetRecognizerTimeout().String()),
		RecognizerEndpoint: ptrString(c.GetRecognizerEndpoint()),
		Language:           ptrString(c.GetLanguage()),
		Whitelist:          ptrString(c.GetWhitelist()),
		PageSegMode:        ptrInt(int(c.GetPageSegMode())),
		Frame: &FrameConfig{
			Contrast:   ptrFloat64(fs.Contrast),
			Brightness: ptrFloat64(fs.Brightness),
			Sharpen:    ptrBool(fs.Sharpen),
			AutoCrop:   ptrBool(fs.AutoCrop),
		},
	}
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
