package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/spur.analyzer/internal/spur"
	"github.com/banshee-data/spur.analyzer/internal/units"
)

// DefaultConfigPath is the path to the canonical analyzer defaults file.
const DefaultConfigPath = "config/analyzer.defaults.json"

// MixerFileExtensions are the accepted harmonics table file extensions.
var MixerFileExtensions = []string{".spr", ".csv"}

// AnalyzerConfig is the startup configuration. Frequency fields share the
// unit named by Units. Omitted fields fall back to the Get* defaults, so
// partial configs are safe.
type AnalyzerConfig struct {
	// Scene params
	RFMin    *float64 `json:"rf_min,omitempty"`
	RFMax    *float64 `json:"rf_max,omitempty"`
	IFMin    *float64 `json:"if_min,omitempty"`
	IFMax    *float64 `json:"if_max,omitempty"`
	LO       *float64 `json:"lo,omitempty"`
	MaxHarm  *int     `json:"max_harm,omitempty"`
	UseAlpha *bool    `json:"use_alpha,omitempty"`

	// Presentation
	Units        *string  `json:"units,omitempty"`
	PlotWidthIn  *float64 `json:"plot_width_in,omitempty"`
	PlotHeightIn *float64 `json:"plot_height_in,omitempty"`

	// Mixer table loaded at startup instead of the built-in default
	MixerFile *string `json:"mixer_file,omitempty"`

	// Server
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalyzerConfig returns an AnalyzerConfig with all fields set to nil.
func EmptyAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{}
}

// DefaultAnalyzerConfig returns a config with every field populated from
// the built-in defaults.
func DefaultAnalyzerConfig() *AnalyzerConfig {
	c := EmptyAnalyzerConfig()
	return &AnalyzerConfig{
		RFMin:        ptrFloat64(c.GetRFMin()),
		RFMax:        ptrFloat64(c.GetRFMax()),
		IFMin:        ptrFloat64(c.GetIFMin()),
		IFMax:        ptrFloat64(c.GetIFMax()),
		LO:           ptrFloat64(c.GetLO()),
		MaxHarm:      ptrInt(c.GetMaxHarm()),
		UseAlpha:     ptrBool(c.GetUseAlpha()),
		Units:        ptrString(c.GetUnits()),
		PlotWidthIn:  ptrFloat64(c.GetPlotWidthIn()),
		PlotHeightIn: ptrFloat64(c.GetPlotHeightIn()),
		Listen:       ptrString(c.GetListen()),
		DBPath:       ptrString(c.GetDBPath()),
	}
}

// LoadAnalyzerConfig loads an AnalyzerConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadAnalyzerConfig(path string) (*AnalyzerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalyzerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalyzerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalyzerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that would otherwise fail later in a confusing
// place. Frequency ranges are not checked here; the engine clamps them.
func (c *AnalyzerConfig) Validate() error {
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
	}

	if c.PlotWidthIn != nil && *c.PlotWidthIn <= 0 {
		return fmt.Errorf("plot_width_in must be positive, got %g", *c.PlotWidthIn)
	}
	if c.PlotHeightIn != nil && *c.PlotHeightIn <= 0 {
		return fmt.Errorf("plot_height_in must be positive, got %g", *c.PlotHeightIn)
	}

	if c.MixerFile != nil && *c.MixerFile != "" {
		ext := strings.ToLower(filepath.Ext(*c.MixerFile))
		ok := false
		for _, e := range MixerFileExtensions {
			if ext == e {
				ok = true
			}
		}
		if !ok {
			return fmt.Errorf("mixer_file must have one of %s extensions, got %q", strings.Join(MixerFileExtensions, ", "), ext)
		}
	}

	return nil
}

// Params returns the scene parameters this config describes.
func (c *AnalyzerConfig) Params() spur.Params {
	return spur.Params{
		RFMin:    c.GetRFMin(),
		RFMax:    c.GetRFMax(),
		IFMin:    c.GetIFMin(),
		IFMax:    c.GetIFMax(),
		LO:       c.GetLO(),
		MaxHarm:  c.GetMaxHarm(),
		UseAlpha: c.GetUseAlpha(),
	}
}

// GetRFMin returns the rf_min value or the default.
func (c *AnalyzerConfig) GetRFMin() float64 {
	if c.RFMin == nil {
		return 1000
	}
	return *c.RFMin
}

// GetRFMax returns the rf_max value or the default.
func (c *AnalyzerConfig) GetRFMax() float64 {
	if c.RFMax == nil {
		return 1500
	}
	return *c.RFMax
}

// GetIFMin returns the if_min value or the default.
func (c *AnalyzerConfig) GetIFMin() float64 {
	if c.IFMin == nil {
		return 0
	}
	return *c.IFMin
}

// GetIFMax returns the if_max value or the default.
func (c *AnalyzerConfig) GetIFMax() float64 {
	if c.IFMax == nil {
		return 500
	}
	return *c.IFMax
}

// GetLO returns the lo value or the default.
func (c *AnalyzerConfig) GetLO() float64 {
	if c.LO == nil {
		return 2000
	}
	return *c.LO
}

// GetMaxHarm returns the max_harm value or the default.
func (c *AnalyzerConfig) GetMaxHarm() int {
	if c.MaxHarm == nil {
		return 5
	}
	return *c.MaxHarm
}

// GetUseAlpha returns the use_alpha value or the default.
func (c *AnalyzerConfig) GetUseAlpha() bool {
	if c.UseAlpha == nil {
		return true // default: weaker spurs fade
	}
	return *c.UseAlpha
}

// GetUnits returns the units value or the default.
func (c *AnalyzerConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.MHz
	}
	return *c.Units
}

// GetPlotWidthIn returns the plot_width_in value or the default.
func (c *AnalyzerConfig) GetPlotWidthIn() float64 {
	if c.PlotWidthIn == nil {
		return 10
	}
	return *c.PlotWidthIn
}

// GetPlotHeightIn returns the plot_height_in value or the default.
func (c *AnalyzerConfig) GetPlotHeightIn() float64 {
	if c.PlotHeightIn == nil {
		return 6
	}
	return *c.PlotHeightIn
}

// GetMixerFile returns the mixer_file value, or "" for the built-in table.
func (c *AnalyzerConfig) GetMixerFile() string {
	if c.MixerFile == nil {
		return ""
	}
	return *c.MixerFile
}

// GetListen returns the listen address or the default.
func (c *AnalyzerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8090"
	}
	return *c.Listen
}

// GetDBPath returns the db_path value or the default.
func (c *AnalyzerConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "spur_analyzer.db"
	}
	return *c.DBPath
}
