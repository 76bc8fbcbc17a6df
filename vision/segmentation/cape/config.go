package cape

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/cape/utils"
)

// DefaultMinMergeDist is the lower bound of the per-cell merge distance tolerance when
// minMergeDist is not configured. Same unit as the point coordinates (millimeters for depth
// cameras).
const DefaultMinMergeDist = 20.0

// Config holds the parameters of the plane segmentation. All options are required except
// MinMergeDist.
type Config struct {
	// PatchSize is the side length of a grid cell in pixels.
	PatchSize int `json:"patchSize" yaml:"patchSize"`
	// HistogramBinsPerCoord is the number of bins of each spherical coordinate of the normal histogram.
	HistogramBinsPerCoord int `json:"histogramBinsPerCoord" yaml:"histogramBinsPerCoord"`
	// MinCosAngleForMerge is the smallest cosine between two neighbouring cell normals that may merge.
	MinCosAngleForMerge float64 `json:"minCosAngleForMerge" yaml:"minCosAngleForMerge"`
	// MaxMergeDist caps the per-cell point to plane distance tolerance.
	MaxMergeDist float64 `json:"maxMergeDist" yaml:"maxMergeDist"`
	// MinRegionGrowingCandidateSize is the smallest seed pool that still starts a region.
	MinRegionGrowingCandidateSize int `json:"minRegionGrowingCandidateSize" yaml:"minRegionGrowingCandidateSize"`
	// MinRegionGrowingCellsActivated is the smallest region, in cells, that can become a plane.
	MinRegionGrowingCellsActivated int `json:"minRegionGrowingCellsActivated" yaml:"minRegionGrowingCellsActivated"`
	// MinRegionPlanarityScore is the score a merged region must exceed to be accepted.
	MinRegionPlanarityScore float64 `json:"minRegionPlanarityScore" yaml:"minRegionPlanarityScore"`

	// DepthSigmaCoeff and DepthSigmaMargin model the depth noise: a cell is planar when its
	// fit MSE is at most (DepthSigmaCoeff*z² + DepthSigmaMargin)².
	DepthSigmaCoeff  float64 `json:"depthSigmaCoeff" yaml:"depthSigmaCoeff"`
	DepthSigmaMargin float64 `json:"depthSigmaMargin" yaml:"depthSigmaMargin"`
	// DepthDiscontinuityThreshold is the depth step between neighbouring pixels counted as a jump.
	DepthDiscontinuityThreshold float64 `json:"depthDiscontinuityThreshold" yaml:"depthDiscontinuityThreshold"`
	// MaxNumberDepthDiscontinuity is the number of jumps a cell's middle row or column may have.
	MaxNumberDepthDiscontinuity int `json:"maxNumberDepthDiscontinuity" yaml:"maxNumberDepthDiscontinuity"`

	// MinMergeDist is the floor of the per-cell distance tolerance. Zero means DefaultMinMergeDist.
	MinMergeDist float64 `json:"minMergeDist,omitempty" yaml:"minMergeDist,omitempty"`
}

// DefaultConfig returns parameters tuned for 640x480 depth cameras in millimeters.
func DefaultConfig() Config {
	return Config{
		PatchSize:                      12,
		HistogramBinsPerCoord:          20,
		MinCosAngleForMerge:            0.97814,
		MaxMergeDist:                   500,
		MinRegionGrowingCandidateSize:  5,
		MinRegionGrowingCellsActivated: 4,
		MinRegionPlanarityScore:        100,
		DepthSigmaCoeff:                1.425e-6,
		DepthSigmaMargin:               10,
		DepthDiscontinuityThreshold:    160,
		MaxNumberDepthDiscontinuity:    1,
		MinMergeDist:                   DefaultMinMergeDist,
	}
}

// minMergeDist returns the configured floor of the merge distance, DefaultMinMergeDist if unset.
func (cfg *Config) minMergeDist() float64 {
	if cfg.MinMergeDist > 0 {
		return cfg.MinMergeDist
	}
	return DefaultMinMergeDist
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if cfg.PatchSize <= 0 {
		return newConfigurationError("patchSize must be greater than 0, got %d", cfg.PatchSize)
	}
	if cfg.HistogramBinsPerCoord <= 1 {
		return newConfigurationError("histogramBinsPerCoord must be greater than 1, got %d", cfg.HistogramBinsPerCoord)
	}
	if cfg.MinCosAngleForMerge < -1 || cfg.MinCosAngleForMerge > 1 {
		return newConfigurationError("minCosAngleForMerge must be between -1 and 1, got %v", cfg.MinCosAngleForMerge)
	}
	if cfg.MaxMergeDist <= 0 {
		return newConfigurationError("maxMergeDist must be greater than 0, got %v", cfg.MaxMergeDist)
	}
	if cfg.MinMergeDist < 0 {
		return newConfigurationError("minMergeDist cannot be less than 0, got %v", cfg.MinMergeDist)
	}
	if cfg.MinRegionGrowingCandidateSize < 0 {
		return newConfigurationError("minRegionGrowingCandidateSize cannot be less than 0, got %d", cfg.MinRegionGrowingCandidateSize)
	}
	if cfg.MinRegionGrowingCellsActivated < 0 {
		return newConfigurationError("minRegionGrowingCellsActivated cannot be less than 0, got %d",
			cfg.MinRegionGrowingCellsActivated)
	}
	if cfg.DepthSigmaCoeff < 0 || cfg.DepthSigmaMargin < 0 {
		return newConfigurationError("depthSigmaCoeff and depthSigmaMargin cannot be less than 0")
	}
	if cfg.DepthDiscontinuityThreshold <= 0 {
		return newConfigurationError("depthDiscontinuityThreshold must be greater than 0, got %v", cfg.DepthDiscontinuityThreshold)
	}
	if cfg.MaxNumberDepthDiscontinuity < 0 {
		return newConfigurationError("maxNumberDepthDiscontinuity cannot be less than 0, got %d", cfg.MaxNumberDepthDiscontinuity)
	}
	return nil
}

// NewConfigFromAttributes decodes and validates a config from loosely typed attributes.
// Every option but minMergeDist must be present.
func NewConfigFromAttributes(attributes utils.AttributeMap) (*Config, error) {
	cfg := &Config{}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	if !attributes.Has("minMergeDist") {
		cfg.MinMergeDist = DefaultMinMergeDist
	}
	missing := make([]string, 0, len(md.Unset))
	for _, name := range md.Unset {
		if name != "minMergeDist" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Wrap(ErrConfiguration, utils.NewMissingAttributesError(missing...).Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromFile reads a config from a JSON (.json) or YAML (.yaml, .yml) file.
func NewConfigFromFile(fn string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	attributes := utils.AttributeMap{}
	switch ext := strings.ToLower(filepath.Ext(fn)); ext {
	case ".json":
		err = json.Unmarshal(data, &attributes)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &attributes)
	default:
		return nil, errors.Errorf("do not know how to read config file %q", fn)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing config file %q", fn)
	}
	return NewConfigFromAttributes(attributes)
}
