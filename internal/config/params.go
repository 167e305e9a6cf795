// Package config carries the processing parameters for one pipeline run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Regularization methods understood by the footprint vectorization routine.
const (
	RegRightAngles         = "RIGHT_ANGLES"
	RegRightAnglesDiagonal = "RIGHT_ANGLES_AND_DIAGONALS"
	RegAnyAngle            = "ANY_ANGLE"
)

// Params is the full parameter set threaded into the six processing stages.
// Distances are metres, areas square metres, slopes degrees. Defaults come
// from DefaultParams; a YAML overrides file and command-line flags overlay
// individual values.
type Params struct {
	// Elevation extraction
	CellSize  float64 // elevation raster cell size
	ClassCode int     // LAS classification code for buildings
	MinHeight float64 // minimum building height
	MaxHeight float64 // maximum building height

	// Building mosaic
	MosaicCellSize float64

	// Footprint vectorization
	MinFootprintArea  float64
	SimplifyTolerance float64
	MinCompactness    float64 // circle detection threshold
	CircleMinArea     float64
	CircleTolerance   float64
	LargeMinArea      float64
	LargeTolerance    float64
	MediumMinArea     float64
	MediumTolerance   float64
	SmallTolerance    float64

	// Roof segmentation
	SpectralDetail          int
	SpatialDetail           int
	MinSegmentSize          float64
	RegularizationTolerance float64
	FlatOnly                bool
	MinSlope                float64

	// Roof form extraction
	FlatRoofs            bool
	MinFlatRoofArea      float64
	MinSlopedRoofArea    float64
	MinRoofHeight        float64
	SimplifyBuildings    bool
	BuildingSimplifyTol  float64
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		CellSize:  0.3,
		ClassCode: 6,
		MinHeight: 0.5,
		MaxHeight: 50,

		MosaicCellSize: 0.6,

		MinFootprintArea:  32,
		SimplifyTolerance: 1.5,
		MinCompactness:    0.85,
		CircleMinArea:     372,
		CircleTolerance:   3,
		LargeMinArea:      2323,
		LargeTolerance:    0.6,
		MediumMinArea:     465,
		MediumTolerance:   1.2,
		SmallTolerance:    1.2,

		SpectralDetail:          12,
		SpatialDetail:           12,
		MinSegmentSize:          555,
		RegularizationTolerance: 3,
		FlatOnly:                false,
		MinSlope:                10,

		FlatRoofs:           false,
		MinFlatRoofArea:     23,
		MinSlopedRoofArea:   7,
		MinRoofHeight:       2.5,
		SimplifyBuildings:   true,
		BuildingSimplifyTol: 0.3,
	}
}

// Validate checks a parameter set for values the stages cannot work with.
func (p Params) Validate() error {
	if p.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %g", p.CellSize)
	}
	if p.MosaicCellSize <= 0 {
		return fmt.Errorf("mosaic_cell_size must be positive, got %g", p.MosaicCellSize)
	}
	if p.ClassCode < 0 || p.ClassCode > 255 {
		return fmt.Errorf("class_code must be a LAS classification code (0-255), got %d", p.ClassCode)
	}
	if p.MinHeight >= p.MaxHeight {
		return fmt.Errorf("min_height %g must be below max_height %g", p.MinHeight, p.MaxHeight)
	}
	if p.MinCompactness <= 0 || p.MinCompactness > 1 {
		return fmt.Errorf("min_compactness must be in (0,1], got %g", p.MinCompactness)
	}
	if p.MinFootprintArea <= 0 {
		return fmt.Errorf("min_footprint_area must be positive, got %g", p.MinFootprintArea)
	}
	if p.MinSegmentSize <= 0 {
		return fmt.Errorf("min_segment_size must be positive, got %g", p.MinSegmentSize)
	}
	return nil
}

// Overrides is the YAML overlay schema. Fields omitted from the file keep
// their defaults, so partial override files are safe.
type Overrides struct {
	CellSize         *float64 `yaml:"cell_size,omitempty"`
	ClassCode        *int     `yaml:"class_code,omitempty"`
	MinHeight        *float64 `yaml:"min_height,omitempty"`
	MaxHeight        *float64 `yaml:"max_height,omitempty"`
	MosaicCellSize   *float64 `yaml:"mosaic_cell_size,omitempty"`
	MinFootprintArea *float64 `yaml:"min_footprint_area,omitempty"`
	SimplifyTol      *float64 `yaml:"simplify_tolerance,omitempty"`
	MinSegmentSize   *float64 `yaml:"min_segment_size,omitempty"`
	MinSlope         *float64 `yaml:"min_slope,omitempty"`
	MinRoofHeight    *float64 `yaml:"min_roof_height,omitempty"`
}

// Apply overlays the set fields onto a parameter set.
func (o *Overrides) Apply(p *Params) {
	if o == nil {
		return
	}
	if o.CellSize != nil {
		p.CellSize = *o.CellSize
	}
	if o.ClassCode != nil {
		p.ClassCode = *o.ClassCode
	}
	if o.MinHeight != nil {
		p.MinHeight = *o.MinHeight
	}
	if o.MaxHeight != nil {
		p.MaxHeight = *o.MaxHeight
	}
	if o.MosaicCellSize != nil {
		p.MosaicCellSize = *o.MosaicCellSize
	}
	if o.MinFootprintArea != nil {
		p.MinFootprintArea = *o.MinFootprintArea
	}
	if o.SimplifyTol != nil {
		p.SimplifyTolerance = *o.SimplifyTol
	}
	if o.MinSegmentSize != nil {
		p.MinSegmentSize = *o.MinSegmentSize
	}
	if o.MinSlope != nil {
		p.MinSlope = *o.MinSlope
	}
	if o.MinRoofHeight != nil {
		p.MinRoofHeight = *o.MinRoofHeight
	}
}

// maxOverrideFileSize caps override files; parameter files are tiny.
const maxOverrideFileSize = 1 * 1024 * 1024

// LoadOverrides reads a YAML overrides file. The path must carry a .yaml or
// .yml extension and stay under the size cap.
func LoadOverrides(path string) (*Overrides, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("overrides file must have .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat overrides file: %w", err)
	}
	if fileInfo.Size() > maxOverrideFileSize {
		return nil, fmt.Errorf("overrides file too large: %d bytes (max %d)", fileInfo.Size(), maxOverrideFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	o := &Overrides{}
	if err := yaml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("failed to parse overrides YAML: %w", err)
	}
	return o, nil
}
