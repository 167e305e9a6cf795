// Package engine defines the boundary to the external geoprocessing
// routines. The pipeline never implements raster or geometry math itself; it
// hands each routine a full parameter set and checks the declared outputs
// afterwards. ScriptToolbox is the production implementation; FakeToolbox
// drives the orchestrator tests.
package engine

// Routine names. The production toolbox resolves each to an executable of
// the same name under <home>/scripts.
const (
	RoutineExtractElevation    = "extract_elevation_from_las"
	RoutineBuildMosaic         = "create_building_mosaic"
	RoutineFocalStatistics     = "focal_statistics"
	RoutineFootprintsFromRaster = "footprints_from_raster"
	RoutineSegmentRoofs        = "roof_part_segmentation"
	RoutineExtractRoofForms    = "extract_roof_form"
)

// ElevationParams feeds the elevation extraction routine. The routine
// derives three rasters from OutputBase: _dtm, _dsm and _ndsm.
type ElevationParams struct {
	Dataset          string  `json:"dataset"`
	ProjectWorkspace string  `json:"project_workspace"`
	ScratchWorkspace string  `json:"scratch_workspace"`
	OutputBase       string  `json:"output_base"`
	CellSize         float64 `json:"cell_size"`
	GroundPlusClass  bool    `json:"ground_plus_class"`
	ClassCode        int     `json:"class_code"`
	MinHeight        float64 `json:"min_height"`
	MaxHeight        float64 `json:"max_height"`
	ClassifyNoise    bool    `json:"classify_noise"`
	ProcessingExtent string  `json:"processing_extent"`
}

// MosaicParams feeds the building mosaic routine. TileFolder receives raw
// per-tile rasters outside the project container.
type MosaicParams struct {
	Dataset          string  `json:"dataset"`
	ProjectWorkspace string  `json:"project_workspace"`
	TileFolder       string  `json:"tile_folder"`
	OutMosaic        string  `json:"out_mosaic"`
	SpatialReference string  `json:"spatial_reference"`
	CellSize         float64 `json:"cell_size"`
}

// FocalParams feeds the focal statistics routine: a rectangular
// neighborhood vote over the mosaic to remove speckle.
type FocalParams struct {
	InRaster     string `json:"in_raster"`
	OutRaster    string `json:"out_raster"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Statistic    string `json:"statistic"` // e.g. "MAJORITY"
	IgnoreNoData bool   `json:"ignore_nodata"`
}

// FootprintParams feeds the raster-to-footprint routine, including the
// tiered regularization schedule by footprint size class.
type FootprintParams struct {
	InRaster          string  `json:"in_raster"`
	OutputPolygons    string  `json:"output_polygons"`
	MinArea           float64 `json:"min_area"`
	SimplifyTolerance float64 `json:"simplify_tolerance"`
	SplitFeatures     string  `json:"split_features"`

	RegularizeCircles bool    `json:"regularize_circles"`
	CircleMinArea     float64 `json:"circle_min_area"`
	MinCompactness    float64 `json:"min_compactness"`
	CircleTolerance   float64 `json:"circle_tolerance"`

	LargeMethod     string  `json:"large_method"`
	LargeMinArea    float64 `json:"large_min_area"`
	LargeTolerance  float64 `json:"large_tolerance"`
	MediumMethod    string  `json:"medium_method"`
	MediumMinArea   float64 `json:"medium_min_area"`
	MediumTolerance float64 `json:"medium_tolerance"`
	SmallMethod     string  `json:"small_method"`
	SmallTolerance  float64 `json:"small_tolerance"`
}

// SegmentationParams feeds the roof segmentation routine. The routine
// appends a fixed "_segmented" suffix to OutputSegments; callers must check
// the derived path, not the requested one.
type SegmentationParams struct {
	Footprints              string  `json:"footprints"`
	DSM                     string  `json:"dsm"`
	WorkFolder              string  `json:"work_folder"`
	SpectralDetail          int     `json:"spectral_detail"`
	SpatialDetail           int     `json:"spatial_detail"`
	MinSegmentSize          float64 `json:"min_segment_size"`
	RegularizationTolerance float64 `json:"regularization_tolerance"`
	FlatOnly                bool    `json:"flat_only"`
	MinSlope                float64 `json:"min_slope"`
	OutputSegments          string  `json:"output_segments"`
}

// RoofFormParams feeds the roof form extraction routine. The routine may
// write OutputBuildings under its requested name or with a "_roofform"
// suffix; callers probe both.
type RoofFormParams struct {
	SegmentedRoofs    string  `json:"segmented_roofs"`
	DSM               string  `json:"dsm"`
	DTM               string  `json:"dtm"`
	NDSM              string  `json:"ndsm"`
	FlatRoofs         bool    `json:"flat_roofs"`
	MinFlatRoofArea   float64 `json:"min_flat_roof_area"`
	MinSlopedRoofArea float64 `json:"min_sloped_roof_area"`
	MinRoofHeight     float64 `json:"min_roof_height"`
	OutputBuildings   string  `json:"output_buildings"`
	SimplifyBuildings bool    `json:"simplify_buildings"`
	SimplifyTolerance float64 `json:"simplify_tolerance"`
}

// Toolbox is the injected capability the orchestrator drives. Every call
// blocks until the routine completes or fails; there is no cancellation.
// A nil routine error does NOT mean the declared outputs exist; the stage
// adapters verify that separately.
type Toolbox interface {
	ExtractElevation(p ElevationParams) error
	BuildMosaic(p MosaicParams) error
	FocalFilter(p FocalParams) error
	VectorizeFootprints(p FootprintParams) error
	SegmentRoofs(p SegmentationParams) error
	ExtractRoofForms(p RoofFormParams) error
}

// License gates access to the processing capability. CheckOut must be
// balanced by calling the returned release on every exit path.
type License interface {
	CheckOut(capability string) (release func(), err error)
}

// SpatialCapability is the capability the footprint pipeline checks out.
const SpatialCapability = "spatial-analysis"
