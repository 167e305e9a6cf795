package pipeline

import (
	"path/filepath"

	"github.com/banshee-data/lasfoot/internal/engine"
)

// Stage names, used in progress messages, errors and the run ledger.
const (
	StageElevation    = "elevation extraction"
	StageMosaic       = "building mosaic"
	StageFocal        = "focal filter"
	StageFootprints   = "footprint vectorization"
	StageSegmentation = "roof segmentation"
	StageRoofForms    = "roof form extraction"
)

// segmentationWorkFolder is the segmentation scratch folder created under
// the home directory. Deliberately not named "roof_forms": that name belongs
// to the project container's roof-form artifact.
const segmentationWorkFolder = "roofform_work"

// Stage couples a name with its adapter. Adapters supply the routine's full
// parameter set and verify the declared outputs afterwards; they return raw
// causes and leave StageError wrapping to the orchestrator.
type Stage struct {
	Name string
	Run  func(*RunContext) error
}

// Stages returns the six processing stages in their fixed execution order.
func Stages() []Stage {
	return []Stage{
		{StageElevation, stageElevation},
		{StageMosaic, stageMosaic},
		{StageFocal, stageFocal},
		{StageFootprints, stageFootprints},
		{StageSegmentation, stageSegmentation},
		{StageRoofForms, stageRoofForms},
	}
}

// stageElevation derives the terrain, surface and normalized-surface rasters
// from the dataset. All three must exist afterwards.
func stageElevation(ctx *RunContext) error {
	base := ctx.Layout.ProjectPath(ElevationBase)

	err := ctx.Tools.ExtractElevation(engine.ElevationParams{
		Dataset:          ctx.Dataset.Path,
		ProjectWorkspace: ctx.Layout.Project,
		ScratchWorkspace: ctx.Layout.Intermediate,
		OutputBase:       base,
		CellSize:         ctx.Params.CellSize,
		GroundPlusClass:  true,
		ClassCode:        ctx.Params.ClassCode,
		MinHeight:        ctx.Params.MinHeight,
		MaxHeight:        ctx.Params.MaxHeight,
		ClassifyNoise:    false,
		ProcessingExtent: "#",
	})
	if err != nil {
		return err
	}

	for _, name := range []string{ArtifactDTM, ArtifactDSM, ArtifactNDSM} {
		if err := requireArtifact(ctx, StageElevation, Artifact{
			Name:       name,
			Candidates: []string{ctx.Layout.ProjectPath(name)},
		}); err != nil {
			return err
		}
	}
	return nil
}

// stageMosaic builds the draft footprint raster from per-tile products. It
// pins the run's coordinate system and cell size to the dataset's native
// reference for this and all subsequent stages.
func stageMosaic(ctx *RunContext) error {
	if !ctx.Dataset.HasSpatialReference() {
		return ErrMissingSpatialReference
	}
	ctx.CoordSystem = ctx.Dataset.CRS
	ctx.CellSize = ctx.Params.MosaicCellSize

	if err := ctx.FS.MkdirAll(ctx.Layout.MosaicFolder, 0755); err != nil {
		return err
	}

	out := ctx.Layout.ProjectPath(ArtifactBuildingMosaic)
	err := ctx.Tools.BuildMosaic(engine.MosaicParams{
		Dataset:          ctx.Dataset.Path,
		ProjectWorkspace: ctx.Layout.Project,
		TileFolder:       ctx.Layout.MosaicFolder,
		OutMosaic:        out,
		SpatialReference: ctx.CoordSystem,
		CellSize:         ctx.CellSize,
	})
	if err != nil {
		return err
	}

	return requireArtifact(ctx, StageMosaic, Artifact{
		Name:       ArtifactBuildingMosaic,
		Candidates: []string{out},
	})
}

// stageFocal smooths the mosaic with a 3x3 rectangular majority vote,
// ignoring no-data cells, before vectorization.
func stageFocal(ctx *RunContext) error {
	in := ctx.artifactPath(ArtifactBuildingMosaic)
	if !ctx.FS.Exists(in) {
		return &MissingInputError{Stage: StageFocal, Input: "building mosaic raster", Path: in}
	}

	out := ctx.Layout.ProjectPath(ArtifactFocalMosaic)
	err := ctx.Tools.FocalFilter(engine.FocalParams{
		InRaster:     in,
		OutRaster:    out,
		Width:        3,
		Height:       3,
		Statistic:    "MAJORITY",
		IgnoreNoData: true,
	})
	if err != nil {
		return err
	}

	return requireArtifact(ctx, StageFocal, Artifact{
		Name:       ArtifactFocalMosaic,
		Candidates: []string{out},
	})
}

// stageFootprints vectorizes the filtered raster into building footprint
// polygons with tiered regularization by size class.
func stageFootprints(ctx *RunContext) error {
	in := ctx.artifactPath(ArtifactFocalMosaic)
	if !ctx.FS.Exists(in) {
		return &MissingInputError{Stage: StageFootprints, Input: "filtered raster", Path: in}
	}

	out := ctx.Layout.ProjectPath(ArtifactFootprints)
	p := ctx.Params
	err := ctx.Tools.VectorizeFootprints(engine.FootprintParams{
		InRaster:          in,
		OutputPolygons:    out,
		MinArea:           p.MinFootprintArea,
		SimplifyTolerance: p.SimplifyTolerance,
		SplitFeatures:     "",

		RegularizeCircles: true,
		CircleMinArea:     p.CircleMinArea,
		MinCompactness:    p.MinCompactness,
		CircleTolerance:   p.CircleTolerance,

		LargeMethod:     "ANY_ANGLE",
		LargeMinArea:    p.LargeMinArea,
		LargeTolerance:  p.LargeTolerance,
		MediumMethod:    "RIGHT_ANGLES_AND_DIAGONALS",
		MediumMinArea:   p.MediumMinArea,
		MediumTolerance: p.MediumTolerance,
		SmallMethod:     "RIGHT_ANGLES",
		SmallTolerance:  p.SmallTolerance,
	})
	if err != nil {
		return err
	}

	return requireArtifact(ctx, StageFootprints, Artifact{
		Name:       ArtifactFootprints,
		Candidates: []string{out},
	})
}

// stageSegmentation splits each building's surface into planar regions. The
// routine appends "_segmented" to the requested output name, so the adapter
// checks only the derived path.
func stageSegmentation(ctx *RunContext) error {
	dsm := ctx.artifactPath(ArtifactDSM)
	if !ctx.FS.Exists(dsm) {
		return &MissingInputError{Stage: StageSegmentation, Input: "DSM raster", Path: dsm}
	}

	workFolder := filepath.Join(ctx.HomeDir, segmentationWorkFolder)
	if err := ctx.FS.MkdirAll(workFolder, 0755); err != nil {
		return err
	}

	requested := ctx.Layout.ProjectPath(SegmentsRequestedName)
	p := ctx.Params
	err := ctx.Tools.SegmentRoofs(engine.SegmentationParams{
		Footprints:              ctx.artifactPath(ArtifactFootprints),
		DSM:                     dsm,
		WorkFolder:              workFolder,
		SpectralDetail:          p.SpectralDetail,
		SpatialDetail:           p.SpatialDetail,
		MinSegmentSize:          p.MinSegmentSize,
		RegularizationTolerance: p.RegularizationTolerance,
		FlatOnly:                p.FlatOnly,
		MinSlope:                p.MinSlope,
		OutputSegments:          requested,
	})
	if err != nil {
		return err
	}

	return requireArtifact(ctx, StageSegmentation, Artifact{
		Name:       ArtifactRoofSegments,
		Candidates: []string{requested + "_segmented"},
	})
}

// stageRoofForms classifies each building as flat or sloped and fits
// parametric roof forms. The routine may emit the final layer under either
// of two names; the first existing candidate wins.
func stageRoofForms(ctx *RunContext) error {
	inputs := []struct {
		name string
		path string
	}{
		{"segmented roof polygons", ctx.artifactPath(ArtifactRoofSegments)},
		{"DSM raster", ctx.artifactPath(ArtifactDSM)},
		{"DTM raster", ctx.artifactPath(ArtifactDTM)},
		{"nDSM raster", ctx.artifactPath(ArtifactNDSM)},
	}
	for _, in := range inputs {
		if !ctx.FS.Exists(in.path) {
			return &MissingInputError{Stage: StageRoofForms, Input: in.name, Path: in.path}
		}
	}

	requested := ctx.Layout.ProjectPath(ArtifactRoofForms)
	p := ctx.Params
	err := ctx.Tools.ExtractRoofForms(engine.RoofFormParams{
		SegmentedRoofs:    ctx.artifactPath(ArtifactRoofSegments),
		DSM:               ctx.artifactPath(ArtifactDSM),
		DTM:               ctx.artifactPath(ArtifactDTM),
		NDSM:              ctx.artifactPath(ArtifactNDSM),
		FlatRoofs:         p.FlatRoofs,
		MinFlatRoofArea:   p.MinFlatRoofArea,
		MinSlopedRoofArea: p.MinSlopedRoofArea,
		MinRoofHeight:     p.MinRoofHeight,
		OutputBuildings:   requested,
		SimplifyBuildings: p.SimplifyBuildings,
		SimplifyTolerance: p.BuildingSimplifyTol,
	})
	if err != nil {
		return err
	}

	return requireArtifact(ctx, StageRoofForms, Artifact{
		Name: ArtifactRoofForms,
		Candidates: []string{
			requested,
			ctx.Layout.ProjectPath(ArtifactRoofFormsAlt),
		},
	})
}
