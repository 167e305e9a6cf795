package pipeline

// Artifact names inside the project container. The pipeline addresses every
// stage output by one of these fixed names; existence of the named path is
// the sole success signal for the stage that produced it.
const (
	ElevationBase = "elev"

	ArtifactDTM  = "elev_dtm"
	ArtifactDSM  = "elev_dsm"
	ArtifactNDSM = "elev_ndsm"

	ArtifactBuildingMosaic = "building_mosaic"
	ArtifactFocalMosaic    = "focal_mosaic"
	ArtifactFootprints     = "final_footprints"

	// Segmentation is requested under the bare name; the routine appends
	// the suffix, so only the derived name is ever checked.
	SegmentsRequestedName = "roof_segments"
	ArtifactRoofSegments  = "roof_segments_segmented"

	// Roof form extraction may emit either name; both are probed in order.
	ArtifactRoofForms    = "roof_forms"
	ArtifactRoofFormsAlt = "roof_forms_roofform"
)

// Artifact declares a stage output as an ordered list of acceptable
// candidate paths. The first existing candidate wins.
type Artifact struct {
	Name       string
	Candidates []string
}

// Resolve returns the first existing candidate path.
func (a Artifact) Resolve(ctx *RunContext) (string, bool) {
	for _, p := range a.Candidates {
		if ctx.FS.Exists(p) {
			return p, true
		}
	}
	return "", false
}

// requireArtifact resolves a declared output and records it in the run
// context, or returns an OutputMissingError listing every probed candidate.
func requireArtifact(ctx *RunContext, stage string, a Artifact) error {
	path, ok := a.Resolve(ctx)
	if !ok {
		return &OutputMissingError{Stage: stage, Expected: a.Candidates}
	}
	ctx.Artifacts[a.Name] = path
	return nil
}
