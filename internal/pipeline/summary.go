package pipeline

import (
	geojson "github.com/paulmach/go.geojson"
)

// summarizeFootprints logs the building count when the final footprint
// artifact happens to be a GeoJSON feature collection. Purely advisory: the
// pipeline never treats artifact content as a success criterion, so content
// that does not parse is skipped silently.
func summarizeFootprints(ctx *RunContext, rep Reporter) {
	path, ok := ctx.Artifacts[ArtifactFootprints]
	if !ok {
		return
	}
	data, err := ctx.FS.ReadFile(path)
	if err != nil {
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return
	}
	rep.Infof("Final footprints: %d buildings", len(fc.Features))
}
