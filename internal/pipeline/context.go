package pipeline

import (
	"github.com/banshee-data/lasfoot/internal/config"
	"github.com/banshee-data/lasfoot/internal/engine"
	"github.com/banshee-data/lasfoot/internal/fsutil"
	"github.com/banshee-data/lasfoot/internal/lasd"
	"github.com/banshee-data/lasfoot/internal/workspace"
)

// RunContext carries the state of one pipeline run explicitly through every
// stage call. Nothing here is process-global: the active workspace, scratch
// workspace, coordinate system and cell size that stages share all live on
// this struct.
type RunContext struct {
	FS     fsutil.FileSystem
	Tools  engine.Toolbox
	Report Reporter

	Dataset *lasd.Info
	Params  config.Params
	HomeDir string
	Layout  workspace.Layout

	// CoordSystem and CellSize are the ambient output settings for the
	// remainder of the run. The mosaic stage sets both from the dataset's
	// native reference; stages before it leave them zero.
	CoordSystem string
	CellSize    float64

	// Artifacts maps artifact names to their resolved paths as stages
	// complete. Later stages read their inputs from here.
	Artifacts map[string]string
}

// artifactPath returns the resolved path for a named artifact, falling back
// to its fixed project-container location when no stage has recorded it.
func (ctx *RunContext) artifactPath(name string) string {
	if p, ok := ctx.Artifacts[name]; ok {
		return p
	}
	return ctx.Layout.ProjectPath(name)
}
