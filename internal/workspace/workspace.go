// Package workspace resolves and creates the on-disk storage areas one
// pipeline run writes into. All names derive from the dataset's short name,
// so a run's artifacts are addressable by fixed, predictable paths.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/lasfoot/internal/fsutil"
)

// IntermediateName is the shared scratch container inside the output
// directory. It is created once and never deleted by the pipeline.
const IntermediateName = "Intermediate"

const (
	projectSuffix      = "_processing"
	mosaicFolderSuffix = "_mosaic_rasters"
	lockFileName       = ".lasfoot.lock"
)

// ErrCreate reports that a workspace container could not be created.
var ErrCreate = errors.New("workspace creation failed")

// ErrLocked reports that another run holds the project workspace.
var ErrLocked = errors.New("project workspace locked by another run")

// Layout names the storage areas of one run. Project and MosaicFolder are
// exclusive to the run; Intermediate is shared across runs in an output
// directory.
type Layout struct {
	OutputDir    string
	Intermediate string // shared scratch container
	Project      string // per-dataset artifact container
	MosaicFolder string // side channel for raw per-tile mosaic rasters
}

// ProjectPath returns the fixed path of a named artifact inside the
// project container.
func (l Layout) ProjectPath(artifact string) string {
	return filepath.Join(l.Project, artifact)
}

// Resolve computes the layout for a dataset name without touching disk.
func Resolve(outputDir, datasetName string) Layout {
	return Layout{
		OutputDir:    outputDir,
		Intermediate: filepath.Join(outputDir, IntermediateName),
		Project:      filepath.Join(outputDir, datasetName+projectSuffix),
		MosaicFolder: filepath.Join(outputDir, datasetName+mosaicFolderSuffix),
	}
}

// Ensure resolves the layout and creates the intermediate and project
// containers. An existing project container is reused; the run overwrites
// artifacts in place. The mosaic folder is left to the mosaic stage.
func Ensure(fsys fsutil.FileSystem, outputDir, datasetName string) (Layout, error) {
	l := Resolve(outputDir, datasetName)

	if err := fsys.MkdirAll(l.Intermediate, 0755); err != nil {
		return Layout{}, fmt.Errorf("%w: intermediate %s: %v", ErrCreate, l.Intermediate, err)
	}
	if err := fsys.MkdirAll(l.Project, 0755); err != nil {
		return Layout{}, fmt.Errorf("%w: project %s: %v", ErrCreate, l.Project, err)
	}
	return l, nil
}

// AcquireLock places an advisory lock file in the project container. It is
// best effort: the check and the write are not atomic, so callers still own
// the one-run-per-project contract. The returned release removes the lock.
func AcquireLock(fsys fsutil.FileSystem, l Layout, runID string) (func(), error) {
	lock := filepath.Join(l.Project, lockFileName)
	if fsys.Exists(lock) {
		held, _ := fsys.ReadFile(lock)
		return nil, fmt.Errorf("%w: %s (held by %s)", ErrLocked, l.Project, string(held))
	}
	if err := fsys.WriteFile(lock, []byte(runID), 0644); err != nil {
		return nil, fmt.Errorf("write lock file %s: %w", lock, err)
	}
	return func() { _ = fsys.Remove(lock) }, nil
}
