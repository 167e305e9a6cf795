package engine

import (
	"path/filepath"

	"github.com/banshee-data/lasfoot/internal/fsutil"
)

// FakeToolbox is a deterministic Toolbox for tests. Each routine records its
// call and writes its declared artifact(s) through the filesystem, unless
// told to omit a specific output or fail outright. It mirrors the quirks of
// the real routines: segmentation appends "_segmented" and roof form
// extraction may pick an alternate output name.
type FakeToolbox struct {
	FS fsutil.FileSystem

	// FailOn maps a routine name to the error that routine returns.
	FailOn map[string]error

	// Omit lists artifact base names the fake silently does not write,
	// simulating a routine that reports success without producing output.
	Omit map[string]bool

	// RoofFormName overrides the artifact name written by roof form
	// extraction; defaults to the requested output's base name.
	RoofFormName string

	// FootprintContent is written as the footprint artifact body, letting
	// tests exercise the advisory GeoJSON summary.
	FootprintContent []byte

	Calls []string
}

// NewFakeToolbox returns a fake that writes every declared artifact.
func NewFakeToolbox(fs fsutil.FileSystem) *FakeToolbox {
	return &FakeToolbox{FS: fs}
}

func (f *FakeToolbox) call(routine string) error {
	f.Calls = append(f.Calls, routine)
	if err, ok := f.FailOn[routine]; ok {
		return err
	}
	return nil
}

func (f *FakeToolbox) write(path string, content []byte) {
	if f.Omit[filepath.Base(path)] {
		return
	}
	if content == nil {
		content = []byte("fake artifact\n")
	}
	_ = f.FS.WriteFile(path, content, 0644)
}

func (f *FakeToolbox) ExtractElevation(p ElevationParams) error {
	if err := f.call(RoutineExtractElevation); err != nil {
		return err
	}
	for _, suffix := range []string{"_dtm", "_dsm", "_ndsm"} {
		f.write(p.OutputBase+suffix, nil)
	}
	return nil
}

func (f *FakeToolbox) BuildMosaic(p MosaicParams) error {
	if err := f.call(RoutineBuildMosaic); err != nil {
		return err
	}
	f.write(filepath.Join(p.TileFolder, "tile_0.tif"), nil)
	f.write(p.OutMosaic, nil)
	return nil
}

func (f *FakeToolbox) FocalFilter(p FocalParams) error {
	if err := f.call(RoutineFocalStatistics); err != nil {
		return err
	}
	f.write(p.OutRaster, nil)
	return nil
}

func (f *FakeToolbox) VectorizeFootprints(p FootprintParams) error {
	if err := f.call(RoutineFootprintsFromRaster); err != nil {
		return err
	}
	f.write(p.OutputPolygons, f.FootprintContent)
	return nil
}

func (f *FakeToolbox) SegmentRoofs(p SegmentationParams) error {
	if err := f.call(RoutineSegmentRoofs); err != nil {
		return err
	}
	// Real routine appends the suffix to the requested name.
	f.write(p.OutputSegments+"_segmented", nil)
	return nil
}

func (f *FakeToolbox) ExtractRoofForms(p RoofFormParams) error {
	if err := f.call(RoutineExtractRoofForms); err != nil {
		return err
	}
	name := f.RoofFormName
	if name == "" {
		name = filepath.Base(p.OutputBuildings)
	}
	f.write(filepath.Join(filepath.Dir(p.OutputBuildings), name), nil)
	return nil
}

// StaticLicense grants or denies a capability unconditionally.
type StaticLicense struct {
	Deny      bool
	CheckOuts int
	CheckIns  int
}

func (l *StaticLicense) CheckOut(capability string) (func(), error) {
	if l.Deny {
		return nil, &LicenseError{Capability: capability}
	}
	l.CheckOuts++
	return func() { l.CheckIns++ }, nil
}

// LicenseError reports an unavailable capability.
type LicenseError struct {
	Capability string
}

func (e *LicenseError) Error() string {
	return "license unavailable: " + e.Capability
}
