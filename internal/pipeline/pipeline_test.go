package pipeline

import (
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lasfoot/internal/config"
	"github.com/banshee-data/lasfoot/internal/engine"
	"github.com/banshee-data/lasfoot/internal/fsutil"
	"github.com/banshee-data/lasfoot/internal/runlog"
	"github.com/banshee-data/lasfoot/internal/timeutil"
)

const testWKT = `PROJCS["NAD83 / UTM zone 17N"]`

// lasBytes builds a minimal LAS 1.2 file: public header block plus an
// optional WKT coordinate system VLR.
func lasBytes(points uint32, wkt string) []byte {
	le := binary.LittleEndian
	h := make([]byte, 227)
	copy(h[0:4], "LASF")
	h[24], h[25] = 1, 2
	le.PutUint16(h[94:96], 227)
	if wkt != "" {
		le.PutUint32(h[100:104], 1)
	}
	le.PutUint32(h[107:111], points)

	putF := func(off int, v float64) { le.PutUint64(h[off:off+8], math.Float64bits(v)) }
	putF(179, 500) // max X
	putF(187, 0)   // min X
	putF(195, 800) // max Y
	putF(203, 0)   // min Y
	putF(211, 42)  // max Z
	putF(219, -1)  // min Z

	if wkt != "" {
		vlr := make([]byte, 54)
		copy(vlr[2:18], "LASF_Projection")
		le.PutUint16(vlr[18:20], 2112)
		le.PutUint16(vlr[20:22], uint16(len(wkt)))
		h = append(h, vlr...)
		h = append(h, []byte(wkt)...)
	}
	return h
}

type fixture struct {
	fs   *fsutil.MemoryFileSystem
	fake *engine.FakeToolbox
	lic  *engine.StaticLicense
	req  Request
}

func newFixture(t *testing.T, wkt string) *fixture {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	require.NoError(t, fs.MkdirAll("/home", 0755))
	require.NoError(t, fs.MkdirAll("/out", 0755))
	require.NoError(t, fs.WriteFile("/data/survey.las", lasBytes(1200, wkt), 0644))

	return &fixture{
		fs:   fs,
		fake: engine.NewFakeToolbox(fs),
		lic:  &engine.StaticLicense{},
		req: Request{
			DatasetPath: "/data/survey.las",
			HomeDir:     "/home",
			OutputDir:   "/out",
			Params:      config.DefaultParams(),
		},
	}
}

func (f *fixture) runner() *Runner {
	return &Runner{
		FS:      f.fs,
		Tools:   f.fake,
		License: f.lic,
		Report:  NewMessageLog(),
	}
}

const projectDir = "/out/survey_processing"

// allArtifacts is the full persisted artifact set of a successful run.
var allArtifacts = []string{
	ArtifactDTM, ArtifactDSM, ArtifactNDSM,
	ArtifactBuildingMosaic, ArtifactFocalMosaic,
	ArtifactFootprints, ArtifactRoofSegments, ArtifactRoofForms,
}

func trailContains(trail []string, substr string) bool {
	for _, line := range trail {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, testWKT)
	res := f.runner().Run(f.req)

	require.True(t, res.OK, "run should succeed: %v", res.Err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Empty(t, res.FailedStage)

	for _, name := range allArtifacts {
		assert.True(t, f.fs.Exists(filepath.Join(projectDir, name)), "artifact %s missing", name)
	}
	assert.True(t, f.fs.Exists("/out/Intermediate"))
	assert.True(t, f.fs.Exists("/out/survey_mosaic_rasters"))
	assert.True(t, f.fs.Exists("/home/roofform_work"))

	for _, stage := range []string{
		StageElevation, StageMosaic, StageFocal,
		StageFootprints, StageSegmentation, StageRoofForms,
	} {
		assert.True(t, trailContains(res.Trail, stage+" completed successfully"),
			"trail missing completion line for %s", stage)
	}
	assert.True(t, trailContains(res.Trail, "Processing completed successfully"))

	// License is released exactly once on success.
	assert.Equal(t, 1, f.lic.CheckOuts)
	assert.Equal(t, 1, f.lic.CheckIns)
}

func TestRunMissingDataset(t *testing.T) {
	f := newFixture(t, testWKT)
	f.req.DatasetPath = "/data/nope.las"
	res := f.runner().Run(f.req)

	require.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrMissingDataset)

	// Validation fails before any workspace is created.
	assert.False(t, f.fs.Exists("/out/Intermediate"))
	assert.False(t, f.fs.Exists(projectDir))
	assert.Empty(t, f.fake.Calls)
	assert.Equal(t, 1, f.lic.CheckIns, "license must be released on failure")
}

func TestRunWrongDatasetType(t *testing.T) {
	f := newFixture(t, testWKT)
	notlas := append([]byte("TIFF...."), make([]byte, 300)...)
	require.NoError(t, f.fs.WriteFile("/data/notlas.las", notlas, 0644))
	f.req.DatasetPath = "/data/notlas.las"

	res := f.runner().Run(f.req)
	require.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrWrongDatasetType)
	assert.Empty(t, f.fake.Calls)
}

func TestRunMissingDirectories(t *testing.T) {
	t.Run("home", func(t *testing.T) {
		f := newFixture(t, testWKT)
		f.req.HomeDir = "/nope"
		res := f.runner().Run(f.req)
		require.False(t, res.OK)
		assert.ErrorIs(t, res.Err, ErrMissingDirectory)
	})

	t.Run("output", func(t *testing.T) {
		f := newFixture(t, testWKT)
		f.req.OutputDir = "/nope"
		res := f.runner().Run(f.req)
		require.False(t, res.OK)
		assert.ErrorIs(t, res.Err, ErrMissingDirectory)
	})
}

func TestRunNoSpatialReference(t *testing.T) {
	f := newFixture(t, "") // dataset without a CRS
	res := f.runner().Run(f.req)

	require.False(t, res.OK)
	assert.Equal(t, StageMosaic, res.FailedStage)
	assert.ErrorIs(t, res.Err, ErrMissingSpatialReference)

	var serr *StageError
	require.ErrorAs(t, res.Err, &serr)
	assert.Equal(t, StageMosaic, serr.Stage)

	// Elevation ran; the mosaic routine was never invoked and no mosaic
	// or later artifact appeared.
	assert.Equal(t, []string{engine.RoutineExtractElevation}, f.fake.Calls)
	assert.False(t, f.fs.Exists(filepath.Join(projectDir, ArtifactBuildingMosaic)))
	assert.False(t, f.fs.Exists(filepath.Join(projectDir, ArtifactFootprints)))
}

func TestRunElevationOutputIncomplete(t *testing.T) {
	f := newFixture(t, testWKT)
	f.fake.Omit = map[string]bool{ArtifactNDSM: true}

	res := f.runner().Run(f.req)
	require.False(t, res.OK)
	assert.Equal(t, StageElevation, res.FailedStage)

	var oerr *OutputMissingError
	require.ErrorAs(t, res.Err, &oerr)
	assert.Equal(t, StageElevation, oerr.Stage)
	assert.Contains(t, oerr.Expected[0], ArtifactNDSM)

	// Only the elevation routine ran; no later stage executed.
	assert.Equal(t, []string{engine.RoutineExtractElevation}, f.fake.Calls)
	for _, name := range []string{ArtifactBuildingMosaic, ArtifactFocalMosaic, ArtifactFootprints, ArtifactRoofSegments} {
		assert.False(t, f.fs.Exists(filepath.Join(projectDir, name)), "later artifact %s must not appear", name)
	}
}

func TestRunRoofFormAlternateName(t *testing.T) {
	f := newFixture(t, testWKT)
	f.fake.RoofFormName = ArtifactRoofFormsAlt

	res := f.runner().Run(f.req)
	require.True(t, res.OK, "alternate roof form name must satisfy the stage: %v", res.Err)
	assert.Equal(t, filepath.Join(projectDir, ArtifactRoofFormsAlt), res.Artifacts[ArtifactRoofForms])
}

func TestRunRoofFormNoCandidate(t *testing.T) {
	f := newFixture(t, testWKT)
	f.fake.RoofFormName = "roof_forms_unexpected"

	res := f.runner().Run(f.req)
	require.False(t, res.OK)
	assert.Equal(t, StageRoofForms, res.FailedStage)

	var oerr *OutputMissingError
	require.ErrorAs(t, res.Err, &oerr)
	require.Len(t, oerr.Expected, 2, "both candidate names must be probed")
}

func TestRunIdempotent(t *testing.T) {
	f := newFixture(t, testWKT)

	first := f.runner().Run(f.req)
	require.True(t, first.OK, "first run: %v", first.Err)
	second := f.runner().Run(f.req)
	require.True(t, second.OK, "second run must overwrite in place: %v", second.Err)

	for _, name := range allArtifacts {
		assert.True(t, f.fs.Exists(filepath.Join(projectDir, name)))
	}
	assert.Equal(t, first.Artifacts, second.Artifacts)
}

func TestRunStageRoutineError(t *testing.T) {
	f := newFixture(t, testWKT)
	boom := errors.New("segmentation blew up")
	f.fake.FailOn = map[string]error{engine.RoutineSegmentRoofs: boom}

	res := f.runner().Run(f.req)
	require.False(t, res.OK)
	assert.Equal(t, StageSegmentation, res.FailedStage)
	assert.ErrorIs(t, res.Err, boom)

	// Earlier artifacts are left in place for diagnosis.
	assert.True(t, f.fs.Exists(filepath.Join(projectDir, ArtifactFootprints)))
	assert.False(t, f.fs.Exists(filepath.Join(projectDir, ArtifactRoofSegments)))
}

func TestRunLicenseDenied(t *testing.T) {
	f := newFixture(t, testWKT)
	f.lic.Deny = true

	res := f.runner().Run(f.req)
	require.False(t, res.OK)
	var lerr *engine.LicenseError
	assert.ErrorAs(t, res.Err, &lerr)
	assert.Empty(t, f.fake.Calls)
}

// panicToolbox panics in its first routine; the stage boundary must contain it.
type panicToolbox struct {
	engine.Toolbox
}

func (panicToolbox) ExtractElevation(engine.ElevationParams) error {
	panic("raster engine crashed")
}

func TestRunRecoversPanic(t *testing.T) {
	f := newFixture(t, testWKT)
	r := f.runner()
	r.Tools = panicToolbox{f.fake}

	res := r.Run(f.req)
	require.False(t, res.OK)
	assert.Equal(t, StageElevation, res.FailedStage)

	var uerr *UnexpectedError
	require.ErrorAs(t, res.Err, &uerr)
	assert.Contains(t, uerr.Error(), "raster engine crashed")
	assert.Equal(t, 1, f.lic.CheckIns)
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t, testWKT)
	f.req.DryRun = true

	res := f.runner().Run(f.req)
	require.True(t, res.OK)
	assert.Empty(t, f.fake.Calls, "dry run must not invoke any routine")
	assert.False(t, f.fs.Exists(filepath.Join(projectDir, ArtifactDTM)))
	assert.True(t, trailContains(res.Trail, "Would run "+StageRoofForms))
}

func TestRunFootprintSummary(t *testing.T) {
	f := newFixture(t, testWKT)
	f.fake.FootprintContent = []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{}}]}`)

	res := f.runner().Run(f.req)
	require.True(t, res.OK, "run: %v", res.Err)
	assert.True(t, trailContains(res.Trail, "Final footprints: 2 buildings"))
}

func TestRunReportsElapsedTime(t *testing.T) {
	f := newFixture(t, testWKT)
	r := f.runner()
	r.Clock = timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	res := r.Run(f.req)
	require.True(t, res.OK, "run: %v", res.Err)
	assert.True(t, trailContains(res.Trail, "Processing completed successfully in 0s"))
}

// captureToolbox records the elevation parameter set it receives.
type captureToolbox struct {
	*engine.FakeToolbox
	elevation engine.ElevationParams
}

func (c *captureToolbox) ExtractElevation(p engine.ElevationParams) error {
	c.elevation = p
	return c.FakeToolbox.ExtractElevation(p)
}

func TestRunThreadsParamsIntoElevation(t *testing.T) {
	f := newFixture(t, testWKT)
	f.req.Params.CellSize = 0.5
	f.req.Params.ClassCode = 15
	f.req.Params.MinHeight = 1.0

	capture := &captureToolbox{FakeToolbox: f.fake}
	r := f.runner()
	r.Tools = capture

	res := r.Run(f.req)
	require.True(t, res.OK, "run: %v", res.Err)
	assert.Equal(t, 0.5, capture.elevation.CellSize)
	assert.Equal(t, 15, capture.elevation.ClassCode)
	assert.Equal(t, 1.0, capture.elevation.MinHeight)
	assert.Equal(t, "/data/survey.las", capture.elevation.Dataset)
	assert.Equal(t, projectDir, capture.elevation.ProjectWorkspace)
}

func TestRunRecordsLedger(t *testing.T) {
	ledger, err := runlog.Open(filepath.Join(t.TempDir(), runlog.FileName))
	require.NoError(t, err)
	defer ledger.Close()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, testWKT)
		r := f.runner()
		r.Ledger = ledger

		res := r.Run(f.req)
		require.True(t, res.OK, "run: %v", res.Err)
		require.NotEmpty(t, res.RunID)

		events, err := ledger.RunEvents(res.RunID)
		require.NoError(t, err)
		require.Len(t, events, 12, "six stages, started+completed each")
		assert.Equal(t, runlog.EventStarted, events[0].Event)
		assert.Equal(t, StageElevation, events[0].Stage)
		assert.Equal(t, runlog.EventCompleted, events[11].Event)
		assert.Equal(t, StageRoofForms, events[11].Stage)

		status, _, err := ledger.RunStatus(res.RunID)
		require.NoError(t, err)
		assert.Equal(t, "succeeded", status)
	})

	t.Run("failure names the stage", func(t *testing.T) {
		f := newFixture(t, "")
		r := f.runner()
		r.Ledger = ledger

		res := r.Run(f.req)
		require.False(t, res.OK)

		status, failedStage, err := ledger.RunStatus(res.RunID)
		require.NoError(t, err)
		assert.Equal(t, "failed", status)
		assert.Equal(t, StageMosaic, failedStage)
	})
}

func TestRunSummarySkipsOpaqueContent(t *testing.T) {
	f := newFixture(t, testWKT)
	// Default fake artifact content is not GeoJSON; the summary must stay
	// silent rather than fail the run.
	res := f.runner().Run(f.req)
	require.True(t, res.OK)
	assert.False(t, trailContains(res.Trail, "Final footprints:"))
}
