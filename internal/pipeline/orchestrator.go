package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lasfoot/internal/config"
	"github.com/banshee-data/lasfoot/internal/engine"
	"github.com/banshee-data/lasfoot/internal/fsutil"
	"github.com/banshee-data/lasfoot/internal/lasd"
	"github.com/banshee-data/lasfoot/internal/runlog"
	"github.com/banshee-data/lasfoot/internal/timeutil"
	"github.com/banshee-data/lasfoot/internal/workspace"
)

// State tracks the orchestrator through the fixed stage order. Transitions
// proceed strictly Init -> each stage -> Success; any stage failure moves
// directly to Failed and no later stage executes.
type State string

const (
	StateInit    State = "init"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Result is the terminal outcome of one run: a single boolean plus the
// message trail. On failure it names the originating stage and cause.
// Artifacts from completed stages are left in place either way.
type Result struct {
	OK          bool
	RunID       string
	State       State
	FailedStage string
	Err         error
	Artifacts   map[string]string
	Trail       []string
}

// Request is one invocation of the pipeline: exactly one dataset per call.
type Request struct {
	DatasetPath string
	HomeDir     string
	OutputDir   string
	Params      config.Params
	DryRun      bool
}

// Runner wires the pipeline's collaborators. Ledger may be nil; ledger
// failures only warn. Clock defaults to the wall clock.
type Runner struct {
	FS      fsutil.FileSystem
	Tools   engine.Toolbox
	License engine.License
	Report  Reporter
	Ledger  *runlog.Log
	Clock   timeutil.Clock
}

// Run executes the six stages in fixed order against one dataset. The
// processing capability is checked out first and released on every exit
// path. Validation failures abort before any workspace is created.
func (r *Runner) Run(req Request) *Result {
	rep := r.Report
	if rep == nil {
		rep = NewMessageLog()
		r.Report = rep
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	runStart := clock.Now()

	res := &Result{State: StateInit, Artifacts: make(map[string]string)}
	finish := func() *Result {
		if ml, ok := rep.(*MessageLog); ok {
			res.Trail = ml.Lines()
		}
		return res
	}
	fail := func(err error) *Result {
		res.OK = false
		res.State = StateFailed
		res.Err = err
		return finish()
	}

	release, err := r.License.CheckOut(engine.SpatialCapability)
	if err != nil {
		rep.Infof("Processing failed: %v", err)
		return fail(err)
	}
	defer release()

	// Input validation gates run before any workspace exists.
	if !r.FS.Exists(req.DatasetPath) {
		err := fmt.Errorf("%w: %s", ErrMissingDataset, req.DatasetPath)
		rep.Infof("Processing failed: %v", err)
		return fail(err)
	}
	for _, dir := range []string{req.HomeDir, req.OutputDir} {
		st, err := r.FS.Stat(dir)
		if err != nil || !st.IsDir() {
			werr := fmt.Errorf("%w: %s", ErrMissingDirectory, dir)
			rep.Infof("Processing failed: %v", werr)
			return fail(werr)
		}
	}

	info, err := lasd.Describe(r.FS, req.DatasetPath)
	if err != nil {
		if errors.Is(err, lasd.ErrNotLAS) {
			err = fmt.Errorf("%w: %v", ErrWrongDatasetType, err)
		}
		rep.Infof("Processing failed: %v", err)
		return fail(err)
	}
	rep.Infof("Dataset %s: %d files, %d points (mean %.0f points/file)",
		info.Name, info.FileCount, info.PointCount, info.MeanPointsPerFile())
	for _, w := range info.Warnings {
		rep.Warnf("%s", w)
	}

	layout, err := workspace.Ensure(r.FS, req.OutputDir, info.Name)
	if err != nil {
		rep.Infof("Processing failed: %v", err)
		return fail(err)
	}

	runID, lerr := r.startLedgerRun(info.Name)
	if lerr != nil {
		rep.Warnf("run ledger unavailable: %v", lerr)
	}
	res.RunID = runID

	unlock, err := workspace.AcquireLock(r.FS, layout, runID)
	if err != nil {
		rep.Infof("Processing failed: %v", err)
		return fail(err)
	}
	defer unlock()

	ctx := &RunContext{
		FS:        r.FS,
		Tools:     r.Tools,
		Report:    rep,
		Dataset:   info,
		Params:    req.Params,
		HomeDir:   req.HomeDir,
		Layout:    layout,
		Artifacts: res.Artifacts,
	}

	if req.DryRun {
		rep.Infof("Dry run: project workspace %s", layout.Project)
		for _, st := range Stages() {
			rep.Infof("Would run %s", st.Name)
		}
		res.OK = true
		res.State = StateSuccess
		return finish()
	}

	for _, st := range Stages() {
		res.State = State(st.Name)
		rep.StageStarted(st.Name)
		r.ledgerEvent(runID, st.Name, runlog.EventStarted, "")
		stageStart := clock.Now()

		if err := runStage(st, ctx); err != nil {
			serr := &StageError{Stage: st.Name, Err: err}
			rep.StageFailed(st.Name, err)
			r.ledgerEvent(runID, st.Name, runlog.EventFailed, err.Error())
			r.finishLedgerRun(runID, false, st.Name)
			res.FailedStage = st.Name
			rep.Infof("Processing failed - check messages above")
			return fail(serr)
		}

		rep.StageCompleted(st.Name)
		r.ledgerEvent(runID, st.Name, runlog.EventCompleted, clock.Since(stageStart).String())
	}

	summarizeFootprints(ctx, rep)
	r.finishLedgerRun(runID, true, "")
	rep.Infof("Processing completed successfully in %s", clock.Since(runStart).Round(time.Millisecond))
	res.OK = true
	res.State = StateSuccess
	return finish()
}

// runStage executes one stage adapter inside a recovery boundary so no
// panic crosses into the orchestrator loop.
func runStage(st Stage, ctx *RunContext) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &UnexpectedError{Stage: st.Name, Value: v}
		}
	}()
	return st.Run(ctx)
}

// The ledger methods are nil-receiver safe, so a Runner without a ledger
// still gets run IDs and skips persistence.

func (r *Runner) startLedgerRun(dataset string) (string, error) {
	return r.Ledger.StartRun(dataset)
}

func (r *Runner) ledgerEvent(runID, stage, event, detail string) {
	if err := r.Ledger.StageEvent(runID, stage, event, detail); err != nil {
		r.Report.Warnf("run ledger: %v", err)
	}
}

func (r *Runner) finishLedgerRun(runID string, ok bool, failedStage string) {
	if err := r.Ledger.FinishRun(runID, ok, failedStage); err != nil {
		r.Report.Warnf("run ledger: %v", err)
	}
}
