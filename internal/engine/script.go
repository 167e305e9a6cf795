package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lasfoot/internal/monitoring"
)

// ScriptToolbox runs the processing routines as blocking subprocesses. Each
// routine is an executable under <home>/scripts named after the routine; it
// receives its parameter set as a JSON document on stdin and signals failure
// through its exit status. A hang in a routine hangs the run; the pipeline
// carries no timeout by design.
type ScriptToolbox struct {
	HomeDir string
}

// NewScriptToolbox returns a toolbox rooted at the given home directory.
func NewScriptToolbox(homeDir string) *ScriptToolbox {
	return &ScriptToolbox{HomeDir: homeDir}
}

// ScriptsDir returns the directory expected to hold the routine executables.
func (t *ScriptToolbox) ScriptsDir() string {
	return filepath.Join(t.HomeDir, "scripts")
}

// HasScripts reports whether the scripts directory exists.
func (t *ScriptToolbox) HasScripts() bool {
	st, err := os.Stat(t.ScriptsDir())
	return err == nil && st.IsDir()
}

func (t *ScriptToolbox) run(routine string, params any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", routine, err)
	}

	script := filepath.Join(t.ScriptsDir(), routine)
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("routine %s not found in %s: %w", routine, t.ScriptsDir(), err)
	}

	cmd := exec.Command(script)
	cmd.Stdin = bytes.NewReader(payload)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	monitoring.Logf("engine: running %s", routine)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		if msg != "" {
			return fmt.Errorf("routine %s failed: %w: %s", routine, err, msg)
		}
		return fmt.Errorf("routine %s failed: %w", routine, err)
	}
	return nil
}

func (t *ScriptToolbox) ExtractElevation(p ElevationParams) error {
	return t.run(RoutineExtractElevation, p)
}

func (t *ScriptToolbox) BuildMosaic(p MosaicParams) error {
	return t.run(RoutineBuildMosaic, p)
}

func (t *ScriptToolbox) FocalFilter(p FocalParams) error {
	return t.run(RoutineFocalStatistics, p)
}

func (t *ScriptToolbox) VectorizeFootprints(p FootprintParams) error {
	return t.run(RoutineFootprintsFromRaster, p)
}

func (t *ScriptToolbox) SegmentRoofs(p SegmentationParams) error {
	return t.run(RoutineSegmentRoofs, p)
}

func (t *ScriptToolbox) ExtractRoofForms(p RoofFormParams) error {
	return t.run(RoutineExtractRoofForms, p)
}

// ScriptLicense checks capabilities out through an optional license hook:
// an executable named "license" next to the routines, called as
// "license checkout <capability>" and "license checkin <capability>". When
// no hook is present the capability is granted freely.
type ScriptLicense struct {
	HomeDir string
}

func (l *ScriptLicense) hook() string {
	return filepath.Join(l.HomeDir, "scripts", "license")
}

// CheckOut acquires the capability. The returned release checks it back in;
// checkin failures are logged, never surfaced, so release is safe to defer.
func (l *ScriptLicense) CheckOut(capability string) (func(), error) {
	hook := l.hook()
	if _, err := os.Stat(hook); err != nil {
		return func() {}, nil
	}

	out, err := exec.Command(hook, "checkout", capability).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("license checkout %s: %w: %s", capability, err, strings.TrimSpace(string(out)))
	}

	return func() {
		if out, err := exec.Command(hook, "checkin", capability).CombinedOutput(); err != nil {
			monitoring.Logf("engine: license checkin %s failed: %v: %s", capability, err, strings.TrimSpace(string(out)))
		}
	}, nil
}
