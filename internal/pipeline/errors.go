package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/lasfoot/internal/workspace"
)

// Validation and stage error kinds. Stage adapters wrap their causes in
// StageError so the orchestrator can always name the failing stage.
var (
	ErrMissingDataset          = errors.New("point-cloud dataset does not exist")
	ErrWrongDatasetType        = errors.New("input is not a point-cloud dataset")
	ErrMissingDirectory        = errors.New("required directory does not exist")
	ErrMissingSpatialReference = errors.New("dataset carries no spatial reference")

	// ErrWorkspaceCreation mirrors the workspace package's sentinel so
	// callers can match either.
	ErrWorkspaceCreation = workspace.ErrCreate
)

// MissingInputError reports that a stage's required predecessor artifact is
// absent, naming the input and the path that was probed.
type MissingInputError struct {
	Stage string
	Input string
	Path  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: required input %s does not exist: %s", e.Stage, e.Input, e.Path)
}

// OutputMissingError reports that a routine returned without error but its
// declared output artifact(s) were not found. Existence of the declared
// output is the authoritative success criterion for every stage.
type OutputMissingError struct {
	Stage    string
	Expected []string
}

func (e *OutputMissingError) Error() string {
	return fmt.Sprintf("%s: declared output not created: %s", e.Stage, strings.Join(e.Expected, ", "))
}

// StageError wraps any failure that occurred inside a stage boundary.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// UnexpectedError is the catch-all for failures a stage did not anticipate,
// including recovered panics. No panic crosses a stage boundary.
type UnexpectedError struct {
	Stage string
	Value any
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: unexpected failure: %v", e.Stage, e.Value)
}
