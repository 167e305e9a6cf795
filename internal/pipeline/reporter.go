package pipeline

import (
	"fmt"
	"sync"

	"github.com/banshee-data/lasfoot/internal/monitoring"
)

// Reporter surfaces per-stage progress and terminal outcome to the invoking
// environment. It is purely observational and never part of the data flow.
type Reporter interface {
	StageStarted(stage string)
	StageCompleted(stage string)
	StageFailed(stage string, err error)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// MessageLog is the default Reporter: a linear, human-readable message
// trail, echoed through the monitoring logger as it accumulates. No stack
// traces reach the end user; errors surface as single lines naming the
// stage and cause.
type MessageLog struct {
	mu    sync.Mutex
	lines []string
}

// NewMessageLog returns an empty message trail.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (m *MessageLog) append(line string) {
	m.mu.Lock()
	m.lines = append(m.lines, line)
	m.mu.Unlock()
	monitoring.Logf("%s", line)
}

func (m *MessageLog) StageStarted(stage string) {
	m.append(fmt.Sprintf("Starting %s...", stage))
}

func (m *MessageLog) StageCompleted(stage string) {
	m.append(fmt.Sprintf("%s completed successfully", stage))
}

func (m *MessageLog) StageFailed(stage string, err error) {
	m.append(fmt.Sprintf("Error in %s: %v", stage, err))
}

func (m *MessageLog) Infof(format string, args ...any) {
	m.append(fmt.Sprintf(format, args...))
}

func (m *MessageLog) Warnf(format string, args ...any) {
	m.append("warning: " + fmt.Sprintf(format, args...))
}

// Lines returns a copy of the accumulated trail.
func (m *MessageLog) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}
