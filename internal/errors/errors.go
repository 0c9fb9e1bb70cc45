package errors

import (
	"fmt"
	"sync"
)

// Stage identifies a step of the build pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageLoading
	StageCompilingTemplates
	StageBuildingRoutes
	StagePublishing
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoading:
		return "loading"
	case StageCompilingTemplates:
		return "compiling_templates"
	case StageBuildingRoutes:
		return "building_routes"
	case StagePublishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// BuildError wraps the error that stopped a build at a given stage.
type BuildError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface
func (be *BuildError) Error() string {
	return fmt.Sprintf("build failed while %s: %v", be.Stage, be.Err)
}

// Unwrap returns the stage error.
func (be *BuildError) Unwrap() error {
	return be.Err
}

// NewBuildError returns nil when err is nil.
func NewBuildError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &BuildError{Stage: stage, Err: err}
}

// WarningCollector gathers non-fatal diagnostics produced during a build.
type WarningCollector struct {
	warnings []string
	mutex    sync.Mutex
}

// NewWarningCollector creates an empty collector
func NewWarningCollector() *WarningCollector {
	return &WarningCollector{warnings: make([]string, 0)}
}

// Addf records a formatted warning.
func (wc *WarningCollector) Addf(format string, args ...interface{}) {
	wc.mutex.Lock()
	defer wc.mutex.Unlock()
	wc.warnings = append(wc.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns a copy of the collected warnings.
func (wc *WarningCollector) Warnings() []string {
	wc.mutex.Lock()
	defer wc.mutex.Unlock()
	result := make([]string, len(wc.warnings))
	copy(result, wc.warnings)
	return result
}

// Len returns the number of collected warnings.
func (wc *WarningCollector) Len() int {
	wc.mutex.Lock()
	defer wc.mutex.Unlock()
	return len(wc.warnings)
}
