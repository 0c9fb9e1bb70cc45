package build

import (
	"context"
	"time"

	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/snapshot"
)

// Trigger records why a build ran.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerReload  Trigger = "reload"
	TriggerManual  Trigger = "manual"
)

// Outcome is the structured result of one build cycle.
type Outcome struct {
	ID      string
	Trigger Trigger
	// Stage is the last stage entered. On success it is StagePublishing.
	Stage errors.Stage
	// Err is a *errors.BuildError when the build failed.
	Err error
	// Snapshot is the published snapshot, nil on failure.
	Snapshot *snapshot.Snapshot
	Elapsed  time.Duration

	TLSEnabled     bool
	LoggingEnabled bool
	Warnings       []string
	// Changes lists the paths that triggered a reload.
	Changes []string
}

// Succeeded reports whether the build published a snapshot.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Reporter consumes build outcomes. Reporters run on the build goroutine
// and must not start another build.
type Reporter interface {
	Report(ctx context.Context, out Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, out Outcome)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, out Outcome) {
	f(ctx, out)
}

// Reporters fans an outcome out to every reporter in order.
type Reporters []Reporter

// Report implements Reporter.
func (rs Reporters) Report(ctx context.Context, out Outcome) {
	for _, r := range rs {
		if r != nil {
			r.Report(ctx, out)
		}
	}
}
