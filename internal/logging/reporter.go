package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/hotserve/internal/build"
	"github.com/conneroisu/hotserve/internal/errors"
)

// BuildReporter prints build outcomes through a Logger.
type BuildReporter struct {
	logger Logger
}

// NewBuildReporter creates a reporter writing to logger.
func NewBuildReporter(logger Logger) *BuildReporter {
	return &BuildReporter{logger: logger.WithComponent("build")}
}

// Report implements build.Reporter.
func (r *BuildReporter) Report(ctx context.Context, out build.Outcome) {
	if !out.Succeeded() {
		r.logger.Error(ctx, out.Err, "Build failed",
			"stage", out.Stage.String(),
			"error_type", string(errors.Type(out.Err)),
			"trigger", string(out.Trigger),
			"build_id", out.ID,
			"changes", len(out.Changes),
		)
		return
	}

	fields := []interface{}{
		"trigger", string(out.Trigger),
		"build_id", out.ID,
	}
	if snap := out.Snapshot; snap != nil {
		fields = append(fields,
			"generation", snap.Generation,
			"routes", snap.Routes.Len(),
			"templates", snap.Templates.Len(),
		)
	}
	r.logger.Info(ctx, "Build finished in "+FormatElapsed(out.Elapsed), fields...)

	if out.TLSEnabled {
		r.logger.Info(ctx, "Enabled TLS (HTTPS)")
	}
	if out.LoggingEnabled {
		r.logger.Info(ctx, "Enabled logging")
	}
	for _, warning := range out.Warnings {
		r.logger.Warn(ctx, nil, warning)
	}
}

// FormatElapsed renders a build duration in milliseconds, or microseconds
// when it is under one millisecond.
func FormatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", d.Milliseconds())
}
