// Package build runs the staged pipeline that turns the config file and
// template sources into a published snapshot.
//
// A cycle walks Loading → CompilingTemplates → BuildingRoutes → Publishing.
// Any stage failure ends the cycle with a BuildError and leaves the
// previously published snapshot in place. The pipeline never logs; it hands
// every Outcome to its Reporters.
package build

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/routes"
	"github.com/conneroisu/hotserve/internal/snapshot"
	"github.com/conneroisu/hotserve/internal/templates"
)

const tracerName = "github.com/conneroisu/hotserve/internal/build"

// Options configures a Pipeline.
type Options struct {
	// ConfigPath is the config file read at the start of every cycle.
	ConfigPath string
	// Overrides are merged over the file on every cycle.
	Overrides config.Overrides
	// Inject is added to rendered pages when hot reload is enabled.
	Inject string

	Store     *snapshot.Store
	Reporters []Reporter
	// Tracer defaults to the global OpenTelemetry provider.
	Tracer trace.Tracer
}

// Pipeline builds and publishes snapshots. Runs are serialised.
type Pipeline struct {
	opts   Options
	store  *snapshot.Store
	tracer trace.Tracer

	runMu sync.Mutex
	state atomic.Int32

	reportersMu sync.RWMutex
	reporters   Reporters

	lastMu sync.RWMutex
	last   *Outcome
}

// NewPipeline creates a pipeline. A nil Store gets a fresh one.
func NewPipeline(opts Options) *Pipeline {
	store := opts.Store
	if store == nil {
		store = snapshot.NewStore()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Pipeline{
		opts:      opts,
		store:     store,
		tracer:    tracer,
		reporters: append(Reporters(nil), opts.Reporters...),
	}
}

// Store returns the store snapshots are published to.
func (p *Pipeline) Store() *snapshot.Store {
	return p.store
}

// AddReporter registers r for every later outcome.
func (p *Pipeline) AddReporter(r Reporter) {
	p.reportersMu.Lock()
	defer p.reportersMu.Unlock()
	p.reporters = append(p.reporters, r)
}

// State returns the stage currently executing, StageIdle between runs.
func (p *Pipeline) State() errors.Stage {
	return errors.Stage(p.state.Load())
}

// LastOutcome returns the outcome of the most recent run.
func (p *Pipeline) LastOutcome() (Outcome, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	if p.last == nil {
		return Outcome{}, false
	}
	return *p.last, true
}

// Startup runs the initial build. Any failure is returned and is meant to
// abort the process.
func (p *Pipeline) Startup(ctx context.Context) (Outcome, error) {
	out := p.Run(ctx, TriggerStartup)
	return out, out.Err
}

// Rebuild runs a hot-reload build for the given changed paths. A failure is
// only reported; the previous snapshot keeps serving.
func (p *Pipeline) Rebuild(ctx context.Context, changes []string) Outcome {
	return p.Run(ctx, TriggerReload, changes...)
}

// Run executes one full build cycle and reports its outcome.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger, changes ...string) Outcome {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	out := Outcome{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Changes: append([]string(nil), changes...),
	}

	ctx, span := p.tracer.Start(ctx, "build", trace.WithAttributes(
		attribute.String("hotserve.build.id", out.ID),
		attribute.String("hotserve.build.trigger", string(trigger)),
		attribute.Int("hotserve.build.changes", len(changes)),
	))

	out.Err = p.execute(ctx, &out)
	out.Elapsed = time.Since(start)
	p.state.Store(int32(errors.StageIdle))

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("hotserve.snapshot.generation", int64(out.Snapshot.Generation)))
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	p.lastMu.Lock()
	last := out
	p.last = &last
	p.lastMu.Unlock()

	p.reportersMu.RLock()
	reporters := append(Reporters(nil), p.reporters...)
	p.reportersMu.RUnlock()
	reporters.Report(ctx, out)

	return out
}

// execute walks the stages. Everything built here stays private to the run
// until the Publishing stage swaps it in.
func (p *Pipeline) execute(ctx context.Context, out *Outcome) error {
	var cfg *config.Config
	err := p.stage(ctx, out, errors.StageLoading, func() error {
		var err error
		cfg, err = config.LoadWithOverrides(p.opts.ConfigPath, p.opts.Overrides)
		return err
	})
	if err != nil {
		return err
	}
	out.TLSEnabled = cfg.Server.TLS.Enable
	out.LoggingEnabled = cfg.Runtime.EnableLogging

	var reg *templates.Registry
	err = p.stage(ctx, out, errors.StageCompilingTemplates, func() error {
		var err error
		reg, err = templates.CompileAll(cfg.TemplatesRoot(), cfg.Templates.Extensions)
		return err
	})
	if err != nil {
		return err
	}

	warnings := errors.NewWarningCollector()
	if len(cfg.Routes) == 0 {
		warnings.Addf("no routes declared in %s, every request will get 404", cfg.Path)
	}

	var table *routes.Table
	err = p.stage(ctx, out, errors.StageBuildingRoutes, func() error {
		opts := routes.OptionsFromConfig(cfg, p.opts.Inject)
		opts.Warnings = warnings
		var err error
		table, err = routes.Build(cfg.Routes, reg, opts)
		return err
	})
	if err != nil {
		return err
	}
	out.Warnings = warnings.Warnings()

	return p.stage(ctx, out, errors.StagePublishing, func() error {
		snap := snapshot.New(cfg, reg, table)
		p.store.Publish(snap)
		out.Snapshot = snap
		return nil
	})
}

// stage runs fn as one traced pipeline stage.
func (p *Pipeline) stage(ctx context.Context, out *Outcome, stage errors.Stage, fn func() error) error {
	out.Stage = stage
	p.state.Store(int32(stage))

	_, span := p.tracer.Start(ctx, "build."+stage.String())
	defer span.End()

	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.NewBuildError(stage, err)
	}
	return nil
}
