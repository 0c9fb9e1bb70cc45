package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/hotserve/internal/build"
	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/logging"
	"github.com/conneroisu/hotserve/internal/scaffolding"
	"github.com/conneroisu/hotserve/internal/server"
	"github.com/conneroisu/hotserve/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the site with hot reload",
	Long: `Build the site and serve it. A missing config file is replaced by a
starter site first.

The listen address and TLS settings are taken from the startup build and
stay fixed until the process restarts. Everything else reloads when its
source file changes, if config.enable_hot_reload is set.

Examples:
  hotserve serve                                  # Serve hotserve.yml
  hotserve serve --host 0.0.0.0:8080              # Override the listen address
  hotserve serve --tls-cert cert.pem --tls-key key.pem`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addOverrideFlags(serveCmd)
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "", "address to listen on, overrides server.host")
	cmd.Flags().String("tls-key", "", "TLS private key file, overrides server.tls.key")
	cmd.Flags().String("tls-cert", "", "TLS certificate file, overrides server.tls.cert")
}

// overridesFromFlags turns the flags that were explicitly set into config
// overrides. An unset flag never replaces a file value.
func overridesFromFlags(flags *pflag.FlagSet) config.Overrides {
	var o config.Overrides

	if flags.Changed("host") {
		v, _ := flags.GetString("host")
		o.Host = config.String(v)
	}
	if flags.Changed("tls-key") {
		v, _ := flags.GetString("tls-key")
		o.TLSKey = config.String(v)
	}
	if flags.Changed("tls-cert") {
		v, _ := flags.GetString("tls-cert")
		o.TLSCert = config.String(v)
	}

	return o
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := configPath()
	if err := ensureSite(ctx, path, logger); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline := build.NewPipeline(build.Options{
		ConfigPath: path,
		Overrides:  overridesFromFlags(cmd.Flags()),
		Inject:     server.LiveReloadScript,
		Reporters: []build.Reporter{
			logging.NewBuildReporter(logger),
			build.NewMetrics(registry),
		},
	})

	srv := server.New(server.Options{
		Store:    pipeline.Store(),
		Status:   pipeline,
		Logger:   logger,
		Registry: registry,
	})
	pipeline.AddReporter(srv)

	out, err := pipeline.Startup(ctx)
	if err != nil {
		return err
	}
	cfg := out.Snapshot.Config

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, cfg)
	})

	if cfg.Runtime.EnableHotReload {
		reloader, err := watcher.NewHotReloader(pipeline, cfg, logger)
		if err != nil {
			logger.Warn(ctx, err, "Hot reload disabled")
		} else {
			g.Go(func() error {
				return reloader.Run(gctx)
			})
		}
	}

	return g.Wait()
}

// ensureSite scaffolds a starter site when the config file is missing.
func ensureSite(ctx context.Context, path string, logger *logging.HotserveLogger) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	op := logger.StartOperation("scaffold")
	result, err := scaffolding.Generate(path, scaffolding.Options{})
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.Info(ctx, "No config file found, generated a starter site",
		"config", result.ConfigPath,
		"files", len(result.Created))
	op.End(ctx)
	return nil
}
