package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotserve/internal/build"
	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/logging"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once without serving",
	Long: `Run one full build: load the config, compile every template and bind
every route. Nothing is served. The exit status is non-zero when the build
fails, which makes this suitable for CI.

Examples:
  hotserve build                   # Validate hotserve.yml
  hotserve build --routes          # Also list the compiled routes
  hotserve build --format json     # Machine-readable summary`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var (
	buildFormat string
	buildRoutes bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "text", "Output format (text, json)")
	buildCmd.Flags().BoolVar(&buildRoutes, "routes", false, "List the compiled routes")
	addOverrideFlags(buildCmd)
}

// BuildSummary is the JSON output of the build command.
type BuildSummary struct {
	ID        string         `json:"id"`
	Succeeded bool           `json:"succeeded"`
	Stage     string         `json:"stage"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
	ElapsedMS float64        `json:"elapsed_ms"`
	Templates []string       `json:"templates,omitempty"`
	Routes    []RouteSummary `json:"routes,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

type RouteSummary struct {
	Pattern string `json:"pattern"`
	Kind    string `json:"kind"`
	Target  string `json:"target"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildFormat != "text" && buildFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", buildFormat)
	}

	var reporters []build.Reporter
	if buildFormat == "text" {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		reporters = append(reporters, logging.NewBuildReporter(logger))
	}

	pipeline := build.NewPipeline(build.Options{
		ConfigPath: configPath(),
		Overrides:  overridesFromFlags(cmd.Flags()),
		Reporters:  reporters,
	})
	out := pipeline.Run(commandContext(cmd), build.TriggerManual)
	summary := summarize(out)

	if buildFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else if buildRoutes && out.Succeeded() {
		w := cmd.OutOrStdout()
		for _, route := range summary.Routes {
			fmt.Fprintf(w, "%-30s %-10s %s\n", route.Pattern, route.Kind, route.Target)
		}
	}

	return out.Err
}

func summarize(out build.Outcome) BuildSummary {
	summary := BuildSummary{
		ID:        out.ID,
		Succeeded: out.Succeeded(),
		Stage:     out.Stage.String(),
		ElapsedMS: float64(out.Elapsed.Microseconds()) / 1000,
		Warnings:  out.Warnings,
	}
	if out.Err != nil {
		summary.Error = out.Err.Error()
		summary.ErrorType = string(errors.Type(out.Err))
		return summary
	}

	summary.Templates = out.Snapshot.Templates.Names()
	for _, route := range out.Snapshot.Routes.Routes() {
		target := route.Path
		switch {
		case route.Template != "":
			target = route.Template
		case route.Target != "":
			target = route.Target
		}
		summary.Routes = append(summary.Routes, RouteSummary{
			Pattern: route.Pattern,
			Kind:    string(route.Kind),
			Target:  target,
		})
	}
	return summary
}
