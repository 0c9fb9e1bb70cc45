// Package cmd provides the command-line interface for hotserve.
//
// Configuration file lookup, highest priority first:
//  1. --config flag
//  2. HOTSERVE_CONFIG_FILE environment variable
//  3. hotserve.yml in the current directory
//
// Individual config values can be overridden with HOTSERVE_<SECTION>_<OPTION>
// environment variables (HOTSERVE_SERVER_HOST, HOTSERVE_CONFIG_ENABLE_LOGGING).
// Those are read on every build, so they apply to hot reloads as well.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hotserve",
	Short: "A configuration-driven static and templated content server",
	Long: `hotserve serves a site described by a single config file: static
directories, single files, templated pages, redirects and reverse proxies.

The config file and every template are compiled into an immutable snapshot.
With hot reload enabled, saving any of them rebuilds the snapshot in the
background and swaps it in atomically; a broken edit keeps the last good
build serving.

Quick Start:
  hotserve init                   Write a starter site
  hotserve serve                  Serve it with hot reload
  hotserve build                  Validate the site without serving`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.FileName+", can also use HOTSERVE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig binds the CLI-level settings. The site config itself is read
// by the build pipeline on every cycle, not here.
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// configPath returns the site config file to use.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if env := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); env != "" {
		return env
	}
	return config.FileName
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger() (*logging.HotserveLogger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	format := viper.GetString("log-format")
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	}), nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
