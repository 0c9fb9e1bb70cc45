package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/scaffolding"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a starter site and default config",
	Long: `Write a default hotserve.yml together with a starter template, a
stylesheet and a 404 page. If no directory is given the current directory
is used. Existing files are left untouched unless --force is set.

Examples:
  hotserve init                    # Initialize the current directory
  hotserve init my-site            # Initialize ./my-site
  hotserve init --host 0.0.0.0:80  # Listen on all interfaces`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initHost  string
	initName  string
	initForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initHost, "host", "", "listen address written to the config (default "+config.DefaultHost+")")
	initCmd.Flags().StringVar(&initName, "name", "", "project name shown on the starter pages (default: directory name)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if len(args) == 1 {
		path = filepath.Join(args[0], filepath.Base(path))
	}

	result, err := scaffolding.Generate(path, scaffolding.Options{
		ProjectName: initName,
		Host:        initHost,
		Force:       initForce,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, file := range result.Created {
		fmt.Fprintf(w, "created  %s\n", file)
	}
	for _, file := range result.Skipped {
		fmt.Fprintf(w, "kept     %s\n", file)
	}
	fmt.Fprintf(w, "\nRun: hotserve serve --config %s\n", result.ConfigPath)
	return nil
}
