// Package scaffolding writes a default configuration and a small starter
// site when hotserve is pointed at a config file that does not exist.
package scaffolding

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/conneroisu/hotserve/internal/config"
)

// Options holds options for site generation
type Options struct {
	// ProjectName appears in the starter pages. Defaults to the name of the
	// directory holding the config file.
	ProjectName string
	// Host overrides config.DefaultHost in the written config.
	Host string
	// Force overwrites files that already exist.
	Force bool
}

// SiteContext is the data starter files are executed with.
type SiteContext struct {
	ProjectName string
	Date        string
}

// Result lists what Generate wrote.
type Result struct {
	ConfigPath string
	Created    []string
	Skipped    []string
}

// DefaultConfig returns the declared config written for a new site. Its
// routes reference the starter files.
func DefaultConfig(host string) *config.Config {
	if host == "" {
		host = config.DefaultHost
	}
	return config.NewConfigBuilder().
		WithHost(host).
		WithLogging(true).
		WithTemplateRoute("/", "index", "content/index.yml").
		WithStaticDir("/static/*", "public").
		WithErrorPage(404, "404.html").
		WithHeader("X-Powered-By", "hotserve").
		Declared()
}

// Generate writes the default config to configPath and the starter files
// next to it. Existing files are kept unless opts.Force is set.
func Generate(configPath string, opts Options) (*Result, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	dir := filepath.Dir(absPath)

	if opts.ProjectName == "" {
		opts.ProjectName = filepath.Base(dir)
	}
	ctx := SiteContext{
		ProjectName: opts.ProjectName,
		Date:        time.Now().Format("2006-01-02"),
	}

	result := &Result{ConfigPath: absPath}

	if exists(absPath) && !opts.Force {
		result.Skipped = append(result.Skipped, absPath)
	} else {
		if err := config.WriteFile(absPath, DefaultConfig(opts.Host)); err != nil {
			return nil, err
		}
		result.Created = append(result.Created, absPath)
	}

	for _, file := range starterFiles {
		path := filepath.Join(dir, filepath.FromSlash(file.Path))
		if exists(path) && !opts.Force {
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err := generateFile(path, file.Content, ctx); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", file.Path, err)
		}
		result.Created = append(result.Created, path)
	}

	return result, nil
}

// generateFile generates a file from a template
func generateFile(filename, content string, ctx SiteContext) error {
	tmpl, err := template.New(filepath.Base(filename)).Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := tmpl.Execute(file, ctx); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
