package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigBuilder provides a fluent interface for assembling the declared
// config of a new site.
//
// Usage:
//
//	cfg := NewConfigBuilder().
//	    WithHost("0.0.0.0:8080").
//	    WithTemplateRoute("/", "index", "").
//	    Declared()
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder with sensible defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: &Config{
			Server: ServerConfig{Host: DefaultHost},
			Runtime: RuntimeConfig{
				EnableHotReload:    true,
				EnableCacheControl: true,
			},
			Templates: TemplatesConfig{Root: DefaultTemplatesRoot},
		},
	}
}

// WithHost sets the listen address.
func (cb *ConfigBuilder) WithHost(host string) *ConfigBuilder {
	cb.config.Server.Host = host
	return cb
}

// WithLogging toggles request logging.
func (cb *ConfigBuilder) WithLogging(enabled bool) *ConfigBuilder {
	cb.config.Runtime.EnableLogging = enabled
	return cb
}

// WithErrorPage maps a status code to a page file.
func (cb *ConfigBuilder) WithErrorPage(status int, path string) *ConfigBuilder {
	if cb.config.ErrorPages == nil {
		cb.config.ErrorPages = make(map[string]string)
	}
	cb.config.ErrorPages[fmt.Sprintf("%d", status)] = path
	return cb
}

// WithHeader adds a header inserted into every response.
func (cb *ConfigBuilder) WithHeader(name, value string) *ConfigBuilder {
	if cb.config.InsertHeaders == nil {
		cb.config.InsertHeaders = make(map[string]string)
	}
	cb.config.InsertHeaders[name] = value
	return cb
}

// WithRoute appends a route declaration.
func (cb *ConfigBuilder) WithRoute(route RouteDeclaration) *ConfigBuilder {
	cb.config.Routes = append(cb.config.Routes, route)
	return cb
}

// WithTemplateRoute appends a templated page route.
func (cb *ConfigBuilder) WithTemplateRoute(pattern, template, context string) *ConfigBuilder {
	return cb.WithRoute(RouteDeclaration{Pattern: pattern, Kind: KindTemplate, Template: template, Context: context})
}

// WithStaticDir appends a static directory route.
func (cb *ConfigBuilder) WithStaticDir(pattern, dir string) *ConfigBuilder {
	return cb.WithRoute(RouteDeclaration{Pattern: pattern, Kind: KindStaticDir, Path: dir})
}

// Declared returns the config as it would be written to a file, without
// the defaults Load applies.
func (cb *ConfigBuilder) Declared() *Config {
	cfg := Merge(*cb.config, Overrides{})
	return &cfg
}

// WriteFile marshals cfg as YAML to path, creating parent directories.
func WriteFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := []byte("# hotserve configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
