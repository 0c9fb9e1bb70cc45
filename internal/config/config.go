// Package config provides configuration management for hotserve using Viper
// for flexible configuration loading from files and environment variables.
//
// One Config is decoded per build cycle. It carries the server address, the
// optional TLS block, runtime switches (logging, hot reload, directory
// listing, caching), the template root and the ordered route declarations.
// Environment variables with the HOTSERVE_ prefix override file values
// (HOTSERVE_SERVER_HOST, HOTSERVE_CONFIG_ENABLE_LOGGING, ...). Command-line
// overrides are applied afterwards with Merge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/hotserve/internal/errors"
)

const (
	// FileName is the config file looked up when none is given.
	FileName = "hotserve.yml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HOTSERVE"

	DefaultHost          = "127.0.0.1:1337"
	DefaultTemplatesRoot = "templates"
	DefaultDebounce      = 200 * time.Millisecond
	DefaultCacheMaxAge   = time.Hour
)

// DefaultExtensions lists the template file extensions compiled by default.
var DefaultExtensions = []string{".html", ".tmpl", ".gohtml"}

type Config struct {
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Runtime       RuntimeConfig      `mapstructure:"config" yaml:"config"`
	Templates     TemplatesConfig    `mapstructure:"templates" yaml:"templates"`
	ErrorPages    map[string]string  `mapstructure:"error_pages" yaml:"error_pages,omitempty"`
	InsertHeaders map[string]string  `mapstructure:"insert_headers" yaml:"insert_headers,omitempty"`
	Routes        []RouteDeclaration `mapstructure:"routes" yaml:"routes"`

	// Path is the absolute path of the file the config was decoded from.
	// Relative paths in the config resolve against its directory.
	Path string `mapstructure:"-" yaml:"-"`
}

type ServerConfig struct {
	Host string    `mapstructure:"host" yaml:"host"`
	TLS  TLSConfig `mapstructure:"tls" yaml:"tls"`
}

type TLSConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Key    string `mapstructure:"key" yaml:"key"`
	Cert   string `mapstructure:"cert" yaml:"cert"`
}

type RuntimeConfig struct {
	EnableLogging          bool          `mapstructure:"enable_logging" yaml:"enable_logging"`
	EnableHotReload        bool          `mapstructure:"enable_hot_reload" yaml:"enable_hot_reload"`
	EnableDirectoryListing bool          `mapstructure:"enable_directory_listing" yaml:"enable_directory_listing"`
	EnableCacheControl     bool          `mapstructure:"enable_cache_control" yaml:"enable_cache_control"`
	CacheMaxAge            time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age,omitempty"`
	Debounce               time.Duration `mapstructure:"debounce" yaml:"debounce,omitempty"`
}

type TemplatesConfig struct {
	Root       string   `mapstructure:"root" yaml:"root"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions,omitempty"`
}

// HandlerKind names the handler a route is bound to.
type HandlerKind string

const (
	KindStaticDir HandlerKind = "static_dir"
	KindFile      HandlerKind = "file"
	KindTemplate  HandlerKind = "template"
	KindRedirect  HandlerKind = "redirect"
	KindProxy     HandlerKind = "proxy"
)

// Valid reports whether k is one of the known handler kinds.
func (k HandlerKind) Valid() bool {
	switch k {
	case KindStaticDir, KindFile, KindTemplate, KindRedirect, KindProxy:
		return true
	default:
		return false
	}
}

// RouteDeclaration is the unresolved, source-level description of a route.
type RouteDeclaration struct {
	Pattern  string      `mapstructure:"pattern" yaml:"pattern"`
	Kind     HandlerKind `mapstructure:"kind" yaml:"kind"`
	Path     string      `mapstructure:"path" yaml:"path,omitempty"`
	Template string      `mapstructure:"template" yaml:"template,omitempty"`
	Context  string      `mapstructure:"context" yaml:"context,omitempty"`
	Target   string      `mapstructure:"target" yaml:"target,omitempty"`
	Status   int         `mapstructure:"status" yaml:"status,omitempty"`
}

// Load decodes and validates the config file at path.
func Load(path string) (*Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithOverrides decodes the file, merges the overrides on top of it and
// validates the result, so an override can supply a field the file lacks.
func LoadWithOverrides(path string, overrides Overrides) (*Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}
	merged := Merge(*cfg, overrides)
	if err := Validate(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Decode reads the config file at path into a Config with defaults applied.
// It does not validate semantic rules.
func Decode(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &errors.ConfigError{Kind: errors.ConfigMalformed, Path: path, Cause: err}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ConfigError{Kind: errors.ConfigMissing, Path: path, Cause: err}
		}
		return nil, &errors.ConfigError{Kind: errors.ConfigMalformed, Path: path, Cause: err}
	}
	if info.IsDir() {
		return nil, &errors.ConfigError{Kind: errors.ConfigMalformed, Path: path, Cause: fmt.Errorf("is a directory")}
	}

	v := newViper(absPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, &errors.ConfigError{Kind: errors.ConfigMalformed, Path: path, Cause: err}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, &errors.ConfigError{Kind: errors.ConfigMalformed, Path: path, Cause: err}
	}

	cfg.Path = absPath
	applyDefaults(&cfg)

	return &cfg, nil
}

// newViper returns a dedicated Viper instance so concurrent builds and tests
// never share the global one.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.tls.enable", false)
	v.SetDefault("server.tls.key", "")
	v.SetDefault("server.tls.cert", "")
	v.SetDefault("config.enable_logging", false)
	v.SetDefault("config.enable_hot_reload", true)
	v.SetDefault("config.enable_directory_listing", false)
	v.SetDefault("config.enable_cache_control", true)
	v.SetDefault("config.cache_max_age", DefaultCacheMaxAge)
	v.SetDefault("config.debounce", DefaultDebounce)
	v.SetDefault("templates.root", DefaultTemplatesRoot)
	v.SetDefault("templates.extensions", DefaultExtensions)

	return v
}

// applyDefaults fills zero values that Viper defaults do not reach, such as
// configs constructed in code.
func applyDefaults(cfg *Config) {
	if cfg.Templates.Root == "" {
		cfg.Templates.Root = DefaultTemplatesRoot
	}
	if len(cfg.Templates.Extensions) == 0 {
		cfg.Templates.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Runtime.Debounce == 0 {
		cfg.Runtime.Debounce = DefaultDebounce
	}
	if cfg.Runtime.CacheMaxAge == 0 {
		cfg.Runtime.CacheMaxAge = DefaultCacheMaxAge
	}
	for i := range cfg.Routes {
		if cfg.Routes[i].Kind == KindRedirect && cfg.Routes[i].Status == 0 {
			cfg.Routes[i].Status = 302
		}
	}
}

// BaseDir is the directory relative paths resolve against.
func (c *Config) BaseDir() string {
	if c.Path == "" {
		return "."
	}
	return filepath.Dir(c.Path)
}

// Resolve returns p unchanged when absolute, otherwise joined to BaseDir.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir(), p)
}

// TemplatesRoot is the resolved template directory.
func (c *Config) TemplatesRoot() string {
	return c.Resolve(c.Templates.Root)
}
