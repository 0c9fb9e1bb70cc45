package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/hotserve/internal/errors"
)

// Validate checks the semantic rules of a decoded config. It never touches
// the filesystem: path existence is checked by the route builder and the TLS
// layer.
func Validate(cfg *Config) error {
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return err
	}
	if err := validateTemplatesConfig(cfg); err != nil {
		return err
	}
	if err := validateErrorPages(cfg); err != nil {
		return err
	}
	return validateRoutes(cfg)
}

func invalid(cfg *Config, field string, format string, args ...interface{}) error {
	return &errors.ConfigError{
		Kind:  errors.ConfigInvalid,
		Path:  cfg.Path,
		Field: field,
		Cause: fmt.Errorf(format, args...),
	}
}

// validateServerConfig validates server configuration values
func validateServerConfig(cfg *Config) error {
	host := strings.TrimSpace(cfg.Server.Host)
	if host == "" {
		return invalid(cfg, "server.host", "host must not be empty")
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return invalid(cfg, "server.host", "host %q contains whitespace", host)
	}

	if cfg.Server.TLS.Enable {
		if strings.TrimSpace(cfg.Server.TLS.Key) == "" {
			return invalid(cfg, "server.tls.key", "tls is enabled but key path is empty")
		}
		if strings.TrimSpace(cfg.Server.TLS.Cert) == "" {
			return invalid(cfg, "server.tls.cert", "tls is enabled but cert path is empty")
		}
	}

	return nil
}

func validateRuntimeConfig(cfg *Config) error {
	if cfg.Runtime.Debounce < 0 {
		return invalid(cfg, "config.debounce", "debounce must not be negative")
	}
	if cfg.Runtime.CacheMaxAge < 0 {
		return invalid(cfg, "config.cache_max_age", "cache max age must not be negative")
	}
	return nil
}

func validateTemplatesConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Templates.Root) == "" {
		return invalid(cfg, "templates.root", "template root must not be empty")
	}
	for _, ext := range cfg.Templates.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return invalid(cfg, "templates.extensions", "extension %q must start with a dot", ext)
		}
	}
	return nil
}

func validateErrorPages(cfg *Config) error {
	for code, page := range cfg.ErrorPages {
		status, err := strconv.Atoi(code)
		if err != nil || status < 400 || status > 599 {
			return invalid(cfg, "error_pages."+code, "error page key must be a 4xx or 5xx status code")
		}
		if strings.TrimSpace(page) == "" {
			return invalid(cfg, "error_pages."+code, "error page path must not be empty")
		}
	}
	return nil
}

// validateRoutes checks the shape of each declaration. Kind-specific
// parameters are resolved by the route builder.
func validateRoutes(cfg *Config) error {
	for i, route := range cfg.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if strings.TrimSpace(route.Pattern) == "" {
			return invalid(cfg, field+".pattern", "pattern must not be empty")
		}
		if !route.Kind.Valid() {
			return invalid(cfg, field+".kind", "unknown handler kind %q", route.Kind)
		}
	}
	return nil
}
