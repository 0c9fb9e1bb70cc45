// Package errors defines the error taxonomy shared by every build stage of
// hotserve: configuration loading, template compilation, route building and
// filesystem watching.
//
// Each category is a concrete type carrying a Kind so callers can branch on
// the failure without string matching. All types wrap their cause, so the
// standard errors.Is and errors.As keep working through them.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeTemplate ErrorType = "template"
	ErrorTypeRoute    ErrorType = "route"
	ErrorTypeWatch    ErrorType = "watch"
)

// ConfigErrorKind classifies a ConfigError.
type ConfigErrorKind string

const (
	ConfigMissing   ConfigErrorKind = "missing"
	ConfigMalformed ConfigErrorKind = "malformed"
	ConfigInvalid   ConfigErrorKind = "invalid"
)

// ConfigError is returned while loading or validating the configuration file.
type ConfigError struct {
	Kind  ConfigErrorKind
	Path  string
	Field string
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("config %s", e.Kind))
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Field != "" {
		parts = append(parts, "field "+e.Field)
	}

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TemplateErrorKind classifies a TemplateError.
type TemplateErrorKind string

const (
	TemplateParseFailed  TemplateErrorKind = "parse_failed"
	TemplateRenderFailed TemplateErrorKind = "render_failed"
	TemplateNotFound     TemplateErrorKind = "not_found"
)

// TemplateError is returned by template compilation and rendering.
type TemplateError struct {
	Kind  TemplateErrorKind
	Name  string
	File  string
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("template %q: %s", e.Name, e.Kind)
	if e.File != "" {
		msg += " (" + e.File + ")"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RouteErrorKind classifies a RouteError.
type RouteErrorKind string

const (
	RouteUnknownTemplate RouteErrorKind = "unknown_template"
	RoutePathUnavailable RouteErrorKind = "path_unavailable"
	RouteInvalidPattern  RouteErrorKind = "invalid_pattern"
	RouteInvalidHandler  RouteErrorKind = "invalid_handler"
	RouteInvalidContext  RouteErrorKind = "invalid_context"
)

// RouteError is returned when a route declaration cannot be compiled.
type RouteError struct {
	Kind    RouteErrorKind
	Index   int
	Pattern string
	// Name is the template name for RouteUnknownTemplate and the path for
	// RoutePathUnavailable and RouteInvalidContext.
	Name  string
	Cause error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	msg := fmt.Sprintf("route #%d %q: %s", e.Index, e.Pattern, e.Kind)
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause error.
func (e *RouteError) Unwrap() error {
	return e.Cause
}

// WatchErrorKind classifies a WatchError.
type WatchErrorKind string

const (
	WatchSubscribeFailed WatchErrorKind = "subscribe_failed"
)

// WatchError reports a filesystem subscription failure. It is never fatal.
type WatchError struct {
	Kind  WatchErrorKind
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *WatchError) Error() string {
	msg := fmt.Sprintf("watch %s", e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause error.
func (e *WatchError) Unwrap() error {
	return e.Cause
}

// Type reports the category of err, or the empty string when err does not
// belong to the taxonomy.
func Type(err error) ErrorType {
	var (
		ce *ConfigError
		te *TemplateError
		re *RouteError
		we *WatchError
	)

	switch {
	case errors.As(err, &ce):
		return ErrorTypeConfig
	case errors.As(err, &te):
		return ErrorTypeTemplate
	case errors.As(err, &re):
		return ErrorTypeRoute
	case errors.As(err, &we):
		return ErrorTypeWatch
	default:
		return ""
	}
}
