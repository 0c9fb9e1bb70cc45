package errors

import (
	"errors"
)

// IsConfigKind reports whether err wraps a ConfigError of the given kind.
func IsConfigKind(err error, kind ConfigErrorKind) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Kind == kind
}

// IsTemplateKind reports whether err wraps a TemplateError of the given kind.
func IsTemplateKind(err error, kind TemplateErrorKind) bool {
	var te *TemplateError
	return errors.As(err, &te) && te.Kind == kind
}

// IsRouteKind reports whether err wraps a RouteError of the given kind.
func IsRouteKind(err error, kind RouteErrorKind) bool {
	var re *RouteError
	return errors.As(err, &re) && re.Kind == kind
}

// StageOf returns the stage recorded in a BuildError, or StageIdle.
func StageOf(err error) Stage {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Stage
	}
	return StageIdle
}

// Is is errors.Is, re-exported so callers importing this package do not
// need a second alias for the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported for the same reason as Is.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New.
func New(text string) error {
	return errors.New(text)
}
