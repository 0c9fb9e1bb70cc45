// Package routes compiles the ordered route declarations of a config into an
// immutable Table that maps request paths to bound handlers.
//
// Matching follows declaration order and the first accepting route wins, so
// "/blog/*" declared before "/blog/special" shadows it. Every referenced
// template, file, directory and context is checked while building, which
// keeps request-time failures limited to rendering.
package routes

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/templates"
)

// Options carries the build-wide settings handlers are bound with.
type Options struct {
	// Resolve turns a config-relative path into a filesystem path. Nil means
	// paths are used as given.
	Resolve func(string) string

	DirectoryListing bool

	// CacheMaxAge sets Cache-Control on file responses. Zero disables it.
	CacheMaxAge time.Duration

	// Inject is appended before </body> of every rendered template page.
	Inject string

	// ErrorPages maps a status code to the file served with it.
	ErrorPages map[int]string

	// Warnings receives the non-fatal findings of Build. A nil collector
	// gets a private one.
	Warnings *errors.WarningCollector
}

// OptionsFromConfig derives the handler options of cfg.
func OptionsFromConfig(cfg *config.Config, inject string) Options {
	opts := Options{
		Resolve:          cfg.Resolve,
		DirectoryListing: cfg.Runtime.EnableDirectoryListing,
		ErrorPages:       make(map[int]string, len(cfg.ErrorPages)),
	}
	if cfg.Runtime.EnableCacheControl {
		opts.CacheMaxAge = cfg.Runtime.CacheMaxAge
	}
	if cfg.Runtime.EnableHotReload {
		opts.Inject = inject
	}
	for key, file := range cfg.ErrorPages {
		// keys were checked by config.Validate
		if status, err := strconv.Atoi(key); err == nil {
			opts.ErrorPages[status] = file
		}
	}
	return opts
}

// Route is one compiled route bound to its handler.
type Route struct {
	Index    int
	Pattern  string
	Kind     config.HandlerKind
	Template string
	// Path is the resolved filesystem path for static_dir and file routes.
	Path    string
	Target  string
	Status  int
	Context map[string]interface{}

	pattern *Pattern
	handler handler
}

// Table is the compiled, read-only route table of one snapshot.
type Table struct {
	routes     []*Route
	errorPages map[int]string
	warnings   *errors.WarningCollector
}

// Build compiles decls in order against reg. The first invalid declaration
// aborts the build with a RouteError.
func Build(decls []config.RouteDeclaration, reg *templates.Registry, opts Options) (*Table, error) {
	if reg == nil {
		reg = templates.NewRegistry()
	}
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func(p string) string { return p }
	}

	warnings := opts.Warnings
	if warnings == nil {
		warnings = errors.NewWarningCollector()
	}

	table := &Table{
		routes:     make([]*Route, 0, len(decls)),
		errorPages: make(map[int]string, len(opts.ErrorPages)),
		warnings:   warnings,
	}
	firstSeen := make(map[string]int)

	for i, decl := range decls {
		pattern, err := CompilePattern(decl.Pattern)
		if err != nil {
			return nil, &errors.RouteError{Kind: errors.RouteInvalidPattern, Index: i, Pattern: decl.Pattern, Cause: err}
		}

		route := &Route{
			Index:    i,
			Pattern:  decl.Pattern,
			Kind:     decl.Kind,
			Template: decl.Template,
			Target:   decl.Target,
			Status:   decl.Status,
			pattern:  pattern,
		}

		if err := bind(route, decl, reg, resolve, opts); err != nil {
			return nil, err
		}

		canonical := pattern.Canonical()
		if first, dup := firstSeen[canonical]; dup {
			warnings.Addf("route #%d %q duplicates route #%d and is unreachable", i, decl.Pattern, first)
		} else {
			firstSeen[canonical] = i
		}

		table.routes = append(table.routes, route)
	}

	for status, file := range opts.ErrorPages {
		resolved := resolve(file)
		if err := checkFile(resolved); err != nil {
			return nil, &errors.RouteError{
				Kind:    errors.RoutePathUnavailable,
				Index:   -1,
				Pattern: "error_pages." + strconv.Itoa(status),
				Name:    resolved,
				Cause:   err,
			}
		}
		table.errorPages[status] = resolved
	}

	return table, nil
}

// bind validates the kind-specific parameters of decl and attaches the
// handler to route.
func bind(route *Route, decl config.RouteDeclaration, reg *templates.Registry, resolve func(string) string, opts Options) error {
	fail := func(kind errors.RouteErrorKind, name string, cause error) error {
		return &errors.RouteError{Kind: kind, Index: route.Index, Pattern: decl.Pattern, Name: name, Cause: cause}
	}

	switch decl.Kind {
	case config.KindTemplate:
		if decl.Template == "" {
			return fail(errors.RouteInvalidHandler, "", fmt.Errorf("template route needs a template name"))
		}
		if !reg.Has(decl.Template) {
			return fail(errors.RouteUnknownTemplate, decl.Template, nil)
		}
		route.Context = map[string]interface{}{}
		if decl.Context != "" {
			ctxPath := resolve(decl.Context)
			ctx, err := templates.LoadContext(ctxPath)
			if err != nil {
				if _, statErr := os.Stat(ctxPath); statErr != nil {
					return fail(errors.RoutePathUnavailable, ctxPath, statErr)
				}
				return fail(errors.RouteInvalidContext, ctxPath, err)
			}
			route.Context = ctx
		}
		route.handler = &templateHandler{registry: reg, name: decl.Template, context: route.Context, inject: opts.Inject}

	case config.KindStaticDir:
		if decl.Path == "" {
			return fail(errors.RouteInvalidHandler, "", fmt.Errorf("static_dir route needs a path"))
		}
		route.Path = resolve(decl.Path)
		if err := checkDir(route.Path); err != nil {
			return fail(errors.RoutePathUnavailable, route.Path, err)
		}
		route.handler = &staticDirHandler{root: route.Path, listing: opts.DirectoryListing, maxAge: opts.CacheMaxAge}

	case config.KindFile:
		if decl.Path == "" {
			return fail(errors.RouteInvalidHandler, "", fmt.Errorf("file route needs a path"))
		}
		route.Path = resolve(decl.Path)
		if err := checkFile(route.Path); err != nil {
			return fail(errors.RoutePathUnavailable, route.Path, err)
		}
		route.handler = &fileHandler{path: route.Path, maxAge: opts.CacheMaxAge}

	case config.KindRedirect:
		if decl.Target == "" {
			return fail(errors.RouteInvalidHandler, "", fmt.Errorf("redirect route needs a target"))
		}
		if route.Status == 0 {
			route.Status = 302
		}
		if route.Status < 300 || route.Status > 399 {
			return fail(errors.RouteInvalidHandler, "", fmt.Errorf("redirect status %d is not 3xx", route.Status))
		}
		route.handler = &redirectHandler{target: decl.Target, status: route.Status}

	case config.KindProxy:
		target, err := url.Parse(decl.Target)
		if err != nil {
			return fail(errors.RouteInvalidHandler, decl.Target, err)
		}
		if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
			return fail(errors.RouteInvalidHandler, decl.Target, fmt.Errorf("proxy target must be an absolute http(s) URL"))
		}
		route.handler = newProxyHandler(target)

	default:
		return fail(errors.RouteInvalidHandler, "", fmt.Errorf("unknown handler kind %q", decl.Kind))
	}

	return nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	return dir.Close()
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Match returns the first route accepting urlPath.
func (t *Table) Match(urlPath string) (*Route, Params, bool) {
	for _, route := range t.routes {
		if params, ok := route.pattern.Match(urlPath); ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

// Routes returns the compiled routes in declaration order.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Warnings returns the non-fatal findings recorded while the table was built.
func (t *Table) Warnings() []string {
	return t.warnings.Warnings()
}

// ErrorPage returns the resolved file configured for status.
func (t *Table) ErrorPage(status int) (string, bool) {
	file, ok := t.errorPages[status]
	return file, ok
}
