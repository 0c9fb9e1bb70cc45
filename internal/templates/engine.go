// Package templates compiles the page templates of a site into an immutable
// Registry and renders them by name.
//
// Every file under the template root with an accepted extension becomes one
// html/template named after its slash-separated relative path without the
// extension ("blog/post.html" → "blog/post"). All templates share one set,
// so a page can include another with {{template "partials/header" .}}.
// Compilation is all-or-nothing: a single parse or escaping failure
// discards the whole set.
package templates

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/hotserve/internal/errors"
)

// Registry is a compiled, read-only set of named templates. It is safe for
// concurrent Render calls.
type Registry struct {
	set   *template.Template
	names []string
	files map[string]string
}

// source is one template file waiting to be parsed.
type source struct {
	name string
	path string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		set:   template.New("").Funcs(funcMap()),
		names: []string{},
		files: make(map[string]string),
	}
}

// CompileAll parses every template under root. A missing root yields an
// empty registry; any parse or escaping failure yields a nil registry and a
// TemplateError of kind ParseFailed.
func CompileAll(root string, extensions []string) (*Registry, error) {
	sources, err := discover(root, extensions)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, src := range sources {
		if prev, exists := reg.files[src.name]; exists {
			return nil, &errors.TemplateError{
				Kind:  errors.TemplateParseFailed,
				Name:  src.name,
				File:  src.path,
				Cause: fmt.Errorf("name already taken by %s", prev),
			}
		}

		content, err := os.ReadFile(src.path)
		if err != nil {
			return nil, &errors.TemplateError{Kind: errors.TemplateParseFailed, Name: src.name, File: src.path, Cause: err}
		}

		if _, err := reg.set.New(src.name).Parse(string(content)); err != nil {
			return nil, &errors.TemplateError{Kind: errors.TemplateParseFailed, Name: src.name, File: src.path, Cause: err}
		}

		reg.files[src.name] = src.path
		reg.names = append(reg.names, src.name)
	}

	sort.Strings(reg.names)

	if err := reg.escapeAll(); err != nil {
		return nil, err
	}
	return reg, nil
}

// escapeAll executes every template once with nil data. html/template only
// escapes a template, and resolves its {{template}} calls, on first
// execution, so this is where missing partials and ambiguous contexts
// surface. Execution errors caused by the nil data are ignored.
func (r *Registry) escapeAll() error {
	for _, name := range r.names {
		err := r.set.Lookup(name).Execute(io.Discard, nil)
		var escapeErr *template.Error
		if stderrors.As(err, &escapeErr) {
			return &errors.TemplateError{Kind: errors.TemplateParseFailed, Name: name, File: r.files[name], Cause: err}
		}
	}
	return nil
}

// discover walks root and returns the template files in deterministic order.
func discover(root string, extensions []string) ([]source, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.TemplateError{Kind: errors.TemplateParseFailed, File: root, Cause: err}
	}
	if !info.IsDir() {
		return nil, &errors.TemplateError{Kind: errors.TemplateParseFailed, File: root, Cause: fmt.Errorf("template root is not a directory")}
	}

	accepted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		accepted[strings.ToLower(ext)] = true
	}

	var sources []source
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !accepted[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		sources = append(sources, source{name: TemplateName(rel), path: path})
		return nil
	})
	if err != nil {
		return nil, &errors.TemplateError{Kind: errors.TemplateParseFailed, File: root, Cause: err}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].name == sources[j].name {
			return sources[i].path < sources[j].path
		}
		return sources[i].name < sources[j].name
	})

	return sources, nil
}

// TemplateName derives the registry name of a template from its path
// relative to the template root.
func TemplateName(rel string) string {
	name := filepath.ToSlash(rel)
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return norm.NFC.String(name)
}

// Render executes the named template with data.
func (r *Registry) Render(name string, data interface{}) (string, error) {
	tmpl := r.lookup(name)
	if tmpl == nil {
		return "", &errors.TemplateError{Kind: errors.TemplateNotFound, Name: name}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &errors.TemplateError{Kind: errors.TemplateRenderFailed, Name: name, File: r.files[name], Cause: err}
	}

	return buf.String(), nil
}

func (r *Registry) lookup(name string) *template.Template {
	if _, ok := r.files[name]; !ok {
		return nil
	}
	return r.set.Lookup(name)
}

// Has reports whether a template file was registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.names)
}

// File returns the source file of a registered template.
func (r *Registry) File(name string) (string, bool) {
	path, ok := r.files[name]
	return path, ok
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"default": func(fallback, value interface{}) interface{} {
			if value == nil {
				return fallback
			}
			if s, ok := value.(string); ok && s == "" {
				return fallback
			}
			return value
		},
	}
}
