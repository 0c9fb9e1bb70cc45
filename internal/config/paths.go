package config

import (
	"maps"
	"path/filepath"
	"slices"
)

// WatchRoots returns every filesystem path a build reads: the config file,
// the template root, and the paths referenced by routes and error pages.
// Order is stable and duplicates are removed.
func WatchRoots(cfg *Config) []string {
	seen := make(map[string]bool)
	roots := make([]string, 0, len(cfg.Routes)+2)

	add := func(p string) {
		if p == "" {
			return
		}
		p = filepath.Clean(cfg.Resolve(p))
		if seen[p] {
			return
		}
		seen[p] = true
		roots = append(roots, p)
	}

	add(cfg.Path)
	add(cfg.Templates.Root)

	for _, route := range cfg.Routes {
		switch route.Kind {
		case KindStaticDir, KindFile:
			add(route.Path)
		case KindTemplate:
			add(route.Context)
		}
	}

	for _, code := range slices.Sorted(maps.Keys(cfg.ErrorPages)) {
		add(cfg.ErrorPages[code])
	}

	return roots
}
