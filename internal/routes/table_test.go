package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/templates"
)

// site lays out a small site and returns its root and compiled templates.
func site(t *testing.T) (string, *templates.Registry) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"templates/index.html":     `<html><body><h1>{{.title}}</h1></body></html>`,
		"templates/blog/post.html": `<p>{{.Params.slug}}</p>`,
		"templates/broken.html":    `{{index .Path 99}}`,
		"public/site.css":          `body{}`,
		"public/docs/index.html":   `docs index`,
		"public/empty/.keep":       ``,
		"robots.txt":               "User-agent: *",
		"index.yml":                "title: Home\n",
		"bad.yml":                  "title: [oops\n",
		"404.html":                 "gone",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	reg, err := templates.CompileAll(filepath.Join(root, "templates"), config.DefaultExtensions)
	require.NoError(t, err)
	return root, reg
}

func resolver(root string) func(string) string {
	return func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
}

func TestBuildPreservesOrder(t *testing.T) {
	root, reg := site(t)
	decls := []config.RouteDeclaration{
		{Pattern: "/", Kind: config.KindTemplate, Template: "index", Context: "index.yml"},
		{Pattern: "/static/*", Kind: config.KindStaticDir, Path: "public"},
		{Pattern: "/robots.txt", Kind: config.KindFile, Path: "robots.txt"},
		{Pattern: "/old", Kind: config.KindRedirect, Target: "/new"},
		{Pattern: "/api/*", Kind: config.KindProxy, Target: "http://127.0.0.1:9000"},
	}

	table, err := Build(decls, reg, Options{Resolve: resolver(root)})
	require.NoError(t, err)
	require.Equal(t, len(decls), table.Len())

	for i, route := range table.Routes() {
		assert.Equal(t, i, route.Index)
		assert.Equal(t, decls[i].Pattern, route.Pattern)
		assert.Equal(t, decls[i].Kind, route.Kind)
	}

	routes := table.Routes()
	assert.Equal(t, "Home", routes[0].Context["title"])
	assert.Equal(t, filepath.Join(root, "public"), routes[1].Path)
	assert.Equal(t, 302, routes[3].Status)
	assert.Empty(t, table.Warnings())
}

func TestMatchFirstDeclaredWins(t *testing.T) {
	root, reg := site(t)
	decls := []config.RouteDeclaration{
		{Pattern: "/blog/*", Kind: config.KindFile, Path: "robots.txt"},
		{Pattern: "/blog/special", Kind: config.KindTemplate, Template: "index"},
	}

	table, err := Build(decls, reg, Options{Resolve: resolver(root)})
	require.NoError(t, err)

	route, params, ok := table.Match("/blog/special")
	require.True(t, ok)
	assert.Equal(t, "/blog/*", route.Pattern)
	assert.Equal(t, "special", params[WildcardParam])

	_, _, ok = table.Match("/elsewhere")
	assert.False(t, ok)
}

func TestBuildDuplicatePatternsWarn(t *testing.T) {
	root, reg := site(t)
	decls := []config.RouteDeclaration{
		{Pattern: "/about", Kind: config.KindTemplate, Template: "index"},
		{Pattern: "/about/", Kind: config.KindFile, Path: "robots.txt"},
	}

	table, err := Build(decls, reg, Options{Resolve: resolver(root)})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	require.Len(t, table.Warnings(), 1)
	assert.Contains(t, table.Warnings()[0], "duplicates route #0")

	route, _, ok := table.Match("/about")
	require.True(t, ok)
	assert.Equal(t, 0, route.Index)
}


func TestBuildDuplicateParamPatternsWarn(t *testing.T) {
	root, reg := site(t)
	decls := []config.RouteDeclaration{
		{Pattern: "/blog/:id", Kind: config.KindTemplate, Template: "index"},
		{Pattern: "/blog/:slug", Kind: config.KindFile, Path: "robots.txt"},
		{Pattern: "/blog/:slug/comments", Kind: config.KindFile, Path: "robots.txt"},
	}

	table, err := Build(decls, reg, Options{Resolve: resolver(root)})
	require.NoError(t, err)
	require.Len(t, table.Warnings(), 1)
	assert.Contains(t, table.Warnings()[0], `route #1 "/blog/:slug" duplicates route #0`)

	route, params, ok := table.Match("/blog/first-post")
	require.True(t, ok)
	assert.Equal(t, 0, route.Index)
	assert.Equal(t, "first-post", params["id"])
}
func TestBuildErrors(t *testing.T) {
	root, reg := site(t)

	testCases := []struct {
		name string
		decl config.RouteDeclaration
		kind errors.RouteErrorKind
	}{
		{"unknown template", config.RouteDeclaration{Pattern: "/", Kind: config.KindTemplate, Template: "nope"}, errors.RouteUnknownTemplate},
		{"template without name", config.RouteDeclaration{Pattern: "/", Kind: config.KindTemplate}, errors.RouteInvalidHandler},
		{"missing context", config.RouteDeclaration{Pattern: "/", Kind: config.KindTemplate, Template: "index", Context: "absent.yml"}, errors.RoutePathUnavailable},
		{"bad context", config.RouteDeclaration{Pattern: "/", Kind: config.KindTemplate, Template: "index", Context: "bad.yml"}, errors.RouteInvalidContext},
		{"missing static dir", config.RouteDeclaration{Pattern: "/s/*", Kind: config.KindStaticDir, Path: "nowhere"}, errors.RoutePathUnavailable},
		{"static dir is file", config.RouteDeclaration{Pattern: "/s/*", Kind: config.KindStaticDir, Path: "robots.txt"}, errors.RoutePathUnavailable},
		{"static dir without path", config.RouteDeclaration{Pattern: "/s/*", Kind: config.KindStaticDir}, errors.RouteInvalidHandler},
		{"missing file", config.RouteDeclaration{Pattern: "/f", Kind: config.KindFile, Path: "absent.txt"}, errors.RoutePathUnavailable},
		{"file is dir", config.RouteDeclaration{Pattern: "/f", Kind: config.KindFile, Path: "public"}, errors.RoutePathUnavailable},
		{"redirect without target", config.RouteDeclaration{Pattern: "/r", Kind: config.KindRedirect}, errors.RouteInvalidHandler},
		{"redirect bad status", config.RouteDeclaration{Pattern: "/r", Kind: config.KindRedirect, Target: "/x", Status: 200}, errors.RouteInvalidHandler},
		{"proxy relative", config.RouteDeclaration{Pattern: "/p/*", Kind: config.KindProxy, Target: "/local"}, errors.RouteInvalidHandler},
		{"proxy wrong scheme", config.RouteDeclaration{Pattern: "/p/*", Kind: config.KindProxy, Target: "ftp://host"}, errors.RouteInvalidHandler},
		{"unknown kind", config.RouteDeclaration{Pattern: "/", Kind: "lambda"}, errors.RouteInvalidHandler},
		{"invalid pattern", config.RouteDeclaration{Pattern: "no-slash", Kind: config.KindFile, Path: "robots.txt"}, errors.RouteInvalidPattern},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decls := []config.RouteDeclaration{
				{Pattern: "/ok", Kind: config.KindFile, Path: "robots.txt"},
				tc.decl,
			}

			table, err := Build(decls, reg, Options{Resolve: resolver(root)})
			require.Error(t, err)
			assert.Nil(t, table)

			var re *errors.RouteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tc.kind, re.Kind)
			assert.Equal(t, 1, re.Index)
		})
	}
}

func TestBuildUnknownTemplateNamesIt(t *testing.T) {
	_, reg := site(t)
	_, err := Build([]config.RouteDeclaration{
		{Pattern: "/", Kind: config.KindTemplate, Template: "index"},
		{Pattern: "/x", Kind: config.KindTemplate, Template: "ghost"},
	}, reg, Options{})

	var re *errors.RouteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "ghost", re.Name)
	assert.Equal(t, "/x", re.Pattern)
}

func TestBuildErrorPages(t *testing.T) {
	root, reg := site(t)

	table, err := Build(nil, reg, Options{Resolve: resolver(root), ErrorPages: map[int]string{404: "404.html"}})
	require.NoError(t, err)
	page, ok := table.ErrorPage(404)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "404.html"), page)
	_, ok = table.ErrorPage(500)
	assert.False(t, ok)

	_, err = Build(nil, reg, Options{Resolve: resolver(root), ErrorPages: map[int]string{500: "500.html"}})
	assert.True(t, errors.IsRouteKind(err, errors.RoutePathUnavailable))
}

func serve(t *testing.T, table *Table, method, target string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	route, params, ok := table.Match(req.URL.Path)
	require.True(t, ok, "no route for %s", target)
	return rec, route.Serve(rec, req, params)
}

func TestServeTemplate(t *testing.T) {
	root, reg := site(t)
	table, err := Build([]config.RouteDeclaration{
		{Pattern: "/", Kind: config.KindTemplate, Template: "index", Context: "index.yml"},
		{Pattern: "/posts/:slug", Kind: config.KindTemplate, Template: "blog/post"},
		{Pattern: "/broken", Kind: config.KindTemplate, Template: "broken"},
	}, reg, Options{Resolve: resolver(root), Inject: "<script>lr()</script>"})
	require.NoError(t, err)

	rec, err := serve(t, table, http.MethodGet, "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html><body><h1>Home</h1><script>lr()</script></body></html>", rec.Body.String())

	rec, err = serve(t, table, http.MethodGet, "/posts/hello")
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p><script>lr()</script>", rec.Body.String())

	rec, err = serve(t, table, http.MethodHead, "/")
	require.NoError(t, err)
	assert.Empty(t, rec.Body.String())

	rec, err = serve(t, table, http.MethodGet, "/broken")
	assert.True(t, errors.IsTemplateKind(err, errors.TemplateRenderFailed))
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestServeStaticDir(t *testing.T) {
	root, reg := site(t)
	decls := []config.RouteDeclaration{{Pattern: "/static/*", Kind: config.KindStaticDir, Path: "public"}}

	table, err := Build(decls, reg, Options{Resolve: resolver(root), CacheMaxAge: time.Hour})
	require.NoError(t, err)

	rec, err := serve(t, table, http.MethodGet, "/static/site.css")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec, err = serve(t, table, http.MethodGet, "/static/docs/")
	require.NoError(t, err)
	assert.Equal(t, "docs index", rec.Body.String())

	rec, err = serve(t, table, http.MethodGet, "/static/docs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/static/docs/", rec.Header().Get("Location"))

	rec, err = serve(t, table, http.MethodGet, "/static/docs?lang=en&v=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/static/docs/?lang=en&v=2", rec.Header().Get("Location"))

	_, err = serve(t, table, http.MethodGet, "/static/missing.css")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = serve(t, table, http.MethodGet, "/static/empty/")
	assert.ErrorIs(t, err, ErrNotFound)

	listing, err := Build(decls, reg, Options{Resolve: resolver(root), DirectoryListing: true})
	require.NoError(t, err)
	rec, err = serve(t, listing, http.MethodGet, "/static/empty/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".keep")
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestServeFileAndRedirect(t *testing.T) {
	root, reg := site(t)
	table, err := Build([]config.RouteDeclaration{
		{Pattern: "/robots.txt", Kind: config.KindFile, Path: "robots.txt"},
		{Pattern: "/old", Kind: config.KindRedirect, Target: "/new", Status: 301},
	}, reg, Options{Resolve: resolver(root)})
	require.NoError(t, err)

	rec, err := serve(t, table, http.MethodGet, "/robots.txt")
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *", rec.Body.String())

	rec, err = serve(t, table, http.MethodGet, "/old")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/new", rec.Header().Get("Location"))

	require.NoError(t, os.Remove(filepath.Join(root, "robots.txt")))
	_, err = serve(t, table, http.MethodGet, "/robots.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServeProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "backend saw "+r.URL.Path)
	}))
	defer backend.Close()

	_, reg := site(t)
	table, err := Build([]config.RouteDeclaration{
		{Pattern: "/api/*", Kind: config.KindProxy, Target: backend.URL},
	}, reg, Options{})
	require.NoError(t, err)

	rec, err := serve(t, table, http.MethodGet, "/api/users")
	require.NoError(t, err)
	assert.Equal(t, "backend saw /api/users", rec.Body.String())
}

func TestServeProxyUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	target := backend.URL
	backend.Close()

	table, err := Build([]config.RouteDeclaration{
		{Pattern: "/api/*", Kind: config.KindProxy, Target: target},
	}, nil, Options{})
	require.NoError(t, err)

	rec, err := serve(t, table, http.MethodGet, "/api/x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInjectBeforeBody(t *testing.T) {
	assert.Equal(t, "<body>x<s></s></BODY>", InjectBeforeBody("<body>x</BODY>", "<s></s>"))
	assert.Equal(t, "plain<s></s>", InjectBeforeBody("plain", "<s></s>"))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Path: "/srv/site/hotserve.yml",
		Runtime: config.RuntimeConfig{
			EnableHotReload:    true,
			EnableCacheControl: false,
			CacheMaxAge:        time.Hour,
		},
		ErrorPages: map[string]string{"404": "404.html"},
	}

	opts := OptionsFromConfig(cfg, "<script></script>")
	assert.Equal(t, "<script></script>", opts.Inject)
	assert.Zero(t, opts.CacheMaxAge)
	assert.Equal(t, map[int]string{404: "404.html"}, opts.ErrorPages)
	assert.Equal(t, filepath.Join("/srv/site", "a.txt"), opts.Resolve("a.txt"))

	cfg.Runtime.EnableHotReload = false
	cfg.Runtime.EnableCacheControl = true
	opts = OptionsFromConfig(cfg, "<script></script>")
	assert.Empty(t, opts.Inject)
	assert.Equal(t, time.Hour, opts.CacheMaxAge)
}
