package scaffolding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotserve/internal/build"
	"github.com/conneroisu/hotserve/internal/config"
)

func TestGenerateBuildsCleanly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)

	result, err := Generate(path, Options{ProjectName: "Demo"})
	require.NoError(t, err)
	assert.Equal(t, path, result.ConfigPath)
	assert.Len(t, result.Created, len(starterFiles)+1)
	assert.Empty(t, result.Skipped)

	p := build.NewPipeline(build.Options{ConfigPath: path})
	out, err := p.Startup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, config.DefaultHost, out.Snapshot.Config.Server.Host)

	route, params, ok := out.Snapshot.Routes.Match("/")
	require.True(t, ok)
	rec := httptest.NewRecorder()
	require.NoError(t, route.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), params))
	assert.Contains(t, rec.Body.String(), "<h1>Demo</h1>")
	assert.Contains(t, rec.Body.String(), "</html>")

	route, params, ok = out.Snapshot.Routes.Match("/static/styles.css")
	require.True(t, ok)
	rec = httptest.NewRecorder()
	require.NoError(t, route.Serve(rec, httptest.NewRequest(http.MethodGet, "/static/styles.css", nil), params))
	assert.Equal(t, http.StatusOK, rec.Code)

	page, ok := out.Snapshot.Routes.ErrorPage(http.StatusNotFound)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "404.html"), page)
}

func TestGenerateKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	index := filepath.Join(dir, "templates", "index.html")

	require.NoError(t, os.MkdirAll(filepath.Dir(index), 0755))
	require.NoError(t, os.WriteFile(index, []byte("mine"), 0644))

	result, err := Generate(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{index}, result.Skipped)

	data, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))

	result, err = Generate(path, Options{Force: true})
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)

	data, err = os.ReadFile(index)
	require.NoError(t, err)
	assert.NotEqual(t, "mine", string(data))
}

func TestGenerateHostAndProjectName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-site")
	path := filepath.Join(dir, config.FileName)

	_, err := Generate(path, Options{Host: "0.0.0.0:9000"})
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Host)
	assert.True(t, cfg.Runtime.EnableLogging)
	assert.True(t, cfg.Runtime.EnableHotReload)

	data, err := os.ReadFile(filepath.Join(dir, "content", "index.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: my-site")
}
