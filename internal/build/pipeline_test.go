package build

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/snapshot"
)

const scenarioConfig = `server:
  host: 0.0.0.0:8080
routes:
  - pattern: /
    kind: template
    template: index
`

func writeSite(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newSite(t *testing.T, index string) (string, *Pipeline) {
	t.Helper()
	dir := t.TempDir()
	writeSite(t, dir, map[string]string{
		config.FileName:        scenarioConfig,
		"templates/index.html": index,
	})
	return dir, NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName)})
}

func dispatch(t *testing.T, snap *snapshot.Snapshot, target string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	route, params, ok := snap.Routes.Match(req.URL.Path)
	require.True(t, ok)
	require.NoError(t, route.Serve(rec, req, params))
	return rec.Body.String()
}

func TestStartupPublishesSnapshot(t *testing.T) {
	_, p := newSite(t, `<h1>Hi</h1>`)

	out, err := p.Startup(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Succeeded())
	assert.Equal(t, TriggerStartup, out.Trigger)
	assert.Equal(t, errors.StagePublishing, out.Stage)
	assert.NotEmpty(t, out.ID)
	assert.True(t, out.Elapsed > 0)
	assert.False(t, out.TLSEnabled)
	assert.False(t, out.LoggingEnabled)

	snap := p.Store().Current()
	require.NotNil(t, snap)
	assert.Same(t, out.Snapshot, snap)
	assert.Equal(t, "0.0.0.0:8080", snap.Config.Server.Host)
	assert.Equal(t, 1, snap.Routes.Len())
	assert.Equal(t, "<h1>Hi</h1>", dispatch(t, snap, "/"))
	assert.Equal(t, errors.StageIdle, p.State())
}

func TestStartupFailsOnBadTemplate(t *testing.T) {
	_, p := newSite(t, `<h1>{{ if }}</h1>`)

	out, err := p.Startup(context.Background())
	require.Error(t, err)
	assert.Nil(t, p.Store().Current())
	assert.Nil(t, out.Snapshot)

	var be *errors.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, errors.StageCompilingTemplates, be.Stage)

	var te *errors.TemplateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, errors.TemplateParseFailed, te.Kind)
	assert.Equal(t, "index", te.Name)
}

func TestRebuildFailureKeepsPreviousSnapshot(t *testing.T) {
	testCases := []struct {
		name  string
		index string
	}{
		{"parse error", `<h1>{{ if }}</h1>`},
		{"missing partial", `<h1>{{template "partials/header" .}}</h1>`},
		{"branches end in different contexts", `{{if .X}}<a href="{{else}}<b>{{end}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir, p := newSite(t, `<h1>Hi</h1>`)

			_, err := p.Startup(context.Background())
			require.NoError(t, err)
			before := p.Store().Current()

			writeSite(t, dir, map[string]string{"templates/index.html": tc.index})
			out := p.Rebuild(context.Background(), []string{filepath.Join(dir, "templates/index.html")})

			assert.False(t, out.Succeeded())
			assert.Equal(t, TriggerReload, out.Trigger)
			assert.Equal(t, errors.StageCompilingTemplates, errors.StageOf(out.Err))
			assert.True(t, errors.IsTemplateKind(out.Err, errors.TemplateParseFailed))
			assert.Len(t, out.Changes, 1)

			assert.Same(t, before, p.Store().Current())
			assert.Equal(t, "<h1>Hi</h1>", dispatch(t, p.Store().Current(), "/"))

			writeSite(t, dir, map[string]string{"templates/index.html": `<h1>Fixed</h1>`})
			out = p.Rebuild(context.Background(), nil)
			require.NoError(t, out.Err)
			assert.Equal(t, uint64(2), p.Store().Current().Generation)
			assert.Equal(t, "<h1>Fixed</h1>", dispatch(t, p.Store().Current(), "/"))
		})
	}
}

func TestStartupFailsOnInvalidTLS(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, map[string]string{
		config.FileName: "server:\n  host: 127.0.0.1:8443\n  tls:\n    enable: true\n    key: \"\"\n    cert: cert.pem\n",
	})
	p := NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName)})

	out, err := p.Startup(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.StageLoading, out.Stage)
	assert.True(t, errors.IsConfigKind(err, errors.ConfigInvalid))
}

func TestOverridesAppliedEveryCycle(t *testing.T) {
	dir, _ := newSite(t, `<h1>Hi</h1>`)
	p := NewPipeline(Options{
		ConfigPath: filepath.Join(dir, config.FileName),
		Overrides:  config.Overrides{Host: config.String("127.0.0.1:9999")},
	})

	_, err := p.Startup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", p.Store().Current().Config.Server.Host)

	out := p.Rebuild(context.Background(), nil)
	require.NoError(t, out.Err)
	assert.Equal(t, "127.0.0.1:9999", out.Snapshot.Config.Server.Host)
}

func TestRebuildIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, map[string]string{
		config.FileName: `server:
  host: 127.0.0.1:0
routes:
  - pattern: /
    kind: template
    template: index
    context: index.yml
  - pattern: /posts/:slug
    kind: template
    template: post
`,
		"index.yml":            "title: Home\n",
		"templates/index.html": `<h1>{{.title}}</h1>`,
		"templates/post.html":  `<p>{{.Params.slug}}</p>`,
	})
	p := NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName)})

	first := p.Run(context.Background(), TriggerManual)
	require.NoError(t, first.Err)
	second := p.Run(context.Background(), TriggerManual)
	require.NoError(t, second.Err)

	assert.NotSame(t, first.Snapshot, second.Snapshot)
	assert.NotEqual(t, first.ID, second.ID)
	for _, target := range []string{"/", "/posts/hello", "/posts/other/"} {
		assert.Equal(t, dispatch(t, first.Snapshot, target), dispatch(t, second.Snapshot, target), target)
	}
}

func TestReportersReceiveEveryOutcome(t *testing.T) {
	dir, _ := newSite(t, `<h1>Hi</h1>`)

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	record := ReporterFunc(func(_ context.Context, out Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, out)
	})

	p := NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName), Reporters: []Reporter{record}})
	late := 0
	p.AddReporter(ReporterFunc(func(context.Context, Outcome) { late++ }))

	_, err := p.Startup(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, config.FileName)))
	failed := p.Rebuild(context.Background(), nil)

	assert.True(t, errors.IsConfigKind(failed.Err, errors.ConfigMissing))
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Succeeded())
	assert.False(t, outcomes[1].Succeeded())
	assert.Equal(t, 2, late)

	last, ok := p.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, failed.ID, last.ID)
}

func TestOutcomeWarningsAndFlags(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, map[string]string{
		config.FileName: `server:
  host: 127.0.0.1:0
  tls:
    enable: true
    key: key.pem
    cert: cert.pem
config:
  enable_logging: true
routes:
  - pattern: /
    kind: file
    path: index.txt
  - pattern: /
    kind: file
    path: index.txt
`,
		"index.txt": "hello",
	})
	p := NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName)})

	out, err := p.Startup(context.Background())
	require.NoError(t, err)
	assert.True(t, out.TLSEnabled)
	assert.True(t, out.LoggingEnabled)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "duplicates route #0")
	assert.Equal(t, out.Warnings, out.Snapshot.Routes.Warnings())
}

func TestOutcomeWarnsWithoutRoutes(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, map[string]string{config.FileName: "server:\n  host: 127.0.0.1:0\n"})
	p := NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName)})

	out, err := p.Startup(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "no routes declared")
}

func TestConcurrentRunsAreSerialised(t *testing.T) {
	_, p := newSite(t, `<h1>Hi</h1>`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Run(context.Background(), TriggerManual).Err)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(8), p.Store().Generation())
	assert.Equal(t, uint64(8), p.Store().Current().Generation)
}

func TestReadersNeverSeeMixedBuilds(t *testing.T) {
	dir, p := newSite(t, `<p>0</p>`)
	writeSite(t, dir, map[string]string{config.FileName: "server:\n  host: 127.0.0.1:8080\nroutes:\n  - pattern: /r/0\n    kind: template\n    template: index\n"})

	_, err := p.Startup(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mixed := make(chan string, 1)
	report := func(msg string) {
		select {
		case mixed <- msg:
		default:
		}
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := p.Store().Current()
				routes := snap.Routes.Routes()
				if len(routes) != 1 {
					report(fmt.Sprintf("generation %d has %d routes", snap.Generation, len(routes)))
					return
				}

				var n int
				if _, err := fmt.Sscanf(routes[0].Pattern, "/r/%d", &n); err != nil {
					report(err.Error())
					return
				}

				req := httptest.NewRequest(http.MethodGet, routes[0].Pattern, nil)
				rec := httptest.NewRecorder()
				if err := routes[0].Serve(rec, req, nil); err != nil {
					report(err.Error())
					return
				}
				if want := fmt.Sprintf("<p>%d</p>", n); rec.Body.String() != want {
					report(fmt.Sprintf("route %s rendered %q", routes[0].Pattern, rec.Body.String()))
					return
				}
			}
		}()
	}

	const rebuilds = 20
	for i := 1; i <= rebuilds; i++ {
		writeSite(t, dir, map[string]string{
			config.FileName:        fmt.Sprintf("server:\n  host: 127.0.0.1:8080\nroutes:\n  - pattern: /r/%d\n    kind: template\n    template: index\n", i),
			"templates/index.html": fmt.Sprintf("<p>%d</p>", i),
		})
		require.NoError(t, p.Rebuild(context.Background(), nil).Err)
	}
	close(stop)
	wg.Wait()

	select {
	case msg := <-mixed:
		t.Fatalf("reader saw a mixed build: %s", msg)
	default:
	}
	assert.Equal(t, uint64(rebuilds+1), p.Store().Generation())
}

func TestMetricsReporter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	dir, _ := newSite(t, `<h1>Hi</h1>`)
	p := NewPipeline(Options{ConfigPath: filepath.Join(dir, config.FileName), Reporters: []Reporter{metrics}})

	_, err := p.Startup(context.Background())
	require.NoError(t, err)
	writeSite(t, dir, map[string]string{"templates/index.html": `{{ end }}`})
	p.Rebuild(context.Background(), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.buildsTotal.WithLabelValues("startup", "success", "publishing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.buildsTotal.WithLabelValues("reload", "failure", "compiling_templates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.generation))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.routes))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.templates))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.buildDuration))
}
