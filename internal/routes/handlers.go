package routes

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/templates"
)

// ErrNotFound is returned by Serve when the matched route has nothing to
// serve for the request, for example a missing file under a static_dir.
var ErrNotFound = errors.New("not found")

// handler serves a request matched by a route. Nothing has been written to w
// when it returns an error.
type handler interface {
	serve(w http.ResponseWriter, r *http.Request, params Params) error
}

// Serve dispatches the request to the handler bound at build time. A
// returned error is for the caller to turn into an error response.
func (rt *Route) Serve(w http.ResponseWriter, r *http.Request, params Params) error {
	return rt.handler.serve(w, r, params)
}

type templateHandler struct {
	registry *templates.Registry
	name     string
	context  map[string]interface{}
	inject   string
}

// serve renders the template with the route context. "Params" and "Path"
// are added to the data unless the context already defines them.
func (h *templateHandler) serve(w http.ResponseWriter, r *http.Request, params Params) error {
	data := make(map[string]interface{}, len(h.context)+2)
	for k, v := range h.context {
		data[k] = v
	}
	if _, ok := data["Params"]; !ok {
		data["Params"] = params
	}
	if _, ok := data["Path"]; !ok {
		data["Path"] = r.URL.Path
	}

	body, err := h.registry.Render(h.name, data)
	if err != nil {
		return err
	}
	if h.inject != "" {
		body = InjectBeforeBody(body, h.inject)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(body))
	}
	return nil
}

// InjectBeforeBody inserts snippet before the last closing body tag of page,
// or appends it when there is none.
func InjectBeforeBody(page, snippet string) string {
	idx := strings.LastIndex(strings.ToLower(page), "</body>")
	if idx < 0 {
		return page + snippet
	}
	return page[:idx] + snippet + page[idx:]
}

type staticDirHandler struct {
	root    string
	listing bool
	maxAge  time.Duration
}

func (h *staticDirHandler) serve(w http.ResponseWriter, r *http.Request, params Params) error {
	name := path.Clean("/" + params[WildcardParam])
	dir := http.Dir(h.root)

	f, err := dir.Open(name)
	if err != nil {
		return notFound(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return notFound(err)
	}

	if !info.IsDir() {
		setCacheControl(w, h.maxAge)
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return nil
	}

	if !strings.HasSuffix(r.URL.Path, "/") {
		target := path.Base(r.URL.Path) + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return nil
	}

	index, err := dir.Open(path.Join(name, "index.html"))
	if err == nil {
		defer index.Close()
		if indexInfo, err := index.Stat(); err == nil && !indexInfo.IsDir() {
			setCacheControl(w, h.maxAge)
			http.ServeContent(w, r, indexInfo.Name(), indexInfo.ModTime(), index)
			return nil
		}
	}

	if !h.listing {
		return ErrNotFound
	}

	listing := r.Clone(r.Context())
	listing.URL.Path = strings.TrimSuffix(name, "/") + "/"
	http.FileServer(dir).ServeHTTP(w, listing)
	return nil
}

type fileHandler struct {
	path   string
	maxAge time.Duration
}

func (h *fileHandler) serve(w http.ResponseWriter, r *http.Request, _ Params) error {
	f, err := os.Open(h.path)
	if err != nil {
		return notFound(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return notFound(err)
	}
	if info.IsDir() {
		return ErrNotFound
	}

	setCacheControl(w, h.maxAge)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}

type redirectHandler struct {
	target string
	status int
}

func (h *redirectHandler) serve(w http.ResponseWriter, r *http.Request, _ Params) error {
	http.Redirect(w, r, h.target, h.status)
	return nil
}

type proxyHandler struct {
	proxy *httputil.ReverseProxy
}

func newProxyHandler(target *url.URL) *proxyHandler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Warn("proxy request failed", "target", target.String(), "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	}
	return &proxyHandler{proxy: proxy}
}

func (h *proxyHandler) serve(w http.ResponseWriter, r *http.Request, _ Params) error {
	h.proxy.ServeHTTP(w, r)
	return nil
}

func setCacheControl(w http.ResponseWriter, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return ErrNotFound
	}
	return err
}
