package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/routes"
)

// dispatch serves a request from the snapshot current at arrival. The
// snapshot is read once so the whole request sees a single build.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	snap := s.store.Current()
	if snap == nil {
		writeStatus(ww, r, "", http.StatusServiceUnavailable, "No build has been published yet.")
		s.metrics.observe("none", ww.Status(), time.Since(start))
		return
	}

	for name, value := range snap.Config.InsertHeaders {
		ww.Header().Set(name, value)
	}

	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))

	kind := "none"
	route, params, ok := snap.Routes.Match(r.URL.Path)
	if !ok {
		page, _ := snap.Routes.ErrorPage(http.StatusNotFound)
		writeStatus(ww, r, page, http.StatusNotFound, "")
	} else {
		kind = string(route.Kind)
		if err := route.Serve(ww, r, params); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, routes.ErrNotFound) {
				status = http.StatusNotFound
			} else {
				logger.Error(r.Context(), err, "Serving route failed",
					"pattern", route.Pattern,
					"path", r.URL.Path)
			}
			page, _ := snap.Routes.ErrorPage(status)
			writeStatus(ww, r, page, status, "")
		}
	}

	elapsed := time.Since(start)
	s.metrics.observe(kind, ww.Status(), elapsed)

	if snap.Config.Runtime.EnableLogging {
		logger.Info(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"kind", kind,
			"duration", elapsed,
			"remote", r.RemoteAddr,
			"generation", snap.Generation)
	}
}
