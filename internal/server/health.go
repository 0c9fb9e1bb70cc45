package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/conneroisu/hotserve/internal/version"
)

// HealthPath serves the JSON health report.
const HealthPath = "/__hotserve/health"

// HealthResponse describes the snapshot being served and the most recent
// build.
type HealthResponse struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Snapshot  *SnapshotInfo `json:"snapshot,omitempty"`
	LastBuild *BuildInfo   `json:"last_build,omitempty"`
	Clients   int          `json:"livereload_clients"`
}

type SnapshotInfo struct {
	ID         string    `json:"id"`
	Generation uint64    `json:"generation"`
	BuiltAt    time.Time `json:"built_at"`
	Routes     int       `json:"routes"`
	Templates  int       `json:"templates"`
}

type BuildInfo struct {
	ID        string  `json:"id"`
	Trigger   string  `json:"trigger"`
	Succeeded bool    `json:"succeeded"`
	Stage     string  `json:"stage"`
	Error     string  `json:"error,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// handleHealth reports "ok" while the last build succeeded, "degraded"
// while an older snapshot keeps serving after a failed rebuild, and
// "unavailable" before the first publish.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: version.GetShortVersion(),
		Clients: s.hub.Clients(),
	}
	code := http.StatusOK

	if snap := s.store.Current(); snap != nil {
		resp.Snapshot = &SnapshotInfo{
			ID:         snap.ID,
			Generation: snap.Generation,
			BuiltAt:    snap.BuiltAt,
			Routes:     snap.Routes.Len(),
			Templates:  snap.Templates.Len(),
		}
	} else {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	if s.status != nil {
		if out, ok := s.status.LastOutcome(); ok {
			info := &BuildInfo{
				ID:        out.ID,
				Trigger:   string(out.Trigger),
				Succeeded: out.Succeeded(),
				Stage:     out.Stage.String(),
				ElapsedMS: float64(out.Elapsed.Microseconds()) / 1000,
			}
			if out.Err != nil {
				info.Error = out.Err.Error()
				if resp.Snapshot != nil {
					resp.Status = "degraded"
				}
			}
			resp.LastBuild = info
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(r.Context(), err, "Encoding health response")
	}
}
