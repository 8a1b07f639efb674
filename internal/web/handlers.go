package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridfeed/gridfeed/internal/catalog"
	"github.com/gridfeed/gridfeed/internal/logging"
)

// handleHealth reports service and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Store().Ping(r.Context()); err != nil {
		respondErrorJSON(w, r, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": catalog.SourceCount(),
	})
}

// sourceSummary is the list view of one registered file source.
type sourceSummary struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	FilePattern  string `json:"filePattern,omitempty"`
	FileCount    int    `json:"fileCount,omitempty"`
	SamplePeriod string `json:"samplePeriod,omitempty"`
}

// handleListSources returns all registered file sources.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	defs := catalog.All()
	summaries := make([]sourceSummary, 0, len(defs))
	for _, def := range defs {
		mode := "sequential"
		if def.Settings.DateTimeMode != nil {
			mode = "timestamp"
		}
		sum := sourceSummary{
			Name:        def.Name,
			Mode:        mode,
			FilePattern: def.Settings.FilePattern,
			FileCount:   len(def.Settings.FilePaths),
		}
		if def.Settings.SamplePeriod > 0 {
			sum.SamplePeriod = def.Settings.SamplePeriod.String()
		}
		summaries = append(summaries, sum)
	}
	respondJSON(w, http.StatusOK, map[string]any{"sources": summaries})
}

// handleRefreshCatalog rebuilds the stored catalog. An optional "source"
// query parameter restricts the build to one source.
func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	sourceName := r.URL.Query().Get("source")
	logger := logging.WithFields(r.Context(), "source", sourceName)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Catalog.BuildTimeout)
	defer cancel()

	results, err := s.service.RefreshCatalog(ctx, sourceName)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.Info("catalog refresh finished", "sources", len(results))
	respondJSON(w, http.StatusOK, map[string]any{"builds": results})
}

// handleListResources returns the stored catalog entries for one source.
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	resources, err := s.service.ListResources(r.Context(), source)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if resources == nil {
		resources = []catalog.StoredResource{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"resources": resources,
	})
}

// handleRead runs one read operation and returns the decoded window.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req catalog.WindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorJSON(w, r, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Read.Timeout)
	defer cancel()

	result, err := s.service.ReadWindow(ctx, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
