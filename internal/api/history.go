package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhq/critique/internal/journal"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listAnalysesResponse wraps the paginated journal listing.
type listAnalysesResponse struct {
	Analyses []*journal.Record `json:"analyses"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"by_status"`
	SuccessRate          float64        `json:"success_rate"`
	AvgProcessingSeconds float64        `json:"avg_processing_seconds"`
	AvgConfidenceScore   float64        `json:"avg_confidence_score"`
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.journal.ListRecords(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list analyses", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}

	if records == nil {
		records = []*journal.Record{}
	}

	s.writeJSON(w, http.StatusOK, listAnalysesResponse{
		Analyses: records,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	rec, err := s.journal.GetRecord(r.Context(), taskID)
	if errors.Is(err, journal.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.logger.Error("get analysis", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get analysis")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.GetStats(r.Context())
	if err != nil {
		s.logger.Error("get analysis stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:                stats.Total,
		ByStatus:             stats.CountByStatus,
		SuccessRate:          stats.SuccessRate,
		AvgProcessingSeconds: stats.AvgProcessingSeconds,
		AvgConfidenceScore:   stats.AvgScore,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
