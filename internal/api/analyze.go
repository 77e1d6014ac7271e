package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atelierhq/critique/internal/model"
)

const maxBodySize = 1 << 20 // 1 MB

// analyzeRequest is the JSON body for both analysis intake endpoints. The
// snake_case names are the wire contract with the main service. Pointer
// fields distinguish absent values from zeroes.
type analyzeRequest struct {
	RequestID   *int64   `json:"request_id"`
	FactorX     *float64 `json:"factor_x"`
	FactorY     *float64 `json:"factor_y"`
	Description string   `json:"description"`
}

// acceptedResponse acknowledges an async submission.
type acceptedResponse struct {
	Status    string `json:"status"`
	RequestID int64  `json:"request_id"`
	Message   string `json:"message"`
}

// outcomeResponse is the sync-path result body. It mirrors the delivery
// payload without the service key; analysis_result and confidence_score are
// explicit nulls on failure.
type outcomeResponse struct {
	RequestID       int64    `json:"request_id"`
	Success         bool     `json:"success"`
	AnalysisResult  *string  `json:"analysis_result"`
	ConfidenceScore *float64 `json:"confidence_score"`
	ProcessingTime  float64  `json:"processing_time"`
	Message         string   `json:"message"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	job, ok := s.decodeJob(w, r)
	if !ok {
		return
	}

	// Submit never blocks on the analysis; the ack goes out immediately.
	s.runner.Submit(job)

	s.writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status:    "accepted",
		RequestID: job.RequestID,
		Message:   s.ackMessage,
	})
}

func (s *Server) handleAnalyzeSync(w http.ResponseWriter, r *http.Request) {
	job, ok := s.decodeJob(w, r)
	if !ok {
		return
	}

	out := s.runner.RunSync(job)
	s.writeJSON(w, http.StatusOK, outcomeBody(out))
}

// decodeJob parses and validates an intake body. On failure it writes the 400
// response itself and reports false; no job exists at that point.
func (s *Server) decodeJob(w http.ResponseWriter, r *http.Request) (model.Job, bool) {
	var req analyzeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return model.Job{}, false
	}

	if req.RequestID == nil || *req.RequestID <= 0 {
		s.writeError(w, http.StatusBadRequest, "request_id must be a positive integer")
		return model.Job{}, false
	}
	if req.FactorX == nil || req.FactorY == nil {
		s.writeError(w, http.StatusBadRequest, "factor_x and factor_y are required")
		return model.Job{}, false
	}
	if !inUnitRange(*req.FactorX) || !inUnitRange(*req.FactorY) {
		s.writeError(w, http.StatusBadRequest, "factor_x and factor_y must be within [0, 1]")
		return model.Job{}, false
	}

	return model.Job{
		RequestID:   *req.RequestID,
		TaskID:      model.NewTaskID(),
		FactorX:     *req.FactorX,
		FactorY:     *req.FactorY,
		Description: req.Description,
		SubmittedAt: time.Now().UTC(),
	}, true
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func outcomeBody(out model.Outcome) outcomeResponse {
	resp := outcomeResponse{
		RequestID:      out.RequestID,
		Success:        out.Success,
		ProcessingTime: out.ProcessingSeconds,
		Message:        out.Message(),
	}
	if out.Success {
		resp.AnalysisResult = &out.Verdict
		resp.ConfidenceScore = &out.Score
	}
	return resp
}
