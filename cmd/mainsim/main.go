// mainsim stands in for the main service during local development: it accepts
// analysis result callbacks, verifies the shared key and logs each payload.
// Usage: go run ./cmd/mainsim
package main

import (
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

type resultPayload struct {
	RequestID       int64    `json:"request_id"`
	Success         bool     `json:"success"`
	AnalysisResult  *string  `json:"analysis_result"`
	ConfidenceScore *float64 `json:"confidence_score"`
	ProcessingTime  float64  `json:"processing_time"`
	Message         string   `json:"message"`
	ServiceKey      string   `json:"service_key"`
}

func main() {
	addr := ":8080"
	if v := os.Getenv("MAINSIM_LISTEN_ADDR"); v != "" {
		addr = v
	}
	serviceKey := "a1b2c3d4e5f67890"
	if v := os.Getenv("MAINSIM_SERVICE_KEY"); v != "" {
		serviceKey = v
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var received atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/internal/analysis-result", func(w http.ResponseWriter, r *http.Request) {
		var p resultPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			logger.Warn("mainsim: bad result body", "error", err)
			http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
			return
		}

		if p.ServiceKey != serviceKey {
			logger.Warn("mainsim: rejected result, wrong service key", "request_id", p.RequestID)
			http.Error(w, `{"error":"invalid service key"}`, http.StatusForbidden)
			return
		}

		attrs := []any{
			"request_id", p.RequestID,
			"success", p.Success,
			"processing_time", p.ProcessingTime,
			"message", p.Message,
			"delivery_id", r.Header.Get("X-Delivery-Id"),
			"total_received", received.Add(1),
		}
		if p.AnalysisResult != nil {
			attrs = append(attrs, "analysis_result", *p.AnalysisResult)
		}
		if p.ConfidenceScore != nil {
			attrs = append(attrs, "confidence_score", *p.ConfidenceScore)
		}
		logger.Info("mainsim: result received", attrs...)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	logger.Info("mainsim: starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
