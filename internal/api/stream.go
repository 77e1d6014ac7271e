package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atelierhq/critique/internal/model"
)

// outcomeEvent is one SSE payload on the outcomes stream: the sync-response
// shape plus the task id, since stream consumers watch all jobs at once.
type outcomeEvent struct {
	TaskID string `json:"task_id"`
	outcomeResponse
}

// handleStreamOutcomes streams terminal outcomes as server-sent events. The
// stream starts at subscription time; outcomes that finished earlier are
// available from the journal listing instead.
func (s *Server) handleStreamOutcomes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	ch, unsub := s.runner.Feed().Subscribe()
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case out, ok := <-ch:
			if !ok {
				// Feed closed on shutdown; tell the client before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeOutcomeEvent(w, out); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeOutcomeEvent writes one outcome as an SSE data event. json.Marshal
// never emits newlines, so a single "data:" line carries the whole payload.
func writeOutcomeEvent(w http.ResponseWriter, out model.Outcome) error {
	payload, err := json.Marshal(outcomeEvent{
		TaskID:          out.TaskID,
		outcomeResponse: outcomeBody(out),
	})
	if err != nil {
		return fmt.Errorf("encode outcome event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
