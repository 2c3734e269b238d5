package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/schedsim/pkg/model"
)

// handleSSERun streams run state changes via Server-Sent Events. The stream
// ends with a "complete" event once the run is terminal.
// GET /api/v1/sse/runs/{id}
func (s *Server) handleSSERun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reqID := RequestIDFromContext(r.Context())

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := sendSSEEvent(w, flusher, "init", run); err != nil {
		s.logger.Debug("sse client disconnected", "id", id, "error", err)
		return
	}
	if run.State.IsTerminal() {
		sendSSEEvent(w, flusher, "complete", run)
		return
	}

	ticker := time.NewTicker(s.sseInterval)
	defer ticker.Stop()

	lastState := run.State
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			run, err = s.store.GetRun(r.Context(), id)
			if err != nil {
				s.logger.Error("sse fetch error", "id", id, "error", err)
				continue
			}
			if run == nil {
				return
			}

			if run.State.IsTerminal() {
				sendSSEEvent(w, flusher, "complete", run)
				return
			}
			if run.State != lastState {
				if err := sendSSEEvent(w, flusher, "update", run); err != nil {
					s.logger.Debug("sse client disconnected", "id", id)
					return
				}
				lastState = run.State
				continue
			}
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// sendSSEEvent writes one event with a JSON payload.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
