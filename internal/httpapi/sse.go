package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	s.streamJSON(w, r, func() (any, error) {
		return s.queue.List(), nil
	})
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	s.streamJSON(w, r, func() (any, error) {
		return s.currentState(), nil
	})
}

// streamJSON pushes the snapshot as an SSE data event once immediately and
// then every second until the client goes away.
func (s *Server) streamJSON(w http.ResponseWriter, r *http.Request, snapshot func() (any, error)) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func() bool {
		data, err := snapshot()
		if err != nil {
			return false
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
