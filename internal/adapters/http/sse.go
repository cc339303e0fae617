package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter writes server-sent events. After the first failed write it
// drops further events; the caller keeps draining its source regardless.
type sseWriter struct {
	w          http.ResponseWriter
	controller *http.ResponseController
	started    bool
	broken     bool
}

func newSSEWriter(w http.ResponseWriter, controller *http.ResponseController) *sseWriter {
	return &sseWriter{w: w, controller: controller}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	header := s.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) send(event string, payload any) {
	if s.broken {
		return
	}
	s.start()

	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(errorBody{Error: "encode event"})
		event = "error"
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.broken = true
		return
	}
	if err := s.controller.Flush(); err != nil {
		s.broken = true
	}
}
