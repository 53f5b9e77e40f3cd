package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// handleEvents streams a rerender event to the browser for every broadcast
// on the process-wide bus. Bursts that arrive while an event is still being
// written collapse into one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	notify := make(chan struct{}, 1)
	unsubscribe := s.bus.Subscribe(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(msg string) bool {
		if _, err := io.WriteString(w, msg); err != nil {
			return false
		}
		if err := rc.Flush(); err != nil {
			slog.Debug("events: flush failed", "error", err)
			return false
		}
		return true
	}

	if !send(": connected\n\n") {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-notify:
			if !send("event: rerender\ndata: \n\n") {
				return
			}
		case <-heartbeat.C:
			if !send(": ping\n\n") {
				return
			}
		}
	}
}
