package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type videoEvent struct {
	Video         any   `json:"video"`
	Notifications int   `json:"notifications"`
	Closed        bool  `json:"closed"`
	At            int64 `json:"at"`
}

// handleVideoStream pushes the open session's state once a second so a
// viewer can follow extraction progress.
func (s *Server) handleVideoStream(w http.ResponseWriter, r *http.Request) {
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
		ev := videoEvent{Closed: true, At: time.Now().UnixMilli()}
		if cur := s.manager.Current(); cur != nil {
			ev.Video = cur.Info()
			ev.Closed = false
		}
		if s.feed != nil {
			ev.Notifications = len(s.feed.Recent())
		}
		payload, err := json.Marshal(ev)
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
