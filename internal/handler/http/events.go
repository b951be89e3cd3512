package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// keepAliveInterval spaces the comment lines that keep idle proxies from
// closing the stream.
var keepAliveInterval = 15 * time.Second

// Events handles GET /events: a Server-Sent Events stream carrying the header
// badge. The current count is sent on connect and again after every change.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	var (
		mu     sync.Mutex
		latest int
	)
	signal := make(chan struct{}, 1)
	cancel := h.badge.Watch(func(n int) {
		mu.Lock()
		latest = n
		mu.Unlock()
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	seq := 0
	send := func(n int) bool {
		seq++
		if err := writeBadgeEvent(w, seq, n); err != nil {
			return false
		}
		if err := rc.Flush(); err != nil {
			h.logger.WarnContext(r.Context(), "event stream cannot flush", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	if _, err := io.WriteString(w, "retry: 3000\n"); err != nil {
		return
	}
	if !send(h.badge.Count()) {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-signal:
			mu.Lock()
			n := latest
			mu.Unlock()
			if !send(n) {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeBadgeEvent(w io.Writer, id, count int) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: badge\ndata: %d\n\n", id, count)
	return err
}
