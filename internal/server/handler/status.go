package handler

import (
	"net/http"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// FeedReporter reports the inbound feeds.
type FeedReporter interface {
	FeedStatus() []domain.FeedStatus
}

// StatusHandler serves the backend status: mode and feed health.
type StatusHandler struct {
	mode     string
	readOnly bool
	feeds    FeedReporter
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, readOnly bool, feeds FeedReporter) *StatusHandler {
	return &StatusHandler{mode: mode, readOnly: readOnly, feeds: feeds}
}

// GetStatus responds with the mode and the liveness of every feed.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	feeds := h.feeds.FeedStatus()
	healthy := true
	for _, f := range feeds {
		if f.Stale {
			healthy = false
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":     h.mode,
		"readOnly": h.readOnly,
		"healthy":  healthy,
		"feeds":    feeds,
	})
}
