package api

import (
	"net/http"
	"strings"
	"time"
)

const defaultRefreshReason = "manual"

// RefreshHandler queues snapshot reloads.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

type refreshResponse struct {
	Status      string    `json:"status"`
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

// HandleRefresh handles POST /refresh requests.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if reason == "" {
		reason = defaultRefreshReason
	}

	req, err := h.deps.RequestRefresh(r.Context(), reason)
	if err != nil {
		writeServiceError(w, "api.refresh", err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{
		Status:      "accepted",
		ID:          req.ID,
		Reason:      req.Reason,
		RequestedAt: req.RequestedAt,
	})
}
