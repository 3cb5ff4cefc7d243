package api

import (
	"net/http"
	"strconv"
)

// SprintHandler answers questions about sprints.
type SprintHandler struct {
	deps SprintDependencies
}

// NewSprintHandler creates a new sprint handler.
func NewSprintHandler(deps SprintDependencies) *SprintHandler {
	return &SprintHandler{deps: deps}
}

type expiredResponse struct {
	ID      int64 `json:"id"`
	Expired bool  `json:"expired"`
}

// HandleCurrent handles GET /sprints/current requests.
func (h *SprintHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	cur, err := h.deps.CurrentSprint(r.Context())
	if err != nil {
		writeServiceError(w, "api.current_sprint", err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// HandleExpired handles GET /sprints/{id}/expired requests.
func (h *SprintHandler) HandleExpired(w http.ResponseWriter, r *http.Request) {
	const op = "api.sprint_expired"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	expired, err := h.deps.SprintExpired(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, expiredResponse{ID: id, Expired: expired})
}
