package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/report"
	"github.com/okian/kpiboard/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// KPIHandler serves the aggregated views.
type KPIHandler struct {
	deps     KPIDependencies
	reporter *report.Reporter
	logger   logger.Logger
	now      func() time.Time
}

// NewKPIHandler creates a new KPI handler.
func NewKPIHandler(deps KPIDependencies, reporter *report.Reporter, l logger.Logger, now func() time.Time) *KPIHandler {
	return &KPIHandler{deps: deps, reporter: reporter, logger: l, now: now}
}

// individualResponse pairs the matrix with its ordered sprint names, since
// JSON objects carry no order.
type individualResponse struct {
	Sprints     []string             `json:"sprints"`
	Performance kpi.IndividualMatrix `json:"performance"`
}

// bundle loads the bundle for a GET request, writing the error response
// itself when it cannot.
func (h *KPIHandler) bundle(w http.ResponseWriter, r *http.Request, op string) (kpi.Bundle, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return kpi.Bundle{}, false
	}
	b, err := h.deps.Bundle(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return kpi.Bundle{}, false
	}
	return b, true
}

// HandleBundle handles GET /kpi requests.
func (h *KPIHandler) HandleBundle(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.kpi"); ok {
		writeJSON(w, http.StatusOK, b)
	}
}

// HandleCompletedTasks handles GET /kpi/completed-tasks requests.
func (h *KPIHandler) HandleCompletedTasks(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.completed_tasks"); ok {
		writeJSON(w, http.StatusOK, h.deps.Engine().CompletedGroups(b.CompletedTasksBySprint))
	}
}

// HandleTeamPerformance handles GET /kpi/team-performance requests.
func (h *KPIHandler) HandleTeamPerformance(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.team_performance"); ok {
		writeJSON(w, http.StatusOK, b.TeamPerformancePerSprint)
	}
}

// HandleIndividualPerformance handles GET /kpi/individual-performance requests.
func (h *KPIHandler) HandleIndividualPerformance(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.individual_performance"); ok {
		writeJSON(w, http.StatusOK, individualResponse{
			Sprints:     h.deps.Engine().SprintNames(b.IndividualPerformancePerSprint),
			Performance: b.IndividualPerformancePerSprint,
		})
	}
}

// HandleEstimationAccuracy handles GET /kpi/estimation-accuracy requests.
func (h *KPIHandler) HandleEstimationAccuracy(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.estimation_accuracy"); ok {
		writeJSON(w, http.StatusOK, b.EstimationAccuracyPerSprint)
	}
}

// HandleUserHours handles GET /kpi/users/hours requests.
func (h *KPIHandler) HandleUserHours(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.user_hours"); ok {
		writeJSON(w, http.StatusOK, b.TotalHoursPerUser)
	}
}

// HandleUserDoneTasks handles GET /kpi/users/done-tasks requests.
func (h *KPIHandler) HandleUserDoneTasks(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.bundle(w, r, "api.user_done_tasks"); ok {
		writeJSON(w, http.StatusOK, b.TotalCompletedTasksPerUser)
	}
}

// HandleSummary handles GET /kpi/summary requests. With ?format=prompt the
// digest is wrapped with summariser instructions.
func (h *KPIHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r, "api.summary")
	if !ok {
		return
	}

	var body string
	switch format := r.URL.Query().Get("format"); format {
	case "", "digest":
		body = h.reporter.Digest(b)
	case "prompt":
		body = h.reporter.Prompt(b)
	default:
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind("api.summary", ErrBadRequest, fmt.Errorf("unknown format %q", format)))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body + "\n"))
}

// HandleExport handles GET /kpi/export.xlsx requests.
func (h *KPIHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	b, ok := h.bundle(w, r, op)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.reporter.WriteXLSX(&buf, b); err != nil {
		h.logger.Error(r.Context(), "xlsx export failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}

	filename := fmt.Sprintf("kpi-%s.xlsx", h.now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
