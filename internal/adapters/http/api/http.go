// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/kpiboard/internal/adapters/mq/queue"
	service "github.com/okian/kpiboard/internal/app"
	"github.com/okian/kpiboard/internal/domain/kpi"
	"github.com/okian/kpiboard/internal/report"
	"github.com/okian/kpiboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	KPIDependencies
	SprintDependencies
	RefreshDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	kpiHandler     *KPIHandler
	sprintHandler  *SprintHandler
	refreshHandler *RefreshHandler
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger logger.Logger
	now    func() time.Time
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used to name exports.
func WithClock(now func() time.Time) ServerOption {
	return func(c *serverConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	cfg := serverConfig{logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		kpiHandler:     NewKPIHandler(deps, report.New(report.WithEngine(deps.Engine())), cfg.logger, cfg.now),
		sprintHandler:  NewSprintHandler(deps),
		refreshHandler: NewRefreshHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/kpi", MetricsMiddleware(s.kpiHandler.HandleBundle, "kpi"))
	mux.HandleFunc("/kpi/completed-tasks", MetricsMiddleware(s.kpiHandler.HandleCompletedTasks, "kpi_completed_tasks"))
	mux.HandleFunc("/kpi/team-performance", MetricsMiddleware(s.kpiHandler.HandleTeamPerformance, "kpi_team_performance"))
	mux.HandleFunc("/kpi/individual-performance", MetricsMiddleware(s.kpiHandler.HandleIndividualPerformance, "kpi_individual_performance"))
	mux.HandleFunc("/kpi/estimation-accuracy", MetricsMiddleware(s.kpiHandler.HandleEstimationAccuracy, "kpi_estimation_accuracy"))
	mux.HandleFunc("/kpi/users/hours", MetricsMiddleware(s.kpiHandler.HandleUserHours, "kpi_user_hours"))
	mux.HandleFunc("/kpi/users/done-tasks", MetricsMiddleware(s.kpiHandler.HandleUserDoneTasks, "kpi_user_done_tasks"))
	mux.HandleFunc("/kpi/summary", MetricsMiddleware(s.kpiHandler.HandleSummary, "kpi_summary"))
	mux.HandleFunc("/kpi/export.xlsx", MetricsMiddleware(s.kpiHandler.HandleExport, "kpi_export"))

	mux.HandleFunc("/sprints/current", MetricsMiddleware(s.sprintHandler.HandleCurrent, "sprints_current"))
	mux.HandleFunc("/sprints/{id}/expired", MetricsMiddleware(s.sprintHandler.HandleExpired, "sprints_expired"))

	mux.HandleFunc("/refresh", MetricsMiddleware(s.refreshHandler.HandleRefresh, "refresh"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors into responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, "fetch_failed", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrNoCurrentSprint), errors.Is(err, service.ErrSprintNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

// KPIDependencies serves aggregated views.
type KPIDependencies interface {
	Bundle(ctx context.Context) (kpi.Bundle, error)
	Engine() *kpi.Engine
}

// SprintDependencies answers sprint questions at the current instant.
type SprintDependencies interface {
	CurrentSprint(ctx context.Context) (kpi.SprintInfo, error)
	SprintExpired(ctx context.Context, id int64) (bool, error)
}

// RefreshDependencies queues snapshot reloads.
type RefreshDependencies interface {
	RequestRefresh(ctx context.Context, reason string) (queue.RefreshRequest, error)
}
