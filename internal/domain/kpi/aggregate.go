// Package kpi derives the sprint KPI views from a snapshot of tasks, users
// and sprints. Every function here is pure: the same snapshot always yields
// the same views, and no state is shared between calls.
package kpi

import (
	"time"

	"golang.org/x/text/language"

	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

// Views holds every KPI view that does not depend on the current instant.
type Views struct {
	CompletedTasksBySprint         CompletedBySprint       `json:"completedTasksBySprint"`
	TeamPerformancePerSprint       []SprintPerformance     `json:"teamPerformancePerSprint"`
	IndividualPerformancePerSprint IndividualMatrix        `json:"individualPerformancePerSprint"`
	EstimationAccuracyPerSprint    []EstimationAccuracyRow `json:"estimationAccuracyPerSprint"`
	TotalHoursPerUser              []UserHours             `json:"totalHoursPerUser"`
	TotalCompletedTasksPerUser     []UserDoneTasks         `json:"totalCompletedTasksPerUser"`
}

// SprintInfo describes the sprint active at aggregation time.
type SprintInfo struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Expired  bool      `json:"expired"`
}

// Bundle is the full aggregation result for one snapshot at one instant.
type Bundle struct {
	GeneratedAt                 time.Time   `json:"generatedAt"`
	CurrentSprint               *SprintInfo `json:"currentSprint"`
	CurrentSprintEstimatedHours float64     `json:"currentSprintEstimatedHours"`
	Views
}

// Engine computes views with a fixed collation locale.
type Engine struct {
	order ordering
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocale sets the locale used to order sprint names.
func WithLocale(tag language.Tag) Option {
	return func(e *Engine) {
		e.order.tag = tag
	}
}

// New returns an Engine using DefaultLocale unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{order: ordering{tag: DefaultLocale}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Locale returns the collation locale.
func (e *Engine) Locale() language.Tag { return e.order.tag }

// Views computes the now-independent views. Nil collections are treated as
// empty.
func (e *Engine) Views(s model.Snapshot) Views {
	return Views{
		CompletedTasksBySprint:         CompletedTasksBySprint(s.Tasks, s.Users, s.Sprints),
		TeamPerformancePerSprint:       teamPerformance(e.order, s.Tasks, s.Sprints),
		IndividualPerformancePerSprint: IndividualPerformancePerSprint(s.Tasks, s.Users, s.Sprints),
		EstimationAccuracyPerSprint:    estimationAccuracy(e.order, s.Tasks, s.Sprints),
		TotalHoursPerUser:              TotalHoursPerUser(s.Tasks, s.Users),
		TotalCompletedTasksPerUser:     TotalCompletedTasksPerUser(s.Tasks, s.Users),
	}
}

// Bundle attaches the now-dependent parts to precomputed views.
func (e *Engine) Bundle(v Views, s model.Snapshot, now time.Time) Bundle {
	b := Bundle{GeneratedAt: now, Views: v}
	cur, ok := sprint.Current(s.Sprints, now)
	if !ok {
		return b
	}
	b.CurrentSprint = &SprintInfo{
		ID:       cur.ID,
		Name:     cur.Name,
		StartsAt: cur.StartsAt,
		EndsAt:   cur.EndsAt,
		Expired:  sprint.IsExpired(cur, now),
	}
	b.CurrentSprintEstimatedHours = SprintEstimatedHours(s.Tasks, cur.ID)
	return b
}

// Aggregate computes the full bundle for s at now.
func (e *Engine) Aggregate(s model.Snapshot, now time.Time) Bundle {
	return e.Bundle(e.Views(s), s, now)
}

// CompletedGroups returns the completed-task groups ordered by the engine's
// locale.
func (e *Engine) CompletedGroups(c CompletedBySprint) []CompletedTaskGroup {
	return c.groups(e.order)
}

// SprintNames returns the matrix's sprint names ordered by the engine's
// locale.
func (e *Engine) SprintNames(m IndividualMatrix) []string {
	return m.sprintNames(e.order)
}

// UserNames returns the users of one matrix sprint ordered by the engine's
// locale.
func (e *Engine) UserNames(m IndividualMatrix, sprintName string) []string {
	return m.usersIn(e.order, sprintName)
}

var defaultEngine = New()

// Aggregate computes the full bundle with DefaultLocale.
func Aggregate(s model.Snapshot, now time.Time) Bundle {
	return defaultEngine.Aggregate(s, now)
}

// SprintEstimatedHours sums HoursEstimated over every task in the sprint,
// regardless of state.
func SprintEstimatedHours(tasks []model.Task, sprintID int64) float64 {
	var total float64
	for _, t := range tasks {
		if t.SprintID == sprintID {
			total += t.Estimated()
		}
	}
	return total
}
