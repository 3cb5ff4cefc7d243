// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// BacklogSprintID is the reserved sprint id for tasks without a real sprint.
// Loaders normalise null or missing sprint ids to this value.
const BacklogSprintID int64 = -1

// TaskState is a task lifecycle state.
type TaskState string

// Task lifecycle states.
const (
	StateTodo       TaskState = "TODO"
	StateInProgress TaskState = "IN_PROGRESS"
	StateDone       TaskState = "DONE"
)

// ParseTaskState maps a raw state string to a TaskState, ignoring case and
// surrounding whitespace. Unknown values are returned upper-cased as-is so
// they never compare equal to StateDone.
func ParseTaskState(raw string) TaskState {
	return TaskState(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsDone reports whether the state is DONE.
func (s TaskState) IsDone() bool { return s == StateDone }

// Task is a unit of work tracked in a sprint (or in the backlog).
type Task struct {
	ID             int64
	Description    string
	State          TaskState
	HoursEstimated *float64 // nil when never estimated
	HoursReal      *float64 // meaningful only once State is DONE
	AssignedTo     int64    // user id
	SprintID       int64    // BacklogSprintID for backlog tasks
	StoryPoints    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishesAt     time.Time
}

// Done reports whether the task is DONE.
func (t Task) Done() bool { return t.State.IsDone() }

// Estimated returns HoursEstimated or 0 when absent.
func (t Task) Estimated() float64 { return hours(t.HoursEstimated) }

// Real returns HoursReal or 0 when absent.
func (t Task) Real() float64 { return hours(t.HoursReal) }

// InBacklog reports whether the task has no real sprint assignment.
func (t Task) InBacklog() bool { return t.SprintID == BacklogSprintID }

func hours(h *float64) float64 {
	if h == nil {
		return 0
	}
	return *h
}

// Hours returns a pointer to h. Handy for literals in tests and loaders.
func Hours(h float64) *float64 { return &h }

// User is a team member tasks can be assigned to.
type User struct {
	ID       int64
	Name     string
	Position string
}

// Sprint is a time-boxed period. A zero StartsAt or EndsAt means the bound
// is unknown.
type Sprint struct {
	ID       int64
	Name     string
	StartsAt time.Time
	EndsAt   time.Time
}

// Snapshot is one immutable set of the three input collections.
type Snapshot struct {
	Tasks   []Task
	Users   []User
	Sprints []Sprint
}

// Empty reports whether all three collections are empty.
func (s Snapshot) Empty() bool {
	return len(s.Tasks) == 0 && len(s.Users) == 0 && len(s.Sprints) == 0
}
