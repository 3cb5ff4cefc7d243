// Package sprint resolves sprint identity and timing: which sprint is
// active at a given instant, whether a sprint has expired, and the display
// name used to key per-sprint aggregates.
package sprint

import (
	"strconv"
	"time"

	"github.com/okian/kpiboard/internal/domain/model"
)

// BacklogName is the display name of the backlog bucket.
const BacklogName = "Backlog / Unassigned"

// UnknownUserName labels tasks whose assignee is not a known user.
const UnknownUserName = "Unknown User"

// Current returns the first sprint, in input order, whose [StartsAt, EndsAt]
// range contains now (bounds inclusive). Sprints missing either bound are
// skipped. Overlapping sprints are not disambiguated.
func Current(sprints []model.Sprint, now time.Time) (model.Sprint, bool) {
	for _, s := range sprints {
		if s.StartsAt.IsZero() || s.EndsAt.IsZero() {
			continue
		}
		if !now.Before(s.StartsAt) && !now.After(s.EndsAt) {
			return s, true
		}
	}
	return model.Sprint{}, false
}

// IsExpired reports whether s ended at or before now. A sprint without an
// end date never expires.
func IsExpired(s model.Sprint, now time.Time) bool {
	if s.EndsAt.IsZero() {
		return false
	}
	return !s.EndsAt.After(now)
}

// Name returns the display name for a sprint id: BacklogName for the
// sentinel, the sprint's name when known, otherwise "Sprint {id}".
func Name(id int64, sprints []model.Sprint) string {
	if id == model.BacklogSprintID {
		return BacklogName
	}
	for _, s := range sprints {
		if s.ID == id {
			return s.Name
		}
	}
	return "Sprint " + strconv.FormatInt(id, 10)
}

// Find returns the sprint with the given id.
func Find(id int64, sprints []model.Sprint) (model.Sprint, bool) {
	for _, s := range sprints {
		if s.ID == id {
			return s, true
		}
	}
	return model.Sprint{}, false
}

// Index maps sprint ids to display names for repeated lookups. The first
// sprint wins when ids repeat, matching Name.
type Index struct {
	names map[int64]string
}

// NewIndex builds an Index over sprints.
func NewIndex(sprints []model.Sprint) Index {
	names := make(map[int64]string, len(sprints))
	for _, s := range sprints {
		if _, ok := names[s.ID]; !ok {
			names[s.ID] = s.Name
		}
	}
	return Index{names: names}
}

// Name resolves id like the package-level Name.
func (ix Index) Name(id int64) string {
	if id == model.BacklogSprintID {
		return BacklogName
	}
	if n, ok := ix.names[id]; ok {
		return n
	}
	return "Sprint " + strconv.FormatInt(id, 10)
}

// Known reports whether id is the backlog sentinel or a sprint in the index.
func (ix Index) Known(id int64) bool {
	if id == model.BacklogSprintID {
		return true
	}
	_, ok := ix.names[id]
	return ok
}
