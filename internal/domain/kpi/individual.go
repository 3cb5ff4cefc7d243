package kpi

import (
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

// UserSprintCell is one user's completed work in one sprint.
type UserSprintCell struct {
	CompletedTasks int     `json:"completedTasks"`
	RealHours      float64 `json:"realHours"`
}

// IsZero reports whether the cell never received a DONE task.
func (c UserSprintCell) IsZero() bool {
	return c.CompletedTasks == 0 && c.RealHours == 0
}

// IndividualMatrix is keyed by sprint display name, then user name.
// Every known sprint (plus the backlog) holds a cell for every known user.
type IndividualMatrix map[string]map[string]UserSprintCell

// Cell returns the cell for (sprintName, userName).
func (p IndividualMatrix) Cell(sprintName, userName string) (UserSprintCell, bool) {
	users, ok := p[sprintName]
	if !ok {
		return UserSprintCell{}, false
	}
	c, ok := users[userName]
	return c, ok
}

// SprintNames returns the outer keys sorted with DefaultLocale.
func (p IndividualMatrix) SprintNames() []string {
	return p.sprintNames(ordering{tag: DefaultLocale})
}

func (p IndividualMatrix) sprintNames(o ordering) []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	o.strings(names)
	return names
}

// UserNames returns the inner keys of one sprint sorted with DefaultLocale.
func (p IndividualMatrix) UserNames(sprintName string) []string {
	return p.usersIn(ordering{tag: DefaultLocale}, sprintName)
}

func (p IndividualMatrix) usersIn(o ordering, sprintName string) []string {
	users := p[sprintName]
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	o.strings(names)
	return names
}

// IndividualPerformancePerSprint builds the zero-filled sprint × user matrix
// and adds every DONE task whose assignee is a known user.
func IndividualPerformancePerSprint(tasks []model.Task, users []model.User, sprints []model.Sprint) IndividualMatrix {
	out := make(IndividualMatrix)
	for _, name := range bucketNames(sprints) {
		row := make(map[string]UserSprintCell, len(users))
		for _, u := range users {
			row[u.Name] = UserSprintCell{}
		}
		out[name] = row
	}

	ix := sprint.NewIndex(sprints)
	names := userNames(users)
	for _, t := range tasks {
		if !t.Done() {
			continue
		}
		user, ok := names[t.AssignedTo]
		if !ok {
			continue
		}
		key := bucketFor(ix, t)
		cell := out[key][user]
		cell.CompletedTasks++
		cell.RealHours += t.Real()
		out[key][user] = cell
	}
	return out
}
