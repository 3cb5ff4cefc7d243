package kpi

import (
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

// CompletedTaskRow is one DONE task as listed under its sprint.
type CompletedTaskRow struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Developer      string  `json:"developer"`
	EstimatedHours float64 `json:"estimatedHours"`
	RealHours      float64 `json:"realHours"`
}

// CompletedBySprint maps a sprint display name to its DONE tasks, in
// the order they appeared in the input.
type CompletedBySprint map[string][]CompletedTaskRow

// CompletedTaskGroup is one sprint's entry in CompletedBySprint.Groups.
type CompletedTaskGroup struct {
	SprintName string             `json:"sprintName"`
	Tasks      []CompletedTaskRow `json:"tasks"`
}

// Groups returns the groups sorted by sprint name with DefaultLocale.
func (c CompletedBySprint) Groups() []CompletedTaskGroup {
	return c.groups(ordering{tag: DefaultLocale})
}

func (c CompletedBySprint) groups(o ordering) []CompletedTaskGroup {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	o.strings(names)

	out := make([]CompletedTaskGroup, 0, len(names))
	for _, name := range names {
		out = append(out, CompletedTaskGroup{SprintName: name, Tasks: c[name]})
	}
	return out
}

// CompletedTasksBySprint groups DONE tasks by sprint display name. Unknown sprint
// ids keep a "Sprint {id}" label; unknown assignees read as "Unknown User".
func CompletedTasksBySprint(tasks []model.Task, users []model.User, sprints []model.Sprint) CompletedBySprint {
	ix := sprint.NewIndex(sprints)
	names := userNames(users)

	out := CompletedBySprint{}
	for _, t := range tasks {
		if !t.Done() {
			continue
		}
		dev, ok := names[t.AssignedTo]
		if !ok {
			dev = sprint.UnknownUserName
		}
		key := ix.Name(t.SprintID)
		out[key] = append(out[key], CompletedTaskRow{
			ID:             t.ID,
			Name:           t.Description,
			Developer:      dev,
			EstimatedHours: t.Estimated(),
			RealHours:      t.Real(),
		})
	}
	return out
}

// userNames indexes users by id; the first user wins on duplicate ids.
func userNames(users []model.User) map[int64]string {
	out := make(map[int64]string, len(users))
	for _, u := range users {
		if _, ok := out[u.ID]; !ok {
			out[u.ID] = u.Name
		}
	}
	return out
}
