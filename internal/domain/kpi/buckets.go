package kpi

import (
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

// bucketNames lists the per-sprint accumulator keys: every known sprint's
// display name followed by the backlog, without duplicates.
func bucketNames(sprints []model.Sprint) []string {
	seen := make(map[string]struct{}, len(sprints)+1)
	out := make([]string, 0, len(sprints)+1)
	for _, s := range sprints {
		name := sprint.Name(s.ID, sprints)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if _, ok := seen[sprint.BacklogName]; !ok {
		out = append(out, sprint.BacklogName)
	}
	return out
}

// bucketFor returns the accumulator key for a task: its sprint's display
// name, or the backlog when the sprint id is not known.
func bucketFor(ix sprint.Index, t model.Task) string {
	if !ix.Known(t.SprintID) {
		return sprint.BacklogName
	}
	return ix.Name(t.SprintID)
}
