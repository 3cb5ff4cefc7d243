package kpi

import (
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

// SprintPerformance is the team's completed work in one sprint.
type SprintPerformance struct {
	SprintName     string  `json:"sprintName"`
	CompletedTasks int     `json:"completedTasks"`
	TotalRealHours float64 `json:"totalRealHours"`
}

// TeamPerformancePerSprint returns one row per known sprint plus the backlog, sorted
// by sprint name. Rows without completed work are kept.
func TeamPerformancePerSprint(tasks []model.Task, sprints []model.Sprint) []SprintPerformance {
	return teamPerformance(ordering{tag: DefaultLocale}, tasks, sprints)
}

func teamPerformance(o ordering, tasks []model.Task, sprints []model.Sprint) []SprintPerformance {
	names := bucketNames(sprints)
	acc := make(map[string]*SprintPerformance, len(names))
	out := make([]SprintPerformance, len(names))
	for i, name := range names {
		out[i] = SprintPerformance{SprintName: name}
		acc[name] = &out[i]
	}

	ix := sprint.NewIndex(sprints)
	for _, t := range tasks {
		if !t.Done() {
			continue
		}
		row := acc[bucketFor(ix, t)]
		row.CompletedTasks++
		row.TotalRealHours += t.Real()
	}

	sortRows(o, out, func(r SprintPerformance) string { return r.SprintName })
	return out
}
