package kpi

import (
	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/internal/domain/sprint"
)

// EstimationAccuracyRow compares estimated and real hours of DONE tasks in
// one sprint.
type EstimationAccuracyRow struct {
	SprintName     string  `json:"sprintName"`
	TotalEstimated float64 `json:"totalEstimated"`
	TotalReal      float64 `json:"totalReal"`
}

// EstimationAccuracyPerSprint sums estimated and real hours of DONE tasks per sprint.
// Unlike TeamPerformancePerSprint, sprints where both totals are zero are dropped.
func EstimationAccuracyPerSprint(tasks []model.Task, sprints []model.Sprint) []EstimationAccuracyRow {
	return estimationAccuracy(ordering{tag: DefaultLocale}, tasks, sprints)
}

func estimationAccuracy(o ordering, tasks []model.Task, sprints []model.Sprint) []EstimationAccuracyRow {
	names := bucketNames(sprints)
	acc := make(map[string]*EstimationAccuracyRow, len(names))
	rows := make([]EstimationAccuracyRow, len(names))
	for i, name := range names {
		rows[i] = EstimationAccuracyRow{SprintName: name}
		acc[name] = &rows[i]
	}

	ix := sprint.NewIndex(sprints)
	for _, t := range tasks {
		if !t.Done() {
			continue
		}
		row := acc[bucketFor(ix, t)]
		row.TotalEstimated += t.Estimated()
		row.TotalReal += t.Real()
	}

	out := make([]EstimationAccuracyRow, 0, len(rows))
	for _, r := range rows {
		if r.TotalEstimated == 0 && r.TotalReal == 0 {
			continue
		}
		out = append(out, r)
	}
	sortRows(o, out, func(r EstimationAccuracyRow) string { return r.SprintName })
	return out
}
