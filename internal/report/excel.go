package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/okian/kpiboard/internal/domain/kpi"
)

const defaultSheet = "Sheet1"

// WriteXLSX writes a workbook with a summary sheet and one sheet per view.
func WriteXLSX(w io.Writer, b kpi.Bundle) error { return defaultReporter.WriteXLSX(w, b) }

// WriteXLSX writes a workbook with a summary sheet and one sheet per view.
func (r *Reporter) WriteXLSX(w io.Writer, b kpi.Bundle) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName(defaultSheet, titleSummary); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{titleSummary, r.header("metric", "value"), summaryRows(b)},
		{titleCompleted, r.header("sprint", "task id", "task", "developer", "estimated hours", "real hours"), r.completedRows(b)},
		{titleTeam, r.header("sprint", "completed tasks", "total real hours"), teamRows(b)},
		{titleIndividual, r.header("sprint", "user", "completed tasks", "real hours"), r.individualRows(b)},
		{titleEstimation, r.header("sprint", "estimated hours", "real hours"), estimationRows(b)},
		{titleUserHours, r.header("user", "total hours"), userHourRows(b)},
		{titleUserDone, r.header("user", "done tasks"), userDoneRows(b)},
	}

	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.headers, s.rows, headerStyle); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, headers []string, rows [][]any, headerStyle int) error {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return err
	}
	if idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &head); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(name, "A", lastCol, 20); err != nil {
		return err
	}
	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func summaryRows(b kpi.Bundle) [][]any {
	current := noCurrentSprint
	ends := emptyPlaceholder
	expired := emptyPlaceholder
	if cs := b.CurrentSprint; cs != nil {
		current = cs.Name
		ends = cs.EndsAt.Format(timestampLayout)
		expired = fmt.Sprint(cs.Expired)
	}
	return [][]any{
		{"Generated at", b.GeneratedAt.Format(timestampLayout)},
		{"Current sprint", current},
		{"Current sprint ends", ends},
		{"Current sprint expired", expired},
		{"Current sprint estimated hours", b.CurrentSprintEstimatedHours},
	}
}

func (r *Reporter) completedRows(b kpi.Bundle) [][]any {
	var rows [][]any
	for _, g := range r.engine.CompletedGroups(b.CompletedTasksBySprint) {
		for _, t := range g.Tasks {
			rows = append(rows, []any{g.SprintName, t.ID, t.Name, t.Developer, t.EstimatedHours, t.RealHours})
		}
	}
	return rows
}

func teamRows(b kpi.Bundle) [][]any {
	rows := make([][]any, 0, len(b.TeamPerformancePerSprint))
	for _, p := range b.TeamPerformancePerSprint {
		rows = append(rows, []any{p.SprintName, p.CompletedTasks, p.TotalRealHours})
	}
	return rows
}

func (r *Reporter) individualRows(b kpi.Bundle) [][]any {
	var rows [][]any
	for _, sprintName := range r.engine.SprintNames(b.IndividualPerformancePerSprint) {
		for _, user := range r.engine.UserNames(b.IndividualPerformancePerSprint, sprintName) {
			cell, _ := b.IndividualPerformancePerSprint.Cell(sprintName, user)
			rows = append(rows, []any{sprintName, user, cell.CompletedTasks, cell.RealHours})
		}
	}
	return rows
}

func estimationRows(b kpi.Bundle) [][]any {
	rows := make([][]any, 0, len(b.EstimationAccuracyPerSprint))
	for _, e := range b.EstimationAccuracyPerSprint {
		rows = append(rows, []any{e.SprintName, e.TotalEstimated, e.TotalReal})
	}
	return rows
}

func userHourRows(b kpi.Bundle) [][]any {
	rows := make([][]any, 0, len(b.TotalHoursPerUser))
	for _, u := range b.TotalHoursPerUser {
		rows = append(rows, []any{u.Name, u.TotalHours})
	}
	return rows
}

func userDoneRows(b kpi.Bundle) [][]any {
	rows := make([][]any, 0, len(b.TotalCompletedTasksPerUser))
	for _, u := range b.TotalCompletedTasksPerUser {
		rows = append(rows, []any{u.Name, u.DoneTasks})
	}
	return rows
}
