package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/okian/kpiboard/internal/domain/kpi"
)

// RenderTables prints every view as a console table.
func RenderTables(w io.Writer, b kpi.Bundle) error { return defaultReporter.RenderTables(w, b) }

// RenderTables prints every view as a console table.
func (r *Reporter) RenderTables(w io.Writer, b kpi.Bundle) error {
	tables := []struct {
		title   string
		headers []string
		rows    [][]any
		numeric []int
	}{
		{titleSummary, r.header("metric", "value"), formatRows(summaryRows(b)), nil},
		{titleTeam, r.header("sprint", "completed tasks", "total real hours"), formatRows(teamRows(b)), []int{2, 3}},
		{titleEstimation, r.header("sprint", "estimated hours", "real hours"), formatRows(estimationRows(b)), []int{2, 3}},
		{titleIndividual, r.header("sprint", "user", "completed tasks", "real hours"), formatRows(r.activeIndividualRows(b)), []int{3, 4}},
		{titleUserHours, r.header("user", "total hours"), formatRows(userHourRows(b)), []int{2}},
		{titleUserDone, r.header("user", "done tasks"), formatRows(userDoneRows(b)), []int{2}},
		{titleCompleted, r.header("sprint", "task id", "task", "developer", "estimated hours", "real hours"), formatRows(r.completedRows(b)), []int{2, 5, 6}},
	}

	for _, t := range tables {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.SetTitle(t.title)

		header := make(table.Row, len(t.headers))
		for i, h := range t.headers {
			header[i] = h
		}
		tbl.AppendHeader(header)

		for _, row := range t.rows {
			tbl.AppendRow(row)
		}
		if len(t.rows) == 0 {
			tbl.AppendFooter(table.Row{emptyPlaceholder})
		}

		configs := make([]table.ColumnConfig, 0, len(t.numeric))
		for _, n := range t.numeric {
			configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
		}
		tbl.SetColumnConfigs(configs)

		if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// activeIndividualRows skips the zero cells the matrix is filled with.
func (r *Reporter) activeIndividualRows(b kpi.Bundle) [][]any {
	var rows [][]any
	for _, row := range r.individualRows(b) {
		if row[2] == 0 && row[3] == 0.0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// formatRows renders floats with one decimal.
func formatRows(rows [][]any) [][]any {
	for _, row := range rows {
		for i, v := range row {
			if f, ok := v.(float64); ok {
				row[i] = fmt.Sprintf(hoursFormat, f)
			}
		}
	}
	return rows
}
