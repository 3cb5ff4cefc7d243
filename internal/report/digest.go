package report

import (
	"fmt"
	"strings"

	"github.com/okian/kpiboard/internal/domain/kpi"
)

const (
	headingTeam       = "Team Performance per Sprint (Completed Tasks, Total Real Hours):"
	headingIndividual = "Individual Performance per Sprint (Completed Tasks, Real Hours):"
	headingEstimation = "Estimation Accuracy per Sprint (Estimated vs Real Hours):"

	noTeamData       = "No team performance data available."
	noIndividualData = "No individual performance data available."
	noEstimationData = "No estimation accuracy data available."

	promptIntro = "Please provide a brief (2-3 sentences) summary of the following project Key Performance Indicators (KPIs). " +
		"Focus on overall trends in team performance, individual contributions, and estimation accuracy across sprints."
	promptOutro = "Generate a concise summary:"
)

// Digest renders the team, individual and estimation views as plain text.
// Only sprints and users with activity are listed.
func Digest(b kpi.Bundle) string { return defaultReporter.Digest(b) }

// Prompt wraps the digest with instructions for a text summariser.
func Prompt(b kpi.Bundle) string { return defaultReporter.Prompt(b) }

// Digest renders the team, individual and estimation views as plain text.
func (r *Reporter) Digest(b kpi.Bundle) string {
	sections := []string{
		headingTeam + "\n" + orDefault(r.teamLines(b), noTeamData),
		headingIndividual + "\n" + orDefault(r.individualLines(b), noIndividualData),
		headingEstimation + "\n" + orDefault(r.estimationLines(b), noEstimationData),
	}
	return strings.Join(sections, "\n\n")
}

// Prompt wraps the digest with instructions for a text summariser.
func (r *Reporter) Prompt(b kpi.Bundle) string {
	return promptIntro + "\n\n" + r.Digest(b) + "\n\n" + promptOutro + "\n"
}

func (r *Reporter) teamLines(b kpi.Bundle) string {
	var lines []string
	for _, row := range b.TeamPerformancePerSprint {
		if row.CompletedTasks == 0 && row.TotalRealHours <= 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %d tasks completed, %.1f total real hours.",
			row.SprintName, row.CompletedTasks, row.TotalRealHours))
	}
	return strings.Join(lines, "\n")
}

func (r *Reporter) individualLines(b kpi.Bundle) string {
	var blocks []string
	for _, sprintName := range r.engine.SprintNames(b.IndividualPerformancePerSprint) {
		var lines []string
		for _, user := range r.engine.UserNames(b.IndividualPerformancePerSprint, sprintName) {
			cell, _ := b.IndividualPerformancePerSprint.Cell(sprintName, user)
			if cell.CompletedTasks == 0 && cell.RealHours <= 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("  - %s: %d tasks, %.1fh", user, cell.CompletedTasks, cell.RealHours))
		}
		if len(lines) > 0 {
			blocks = append(blocks, sprintName+":\n"+strings.Join(lines, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (r *Reporter) estimationLines(b kpi.Bundle) string {
	var lines []string
	for _, row := range b.EstimationAccuracyPerSprint {
		if row.TotalEstimated <= 0 && row.TotalReal <= 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: Est. %.1fh, Real %.1fh", row.SprintName, row.TotalEstimated, row.TotalReal))
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
