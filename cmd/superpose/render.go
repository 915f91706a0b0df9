package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"superpose/internal/pipeline"
	"superpose/internal/variant"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

// renderResult formats one round's outcome for the terminal.
func renderResult(res pipeline.Result, seed int64) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Winner: "+res.Winner.Name) + "\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("ID:"), res.Winner.ID))
	b.WriteString(fmt.Sprintf("%s %.4f\n", labelStyle.Render("Fitness:"), res.Fitness))
	b.WriteString(fmt.Sprintf("%s %.4f\n", labelStyle.Render("Weight:"), res.Winner.Weight))
	b.WriteString(fmt.Sprintf("%s %d\n\n", labelStyle.Render("Seed:"), seed))

	b.WriteString(labelStyle.Render("Checks:") + "\n")
	for _, o := range res.Winner.Outcomes {
		b.WriteString(fmt.Sprintf("  %-12s %s\n", o.Category, renderStatus(o.Status)))
	}

	if p := res.Winner.Profile; p != nil {
		b.WriteString("\n" + labelStyle.Render("Profile:") + "\n")
		b.WriteString(fmt.Sprintf("  response    %.1f ms\n", p.ResponseTimeMS))
		b.WriteString(fmt.Sprintf("  throughput  %.0f rps\n", p.ThroughputRPS))
		b.WriteString(fmt.Sprintf("  memory      %.0f MB\n", p.MemoryMB))
		b.WriteString(fmt.Sprintf("  cpu         %.1f %%\n", p.CPUPercent))
		b.WriteString(fmt.Sprintf("  reliability %.3f\n", p.Reliability))
		b.WriteString(fmt.Sprintf("  scalability %.3f\n", p.Scalability))
	}

	b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf(
		"batch %s: %d candidates, %d collapsed",
		res.Batch.ID, len(res.Batch.VariantIDs), len(res.Batch.VariantIDs)-1)))

	return borderStyle.Render(b.String())
}

func renderStatus(s variant.OutcomeStatus) string {
	switch s {
	case variant.OutcomePass:
		return passStyle.Render(string(s))
	case variant.OutcomeFail:
		return failStyle.Render(string(s))
	default:
		return mutedStyle.Render(string(s))
	}
}
