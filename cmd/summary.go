package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/models"
	"github.com/olekukonko/tablewriter"
)

// generateRunsSummary condenses run metadata, already sorted by start time,
// into a listing.
func generateRunsSummary(runsDir string, runs []experiment.Metadata) models.RunsSummary {
	summary := models.RunsSummary{
		RunsDir: runsDir,
		Runs:    make([]models.RunSummary, 0, len(runs)),
		Total:   len(runs),
	}

	for _, md := range runs {
		summary.Runs = append(summary.Runs, summarizeRun(md))
		run := &summary.Runs[len(summary.Runs)-1]

		switch md.Status {
		case experiment.StatusFinished:
			summary.Finished++
		case experiment.StatusFailed:
			summary.Failed++
			summary.LastFailure = run
		default:
			summary.Active++
		}
	}

	return summary
}

func summarizeRun(md experiment.Metadata) models.RunSummary {
	run := models.RunSummary{
		ID:         md.ID,
		Name:       md.Name,
		Status:     string(md.Status),
		Root:       md.Root,
		StartedAt:  md.StartedAt,
		DurationMs: md.DurationMs,
		Error:      md.Error,
		Initiator:  md.Initiator,
	}

	if code, ok := md.Annotations["exit_code"].(int); ok {
		run.ExitCode = &code
	}
	return run
}

// writeRunsTable renders summary for humans.
func writeRunsTable(w io.Writer, summary models.RunsSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Status", "Started", "Duration", "Exit", "Root"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, run := range summary.Runs {
		exit := "-"
		if run.ExitCode != nil {
			exit = strconv.Itoa(*run.ExitCode)
		}
		table.Append([]string{
			run.Name,
			run.Status,
			run.StartedAt.Local().Format(time.DateTime),
			formatDuration(run.DurationMs),
			exit,
			run.Root,
		})
	}
	table.Render()

	fmt.Fprintf(w, "\n%d runs: %d finished, %d failed, %d active\n", summary.Total, summary.Finished, summary.Failed, summary.Active)
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Second / 10).String()
}
