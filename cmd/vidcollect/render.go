package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderSummary prints one row per link followed by the totals
func renderSummary(w io.Writer, summary *domain.BatchSummary) {
	t := newTable(w)
	t.SetTitle("Batch " + summary.BatchID)
	t.AppendHeader(table.Row{"#", "Platform", "Content ID", "State", "Category", "Input"})
	for i, o := range summary.Outcomes {
		t.AppendRow(table.Row{
			i + 1,
			o.Platform,
			o.ContentID,
			o.State,
			o.Category,
			truncate(o.ShareText, 40),
		})
	}
	t.AppendFooter(table.Row{"", "", "",
		fmt.Sprintf("%d ok / %d login / %d failed", summary.Succeeded, summary.Suspended, summary.Failed),
		"", fmt.Sprintf("%d total", summary.Total)})
	t.Render()

	if len(summary.Categories) == 0 {
		return
	}
	categories := make([]string, 0, len(summary.Categories))
	for c := range summary.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	ct := newTable(w)
	ct.AppendHeader(table.Row{"Category", "Links"})
	for _, c := range categories {
		ct.AppendRow(table.Row{c, summary.Categories[c]})
	}
	ct.Render()
}

// renderJobs prints a job listing
func renderJobs(w io.Writer, jobs []*domain.Job) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Platform", "Content ID", "State", "Category", "Title", "Updated"})
	for _, j := range jobs {
		t.AppendRow(table.Row{
			truncate(j.ID, 8),
			j.Platform,
			j.ContentID,
			j.State,
			j.FailureCategory,
			truncate(j.Title, 30),
			j.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}

// renderJob prints the details of a single job
func renderJob(w io.Writer, j *domain.Job) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"ID", j.ID},
		{"Batch", j.BatchID},
		{"Input", j.ShareText},
		{"State", j.State},
		{"Platform", j.Platform},
		{"Content ID", j.ContentID},
		{"URL", j.CanonicalURL},
		{"Title", j.Title},
		{"Video", j.VideoPath},
		{"Audio", j.AudioPath},
		{"Transcript", j.TranscriptOrigin},
		{"Category", j.FailureCategory},
		{"Error", j.ErrorMessage},
		{"Fetch attempts", j.FetchAttempts},
		{"Created", j.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Updated", j.UpdatedAt.Format("2006-01-02 15:04:05")},
	})
	t.Render()
}

// renderStats prints job counts by state and platform
func renderStats(w io.Writer, stats *domain.JobStats) {
	t := newTable(w)
	t.SetTitle("Jobs")
	t.AppendRows([]table.Row{
		{"Total", stats.Total},
		{"In progress", stats.InProgress},
		{"Assembled", stats.Assembled},
		{"Exported", stats.Exported},
		{"Login required", stats.LoginRequired},
		{"Failed", stats.Failed},
	})
	t.Render()

	if len(stats.ByPlatform) == 0 {
		return
	}
	platforms := make([]string, 0, len(stats.ByPlatform))
	for p := range stats.ByPlatform {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	pt := newTable(w)
	pt.AppendHeader(table.Row{"Platform", "Jobs"})
	for _, p := range platforms {
		pt.AppendRow(table.Row{p, stats.ByPlatform[p]})
	}
	pt.Render()
}

// truncate shortens s to maxLen runes
func renderLogs(w io.Writer, entries []logger.LogEntry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Time", "Level", "Event", "Fields"})
	for _, e := range entries {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, e.Fields[k])
		}
		t.AppendRow(table.Row{e.Timestamp, e.Level, e.Message, truncate(strings.Join(pairs, " "), 80)})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d entries", len(entries))})
	t.Render()
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
