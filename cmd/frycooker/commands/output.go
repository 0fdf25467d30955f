package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/stores"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// printRunList shows each host's work items in execution order. A host
// listed twice appears twice.
func printRunList(w io.Writer, rl *engine.RunList) {
	t := newTable(w)
	t.SetTitle("Run list")
	t.AppendHeader(table.Row{"#", "Host", "Work items"})
	for i, host := range rl.Hosts {
		items := rl.For(host)
		names := make([]string, len(items))
		for j, item := range items {
			names[j] = item.String()
		}
		t.AppendRow(table.Row{i + 1, host, strings.Join(names, ", ")})
	}
	t.Render()
}

func printRunSummary(w io.Writer, run *engine.Run) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Run %s: %s", run.ID, statusText(string(run.Status))))
	t.AppendHeader(table.Row{"Host", "Status", "Completed", "Failed", "Skipped", "Files written", "Duration", "Error"})
	for _, hr := range run.Hosts {
		var completed, failed, skipped, written int
		for _, ir := range hr.Items {
			switch ir.Status {
			case engine.ItemStatusCompleted:
				completed++
			case engine.ItemStatusFailed:
				failed++
			case engine.ItemStatusSkipped:
				skipped++
			}
			written += ir.Files.Written
		}
		errText := ""
		if hr.Err != nil {
			errText = hr.Err.Error()
		}
		t.AppendRow(table.Row{
			hr.Host,
			statusText(string(hr.Status)),
			completed,
			failed,
			skipped,
			written,
			hr.Duration.Round(time.Millisecond),
			errText,
		})
	}
	t.Render()
}

func printRuns(w io.Writer, runs []*stores.RunRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Started", "Mode", "Targets", "Status", "Hosts", "Failed", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Mode,
			strings.Join(r.Targets, " "),
			statusText(string(r.Status)),
			r.HostsTotal,
			r.HostsFailed,
			r.Duration().Round(time.Second),
		})
	}
	t.Render()
}

func printRunItems(w io.Writer, run *stores.RunRecord, items []*stores.ItemRecord) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Run %s: %s", run.ID, statusText(string(run.Status))))
	t.AppendHeader(table.Row{"Host", "Work item", "Status", "Written", "Unchanged", "Deleted", "Duration", "Error"})
	for _, it := range items {
		t.AppendRow(table.Row{
			it.Host,
			it.Item().String(),
			statusText(string(it.Status)),
			it.FilesWritten,
			it.FilesUnchanged,
			it.FilesDeleted,
			it.Duration,
			it.Error,
		})
	}
	t.Render()
}

func statusText(status string) string {
	switch status {
	case "succeeded", "completed":
		return text.FgGreen.Sprint(status)
	case "failed", "aborted":
		return text.FgRed.Sprint(status)
	case "partial", "skipped", "running":
		return text.FgYellow.Sprint(status)
	default:
		return status
	}
}
