package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"clipdigest/internal/api"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleDefault)
		t.Style().Options.DrawBorder = false
	}
	return t
}

func renderTaskTable(out io.Writer, list []api.TaskResponse) {
	if len(list) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Status", "Progress", "Platform", "Video", "Created", "Error"})
	for _, task := range list {
		t.AppendRow(table.Row{
			task.ID,
			task.Status,
			fmt.Sprintf("%d%%", task.Progress),
			task.Platform,
			task.VideoID,
			task.CreatedAt.Local().Format("2006-01-02 15:04"),
			text.Trim(task.ErrorMessage, 40),
		})
	}
	t.Render()
}

func renderTaskDetail(out io.Writer, task *api.TaskResponse, summaries []api.SummaryResponse) {
	fmt.Fprintf(out, "Task %d (%s)\n", task.ID, task.Status)
	fmt.Fprintf(out, "  url:       %s\n", task.SourceURL)
	if task.VideoID != "" {
		fmt.Fprintf(out, "  video:     %s (%s)\n", task.VideoID, task.Platform)
	}
	fmt.Fprintf(out, "  progress:  %d%%\n", task.Progress)
	fmt.Fprintf(out, "  created:   %s\n", task.CreatedAt.Local().Format(time.RFC1123))
	if task.CompletedAt != nil {
		fmt.Fprintf(out, "  completed: %s\n", task.CompletedAt.Local().Format(time.RFC1123))
	}
	if task.ErrorMessage != "" {
		fmt.Fprintf(out, "  error:     %s\n", task.ErrorMessage)
	}
	if task.Transcription != "" {
		fmt.Fprintf(out, "\nTranscription:\n%s\n", task.Transcription)
	}
	if len(summaries) > 0 {
		fmt.Fprintln(out, "\nSummaries:")
		for _, s := range summaries {
			fmt.Fprintf(out, "  [%d] %s (%s)\n", s.SortOrder, s.Name, s.CreatedAt.Local().Format("2006-01-02 15:04"))
			if s.CustomPrompt != "" {
				fmt.Fprintf(out, "      prompt: %s\n", s.CustomPrompt)
			}
			fmt.Fprintf(out, "      %s\n", s.Content)
		}
	}
}
