package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipdigest/internal/api"
)

var apiAddr string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "clipdigest",
		Short:        "Submit and inspect short-video summarization tasks",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7474",
		"base URL of the clipdigest daemon API")

	root.AddCommand(
		newAddCommand(),
		newListCommand(),
		newShowCommand(),
		newDeleteCommand(),
		newRetryCommand(),
		newResummarizeCommand(),
		newHistoryCommand(),
		newStatusCommand(),
		newURLsCommand(),
	)
	return root
}

func client() *apiClient {
	return newAPIClient(apiAddr)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid task id", arg)
	}
	return id, nil
}

func newAddCommand() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a video URL, or a whole collection with --batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch > 0 {
				resp, err := client().createBatch(args[0], batch)
				if err != nil {
					return err
				}
				fmt.Printf("queued %d tasks", len(resp.Created))
				if len(resp.Failed) > 0 {
					fmt.Printf(", %d failed", len(resp.Failed))
				}
				fmt.Println()
				for _, f := range resp.Failed {
					fmt.Printf("  failed: %s: %s\n", f.SourceURL, f.Error)
				}
				return nil
			}
			task, err := client().createTask(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("queued task %d\n", task.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "treat the URL as a collection and queue up to N items")
	return cmd
}

func newListCommand() *cobra.Command {
	var (
		status  string
		limit   int
		offset  int
		current bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp *api.TaskListResponse
				err  error
			)
			if current {
				resp, err = client().currentTasks()
			} else {
				resp, err = client().listTasks(status, limit, offset)
			}
			if err != nil {
				return err
			}
			renderTaskTable(cmd.OutOrStdout(), resp.Tasks)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d tasks\n", len(resp.Tasks), resp.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (comma separated)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&current, "current", false, "only tasks that are queued or processing")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := client().getTask(id)
			if err != nil {
				return err
			}
			summaries, err := client().summaries(id)
			if err != nil {
				return err
			}
			renderTaskDetail(cmd.OutOrStdout(), task, summaries)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete tasks and their stored artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			if len(ids) == 1 {
				if err := client().deleteTask(ids[0]); err != nil {
					return err
				}
				fmt.Printf("deleted task %d\n", ids[0])
				return nil
			}
			resp, err := client().deleteBatch(ids)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d tasks", len(resp.Deleted))
			if len(resp.Failed) > 0 {
				fmt.Printf(", %d failed", len(resp.Failed))
			}
			fmt.Println()
			for _, f := range resp.Failed {
				fmt.Printf("  failed: task %d: %s\n", f.TaskID, f.Error)
			}
			return nil
		},
	}
}

func newRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-run a finished task from the start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := client().retry(id)
			if err != nil {
				return err
			}
			fmt.Printf("task %d queued for retry\n", task.ID)
			return nil
		},
	}
}

func newResummarizeCommand() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "resummarize <id>",
		Short: "Generate another summary for a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := client().resummarize(id, prompt)
			if err != nil {
				return err
			}
			fmt.Printf("resummarization scheduled for task %d\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "custom summarization instruction")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().history(limit, offset)
			if err != nil {
				return err
			}
			renderTaskTable(cmd.OutOrStdout(), resp.Tasks)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d tasks\n", len(resp.Tasks), resp.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client().status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "running: %v\n", status.Running)
			fmt.Fprintf(out, "active: %d / %d slots\n", status.ActiveTasks, status.TaskSlots)
			fmt.Fprintf(out, "queued: %d\n", status.QueuedTasks)
			fmt.Fprintf(out, "processing: %d\n", status.ProcessingTasks)
			fmt.Fprintf(out, "total:  %d\n", status.TotalTasks)
			return nil
		},
	}
}

func newURLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "urls <id>",
		Short: "Print fresh download URLs for a task's artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			urls, err := client().artifactURLs(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if urls.VideoURL != "" {
				fmt.Fprintf(out, "video:      %s\n", urls.VideoURL)
			}
			if urls.AudioURL != "" {
				fmt.Fprintf(out, "audio:      %s\n", urls.AudioURL)
			}
			if urls.TranscriptURL != "" {
				fmt.Fprintf(out, "transcript: %s\n", urls.TranscriptURL)
			}
			if urls.SummaryURL != "" {
				fmt.Fprintf(out, "summary:    %s\n", urls.SummaryURL)
			}
			return nil
		},
	}
}
