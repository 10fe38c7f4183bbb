package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"slidecast/internal/renderqueue"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render projects to video",
	}
	renderCmd.AddCommand(newRenderBatchCommand(ctx))
	renderCmd.AddCommand(newRenderHistoryCommand(ctx))
	return renderCmd
}

func newRenderBatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <project-id>...",
		Short: "Render projects sequentially, waiting for each to finish",
		Long: "Render the given projects one at a time, in order. Interrupting with\n" +
			"Ctrl-C cancels the batch cooperatively: the current render stops at its\n" +
			"next status poll and remaining projects are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			lock := flock.New(filepath.Join(app.cfg.Paths.StateDir, "render.lock"))
			held, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire render lock: %w", err)
			}
			if !held {
				return fmt.Errorf("another slidecast render batch is already running")
			}
			defer func() { _ = lock.Unlock() }()

			selections := make([]renderqueue.Selection, 0, len(args))
			for _, arg := range args {
				projectID, err := parseID(arg, "project id")
				if err != nil {
					return err
				}
				project, err := app.client.FetchProject(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				selections = append(selections, renderqueue.Selection{
					ProjectID: project.ID,
					Title:     project.Title,
				})
			}

			batchID, err := app.queue.Enqueue(selections...)
			if err != nil {
				return err
			}

			signalCtx, stopSignals := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stopSignals()
			go func() {
				<-signalCtx.Done()
				app.queue.CancelAll()
			}()

			out := cmd.OutOrStdout()
			if !ctx.jsonOutput() {
				fmt.Fprintf(out, "Render batch %s: %d project(s)\n", batchID, len(selections))
				progressDone := make(chan struct{})
				go reportProgress(out, app.queue, progressDone)
				defer close(progressDone)
			}

			// The run context is deliberately not the signal context: Ctrl-C
			// requests cooperative cancellation through the queue flag rather
			// than tearing the poll loops down mid-item.
			if err := app.queue.Run(context.Background()); err != nil {
				return err
			}
			stopSignals()

			items := app.queue.Items()
			if ctx.jsonOutput() {
				return printJSON(out, map[string]any{
					"batch_id": batchID,
					"items":    items,
				})
			}
			fmt.Fprintln(out, renderBatchTable(items, shouldColorize(out)))
			return nil
		},
	}
}

// reportProgress prints a line whenever the active item's phase or progress
// bucket changes, until done closes.
func reportProgress(out io.Writer, queue *renderqueue.Queue, done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastLine := map[int64]string{}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		for _, item := range queue.Items() {
			if item.Status != renderqueue.StatusRendering {
				continue
			}
			line := fmt.Sprintf("  %s: %s %.0f%%", item.Title, renderqueue.PhaseLabel(item.CurrentPhase), item.Progress)
			if item.TotalSegments > 0 {
				line += fmt.Sprintf(" (segment %d/%d)", item.CurrentSegment, item.TotalSegments)
			}
			if lastLine[item.ProjectID] != line {
				lastLine[item.ProjectID] = line
				fmt.Fprintln(out, line)
			}
		}
	}
}

func renderBatchTable(items []renderqueue.Item, color bool) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := string(item.Status)
		switch item.Status {
		case renderqueue.StatusCompleted:
			status = colorize(color, ansiGreen, status)
		case renderqueue.StatusFailed:
			status = colorize(color, ansiRed, status)
		case renderqueue.StatusCancelled:
			status = colorize(color, ansiYellow, status)
		}
		detail := item.OutputURL
		if item.Error != "" {
			detail = item.Error
		}
		duration := ""
		if !item.StartedAt.IsZero() && !item.FinishedAt.IsZero() {
			duration = item.FinishedAt.Sub(item.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ProjectID, 10),
			item.Title,
			status,
			duration,
			detail,
		})
	}
	return renderTable([]string{"Project", "Title", "Status", "Duration", "Result"}, rows, 0, 3)
}

func newRenderHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past render outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if clear {
				if err := app.journal.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Render history cleared")
				return nil
			}

			entries, err := app.journal.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.jsonOutput() {
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No renders recorded")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				detail := entry.OutputURL
				if entry.Error != "" {
					detail = entry.Error
				}
				when := ""
				if !entry.RecordedAt.IsZero() {
					when = entry.RecordedAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					when,
					strconv.FormatInt(entry.ProjectID, 10),
					entry.Title,
					entry.Status,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"When", "Project", "Title", "Status", "Result"}, rows, 1))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete all recorded history")
	return cmd
}
