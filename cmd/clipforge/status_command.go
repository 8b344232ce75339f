package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/queueaccess"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// A live daemon answers over the socket; otherwise report
			// straight from the database.
			if client, err := ctx.dialClient(); err == nil {
				defer client.Close()
				status, err := client.Status()
				if err != nil {
					return err
				}
				if status.Running {
					fmt.Fprintf(out, "Daemon:   running (pid %d, %d workers)\n", status.PID, status.Workers)
				} else {
					fmt.Fprintf(out, "Daemon:   connected, workflow stopped (pid %d)\n", status.PID)
				}
				fmt.Fprintf(out, "Database: %s\n", status.QueueDBPath)
				fmt.Fprintf(out, "Lock:     %s\n", status.LockPath)
				if status.LastError != "" {
					fmt.Fprintf(out, "Last err: %s\n", status.LastError)
				}
				printStageCounts(cmd, status.QueueStats)
				return nil
			}

			fmt.Fprintln(out, "Daemon:   not running")
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				stats, err := access.Stats(cmdCtx)
				if err != nil {
					return err
				}
				printStageCounts(cmd, stats)
				return nil
			})
		},
	}
}

func printStageCounts(cmd *cobra.Command, stats map[string]int) {
	rows := make([][]string, 0, len(stats))
	for _, stage := range queue.AllStages() {
		if count := stats[string(stage)]; count > 0 {
			rows = append(rows, []string{string(stage), fmt.Sprintf("%d", count)})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Stage", "Jobs"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}
