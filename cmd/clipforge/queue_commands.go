package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearPackagedCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stages []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				jobs, err := access.List(cmdCtx, stages)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, jobRow(job))
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Stage", "Attempts", "Updated", "Source", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&stages, "stage", nil, "Filter by stage (repeatable)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-stage job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				stats, err := access.Stats(cmdCtx)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				total := 0
				for _, stage := range queue.AllStages() {
					count := stats[string(stage)]
					total += count
					rows = append(rows, []string{string(stage), fmt.Sprintf("%d", count)})
				}
				// Stages the store reports that the CLI does not know yet.
				var extra []string
				for name := range stats {
					if _, ok := queue.ParseStage(name); !ok {
						extra = append(extra, name)
					}
				}
				sort.Strings(extra)
				for _, name := range extra {
					total += stats[name]
					rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
				}
				rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Stage", "Jobs"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>...",
		Short: "Return failed jobs to the stage they failed at",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				for _, id := range args {
					job, err := access.Reset(cmdCtx, id)
					if err != nil {
						return fmt.Errorf("reset job %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s reset to %s\n", job.ID, job.Stage)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete jobs from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				for _, id := range args {
					removed, err := access.Remove(cmdCtx, id)
					if err != nil {
						return fmt.Errorf("remove job %s: %w", id, err)
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "No job with id %s\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearPackagedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-packaged",
		Short: "Delete packaged jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				removed, err := access.ClearPackaged(cmdCtx)
				if err != nil {
					return fmt.Errorf("clear packaged jobs: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d packaged job(s)\n", removed)
				return nil
			})
		},
	}
}
