package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/NovoNihilo/clipforge/internal/queueaccess"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show full details for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				job, err := access.Show(cmdCtx, args[0])
				if err != nil {
					return fmt.Errorf("show job: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", job.ID)
				fmt.Fprintf(out, "Source:    %s\n", job.SourceURL)
				fmt.Fprintf(out, "Stage:     %s\n", job.Stage)
				if job.FailureStage != "" {
					fmt.Fprintf(out, "Failed at: %s\n", job.FailureStage)
				}
				fmt.Fprintf(out, "Attempts:  %d\n", job.AttemptCount)
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
				}
				if job.LeaseOwner != "" && job.LeaseExpiresAt != nil {
					fmt.Fprintf(out, "Lease:     %s (expires %s)\n",
						job.LeaseOwner, job.LeaseExpiresAt.Format(time.RFC3339))
				}
				if job.NextAttemptAt != nil {
					fmt.Fprintf(out, "Retry at:  %s\n", job.NextAttemptAt.Format(time.RFC3339))
				}
				fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "Updated:   %s\n", job.UpdatedAt.Format(time.RFC3339))

				if len(job.Payload) > 0 {
					keys := make([]string, 0, len(job.Payload))
					for key := range job.Payload {
						keys = append(keys, key)
					}
					sort.Strings(keys)
					rows := make([][]string, 0, len(keys))
					for _, key := range keys {
						rows = append(rows, []string{key, job.Payload[key]})
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"Payload Key", "Value"},
						rows,
						[]columnAlignment{alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}
}
