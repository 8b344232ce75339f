package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/NovoNihilo/clipforge/internal/queueaccess"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Enqueue a clip for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceURL := strings.TrimSpace(args[0])
			if sourceURL == "" {
				return fmt.Errorf("source url is required")
			}
			id := strings.TrimSpace(jobID)
			if id == "" {
				id = uuid.NewString()
			}

			return ctx.withQueueAccess(func(cmdCtx context.Context, access queueaccess.Access) error {
				job, err := access.Add(cmdCtx, id, sourceURL)
				if err != nil {
					return fmt.Errorf("enqueue clip: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s (%s)\n", job.ID, job.Stage)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&jobID, "id", "", "Job identifier (defaults to a generated UUID)")
	return cmd
}
