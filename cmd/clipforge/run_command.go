package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/NovoNihilo/clipforge/internal/collab"
	"github.com/NovoNihilo/clipforge/internal/daemon"
	"github.com/NovoNihilo/clipforge/internal/ipc"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/stageexec"
	"github.com/NovoNihilo/clipforge/internal/workflow"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the clipforge daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Optional .env next to the working directory; absence is fine.
			_ = godotenv.Load()

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue database: %w", err)
			}

			executor := stageexec.New(cfg, collab.NewSet(cfg, logger), logger)
			manager := workflow.NewManager(cfg, store, executor, logger)
			d, err := daemon.New(cfg, store, manager, logger)
			if err != nil {
				store.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(ctx); err != nil {
				_ = d.Close()
				return err
			}

			server, err := ipc.NewServer(ctx, cfg.SocketPath(), d, store, logger)
			if err != nil {
				_ = d.Close()
				return fmt.Errorf("start ipc server: %w", err)
			}
			server.Serve()

			fmt.Fprintf(cmd.OutOrStdout(), "clipforged running (socket %s), press Ctrl-C to stop\n", cfg.SocketPath())
			<-ctx.Done()

			server.Close()
			return d.Close()
		},
	}
}
