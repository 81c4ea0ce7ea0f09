package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediaprep/internal/deps"
	"mediaprep/internal/logging"
	"mediaprep/internal/queue"
	"mediaprep/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process the queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if err := deps.Verify(cfg); err != nil {
				return err
			}

			runLock := flock.New(cfg.Paths.LockPath)
			locked, err := runLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another mediaprep run holds %s", cfg.Paths.LockPath)
			}
			defer func() { _ = runLock.Unlock() }()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			manager, err := workflow.NewManager(cfg, store, logger)
			if err != nil {
				return err
			}

			if err := manager.Start(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "mediaprep running; press Ctrl-C to stop")

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			select {
			case <-cmd.Context().Done():
			case <-stop:
			}

			fmt.Fprintln(cmd.OutOrStdout(), "shutting down, waiting for in-flight work")
			manager.Stop()
			return nil
		},
	}
}
