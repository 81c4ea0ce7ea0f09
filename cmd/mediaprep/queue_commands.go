package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediaprep/internal/config"
	"mediaprep/internal/logging"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/workflow"
)

var statusTitler = cases.Title(language.English)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func withStore(ctx *commandContext, fn func(cfg *config.Config, store *queue.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
					status, ok := queue.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q", trimmed)
					}
					statuses = append(statuses, status)
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						filepath.Base(item.SourcePath),
						humanize.Bytes(uint64(item.SourceSize)),
						statusLabel(item.Status),
						item.ProgressStage,
						humanize.Time(item.UpdatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Size", "Status", "Stage", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize queue health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *queue.Store) error {
				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:      %d\n", summary.Total)
				fmt.Fprintf(out, "Pending:    %d\n", summary.Pending)
				fmt.Fprintf(out, "Processing: %d\n", summary.Processing)
				fmt.Fprintf(out, "Completed:  %d\n", summary.Completed)
				fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
				fmt.Fprintf(out, "Cancelled:  %d\n", summary.Cancelled)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return withStore(ctx, func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}
				printItem(cmd, item)
				return nil
			})
		},
	}
}

func printItem(cmd *cobra.Command, item *queue.Item) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Item #%d (%s)\n", item.ID, item.Key)
	fmt.Fprintf(out, "  Source:   %s (%s, %s)\n", item.SourcePath, item.MimeType, humanize.Bytes(uint64(item.SourceSize)))
	fmt.Fprintf(out, "  Status:   %s\n", statusLabel(item.Status))
	fmt.Fprintf(out, "  Added:    %s\n", humanize.Time(item.CreatedAt))
	fmt.Fprintf(out, "  Updated:  %s\n", humanize.Time(item.UpdatedAt))

	if steps, err := item.Plan(); err == nil && len(steps) > 0 {
		fmt.Fprintf(out, "  Plan:     %s (at step %d/%d)\n", strings.Join(plan.Names(steps), " -> "), item.StepIndex, len(steps))
	}
	if item.ProgressStage != "" {
		fmt.Fprintf(out, "  Progress: %s %.0f%% %s\n", item.ProgressStage, item.ProgressPercent, item.ProgressMessage)
	}
	if item.RetryAt != nil {
		fmt.Fprintf(out, "  Retry at: %s\n", humanize.Time(*item.RetryAt))
	}
	if item.RemoteURL != "" {
		fmt.Fprintf(out, "  Remote:   %s\n", item.RemoteURL)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:    [%s] %s: %s\n", item.ErrorKind, item.ErrorStep, item.ErrorMessage)
	}

	outputs := item.Outputs()
	if len(outputs) > 0 {
		fmt.Fprintln(out, "  Outputs:")
		for _, step := range orderedOutputSteps(item) {
			artifact := outputs[step]
			if artifact.Kind == queue.ArtifactValue {
				fmt.Fprintf(out, "    %-24s %s\n", step, artifact.Value)
			} else {
				fmt.Fprintf(out, "    %-24s %s (%s)\n", step, artifact.Path, humanize.Bytes(uint64(artifact.Size)))
			}
		}
	}
	for _, warning := range item.Warnings() {
		fmt.Fprintf(out, "  Warning:  %s: %s\n", warning.Step, warning.Message)
	}
}

func orderedOutputSteps(item *queue.Item) []string {
	outputs := item.Outputs()
	steps, _ := item.Plan()
	ordered := make([]string, 0, len(outputs))
	for _, step := range steps {
		if _, ok := outputs[string(step.Name)]; ok {
			ordered = append(ordered, string(step.Name))
		}
	}
	return ordered
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a failed item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return withManager(ctx, func(manager *workflow.Manager) error {
				item, err := manager.Retry(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item #%d requeued as %s\n", item.ID, statusLabel(item.Status))
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or in-flight item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return withManager(ctx, func(manager *workflow.Manager) error {
				item, err := manager.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item #%d cancelled\n", item.ID)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return withStore(ctx, func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("item %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item #%d removed\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly, failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove items from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *queue.Store) error {
				var (
					cleared int64
					err     error
				)
				switch {
				case completedOnly && failedOnly:
					return fmt.Errorf("pass at most one of --completed and --failed")
				case completedOnly:
					cleared, err = store.ClearCompleted(cmd.Context())
				case failedOnly:
					cleared, err = store.ClearFailed(cmd.Context())
				default:
					cleared, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", cleared)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only remove completed items")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only remove failed items")
	return cmd
}

func withManager(ctx *commandContext, fn func(manager *workflow.Manager) error) error {
	return withStore(ctx, func(cfg *config.Config, store *queue.Store) error {
		manager, err := workflow.NewManager(cfg, store, logging.NewNop())
		if err != nil {
			return err
		}
		return fn(manager)
	})
}

func statusLabel(status queue.Status) string {
	return statusTitler.String(strings.ReplaceAll(string(status), "_", " "))
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}
