package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaprep/internal/logging"
	"mediaprep/internal/plan"
	"mediaprep/internal/queue"
	"mediaprep/internal/workflow"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var mimeFlag string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a media file to the processing queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			mimeType := strings.TrimSpace(mimeFlag)
			if mimeType == "" {
				mimeType = detectMime(absPath)
			}
			if mimeType == "" {
				return fmt.Errorf("could not determine media type for %s; pass --mime", absPath)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			manager, err := workflow.NewManager(cfg, store, logging.NewNop())
			if err != nil {
				return err
			}

			item, err := manager.Enqueue(cmd.Context(), absPath, mimeType)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch item.Status {
			case queue.StatusFailed:
				fmt.Fprintf(out, "Item #%d rejected: %s\n", item.ID, item.ErrorMessage)
			case queue.StatusAwaitingUpload:
				fmt.Fprintf(out, "Queued item #%d (%s, %s): no processing required, will upload as-is\n",
					item.ID, filepath.Base(absPath), humanize.Bytes(uint64(item.SourceSize)))
			default:
				steps, _ := item.Plan()
				fmt.Fprintf(out, "Queued item #%d (%s, %s): %s\n",
					item.ID, filepath.Base(absPath), humanize.Bytes(uint64(item.SourceSize)),
					strings.Join(plan.Names(steps), " -> "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mimeFlag, "mime", "", "Declared media type (inferred from extension when omitted)")
	return cmd
}

func detectMime(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".mkv":
		return "video/x-matroska"
	}
	detected := mime.TypeByExtension(ext)
	if idx := strings.IndexByte(detected, ';'); idx >= 0 {
		detected = detected[:idx]
	}
	return strings.TrimSpace(detected)
}
