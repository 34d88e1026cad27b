package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"dubstitch/internal/driver"
	"dubstitch/internal/logging"
	"dubstitch/internal/notifications"
	"dubstitch/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "run [source-video subtitle-file]",
		Short: "Dub a video directly or drain pending queue items",
		Long: "With two arguments, dubs the given video against the given subtitle file.\n" +
			"With no arguments, claims pending queue items one at a time until the queue is empty.",
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return errors.New("run requires both a source video and a subtitle file, or no arguments")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "dubstitch.lock")
			lock := flock.New(lockPath)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another dubstitch run is already in progress")
			}
			defer lock.Unlock()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			progress := notifications.NewProgress(
				notifications.NewService(cfg),
				logging.WithComponent(logger, "notify"),
			)

			if len(args) == 2 {
				drv, err := driver.NewFromConfig(cfg, driver.PassthroughTranslator{}, progress, logger)
				if err != nil {
					return fmt.Errorf("initialize pipeline: %w", err)
				}
				return runDirect(runCtx, cmd, drv, args[0], args[1], title)
			}
			return ctx.withStore(func(store *queue.Store) error {
				tracker := newQueueProgress(progress, store, logging.WithComponent(logger, "queue"))
				drv, err := driver.NewFromConfig(cfg, driver.PassthroughTranslator{}, tracker, logger)
				if err != nil {
					return fmt.Errorf("initialize pipeline: %w", err)
				}
				return drainQueue(runCtx, cmd, drv, store, tracker)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title for notifications and the output file name")
	return cmd
}

func runDirect(ctx context.Context, cmd *cobra.Command, drv *driver.Driver, sourceVideo, subtitlePath, title string) error {
	outcome, err := drv.Run(ctx, driver.Request{
		SourceVideo:  sourceVideo,
		SubtitlePath: subtitlePath,
		Title:        title,
	})
	if err != nil {
		return err
	}
	reportOutcome(cmd, outcome)
	return nil
}

// drainQueue claims pending items oldest-first until the queue is empty or
// the context is cancelled. The tracker mirrors pipeline stage transitions
// into the claimed item's progress columns. A failed item is recorded and
// does not stop the drain.
func drainQueue(ctx context.Context, cmd *cobra.Command, drv *driver.Driver, store *queue.Store, tracker *queueProgress) error {
	out := cmd.OutOrStdout()
	processed := 0
	failed := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := store.NextPending(ctx)
		if err != nil {
			return fmt.Errorf("claim next item: %w", err)
		}
		if item == nil {
			break
		}

		item.Stage = "claimed"
		item.ProgressMessage = "pipeline started"
		if err := store.Update(ctx, item); err != nil {
			return fmt.Errorf("update item %d: %w", item.ID, err)
		}

		tracker.track(item)
		outcome, runErr := drv.Run(ctx, driver.Request{
			SourceVideo:  item.SourceVideo,
			SubtitlePath: item.SubtitlePath,
			Title:        item.Title,
		})
		tracker.track(nil)
		if runErr != nil {
			item.Status = queue.StatusFailed
			item.ErrorMessage = runErr.Error()
			item.ProgressMessage = ""
			if err := store.Update(ctx, item); err != nil {
				return fmt.Errorf("record failure for item %d: %w", item.ID, err)
			}
			failed++
			fmt.Fprintf(out, "Item %d failed: %v\n", item.ID, runErr)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		item.Status = queue.StatusCompleted
		item.Stage = "done"
		item.ProgressPercent = 100
		item.ProgressMessage = ""
		item.OutputPath = outcome.OutputPath
		if err := store.Update(ctx, item); err != nil {
			return fmt.Errorf("record completion for item %d: %w", item.ID, err)
		}
		processed++
		fmt.Fprintf(out, "Item %d completed: %s\n", item.ID, outcome.OutputPath)
	}

	if processed == 0 && failed == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return nil
	}
	fmt.Fprintf(out, "Processed %d item(s), %d failed\n", processed, failed)
	if failed > 0 && processed == 0 {
		return errors.New("all claimed items failed")
	}
	return nil
}

func reportOutcome(cmd *cobra.Command, outcome *driver.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dubbed video: %s\n", outcome.OutputPath)
	for _, sidecar := range outcome.Sidecars {
		fmt.Fprintf(out, "Sidecar: %s\n", sidecar)
	}
	if outcome.FailedBatches > 0 {
		fmt.Fprintf(out, "Warning: %d of %d batches failed and were skipped\n",
			outcome.FailedBatches, outcome.Batches+outcome.FailedBatches)
	}
}
