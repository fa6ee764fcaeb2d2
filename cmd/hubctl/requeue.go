package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/internal/repository"
	"github.com/reunite/hub/internal/service"
)

const defaultRequeueLimit = 10000

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Re-enqueue sighting processing jobs",
	Long: `Re-enqueue processing for sightings that never reached a terminal state, for
example after jobs exhausted their retries while the face service was down.

Sightings that already have an active job are skipped.

Examples:
  # Every unprocessed sighting, oldest first
  hubctl requeue --all-unprocessed

  # Reprocess one sighting, even if it was already processed
  hubctl requeue --sighting 0190c8a2-7c1e-7b7a-9d1e-3f6f2a1b0c9d`,
	Args: cobra.NoArgs,
	RunE: runRequeue,
}

func init() {
	rootCmd.AddCommand(requeueCmd)

	requeueCmd.Flags().Bool("all-unprocessed", false, "Requeue every unprocessed sighting")
	requeueCmd.Flags().String("sighting", "", "Reprocess a single sighting by ID")
	requeueCmd.Flags().Int("limit", defaultRequeueLimit, "Maximum sightings to requeue with --all-unprocessed")
	requeueCmd.MarkFlagsMutuallyExclusive("all-unprocessed", "sighting")
	requeueCmd.MarkFlagsOneRequired("all-unprocessed", "sighting")
}

func runRequeue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := connect(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	inserter, err := e.inserter()
	if err != nil {
		return err
	}

	repo := repository.NewSightingsRepository(e.db)

	if raw := mustGetString(cmd, "sighting"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid sighting ID %q: %w", raw, err)
		}

		return requeueOne(ctx, cmd, service.NewSightingsService(e.db, repo, inserter), id)
	}

	lister := &countingLister{inner: repo}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Requeueing sightings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("sightings"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	lister.onList = func(n int) { bar.ChangeMax(n) }

	stats, err := jobs.RequeueUnprocessed(ctx, lister, inserter, mustGetInt(cmd, "limit"), func() {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d, enqueued %d, already queued %d, errors %d\n",
		stats.Found, stats.Enqueued, stats.Skipped, stats.Errors)

	if stats.Errors > 0 {
		return fmt.Errorf("%d sightings could not be requeued", stats.Errors)
	}

	return nil
}

func requeueOne(ctx context.Context, cmd *cobra.Command, sightings *service.SightingsService, id uuid.UUID) error {
	err := sightings.ReprocessSighting(ctx, id)

	var conflict *huberrors.ConflictError

	switch {
	case errors.As(err, &conflict):
		fmt.Fprintf(cmd.OutOrStdout(), "Sighting %s already has an active job\n", id)

		return nil
	case err != nil:
		return fmt.Errorf("reprocess sighting %s: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sighting %s queued for processing\n", id)

	return nil
}

// countingLister reports how many sightings were listed so the progress bar gets a total.
type countingLister struct {
	inner  jobs.UnprocessedLister
	onList func(n int)
}

func (l *countingLister) ListUnprocessed(ctx context.Context, limit int) ([]models.Sighting, error) {
	sightings, err := l.inner.ListUnprocessed(ctx, limit)
	if err == nil && l.onList != nil {
		l.onList(len(sightings))
	}

	return sightings, err
}
