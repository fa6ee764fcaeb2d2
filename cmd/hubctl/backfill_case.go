package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/repository"
)

var backfillCaseCmd = &cobra.Command{
	Use:   "backfill-case <case-id>",
	Short: "Match a case against faces from already processed sightings",
	Long: `Enqueue retroactive matching for one case. Every stored sighting face of the
same embedding version is compared with the case photo; hits are recorded and
notified like live matches. Sightings already matched to the case are skipped.

Enrollment enqueues this automatically. Use it after changing the match
threshold or when an earlier backfill job was discarded.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackfillCase,
}

func init() {
	rootCmd.AddCommand(backfillCaseCmd)
}

func runBackfillCase(cmd *cobra.Command, args []string) error {
	caseID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid case ID %q: %w", args[0], err)
	}

	ctx := cmd.Context()

	e, err := connect(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	c, err := repository.NewCasesRepository(e.db).Get(ctx, caseID)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}

	if c.IsFound {
		return fmt.Errorf("case %s is already marked found", caseID)
	}

	inserter, err := e.inserter()
	if err != nil {
		return err
	}

	inserted, err := inserter.InsertCaseBackfillJob(ctx, jobs.CaseBackfillArgs{CaseID: caseID})
	if err != nil {
		return fmt.Errorf("enqueue backfill: %w", err)
	}

	if !inserted {
		fmt.Fprintf(cmd.OutOrStdout(), "Backfill for case %s is already queued\n", caseID)

		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backfill for case %s (%s) queued\n", caseID, c.Name)

	return nil
}
