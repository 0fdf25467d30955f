package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		runID string
		prune time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs from the run journal",
		Long: `Show runs recorded in the SQLite journal configured by journal_path.

Without flags the most recent runs are listed. --run shows every work item
of one run. --prune deletes runs older than the given age.`,
		Example: `  frycooker history --limit 5
  frycooker history --run 0b6f0d8e-3c1f-4f55-9d7e-5a1c9c1a2b3c
  frycooker history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := environment.LoadSettings(settingsPath)
			if err != nil {
				return err
			}
			if settings.JournalPath == "" {
				return fmt.Errorf("no journal_path configured in %s", settingsPath)
			}

			ctx := cmd.Context()
			journal, err := stores.Open(ctx, settings.JournalPath)
			if err != nil {
				return fmt.Errorf("failed to open run journal: %w", err)
			}
			defer journal.Close()

			out := cmd.OutOrStdout()
			switch {
			case prune > 0:
				n, err := journal.PruneRuns(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				log.Info().Int64("runs", n).Dur("older_than", prune).Msg("Journal pruned")
				_, err = fmt.Fprintf(out, "pruned %d runs\n", n)
				return err

			case runID != "":
				run, err := journal.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				items, err := journal.RunItems(ctx, runID)
				if err != nil {
					return err
				}
				printRunItems(out, run, items)
				return nil

			default:
				runs, err := journal.ListRuns(ctx, limit, 0)
				if err != nil {
					return err
				}
				printRuns(out, runs)
				return nil
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the work items of one run")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this age")
	cmd.MarkFlagsMutuallyExclusive("run", "prune")

	return cmd
}
