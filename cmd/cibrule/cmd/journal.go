package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/cibrule/internal/core/db"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the rule journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list [constraint-id]",
	Short: "List recently compiled rules, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalList,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalListCmd.Flags().Int("limit", db.DefaultListLimit, "maximum number of entries")
}

func runJournalList(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	var constraintID string
	if len(args) == 1 {
		constraintID = args[0]
	}

	ctx := cmd.Context()
	database, queries, err := openDatabase(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := db.NewJournal(queries).List(ctx, constraintID, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tCONSTRAINT\tRULE\tEXPRESSION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.UTC().Format(time.RFC3339), e.ConstraintID, e.RuleID, e.Normalized)
	}
	return w.Flush()
}
