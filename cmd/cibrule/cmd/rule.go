package cmd

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/solatis/cibrule/internal/cib"
	"github.com/solatis/cibrule/internal/core/db"
	"github.com/solatis/cibrule/internal/types"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Add and show constraint rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <constraint-id> [id=<id>] [score=<score>|score-attribute=<attr>] [role=master|slave] <expression>...",
	Short: "Compile an expression into a new rule on a constraint",
	Example: `  cibrule rule add location-A score=100 '#uname' eq node1
  cibrule rule add location-A date-spec hours=9-16 weekdays=1-5
  cibrule rule add location-A -- date gt 2014-06-26 and pingd gt integer -1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRuleAdd,
}

var ruleShowCmd = &cobra.Command{
	Use:   "show [constraint-id]",
	Short: "Print the rules of a constraint, or of every constraint",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuleShow,
}

func init() {
	rootCmd.AddCommand(ruleCmd)
	ruleCmd.AddCommand(ruleAddCmd, ruleShowCmd)

	// Expression tokens may look like flags (negative values); stop at the first argument
	ruleAddCmd.Flags().SetInterspersed(false)
	ruleAddCmd.Flags().Bool("allow-duplicate", false, "add the rule even if an equivalent one exists")
	ruleAddCmd.Flags().Bool("dry-run", false, "print the rule XML without saving the CIB")

	ruleShowCmd.Flags().Bool("normalize", false, "print rules in canonical order with explicit types")
}

func runRuleAdd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	allowDuplicate, _ := cmd.Flags().GetBool("allow-duplicate")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	constraintID, argv := args[0], args[1:]

	doc, err := cib.Load(cfg.CIBFile)
	if err != nil {
		return err
	}
	added, err := doc.AddRule(constraintID, argv, allowDuplicate)
	if err != nil {
		return err
	}
	for _, w := range added.Warnings {
		logger.Warn(w.Message, "option", w.Option, "value", w.Value)
	}

	out := cmd.OutOrStdout()
	if dryRun {
		fragment := etree.NewDocument()
		fragment.SetRoot(added.Rule.Copy())
		fragment.Indent(2)
		_, err := fragment.WriteTo(out)
		return err
	}

	// A journal error must leave the CIB file unchanged
	var journal *db.Journal
	if cfg.Journal.DBURL != "" {
		database, queries, err := openDatabase(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer database.Close()
		journal = db.NewJournal(queries)
	}

	if err := doc.Save(cfg.CIBFile); err != nil {
		return err
	}

	if journal != nil {
		entry := &types.JournalEntry{
			ConstraintID: constraintID,
			RuleID:       added.RuleID,
			Expression:   shellquote.Join(argv...),
			Normalized:   added.Normalized,
		}
		if err := journal.Record(cmd.Context(), entry); err != nil {
			return err
		}
		logger.Debug("journal entry recorded", "entry", entry.EntryID)
	}

	logger.Info("rule added", "constraint", constraintID, "rule", added.RuleID, "cib", cfg.CIBFile)
	fmt.Fprintf(out, "%s: %s\n", added.RuleID, added.Normalized)
	return nil
}

func runRuleShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	normalize, _ := cmd.Flags().GetBool("normalize")

	doc, err := cib.Load(cfg.CIBFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		texts, err := doc.RuleText(args[0], normalize)
		if err != nil {
			return err
		}
		for _, text := range texts {
			fmt.Fprintln(out, text)
		}
		return nil
	}

	for _, id := range doc.ConstraintIDs() {
		texts, err := doc.RuleText(id, normalize)
		if err != nil {
			return err
		}
		for _, text := range texts {
			fmt.Fprintf(out, "%s: %s\n", id, text)
		}
	}
	return nil
}
