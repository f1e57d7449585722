package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinlab/amrclassify/internal/catalog"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule catalog files",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a catalog file or directory without publishing it",
	Args:  cobra.ExactArgs(1),
	Long: `validate reads and merges every catalog file at the given path
and reports every schema violation found (never just the first), the
same collect-all-violations contract the running Store uses on
reload.`,
	RunE: runRulesValidate,
}

var rulesDryRunCmd = &cobra.Command{
	Use:   "dry-run <path>",
	Short: "Show what publishing a candidate catalog would change",
	Args:  cobra.ExactArgs(1),
	Long: `dry-run loads a candidate catalog from <path>, compares it
against the catalog currently configured at catalog.path, and reports
added and removed breakpoints and intrinsic rules, and added, removed,
and changed expert rules, without ever publishing the candidate.`,
	RunE: runRulesDryRun,
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	violations, err := catalog.Validate(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog at %s: %w", path, err)
	}
	if len(violations) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid, no violations\n", path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d violation(s)\n", path, len(violations))
	for _, v := range violations {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", v.Path, v.Message)
	}
	os.Exit(1)
	return nil
}

func runRulesDryRun(cmd *cobra.Command, args []string) error {
	candidatePath := args[0]

	app, err := loadAppContext()
	if err != nil {
		return err
	}

	current, err := catalog.LoadPath(app.config.Catalog.Path, app.config.Catalog.MaxFileSizeBytes)
	if err != nil {
		return fmt.Errorf("failed to load current catalog at %s: %w", app.config.Catalog.Path, err)
	}
	candidate, err := catalog.LoadPath(candidatePath, app.config.Catalog.MaxFileSizeBytes)
	if err != nil {
		return fmt.Errorf("failed to load candidate catalog at %s: %w", candidatePath, err)
	}

	summary := catalog.Diff(current, candidate)
	printDiffSummary(cmd, summary)
	return nil
}

func printDiffSummary(cmd *cobra.Command, summary catalog.ChangeSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s\n", summary.VersionFrom, summary.VersionTo)
	if summary.Empty() {
		fmt.Fprintln(out, "  no changes")
		return
	}
	printSection(out, "breakpoints added", summary.BreakpointsAdded)
	printSection(out, "breakpoints removed", summary.BreakpointsRemoved)
	printSection(out, "expert rules added", summary.ExpertRulesAdded)
	printSection(out, "expert rules removed", summary.ExpertRulesRemoved)
	printSection(out, "expert rules changed", summary.ExpertRulesChanged)
	printSection(out, "intrinsic rules added", summary.IntrinsicAdded)
	printSection(out, "intrinsic rules removed", summary.IntrinsicRemoved)
}

func printSection(out io.Writer, label string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(out, "  %s (%d):\n", label, len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "    %s\n", e)
	}
}
