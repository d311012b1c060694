package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/hl7gest/internal/lint"
)

var (
	lintRules string
	lintJSON  bool
)

var errLintFailed = errors.New("lint errors found")

var lintCmd = &cobra.Command{
	Use:   "lint [file]",
	Short: "Check a message against lint rules",
	Long: `Runs the built-in header rules, or the rules of a YAML file, and
prints one line per diagnostic. Exits non-zero when any diagnostic has
severity error.

Examples:
  hl7 lint adt.hl7
  hl7 lint --rules site-rules.yaml adt.hl7`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintRules, "rules", "r", "", "YAML rules file (default: built-in rules)")
	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "print diagnostics as JSON")
}

func runLint(cmd *cobra.Command, args []string) error {
	linter := lint.Builtin()
	if lintRules != "" {
		var err error
		if linter, err = lint.LoadFile(lintRules); err != nil {
			return err
		}
	}
	root, err := parseInput(cmd, args)
	if err != nil {
		return err
	}

	diags := linter.Run(root)
	out := cmd.OutOrStdout()
	if lintJSON {
		if diags == nil {
			diags = []lint.Diagnostic{}
		}
		if err := printJSON(out, diags, true); err != nil {
			return err
		}
	} else {
		for _, d := range diags {
			loc := "-"
			if d.Position != nil {
				loc = fmt.Sprintf("%d:%d", d.Position.Start.Line, d.Position.Start.Column)
			}
			fmt.Fprintf(out, "%s %s %s %s: %s\n", loc, d.Severity, d.RuleID, d.Path, d.Message)
		}
	}
	if lint.HasErrors(diags) {
		return errLintFailed
	}
	return nil
}
