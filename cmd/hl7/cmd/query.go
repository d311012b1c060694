package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/query"
)

var (
	queryPartial bool
	queryAll     bool
	queryJSON    bool
)

// errNoMatch makes the command exit non-zero without extra output.
var errNoMatch = errors.New("no match")

var queryCmd = &cobra.Command{
	Use:   "query <path> [file]",
	Short: "Resolve a path against a message",
	Long: `Resolves a path and prints the decoded value of every match, one
per line. Matches that branch into several values print as JSON.

Examples:
  hl7 query PID-3[1].1.1 adt.hl7
  hl7 query --all OBX-5 oru.hl7
  hl7 query --partial PID-99[1].1.1 adt.hl7`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolVarP(&queryPartial, "partial", "p", false, "return the deepest node reached when the path runs off the tree")
	queryCmd.Flags().BoolVarP(&queryAll, "all", "a", false, "return every match instead of the first")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print matched nodes as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	p, err := query.Parse(args[0])
	if err != nil {
		return err
	}
	root, err := parseInput(cmd, args[1:])
	if err != nil {
		return err
	}

	opts := []query.Option{query.WithPartialMatch(queryPartial)}
	var nodes []*ast.Node
	if queryAll {
		nodes = query.SelectAll(root, p, opts...)
	} else if r := query.Select(root, p, opts...); r.Found {
		nodes = append(nodes, r.Node)
	}
	if len(nodes) == 0 {
		logger(cmd).Debug("no match", "path", p.String())
		return fmt.Errorf("%w for %s", errNoMatch, p)
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		return printJSON(out, nodes, false)
	}
	for _, n := range nodes {
		if v, ok := n.Scalar(); ok {
			fmt.Fprintln(out, v)
			continue
		}
		if err := printJSON(out, n, false); err != nil {
			return err
		}
	}
	return nil
}
