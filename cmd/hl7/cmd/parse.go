package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/hl7gest/internal/jsonify"
)

var indentOutput bool

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Print the syntax tree of a message as JSON",
	Long: `Parses one message and prints its full tree, with node types,
indices, decoded values and source positions.

Examples:
  hl7 parse adt.hl7
  cat adt.hl7 | hl7 parse --indent`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := parseInput(cmd, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), root, indentOutput)
	},
}

var jsonCmd = &cobra.Command{
	Use:   "json [file]",
	Short: "Print the compact JSON projection of a message",
	Long: `Prints each segment as {"segment": code, "fields": [...]}. Fields
with one value collapse to a string.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := parseInput(cmd, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), jsonify.Project(root), indentOutput)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(jsonCmd)

	parseCmd.Flags().BoolVarP(&indentOutput, "indent", "i", false, "indent JSON output")
	jsonCmd.Flags().BoolVarP(&indentOutput, "indent", "i", false, "indent JSON output")
}
