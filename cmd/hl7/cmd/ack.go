package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/hl7gest/internal/ack"
	"github.com/dgallion1/hl7gest/internal/ast"
)

var (
	ackCode string
	ackText string
	ackLF   bool
)

var ackCmd = &cobra.Command{
	Use:   "ack [file]",
	Short: "Build an acknowledgment for a message",
	Long: `Builds an ACK for the message: sender and receiver swapped, the
control id echoed in MSA-2, and an ERR segment when the code is an error
code and --text is set.

Examples:
  hl7 ack adt.hl7
  hl7 ack --code AE --text "unknown patient" adt.hl7`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAck,
}

func init() {
	rootCmd.AddCommand(ackCmd)

	ackCmd.Flags().StringVarP(&ackCode, "code", "c", string(ack.ApplicationAccept), "acknowledgment code: AA, AE, AR, CA, CE or CR")
	ackCmd.Flags().StringVarP(&ackText, "text", "t", "", "error text for ERR-8")
	ackCmd.Flags().BoolVar(&ackLF, "lf", false, "end segments with LF instead of the message's delimiter")
}

func runAck(cmd *cobra.Command, args []string) error {
	code, err := ack.ParseCode(ackCode)
	if err != nil {
		return err
	}
	root, err := parseInput(cmd, args)
	if err != nil {
		return err
	}
	reply, err := ack.NewGenerator().Build(root, code, ackText)
	if err != nil {
		return fmt.Errorf("build ack: %w", err)
	}

	text := ast.String(reply)
	if ackLF {
		text = strings.ReplaceAll(text, reply.Data.Delimiters.Segment, "\n")
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
