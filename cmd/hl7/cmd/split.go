package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/hl7gest/internal/annotate"
	"github.com/dgallion1/hl7gest/internal/parser"
	"github.com/dgallion1/hl7gest/internal/splitter"
)

var (
	splitOutDir string
	splitMax    int
)

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Split a batch file into messages",
	Long: `Cuts a batch file at every MSH segment, dropping FHS/BHS/BTS/FTS
envelope segments, and prints one summary line per message. With --out
each message is also written to its own file.

Examples:
  hl7 split batch.hl7
  hl7 split --out ./messages batch.hl7`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringVarP(&splitOutDir, "out", "o", "", "directory to write one file per message")
	splitCmd.Flags().IntVar(&splitMax, "max", splitter.DefaultConfig().MaxMessages, "maximum number of messages (0 for no limit)")
}

func runSplit(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	seg := segmentFor(text)
	msgs, err := splitter.Split(text, splitter.Config{Segment: seg, MaxMessages: splitMax})
	if err != nil {
		return err
	}
	log := logger(cmd)
	log.Debug("split batch", "messages", len(msgs))

	if splitOutDir != "" {
		if err := os.MkdirAll(splitOutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	for _, m := range msgs {
		typ, control := "-", "-"
		root, err := parser.Parse(m.Text, parseOptions(m.Text)...)
		if err != nil {
			log.Warn("message does not parse", "index", m.Index, "line", m.Line, "error", err)
		} else {
			meta := annotate.Annotate(root).Message
			if t := meta.Type(); t != "" {
				typ = t
			}
			if meta.ControlID != "" {
				control = meta.ControlID
			}
		}
		fmt.Fprintf(out, "%d\tline %d\t%d segments\t%s\t%s\n", m.Index, m.Line, m.Segments, typ, control)

		if splitOutDir != "" {
			name := filepath.Join(splitOutDir, fmt.Sprintf("message-%05d.hl7", m.Index+1))
			if err := os.WriteFile(name, []byte(m.Text+seg), 0o644); err != nil {
				return fmt.Errorf("write message %d: %w", m.Index, err)
			}
		}
	}
	return nil
}
