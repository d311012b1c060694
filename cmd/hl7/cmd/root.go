package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/delim"
	"github.com/dgallion1/hl7gest/internal/parser"
)

var (
	segmentFlag  string
	noAutoDetect bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "hl7",
	Short: "HL7v2 message toolkit",
	Long: `hl7 parses HL7v2 messages and answers path queries against them.

Input is read from the file named on the command line, or from stdin
when no file is given. Segment endings are sniffed unless --segment
names one.

Paths look like PID-3, PID-3[1].1 or ORDER[2]-OBX-5[1].2.1.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&segmentFlag, "segment", "s", "auto", "segment delimiter: auto, cr, lf, crlf or a literal")
	rootCmd.PersistentFlags().BoolVar(&noAutoDetect, "no-auto-detect", false, "ignore delimiters declared in MSH-1 and MSH-2")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output on stderr")
}

func logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// readInput returns the text of the file named by args[0], or of stdin
// when args is empty or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// segmentFor resolves the --segment flag for text.
func segmentFor(text string) string {
	seg := delim.ParseSegment(segmentFlag)
	if seg == "" {
		seg = delim.Sniff(text)
	}
	return seg
}

func parseOptions(text string) []parser.Option {
	return []parser.Option{
		parser.WithSegmentDelimiter(segmentFor(text)),
		parser.WithAutoDetect(!noAutoDetect),
	}
}

// parseInput reads and parses a single message.
func parseInput(cmd *cobra.Command, args []string) (*ast.Root, error) {
	text, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	log := logger(cmd)
	root, err := parser.Parse(text, parseOptions(text)...)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	log.Debug("parsed message", "bytes", len(text), "segments", len(root.Segments()))
	return root, nil
}

func printJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
