// Package splitter cuts batch files into individual HL7v2 messages.
package splitter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/hl7gest/internal/delim"
	"github.com/dgallion1/hl7gest/internal/parser"
)

// ErrTooManyMessages is returned when a file holds more messages than
// Config.MaxMessages allows.
var ErrTooManyMessages = errors.New("too many messages")

// Config controls splitting behavior.
type Config struct {
	Segment     string // Segment delimiter; empty sniffs the input.
	MaxMessages int    // Upper bound on messages per file; 0 means no limit.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessages: 10000,
	}
}

// Message is one message cut from a batch, with its place in the file.
type Message struct {
	Text     string   // Source text from the first to the last segment
	Index    int      // Sequence number within the file
	Offset   int      // Byte offset of the first segment
	Line     int      // 1-based line of the first segment
	Segments int      // Number of non-blank segments
	Envelope []string // Enclosing FHS/BHS header segments, outermost first
}

// Split walks text segment by segment and starts a new message at every
// MSH. FHS, BHS, BTS and FTS envelope segments are dropped from the
// messages and recorded in Envelope instead. Segments that appear before
// the first MSH form a message of their own.
func Split(text string, cfg Config) ([]Message, error) {
	sep := cfg.Segment
	if sep == "" {
		sep = delim.Sniff(text)
	}
	spans, err := parser.Segments(text, sep)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	s := &state{text: text}
	for _, span := range spans {
		if span.Blank {
			continue
		}
		switch segmentCode(span.Text) {
		case "FHS":
			s.flush()
			s.envelope = []string{span.Text}
		case "BHS":
			s.flush()
			s.envelope = append(fileHeaders(s.envelope), span.Text)
		case "BTS":
			s.flush()
			s.envelope = fileHeaders(s.envelope)
		case "FTS":
			s.flush()
			s.envelope = nil
		case "MSH":
			s.flush()
			s.start(span)
		default:
			if s.cur == nil {
				s.start(span)
				continue
			}
			s.cur.end = span.End
			s.cur.msg.Segments++
		}
		if cfg.MaxMessages > 0 && len(s.out) > cfg.MaxMessages {
			return nil, fmt.Errorf("split: %w: limit is %d", ErrTooManyMessages, cfg.MaxMessages)
		}
	}
	s.flush()
	if cfg.MaxMessages > 0 && len(s.out) > cfg.MaxMessages {
		return nil, fmt.Errorf("split: %w: limit is %d", ErrTooManyMessages, cfg.MaxMessages)
	}
	return s.out, nil
}

type pending struct {
	msg Message
	end int
}

type state struct {
	text     string
	envelope []string
	cur      *pending
	out      []Message
}

func (s *state) start(span parser.Span) {
	s.cur = &pending{
		msg: Message{
			Index:    len(s.out),
			Offset:   span.Start,
			Line:     span.Line,
			Segments: 1,
			Envelope: copyEnvelope(s.envelope),
		},
		end: span.End,
	}
}

func (s *state) flush() {
	if s.cur == nil {
		return
	}
	s.cur.msg.Text = s.text[s.cur.msg.Offset:s.cur.end]
	s.out = append(s.out, s.cur.msg)
	s.cur = nil
}

// fileHeaders keeps only the FHS entries of an envelope.
func fileHeaders(env []string) []string {
	var out []string
	for _, e := range env {
		if segmentCode(e) == "FHS" {
			out = append(out, e)
		}
	}
	return out
}

func segmentCode(s string) string {
	s = strings.TrimLeft(s, " \t\n\r")
	if len(s) < 3 {
		return s
	}
	return s[:3]
}

func copyEnvelope(env []string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, len(env))
	copy(out, env)
	return out
}
