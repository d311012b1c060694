// Package parser turns HL7v2 message text into an ast.Root.
//
// Parsing is a pure function of its inputs: it does no I/O beyond reading
// the supplied reader, keeps no state between calls and is safe to run
// concurrently.
package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/delim"
)

// ErrStructural reports input that cannot be turned into segments at all.
var ErrStructural = errors.New("structural source defect")

// Options control delimiter resolution.
type Options struct {
	Delimiters delim.Set // overrides; zero fields keep the default
	AutoDetect bool      // read delimiters from the MSH header
}

// Option configures a parse call.
type Option func(*Options)

// WithDelimiters overrides delimiters. Zero fields are ignored.
func WithDelimiters(d delim.Set) Option {
	return func(o *Options) { o.Delimiters = o.Delimiters.Merge(d) }
}

// WithSegmentDelimiter sets the segment separator ("\r" by default).
func WithSegmentDelimiter(sep string) Option {
	return func(o *Options) { o.Delimiters.Segment = sep }
}

// WithAutoDetect turns header delimiter detection on or off (default on).
func WithAutoDetect(on bool) Option {
	return func(o *Options) { o.AutoDetect = on }
}

func buildOptions(opts []Option) Options {
	o := Options{AutoDetect: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Parse parses a single message.
func Parse(text string, opts ...Option) (*ast.Root, error) {
	o := buildOptions(opts)
	d := delim.Resolve(text, o.Delimiters, o.AutoDetect)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}

	spans, err := Segments(text, d.Segment)
	if err != nil {
		return nil, err
	}

	root := &ast.Root{
		Node: ast.Node{
			Type:      ast.TypeRoot,
			Delimiter: d.Segment,
			Position:  rootPosition(text, spans),
		},
		Data: ast.Data{Delimiters: d},
	}
	for _, span := range spans {
		if span.Blank {
			continue
		}
		t := &tokenizer{src: text, span: span, d: d}
		root.Children = append(root.Children, t.segment(len(root.Children)))
	}
	return root, nil
}

// ParseReader reads r to the end and parses it as a single message.
func ParseReader(r io.Reader, opts ...Option) (*ast.Root, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return Parse(string(data), opts...)
}

func rootPosition(text string, spans []Span) *ast.Position {
	start := ast.Point{Line: 1, Column: 1, Offset: 0}
	end := start
	if len(spans) > 0 {
		last := spans[len(spans)-1]
		end = ast.Point{Line: last.Line, Column: len(text) - last.Start + 1, Offset: len(text)}
	}
	return &ast.Position{Start: start, End: end}
}
