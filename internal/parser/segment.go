package parser

import (
	"fmt"
	"strings"
)

// Span is one segment-delimited slice of the source text.
type Span struct {
	Text  string
	Start int  // absolute offset of the first byte
	End   int  // absolute offset just past the last byte
	Line  int  // 1-based, counts blank spans too
	Blank bool // empty or whitespace only
}

// Segments splits text at every occurrence of sep. Blank spans are kept and
// flagged so that line numbers keep tracking the source.
func Segments(text, sep string) ([]Span, error) {
	if sep == "" {
		return nil, fmt.Errorf("%w: empty segment delimiter", ErrStructural)
	}
	if text == "" {
		return nil, nil
	}

	spans := make([]Span, 0, strings.Count(text, sep)+1)
	start, line := 0, 1
	for {
		i := strings.Index(text[start:], sep)
		end := len(text)
		if i >= 0 {
			end = start + i
		}
		s := text[start:end]
		spans = append(spans, Span{
			Text:  s,
			Start: start,
			End:   end,
			Line:  line,
			Blank: strings.TrimSpace(s) == "",
		})
		if i < 0 {
			break
		}
		start = end + len(sep)
		line++
	}
	return spans, nil
}
