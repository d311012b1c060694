package parser

import (
	"strings"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/delim"
	"github.com/dgallion1/hl7gest/internal/escape"
)

// part is a half-open range of absolute offsets.
type part struct{ start, end int }

// split cuts src[r.start:r.end] at every sep. The result always has at
// least one part.
func split(src string, r part, sep byte) []part {
	out := make([]part, 0, 1+strings.Count(src[r.start:r.end], string(sep)))
	start := r.start
	for i := r.start; i < r.end; i++ {
		if src[i] == sep {
			out = append(out, part{start, i})
			start = i + 1
		}
	}
	return append(out, part{start, r.end})
}

// tokenizer builds the nodes of one segment span.
type tokenizer struct {
	src  string
	span Span
	d    delim.Set
}

func (t *tokenizer) point(offset int) ast.Point {
	return ast.Point{Line: t.span.Line, Column: offset - t.span.Start + 1, Offset: offset}
}

func (t *tokenizer) pos(r part) *ast.Position {
	return &ast.Position{Start: t.point(r.start), End: t.point(r.end)}
}

func (t *tokenizer) segment(index int) *ast.Node {
	whole := part{t.span.Start, t.span.End}
	fields := split(t.src, whole, t.d.Field)

	head := fields[0]
	code := t.src[head.start:head.end]
	seg := &ast.Node{
		Type:      ast.TypeSegment,
		Name:      code,
		Index:     index,
		Delimiter: string([]byte{t.d.Field}),
		Position:  t.pos(whole),
	}
	seg.Children = append(seg.Children, &ast.Node{
		Type:     ast.TypeSegmentHeader,
		Value:    code,
		Position: t.pos(head),
	})

	rest := fields[1:]
	if delim.IsHeaderCode(code) && len(rest) > 0 {
		// MSH-1 is the separator between the code and MSH-2; MSH-2 holds the
		// encoding characters verbatim.
		sep := part{head.end, head.end + 1}
		seg.Children = append(seg.Children,
			t.literalField(1, sep),
			t.literalField(2, rest[0]),
		)
		rest = rest[1:]
	}
	for _, f := range rest {
		seg.Children = append(seg.Children, t.field(len(seg.Children), f))
	}
	return seg
}

// literalField builds a fully nested field whose single leaf holds the raw
// source text, without splitting or escape decoding.
func (t *tokenizer) literalField(index int, r part) *ast.Node {
	sub := &ast.Node{Type: ast.TypeSubcomponent, Value: t.src[r.start:r.end], Position: t.pos(r)}
	comp := t.container(ast.TypeComponent, 0, r, sub)
	rep := t.container(ast.TypeFieldRepetition, 0, r, comp)
	return t.container(ast.TypeField, index, r, rep)
}

func (t *tokenizer) container(typ ast.NodeType, index int, r part, children ...*ast.Node) *ast.Node {
	return &ast.Node{
		Type:      typ,
		Index:     index,
		Delimiter: ast.DelimiterFor(typ, t.d),
		Children:  children,
		Position:  t.pos(r),
	}
}

func (t *tokenizer) field(index int, r part) *ast.Node {
	n := t.container(ast.TypeField, index, r)
	for i, rr := range split(t.src, r, t.d.Repetition) {
		n.Children = append(n.Children, t.repetition(i, rr))
	}
	return n
}

func (t *tokenizer) repetition(index int, r part) *ast.Node {
	n := t.container(ast.TypeFieldRepetition, index, r)
	for i, cr := range split(t.src, r, t.d.Component) {
		n.Children = append(n.Children, t.component(i, cr))
	}
	return n
}

func (t *tokenizer) component(index int, r part) *ast.Node {
	n := t.container(ast.TypeComponent, index, r)
	for i, sr := range split(t.src, r, t.d.Subcomponent) {
		n.Children = append(n.Children, &ast.Node{
			Type:     ast.TypeSubcomponent,
			Index:    i,
			Value:    escape.Decode(t.src[sr.start:sr.end], t.d),
			Position: t.pos(sr),
		})
	}
	return n
}
