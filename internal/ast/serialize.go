package ast

import (
	"strings"

	"github.com/dgallion1/hl7gest/internal/delim"
	"github.com/dgallion1/hl7gest/internal/escape"
)

// String serializes the tree with the root's delimiters, escaping leaf
// values. For a tree built with the constructors it reproduces the message
// the tree was built from.
func String(r *Root) string {
	var b strings.Builder
	writeChildren(&b, r.Children, r.Data.Delimiters)
	return b.String()
}

// SegmentString serializes a single segment.
func SegmentString(n *Node, d delim.Set) string {
	var b strings.Builder
	writeSegment(&b, n, d)
	return b.String()
}

// Source returns the exact source bytes a parsed node was built from.
// Nodes without a position yield "".
func (n *Node) Source(src string) string {
	if n == nil || n.Position == nil {
		return ""
	}
	start, end := n.Position.Start.Offset, n.Position.End.Offset
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return src[start:end]
}

func writeChildren(b *strings.Builder, nodes []*Node, d delim.Set) {
	first := true
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			switch n.Type {
			case TypeGroup:
				walk(n.Children)
			case TypeSegment:
				if !first {
					b.WriteString(d.Segment)
				}
				first = false
				writeSegment(b, n, d)
			}
		}
	}
	walk(nodes)
}

func writeSegment(b *strings.Builder, n *Node, d delim.Set) {
	code := ""
	if h := n.Child(0); h != nil && h.Type == TypeSegmentHeader {
		code = h.Value
	}
	b.WriteString(code)

	fields := n.Children
	if len(fields) > 0 && fields[0].Type == TypeSegmentHeader {
		fields = fields[1:]
	}

	if delim.IsHeaderCode(code) && len(fields) > 0 {
		// Field 1 is the separator itself and field 2 the raw encoding
		// characters; neither is escaped.
		b.WriteByte(d.Field)
		if len(fields) > 1 {
			enc, _ := fields[1].Scalar()
			b.WriteString(enc)
		}
		for _, f := range fields[min(2, len(fields)):] {
			b.WriteByte(d.Field)
			writeField(b, f, d)
		}
		return
	}

	for _, f := range fields {
		b.WriteByte(d.Field)
		writeField(b, f, d)
	}
}

func writeField(b *strings.Builder, n *Node, d delim.Set) {
	for i, rep := range n.Children {
		if i > 0 {
			b.WriteByte(d.Repetition)
		}
		for j, comp := range rep.Children {
			if j > 0 {
				b.WriteByte(d.Component)
			}
			for k, sub := range comp.Children {
				if k > 0 {
					b.WriteByte(d.Subcomponent)
				}
				b.WriteString(escape.Encode(sub.Value, d))
			}
		}
	}
}
