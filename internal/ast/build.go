package ast

import "github.com/dgallion1/hl7gest/internal/delim"

// Constructors for building trees by hand, e.g. for acknowledgments or
// tests. Indices are assigned in argument order; positions are left empty
// because the nodes have no source text.

// NewRoot builds a root over segments and groups and records d as the
// delimiter of every level below it.
func NewRoot(d delim.Set, children ...*Node) *Root {
	r := &Root{
		Node: Node{
			Type:     TypeRoot,
			Children: reindex(children),
		},
		Data: Data{Delimiters: d},
	}
	setDelimiters(&r.Node, d)
	return r
}

// NewGroup builds a named group of segments and nested groups.
func NewGroup(name string, children ...*Node) *Node {
	return &Node{Type: TypeGroup, Name: name, Children: reindex(children)}
}

// NewSegment builds a segment from its code and fields 1..n.
func NewSegment(code string, fields ...*Node) *Node {
	children := make([]*Node, 0, len(fields)+1)
	children = append(children, &Node{Type: TypeSegmentHeader, Value: code})
	children = append(children, fields...)
	return &Node{Type: TypeSegment, Name: code, Children: reindex(children)}
}

// NewHeaderSegment builds an MSH-style segment: field 1 is the field
// separator and field 2 the encoding characters of d, followed by fields
// 3..n.
func NewHeaderSegment(code string, d delim.Set, fields ...*Node) *Node {
	all := make([]*Node, 0, len(fields)+2)
	all = append(all, FieldOf(string([]byte{d.Field})), FieldOf(d.EncodingCharacters()))
	all = append(all, fields...)
	return NewSegment(code, all...)
}

// NewField builds a field from its repetitions. With no arguments the field
// is empty: one repetition holding one empty component.
func NewField(reps ...*Node) *Node {
	if len(reps) == 0 {
		reps = []*Node{NewRepetition()}
	}
	return &Node{Type: TypeField, Children: reindex(reps)}
}

// NewRepetition builds a field repetition from its components.
func NewRepetition(comps ...*Node) *Node {
	if len(comps) == 0 {
		comps = []*Node{NewComponent()}
	}
	return &Node{Type: TypeFieldRepetition, Children: reindex(comps)}
}

// NewComponent builds a component from its subcomponents.
func NewComponent(subs ...*Node) *Node {
	if len(subs) == 0 {
		subs = []*Node{NewSubcomponent("")}
	}
	return &Node{Type: TypeComponent, Children: reindex(subs)}
}

// NewSubcomponent builds a leaf holding decoded text.
func NewSubcomponent(value string) *Node {
	return &Node{Type: TypeSubcomponent, Value: value}
}

// FieldOf builds a single-repetition field whose components hold the given
// values, each as a single subcomponent.
func FieldOf(components ...string) *Node {
	comps := make([]*Node, 0, len(components))
	for _, c := range components {
		comps = append(comps, NewComponent(NewSubcomponent(c)))
	}
	return NewField(NewRepetition(comps...))
}

// DelimiterFor returns the separator that splits the children of a node of
// type t.
func DelimiterFor(t NodeType, d delim.Set) string {
	switch t {
	case TypeRoot, TypeGroup:
		return d.Segment
	case TypeSegment:
		return string([]byte{d.Field})
	case TypeField:
		return string([]byte{d.Repetition})
	case TypeFieldRepetition:
		return string([]byte{d.Component})
	case TypeComponent:
		return string([]byte{d.Subcomponent})
	}
	return ""
}

func setDelimiters(n *Node, d delim.Set) {
	n.Delimiter = DelimiterFor(n.Type, d)
	for _, c := range n.Children {
		setDelimiters(c, d)
	}
}

func reindex(nodes []*Node) []*Node {
	for i, n := range nodes {
		n.Index = i
	}
	return nodes
}
