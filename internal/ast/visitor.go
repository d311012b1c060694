package ast

// Visitor receives one call per node variant during Walk. Methods on
// container nodes return false to skip that node's children.
type Visitor interface {
	Group(n *Node) bool
	Segment(n *Node) bool
	SegmentHeader(n *Node)
	Field(n *Node) bool
	FieldRepetition(n *Node) bool
	Component(n *Node) bool
	Subcomponent(n *Node)
}

// BaseVisitor visits everything and does nothing. Embed it to override only
// the variants of interest.
type BaseVisitor struct{}

func (BaseVisitor) Group(*Node) bool           { return true }
func (BaseVisitor) Segment(*Node) bool         { return true }
func (BaseVisitor) SegmentHeader(*Node)        {}
func (BaseVisitor) Field(*Node) bool           { return true }
func (BaseVisitor) FieldRepetition(*Node) bool { return true }
func (BaseVisitor) Component(*Node) bool       { return true }
func (BaseVisitor) Subcomponent(*Node)         {}

// Walk visits every node below r in document order.
func Walk(r *Root, v Visitor) {
	for _, c := range r.Children {
		WalkNode(c, v)
	}
}

// WalkNode visits n and its descendants in document order.
func WalkNode(n *Node, v Visitor) {
	descend := false
	switch n.Type {
	case TypeRoot:
		descend = true
	case TypeGroup:
		descend = v.Group(n)
	case TypeSegment:
		descend = v.Segment(n)
	case TypeSegmentHeader:
		v.SegmentHeader(n)
	case TypeField:
		descend = v.Field(n)
	case TypeFieldRepetition:
		descend = v.FieldRepetition(n)
	case TypeComponent:
		descend = v.Component(n)
	case TypeSubcomponent:
		v.Subcomponent(n)
	}
	if !descend {
		return
	}
	for _, c := range n.Children {
		WalkNode(c, v)
	}
}

// VisitorFunc adapts a function to Visitor; it is called for every node and
// its result decides whether to descend.
type VisitorFunc func(n *Node) bool

func (f VisitorFunc) Group(n *Node) bool           { return f(n) }
func (f VisitorFunc) Segment(n *Node) bool         { return f(n) }
func (f VisitorFunc) SegmentHeader(n *Node)        { f(n) }
func (f VisitorFunc) Field(n *Node) bool           { return f(n) }
func (f VisitorFunc) FieldRepetition(n *Node) bool { return f(n) }
func (f VisitorFunc) Component(n *Node) bool       { return f(n) }
func (f VisitorFunc) Subcomponent(n *Node)         { f(n) }
