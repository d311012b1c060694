// Package ast defines the tree produced by the HL7v2 parser.
//
// Every message parses into a Root whose children are Segment (and, for
// schema-aware callers, Group) nodes. Each Segment starts with a
// SegmentHeader leaf followed by Field nodes; every Field is always fully
// populated down to Subcomponent leaves:
//
//	Field -> FieldRepetition -> Component -> Subcomponent
//
// A level whose delimiter does not occur in the source still has exactly one
// child. Positions always describe source bytes, never decoded text.
package ast

import (
	"encoding/json"

	"github.com/dgallion1/hl7gest/internal/delim"
)

// NodeType discriminates the variants of Node.
type NodeType string

const (
	TypeRoot            NodeType = "root"
	TypeGroup           NodeType = "group"
	TypeSegment         NodeType = "segment"
	TypeSegmentHeader   NodeType = "segment-header"
	TypeField           NodeType = "field"
	TypeFieldRepetition NodeType = "field-repetition"
	TypeComponent       NodeType = "component"
	TypeSubcomponent    NodeType = "subcomponent"
)

// IsLeaf reports whether nodes of this type carry a Value instead of children.
func (t NodeType) IsLeaf() bool {
	return t == TypeSegmentHeader || t == TypeSubcomponent
}

// Point is a location in the source text.
type Point struct {
	Line   int `json:"line"`   // 1-based
	Column int `json:"column"` // 1-based
	Offset int `json:"offset"` // 0-based byte offset
}

// Position is the source span of a node. End.Offset is exclusive.
type Position struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Node is one element of the tree.
type Node struct {
	Type      NodeType
	Name      string // group name, or segment code for segments
	Index     int    // position among siblings, 0-based
	Value     string // leaf text (segment-header, subcomponent)
	Delimiter string // separator between this node's children
	Children  []*Node
	Position  *Position
}

// Data is the side channel attached to a Root by the parser.
type Data struct {
	Delimiters delim.Set `json:"delimiters"`
}

// Root is the top of a parsed message.
type Root struct {
	Node
	Data Data
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Segments returns the Segment nodes of the root in document order,
// descending into groups.
func (r *Root) Segments() []*Node {
	var out []*Node
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			switch n.Type {
			case TypeSegment:
				out = append(out, n)
			case TypeGroup:
				walk(n.Children)
			}
		}
	}
	walk(r.Children)
	return out
}

// Scalar follows a chain of single children down to a leaf and returns its
// value. It reports false when the node branches or has no leaf.
func (n *Node) Scalar() (string, bool) {
	for cur := n; cur != nil; {
		if cur.Type.IsLeaf() {
			return cur.Value, true
		}
		if len(cur.Children) != 1 {
			return "", false
		}
		cur = cur.Children[0]
	}
	return "", false
}

type nodeJSON struct {
	Type      NodeType  `json:"type"`
	Name      string    `json:"name,omitempty"`
	Index     int       `json:"index"`
	Value     *string   `json:"value,omitempty"`
	Delimiter string    `json:"delimiter,omitempty"`
	Children  []*Node   `json:"children,omitempty"`
	Position  *Position `json:"position,omitempty"`
	Data      *Data     `json:"data,omitempty"`
}

func (n *Node) toJSON() nodeJSON {
	v := nodeJSON{
		Type:      n.Type,
		Name:      n.Name,
		Index:     n.Index,
		Delimiter: n.Delimiter,
		Children:  n.Children,
		Position:  n.Position,
	}
	if n.Type.IsLeaf() {
		val := n.Value
		v.Value = &val
	}
	return v
}

// MarshalJSON emits value for every leaf, including empty ones, since an
// empty field is present rather than missing.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.toJSON())
}

// MarshalJSON adds the data side channel to the root record.
func (r *Root) MarshalJSON() ([]byte, error) {
	v := r.Node.toJSON()
	v.Data = &r.Data
	return json.Marshal(v)
}

// UnmarshalJSON restores a node from its MarshalJSON form.
func (n *Node) UnmarshalJSON(data []byte) error {
	var v nodeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Node{
		Type:      v.Type,
		Name:      v.Name,
		Index:     v.Index,
		Delimiter: v.Delimiter,
		Children:  v.Children,
		Position:  v.Position,
	}
	if v.Value != nil {
		n.Value = *v.Value
	}
	return nil
}

// UnmarshalJSON restores a root and its data side channel.
func (r *Root) UnmarshalJSON(data []byte) error {
	if err := r.Node.UnmarshalJSON(data); err != nil {
		return err
	}
	var v struct {
		Data *Data `json:"data"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Data != nil {
		r.Data = *v.Data
	}
	return nil
}
