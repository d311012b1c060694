// Package jsonify projects a parsed message onto plain JSON values,
// dropping positions and node types.
package jsonify

import (
	"bytes"
	"encoding/json"

	"github.com/dgallion1/hl7gest/internal/ast"
)

// Segment is the projection of one segment. Fields holds fields 1..n.
type Segment struct {
	Segment string `json:"segment"`
	Fields  []any  `json:"fields"`
}

// Group is the projection of a group.
type Group struct {
	Group    string `json:"group"`
	Children []any  `json:"children"`
}

// Project converts the children of root into Segment and Group values.
//
// Collapsing rules, applied bottom-up:
//   - a component with one subcomponent is its string; otherwise []string
//   - a repetition with one component is that component; otherwise []any
//   - a field with one repetition is that repetition; otherwise []any
func Project(root *ast.Root) []any {
	if root == nil {
		return []any{}
	}
	return projectChildren(root.Children)
}

// Marshal encodes the projection of root. Subcomponent separators are
// common in values, so HTML escaping is off and '&' stays readable.
func Marshal(root *ast.Root) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Project(root)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func projectChildren(nodes []*ast.Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		switch n.Type {
		case ast.TypeSegment:
			out = append(out, projectSegment(n))
		case ast.TypeGroup:
			out = append(out, Group{Group: n.Name, Children: projectChildren(n.Children)})
		}
	}
	return out
}

func projectSegment(n *ast.Node) Segment {
	s := Segment{Fields: []any{}}
	for _, c := range n.Children {
		if c.Type == ast.TypeSegmentHeader {
			s.Segment = c.Value
			continue
		}
		s.Fields = append(s.Fields, Field(c))
	}
	if s.Segment == "" {
		s.Segment = n.Name
	}
	return s
}

// Field projects a single field node.
func Field(n *ast.Node) any {
	if len(n.Children) == 1 {
		return repetition(n.Children[0])
	}
	reps := make([]any, 0, len(n.Children))
	for _, r := range n.Children {
		reps = append(reps, repetition(r))
	}
	return reps
}

func repetition(n *ast.Node) any {
	if len(n.Children) == 1 {
		return component(n.Children[0])
	}
	comps := make([]any, 0, len(n.Children))
	for _, c := range n.Children {
		comps = append(comps, component(c))
	}
	return comps
}

func component(n *ast.Node) any {
	if len(n.Children) == 1 {
		return n.Children[0].Value
	}
	subs := make([]string, 0, len(n.Children))
	for _, s := range n.Children {
		subs = append(subs, s.Value)
	}
	return subs
}
