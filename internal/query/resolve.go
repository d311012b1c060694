package query

import "github.com/dgallion1/hl7gest/internal/ast"

// visit is called for every segment the path's group and segment parts
// match, in document order. Returning false stops the traversal.
type visit func(seg *ast.Node) bool

// walkSegments searches children depth-first for segments named p.Segment
// inside the groups named by groups. Groups the path does not name are
// searched transparently. Group indices count matching groups under the
// same parent; index 0 matches every occurrence.
func walkSegments(children []*ast.Node, groups []GroupRef, code string, fn visit) bool {
	counts := make(map[string]int)
	for _, child := range children {
		switch child.Type {
		case ast.TypeSegment:
			if len(groups) == 0 && segmentCode(child) == code {
				if !fn(child) {
					return false
				}
			}
		case ast.TypeGroup:
			if len(groups) > 0 && child.Name == groups[0].Name {
				counts[child.Name]++
				want := groups[0].Index
				if want != 0 && counts[child.Name] != want {
					continue
				}
				if !walkSegments(child.Children, groups[1:], code, fn) {
					return false
				}
				continue
			}
			if !walkSegments(child.Children, groups, code, fn) {
				return false
			}
		}
	}
	return true
}

func segmentCode(seg *ast.Node) string {
	if len(seg.Children) == 0 || seg.Children[0].Type != ast.TypeSegmentHeader {
		return ""
	}
	return seg.Children[0].Value
}

// descend follows the numeric parts of p below seg. It returns the node
// reached and whether every part of the path was satisfied.
func descend(seg *ast.Node, p *Path) (*ast.Node, bool) {
	node := seg
	steps := [...]int{p.Field, p.Repetition, p.Component, p.Subcomponent}
	for level, n := range steps {
		if n == 0 {
			break
		}
		// Field N is Children[N]: the segment header occupies slot 0.
		i := n - 1
		if level == 0 {
			i = n
		}
		next := node.Child(i)
		if next == nil {
			return node, false
		}
		node = next
	}
	return node, true
}

// resolve drives the traversal shared by Select and SelectAll. With
// first set only the first matching segment is considered, even when the
// fields below it are missing.
func resolve(root *ast.Root, p *Path, o options, first bool) []*ast.Node {
	var out []*ast.Node
	walkSegments(root.Children, p.Groups, p.Segment, func(seg *ast.Node) bool {
		if node, ok := descend(seg, p); ok || o.partial {
			out = append(out, node)
		}
		return !first
	})
	return out
}
