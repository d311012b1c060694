// Package query addresses nodes of a parsed HL7v2 tree with compact path
// strings such as "PID-5[1].1.1" or "ORDER[2]-TIMING-TQ1".
package query

import "github.com/dgallion1/hl7gest/internal/ast"

// Result is the outcome of resolving a path. Node is nil when Found is
// false.
type Result struct {
	Found bool      `json:"found"`
	Node  *ast.Node `json:"node"`
}

type options struct {
	partial bool
}

// Option configures resolution.
type Option func(*options)

// AllowPartialMatch makes a path whose segment exists but whose deeper
// parts do not resolve to the deepest node reached, with Found set.
func AllowPartialMatch() Option {
	return func(o *options) { o.partial = true }
}

// WithPartialMatch is AllowPartialMatch with an explicit switch, for
// callers that read the setting from a request.
func WithPartialMatch(on bool) Option {
	return func(o *options) { o.partial = on }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Select resolves a compiled path against root. The first segment in
// document order that matches the path's group and segment parts wins.
func Select(root *ast.Root, p *Path, opts ...Option) Result {
	if root == nil || p == nil {
		return Result{}
	}
	nodes := resolve(root, p, buildOptions(opts), true)
	if len(nodes) == 0 {
		return Result{}
	}
	return Result{Found: true, Node: nodes[0]}
}

// SelectAll returns every node the path matches, in document order.
// Omitted group indices and repeated segments act as wildcards.
func SelectAll(root *ast.Root, p *Path, opts ...Option) []*ast.Node {
	if root == nil || p == nil {
		return nil
	}
	return resolve(root, p, buildOptions(opts), false)
}

// Query parses path and resolves it against root.
func Query(root *ast.Root, path string, opts ...Option) (Result, error) {
	p, err := Parse(path)
	if err != nil {
		return Result{}, err
	}
	return Select(root, p, opts...), nil
}

// QueryAll parses path and returns every match.
func QueryAll(root *ast.Root, path string, opts ...Option) ([]*ast.Node, error) {
	p, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return SelectAll(root, p, opts...), nil
}

// Exists reports whether path resolves to a node.
func Exists(root *ast.Root, path string) (bool, error) {
	r, err := Query(root, path)
	if err != nil {
		return false, err
	}
	return r.Found, nil
}

// Value returns the decoded text at path. ok is false unless the path
// resolves all the way to a subcomponent.
func Value(root *ast.Root, path string) (value string, ok bool, err error) {
	r, err := Query(root, path)
	if err != nil {
		return "", false, err
	}
	if !r.Found || r.Node.Type != ast.TypeSubcomponent {
		return "", false, nil
	}
	return r.Node.Value, true, nil
}

// Values returns the decoded text of every subcomponent path matches.
func Values(root *ast.Root, path string) ([]string, error) {
	nodes, err := QueryAll(root, path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range nodes {
		if n.Type == ast.TypeSubcomponent {
			out = append(out, n.Value)
		}
	}
	return out, nil
}

// Text is a lenient accessor for consumers that want a readable string
// for whatever the path addresses: subcomponents give their value, single
// chains give their scalar, and anything else gives "".
func Text(root *ast.Root, p *Path) string {
	r := Select(root, p)
	if !r.Found {
		return ""
	}
	if s, ok := r.Node.Scalar(); ok {
		return s
	}
	return ""
}
