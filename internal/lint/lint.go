// Package lint checks parsed messages against path-addressed rules loaded
// from YAML.
package lint

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/query"
)

// ErrInvalidRule is returned when a rule file cannot be compiled.
var ErrInvalidRule = errors.New("invalid lint rule")

//go:embed builtin.yaml
var builtinRules []byte

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule is one check. Path selects the values to check; every match is
// checked on its own.
type Rule struct {
	ID        string   `yaml:"id" json:"id"`
	Path      string   `yaml:"path" json:"path"`
	Severity  Severity `yaml:"severity" json:"severity"`
	Required  bool     `yaml:"required" json:"required,omitempty"`
	OneOf     []string `yaml:"one_of" json:"one_of,omitempty"`
	Pattern   string   `yaml:"pattern" json:"pattern,omitempty"`
	MaxLength int      `yaml:"max_length" json:"max_length,omitempty"`
	Message   string   `yaml:"message" json:"message,omitempty"`

	path *query.Path
	re   *regexp.Regexp
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Diagnostic is one rule violation.
type Diagnostic struct {
	RuleID   string        `json:"rule_id"`
	Path     string        `json:"path"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Value    string        `json:"value,omitempty"`
	Position *ast.Position `json:"position,omitempty"`
}

// Linter holds a compiled rule set. It is safe for concurrent use.
type Linter struct {
	rules []Rule
}

// New compiles rules. Every path is parsed up front so that a bad rule
// fails at load time rather than on the first message.
func New(rules []Rule) (*Linter, error) {
	seen := make(map[string]bool, len(rules))
	compiled := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: rule %d has no id", ErrInvalidRule, i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true

		switch r.Severity {
		case "":
			r.Severity = SeverityError
		case SeverityError, SeverityWarning, SeverityInfo:
		default:
			return nil, fmt.Errorf("%w: rule %q: unknown severity %q", ErrInvalidRule, r.ID, r.Severity)
		}

		p, err := query.Parse(r.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %w", ErrInvalidRule, r.ID, err)
		}
		r.path = p

		if r.Pattern != "" {
			re, err := regexp.Compile(`^(?:` + r.Pattern + `)$`)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %q: %w", ErrInvalidRule, r.ID, err)
			}
			r.re = re
		}
		if r.MaxLength < 0 {
			return nil, fmt.Errorf("%w: rule %q: negative max_length", ErrInvalidRule, r.ID)
		}
		compiled = append(compiled, r)
	}
	return &Linter{rules: compiled}, nil
}

// Load reads a YAML rule file of the form {rules: [...]}.
func Load(r io.Reader) (*Linter, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	return New(f.Rules)
}

// LoadFile is Load for a path on disk.
func LoadFile(path string) (*Linter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Builtin returns the header rules shipped with the binary.
func Builtin() *Linter {
	var f ruleFile
	if err := yaml.Unmarshal(builtinRules, &f); err != nil {
		panic(fmt.Sprintf("lint: builtin rules: %v", err))
	}
	l, err := New(f.Rules)
	if err != nil {
		panic(fmt.Sprintf("lint: builtin rules: %v", err))
	}
	return l
}

// Rules returns a copy of the compiled rules.
func (l *Linter) Rules() []Rule {
	return slices.Clone(l.rules)
}

// Run applies every rule to root and returns the violations in rule order,
// then document order.
func (l *Linter) Run(root *ast.Root) []Diagnostic {
	var out []Diagnostic
	for i := range l.rules {
		out = append(out, l.rules[i].check(root)...)
	}
	return out
}

func (r *Rule) check(root *ast.Root) []Diagnostic {
	nodes := query.SelectAll(root, r.path)
	if len(nodes) == 0 {
		if !r.Required {
			return nil
		}
		d := r.diagnostic("missing", "", nil)
		// Point at the closest existing ancestor, if any.
		if res := query.Select(root, r.path, query.AllowPartialMatch()); res.Found {
			d.Position = res.Node.Position
		}
		return []Diagnostic{d}
	}

	var out []Diagnostic
	for _, n := range nodes {
		value, ok := n.Scalar()
		if !ok {
			continue
		}
		if value == "" {
			if r.Required {
				out = append(out, r.diagnostic("empty", value, n.Position))
			}
			continue
		}
		if len(r.OneOf) > 0 && !slices.Contains(r.OneOf, value) {
			out = append(out, r.diagnostic(fmt.Sprintf("value %q not in %v", value, r.OneOf), value, n.Position))
		}
		if r.re != nil && !r.re.MatchString(value) {
			out = append(out, r.diagnostic(fmt.Sprintf("value %q does not match %s", value, r.Pattern), value, n.Position))
		}
		if r.MaxLength > 0 && utf8.RuneCountInString(value) > r.MaxLength {
			out = append(out, r.diagnostic(fmt.Sprintf("value longer than %d characters", r.MaxLength), value, n.Position))
		}
	}
	return out
}

func (r *Rule) diagnostic(detail, value string, pos *ast.Position) Diagnostic {
	msg := detail
	if r.Message != "" {
		msg = r.Message + ": " + detail
	}
	return Diagnostic{
		RuleID:   r.ID,
		Path:     r.Path,
		Severity: r.Severity,
		Message:  msg,
		Value:    value,
		Position: pos,
	}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count tallies diagnostics by severity.
func Count(diags []Diagnostic) map[Severity]int {
	out := make(map[Severity]int)
	for _, d := range diags {
		out[d.Severity]++
	}
	return out
}
