package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/query"
)

// ErrInvalidSpec is returned when an extraction spec cannot be used.
var ErrInvalidSpec = errors.New("invalid extraction spec")

// MaxSpecs bounds the number of specs a single job may carry.
const MaxSpecs = 64

// Spec names a path whose values are pulled from every message.
type Spec struct {
	Name string `json:"name"`
	Path string `json:"path"`

	compiled *query.Path
}

// Record maps spec names to the decoded values found in one message.
// Names whose path matched nothing map to an empty slice.
type Record map[string][]string

// ParseSpec reads the "name=PATH" form used in form values and flags. A
// bare path is named after its slug.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	name, path, ok := strings.Cut(s, "=")
	if !ok {
		path = s
		name = Slugify(s)
	}
	spec := Spec{Name: strings.TrimSpace(name), Path: strings.TrimSpace(path)}
	if err := ValidateSpec(&spec); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// ValidateSpec checks and compiles a spec. The name is normalized with
// Slugify and must not be empty afterwards.
func ValidateSpec(s *Spec) error {
	if s == nil {
		return fmt.Errorf("%w: nil spec", ErrInvalidSpec)
	}
	s.Name = Slugify(s.Name)
	if s.Name == "" {
		return fmt.Errorf("%w: empty name for path %q", ErrInvalidSpec, s.Path)
	}
	p, err := query.Parse(s.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSpec, s.Name, err)
	}
	s.compiled = p
	return nil
}

// ValidateSpecs validates every spec and rejects duplicate names.
func ValidateSpecs(specs []Spec) error {
	if len(specs) > MaxSpecs {
		return fmt.Errorf("%w: %d specs exceeds limit %d", ErrInvalidSpec, len(specs), MaxSpecs)
	}
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		if err := ValidateSpec(&specs[i]); err != nil {
			return err
		}
		if seen[specs[i].Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidSpec, specs[i].Name)
		}
		seen[specs[i].Name] = true
	}
	return nil
}

// Apply runs every spec against root. Specs must have been validated.
// Each match contributes its scalar text; branching nodes are skipped.
func Apply(root *ast.Root, specs []Spec) Record {
	rec := make(Record, len(specs))
	for _, s := range specs {
		values := []string{}
		if s.compiled != nil {
			for _, n := range query.SelectAll(root, s.compiled) {
				if v, ok := n.Scalar(); ok {
					values = append(values, v)
				}
			}
		}
		rec[s.Name] = values
	}
	return rec
}

// First returns the first value recorded under name, or "".
func (r Record) First(name string) string {
	if v := r[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
	slugRepeat  = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a path-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugRepeat.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}
