// Package delim resolves the delimiter set used to split and escape an
// HL7v2 message.
package delim

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Standard HL7v2 delimiters.
const (
	DefaultField        = '|'
	DefaultComponent    = '^'
	DefaultRepetition   = '~'
	DefaultSubcomponent = '&'
	DefaultEscape       = '\\'
	DefaultSegment      = "\r"
)

// Set is the active delimiter set of a message. A zero byte (or empty
// Segment) means "not set" when a Set is used as an override.
type Set struct {
	Field        byte
	Component    byte
	Repetition   byte
	Subcomponent byte
	Escape       byte
	Segment      string
}

// Default returns the standard delimiter set.
func Default() Set {
	return Set{
		Field:        DefaultField,
		Component:    DefaultComponent,
		Repetition:   DefaultRepetition,
		Subcomponent: DefaultSubcomponent,
		Escape:       DefaultEscape,
		Segment:      DefaultSegment,
	}
}

// Merge returns s with every non-zero field of o applied on top.
func (s Set) Merge(o Set) Set {
	if o.Field != 0 {
		s.Field = o.Field
	}
	if o.Component != 0 {
		s.Component = o.Component
	}
	if o.Repetition != 0 {
		s.Repetition = o.Repetition
	}
	if o.Subcomponent != 0 {
		s.Subcomponent = o.Subcomponent
	}
	if o.Escape != 0 {
		s.Escape = o.Escape
	}
	if o.Segment != "" {
		s.Segment = o.Segment
	}
	return s
}

// Validate reports a set that cannot split a message unambiguously: a
// missing delimiter or two levels sharing the same character.
func (s Set) Validate() error {
	if s.Segment == "" {
		return fmt.Errorf("empty segment delimiter")
	}
	named := []struct {
		name string
		c    byte
	}{
		{"field", s.Field},
		{"component", s.Component},
		{"repetition", s.Repetition},
		{"subcomponent", s.Subcomponent},
		{"escape", s.Escape},
	}
	for i, a := range named {
		if a.c == 0 {
			return fmt.Errorf("missing %s delimiter", a.name)
		}
		for _, b := range named[i+1:] {
			if a.c == b.c {
				return fmt.Errorf("%s and %s delimiters are both %q", a.name, b.name, a.c)
			}
		}
	}
	return nil
}

// EncodingCharacters returns the MSH-2 form of the set: component,
// repetition, escape, subcomponent.
func (s Set) EncodingCharacters() string {
	return string([]byte{s.Component, s.Repetition, s.Escape, s.Subcomponent})
}

type setJSON struct {
	Field        string `json:"field"`
	Component    string `json:"component"`
	Repetition   string `json:"repetition"`
	Subcomponent string `json:"subcomponent"`
	Escape       string `json:"escape"`
	Segment      string `json:"segment"`
}

func byteString(b byte) string {
	if b == 0 {
		return ""
	}
	return string([]byte{b})
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

// MarshalJSON renders delimiters as one-character strings.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(setJSON{
		Field:        byteString(s.Field),
		Component:    byteString(s.Component),
		Repetition:   byteString(s.Repetition),
		Subcomponent: byteString(s.Subcomponent),
		Escape:       byteString(s.Escape),
		Segment:      s.Segment,
	})
}

// UnmarshalJSON accepts the MarshalJSON form.
func (s *Set) UnmarshalJSON(data []byte) error {
	var v setJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Set{
		Field:        firstByte(v.Field),
		Component:    firstByte(v.Component),
		Repetition:   firstByte(v.Repetition),
		Subcomponent: firstByte(v.Subcomponent),
		Escape:       firstByte(v.Escape),
		Segment:      v.Segment,
	}
	return nil
}

// headerCodes are the segments whose fourth character is the field
// separator followed by the encoding characters.
var headerCodes = []string{"MSH", "FHS", "BHS"}

// IsHeaderCode reports whether code is a delimiter-defining header segment.
func IsHeaderCode(code string) bool {
	for _, h := range headerCodes {
		if code == h {
			return true
		}
	}
	return false
}

// Resolve computes the active delimiter set for text. Overrides are applied
// on top of the defaults; when autoDetect is set the first segment's header
// (MSH, FHS or BHS) supplies the field separator and encoding characters for
// every delimiter the caller did not override. Only the first segment is
// inspected.
func Resolve(text string, overrides Set, autoDetect bool) Set {
	d := Default().Merge(overrides)
	if !autoDetect {
		return d
	}

	detected := detect(text, d.Segment)
	// Caller overrides take precedence over detected values.
	return d.Merge(detected).Merge(overrides)
}

// detect reads delimiters from the header of the first segment. Fields it
// cannot find are left zero.
func detect(text, segment string) Set {
	first := text
	if segment != "" {
		if i := strings.Index(text, segment); i >= 0 {
			first = text[:i]
		}
	}
	if len(first) < 4 || !IsHeaderCode(first[:3]) {
		return Set{}
	}

	var s Set
	s.Field = first[3]
	enc := first[4:]
	if i := strings.IndexByte(enc, s.Field); i >= 0 {
		enc = enc[:i]
	}

	// Positional order: component, repetition, escape, subcomponent.
	targets := []*byte{&s.Component, &s.Repetition, &s.Escape, &s.Subcomponent}
	for i := 0; i < len(targets) && i < len(enc); i++ {
		*targets[i] = enc[i]
	}
	return s
}

// ParseSegment maps the names used in configuration ("cr", "lf", "crlf")
// to a segment delimiter. "auto" maps to "", which callers resolve with
// Sniff. Anything else is returned as-is, with the usual backslash escapes
// for CR and LF expanded.
func ParseSegment(name string) string {
	switch strings.ToLower(name) {
	case "auto":
		return ""
	case "", "cr":
		return "\r"
	case "lf", "nl":
		return "\n"
	case "crlf":
		return "\r\n"
	}
	r := strings.NewReplacer(`\r`, "\r", `\n`, "\n")
	return r.Replace(name)
}

// Sniff guesses the line-ending convention of text for callers that accept
// files from arbitrary sources. The parser itself never sniffs.
func Sniff(text string) string {
	switch {
	case strings.Contains(text, "\r\n"):
		return "\r\n"
	case strings.Contains(text, "\r"):
		return "\r"
	case strings.Contains(text, "\n"):
		return "\n"
	}
	return DefaultSegment
}
