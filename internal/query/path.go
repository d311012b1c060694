package query

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// GroupRef is one group step of a path. Index is 1-based; 0 means any
// occurrence.
type GroupRef struct {
	Name  string
	Index int
}

// Path is a compiled path expression:
//
//	GROUP[n]-...-SEG-FIELD[REP].COMPONENT.SUBCOMPONENT
//
// Numeric parts are 1-based; 0 means the part is absent.
type Path struct {
	Groups       []GroupRef
	Segment      string
	Field        int
	Repetition   int
	Component    int
	Subcomponent int
	Raw          string
}

// String returns the canonical form of the path.
func (p *Path) String() string {
	var b strings.Builder
	for _, g := range p.Groups {
		b.WriteString(g.Name)
		if g.Index > 0 {
			b.WriteString("[" + strconv.Itoa(g.Index) + "]")
		}
		b.WriteByte('-')
	}
	b.WriteString(p.Segment)
	if p.Field == 0 {
		return b.String()
	}
	b.WriteString("-" + strconv.Itoa(p.Field))
	if p.Repetition > 0 {
		b.WriteString("[" + strconv.Itoa(p.Repetition) + "]")
	}
	if p.Component > 0 {
		b.WriteString("." + strconv.Itoa(p.Component))
	}
	if p.Subcomponent > 0 {
		b.WriteString("." + strconv.Itoa(p.Subcomponent))
	}
	return b.String()
}

// Parse compiles a path string.
func Parse(raw string) (*Path, error) {
	if len(raw) > MaxPathLength {
		return nil, &ParseError{Path: raw, Pos: 0, Reason: ErrTooLong, Message: "path exceeds " + strconv.Itoa(MaxPathLength) + " bytes"}
	}
	if raw == "" {
		return nil, &ParseError{Path: raw, Pos: 0, Reason: ErrMalformed, Message: "empty path"}
	}
	first, _ := utf8.DecodeRuneInString(raw)
	last, size := utf8.DecodeLastRuneInString(raw)
	if unicode.IsSpace(first) {
		return nil, &ParseError{Path: raw, Pos: 0, Reason: ErrWhitespace, Message: "path starts with whitespace"}
	}
	if unicode.IsSpace(last) {
		return nil, &ParseError{Path: raw, Pos: len(raw) - size, Reason: ErrWhitespace, Message: "path ends with whitespace"}
	}

	p := &parser{src: raw}
	path, err := p.parse()
	if err != nil {
		return nil, err
	}
	path.Raw = raw
	return path, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) *Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(pos int, reason error, msg string) error {
	return &ParseError{Path: p.src, Pos: pos, Reason: reason, Message: msg}
}

func (p *parser) parse() (*Path, error) {
	path := &Path{}
	for {
		start := p.pos
		name, err := p.parseName()
		if err != nil {
			return nil, err
		}
		index, hasIndex, err := p.parseOptionalIndex()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.src) {
			return p.finishSegment(path, name, start, hasIndex)
		}
		if p.src[p.pos] != '-' {
			return nil, p.errorf(p.pos, ErrMalformed, "expected '-' or end of path")
		}
		p.pos++ // consume '-'

		if p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			if _, err := p.finishSegment(path, name, start, hasIndex); err != nil {
				return nil, err
			}
			if err := p.parseFieldSpec(path); err != nil {
				return nil, err
			}
			return path, nil
		}

		if !isGroupName(name) {
			return nil, p.errorf(start, ErrMalformed, "invalid group name "+strconv.Quote(name))
		}
		path.Groups = append(path.Groups, GroupRef{Name: name, Index: index})
	}
}

func (p *parser) finishSegment(path *Path, name string, start int, hasIndex bool) (*Path, error) {
	if hasIndex {
		return nil, p.errorf(start+len(name), ErrMalformed, "segments do not take an index")
	}
	if !isSegmentID(name) {
		return nil, p.errorf(start, ErrMalformed, "segment id must be 2-4 uppercase letters or digits, got "+strconv.Quote(name))
	}
	path.Segment = name
	return path, nil
}

// parseFieldSpec parses FIELD[REP].COMPONENT.SUBCOMPONENT up to the end.
func (p *parser) parseFieldSpec(path *Path) error {
	n, err := p.parseInt()
	if err != nil {
		return err
	}
	path.Field = n

	rep, hasRep, err := p.parseOptionalIndex()
	if err != nil {
		return err
	}
	path.Repetition = rep

	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		if !hasRep {
			return p.errorf(p.pos, ErrComponentWithoutRepetition, "write FIELD[REP].COMPONENT")
		}
		p.pos++
		if path.Component, err = p.parseInt(); err != nil {
			return err
		}
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		if path.Subcomponent, err = p.parseInt(); err != nil {
			return err
		}
	}
	if p.pos < len(p.src) {
		return p.errorf(p.pos, ErrMalformed, "unexpected trailing characters")
	}
	return nil
}

func (p *parser) parseName() (string, error) {
	start := p.pos
	for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf(p.pos, ErrMalformed, "expected segment or group name")
	}
	return p.src[start:p.pos], nil
}

// parseOptionalIndex parses "[n]" if present.
func (p *parser) parseOptionalIndex() (int, bool, error) {
	if p.pos >= len(p.src) || p.src[p.pos] != '[' {
		return 0, false, nil
	}
	p.pos++ // consume '['
	n, err := p.parseInt()
	if err != nil {
		return 0, false, err
	}
	if p.pos >= len(p.src) || p.src[p.pos] != ']' {
		return 0, false, p.errorf(p.pos, ErrMalformed, "expected ']'")
	}
	p.pos++
	return n, true, nil
}

// parseInt parses an unsigned decimal number that must be at least 1.
func (p *parser) parseInt() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return 0, p.errorf(start, ErrMalformed, "expected number")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, p.errorf(start, ErrMalformed, "invalid number")
	}
	if n < 1 {
		return 0, p.errorf(start, ErrNonPositive, "indices start at 1")
	}
	return n, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isNameByte(b byte) bool {
	return b == '_' || isDigit(b) || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isSegmentID(s string) bool {
	if len(s) < 2 || len(s) > 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) && (s[i] < 'A' || s[i] > 'Z') {
			return false
		}
	}
	return true
}

func isGroupName(s string) bool {
	if s == "" || isDigit(s[0]) || s[0] == '_' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return true
}
