package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/delim"
)

const adt = "MSH|^~\\&|SENDER|FAC|RECV|RFAC|20240101120000||ADT^A01|MSG0001|P|2.5\r" +
	"EVN|A01|20240101120000\r" +
	"PID|1||42^^^MRN~43^^^ALT||Doe^John^Q&Jr||19700101|M\r" +
	"NTE|1||Line one\\.br\\Line two \\F\\ piped"

func mustParse(t *testing.T, text string, opts ...Option) *ast.Root {
	t.Helper()
	root, err := Parse(text, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return root
}

func TestParse_SegmentsAndHeaders(t *testing.T) {
	root := mustParse(t, adt)
	if len(root.Children) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(root.Children))
	}
	want := []string{"MSH", "EVN", "PID", "NTE"}
	for i, seg := range root.Children {
		if seg.Type != ast.TypeSegment {
			t.Errorf("child %d: expected segment, got %s", i, seg.Type)
		}
		head := seg.Children[0]
		if head.Type != ast.TypeSegmentHeader || head.Value != want[i] {
			t.Errorf("child %d: expected header %q, got %s %q", i, want[i], head.Type, head.Value)
		}
		if seg.Index != i {
			t.Errorf("child %d: expected index %d, got %d", i, i, seg.Index)
		}
	}
	if root.Data.Delimiters != delim.Default() {
		t.Errorf("expected default delimiters in root data, got %+v", root.Data.Delimiters)
	}
}

func TestParse_MSHFieldNumbering(t *testing.T) {
	msh := mustParse(t, adt).Children[0]

	sep, _ := msh.Children[1].Scalar()
	if sep != "|" {
		t.Errorf("expected MSH-1 %q, got %q", "|", sep)
	}
	enc, _ := msh.Children[2].Scalar()
	if enc != `^~\&` {
		t.Errorf("expected MSH-2 %q, got %q", `^~\&`, enc)
	}
	typ := msh.Children[9].Children[0]
	if len(typ.Children) != 2 {
		t.Fatalf("expected MSH-9 to have 2 components, got %d", len(typ.Children))
	}
	if v := typ.Children[1].Children[0].Value; v != "A01" {
		t.Errorf("expected MSH-9.2 %q, got %q", "A01", v)
	}
	if v, _ := msh.Children[10].Scalar(); v != "MSG0001" {
		t.Errorf("expected MSH-10 %q, got %q", "MSG0001", v)
	}
}

func TestParse_FourLevelStructure(t *testing.T) {
	pid := mustParse(t, adt).Children[2]

	f3 := pid.Children[3]
	if len(f3.Children) != 2 {
		t.Fatalf("expected 2 repetitions, got %d", len(f3.Children))
	}
	if f3.Delimiter != "~" {
		t.Errorf("expected field delimiter ~, got %q", f3.Delimiter)
	}
	if got := f3.Children[1].Children[3].Children[0].Value; got != "ALT" {
		t.Errorf("expected %q, got %q", "ALT", got)
	}

	name := pid.Children[5].Children[0]
	subs := name.Children[2].Children
	if len(subs) != 2 || subs[0].Value != "Q" || subs[1].Value != "Jr" {
		t.Errorf("unexpected subcomponents %+v", subs)
	}
}

func TestParse_EmptyFieldIsPresent(t *testing.T) {
	pid := mustParse(t, "PID|1||42").Children[0]
	empty := pid.Children[2]
	if empty.Type != ast.TypeField {
		t.Fatalf("expected field, got %s", empty.Type)
	}
	if len(empty.Children) != 1 || len(empty.Children[0].Children) != 1 || len(empty.Children[0].Children[0].Children) != 1 {
		t.Fatal("expected one repetition, component and subcomponent")
	}
	leaf := empty.Children[0].Children[0].Children[0]
	if leaf.Type != ast.TypeSubcomponent || leaf.Value != "" {
		t.Errorf("expected empty subcomponent, got %s %q", leaf.Type, leaf.Value)
	}
	if leaf.Position.Start.Offset != leaf.Position.End.Offset {
		t.Errorf("expected zero-width span, got %+v", leaf.Position)
	}
}

func TestParse_StructuralCompleteness(t *testing.T) {
	inputs := []string{"", "x", "a~b", "a^b", "a&b", "a~b^c&d", "~", "^^", "&&&"}
	for _, in := range inputs {
		root := mustParse(t, "ZZZ|"+in)
		f := root.Children[0].Children[1]
		if len(f.Children) < 1 {
			t.Errorf("%q: field without repetitions", in)
		}
		for _, rep := range f.Children {
			if len(rep.Children) < 1 {
				t.Errorf("%q: repetition without components", in)
			}
			for _, comp := range rep.Children {
				if len(comp.Children) < 1 {
					t.Errorf("%q: component without subcomponents", in)
				}
			}
		}
	}
}

func TestParse_EscapesDecodedPositionsFromSource(t *testing.T) {
	root := mustParse(t, adt)
	nte := root.Children[3]
	leaf := nte.Children[3].Children[0].Children[0].Children[0]
	if leaf.Value != "Line one\rLine two | piped" {
		t.Errorf("unexpected decoded value %q", leaf.Value)
	}
	if got := leaf.Source(adt); got != `Line one\.br\Line two \F\ piped` {
		t.Errorf("expected position to cover source bytes, got %q", got)
	}
}

func TestParse_Positions(t *testing.T) {
	text := "MSH|^~\\&|A\rPID|1||42"
	root := mustParse(t, text)
	pid := root.Children[1]

	if pid.Position.Start.Line != 2 || pid.Position.Start.Column != 1 || pid.Position.Start.Offset != 11 {
		t.Errorf("unexpected PID start %+v", pid.Position.Start)
	}
	f3 := pid.Children[3]
	if f3.Source(text) != "42" {
		t.Errorf("expected field source %q, got %q", "42", f3.Source(text))
	}
	if f3.Position.Start.Column != 8 {
		t.Errorf("expected column 8, got %d", f3.Position.Start.Column)
	}
	msh1 := root.Children[0].Children[1]
	if msh1.Source(text) != "|" {
		t.Errorf("expected MSH-1 to cover the separator, got %q", msh1.Source(text))
	}
	if root.Position.End.Offset != len(text) {
		t.Errorf("expected root to end at %d, got %d", len(text), root.Position.End.Offset)
	}
}

func TestParse_PositionMonotonicity(t *testing.T) {
	root := mustParse(t, adt)
	var check func(parent *ast.Node)
	check = func(parent *ast.Node) {
		prev := -1
		for i, c := range parent.Children {
			if c.Index != i {
				t.Errorf("%s child %d has index %d", parent.Type, i, c.Index)
			}
			if c.Position == nil {
				t.Fatalf("%s child %d has no position", parent.Type, i)
			}
			if c.Position.Start.Offset < prev {
				t.Errorf("%s child %d starts at %d before previous %d", parent.Type, i, c.Position.Start.Offset, prev)
			}
			prev = c.Position.Start.Offset
			if c.Position.Start.Offset < parent.Position.Start.Offset || c.Position.End.Offset > parent.Position.End.Offset {
				t.Errorf("%s child %d span %+v exceeds parent %+v", parent.Type, i, c.Position, parent.Position)
			}
			check(c)
		}
	}
	check(&root.Node)
}

func TestParse_BlankLinesAdvanceLineNumbers(t *testing.T) {
	root := mustParse(t, "MSH|^~\\&\r\r  \rPID|1\r")
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(root.Children))
	}
	if line := root.Children[1].Position.Start.Line; line != 4 {
		t.Errorf("expected PID on line 4, got %d", line)
	}
	if root.Children[1].Index != 1 {
		t.Errorf("expected contiguous index 1, got %d", root.Children[1].Index)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	root := mustParse(t, "")
	if root.Type != ast.TypeRoot || len(root.Children) != 0 {
		t.Errorf("expected empty root, got %d children", len(root.Children))
	}
}

func TestParse_SegmentWithoutFields(t *testing.T) {
	root := mustParse(t, "ZXY")
	seg := root.Children[0]
	if len(seg.Children) != 1 || seg.Children[0].Value != "ZXY" {
		t.Errorf("expected only a header, got %d children", len(seg.Children))
	}
}

func TestParse_AutoDetectedDelimiters(t *testing.T) {
	text := "MSH#$*!@#APP\rPID#1##a$b*c@d!F!e"
	root := mustParse(t, text)
	pid := root.Children[1]
	f3 := pid.Children[3]
	if len(f3.Children) != 2 {
		t.Fatalf("expected 2 repetitions, got %d", len(f3.Children))
	}
	last := f3.Children[1].Children[0].Children
	if len(last) != 2 || last[1].Value != "d#e" {
		t.Errorf("unexpected subcomponents %+v", last)
	}
}

func TestParse_SegmentDelimiterOption(t *testing.T) {
	root := mustParse(t, "MSH|^~\\&\nPID|1", WithSegmentDelimiter("\n"))
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(root.Children))
	}
	if root.Delimiter != "\n" {
		t.Errorf("expected root delimiter LF, got %q", root.Delimiter)
	}
}

func TestParse_InvalidDelimiters(t *testing.T) {
	_, err := Parse("PID|1", WithDelimiters(delim.Set{Component: '|'}))
	if !errors.Is(err, ErrStructural) {
		t.Errorf("expected ErrStructural, got %v", err)
	}
}

func TestParse_RoundTripThroughSerializer(t *testing.T) {
	text := "MSH|^~\\&|SENDER|FAC|||20240101||ADT^A01|MSG0001|P|2.5\r" +
		"PID|1||42^^^MRN~43||Doe^John&Jr\r" +
		"NTE|1||a\\F\\b"
	root := mustParse(t, text)
	if got := ast.String(root); got != text {
		t.Errorf("expected\n%q\ngot\n%q", text, got)
	}
}

func TestParseReader(t *testing.T) {
	root, err := ParseReader(strings.NewReader("PID|1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Children) != 1 {
		t.Errorf("expected 1 segment, got %d", len(root.Children))
	}
}

func TestParse_Concurrent(t *testing.T) {
	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			root, err := Parse(adt)
			if err != nil {
				done <- err.Error()
				return
			}
			done <- ast.String(root)
		}()
	}
	first := <-done
	for i := 0; i < 7; i++ {
		if got := <-done; got != first {
			t.Errorf("concurrent parses disagree: %q vs %q", got, first)
		}
	}
}

func TestSegments(t *testing.T) {
	spans, err := Segments("A\r\rB", "\r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if !spans[1].Blank || spans[2].Line != 3 || spans[2].Start != 3 {
		t.Errorf("unexpected spans %+v", spans)
	}
	if _, err := Segments("A", ""); !errors.Is(err, ErrStructural) {
		t.Errorf("expected ErrStructural for empty delimiter, got %v", err)
	}
}
