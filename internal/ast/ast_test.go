package ast

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dgallion1/hl7gest/internal/delim"
)

func sampleRoot() *Root {
	d := delim.Default()
	return NewRoot(d,
		NewHeaderSegment("MSH", d,
			FieldOf("SENDER"),
			FieldOf("FAC"),
			NewField(),
			NewField(),
			FieldOf("20240101"),
			NewField(),
			FieldOf("ADT", "A01"),
			FieldOf("MSG0001"),
			FieldOf("P"),
			FieldOf("2.5"),
		),
		NewSegment("PID",
			FieldOf("1"),
			NewField(),
			NewField(
				NewRepetition(NewComponent(NewSubcomponent("42")), NewComponent(), NewComponent(), NewComponent(NewSubcomponent("MRN"))),
				NewRepetition(NewComponent(NewSubcomponent("43"))),
			),
			NewField(),
			NewField(NewRepetition(
				NewComponent(NewSubcomponent("Doe")),
				NewComponent(NewSubcomponent("John"), NewSubcomponent("Jr")),
			)),
		),
	)
}

func TestString_RoundTripFromConstructors(t *testing.T) {
	want := "MSH|^~\\&|SENDER|FAC|||20240101||ADT^A01|MSG0001|P|2.5\r" +
		"PID|1||42^^^MRN~43||Doe^John&Jr"
	if got := String(sampleRoot()); got != want {
		t.Errorf("expected\n%q\ngot\n%q", want, got)
	}
}

func TestString_EscapesValues(t *testing.T) {
	d := delim.Default()
	r := NewRoot(d, NewSegment("NTE", FieldOf("1"), NewField(), FieldOf("a|b^c")))
	want := `NTE|1||a\F\b\S\c`
	if got := String(r); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestString_FlattensGroups(t *testing.T) {
	d := delim.Default()
	r := NewRoot(d,
		NewSegment("PID", FieldOf("1")),
		NewGroup("ORDER",
			NewSegment("ORC", FieldOf("NW")),
			NewGroup("TIMING", NewSegment("TQ1", FieldOf("1"))),
		),
	)
	want := "PID|1\rORC|NW\rTQ1|1"
	if got := String(r); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestConstructors_IndicesAndDelimiters(t *testing.T) {
	r := sampleRoot()
	if r.Delimiter != "\r" {
		t.Errorf("expected root delimiter CR, got %q", r.Delimiter)
	}
	pid := r.Children[1]
	if pid.Index != 1 {
		t.Errorf("expected PID index 1, got %d", pid.Index)
	}
	for i, c := range pid.Children {
		if c.Index != i {
			t.Errorf("child %d has index %d", i, c.Index)
		}
	}
	if pid.Delimiter != "|" {
		t.Errorf("expected segment delimiter |, got %q", pid.Delimiter)
	}
	f3 := pid.Children[3]
	if f3.Delimiter != "~" || f3.Children[0].Delimiter != "^" || f3.Children[0].Children[0].Delimiter != "&" {
		t.Errorf("unexpected level delimiters: %q %q %q",
			f3.Delimiter, f3.Children[0].Delimiter, f3.Children[0].Children[0].Delimiter)
	}
}

func TestNewField_EmptyIsFullyPopulated(t *testing.T) {
	f := NewField()
	if len(f.Children) != 1 || len(f.Children[0].Children) != 1 || len(f.Children[0].Children[0].Children) != 1 {
		t.Fatal("expected one repetition, component and subcomponent")
	}
	v, ok := f.Scalar()
	if !ok || v != "" {
		t.Errorf("expected empty scalar, got %q (ok=%v)", v, ok)
	}
}

func TestScalar_Branching(t *testing.T) {
	f := FieldOf("a", "b")
	if _, ok := f.Scalar(); ok {
		t.Error("expected no scalar for a two-component field")
	}
	v, ok := FieldOf("only").Scalar()
	if !ok || v != "only" {
		t.Errorf("expected %q, got %q", "only", v)
	}
}

func TestMarshalJSON_EmptyLeafKeepsValue(t *testing.T) {
	data, err := json.Marshal(NewSubcomponent(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"value":""`) {
		t.Errorf("expected empty value in %s", data)
	}
}

func TestMarshalJSON_RootRoundTrip(t *testing.T) {
	r := sampleRoot()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"data":{"delimiters":{"field":"|"`) {
		t.Errorf("expected delimiters in root data: %s", data)
	}

	var back Root
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := String(&back); got != String(r) {
		t.Errorf("expected %q after JSON round trip, got %q", String(r), got)
	}
}

func TestSegments_DescendsIntoGroups(t *testing.T) {
	d := delim.Default()
	r := NewRoot(d,
		NewSegment("MSH"),
		NewGroup("PATIENT", NewSegment("PID"), NewGroup("VISIT", NewSegment("PV1"))),
		NewSegment("OBX"),
	)
	var codes []string
	for _, s := range r.Segments() {
		codes = append(codes, s.Name)
	}
	if strings.Join(codes, ",") != "MSH,PID,PV1,OBX" {
		t.Errorf("unexpected segment order: %v", codes)
	}
}

type countingVisitor struct {
	BaseVisitor
	segments, subs int
}

func (v *countingVisitor) Segment(*Node) bool { v.segments++; return true }
func (v *countingVisitor) Subcomponent(*Node) { v.subs++ }

func TestWalk_VisitsEveryVariant(t *testing.T) {
	v := &countingVisitor{}
	Walk(sampleRoot(), v)
	if v.segments != 2 {
		t.Errorf("expected 2 segments, got %d", v.segments)
	}
	// MSH has 12 single-leaf fields plus one extra component in MSH-9;
	// PID has 1+1+(4+1)+1+(1+2) leaves.
	if v.subs != 13+11 {
		t.Errorf("expected 24 subcomponents, got %d", v.subs)
	}
}

func TestWalk_SkipChildren(t *testing.T) {
	n := 0
	Walk(sampleRoot(), VisitorFunc(func(node *Node) bool {
		n++
		return node.Type != TypeSegment
	}))
	if n != 2 {
		t.Errorf("expected only the 2 segments to be visited, got %d", n)
	}
}
