package ack

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/parser"
	"github.com/dgallion1/hl7gest/internal/query"
)

const oru = "MSH|^~\\&|LAB|HOSP|EHR|CLINIC|20240101120000||ORU^R01|CTRL42|T|2.5.1\rPID|1"

func fixedGenerator() *Generator {
	g := NewGenerator()
	g.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return g
}

func TestBuild_Accept(t *testing.T) {
	msg, err := parser.Parse(oru)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := fixedGenerator().Build(msg, ApplicationAccept, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "MSH|^~\\&|EHR|CLINIC|LAB|HOSP|20250102030405||ACK^R01^ACK|ACK1|T|2.5.1\rMSA|AA|CTRL42"
	if got := ast.String(out); got != want {
		t.Errorf("expected\n%q\ngot\n%q", want, got)
	}
}

func TestBuild_ErrorWithText(t *testing.T) {
	msg, err := parser.Parse(oru)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := fixedGenerator().Build(msg, ApplicationError, "bad|value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	segs := out.Segments()
	if len(segs) != 3 || segs[2].Name != "ERR" {
		t.Fatalf("expected MSH, MSA, ERR; got %d segments", len(segs))
	}

	// The serialized ACK must parse back to the same values.
	back, err := parser.Parse(ast.String(out))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := map[string]string{
		"MSA-1[1].1.1": "AE",
		"MSA-3[1].1.1": "bad|value",
		"ERR-3[1].1.1": "207",
		"ERR-4[1].1.1": "E",
		"ERR-8[1].1.1": "bad|value",
	}
	for path, want := range checks {
		got, ok, err := query.Value(back, path)
		if err != nil || !ok || got != want {
			t.Errorf("%s: expected %q, got %q (%v, %v)", path, want, got, ok, err)
		}
	}
}

func TestBuild_RejectCode(t *testing.T) {
	out, err := fixedGenerator().Build(nil, ApplicationReject, "unknown type")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _, _ := query.Value(out, "ERR-3[1].1.1"); v != "200" {
		t.Errorf("expected reject error code 200, got %q", v)
	}
	if v, _, _ := query.Value(out, "MSH-12[1].1.1"); v != "2.5" {
		t.Errorf("expected default version, got %q", v)
	}
	if v, _, _ := query.Value(out, "MSH-9[1].1.1"); v != "ACK" {
		t.Errorf("expected ACK type, got %q", v)
	}
}

func TestBuild_InvalidCode(t *testing.T) {
	if _, err := NewGenerator().Build(nil, Code("ZZ"), ""); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
}

func TestParseCode(t *testing.T) {
	if c, err := ParseCode(" ae "); err != nil || c != ApplicationError {
		t.Errorf("expected AE, got %q (%v)", c, err)
	}
	if _, err := ParseCode("OK"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
	if ApplicationAccept.IsError() || CommitAccept.IsError() || !CommitReject.IsError() {
		t.Error("unexpected IsError results")
	}
}

func TestNextControlID_UniqueUnderConcurrency(t *testing.T) {
	g := NewGenerator()
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.NextControlID()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Errorf("expected 50 unique ids, got %d", len(seen))
	}
	if !seen["ACK1"] || !seen["ACK50"] {
		t.Error("expected ids ACK1..ACK50")
	}
}
