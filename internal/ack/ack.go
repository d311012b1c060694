// Package ack builds acknowledgment messages for parsed HL7v2 messages.
package ack

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgallion1/hl7gest/internal/annotate"
	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/delim"
)

// Code is an acknowledgment code (MSA-1).
type Code string

const (
	ApplicationAccept  Code = "AA"
	ApplicationError   Code = "AE"
	ApplicationReject  Code = "AR"
	CommitAccept       Code = "CA"
	CommitError        Code = "CE"
	CommitReject       Code = "CR"
	defaultVersion          = "2.5"
	defaultProcessing       = "P"
	timestampLayout         = "20060102150405"
	internalErrorCode       = "207^Application internal error^HL70357"
	unsupportedTypeCode     = "200^Unsupported message type^HL70357"
)

// Codes lists the valid acknowledgment codes.
var Codes = []Code{ApplicationAccept, ApplicationError, ApplicationReject, CommitAccept, CommitError, CommitReject}

// ErrInvalidCode is returned for an unknown acknowledgment code.
var ErrInvalidCode = errors.New("invalid acknowledgment code")

// ParseCode validates s as an acknowledgment code. Lowercase is accepted.
func ParseCode(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Codes {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCode, s)
}

// IsError reports whether the code signals an error or a rejection.
func (c Code) IsError() bool {
	return c != ApplicationAccept && c != CommitAccept
}

// Generator builds acknowledgments. Control ids come from a counter owned
// by the generator, so one Generator per process gives unique ids.
type Generator struct {
	// Prefix is prepended to the counter in MSH-10. Defaults to "ACK".
	Prefix string
	// Now stamps MSH-7. Defaults to time.Now.
	Now func() time.Time

	counter atomic.Uint64
}

// NewGenerator returns a Generator with default settings.
func NewGenerator() *Generator {
	return &Generator{Prefix: "ACK", Now: time.Now}
}

// NextControlID returns the next control id.
func (g *Generator) NextControlID() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "ACK"
	}
	return prefix + strconv.FormatUint(g.counter.Add(1), 10)
}

// Build returns the acknowledgment of msg. Sending and receiving
// application and facility are swapped, MSH-11 and MSH-12 are copied, and
// MSA-2 echoes the original control id. For error codes with text an ERR
// segment carries the text.
func (g *Generator) Build(msg *ast.Root, code Code, text string) (*ast.Root, error) {
	if _, err := ParseCode(string(code)); err != nil {
		return nil, err
	}

	d := delim.Default()
	if msg != nil && msg.Data.Delimiters.Validate() == nil {
		d = msg.Data.Delimiters
	}
	orig := annotate.Annotate(msg).Message

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	typ := []string{"ACK"}
	if orig.Trigger != "" {
		typ = append(typ, orig.Trigger, "ACK")
	}

	msh := ast.NewHeaderSegment("MSH", d,
		ast.FieldOf(orig.ReceivingApplication),
		ast.FieldOf(orig.ReceivingFacility),
		ast.FieldOf(orig.SendingApplication),
		ast.FieldOf(orig.SendingFacility),
		ast.FieldOf(now().Format(timestampLayout)),
		ast.NewField(),
		ast.FieldOf(typ...),
		ast.FieldOf(g.NextControlID()),
		ast.FieldOf(orDefault(orig.ProcessingID, defaultProcessing)),
		ast.FieldOf(orDefault(orig.Version, defaultVersion)),
	)

	msaFields := []*ast.Node{ast.FieldOf(string(code)), ast.FieldOf(orig.ControlID)}
	if text != "" {
		msaFields = append(msaFields, ast.FieldOf(text))
	}
	segments := []*ast.Node{msh, ast.NewSegment("MSA", msaFields...)}

	if code.IsError() && text != "" {
		errCode := internalErrorCode
		if code == ApplicationReject || code == CommitReject {
			errCode = unsupportedTypeCode
		}
		segments = append(segments, ast.NewSegment("ERR",
			ast.NewField(),
			ast.NewField(),
			fieldFromComponents(errCode),
			ast.FieldOf("E"),
			ast.NewField(),
			ast.NewField(),
			ast.NewField(),
			ast.FieldOf(text),
		))
	}
	return ast.NewRoot(d, segments...), nil
}

// fieldFromComponents builds a field from a "^"-joined literal.
func fieldFromComponents(s string) *ast.Node {
	return ast.FieldOf(strings.Split(s, "^")...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
