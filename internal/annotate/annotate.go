// Package annotate derives message-level metadata from a parsed tree.
package annotate

import (
	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/query"
)

// Message is the header metadata of a message, read from MSH.
type Message struct {
	Code                 string         `json:"code,omitempty"`
	Trigger              string         `json:"trigger,omitempty"`
	Structure            string         `json:"structure,omitempty"`
	ControlID            string         `json:"control_id,omitempty"`
	ProcessingID         string         `json:"processing_id,omitempty"`
	Version              string         `json:"version,omitempty"`
	Timestamp            string         `json:"timestamp,omitempty"`
	SendingApplication   string         `json:"sending_application,omitempty"`
	SendingFacility      string         `json:"sending_facility,omitempty"`
	ReceivingApplication string         `json:"receiving_application,omitempty"`
	ReceivingFacility    string         `json:"receiving_facility,omitempty"`
	SegmentCounts        map[string]int `json:"segment_counts"`
}

// Type returns the message type in "CODE^TRIGGER" form, or just the code
// when the trigger is absent.
func (m Message) Type() string {
	if m.Trigger == "" {
		return m.Code
	}
	return m.Code + "^" + m.Trigger
}

// Annotated pairs a tree with the metadata derived from it. The tree is
// never modified.
type Annotated struct {
	Root    *ast.Root `json:"-"`
	Message Message   `json:"message"`
}

var (
	pathCode         = query.MustParse("MSH-9[1].1.1")
	pathTrigger      = query.MustParse("MSH-9[1].2.1")
	pathStructure    = query.MustParse("MSH-9[1].3.1")
	pathControlID    = query.MustParse("MSH-10[1].1.1")
	pathProcessingID = query.MustParse("MSH-11[1].1.1")
	pathVersion      = query.MustParse("MSH-12[1].1.1")
	pathTimestamp    = query.MustParse("MSH-7[1].1.1")
	pathSendingApp   = query.MustParse("MSH-3[1].1.1")
	pathSendingFac   = query.MustParse("MSH-4[1].1.1")
	pathReceivingApp = query.MustParse("MSH-5[1].1.1")
	pathReceivingFac = query.MustParse("MSH-6[1].1.1")
)

// Annotate reads the header of root. A message without MSH yields empty
// header fields and only segment counts.
func Annotate(root *ast.Root) *Annotated {
	value := func(p *query.Path) string {
		r := query.Select(root, p)
		if !r.Found || r.Node.Type != ast.TypeSubcomponent {
			return ""
		}
		return r.Node.Value
	}

	m := Message{
		Code:                 value(pathCode),
		Trigger:              value(pathTrigger),
		Structure:            value(pathStructure),
		ControlID:            value(pathControlID),
		ProcessingID:         value(pathProcessingID),
		Version:              value(pathVersion),
		Timestamp:            value(pathTimestamp),
		SendingApplication:   value(pathSendingApp),
		SendingFacility:      value(pathSendingFac),
		ReceivingApplication: value(pathReceivingApp),
		ReceivingFacility:    value(pathReceivingFac),
		SegmentCounts:        map[string]int{},
	}
	if root != nil {
		for _, seg := range root.Segments() {
			m.SegmentCounts[seg.Name]++
		}
	}
	return &Annotated{Root: root, Message: m}
}
