// Package ledger holds the wire-level types shared by every component that
// talks to the ledger node: block references, events and their phases, call
// descriptions, and module error references. Decoding is deliberately
// tolerant of the node's historical field-naming drift (camelCase and
// snake_case keys for the same field), since different node versions emit
// different conventions.
package ledger

import (
	"encoding/json"
	"fmt"
)

// BlockRef identifies one block by hash and height.
type BlockRef struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// IsZero reports whether the reference is unset.
func (b BlockRef) IsZero() bool {
	return b.Hash == "" && b.Height == 0
}

// PhaseKind distinguishes how an event was caused within a block.
type PhaseKind int

const (
	// PhaseApplyExtrinsic marks events caused by the extrinsic at a specific
	// index within the block.
	PhaseApplyExtrinsic PhaseKind = iota

	// PhaseInitialization marks events emitted automatically while the block
	// was being opened (inherents, unsigned system transactions).
	PhaseInitialization

	// PhaseFinalization marks events emitted automatically while the block
	// was being sealed.
	PhaseFinalization
)

// Phase describes the origin of one event inside a block. ExtrinsicIndex is
// meaningful only when Kind is PhaseApplyExtrinsic.
type Phase struct {
	Kind           PhaseKind
	ExtrinsicIndex uint32
}

// IsExtrinsic reports whether the phase attributes the event to a signed
// extrinsic rather than to an automatic block stage.
func (p Phase) IsExtrinsic() bool {
	return p.Kind == PhaseApplyExtrinsic
}

// UnmarshalJSON accepts every phase encoding observed in the wild:
//
//	{"applyExtrinsic": 2}
//	{"apply_extrinsic": 2}
//	"Initialization" / "Finalization"
func (p *Phase) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "Initialization":
			*p = Phase{Kind: PhaseInitialization}
			return nil
		case "Finalization":
			*p = Phase{Kind: PhaseFinalization}
			return nil
		default:
			return fmt.Errorf("unknown phase tag %q", tag)
		}
	}

	var variant map[string]uint32
	if err := json.Unmarshal(data, &variant); err != nil {
		return fmt.Errorf("invalid phase encoding: %w", err)
	}

	for _, key := range []string{"applyExtrinsic", "apply_extrinsic"} {
		if idx, ok := variant[key]; ok {
			*p = Phase{Kind: PhaseApplyExtrinsic, ExtrinsicIndex: idx}
			return nil
		}
	}

	return fmt.Errorf("unknown phase encoding %s", data)
}

// MarshalJSON renders the phase in the modern camelCase convention.
func (p Phase) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PhaseApplyExtrinsic:
		return json.Marshal(map[string]uint32{"applyExtrinsic": p.ExtrinsicIndex})
	case PhaseInitialization:
		return json.Marshal("Initialization")
	default:
		return json.Marshal("Finalization")
	}
}

// Event is one entry of a block's event log: which phase caused it, which
// ledger module emitted it, the event name, and the raw payload fields.
type Event struct {
	Phase   Phase
	Module  string
	Name    string
	Payload map[string]json.RawMessage
}

// eventWire mirrors the node's event encoding across naming conventions.
// The first non-empty alternative wins, matching the resolution order used
// everywhere else in this client (camelCase, then snake_case).
type eventWire struct {
	Phase      Phase                      `json:"phase"`
	Module     string                     `json:"moduleName"`
	ModuleAlt  string                     `json:"module_name"`
	Name       string                     `json:"eventName"`
	NameAlt    string                     `json:"event_name"`
	Payload    map[string]json.RawMessage `json:"payload"`
	PayloadAlt map[string]json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes an event, collapsing the naming conventions.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	e.Phase = w.Phase
	e.Module = firstNonEmpty(w.Module, w.ModuleAlt)
	e.Name = firstNonEmpty(w.Name, w.NameAlt)
	e.Payload = w.Payload
	if e.Payload == nil {
		e.Payload = w.PayloadAlt
	}

	return nil
}

// MarshalJSON renders the event in the modern camelCase convention.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"phase":      e.Phase,
		"moduleName": e.Module,
		"eventName":  e.Name,
		"payload":    e.Payload,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Call describes one dispatchable operation to be submitted: the target
// module, the function within it, and its named arguments.
type Call struct {
	Module   string         `json:"module"   validate:"required"`
	Function string         `json:"function" validate:"required"`
	Args     map[string]any `json:"args"`
}

// ModuleError references a module-level execution failure by the pair of
// indices the node reports. The indices are only meaningful against the
// metadata of the node version that produced them.
type ModuleError struct {
	ModuleIndex uint8 `json:"moduleIndex"`
	ErrorIndex  uint8 `json:"errorIndex"`
}

// ErrorDescriptor is the human-readable resolution of a ModuleError,
// obtained from the node's live metadata.
type ErrorDescriptor struct {
	Module      string `json:"module"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// String renders the descriptor as "Module.Name: Description".
func (d ErrorDescriptor) String() string {
	if d.Description == "" {
		return fmt.Sprintf("%s.%s", d.Module, d.Name)
	}
	return fmt.Sprintf("%s.%s: %s", d.Module, d.Name, d.Description)
}
