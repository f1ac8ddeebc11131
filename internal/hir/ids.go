// Package hir builds the high-level intermediate representation consumed by
// the recompiler's optimizer and code generator.
//
// A Builder owns one function at a time: a program-order list of blocks,
// each holding labels and instructions, plus a separate edge graph that
// records control flow. Every node lives in a per-kind arena and is named by
// a 1-based handle; the zero handle means "none".
//
// Emitters simplify eagerly: operations on constants fold at build time and
// identity rules (x+0, x&x, x^x, ...) return an existing value instead of
// emitting an instruction.
package hir

// BlockID identifies a block within a Builder session.
type BlockID uint32

// InstrID identifies an instruction.
type InstrID uint32

// LabelID identifies a label.
type LabelID uint32

// EdgeID identifies a control-flow edge.
type EdgeID uint32

// ValueID identifies a value (definition, constant or local slot).
type ValueID uint32

// UseID identifies one operand slot that reads a value.
type UseID uint32

const (
	NoBlock BlockID = 0
	NoInstr InstrID = 0
	NoLabel LabelID = 0
	NoEdge  EdgeID  = 0
	NoValue ValueID = 0
	NoUse   UseID   = 0
)

func (id BlockID) IsValid() bool { return id != NoBlock }
func (id InstrID) IsValid() bool { return id != NoInstr }
func (id LabelID) IsValid() bool { return id != NoLabel }
func (id EdgeID) IsValid() bool  { return id != NoEdge }
func (id ValueID) IsValid() bool { return id != NoValue }
func (id UseID) IsValid() bool   { return id != NoUse }
