package hir

import (
	"recomp/internal/opcode"
	"recomp/internal/symbol"
)

// OperandKind tags the payload of an operand slot. The codes match
// opcode.SigType so a slot can be checked against the catalog directly.
type OperandKind uint8

const (
	OperandNone   = OperandKind(opcode.SigTypeX)
	OperandLabel  = OperandKind(opcode.SigTypeL)
	OperandOffset = OperandKind(opcode.SigTypeO)
	OperandSymbol = OperandKind(opcode.SigTypeS)
	OperandValue  = OperandKind(opcode.SigTypeV)
)

func (k OperandKind) String() string { return opcode.SigType(k).String() }

// Operand is one source slot of an instruction. Only the field selected by
// Kind is meaningful.
type Operand struct {
	Kind   OperandKind
	Label  LabelID
	Offset uint64
	Symbol *symbol.Func
	Value  ValueID
}

func LabelOperand(l LabelID) Operand       { return Operand{Kind: OperandLabel, Label: l} }
func OffsetOperand(off uint64) Operand     { return Operand{Kind: OperandOffset, Offset: off} }
func SymbolOperand(f *symbol.Func) Operand { return Operand{Kind: OperandSymbol, Symbol: f} }
func ValueOperand(v ValueID) Operand       { return Operand{Kind: OperandValue, Value: v} }

// Instr is one operation in a block's instruction list.
type Instr struct {
	Opcode opcode.Opcode
	Flags  uint16
	Dest   ValueID
	Src    [3]Operand
	SrcUse [3]UseID
	Prev   InstrID
	Next   InstrID
	Block  BlockID
}

// Info returns the catalog entry of the instruction's opcode.
func (i *Instr) Info() *opcode.Info { return opcode.Lookup(i.Opcode) }

// Use links a value to one operand slot that reads it.
type Use struct {
	Value ValueID
	Instr InstrID
	Slot  uint8
	Prev  UseID
	Next  UseID
}
