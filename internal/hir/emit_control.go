package hir

import (
	"fmt"

	"recomp/internal/opcode"
	"recomp/internal/symbol"
)

// Comment appends a comment pseudo-instruction. Empty text is dropped.
func (b *Builder) Comment(text string) {
	if text == "" {
		return
	}
	b.comments = append(b.comments, text)
	b.emitVoid(opcode.Comment, 0, OffsetOperand(uint64(len(b.comments)-1)))
}

func (b *Builder) Commentf(format string, args ...any) {
	b.Comment(fmt.Sprintf(format, args...))
}

func (b *Builder) Nop() {
	b.emitVoid(opcode.Nop, 0)
}

// SourceOffset records the guest address the following instructions came
// from.
func (b *Builder) SourceOffset(offset uint64) {
	b.emitVoid(opcode.SourceOffset, 0, OffsetOperand(offset))
}

// traceNoIndex marks an unused trace slot in trace_source flags.
const traceNoIndex = 100

// TraceSource emits a trace point with no traced values.
func (b *Builder) TraceSource(offset uint64) {
	b.emitVoid(opcode.TraceSource, traceNoIndex|traceNoIndex<<8,
		OffsetOperand(offset), ValueOperand(b.LoadZero(Int64)), ValueOperand(b.LoadZero(Int64)))
}

// TraceSourceValue emits a trace point carrying one value tagged index.
func (b *Builder) TraceSourceValue(offset uint64, index uint8, v ValueID) {
	b.emitVoid(opcode.TraceSource, uint16(index)|traceNoIndex<<8,
		OffsetOperand(offset), ValueOperand(v), ValueOperand(b.LoadZero(Int64)))
}

// TraceSourceValues emits a trace point carrying two tagged values.
func (b *Builder) TraceSourceValues(offset uint64, index0 uint8, v0 ValueID, index1 uint8, v1 ValueID) {
	b.emitVoid(opcode.TraceSource, uint16(index0)|uint16(index1)<<8,
		OffsetOperand(offset), ValueOperand(v0), ValueOperand(v1))
}

// resolvePredicate reports whether a predicated emitter must emit its
// guarded form. A constant condition is resolved here: true runs unguarded,
// false emits nothing.
func (b *Builder) resolvePredicate(op string, cond ValueID, wantTrue bool, unguarded func()) bool {
	c := b.val(op, cond)
	if !c.IsConstant() {
		return true
	}
	if c.IsConstantTrue() == wantTrue {
		unguarded()
	}
	return false
}

func (b *Builder) DebugBreak() {
	b.emitVoid(opcode.DebugBreak, 0)
	b.EndBlock()
}

func (b *Builder) DebugBreakTrue(cond ValueID) {
	if !b.resolvePredicate("debug_break_true", cond, true, b.DebugBreak) {
		return
	}
	b.emitVoid(opcode.DebugBreakTrue, 0, ValueOperand(cond))
	b.EndBlock()
}

func (b *Builder) Trap(code uint16) {
	b.emitVoid(opcode.Trap, code)
	b.EndBlock()
}

func (b *Builder) TrapTrue(cond ValueID, code uint16) {
	if !b.resolvePredicate("trap_true", cond, true, func() { b.Trap(code) }) {
		return
	}
	b.emitVoid(opcode.TrapTrue, code, ValueOperand(cond))
	b.EndBlock()
}

func (b *Builder) Call(fn *symbol.Func, flags uint16) {
	b.emitVoid(opcode.Call, flags, SymbolOperand(fn))
	b.EndBlock()
}

func (b *Builder) CallTrue(cond ValueID, fn *symbol.Func, flags uint16) {
	if !b.resolvePredicate("call_true", cond, true, func() { b.Call(fn, flags) }) {
		return
	}
	b.emitVoid(opcode.CallTrue, flags, ValueOperand(cond), SymbolOperand(fn))
	b.EndBlock()
}

func (b *Builder) CallIndirect(target ValueID, flags uint16) {
	b.requireAddress("call_indirect", target)
	b.emitVoid(opcode.CallIndirect, flags, ValueOperand(target))
	b.EndBlock()
}

func (b *Builder) CallIndirectTrue(cond, target ValueID, flags uint16) {
	if !b.resolvePredicate("call_indirect_true", cond, true, func() { b.CallIndirect(target, flags) }) {
		return
	}
	b.requireAddress("call_indirect_true", target)
	b.emitVoid(opcode.CallIndirectTrue, flags, ValueOperand(cond), ValueOperand(target))
	b.EndBlock()
}

// CallExtern calls a host function.
func (b *Builder) CallExtern(fn *symbol.Func) {
	b.emitVoid(opcode.CallExtern, 0, SymbolOperand(fn))
	b.EndBlock()
}

func (b *Builder) Return() {
	b.emitVoid(opcode.Return, 0)
	b.EndBlock()
}

func (b *Builder) ReturnTrue(cond ValueID) {
	if !b.resolvePredicate("return_true", cond, true, b.Return) {
		return
	}
	b.emitVoid(opcode.ReturnTrue, 0, ValueOperand(cond))
	b.EndBlock()
}

func (b *Builder) SetReturnAddress(v ValueID) {
	b.emitVoid(opcode.SetReturnAddress, 0, ValueOperand(v))
}

func (b *Builder) Branch(label LabelID, flags uint16) {
	b.emitVoid(opcode.Branch, flags, LabelOperand(label))
	b.EndBlock()
}

// BranchBlock branches to the first label of blk, creating and marking one
// if the block has none.
func (b *Builder) BranchBlock(blk BlockID, flags uint16) {
	if !b.blocks.Valid(uint32(blk)) {
		contractf("branch", "invalid block handle %d", blk)
	}
	if !b.Block(blk).LabelHead.IsValid() {
		b.MarkLabel(b.NewLabel(), blk)
	}
	b.Branch(b.Block(blk).LabelHead, flags)
}

func (b *Builder) BranchTrue(cond ValueID, label LabelID, flags uint16) {
	if !b.resolvePredicate("branch_true", cond, true, func() { b.Branch(label, flags) }) {
		return
	}
	b.emitVoid(opcode.BranchTrue, flags, ValueOperand(cond), LabelOperand(label))
	b.EndBlock()
}

func (b *Builder) BranchFalse(cond ValueID, label LabelID, flags uint16) {
	if !b.resolvePredicate("branch_false", cond, false, func() { b.Branch(label, flags) }) {
		return
	}
	b.emitVoid(opcode.BranchFalse, flags, ValueOperand(cond), LabelOperand(label))
	b.EndBlock()
}
