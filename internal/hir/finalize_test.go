package hir

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gotest.tools/v3/assert"

	"recomp/internal/opcode"
	"recomp/internal/symbol"
)

func TestFinalize_FallThroughBecomesBranch(t *testing.T) {
	b := New()
	a := b.AppendBlock()
	b.LoadContext(0, Int32)
	next := b.NewLabel()
	b.MarkLabel(next, NoBlock)
	blkB := b.CurrentBlock()
	assert.Assert(t, blkB != a)
	b.Return()

	assert.NilError(t, b.Finalize())
	assert.Equal(t, b.BlockCount(), 2)

	tail := b.Instr(b.Block(a).InstrTail)
	assert.Equal(t, tail.Opcode, opcode.Branch)
	assert.Equal(t, tail.Flags, opcode.BranchLikely)
	assert.Equal(t, tail.Src[0].Label, next)
	assert.DeepEqual(t, opcodes(b, blkB), []opcode.Opcode{opcode.Return})
	assert.NilError(t, Validate(b))
}

func TestFinalize_LabelsUnlabeledSuccessor(t *testing.T) {
	b := New()
	b.AppendBlock()
	b.LoadContext(0, Int32)
	empty := b.AppendBlock()
	last := b.AppendBlock()
	b.Return()

	assert.NilError(t, b.Finalize())
	assert.Equal(t, b.BlockCount(), 3)

	head := b.Block(last).LabelHead
	assert.Assert(t, head.IsValid())
	branch := b.Instr(b.Block(empty).InstrTail)
	assert.Equal(t, branch.Opcode, opcode.Branch)
	assert.Equal(t, branch.Src[0].Label, head)
	assert.NilError(t, Validate(b))
}

func TestFinalize_FallsOffEnd(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := New(WithLogger(zap.New(core)))
	blk := b.AppendBlock()
	b.LoadContext(0, Int64)

	assert.NilError(t, b.Finalize())
	assert.Equal(t, b.BlockCount(), 1)
	assert.DeepEqual(t, opcodes(b, blk),
		[]opcode.Opcode{opcode.LoadContext, opcode.Trap, opcode.Return})
	assert.Equal(t, logs.FilterMessageSnippet("falls off its end").Len(), 1)
	assert.NilError(t, Validate(b))
}

func TestFinalize_KeepsTerminators(t *testing.T) {
	b := New()
	a := b.AppendBlock()
	b.LoadContext(0, Int32)
	b.Call(&symbol.Func{Name: "tail"}, opcode.CallTail)
	b.AppendBlock()
	b.Return()

	assert.NilError(t, b.Finalize())
	assert.DeepEqual(t, opcodes(b, a), []opcode.Opcode{opcode.LoadContext, opcode.Call})
}

func TestFinalize_Twice(t *testing.T) {
	b := New()
	b.Return()
	assert.NilError(t, b.Finalize())
	err := b.Finalize()
	assert.Assert(t, errors.Is(err, ErrAlreadyFinalized))
	assert.Assert(t, b.Finalized())
}

func TestFinalize_EmptyFunction(t *testing.T) {
	b := New()
	assert.NilError(t, b.Finalize())
	assert.Equal(t, b.BlockCount(), 0)
}
