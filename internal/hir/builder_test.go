package hir

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"recomp/internal/opcode"
	"recomp/internal/symbol"
)

// instrCount returns the number of instructions across all blocks.
func instrCount(b *Builder) int {
	n := 0
	for blk := range b.Blocks() {
		for range b.BlockInstrs(blk) {
			n++
		}
	}
	return n
}

// opcodes lists the opcodes of blk in order.
func opcodes(b *Builder, blk BlockID) []opcode.Opcode {
	var ops []opcode.Opcode
	for id := range b.BlockInstrs(blk) {
		ops = append(ops, b.Instr(id).Opcode)
	}
	return ops
}

func constOf(t *testing.T, b *Builder, v ValueID) Constant {
	t.Helper()
	val := b.Value(v)
	assert.Assert(t, val.IsConstant(), "v%d is not a constant", val.Ordinal)
	return *val.Constant
}

func TestBuilder_AddConstantZero(t *testing.T) {
	b := New()
	five := b.LoadConstantInt32(5)
	zero := b.LoadZero(Int32)

	assert.Equal(t, b.Add(five, zero, 0), five)
	assert.Equal(t, b.Add(zero, five, 0), five)
	assert.Equal(t, instrCount(b), 0)
	assert.Equal(t, b.FirstBlock(), NoBlock)
}

func TestBuilder_AddIdentityOnLiveValue(t *testing.T) {
	b := New()
	x := b.LoadContext(8, Int64)
	zero := b.LoadZero(Int64)

	assert.Equal(t, b.Add(x, zero, 0), x)
	assert.Equal(t, instrCount(b), 1)

	// Arithmetic flags disable simplification.
	sum := b.Add(x, zero, opcode.ArithmeticSetCarry)
	assert.Assert(t, sum != x)
	assert.Equal(t, b.Instr(b.LastInstr()).Opcode, opcode.Add)
}

func TestBuilder_ConstantFolding(t *testing.T) {
	b := New()
	c := func(v int32) ValueID { return b.LoadConstantInt32(v) }

	assert.Equal(t, constOf(t, b, b.Add(c(2), c(3), 0)), IntConstant(Int32, 5))
	assert.Equal(t, constOf(t, b, b.Sub(c(2), c(3), 0)), IntConstant(Int32, -1))
	assert.Equal(t, constOf(t, b, b.Mul(c(6), c(7), 0)), IntConstant(Int32, 42))
	assert.Equal(t, constOf(t, b, b.Div(c(-1), c(16), opcode.ArithmeticUnsigned)), IntConstant(Int32, 0x0FFFFFFF))
	assert.Equal(t, constOf(t, b, b.Xor(c(6), c(3))), IntConstant(Int32, 5))
	assert.Equal(t, constOf(t, b, b.Shl(c(1), b.LoadConstantInt8(4))), IntConstant(Int32, 16))
	assert.Equal(t, constOf(t, b, b.Not(c(0))), IntConstant(Int32, -1))
	assert.Equal(t, constOf(t, b, b.MulAdd(c(3), c(4), c(5))), IntConstant(Int32, 17))
	assert.Equal(t, constOf(t, b, b.CompareSLT(c(-1), c(1))), IntConstant(Int8, 1))
	assert.Equal(t, constOf(t, b, b.CompareULT(c(-1), c(1))), IntConstant(Int8, 0))
	assert.Equal(t, constOf(t, b, b.CountLeadingZeros(c(0x100))), IntConstant(Int8, 23))
	assert.Equal(t, instrCount(b), 0)
}

func TestBuilder_DivByConstantZeroIsEmitted(t *testing.T) {
	b := New()
	q := b.Div(b.LoadConstantInt32(4), b.LoadZero(Int32), 0)
	assert.Assert(t, !b.Value(q).IsConstant())
	assert.Equal(t, b.Instr(b.Value(q).Def).Opcode, opcode.Div)
}

func TestBuilder_BitwiseIdentities(t *testing.T) {
	b := New()
	x := b.LoadContext(0, Int32)
	y := b.LoadContext(4, Int32)
	zero := b.LoadZero(Int32)
	before := instrCount(b)

	assert.Equal(t, b.And(x, x), x)
	assert.Equal(t, b.And(x, zero), zero)
	assert.Equal(t, b.And(zero, x), zero)
	assert.Equal(t, b.Or(x, x), x)
	assert.Equal(t, b.Or(x, zero), x)
	assert.Equal(t, b.Shl(x, b.LoadZero(Int8)), x)

	xx := b.Xor(x, x)
	assert.Equal(t, constOf(t, b, xx), ZeroConstant(Int32))
	assert.Equal(t, instrCount(b), before)

	b.Xor(x, y)
	assert.Equal(t, instrCount(b), before+1)
}

func TestBuilder_VectorBitwise(t *testing.T) {
	b := New()
	v := b.LoadContext(0, Vec128)
	w := b.LoadContext(16, Vec128)
	zero := b.LoadZero(Vec128)
	before := instrCount(b)

	assert.Equal(t, b.And(v, v), v)
	assert.Equal(t, b.And(v, zero), zero)
	assert.Equal(t, b.Or(zero, v), v)
	assert.Equal(t, constOf(t, b, b.Xor(v, v)), ZeroConstant(Vec128))
	assert.Equal(t, instrCount(b), before)

	for _, r := range []ValueID{b.And(v, w), b.Or(v, w), b.Xor(v, w), b.Not(v), b.Not(zero)} {
		assert.Equal(t, b.Value(r).Type, Vec128)
		assert.Assert(t, !b.Value(r).IsConstant())
	}
	assert.Equal(t, instrCount(b), before+5)
}

func TestBuilder_CastFamilyOwnType(t *testing.T) {
	b := New()
	x := b.LoadContext(0, Int32)
	f := b.LoadContext(8, Float64)
	before := instrCount(b)

	assert.Equal(t, b.Cast(x, Int32), x)
	assert.Equal(t, b.ZeroExtend(x, Int32), x)
	assert.Equal(t, b.SignExtend(x, Int32), x)
	assert.Equal(t, b.Truncate(x, Int32), x)
	assert.Equal(t, b.Convert(f, Float64, opcode.RoundToNearest), f)
	assert.Equal(t, instrCount(b), before)

	wide := b.ZeroExtend(x, Int64)
	assert.Equal(t, b.Value(wide).Type, Int64)
	assert.Equal(t, instrCount(b), before+1)

	k := b.SignExtend(b.LoadConstantInt8(-2), Int32)
	assert.Equal(t, constOf(t, b, k), IntConstant(Int32, -2))
}

func TestBuilder_SelectAndMinMax(t *testing.T) {
	b := New()
	x := b.LoadContext(0, Int32)
	y := b.LoadContext(4, Int32)

	assert.Equal(t, b.Select(b.LoadConstantInt8(1), x, y), x)
	assert.Equal(t, b.Select(b.LoadConstantInt8(0), x, y), y)

	lo, hi := b.LoadConstantInt32(-3), b.LoadConstantInt32(7)
	assert.Equal(t, b.Max(lo, hi), hi)
	assert.Equal(t, b.Min(lo, hi), lo)

	sel := b.Select(b.LoadContext(12, Int8), x, y)
	assert.Equal(t, b.Instr(b.Value(sel).Def).Opcode, opcode.Select)
}

func TestBuilder_ShiftTruncatesAmount(t *testing.T) {
	b := New()
	x := b.LoadContext(0, Int64)
	n := b.LoadContext(8, Int64)
	r := b.Shl(x, n)

	in := b.Instr(b.Value(r).Def)
	assert.Equal(t, in.Opcode, opcode.Shl)
	amount := b.Value(in.Src[1].Value)
	assert.Equal(t, amount.Type, Int8)
	assert.Equal(t, b.Instr(amount.Def).Opcode, opcode.Truncate)
}

func TestBuilder_SwizzleIdentity(t *testing.T) {
	b := New()
	v := b.LoadContext(0, Vec128)
	same := b.Swizzle(v, Float32, opcode.SwizzleXYZWToXYZW)
	assert.Assert(t, same != v)
	assert.Equal(t, b.Instr(b.Value(same).Def).Opcode, opcode.Assign)

	sw := b.Swizzle(v, Int32, 0x1B)
	in := b.Instr(b.Value(sw).Def)
	assert.Equal(t, in.Opcode, opcode.Swizzle)
	assert.Equal(t, in.Src[1].Offset, uint64(0x1B))
}

func TestBuilder_PredicatedConstantConditions(t *testing.T) {
	fn := &symbol.Func{Name: "callee", Address: 0x8200_0000}

	t.Run("true runs unguarded", func(t *testing.T) {
		b := New()
		blk := b.AppendBlock()
		b.CallTrue(b.LoadConstantInt8(1), fn, 0)
		assert.DeepEqual(t, opcodes(b, blk), []opcode.Opcode{opcode.Call})

		b.AppendBlock()
		b.ReturnTrue(b.LoadConstantInt8(7))
		assert.Equal(t, b.Instr(b.LastInstr()).Opcode, opcode.Return)
	})

	t.Run("false emits nothing", func(t *testing.T) {
		b := New()
		b.AppendBlock()
		b.TrapTrue(b.LoadZero(Int8), 0)
		b.CallIndirectTrue(b.LoadZero(Int8), b.LoadContext(0, Int32), 0)
		assert.Equal(t, instrCount(b), 1) // the load_context
	})

	t.Run("branch_false on constant false", func(t *testing.T) {
		b := New()
		l := b.NewLabel()
		b.AppendBlock()
		b.BranchFalse(b.LoadZero(Int8), l, 0)
		in := b.Instr(b.LastInstr())
		assert.Equal(t, in.Opcode, opcode.Branch)
		assert.Equal(t, in.Src[0].Label, l)
	})

	t.Run("live condition", func(t *testing.T) {
		b := New()
		l := b.NewLabel()
		cond := b.LoadContext(0, Int8)
		b.BranchTrue(cond, l, opcode.BranchUnlikely)
		in := b.Instr(b.LastInstr())
		assert.Equal(t, in.Opcode, opcode.BranchTrue)
		assert.Equal(t, in.Flags, opcode.BranchUnlikely)
		assert.Equal(t, b.CurrentBlock(), NoBlock)
	})
}

func TestBuilder_DefsAndUses(t *testing.T) {
	b := New()
	x := b.LoadContext(0, Int32)
	y := b.LoadContext(4, Int32)
	s := b.Add(x, y, 0)
	p := b.Mul(s, x, 0)

	assert.Equal(t, b.Instr(b.Value(p).Def).Dest, p)

	var readers []InstrID
	for u := range b.Uses(x) {
		readers = append(readers, b.Use(u).Instr)
	}
	assert.DeepEqual(t, readers, []InstrID{b.Value(p).Def, b.Value(s).Def})

	err := Capture(func() { b.RemoveInstr(b.Value(s).Def) })
	assert.Assert(t, errors.Is(err, ErrContract))

	b.RemoveInstr(b.Value(p).Def)
	assert.Assert(t, !b.Value(p).Def.IsValid())
	b.RemoveInstr(b.Value(s).Def)
	n := 0
	for range b.Uses(x) {
		n++
	}
	assert.Equal(t, n, 0)
	assert.NilError(t, Validate(b))
}

func TestBuilder_Comments(t *testing.T) {
	b := New()
	b.Comment("")
	assert.Equal(t, instrCount(b), 0)

	b.Commentf("guest %#x", 0x8000_1000)
	id := b.LastInstr()
	assert.Equal(t, b.Instr(id).Opcode, opcode.Comment)
	assert.Equal(t, b.CommentText(id), "guest 0x80001000")
}

func TestBuilder_ContractViolations(t *testing.T) {
	tests := []struct {
		name string
		fn   func(b *Builder)
		msg  string
	}{
		{"add type mismatch", func(b *Builder) {
			b.Add(b.LoadContext(0, Int32), b.LoadContext(4, Int64), 0)
		}, "operand types differ"},
		{"float xor", func(b *Builder) {
			f := b.LoadContext(0, Float32)
			b.Xor(f, f)
		}, "want integer"},
		{"vector neg", func(b *Builder) { b.Neg(b.LoadContext(0, Vec128)) }, "want scalar"},
		{"stale value", func(b *Builder) { b.Assign(ValueID(99)) }, "invalid value handle"},
		{"byte swap float", func(b *Builder) { b.ByteSwap(b.LoadContext(0, Float64)) }, "want integer"},
		{"bad address", func(b *Builder) { b.Load(b.LoadContext(0, Int8), Int32, 0) }, "address operand"},
		{"label placed twice", func(b *Builder) {
			l := b.NewLabel()
			b.MarkLabel(l, NoBlock)
			b.MarkLabel(l, NoBlock)
		}, "already placed"},
		{"vector flags overflow", func(b *Builder) {
			v := b.LoadContext(0, Vec128)
			b.VectorAdd(v, v, Float32, 0x100)
		}, "do not fit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Capture(func() { tt.fn(New()) })
			assert.Assert(t, errors.Is(err, ErrContract))
			assert.Assert(t, cmp.ErrorContains(err, tt.msg))
		})
	}
}

func TestCapture_PropagatesOtherPanics(t *testing.T) {
	defer func() {
		assert.Equal(t, recover(), "boom")
	}()
	_ = Capture(func() { panic("boom") })
	t.Fatal("Capture swallowed a foreign panic")
}

func TestBuilder_Reset(t *testing.T) {
	b := New(WithDebugFill(true))
	b.LoadContext(0, Int32)
	b.AllocLocal(Int64)
	b.SetAttributes(AttribInline)
	b.Return()
	assert.NilError(t, b.Finalize())

	b.Reset()
	assert.Equal(t, b.FirstBlock(), NoBlock)
	assert.Equal(t, b.MaxValueOrdinal(), uint32(0))
	assert.Equal(t, len(b.Locals()), 0)
	assert.Equal(t, b.Attributes(), uint32(0))
	assert.Assert(t, !b.Finalized())

	v := b.LoadContext(0, Int16)
	assert.Equal(t, b.Value(v).Ordinal, uint32(0))
}
