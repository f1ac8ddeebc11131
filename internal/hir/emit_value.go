package hir

import (
	"recomp/internal/opcode"
)

// Assign copies v into a fresh value. Constants are returned as is.
func (b *Builder) Assign(v ValueID) ValueID {
	val := b.val("assign", v)
	if val.IsConstant() {
		return v
	}
	return b.emitValue(opcode.Assign, 0, val.Type, ValueOperand(v))
}

// convertOp is the shared shape of the cast family: identity when the
// target is the operand's own type, fold on constants, emit otherwise.
func (b *Builder) convertOp(op opcode.Opcode, flags uint16, v ValueID, t TypeName, fold func(Constant) Constant) ValueID {
	requireValidType(op.String(), t)
	val := b.val(op.String(), v)
	if val.Type == t {
		return v
	}
	if val.IsConstant() {
		return b.constValue(fold(*val.Constant))
	}
	return b.emitValue(op, flags, t, ValueOperand(v))
}

// Cast reinterprets the bits of v as type t.
func (b *Builder) Cast(v ValueID, t TypeName) ValueID {
	if src := b.typeOf("cast", v); src.Size() != t.Size() {
		contractf("cast", "cannot reinterpret %s as %s", src, t)
	}
	return b.convertOp(opcode.Cast, 0, v, t, func(c Constant) Constant { return c.Cast(t) })
}

func (b *Builder) ZeroExtend(v ValueID, t TypeName) ValueID {
	b.requireExtend("zero_extend", v, t)
	return b.convertOp(opcode.ZeroExtend, 0, v, t, func(c Constant) Constant { return c.ZeroExtend(t) })
}

func (b *Builder) SignExtend(v ValueID, t TypeName) ValueID {
	b.requireExtend("sign_extend", v, t)
	return b.convertOp(opcode.SignExtend, 0, v, t, func(c Constant) Constant { return c.SignExtend(t) })
}

func (b *Builder) requireExtend(op string, v ValueID, t TypeName) {
	b.requireInt(op, v)
	if !t.IsInt() || t.Size() < b.Value(v).Type.Size() {
		contractf(op, "cannot extend %s to %s", b.Value(v).Type, t)
	}
}

func (b *Builder) Truncate(v ValueID, t TypeName) ValueID {
	b.requireInt("truncate", v)
	if src := b.Value(v).Type; !t.IsInt() || t.Size() > src.Size() {
		contractf("truncate", "cannot truncate %s to %s", src, t)
	}
	return b.convertOp(opcode.Truncate, 0, v, t, func(c Constant) Constant { return c.Truncate(t) })
}

// Convert converts v numerically to t, rounding with mode where needed.
func (b *Builder) Convert(v ValueID, t TypeName, mode opcode.RoundMode) ValueID {
	return b.convertOp(opcode.Convert, uint16(mode), v, t, func(c Constant) Constant { return c.Convert(t, mode) })
}

// Round rounds a float to an integral value of the same type.
func (b *Builder) Round(v ValueID, mode opcode.RoundMode) ValueID {
	b.requireFloat("round", v)
	val := b.Value(v)
	if val.IsConstant() {
		return b.constValue(val.Constant.Round(mode))
	}
	return b.emitValue(opcode.Round, uint16(mode), val.Type, ValueOperand(v))
}

func (b *Builder) VectorConvertI2F(v ValueID, arithFlags uint16) ValueID {
	b.requireVec("vector_convert_i2f", v)
	return b.emitValue(opcode.VectorConvertI2F, arithFlags, Vec128, ValueOperand(v))
}

func (b *Builder) VectorConvertF2I(v ValueID, arithFlags uint16) ValueID {
	b.requireVec("vector_convert_f2i", v)
	return b.emitValue(opcode.VectorConvertF2I, arithFlags, Vec128, ValueOperand(v))
}

// LoadZero returns a new zero constant of type t.
func (b *Builder) LoadZero(t TypeName) ValueID {
	return b.constValue(ZeroConstant(t))
}

// LoadConstant returns a new value holding c.
func (b *Builder) LoadConstant(c Constant) ValueID {
	requireValidType("load_constant", c.Type)
	return b.constValue(c)
}

func (b *Builder) LoadConstantInt8(v int8) ValueID { return b.constValue(IntConstant(Int8, int64(v))) }
func (b *Builder) LoadConstantUint8(v uint8) ValueID {
	return b.constValue(IntConstant(Int8, int64(v)))
}
func (b *Builder) LoadConstantInt16(v int16) ValueID {
	return b.constValue(IntConstant(Int16, int64(v)))
}
func (b *Builder) LoadConstantUint16(v uint16) ValueID {
	return b.constValue(IntConstant(Int16, int64(v)))
}
func (b *Builder) LoadConstantInt32(v int32) ValueID {
	return b.constValue(IntConstant(Int32, int64(v)))
}
func (b *Builder) LoadConstantUint32(v uint32) ValueID {
	return b.constValue(IntConstant(Int32, int64(v)))
}
func (b *Builder) LoadConstantInt64(v int64) ValueID { return b.constValue(IntConstant(Int64, v)) }
func (b *Builder) LoadConstantUint64(v uint64) ValueID {
	return b.constValue(IntConstant(Int64, int64(v)))
}
func (b *Builder) LoadConstantFloat32(v float32) ValueID {
	return b.constValue(FloatConstant(Float32, float64(v)))
}
func (b *Builder) LoadConstantFloat64(v float64) ValueID {
	return b.constValue(FloatConstant(Float64, v))
}
func (b *Builder) LoadConstantVec128(v V128) ValueID { return b.constValue(VecConstant(v)) }

// LoadVectorShl loads the permute control for a left byte shift by sh.
func (b *Builder) LoadVectorShl(sh ValueID) ValueID {
	b.requireType("load_vector_shl", sh, Int8)
	return b.emitValue(opcode.LoadVectorShl, 0, Vec128, ValueOperand(sh))
}

func (b *Builder) LoadVectorShr(sh ValueID) ValueID {
	b.requireType("load_vector_shr", sh, Int8)
	return b.emitValue(opcode.LoadVectorShr, 0, Vec128, ValueOperand(sh))
}

func (b *Builder) LoadClock() ValueID {
	return b.emitValue(opcode.LoadClock, 0, Int64)
}

// AllocLocal reserves a local storage slot of type t. The slot is a value
// used only as a load_local/store_local operand.
func (b *Builder) AllocLocal(t TypeName) ValueID {
	requireValidType("alloc_local", t)
	slot := b.allocValue(t)
	b.locals = append(b.locals, slot)
	return slot
}

func (b *Builder) LoadLocal(slot ValueID) ValueID {
	return b.emitValue(opcode.LoadLocal, 0, b.typeOf("load_local", slot), ValueOperand(slot))
}

func (b *Builder) StoreLocal(slot, v ValueID) {
	b.requireSameType("store_local", slot, v)
	b.emitVoid(opcode.StoreLocal, 0, ValueOperand(slot), ValueOperand(v))
}

// LoadContext reads a field of the guest context at offset.
func (b *Builder) LoadContext(offset uint64, t TypeName) ValueID {
	requireValidType("load_context", t)
	return b.emitValue(opcode.LoadContext, 0, t, OffsetOperand(offset))
}

func (b *Builder) StoreContext(offset uint64, v ValueID) {
	b.emitVoid(opcode.StoreContext, 0, OffsetOperand(offset), ValueOperand(v))
}

func (b *Builder) Load(addr ValueID, t TypeName, flags uint16) ValueID {
	b.requireAddress("load", addr)
	requireValidType("load", t)
	return b.emitValue(opcode.Load, flags, t, ValueOperand(addr))
}

func (b *Builder) Store(addr, v ValueID, flags uint16) {
	b.requireAddress("store", addr)
	b.val("store", v)
	b.emitVoid(opcode.Store, flags, ValueOperand(addr), ValueOperand(v))
}

func (b *Builder) Prefetch(addr ValueID, length uint64, flags uint16) {
	b.requireAddress("prefetch", addr)
	b.emitVoid(opcode.Prefetch, flags, ValueOperand(addr), OffsetOperand(length))
}
