package hir

import (
	"recomp/internal/opcode"
)

func (b *Builder) Max(v1, v2 ValueID) ValueID {
	b.requireSameType("max", v1, v2)
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		if c1.Compare(opcode.CompareSLT, c2) {
			return v2
		}
		return v1
	}
	return b.emitValue(opcode.Max, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) Min(v1, v2 ValueID) ValueID {
	b.requireSameType("min", v1, v2)
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		if c1.Compare(opcode.CompareSLT, c2) {
			return v1
		}
		return v2
	}
	return b.emitValue(opcode.Min, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

// vectorFlags packs a lane type and arithmetic flags into one flag word.
func vectorFlags(op string, part TypeName, arithFlags uint16) uint16 {
	if arithFlags > 0xFF {
		contractf(op, "arithmetic flags %#x do not fit beside the part type", arithFlags)
	}
	return uint16(part) | arithFlags<<8
}

func (b *Builder) vectorBinary(op opcode.Opcode, v1, v2 ValueID, flags uint16) ValueID {
	name := op.String()
	b.requireVec(name, v1)
	b.requireVec(name, v2)
	return b.emitValue(op, flags, Vec128, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) VectorMax(v1, v2 ValueID, part TypeName, arithFlags uint16) ValueID {
	return b.vectorBinary(opcode.VectorMax, v1, v2, vectorFlags("vector_max", part, arithFlags))
}

func (b *Builder) VectorMin(v1, v2 ValueID, part TypeName, arithFlags uint16) ValueID {
	return b.vectorBinary(opcode.VectorMin, v1, v2, vectorFlags("vector_min", part, arithFlags))
}

// Select picks v1 when cond is true and v2 otherwise.
func (b *Builder) Select(cond, v1, v2 ValueID) ValueID {
	if t := b.typeOf("select", cond); t != Int8 && t != Vec128 {
		contractf("select", "condition is %s, want i8 or v128", t)
	}
	b.requireSameType("select", v1, v2)
	if c := b.Value(cond); c.IsConstant() {
		if c.IsConstantTrue() {
			return v1
		}
		return v2
	}
	return b.emitValue(opcode.Select, 0, b.Value(v1).Type, ValueOperand(cond), ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) boolConst(v bool) ValueID {
	if v {
		return b.LoadConstantInt8(1)
	}
	return b.LoadConstantInt8(0)
}

func (b *Builder) IsTrue(v ValueID) ValueID {
	if val := b.val("is_true", v); val.IsConstant() {
		return b.boolConst(val.IsConstantTrue())
	}
	return b.emitValue(opcode.IsTrue, 0, Int8, ValueOperand(v))
}

func (b *Builder) IsFalse(v ValueID) ValueID {
	if val := b.val("is_false", v); val.IsConstant() {
		return b.boolConst(val.IsConstantFalse())
	}
	return b.emitValue(opcode.IsFalse, 0, Int8, ValueOperand(v))
}

func (b *Builder) compare(op opcode.Opcode, v1, v2 ValueID) ValueID {
	b.requireSameType(op.String(), v1, v2)
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.boolConst(c1.Compare(op, c2))
	}
	return b.emitValue(op, 0, Int8, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) CompareEQ(v1, v2 ValueID) ValueID  { return b.compare(opcode.CompareEQ, v1, v2) }
func (b *Builder) CompareNE(v1, v2 ValueID) ValueID  { return b.compare(opcode.CompareNE, v1, v2) }
func (b *Builder) CompareSLT(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareSLT, v1, v2) }
func (b *Builder) CompareSLE(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareSLE, v1, v2) }
func (b *Builder) CompareSGT(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareSGT, v1, v2) }
func (b *Builder) CompareSGE(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareSGE, v1, v2) }
func (b *Builder) CompareULT(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareULT, v1, v2) }
func (b *Builder) CompareULE(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareULE, v1, v2) }
func (b *Builder) CompareUGT(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareUGT, v1, v2) }
func (b *Builder) CompareUGE(v1, v2 ValueID) ValueID { return b.compare(opcode.CompareUGE, v1, v2) }

// DidCarry reads the carry of the preceding instruction.
func (b *Builder) DidCarry(v ValueID) ValueID {
	return b.emitValue(opcode.DidCarry, 0, Int8, ValueOperand(v))
}

func (b *Builder) DidOverflow(v ValueID) ValueID {
	return b.emitValue(opcode.DidOverflow, 0, Int8, ValueOperand(v))
}

func (b *Builder) DidSaturate(v ValueID) ValueID {
	return b.emitValue(opcode.DidSaturate, 0, Int8, ValueOperand(v))
}

func (b *Builder) vectorCompare(op opcode.Opcode, v1, v2 ValueID, part TypeName) ValueID {
	b.requireSameType(op.String(), v1, v2)
	return b.emitValue(op, uint16(part), b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) VectorCompareEQ(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorCompare(opcode.VectorCompareEQ, v1, v2, part)
}

func (b *Builder) VectorCompareSGT(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorCompare(opcode.VectorCompareSGT, v1, v2, part)
}

func (b *Builder) VectorCompareSGE(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorCompare(opcode.VectorCompareSGE, v1, v2, part)
}

func (b *Builder) VectorCompareUGT(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorCompare(opcode.VectorCompareUGT, v1, v2, part)
}

func (b *Builder) VectorCompareUGE(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorCompare(opcode.VectorCompareUGE, v1, v2, part)
}

// Add simplifies only when arithFlags is zero.
func (b *Builder) Add(v1, v2 ValueID, arithFlags uint16) ValueID {
	b.requireSameType("add", v1, v2)
	if arithFlags == 0 {
		switch {
		case b.Value(v1).IsConstantZero():
			return v2
		case b.Value(v2).IsConstantZero():
			return v1
		}
		if c1, c2, ok := b.scalarConsts(v1, v2); ok {
			return b.constValue(c1.Add(c2))
		}
	}
	return b.emitValue(opcode.Add, arithFlags, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) AddWithCarry(v1, v2, carry ValueID, arithFlags uint16) ValueID {
	b.requireSameType("add_carry", v1, v2)
	b.requireType("add_carry", carry, Int8)
	return b.emitValue(opcode.AddCarry, arithFlags, b.Value(v1).Type,
		ValueOperand(v1), ValueOperand(v2), ValueOperand(carry))
}

func (b *Builder) VectorAdd(v1, v2 ValueID, part TypeName, arithFlags uint16) ValueID {
	return b.vectorBinary(opcode.VectorAdd, v1, v2, vectorFlags("vector_add", part, arithFlags))
}

// Sub has no identity rule; x-0 is emitted as written.
func (b *Builder) Sub(v1, v2 ValueID, arithFlags uint16) ValueID {
	b.requireSameType("sub", v1, v2)
	if arithFlags == 0 {
		if c1, c2, ok := b.scalarConsts(v1, v2); ok {
			return b.constValue(c1.Sub(c2))
		}
	}
	return b.emitValue(opcode.Sub, arithFlags, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) VectorSub(v1, v2 ValueID, part TypeName, arithFlags uint16) ValueID {
	return b.vectorBinary(opcode.VectorSub, v1, v2, vectorFlags("vector_sub", part, arithFlags))
}

func (b *Builder) Mul(v1, v2 ValueID, arithFlags uint16) ValueID {
	b.requireSameType("mul", v1, v2)
	if arithFlags == 0 {
		if c1, c2, ok := b.scalarConsts(v1, v2); ok {
			return b.constValue(c1.Mul(c2))
		}
	}
	return b.emitValue(opcode.Mul, arithFlags, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) MulHi(v1, v2 ValueID, arithFlags uint16) ValueID {
	b.requireSameType("mul_hi", v1, v2)
	return b.emitValue(opcode.MulHi, arithFlags, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

// Div folds constant operands when the divisor is non-zero. The only flag
// allowed on a folded divide is ArithmeticUnsigned.
func (b *Builder) Div(v1, v2 ValueID, arithFlags uint16) ValueID {
	b.requireSameType("div", v1, v2)
	if arithFlags&^opcode.ArithmeticUnsigned == 0 {
		if c1, c2, ok := b.scalarConsts(v1, v2); ok && !c2.IsZero() {
			return b.constValue(c1.Div(c2, arithFlags&opcode.ArithmeticUnsigned != 0))
		}
	}
	return b.emitValue(opcode.Div, arithFlags, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

// MulAdd computes v1*v2 + v3. With constant factors the product folds and
// the add goes through Add's own simplification.
func (b *Builder) MulAdd(v1, v2, v3 ValueID) ValueID {
	b.requireSameType("mul_add", v1, v2)
	b.requireSameType("mul_add", v1, v3)
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.Add(b.constValue(c1.Mul(c2)), v3, 0)
	}
	return b.emitValue(opcode.MulAdd, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2), ValueOperand(v3))
}

func (b *Builder) MulSub(v1, v2, v3 ValueID) ValueID {
	b.requireSameType("mul_sub", v1, v2)
	b.requireSameType("mul_sub", v1, v3)
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.Sub(b.constValue(c1.Mul(c2)), v3, 0)
	}
	return b.emitValue(opcode.MulSub, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2), ValueOperand(v3))
}

func (b *Builder) Neg(v ValueID) ValueID {
	b.requireNonVec("neg", v)
	if val := b.Value(v); val.IsConstant() {
		return b.constValue(val.Constant.Neg())
	}
	return b.emitValue(opcode.Neg, 0, b.Value(v).Type, ValueOperand(v))
}

func (b *Builder) Abs(v ValueID) ValueID {
	b.requireNonVec("abs", v)
	if val := b.Value(v); val.IsConstant() {
		return b.constValue(val.Constant.Abs())
	}
	return b.emitValue(opcode.Abs, 0, b.Value(v).Type, ValueOperand(v))
}

// floatUnary covers the float math ops. They accept float scalars and
// vectors of floats and never fold.
func (b *Builder) floatUnary(op opcode.Opcode, v ValueID) ValueID {
	if t := b.typeOf(op.String(), v); !t.IsFloat() && !t.IsVec() {
		contractf(op.String(), "operand is %s, want float", t)
	}
	return b.emitValue(op, 0, b.Value(v).Type, ValueOperand(v))
}

func (b *Builder) Sqrt(v ValueID) ValueID  { return b.floatUnary(opcode.Sqrt, v) }
func (b *Builder) RSqrt(v ValueID) ValueID { return b.floatUnary(opcode.RSqrt, v) }
func (b *Builder) Pow2(v ValueID) ValueID  { return b.floatUnary(opcode.Pow2, v) }
func (b *Builder) Log2(v ValueID) ValueID  { return b.floatUnary(opcode.Log2, v) }

func (b *Builder) dotProduct(op opcode.Opcode, v1, v2 ValueID) ValueID {
	b.requireVec(op.String(), v1)
	b.requireVec(op.String(), v2)
	return b.emitValue(op, 0, Float32, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) DotProduct3(v1, v2 ValueID) ValueID {
	return b.dotProduct(opcode.DotProduct3, v1, v2)
}
func (b *Builder) DotProduct4(v1, v2 ValueID) ValueID {
	return b.dotProduct(opcode.DotProduct4, v1, v2)
}

func (b *Builder) requireIntPair(op string, v1, v2 ValueID) {
	b.requireInt(op, v1)
	b.requireInt(op, v2)
	b.requireSameType(op, v1, v2)
}

// requireBitwise admits integers and whole vectors. Vector operands take
// the identity rules but never fold.
func (b *Builder) requireBitwise(op string, v1, v2 ValueID) {
	if t := b.typeOf(op, v1); !t.IsInt() && !t.IsVec() {
		contractf(op, "operand is %s, want integer or vector", t)
	}
	b.requireSameType(op, v1, v2)
}

// And returns the zero operand itself when either side is constant zero.
func (b *Builder) And(v1, v2 ValueID) ValueID {
	b.requireBitwise("and", v1, v2)
	switch {
	case v1 == v2:
		return v1
	case b.Value(v1).IsConstantZero():
		return v1
	case b.Value(v2).IsConstantZero():
		return v2
	}
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.constValue(c1.And(c2))
	}
	return b.emitValue(opcode.And, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) Or(v1, v2 ValueID) ValueID {
	b.requireBitwise("or", v1, v2)
	switch {
	case v1 == v2:
		return v1
	case b.Value(v1).IsConstantZero():
		return v2
	case b.Value(v2).IsConstantZero():
		return v1
	}
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.constValue(c1.Or(c2))
	}
	return b.emitValue(opcode.Or, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

// Xor of a value with itself is a fresh zero constant.
func (b *Builder) Xor(v1, v2 ValueID) ValueID {
	b.requireBitwise("xor", v1, v2)
	if v1 == v2 {
		return b.LoadZero(b.Value(v1).Type)
	}
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.constValue(c1.Xor(c2))
	}
	return b.emitValue(opcode.Xor, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) Not(v ValueID) ValueID {
	if t := b.typeOf("not", v); !t.IsInt() && !t.IsVec() {
		contractf("not", "operand is %s, want integer or vector", t)
	}
	if val := b.Value(v); val.IsConstant() && !val.Type.IsVec() {
		return b.constValue(val.Constant.Not())
	}
	return b.emitValue(opcode.Not, 0, b.Value(v).Type, ValueOperand(v))
}

// shift is shared by shl, shr, sha and rotate_left. A non-i8 shift amount
// is truncated to i8 before emission.
func (b *Builder) shift(op opcode.Opcode, v1, v2 ValueID, fold func(a, n Constant) Constant) ValueID {
	name := op.String()
	b.requireInt(name, v1)
	b.requireInt(name, v2)
	if b.Value(v2).IsConstantZero() {
		return v1
	}
	if c1, c2, ok := b.scalarConsts(v1, v2); ok {
		return b.constValue(fold(c1, c2))
	}
	if b.Value(v2).Type != Int8 {
		v2 = b.Truncate(v2, Int8)
	}
	return b.emitValue(op, 0, b.Value(v1).Type, ValueOperand(v1), ValueOperand(v2))
}

func (b *Builder) Shl(v1, v2 ValueID) ValueID {
	return b.shift(opcode.Shl, v1, v2, Constant.Shl)
}

func (b *Builder) ShlImm(v ValueID, n int8) ValueID { return b.Shl(v, b.LoadConstantInt8(n)) }

func (b *Builder) Shr(v1, v2 ValueID) ValueID {
	return b.shift(opcode.Shr, v1, v2, Constant.Shr)
}

func (b *Builder) ShrImm(v ValueID, n int8) ValueID { return b.Shr(v, b.LoadConstantInt8(n)) }

func (b *Builder) Sha(v1, v2 ValueID) ValueID {
	return b.shift(opcode.Sha, v1, v2, Constant.Sha)
}

func (b *Builder) ShaImm(v ValueID, n int8) ValueID { return b.Sha(v, b.LoadConstantInt8(n)) }

func (b *Builder) RotateLeft(v1, v2 ValueID) ValueID {
	return b.shift(opcode.RotateLeft, v1, v2, Constant.RotateLeft)
}

func (b *Builder) VectorShl(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorBinary(opcode.VectorShl, v1, v2, uint16(part))
}

func (b *Builder) VectorShr(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorBinary(opcode.VectorShr, v1, v2, uint16(part))
}

func (b *Builder) VectorSha(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorBinary(opcode.VectorSha, v1, v2, uint16(part))
}

func (b *Builder) VectorRotateLeft(v1, v2 ValueID, part TypeName) ValueID {
	return b.vectorBinary(opcode.VectorRotateLeft, v1, v2, uint16(part))
}

// ByteSwap is a no-op on i8.
func (b *Builder) ByteSwap(v ValueID) ValueID {
	val := b.val("byte_swap", v)
	if val.Type == Int8 {
		return v
	}
	if val.IsConstant() && val.Type.IsInt() {
		return b.constValue(val.Constant.ByteSwap())
	}
	if val.Type.IsFloat() {
		contractf("byte_swap", "operand is %s, want integer or v128", val.Type)
	}
	return b.emitValue(opcode.ByteSwap, 0, val.Type, ValueOperand(v))
}

// CountLeadingZeros returns an i8 holding the leading zero bit count.
func (b *Builder) CountLeadingZeros(v ValueID) ValueID {
	b.requireInt("cntlz", v)
	if val := b.Value(v); val.IsConstant() {
		return b.constValue(val.Constant.CountLeadingZeros())
	}
	return b.emitValue(opcode.Cntlz, 0, Int8, ValueOperand(v))
}

// Insert replaces the lane at index of v with part. The index is widened
// to i64.
func (b *Builder) Insert(v, index, part ValueID) ValueID {
	b.requireVec("insert", v)
	b.requireInt("insert", index)
	b.val("insert", part)
	idx := b.ZeroExtend(index, Int64)
	return b.emitValue(opcode.Insert, 0, Vec128, ValueOperand(v), ValueOperand(idx), ValueOperand(part))
}

func (b *Builder) InsertImm(v ValueID, index uint64, part ValueID) ValueID {
	return b.Insert(v, b.LoadConstantUint64(index), part)
}

// Extract reads the lane at index of v as type t. The index is narrowed
// to i8.
func (b *Builder) Extract(v, index ValueID, t TypeName) ValueID {
	b.requireVec("extract", v)
	b.requireInt("extract", index)
	requireValidType("extract", t)
	if b.Value(index).Type != Int8 {
		index = b.Truncate(index, Int8)
	}
	return b.emitValue(opcode.Extract, 0, t, ValueOperand(v), ValueOperand(index))
}

func (b *Builder) ExtractImm(v ValueID, index uint8, t TypeName) ValueID {
	return b.Extract(v, b.LoadConstantUint8(index), t)
}

// Splat broadcasts a scalar into every lane of a value of type t.
func (b *Builder) Splat(v ValueID, t TypeName) ValueID {
	b.requireNonVec("splat", v)
	requireValidType("splat", t)
	return b.emitValue(opcode.Splat, 0, t, ValueOperand(v))
}

func (b *Builder) Permute(control, v1, v2 ValueID, part TypeName) ValueID {
	b.val("permute", control)
	b.requireSameType("permute", v1, v2)
	return b.emitValue(opcode.Permute, uint16(part), b.Value(v1).Type,
		ValueOperand(control), ValueOperand(v1), ValueOperand(v2))
}

// Swizzle reorders the four 32-bit lanes of v. The identity mask becomes an
// assign.
func (b *Builder) Swizzle(v ValueID, part TypeName, mask uint32) ValueID {
	if part != Int32 && part != Float32 {
		contractf("swizzle", "part type is %s, want i32 or f32", part)
	}
	if mask == opcode.SwizzleXYZWToXYZW {
		return b.Assign(v)
	}
	return b.emitValue(opcode.Swizzle, uint16(part), b.typeOf("swizzle", v), ValueOperand(v), OffsetOperand(uint64(mask)))
}

func (b *Builder) Pack(v ValueID, packType opcode.PackType) ValueID {
	b.requireVec("pack", v)
	return b.emitValue(opcode.Pack, uint16(packType), Vec128, ValueOperand(v))
}

func (b *Builder) Unpack(v ValueID, packType opcode.PackType) ValueID {
	b.requireVec("unpack", v)
	return b.emitValue(opcode.Unpack, uint16(packType), Vec128, ValueOperand(v))
}

func (b *Builder) CompareExchange(addr, compareValue, exchangeValue ValueID) ValueID {
	b.requireAddress("compare_exchange", addr)
	b.requireIntPair("compare_exchange", compareValue, exchangeValue)
	return b.emitValue(opcode.CompareExchange, 0, b.Value(exchangeValue).Type,
		ValueOperand(addr), ValueOperand(compareValue), ValueOperand(exchangeValue))
}

func (b *Builder) atomic(op opcode.Opcode, addr, v ValueID) ValueID {
	b.requireAddress(op.String(), addr)
	b.requireInt(op.String(), v)
	return b.emitValue(op, 0, b.Value(v).Type, ValueOperand(addr), ValueOperand(v))
}

func (b *Builder) AtomicExchange(addr, v ValueID) ValueID {
	return b.atomic(opcode.AtomicExchange, addr, v)
}

func (b *Builder) AtomicAdd(addr, v ValueID) ValueID { return b.atomic(opcode.AtomicAdd, addr, v) }
func (b *Builder) AtomicSub(addr, v ValueID) ValueID { return b.atomic(opcode.AtomicSub, addr, v) }
