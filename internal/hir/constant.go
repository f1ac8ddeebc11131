package hir

import (
	"fmt"
	"math"
	"math/bits"

	"recomp/internal/opcode"
)

// Constant is an immutable compile-time payload. Fold helpers never modify
// their inputs; they return a new Constant.
type Constant struct {
	Type TypeName
	I    int64   // integer payload, sign-extended from Type's width
	F    float64 // float payload; float32 values are kept at float32 precision
	V    V128
}

// IntConstant returns an integer constant of type t holding v truncated to
// t's width.
func IntConstant(t TypeName, v int64) Constant {
	if !t.IsInt() {
		contractf("constant", "%s is not an integer type", t)
	}
	return Constant{Type: t, I: signExtend(v, t.Bits())}
}

// FloatConstant returns a float constant of type t.
func FloatConstant(t TypeName, f float64) Constant {
	if !t.IsFloat() {
		contractf("constant", "%s is not a float type", t)
	}
	return Constant{Type: t, F: roundFloat(t, f)}
}

// VecConstant returns a vector constant.
func VecConstant(v V128) Constant {
	return Constant{Type: Vec128, V: v}
}

// ZeroConstant returns the zero of type t.
func ZeroConstant(t TypeName) Constant {
	if !t.Valid() {
		contractf("constant", "invalid type %d", uint8(t))
	}
	return Constant{Type: t}
}

// Uint returns the integer payload zero-extended from the type's width.
func (c Constant) Uint() uint64 {
	return zeroExtend(c.I, c.Type.Bits())
}

// IsZero reports whether every bit of the payload is zero. A negative float
// zero is not zero.
func (c Constant) IsZero() bool {
	switch {
	case c.Type.IsInt():
		return c.I == 0
	case c.Type.IsFloat():
		return math.Float64bits(c.F) == 0
	default:
		return c.V.IsZero()
	}
}

func (c Constant) IsTrue() bool {
	if c.Type.IsFloat() {
		return c.F != 0
	}
	return !c.IsZero()
}

func (c Constant) IsFalse() bool { return !c.IsTrue() }

// String renders the constant the way dumps print it: integers as unsigned
// hex of their width, floats in decimal and vectors as float lanes.
func (c Constant) String() string {
	switch {
	case c.Type.IsInt():
		return fmt.Sprintf("%X", c.Uint())
	case c.Type.IsFloat():
		return fmt.Sprintf("%f", c.F)
	default:
		return fmt.Sprintf("(%f,%f,%f,%f)", c.V.Float(0), c.V.Float(1), c.V.Float(2), c.V.Float(3))
	}
}

func signExtend(v int64, width uint) int64 {
	if width >= 64 {
		return v
	}
	shift := 64 - width
	return v << shift >> shift
}

func zeroExtend(v int64, width uint) uint64 {
	if width >= 64 {
		return uint64(v)
	}
	return uint64(v) & (1<<width - 1)
}

func roundFloat(t TypeName, f float64) float64 {
	if t == Float32 {
		return float64(float32(f))
	}
	return f
}

func requireScalar(op string, c Constant) {
	if c.Type.IsVec() || !c.Type.Valid() {
		contractf(op, "cannot fold %s constant", c.Type)
	}
}

func requireInt(op string, c Constant) {
	if !c.Type.IsInt() {
		contractf(op, "cannot fold %s constant, want integer", c.Type)
	}
}

func requireSame(op string, a, b Constant) {
	if a.Type != b.Type {
		contractf(op, "constant type mismatch: %s vs %s", a.Type, b.Type)
	}
}

// Cast reinterprets the bits of c as type t. Source and target must have
// the same width.
func (c Constant) Cast(t TypeName) Constant {
	if c.Type == t {
		return c
	}
	if c.Type.Size() != t.Size() {
		contractf("cast", "cannot reinterpret %s as %s", c.Type, t)
	}
	switch {
	case c.Type == Int32 && t == Float32:
		return Constant{Type: t, F: float64(math.Float32frombits(uint32(c.I)))}
	case c.Type == Float32 && t == Int32:
		return Constant{Type: t, I: int64(int32(math.Float32bits(float32(c.F))))}
	case c.Type == Int64 && t == Float64:
		return Constant{Type: t, F: math.Float64frombits(uint64(c.I))}
	case c.Type == Float64 && t == Int64:
		return Constant{Type: t, I: int64(math.Float64bits(c.F))}
	default:
		contractf("cast", "cannot reinterpret %s as %s", c.Type, t)
		return Constant{}
	}
}

// ZeroExtend widens an integer constant, filling with zero bits.
func (c Constant) ZeroExtend(t TypeName) Constant {
	requireInt("zero_extend", c)
	if !t.IsInt() || t.Size() < c.Type.Size() {
		contractf("zero_extend", "cannot extend %s to %s", c.Type, t)
	}
	return IntConstant(t, int64(c.Uint()))
}

// SignExtend widens an integer constant, replicating the sign bit.
func (c Constant) SignExtend(t TypeName) Constant {
	requireInt("sign_extend", c)
	if !t.IsInt() || t.Size() < c.Type.Size() {
		contractf("sign_extend", "cannot extend %s to %s", c.Type, t)
	}
	return IntConstant(t, c.I)
}

// Truncate narrows an integer constant, keeping the low bits.
func (c Constant) Truncate(t TypeName) Constant {
	requireInt("truncate", c)
	if !t.IsInt() || t.Size() > c.Type.Size() {
		contractf("truncate", "cannot truncate %s to %s", c.Type, t)
	}
	return IntConstant(t, c.I)
}

// Convert performs a numeric conversion. Float to integer conversions round
// with mode and saturate at the target's signed range; NaN converts to zero.
func (c Constant) Convert(t TypeName, mode opcode.RoundMode) Constant {
	requireScalar("convert", c)
	if !t.Valid() || t.IsVec() {
		contractf("convert", "cannot convert to %s", t)
	}
	switch {
	case c.Type.IsInt() && t.IsInt():
		return IntConstant(t, c.I)
	case c.Type.IsInt() && t.IsFloat():
		return FloatConstant(t, float64(c.I))
	case c.Type.IsFloat() && t.IsFloat():
		return FloatConstant(t, c.F)
	default:
		return IntConstant(t, saturate(roundMode(c.F, mode), t))
	}
}

// Round rounds a float constant to an integral value in place of its type.
func (c Constant) Round(mode opcode.RoundMode) Constant {
	if !c.Type.IsFloat() {
		contractf("round", "cannot round %s constant", c.Type)
	}
	return FloatConstant(c.Type, roundMode(c.F, mode))
}

func roundMode(f float64, mode opcode.RoundMode) float64 {
	switch mode {
	case opcode.RoundToNearest:
		return math.RoundToEven(f)
	case opcode.RoundToMinusInfinity:
		return math.Floor(f)
	case opcode.RoundToPositiveInfinity:
		return math.Ceil(f)
	default:
		return math.Trunc(f)
	}
}

func saturate(f float64, t TypeName) int64 {
	if math.IsNaN(f) {
		return 0
	}
	width := t.Bits()
	hi := float64(int64(1)<<(width-1) - 1)
	lo := -float64(int64(1) << (width - 1))
	switch {
	case f >= hi:
		return int64(1)<<(width-1) - 1
	case f <= lo:
		return -(int64(1) << (width - 1))
	default:
		return int64(f)
	}
}

func binaryArith(op string, a, b Constant, ints func(x, y int64) int64, floats func(x, y float64) float64) Constant {
	requireScalar(op, a)
	requireSame(op, a, b)
	if a.Type.IsInt() {
		return IntConstant(a.Type, ints(a.I, b.I))
	}
	return FloatConstant(a.Type, floats(a.F, b.F))
}

func (a Constant) Add(b Constant) Constant {
	return binaryArith("add", a, b,
		func(x, y int64) int64 { return x + y },
		func(x, y float64) float64 { return x + y })
}

func (a Constant) Sub(b Constant) Constant {
	return binaryArith("sub", a, b,
		func(x, y int64) int64 { return x - y },
		func(x, y float64) float64 { return x - y })
}

func (a Constant) Mul(b Constant) Constant {
	return binaryArith("mul", a, b,
		func(x, y int64) int64 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div divides a by b. Integer division by zero is a contract violation;
// callers check the divisor first.
func (a Constant) Div(b Constant, unsigned bool) Constant {
	requireScalar("div", a)
	requireSame("div", a, b)
	if a.Type.IsFloat() {
		return FloatConstant(a.Type, a.F/b.F)
	}
	if b.IsZero() {
		contractf("div", "integer division by zero")
	}
	if unsigned {
		return IntConstant(a.Type, int64(a.Uint()/b.Uint()))
	}
	return IntConstant(a.Type, a.I/b.I)
}

func (c Constant) Neg() Constant {
	requireScalar("neg", c)
	if c.Type.IsInt() {
		return IntConstant(c.Type, -c.I)
	}
	return FloatConstant(c.Type, -c.F)
}

func (c Constant) Abs() Constant {
	requireScalar("abs", c)
	if c.Type.IsInt() {
		if c.I < 0 {
			return IntConstant(c.Type, -c.I)
		}
		return c
	}
	return FloatConstant(c.Type, math.Abs(c.F))
}

func (c Constant) Not() Constant {
	requireInt("not", c)
	return IntConstant(c.Type, ^c.I)
}

func bitwise(op string, a, b Constant, f func(x, y int64) int64) Constant {
	requireInt(op, a)
	requireSame(op, a, b)
	return IntConstant(a.Type, f(a.I, b.I))
}

func (a Constant) And(b Constant) Constant {
	return bitwise("and", a, b, func(x, y int64) int64 { return x & y })
}

func (a Constant) Or(b Constant) Constant {
	return bitwise("or", a, b, func(x, y int64) int64 { return x | y })
}

func (a Constant) Xor(b Constant) Constant {
	return bitwise("xor", a, b, func(x, y int64) int64 { return x ^ y })
}

// shiftAmount masks the shift count to the operand width.
func shiftAmount(a, n Constant) uint {
	requireInt("shift", n)
	return uint(n.Uint()) & (a.Type.Bits() - 1)
}

func (a Constant) Shl(n Constant) Constant {
	requireInt("shl", a)
	return IntConstant(a.Type, a.I<<shiftAmount(a, n))
}

// Shr is a logical right shift.
func (a Constant) Shr(n Constant) Constant {
	requireInt("shr", a)
	return IntConstant(a.Type, int64(a.Uint()>>shiftAmount(a, n)))
}

// Sha is an arithmetic right shift.
func (a Constant) Sha(n Constant) Constant {
	requireInt("sha", a)
	return IntConstant(a.Type, a.I>>shiftAmount(a, n))
}

func (a Constant) RotateLeft(n Constant) Constant {
	requireInt("rotate_left", a)
	k := int(shiftAmount(a, n))
	u := a.Uint()
	var r uint64
	switch a.Type {
	case Int8:
		r = uint64(bits.RotateLeft8(uint8(u), k))
	case Int16:
		r = uint64(bits.RotateLeft16(uint16(u), k))
	case Int32:
		r = uint64(bits.RotateLeft32(uint32(u), k))
	default:
		r = bits.RotateLeft64(u, k)
	}
	return IntConstant(a.Type, int64(r))
}

func (c Constant) ByteSwap() Constant {
	requireInt("byte_swap", c)
	u := c.Uint()
	var r uint64
	switch c.Type {
	case Int8:
		return c
	case Int16:
		r = uint64(bits.ReverseBytes16(uint16(u)))
	case Int32:
		r = uint64(bits.ReverseBytes32(uint32(u)))
	default:
		r = bits.ReverseBytes64(u)
	}
	return IntConstant(c.Type, int64(r))
}

// CountLeadingZeros returns an Int8 constant holding the number of leading
// zero bits of c within its width.
func (c Constant) CountLeadingZeros() Constant {
	requireInt("cntlz", c)
	u := c.Uint()
	var n int
	switch c.Type {
	case Int8:
		n = bits.LeadingZeros8(uint8(u))
	case Int16:
		n = bits.LeadingZeros16(uint16(u))
	case Int32:
		n = bits.LeadingZeros32(uint32(u))
	default:
		n = bits.LeadingZeros64(u)
	}
	return IntConstant(Int8, int64(n))
}

// Compare evaluates a compare_* opcode on a and b. Float operands use
// ordered comparison for both the signed and unsigned variants.
func (a Constant) Compare(op opcode.Opcode, b Constant) bool {
	name := op.String()
	requireSame(name, a, b)
	if a.Type.IsVec() {
		switch op {
		case opcode.CompareEQ:
			return a.V == b.V
		case opcode.CompareNE:
			return a.V != b.V
		}
		contractf(name, "cannot fold ordered compare of vectors")
	}
	if a.Type.IsFloat() {
		x, y := a.F, b.F
		switch op {
		case opcode.CompareEQ:
			return x == y
		case opcode.CompareNE:
			return x != y
		case opcode.CompareSLT, opcode.CompareULT:
			return x < y
		case opcode.CompareSLE, opcode.CompareULE:
			return x <= y
		case opcode.CompareSGT, opcode.CompareUGT:
			return x > y
		case opcode.CompareSGE, opcode.CompareUGE:
			return x >= y
		}
		contractf(name, "not a compare opcode")
	}
	x, y := a.I, b.I
	ux, uy := a.Uint(), b.Uint()
	switch op {
	case opcode.CompareEQ:
		return x == y
	case opcode.CompareNE:
		return x != y
	case opcode.CompareSLT:
		return x < y
	case opcode.CompareSLE:
		return x <= y
	case opcode.CompareSGT:
		return x > y
	case opcode.CompareSGE:
		return x >= y
	case opcode.CompareULT:
		return ux < uy
	case opcode.CompareULE:
		return ux <= uy
	case opcode.CompareUGT:
		return ux > uy
	case opcode.CompareUGE:
		return ux >= uy
	}
	contractf(name, "not a compare opcode")
	return false
}
