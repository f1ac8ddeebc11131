// Package opcode is the static catalog of HIR operations.
//
// Each entry records the operation's name, its shape flags and an operand
// signature. The table is built once at init time and never mutated; the
// builder only reads it.
package opcode

import "fmt"

// Opcode identifies a HIR operation.
type Opcode uint16

const (
	Comment Opcode = iota
	Nop
	SourceOffset
	TraceSource
	DebugBreak
	DebugBreakTrue
	Trap
	TrapTrue
	Call
	CallTrue
	CallIndirect
	CallIndirectTrue
	CallExtern
	Return
	ReturnTrue
	SetReturnAddress
	Branch
	BranchTrue
	BranchFalse
	Assign
	Cast
	ZeroExtend
	SignExtend
	Truncate
	Convert
	Round
	VectorConvertI2F
	VectorConvertF2I
	LoadVectorShl
	LoadVectorShr
	LoadClock
	LoadLocal
	StoreLocal
	LoadContext
	StoreContext
	Load
	Store
	Prefetch
	Max
	VectorMax
	Min
	VectorMin
	Select
	IsTrue
	IsFalse
	CompareEQ
	CompareNE
	CompareSLT
	CompareSLE
	CompareSGT
	CompareSGE
	CompareULT
	CompareULE
	CompareUGT
	CompareUGE
	DidCarry
	DidOverflow
	DidSaturate
	VectorCompareEQ
	VectorCompareSGT
	VectorCompareSGE
	VectorCompareUGT
	VectorCompareUGE
	Add
	AddCarry
	VectorAdd
	Sub
	VectorSub
	Mul
	MulHi
	Div
	MulAdd
	MulSub
	Neg
	Abs
	Sqrt
	RSqrt
	Pow2
	Log2
	DotProduct3
	DotProduct4
	And
	Or
	Xor
	Not
	Shl
	VectorShl
	Shr
	VectorShr
	Sha
	VectorSha
	RotateLeft
	VectorRotateLeft
	ByteSwap
	Cntlz
	Insert
	Extract
	Splat
	Permute
	Swizzle
	Pack
	Unpack
	CompareExchange
	AtomicExchange
	AtomicAdd
	AtomicSub

	numOpcodes // keep last
)

// Flags describe the shape and side effects of an operation.
type Flags uint32

const (
	FlagBranch      Flags = 1 << 1
	FlagMemory      Flags = 1 << 2
	FlagCommutative Flags = 1 << 3
	FlagVolatile    Flags = 1 << 4
	FlagIgnore      Flags = 1 << 5
	FlagHide        Flags = 1 << 6
	FlagPairedPrev  Flags = 1 << 7
)

// Has reports whether all bits of mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// String returns the flag names joined with '|'.
func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	names := []struct {
		bit  Flags
		name string
	}{
		{FlagBranch, "branch"},
		{FlagMemory, "memory"},
		{FlagCommutative, "commutative"},
		{FlagVolatile, "volatile"},
		{FlagIgnore, "ignore"},
		{FlagHide, "hide"},
		{FlagPairedPrev, "paired-prev"},
	}
	out := ""
	for _, n := range names {
		if f&n.bit == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
	}
	return out
}

// Info is one catalog entry.
type Info struct {
	Num       Opcode
	Name      string
	Flags     Flags
	Signature Signature
}

var (
	table  [numOpcodes]Info
	byName map[string]Opcode
)

func def(num Opcode, name string, sig Signature, flags Flags) {
	table[num] = Info{Num: num, Name: name, Flags: flags, Signature: sig}
}

func init() {
	def(Comment, "comment", SigXO, FlagIgnore)
	def(Nop, "nop", SigX, FlagIgnore)
	def(SourceOffset, "source_offset", SigXO, FlagIgnore|FlagHide)
	def(TraceSource, "trace_source", SigXOVV, FlagVolatile)
	def(DebugBreak, "debug_break", SigX, FlagVolatile)
	def(DebugBreakTrue, "debug_break_true", SigXV, FlagVolatile)
	def(Trap, "trap", SigX, FlagVolatile)
	def(TrapTrue, "trap_true", SigXV, FlagVolatile)
	def(Call, "call", SigXS, FlagBranch)
	def(CallTrue, "call_true", SigXVS, FlagBranch)
	def(CallIndirect, "call_indirect", SigXV, FlagBranch)
	def(CallIndirectTrue, "call_indirect_true", SigXVV, FlagBranch)
	def(CallExtern, "call_extern", SigXS, FlagBranch)
	def(Return, "return", SigX, FlagBranch)
	def(ReturnTrue, "return_true", SigXV, FlagBranch)
	def(SetReturnAddress, "set_return_address", SigXV, 0)
	def(Branch, "branch", SigXL, FlagBranch)
	def(BranchTrue, "branch_true", SigXVL, FlagBranch)
	def(BranchFalse, "branch_false", SigXVL, FlagBranch)
	def(Assign, "assign", SigVV, 0)
	def(Cast, "cast", SigVV, 0)
	def(ZeroExtend, "zero_extend", SigVV, 0)
	def(SignExtend, "sign_extend", SigVV, 0)
	def(Truncate, "truncate", SigVV, 0)
	def(Convert, "convert", SigVV, 0)
	def(Round, "round", SigVV, 0)
	def(VectorConvertI2F, "vector_convert_i2f", SigVV, 0)
	def(VectorConvertF2I, "vector_convert_f2i", SigVV, 0)
	def(LoadVectorShl, "load_vector_shl", SigVV, 0)
	def(LoadVectorShr, "load_vector_shr", SigVV, 0)
	def(LoadClock, "load_clock", SigV, 0)
	def(LoadLocal, "load_local", SigVV, 0)
	def(StoreLocal, "store_local", SigXVV, 0)
	def(LoadContext, "load_context", SigVO, 0)
	def(StoreContext, "store_context", SigXOV, 0)
	def(Load, "load", SigVV, FlagMemory)
	def(Store, "store", SigXVV, FlagMemory)
	def(Prefetch, "prefetch", SigXVO, 0)
	def(Max, "max", SigVVV, 0)
	def(VectorMax, "vector_max", SigVVV, 0)
	def(Min, "min", SigVVV, 0)
	def(VectorMin, "vector_min", SigVVV, 0)
	def(Select, "select", SigVVVV, 0)
	def(IsTrue, "is_true", SigVV, 0)
	def(IsFalse, "is_false", SigVV, 0)
	def(CompareEQ, "compare_eq", SigVVV, FlagCommutative)
	def(CompareNE, "compare_ne", SigVVV, FlagCommutative)
	def(CompareSLT, "compare_slt", SigVVV, 0)
	def(CompareSLE, "compare_sle", SigVVV, 0)
	def(CompareSGT, "compare_sgt", SigVVV, 0)
	def(CompareSGE, "compare_sge", SigVVV, 0)
	def(CompareULT, "compare_ult", SigVVV, 0)
	def(CompareULE, "compare_ule", SigVVV, 0)
	def(CompareUGT, "compare_ugt", SigVVV, 0)
	def(CompareUGE, "compare_uge", SigVVV, 0)
	def(DidCarry, "did_carry", SigVV, FlagPairedPrev)
	def(DidOverflow, "did_overflow", SigVV, FlagPairedPrev)
	def(DidSaturate, "did_saturate", SigVV, FlagPairedPrev)
	def(VectorCompareEQ, "vector_compare_eq", SigVVV, FlagCommutative)
	def(VectorCompareSGT, "vector_compare_sgt", SigVVV, 0)
	def(VectorCompareSGE, "vector_compare_sge", SigVVV, 0)
	def(VectorCompareUGT, "vector_compare_ugt", SigVVV, 0)
	def(VectorCompareUGE, "vector_compare_uge", SigVVV, 0)
	def(Add, "add", SigVVV, FlagCommutative)
	def(AddCarry, "add_carry", SigVVVV, FlagCommutative)
	def(VectorAdd, "vector_add", SigVVV, FlagCommutative)
	def(Sub, "sub", SigVVV, 0)
	def(VectorSub, "vector_sub", SigVVV, 0)
	def(Mul, "mul", SigVVV, FlagCommutative)
	def(MulHi, "mul_hi", SigVVV, FlagCommutative)
	def(Div, "div", SigVVV, 0)
	def(MulAdd, "mul_add", SigVVVV, 0)
	def(MulSub, "mul_sub", SigVVVV, 0)
	def(Neg, "neg", SigVV, 0)
	def(Abs, "abs", SigVV, 0)
	def(Sqrt, "sqrt", SigVV, 0)
	def(RSqrt, "rsqrt", SigVV, 0)
	def(Pow2, "pow2", SigVV, 0)
	def(Log2, "log2", SigVV, 0)
	def(DotProduct3, "dot_product_3", SigVVV, 0)
	def(DotProduct4, "dot_product_4", SigVVV, 0)
	def(And, "and", SigVVV, FlagCommutative)
	def(Or, "or", SigVVV, FlagCommutative)
	def(Xor, "xor", SigVVV, FlagCommutative)
	def(Not, "not", SigVV, 0)
	def(Shl, "shl", SigVVV, 0)
	def(VectorShl, "vector_shl", SigVVV, 0)
	def(Shr, "shr", SigVVV, 0)
	def(VectorShr, "vector_shr", SigVVV, 0)
	def(Sha, "sha", SigVVV, 0)
	def(VectorSha, "vector_sha", SigVVV, 0)
	def(RotateLeft, "rotate_left", SigVVV, 0)
	def(VectorRotateLeft, "vector_rotate_left", SigVVV, 0)
	def(ByteSwap, "byte_swap", SigVV, 0)
	def(Cntlz, "cntlz", SigVV, 0)
	def(Insert, "insert", SigVVVV, 0)
	def(Extract, "extract", SigVVV, 0)
	def(Splat, "splat", SigVV, 0)
	def(Permute, "permute", SigVVVV, 0)
	def(Swizzle, "swizzle", SigVVO, 0)
	def(Pack, "pack", SigVV, 0)
	def(Unpack, "unpack", SigVV, 0)
	def(CompareExchange, "compare_exchange", SigVVVV, FlagVolatile)
	def(AtomicExchange, "atomic_exchange", SigVVV, FlagVolatile)
	def(AtomicAdd, "atomic_add", SigVVV, 0)
	def(AtomicSub, "atomic_sub", SigVVV, 0)

	byName = make(map[string]Opcode, len(table))
	for i := range table {
		if table[i].Name == "" {
			panic(fmt.Errorf("opcode: %d has no catalog entry", i))
		}
		byName[table[i].Name] = table[i].Num
	}
}

// Lookup returns the catalog entry for op. The entry must not be modified.
func Lookup(op Opcode) *Info {
	if op >= numOpcodes {
		panic(fmt.Errorf("opcode: unknown opcode %d", op))
	}
	return &table[op]
}

// ByName resolves a catalog name such as "compare_slt".
func ByName(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

// All returns every catalog entry in opcode order.
func All() []Info {
	out := make([]Info, len(table))
	copy(out, table[:])
	return out
}

// Count returns the number of opcodes in the catalog.
func Count() int { return int(numOpcodes) }

func (op Opcode) String() string {
	if op >= numOpcodes {
		return fmt.Sprintf("opcode(%d)", uint16(op))
	}
	return table[op].Name
}
