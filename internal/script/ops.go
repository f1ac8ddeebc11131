package script

import (
	"fmt"
	"sort"

	"recomp/internal/hir"
	"recomp/internal/opcode"
)

type handler func(r *runner, s *Step) error

// Ops returns the sorted names of every step op.
func Ops() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var ops = map[string]handler{
	// structure
	"block":        func(r *runner, _ *Step) error { r.b.AppendBlock(); return nil },
	"end_block":    func(r *runner, _ *Step) error { r.b.EndBlock(); return nil },
	"label":        markLabel,
	"insert_label": insertLabel,
	"comment":      func(r *runner, s *Step) error { r.b.Comment(s.Text); return nil },
	"nop":          func(r *runner, _ *Step) error { r.b.Nop(); return nil },
	"source_offset": func(r *runner, s *Step) error {
		r.b.SourceOffset(s.Offset)
		return nil
	},
	"trace_source": traceSource,
	"debug_break":  func(r *runner, _ *Step) error { r.b.DebugBreak(); return nil },
	"debug_break_true": sink1(func(b *hir.Builder, s *Step, v hir.ValueID) {
		b.DebugBreakTrue(v)
	}),
	"trap": func(r *runner, s *Step) error { r.b.Trap(s.Flags); return nil },
	"trap_true": sink1(func(b *hir.Builder, s *Step, v hir.ValueID) {
		b.TrapTrue(v, s.Flags)
	}),

	// control
	"call":          call,
	"call_true":     call,
	"call_extern":   call,
	"call_indirect": sink1(func(b *hir.Builder, s *Step, v hir.ValueID) { b.CallIndirect(v, s.Flags) }),
	"call_indirect_true": sink2(func(b *hir.Builder, s *Step, c, v hir.ValueID) {
		b.CallIndirectTrue(c, v, s.Flags)
	}),
	"return":             func(r *runner, _ *Step) error { r.b.Return(); return nil },
	"return_true":        sink1(func(b *hir.Builder, _ *Step, v hir.ValueID) { b.ReturnTrue(v) }),
	"set_return_address": sink1(func(b *hir.Builder, _ *Step, v hir.ValueID) { b.SetReturnAddress(v) }),
	"branch":             branch,
	"branch_true":        branch,
	"branch_false":       branch,

	// constants and memory
	"const":     constant,
	"load_zero": typed0(func(b *hir.Builder, t hir.TypeName) hir.ValueID { return b.LoadZero(t) }),
	"load_clock": func(r *runner, s *Step) error {
		if err := r.args(s, 0); err != nil {
			return err
		}
		return r.bind(s, r.b.LoadClock())
	},
	"load_vector_shl": unary((*hir.Builder).LoadVectorShl),
	"load_vector_shr": unary((*hir.Builder).LoadVectorShr),
	"load_local":      unary((*hir.Builder).LoadLocal),
	"store_local":     sink2(func(b *hir.Builder, _ *Step, slot, v hir.ValueID) { b.StoreLocal(slot, v) }),
	"load_context":    loadContext,
	"store_context":   sink1(func(b *hir.Builder, s *Step, v hir.ValueID) { b.StoreContext(s.Offset, v) }),
	"load": func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 1)
		if err != nil {
			return err
		}
		t, err := parseType(s.Type)
		if err != nil {
			return err
		}
		return r.bind(s, r.b.Load(vs[0], t, s.Flags))
	},
	"store":    sink2(func(b *hir.Builder, s *Step, addr, v hir.ValueID) { b.Store(addr, v, s.Flags) }),
	"prefetch": sink1(func(b *hir.Builder, s *Step, addr hir.ValueID) { b.Prefetch(addr, s.Offset, s.Flags) }),

	// data movement and conversion
	"assign":             unary((*hir.Builder).Assign),
	"cast":               typed1((*hir.Builder).Cast),
	"zero_extend":        typed1((*hir.Builder).ZeroExtend),
	"sign_extend":        typed1((*hir.Builder).SignExtend),
	"truncate":           typed1((*hir.Builder).Truncate),
	"splat":              typed1((*hir.Builder).Splat),
	"convert":            convert,
	"round":              round,
	"vector_convert_i2f": flagged1((*hir.Builder).VectorConvertI2F),
	"vector_convert_f2i": flagged1((*hir.Builder).VectorConvertF2I),

	// comparisons
	"select":             ternary((*hir.Builder).Select),
	"is_true":            unary((*hir.Builder).IsTrue),
	"is_false":           unary((*hir.Builder).IsFalse),
	"compare_eq":         binary((*hir.Builder).CompareEQ),
	"compare_ne":         binary((*hir.Builder).CompareNE),
	"compare_slt":        binary((*hir.Builder).CompareSLT),
	"compare_sle":        binary((*hir.Builder).CompareSLE),
	"compare_sgt":        binary((*hir.Builder).CompareSGT),
	"compare_sge":        binary((*hir.Builder).CompareSGE),
	"compare_ult":        binary((*hir.Builder).CompareULT),
	"compare_ule":        binary((*hir.Builder).CompareULE),
	"compare_ugt":        binary((*hir.Builder).CompareUGT),
	"compare_uge":        binary((*hir.Builder).CompareUGE),
	"did_carry":          unary((*hir.Builder).DidCarry),
	"did_overflow":       unary((*hir.Builder).DidOverflow),
	"did_saturate":       unary((*hir.Builder).DidSaturate),
	"max":                binary((*hir.Builder).Max),
	"min":                binary((*hir.Builder).Min),
	"vector_max":         vectorFlagged((*hir.Builder).VectorMax),
	"vector_min":         vectorFlagged((*hir.Builder).VectorMin),
	"vector_compare_eq":  vector((*hir.Builder).VectorCompareEQ),
	"vector_compare_sgt": vector((*hir.Builder).VectorCompareSGT),
	"vector_compare_sge": vector((*hir.Builder).VectorCompareSGE),
	"vector_compare_ugt": vector((*hir.Builder).VectorCompareUGT),
	"vector_compare_uge": vector((*hir.Builder).VectorCompareUGE),

	// arithmetic
	"add":           flagged2((*hir.Builder).Add),
	"sub":           flagged2((*hir.Builder).Sub),
	"mul":           flagged2((*hir.Builder).Mul),
	"mul_hi":        flagged2((*hir.Builder).MulHi),
	"div":           flagged2((*hir.Builder).Div),
	"add_carry":     addCarry,
	"mul_add":       ternary((*hir.Builder).MulAdd),
	"mul_sub":       ternary((*hir.Builder).MulSub),
	"neg":           unary((*hir.Builder).Neg),
	"abs":           unary((*hir.Builder).Abs),
	"sqrt":          unary((*hir.Builder).Sqrt),
	"rsqrt":         unary((*hir.Builder).RSqrt),
	"pow2":          unary((*hir.Builder).Pow2),
	"log2":          unary((*hir.Builder).Log2),
	"dot_product_3": binary((*hir.Builder).DotProduct3),
	"dot_product_4": binary((*hir.Builder).DotProduct4),
	"vector_add":    vectorFlagged((*hir.Builder).VectorAdd),
	"vector_sub":    vectorFlagged((*hir.Builder).VectorSub),

	// bitwise
	"and":                binary((*hir.Builder).And),
	"or":                 binary((*hir.Builder).Or),
	"xor":                binary((*hir.Builder).Xor),
	"not":                unary((*hir.Builder).Not),
	"shl":                binary((*hir.Builder).Shl),
	"shr":                binary((*hir.Builder).Shr),
	"sha":                binary((*hir.Builder).Sha),
	"rotate_left":        binary((*hir.Builder).RotateLeft),
	"vector_shl":         vector((*hir.Builder).VectorShl),
	"vector_shr":         vector((*hir.Builder).VectorShr),
	"vector_sha":         vector((*hir.Builder).VectorSha),
	"vector_rotate_left": vector((*hir.Builder).VectorRotateLeft),
	"byte_swap":          unary((*hir.Builder).ByteSwap),
	"cntlz":              unary((*hir.Builder).CountLeadingZeros),

	// vector lanes
	"insert":  ternary((*hir.Builder).Insert),
	"extract": extract,
	"permute": permute,
	"swizzle": swizzle,
	"pack":    packed((*hir.Builder).Pack),
	"unpack":  packed((*hir.Builder).Unpack),

	// atomics
	"compare_exchange": ternary((*hir.Builder).CompareExchange),
	"atomic_exchange":  binary((*hir.Builder).AtomicExchange),
	"atomic_add":       binary((*hir.Builder).AtomicAdd),
	"atomic_sub":       binary((*hir.Builder).AtomicSub),
}

func unary(f func(*hir.Builder, hir.ValueID) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 1)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0]))
	}
}

func binary(f func(*hir.Builder, hir.ValueID, hir.ValueID) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 2)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], vs[1]))
	}
}

func ternary(f func(*hir.Builder, hir.ValueID, hir.ValueID, hir.ValueID) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 3)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], vs[1], vs[2]))
	}
}

func flagged1(f func(*hir.Builder, hir.ValueID, uint16) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 1)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], s.Flags))
	}
}

func flagged2(f func(*hir.Builder, hir.ValueID, hir.ValueID, uint16) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 2)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], vs[1], s.Flags))
	}
}

func typed0(f func(*hir.Builder, hir.TypeName) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		if err := r.args(s, 0); err != nil {
			return err
		}
		t, err := parseType(s.Type)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, t))
	}
}

func typed1(f func(*hir.Builder, hir.ValueID, hir.TypeName) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 1)
		if err != nil {
			return err
		}
		t, err := parseType(s.Type)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], t))
	}
}

func partOf(s *Step) (hir.TypeName, error) {
	if s.Part == "" {
		return 0, fmt.Errorf("missing lane part type")
	}
	return parseType(s.Part)
}

func vector(f func(*hir.Builder, hir.ValueID, hir.ValueID, hir.TypeName) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 2)
		if err != nil {
			return err
		}
		part, err := partOf(s)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], vs[1], part))
	}
}

func vectorFlagged(f func(*hir.Builder, hir.ValueID, hir.ValueID, hir.TypeName, uint16) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 2)
		if err != nil {
			return err
		}
		part, err := partOf(s)
		if err != nil {
			return err
		}
		return r.bind(s, f(r.b, vs[0], vs[1], part, s.Flags))
	}
}

func packed(f func(*hir.Builder, hir.ValueID, opcode.PackType) hir.ValueID) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 1)
		if err != nil {
			return err
		}
		pt, ok := opcode.ParsePackType(s.Pack)
		if !ok {
			return fmt.Errorf("unknown pack type %q", s.Pack)
		}
		return r.bind(s, f(r.b, vs[0], pt))
	}
}

// sink1 and sink2 adapt emitters that produce no value.
func sink1(f func(*hir.Builder, *Step, hir.ValueID)) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 1)
		if err != nil {
			return err
		}
		f(r.b, s, vs[0])
		return nil
	}
}

func sink2(f func(*hir.Builder, *Step, hir.ValueID, hir.ValueID)) handler {
	return func(r *runner, s *Step) error {
		vs, err := r.valueArgs(s, 2)
		if err != nil {
			return err
		}
		f(r.b, s, vs[0], vs[1])
		return nil
	}
}

func loadContext(r *runner, s *Step) error {
	if err := r.args(s, 0); err != nil {
		return err
	}
	t, err := parseType(s.Type)
	if err != nil {
		return err
	}
	return r.bind(s, r.b.LoadContext(s.Offset, t))
}

func constant(r *runner, s *Step) error {
	if err := r.args(s, 1); err != nil {
		return err
	}
	c, err := parseLiteral(s.Args[0])
	if err != nil {
		return err
	}
	return r.bind(s, r.b.LoadConstant(c))
}

func convert(r *runner, s *Step) error {
	vs, err := r.valueArgs(s, 1)
	if err != nil {
		return err
	}
	t, err := parseType(s.Type)
	if err != nil {
		return err
	}
	mode, err := parseRound(s.Round)
	if err != nil {
		return err
	}
	return r.bind(s, r.b.Convert(vs[0], t, mode))
}

func round(r *runner, s *Step) error {
	vs, err := r.valueArgs(s, 1)
	if err != nil {
		return err
	}
	mode, err := parseRound(s.Round)
	if err != nil {
		return err
	}
	return r.bind(s, r.b.Round(vs[0], mode))
}

func addCarry(r *runner, s *Step) error {
	vs, err := r.valueArgs(s, 3)
	if err != nil {
		return err
	}
	return r.bind(s, r.b.AddWithCarry(vs[0], vs[1], vs[2], s.Flags))
}

func extract(r *runner, s *Step) error {
	vs, err := r.valueArgs(s, 2)
	if err != nil {
		return err
	}
	t, err := parseType(s.Type)
	if err != nil {
		return err
	}
	return r.bind(s, r.b.Extract(vs[0], vs[1], t))
}

func permute(r *runner, s *Step) error {
	vs, err := r.valueArgs(s, 3)
	if err != nil {
		return err
	}
	part, err := partOf(s)
	if err != nil {
		return err
	}
	return r.bind(s, r.b.Permute(vs[0], vs[1], vs[2], part))
}

// swizzle takes its lane mask from offset.
func swizzle(r *runner, s *Step) error {
	vs, err := r.valueArgs(s, 1)
	if err != nil {
		return err
	}
	part, err := partOf(s)
	if err != nil {
		return err
	}
	if s.Offset > 0xFF {
		return fmt.Errorf("swizzle mask %#x exceeds 8 bits", s.Offset)
	}
	return r.bind(s, r.b.Swizzle(vs[0], part, uint32(s.Offset)))
}

func traceSource(r *runner, s *Step) error {
	vs, err := r.valueArgsUpTo(s, 2)
	if err != nil {
		return err
	}
	switch len(vs) {
	case 0:
		r.b.TraceSource(s.Offset)
	case 1:
		r.b.TraceSourceValue(s.Offset, 0, vs[0])
	default:
		r.b.TraceSourceValues(s.Offset, 0, vs[0], 1, vs[1])
	}
	return nil
}

func (r *runner) valueArgsUpTo(s *Step, n int) ([]hir.ValueID, error) {
	if len(s.Args) > n {
		return nil, fmt.Errorf("want at most %d args, got %d", n, len(s.Args))
	}
	return r.valueArgs(s, len(s.Args))
}

func markLabel(r *runner, s *Step) error {
	if err := r.args(s, 1); err != nil {
		return err
	}
	l, err := r.label(s.Args[0])
	if err != nil {
		return err
	}
	r.b.MarkLabel(l, hir.NoBlock)
	return nil
}

// insertLabel places args[0] directly after the instruction defining
// args[1], splitting its block.
func insertLabel(r *runner, s *Step) error {
	if err := r.args(s, 2); err != nil {
		return err
	}
	l, err := r.label(s.Args[0])
	if err != nil {
		return err
	}
	v, err := r.value(s.Args[1])
	if err != nil {
		return err
	}
	def := r.b.Value(v).Def
	if !def.IsValid() {
		return fmt.Errorf("%q has no defining instruction", s.Args[1])
	}
	r.b.InsertLabel(l, def)
	return nil
}

// call covers call, call_true and call_extern: the symbol is the last arg
// and call_true takes its condition first.
func call(r *runner, s *Step) error {
	want := 1
	if s.Op == "call_true" {
		want = 2
	}
	if err := r.args(s, want); err != nil {
		return err
	}
	fn, err := r.symbol(s.Args[want-1])
	if err != nil {
		return err
	}
	switch s.Op {
	case "call_true":
		cond, err := r.value(s.Args[0])
		if err != nil {
			return err
		}
		r.b.CallTrue(cond, fn, s.Flags)
	case "call_extern":
		r.b.CallExtern(fn)
	default:
		r.b.Call(fn, s.Flags)
	}
	return nil
}

// branch covers branch, branch_true and branch_false.
func branch(r *runner, s *Step) error {
	want := 2
	if s.Op == "branch" {
		want = 1
	}
	if err := r.args(s, want); err != nil {
		return err
	}
	l, err := r.label(s.Args[want-1])
	if err != nil {
		return err
	}
	if s.Op == "branch" {
		r.b.Branch(l, s.Flags)
		return nil
	}
	cond, err := r.value(s.Args[0])
	if err != nil {
		return err
	}
	if s.Op == "branch_true" {
		r.b.BranchTrue(cond, l, s.Flags)
	} else {
		r.b.BranchFalse(cond, l, s.Flags)
	}
	return nil
}
