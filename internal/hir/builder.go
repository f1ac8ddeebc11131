package hir

import (
	"iter"

	"go.uber.org/zap"

	"recomp/internal/arena"
	"recomp/internal/opcode"
)

// Function attributes.
const (
	AttribInline uint32 = 1 << 1
)

// Builder constructs the IR of one function. It is not safe for concurrent
// use. Reset invalidates every handle it returned.
type Builder struct {
	blocks *arena.Arena[Block]
	instrs *arena.Arena[Instr]
	labels *arena.Arena[Label]
	edges  *arena.Arena[Edge]
	values *arena.Arena[Value]
	uses   *arena.Arena[Use]

	comments []string
	locals   []ValueID

	attributes       uint32
	nextLabelID      uint32
	nextValueOrdinal uint32
	nextBlockOrdinal uint32

	blockHead BlockID
	blockTail BlockID
	current   BlockID
	finalized bool

	log *zap.Logger
}

type options struct {
	capacity  uint
	debugFill bool
	log       *zap.Logger
}

// Option configures a Builder.
type Option func(*options)

// WithCapacity pre-sizes the arenas for roughly n instructions.
func WithCapacity(n uint) Option {
	return func(o *options) { o.capacity = n }
}

// WithDebugFill zeroes arena storage on Reset so stale handles read zero
// nodes.
func WithDebugFill(enabled bool) Option {
	return func(o *options) { o.debugFill = enabled }
}

// WithLogger overrides the package logger for this builder.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func New(opts ...Option) *Builder {
	o := options{capacity: 256}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = Logger()
	}
	b := &Builder{
		blocks: arena.New[Block](o.capacity / 8),
		instrs: arena.New[Instr](o.capacity),
		labels: arena.New[Label](o.capacity / 8),
		edges:  arena.New[Edge](o.capacity / 8),
		values: arena.New[Value](o.capacity),
		uses:   arena.New[Use](o.capacity * 2),
		log:    o.log,
	}
	b.blocks.SetDebugFill(o.debugFill)
	b.instrs.SetDebugFill(o.debugFill)
	b.labels.SetDebugFill(o.debugFill)
	b.edges.SetDebugFill(o.debugFill)
	b.values.SetDebugFill(o.debugFill)
	b.uses.SetDebugFill(o.debugFill)
	return b
}

// Reset drops every node so the builder can start a new function.
func (b *Builder) Reset() {
	b.blocks.Reset()
	b.instrs.Reset()
	b.labels.Reset()
	b.edges.Reset()
	b.values.Reset()
	b.uses.Reset()
	b.comments = b.comments[:0]
	b.locals = b.locals[:0]
	b.attributes = 0
	b.nextLabelID = 0
	b.nextValueOrdinal = 0
	b.nextBlockOrdinal = 0
	b.blockHead, b.blockTail, b.current = NoBlock, NoBlock, NoBlock
	b.finalized = false
}

func (b *Builder) Attributes() uint32         { return b.attributes }
func (b *Builder) SetAttributes(attrs uint32) { b.attributes = attrs }

// Locals returns the local slots in allocation order.
func (b *Builder) Locals() []ValueID { return b.locals }

// MaxValueOrdinal returns the number of values allocated so far.
func (b *Builder) MaxValueOrdinal() uint32 { return b.nextValueOrdinal }

func (b *Builder) FirstBlock() BlockID   { return b.blockHead }
func (b *Builder) LastBlock() BlockID    { return b.blockTail }
func (b *Builder) CurrentBlock() BlockID { return b.current }
func (b *Builder) Finalized() bool       { return b.finalized }

// LastInstr returns the tail of the current block, or of the last block
// when no block is current.
func (b *Builder) LastInstr() InstrID {
	if b.current.IsValid() {
		if tail := b.Block(b.current).InstrTail; tail.IsValid() {
			return tail
		}
	}
	if b.blockTail.IsValid() {
		return b.Block(b.blockTail).InstrTail
	}
	return NoInstr
}

// Block returns the node behind id; nil for NoBlock. Pointers stay valid
// until Reset.
func (b *Builder) Block(id BlockID) *Block { return b.blocks.Get(uint32(id)) }
func (b *Builder) Instr(id InstrID) *Instr { return b.instrs.Get(uint32(id)) }
func (b *Builder) Label(id LabelID) *Label { return b.labels.Get(uint32(id)) }
func (b *Builder) Edge(id EdgeID) *Edge    { return b.edges.Get(uint32(id)) }
func (b *Builder) Value(id ValueID) *Value { return b.values.Get(uint32(id)) }
func (b *Builder) Use(id UseID) *Use       { return b.uses.Get(uint32(id)) }

// CommentText returns the text of a comment instruction.
func (b *Builder) CommentText(id InstrID) string {
	in := b.Instr(id)
	if in == nil || in.Opcode != opcode.Comment {
		return ""
	}
	idx := in.Src[0].Offset
	if idx >= uint64(len(b.comments)) {
		return ""
	}
	return b.comments[idx]
}

// BlockCount returns the number of blocks in program order.
func (b *Builder) BlockCount() int {
	n := 0
	for range b.Blocks() {
		n++
	}
	return n
}

// Blocks iterates blocks in program order.
func (b *Builder) Blocks() iter.Seq[BlockID] {
	return func(yield func(BlockID) bool) {
		for id := b.blockHead; id.IsValid(); id = b.Block(id).Next {
			if !yield(id) {
				return
			}
		}
	}
}

// BlockInstrs iterates the instructions of blk in order.
func (b *Builder) BlockInstrs(blk BlockID) iter.Seq[InstrID] {
	return func(yield func(InstrID) bool) {
		for id := b.Block(blk).InstrHead; id.IsValid(); id = b.Instr(id).Next {
			if !yield(id) {
				return
			}
		}
	}
}

func (b *Builder) BlockLabels(blk BlockID) iter.Seq[LabelID] {
	return func(yield func(LabelID) bool) {
		for id := b.Block(blk).LabelHead; id.IsValid(); id = b.Label(id).Next {
			if !yield(id) {
				return
			}
		}
	}
}

func (b *Builder) Incoming(blk BlockID) iter.Seq[EdgeID] {
	return func(yield func(EdgeID) bool) {
		for id := b.Block(blk).IncomingHead; id.IsValid(); id = b.Edge(id).IncomingNext {
			if !yield(id) {
				return
			}
		}
	}
}

func (b *Builder) Outgoing(blk BlockID) iter.Seq[EdgeID] {
	return func(yield func(EdgeID) bool) {
		for id := b.Block(blk).OutgoingHead; id.IsValid(); id = b.Edge(id).OutgoingNext {
			if !yield(id) {
				return
			}
		}
	}
}

// Uses iterates the operand slots reading v, most recent first.
func (b *Builder) Uses(v ValueID) iter.Seq[UseID] {
	return func(yield func(UseID) bool) {
		for id := b.Value(v).UseHead; id.IsValid(); id = b.Use(id).Next {
			if !yield(id) {
				return
			}
		}
	}
}

// AppendBlock adds an empty block at the end of program order and makes it
// current.
func (b *Builder) AppendBlock() BlockID {
	id := BlockID(b.blocks.Allocate(Block{Ordinal: b.nextBlockOrdinal, Prev: b.blockTail}))
	b.nextBlockOrdinal++
	if b.blockTail.IsValid() {
		b.Block(b.blockTail).Next = id
	}
	b.blockTail = id
	if !b.blockHead.IsValid() {
		b.blockHead = id
	}
	b.current = id
	return id
}

// EndBlock closes the current builder position. An empty current block is
// kept current since it likely already has an incoming edge.
func (b *Builder) EndBlock() {
	if b.current.IsValid() && !b.Block(b.current).InstrTail.IsValid() {
		return
	}
	b.current = NoBlock
}

// IsUnconditionalJump reports whether control never continues past id:
// a branch, a return or a tail call.
func (b *Builder) IsUnconditionalJump(id InstrID) bool {
	in := b.Instr(id)
	switch in.Opcode {
	case opcode.Call, opcode.CallIndirect:
		return in.Flags&opcode.CallTail != 0
	case opcode.Branch, opcode.Return:
		return true
	default:
		return false
	}
}

func (b *Builder) allocValue(t TypeName) ValueID {
	id := ValueID(b.values.Allocate(Value{
		Ordinal: b.nextValueOrdinal,
		Type:    t,
		Reg:     RegAssignment{Index: -1},
	}))
	b.nextValueOrdinal++
	return id
}

func (b *Builder) constValue(c Constant) ValueID {
	id := b.allocValue(c.Type)
	b.Value(id).Constant = &c
	return id
}

// val resolves a value operand, rejecting stale or zero handles.
func (b *Builder) val(op string, id ValueID) *Value {
	if !b.values.Valid(uint32(id)) {
		contractf(op, "invalid value handle %d", id)
	}
	return b.Value(id)
}

func (b *Builder) typeOf(op string, id ValueID) TypeName {
	return b.val(op, id).Type
}

// checkShape validates operands against the catalog signature of op.
func (b *Builder) checkShape(op opcode.Opcode, hasDest bool, srcs []Operand) {
	info := opcode.Lookup(op)
	sig := info.Signature
	if (sig.Dest() == opcode.SigTypeV) != hasDest {
		contractf(info.Name, "destination presence does not match signature %s", sig)
	}
	if len(srcs) > 3 {
		contractf(info.Name, "%d operands, at most 3 allowed", len(srcs))
	}
	for i := range 3 {
		kind := OperandNone
		if i < len(srcs) {
			kind = srcs[i].Kind
		}
		if want := OperandKind(sig.Src(i)); kind != want {
			contractf(info.Name, "operand %d is %s, signature %s wants %s", i+1, kind, sig, want)
		}
		if i >= len(srcs) {
			continue
		}
		switch s := srcs[i]; s.Kind {
		case OperandValue:
			b.val(info.Name, s.Value)
		case OperandLabel:
			if !b.labels.Valid(uint32(s.Label)) {
				contractf(info.Name, "invalid label handle %d", s.Label)
			}
		case OperandSymbol:
			if s.Symbol == nil {
				contractf(info.Name, "nil symbol operand")
			}
		}
	}
}

// appendInstr links a new instruction at the end of the current block,
// starting a block if none is current, and records def/use links.
func (b *Builder) appendInstr(op opcode.Opcode, flags uint16, dest ValueID, srcs []Operand) InstrID {
	if !b.current.IsValid() {
		b.AppendBlock()
	}
	blk := b.Block(b.current)
	in := Instr{Opcode: op, Flags: flags, Dest: dest, Prev: blk.InstrTail, Block: b.current}
	copy(in.Src[:], srcs)
	id := InstrID(b.instrs.Allocate(in))
	if blk.InstrTail.IsValid() {
		b.Instr(blk.InstrTail).Next = id
	} else {
		blk.InstrHead = id
	}
	blk.InstrTail = id
	if dest.IsValid() {
		b.Value(dest).Def = id
	}
	for slot, s := range srcs {
		if s.Kind == OperandValue {
			b.Instr(id).SrcUse[slot] = b.addUse(s.Value, id, uint8(slot))
		}
	}
	return id
}

func (b *Builder) addUse(v ValueID, in InstrID, slot uint8) UseID {
	val := b.Value(v)
	id := UseID(b.uses.Allocate(Use{Value: v, Instr: in, Slot: slot, Next: val.UseHead}))
	if val.UseHead.IsValid() {
		b.Use(val.UseHead).Prev = id
	}
	val.UseHead = id
	return id
}

func (b *Builder) removeUse(id UseID) {
	u := b.Use(id)
	if u.Prev.IsValid() {
		b.Use(u.Prev).Next = u.Next
	} else {
		b.Value(u.Value).UseHead = u.Next
	}
	if u.Next.IsValid() {
		b.Use(u.Next).Prev = u.Prev
	}
	u.Prev, u.Next = NoUse, NoUse
}

// emitValue appends op producing a fresh value of type t.
func (b *Builder) emitValue(op opcode.Opcode, flags uint16, t TypeName, srcs ...Operand) ValueID {
	b.checkShape(op, true, srcs)
	dest := b.allocValue(t)
	b.appendInstr(op, flags, dest, srcs)
	return dest
}

// emitVoid appends op without a destination.
func (b *Builder) emitVoid(op opcode.Opcode, flags uint16, srcs ...Operand) InstrID {
	b.checkShape(op, false, srcs)
	return b.appendInstr(op, flags, NoValue, srcs)
}

func (b *Builder) requireAddress(op string, v ValueID) {
	if t := b.typeOf(op, v); t != Int32 && t != Int64 {
		contractf(op, "address operand is %s, want i32 or i64", t)
	}
}

func (b *Builder) requireInt(op string, v ValueID) {
	if t := b.typeOf(op, v); !t.IsInt() {
		contractf(op, "operand is %s, want integer", t)
	}
}

func (b *Builder) requireFloat(op string, v ValueID) {
	if t := b.typeOf(op, v); !t.IsFloat() {
		contractf(op, "operand is %s, want float", t)
	}
}

func (b *Builder) requireVec(op string, v ValueID) {
	if t := b.typeOf(op, v); !t.IsVec() {
		contractf(op, "operand is %s, want v128", t)
	}
}

func (b *Builder) requireNonVec(op string, v ValueID) {
	if t := b.typeOf(op, v); t.IsVec() {
		contractf(op, "operand is v128, want scalar")
	}
}

func (b *Builder) requireSameType(op string, v1, v2 ValueID) {
	if t1, t2 := b.typeOf(op, v1), b.typeOf(op, v2); t1 != t2 {
		contractf(op, "operand types differ: %s vs %s", t1, t2)
	}
}

func (b *Builder) requireType(op string, v ValueID, want TypeName) {
	if t := b.typeOf(op, v); t != want {
		contractf(op, "operand is %s, want %s", t, want)
	}
}

func requireValidType(op string, t TypeName) {
	if !t.Valid() {
		contractf(op, "invalid type %d", uint8(t))
	}
}

// scalarConsts returns both constant payloads when v1 and v2 are
// non-vector constants.
func (b *Builder) scalarConsts(v1, v2 ValueID) (Constant, Constant, bool) {
	a, c := b.Value(v1), b.Value(v2)
	if !a.IsConstant() || !c.IsConstant() || a.Type.IsVec() {
		return Constant{}, Constant{}, false
	}
	return *a.Constant, *c.Constant, true
}
