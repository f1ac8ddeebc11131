// Package snapshot freezes a built function into a flat, index-based form
// that later stages can read without the builder, and stores it on disk.
package snapshot

import (
	"cmp"
	"slices"

	"fortio.org/safecast"

	"recomp/internal/hir"
)

// SchemaVersion is bumped whenever the encoded Function layout changes.
const SchemaVersion uint16 = 1

// None marks an absent index.
const None int32 = -1

// Function is an immutable copy of a builder. Every cross reference is an
// index into one of its slices.
type Function struct {
	Schema     uint16
	Name       string
	Attributes uint32
	Finalized  bool
	Locals     []int32
	Blocks     []Block
	Labels     []Label
	Instrs     []Instr
	Values     []Value
	Edges      []Edge
}

// Block lists its labels and edges by index. Its instructions are
// Instrs[First : First+Count].
type Block struct {
	Labels   []int32
	First    int32
	Count    int32
	Incoming []int32
	Outgoing []int32
}

type Label struct {
	ID    uint32
	Name  string
	Block int32
}

type Instr struct {
	Opcode   string
	Flags    uint16
	Dest     int32
	Operands []Operand
	Comment  string `msgpack:",omitempty"`
}

// Operand mirrors hir.Operand with indexes in place of handles.
type Operand struct {
	Kind   uint8
	Label  int32  `msgpack:",omitempty"`
	Value  int32  `msgpack:",omitempty"`
	Offset uint64 `msgpack:",omitempty"`
	Symbol string `msgpack:",omitempty"`
}

type Value struct {
	Ordinal  uint32
	Type     string
	Constant *Constant `msgpack:",omitempty"`
	RegSet   string    `msgpack:",omitempty"`
	RegIndex int32
}

type Constant struct {
	I int64
	F float64
	V [4]uint32
}

type Edge struct {
	Src   int32
	Dest  int32
	Flags uint32
}

func index(n int) int32 {
	i, err := safecast.Conv[int32](n)
	if err != nil {
		panic(err)
	}
	return i
}

// Capture copies b. Labels that were created but never placed are kept
// with Block set to None.
func Capture(name string, b *hir.Builder) *Function {
	c := capturer{
		b:      b,
		blocks: make(map[hir.BlockID]int32),
		labels: make(map[hir.LabelID]int32),
		values: make(map[hir.ValueID]int32),
		edges:  make(map[hir.EdgeID]int32),
	}
	return c.run(name)
}

type capturer struct {
	b      *hir.Builder
	fn     *Function
	blocks map[hir.BlockID]int32
	labels map[hir.LabelID]int32
	values map[hir.ValueID]int32
	edges  map[hir.EdgeID]int32
}

func (c *capturer) run(name string) *Function {
	b := c.b
	c.fn = &Function{
		Schema:     SchemaVersion,
		Name:       name,
		Attributes: b.Attributes(),
		Finalized:  b.Finalized(),
	}
	c.collectValues()

	for blk := range b.Blocks() {
		c.blocks[blk] = index(len(c.blocks))
	}
	for blk := range b.Blocks() {
		for l := range b.BlockLabels(blk) {
			c.label(l)
		}
		for e := range b.Outgoing(blk) {
			c.edge(e)
		}
	}

	for _, v := range b.Locals() {
		c.fn.Locals = append(c.fn.Locals, c.values[v])
	}
	for blk := range b.Blocks() {
		out := Block{First: index(len(c.fn.Instrs))}
		for l := range b.BlockLabels(blk) {
			out.Labels = append(out.Labels, c.labels[l])
		}
		for id := range b.BlockInstrs(blk) {
			c.fn.Instrs = append(c.fn.Instrs, c.instr(id))
		}
		out.Count = index(len(c.fn.Instrs)) - out.First
		for e := range b.Incoming(blk) {
			out.Incoming = append(out.Incoming, c.edge(e))
		}
		for e := range b.Outgoing(blk) {
			out.Outgoing = append(out.Outgoing, c.edge(e))
		}
		c.fn.Blocks = append(c.fn.Blocks, out)
	}
	return c.fn
}

// collectValues numbers every value reachable from a local or an
// instruction, in ordinal order.
func (c *capturer) collectValues() {
	b := c.b
	seen := make(map[hir.ValueID]bool)
	var ids []hir.ValueID
	add := func(v hir.ValueID) {
		if v.IsValid() && !seen[v] {
			seen[v] = true
			ids = append(ids, v)
		}
	}
	for _, v := range b.Locals() {
		add(v)
	}
	for blk := range b.Blocks() {
		for id := range b.BlockInstrs(blk) {
			in := b.Instr(id)
			add(in.Dest)
			for _, op := range in.Src {
				if op.Kind == hir.OperandValue {
					add(op.Value)
				}
			}
		}
	}
	slices.SortFunc(ids, func(x, y hir.ValueID) int {
		return cmp.Compare(b.Value(x).Ordinal, b.Value(y).Ordinal)
	})
	for _, id := range ids {
		v := b.Value(id)
		out := Value{
			Ordinal:  v.Ordinal,
			Type:     v.Type.String(),
			RegSet:   v.Reg.Set,
			RegIndex: index(v.Reg.Index),
		}
		if v.Constant != nil {
			out.Constant = &Constant{I: v.Constant.I, F: v.Constant.F, V: v.Constant.V}
		}
		c.values[id] = index(len(c.fn.Values))
		c.fn.Values = append(c.fn.Values, out)
	}
}

func (c *capturer) label(l hir.LabelID) int32 {
	if i, ok := c.labels[l]; ok {
		return i
	}
	lbl := c.b.Label(l)
	blk := None
	if i, ok := c.blocks[lbl.Block]; ok {
		blk = i
	}
	i := index(len(c.fn.Labels))
	c.labels[l] = i
	c.fn.Labels = append(c.fn.Labels, Label{ID: lbl.ID, Name: lbl.Name, Block: blk})
	return i
}

func (c *capturer) edge(e hir.EdgeID) int32 {
	if i, ok := c.edges[e]; ok {
		return i
	}
	edge := c.b.Edge(e)
	i := index(len(c.fn.Edges))
	c.edges[e] = i
	c.fn.Edges = append(c.fn.Edges, Edge{
		Src:   c.blocks[edge.Src],
		Dest:  c.blocks[edge.Dest],
		Flags: uint32(edge.Flags),
	})
	return i
}

func (c *capturer) instr(id hir.InstrID) Instr {
	in := c.b.Instr(id)
	out := Instr{
		Opcode: in.Opcode.String(),
		Flags:  in.Flags,
		Dest:   None,
		// Comment text is held outside the instruction.
		Comment: c.b.CommentText(id),
	}
	if in.Dest.IsValid() {
		out.Dest = c.values[in.Dest]
	}
	for _, op := range in.Src {
		if op.Kind == hir.OperandNone {
			break
		}
		o := Operand{Kind: uint8(op.Kind)}
		switch op.Kind {
		case hir.OperandLabel:
			o.Label = c.label(op.Label)
		case hir.OperandValue:
			o.Value = c.values[op.Value]
		case hir.OperandOffset:
			o.Offset = op.Offset
		case hir.OperandSymbol:
			o.Symbol = op.Symbol.DisplayName()
		}
		out.Operands = append(out.Operands, o)
	}
	return out
}

// InstrCount returns the number of instructions across all blocks.
func (f *Function) InstrCount() int { return len(f.Instrs) }

// BlockInstrs returns the instructions of block i.
func (f *Function) BlockInstrs(i int) []Instr {
	blk := f.Blocks[i]
	return f.Instrs[blk.First : blk.First+blk.Count]
}
