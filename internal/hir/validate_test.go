package hir

import (
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"
)

// editor drives random structural edits on a builder and remembers enough
// to keep every edit within its preconditions.
type editor struct {
	b      *Builder
	ints   []ValueID
	labels []LabelID
}

func (e *editor) instrs() []InstrID {
	var ids []InstrID
	for blk := range e.b.Blocks() {
		for id := range e.b.BlockInstrs(blk) {
			ids = append(ids, id)
		}
	}
	return ids
}

// mergeable returns adjacent block pairs whose right side has at most one
// dominating incoming edge.
func (e *editor) mergeable() [][2]BlockID {
	var pairs [][2]BlockID
	for blk := range e.b.Blocks() {
		next := e.b.Block(blk).Next
		if !next.IsValid() {
			continue
		}
		in := e.b.Block(next).IncomingHead
		if in.IsValid() {
			edge := e.b.Edge(in)
			if edge.IncomingNext.IsValid() || edge.Flags&EdgeDominates == 0 {
				continue
			}
		}
		pairs = append(pairs, [2]BlockID{blk, next})
	}
	return pairs
}

func (e *editor) unplaced() []LabelID {
	var ls []LabelID
	for _, l := range e.labels {
		if !e.b.Label(l).Block.IsValid() {
			ls = append(ls, l)
		}
	}
	return ls
}

func TestValidate_RandomEdits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := &editor{b: New(WithCapacity(16))}
		b := e.b

		t.Repeat(map[string]func(*rapid.T){
			"load": func(t *rapid.T) {
				off := rapid.Uint64Range(0, 256).Draw(t, "offset")
				e.ints = append(e.ints, b.LoadContext(off, Int32))
			},
			"const": func(t *rapid.T) {
				e.ints = append(e.ints, b.LoadConstantInt32(rapid.Int32().Draw(t, "k")))
			},
			"add": func(t *rapid.T) {
				if len(e.ints) == 0 {
					t.Skip("no operands")
				}
				x := rapid.SampledFrom(e.ints).Draw(t, "x")
				y := rapid.SampledFrom(e.ints).Draw(t, "y")
				e.ints = append(e.ints, b.Add(x, y, 0))
			},
			"branch": func(t *rapid.T) {
				l := b.NewLabel()
				e.labels = append(e.labels, l)
				if len(e.ints) > 0 && rapid.Bool().Draw(t, "conditional") {
					x := rapid.SampledFrom(e.ints).Draw(t, "x")
					b.BranchTrue(b.IsTrue(x), l, 0)
					return
				}
				b.Branch(l, 0)
			},
			"mark": func(t *rapid.T) {
				ls := e.unplaced()
				if len(ls) == 0 {
					t.Skip("no unplaced label")
				}
				b.MarkLabel(rapid.SampledFrom(ls).Draw(t, "label"), NoBlock)
			},
			"insert_label": func(t *rapid.T) {
				ids := e.instrs()
				if len(ids) == 0 {
					t.Skip("no instructions")
				}
				l := b.NewLabel()
				e.labels = append(e.labels, l)
				b.InsertLabel(l, rapid.SampledFrom(ids).Draw(t, "after"))
			},
			"edge": func(t *rapid.T) {
				blocks := blockOrder(b)
				if len(blocks) == 0 {
					t.Skip("no blocks")
				}
				src := rapid.SampledFrom(blocks).Draw(t, "src")
				dest := rapid.SampledFrom(blocks).Draw(t, "dest")
				flags := EdgeFlags(rapid.IntRange(0, 3).Draw(t, "flags"))
				b.AddEdge(src, dest, flags)
			},
			"merge": func(t *rapid.T) {
				pairs := e.mergeable()
				if len(pairs) == 0 {
					t.Skip("no mergeable pair")
				}
				p := rapid.SampledFrom(pairs).Draw(t, "pair")
				b.MergeAdjacentBlocks(p[0], p[1])
			},
			"": func(t *rapid.T) {
				if err := Validate(b); err != nil {
					t.Fatalf("invalid after edit: %v", err)
				}
			},
		})

		for _, l := range e.unplaced() {
			b.MarkLabel(l, NoBlock)
		}
		if err := b.Finalize(); err != nil {
			t.Fatalf("finalize: %v", err)
		}
		if err := Validate(b); err != nil {
			t.Fatalf("invalid after finalize: %v", err)
		}
	})
}

func TestValidate_ReportsCorruption(t *testing.T) {
	b := New()
	x := b.LoadContext(0, Int32)
	b.Add(x, x, 0)
	assert.NilError(t, Validate(b))

	// Break the def link of x.
	b.Value(x).Def = NoInstr
	err := Validate(b)
	assert.ErrorContains(t, err, "def is")
	assert.ErrorContains(t, err, "has no definition")
}

func TestValidate_UnterminatedAfterFinalize(t *testing.T) {
	b := New()
	b.Return()
	assert.NilError(t, b.Finalize())
	b.AppendBlock()
	b.Nop()

	assert.ErrorContains(t, Validate(b), "unterminated block")
}

func TestValidate_UnplacedLabelAfterFinalize(t *testing.T) {
	b := New()
	b.Branch(b.NewLabel(), 0)
	assert.NilError(t, b.Finalize())

	assert.ErrorContains(t, Validate(b), "never placed")
}
