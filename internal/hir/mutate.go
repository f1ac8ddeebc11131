package hir

import (
	"recomp/internal/opcode"
)

// NewLabel allocates an anonymous, unattached label with the next id.
func (b *Builder) NewLabel() LabelID {
	id := LabelID(b.labels.Allocate(Label{ID: b.nextLabelID}))
	b.nextLabelID++
	return id
}

// NewNamedLabel allocates an unattached label with a name. Named labels
// survive block merges.
func (b *Builder) NewNamedLabel(name string) LabelID {
	id := b.NewLabel()
	b.Label(id).Name = name
	return id
}

func (b *Builder) label(op string, id LabelID) *Label {
	if !b.labels.Valid(uint32(id)) {
		contractf(op, "invalid label handle %d", id)
	}
	l := b.Label(id)
	if l.Block.IsValid() {
		contractf(op, "label%d is already placed in a block", l.ID)
	}
	return l
}

// attachLabel appends an unattached label to blk's label list.
func (b *Builder) attachLabel(id LabelID, blk BlockID) {
	l, block := b.Label(id), b.Block(blk)
	l.Block = blk
	l.Prev = block.LabelTail
	l.Next = NoLabel
	if block.LabelTail.IsValid() {
		b.Label(block.LabelTail).Next = id
	} else {
		block.LabelHead = id
	}
	block.LabelTail = id
}

// MarkLabel attaches label to blk. With NoBlock it targets the current
// position: a current block that already has instructions is ended first,
// and a fresh block is appended when none is current.
func (b *Builder) MarkLabel(label LabelID, blk BlockID) {
	b.label("mark_label", label)
	if !blk.IsValid() {
		if b.current.IsValid() && b.Block(b.current).InstrTail.IsValid() {
			b.EndBlock()
		}
		if !b.current.IsValid() {
			b.AppendBlock()
		}
		blk = b.current
	} else if !b.blocks.Valid(uint32(blk)) {
		contractf("mark_label", "invalid block handle %d", blk)
	}
	b.attachLabel(label, blk)
}

// InsertLabel places label immediately after instruction after. When after
// ends its block the label goes on the following block; otherwise the
// block is split and the instructions following after move to a new block
// that carries the label. Moved instructions, outgoing edges and the
// current position follow the new block.
func (b *Builder) InsertLabel(label LabelID, after InstrID) {
	b.label("insert_label", label)
	if !b.instrs.Valid(uint32(after)) {
		contractf("insert_label", "invalid instruction handle %d", after)
	}
	if after == b.LastInstr() {
		b.MarkLabel(label, NoBlock)
		return
	}

	prev := b.Instr(after)
	if !prev.Block.IsValid() {
		contractf("insert_label", "instruction %d is not in a block", after)
	}
	if !prev.Next.IsValid() {
		if next := b.Block(prev.Block).Next; next.IsValid() {
			b.attachLabel(label, next)
		} else {
			b.MarkLabel(label, NoBlock)
		}
		return
	}

	b.splitAfter(after, label)
}

func (b *Builder) splitAfter(after InstrID, label LabelID) BlockID {
	prevBlockID := b.Instr(after).Block
	prevBlock := b.Block(prevBlockID)
	nextBlockID := prevBlock.Next

	id := BlockID(b.blocks.Allocate(Block{
		Ordinal: b.nextBlockOrdinal,
		Prev:    prevBlockID,
		Next:    nextBlockID,
	}))
	b.nextBlockOrdinal++
	prevBlock = b.Block(prevBlockID)
	newBlock := b.Block(id)
	prevBlock.Next = id
	if nextBlockID.IsValid() {
		b.Block(nextBlockID).Prev = id
	} else {
		b.blockTail = id
	}
	b.attachLabel(label, id)

	prev := b.Instr(after)
	newBlock.InstrHead = prev.Next
	newBlock.InstrTail = prevBlock.InstrTail
	b.Instr(prev.Next).Prev = NoInstr
	prev.Next = NoInstr
	prevBlock.InstrTail = after
	for in := newBlock.InstrHead; in.IsValid(); in = b.Instr(in).Next {
		b.Instr(in).Block = id
	}

	// Outgoing edges leave from the block that now holds the terminator.
	for e := prevBlock.OutgoingHead; e.IsValid(); e = b.Edge(e).OutgoingNext {
		b.Edge(e).Src = id
	}
	newBlock.OutgoingHead = prevBlock.OutgoingHead
	prevBlock.OutgoingHead = NoEdge

	if b.current == prevBlockID {
		b.current = id
	}
	return id
}

// ResetLabelTags clears the analysis tag of every placed label.
func (b *Builder) ResetLabelTags() {
	for blk := range b.Blocks() {
		for l := range b.BlockLabels(blk) {
			b.Label(l).Tag = nil
		}
	}
}

// AddEdge records a control-flow edge from src to dest. It is prepended to
// both the outgoing list of src and the incoming list of dest.
func (b *Builder) AddEdge(src, dest BlockID, flags EdgeFlags) EdgeID {
	if !b.blocks.Valid(uint32(src)) || !b.blocks.Valid(uint32(dest)) {
		contractf("add_edge", "invalid block handle %d -> %d", src, dest)
	}
	s, d := b.Block(src), b.Block(dest)
	id := EdgeID(b.edges.Allocate(Edge{
		Src:          src,
		Dest:         dest,
		Flags:        flags,
		OutgoingNext: s.OutgoingHead,
		IncomingNext: d.IncomingHead,
	}))
	if s.OutgoingHead.IsValid() {
		b.Edge(s.OutgoingHead).OutgoingPrev = id
	}
	s.OutgoingHead = id
	if d.IncomingHead.IsValid() {
		b.Edge(d.IncomingHead).IncomingPrev = id
	}
	d.IncomingHead = id
	return id
}

func (b *Builder) unlinkOutgoing(id EdgeID) {
	e := b.Edge(id)
	if e.OutgoingPrev.IsValid() {
		b.Edge(e.OutgoingPrev).OutgoingNext = e.OutgoingNext
	} else {
		b.Block(e.Src).OutgoingHead = e.OutgoingNext
	}
	if e.OutgoingNext.IsValid() {
		b.Edge(e.OutgoingNext).OutgoingPrev = e.OutgoingPrev
	}
	e.OutgoingPrev, e.OutgoingNext = NoEdge, NoEdge
}

func (b *Builder) unlinkIncoming(id EdgeID) {
	e := b.Edge(id)
	if e.IncomingPrev.IsValid() {
		b.Edge(e.IncomingPrev).IncomingNext = e.IncomingNext
	} else {
		b.Block(e.Dest).IncomingHead = e.IncomingNext
	}
	if e.IncomingNext.IsValid() {
		b.Edge(e.IncomingNext).IncomingPrev = e.IncomingPrev
	}
	e.IncomingPrev, e.IncomingNext = NoEdge, NoEdge
}

func (b *Builder) linkOutgoing(id EdgeID, src BlockID) {
	e, s := b.Edge(id), b.Block(src)
	e.Src = src
	e.OutgoingPrev = NoEdge
	e.OutgoingNext = s.OutgoingHead
	if s.OutgoingHead.IsValid() {
		b.Edge(s.OutgoingHead).OutgoingPrev = id
	}
	s.OutgoingHead = id
}

func (b *Builder) linkIncoming(id EdgeID, dest BlockID) {
	e, d := b.Edge(id), b.Block(dest)
	e.Dest = dest
	e.IncomingPrev = NoEdge
	e.IncomingNext = d.IncomingHead
	if d.IncomingHead.IsValid() {
		b.Edge(d.IncomingHead).IncomingPrev = id
	}
	d.IncomingHead = id
}

// RemoveEdge detaches an edge from both of its blocks.
func (b *Builder) RemoveEdge(id EdgeID) {
	if !b.edges.Valid(uint32(id)) {
		contractf("remove_edge", "invalid edge handle %d", id)
	}
	b.unlinkOutgoing(id)
	b.unlinkIncoming(id)
}

// RemoveInstr unlinks an instruction from its block and drops the uses it
// held. An instruction whose result is still read cannot be removed.
func (b *Builder) RemoveInstr(id InstrID) {
	if !b.instrs.Valid(uint32(id)) {
		contractf("remove_instr", "invalid instruction handle %d", id)
	}
	in := b.Instr(id)
	if !in.Block.IsValid() {
		contractf("remove_instr", "instruction %d is not in a block", id)
	}
	if in.Dest.IsValid() {
		if b.Value(in.Dest).UseHead.IsValid() {
			contractf("remove_instr", "result v%d is still used", b.Value(in.Dest).Ordinal)
		}
		b.Value(in.Dest).Def = NoInstr
	}
	for slot := range in.SrcUse {
		if in.SrcUse[slot].IsValid() {
			b.removeUse(in.SrcUse[slot])
			in.SrcUse[slot] = NoUse
		}
	}
	blk := b.Block(in.Block)
	if in.Prev.IsValid() {
		b.Instr(in.Prev).Next = in.Next
	} else {
		blk.InstrHead = in.Next
	}
	if in.Next.IsValid() {
		b.Instr(in.Next).Prev = in.Prev
	} else {
		blk.InstrTail = in.Prev
	}
	in.Prev, in.Next, in.Block = NoInstr, NoInstr, NoBlock
}

// MergeAdjacentBlocks folds right into left. right must directly follow left
// in program order and have at most one incoming edge, which must dominate.
// A trailing branch in left that targets right is dropped, right's
// instructions are appended to left, named labels move to left and
// anonymous ones are discarded. Edges between the pair disappear and
// right's remaining edges are rehomed on left.
func (b *Builder) MergeAdjacentBlocks(left, right BlockID) {
	if !b.blocks.Valid(uint32(left)) || !b.blocks.Valid(uint32(right)) {
		contractf("merge_blocks", "invalid block handle %d, %d", left, right)
	}
	l, r := b.Block(left), b.Block(right)
	if l.Next != right || r.Prev != left {
		contractf("merge_blocks", "blocks %d and %d are not adjacent", left, right)
	}
	if in := r.IncomingHead; in.IsValid() {
		e := b.Edge(in)
		if e.IncomingNext.IsValid() {
			contractf("merge_blocks", "block %d has more than one incoming edge", right)
		}
		if e.Flags&EdgeDominates == 0 {
			contractf("merge_blocks", "incoming edge of block %d does not dominate", right)
		}
	}

	if tail := l.InstrTail; tail.IsValid() && b.branchesTo(tail, right) {
		b.RemoveInstr(tail)
	}

	for r.InstrHead.IsValid() {
		id := r.InstrHead
		in := b.Instr(id)
		r.InstrHead = in.Next
		if in.Next.IsValid() {
			b.Instr(in.Next).Prev = NoInstr
		}
		in.Prev, in.Next, in.Block = l.InstrTail, NoInstr, left
		if l.InstrTail.IsValid() {
			b.Instr(l.InstrTail).Next = id
		} else {
			l.InstrHead = id
		}
		l.InstrTail = id
	}
	r.InstrTail = NoInstr

	for r.LabelHead.IsValid() {
		id := r.LabelHead
		lbl := b.Label(id)
		r.LabelHead = lbl.Next
		lbl.Block, lbl.Prev, lbl.Next = NoBlock, NoLabel, NoLabel
		if lbl.Name != "" {
			b.attachLabel(id, left)
		}
	}
	r.LabelTail = NoLabel

	for r.IncomingHead.IsValid() {
		id := r.IncomingHead
		e := b.Edge(id)
		if e.Src == left {
			b.RemoveEdge(id)
			continue
		}
		b.unlinkIncoming(id)
		b.linkIncoming(id, left)
	}
	for r.OutgoingHead.IsValid() {
		id := r.OutgoingHead
		b.unlinkOutgoing(id)
		b.linkOutgoing(id, left)
	}

	l.Next = r.Next
	if r.Next.IsValid() {
		b.Block(r.Next).Prev = left
	}
	if b.blockTail == right {
		b.blockTail = left
	}
	if b.current == right {
		b.current = left
	}
	r.Prev, r.Next = NoBlock, NoBlock
}

// branchesTo reports whether in is a branch with a label operand placed in
// blk.
func (b *Builder) branchesTo(id InstrID, blk BlockID) bool {
	in := b.Instr(id)
	if !opcode.Lookup(in.Opcode).Flags.Has(opcode.FlagBranch) {
		return false
	}
	for _, s := range in.Src {
		if s.Kind == OperandLabel && b.Label(s.Label).Block == blk {
			return true
		}
	}
	return false
}
