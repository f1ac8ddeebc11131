package hir

import (
	"bufio"
	"fmt"
	"io"

	"recomp/internal/opcode"
)

// Dump writes a human-readable rendering of the builder's blocks. The format
// is for diagnostics only.
func Dump(w io.Writer, b *Builder) error {
	if w == nil || b == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	p := printer{w: bw, b: b, idx: blockIndex(b)}
	p.dump()
	return bw.Flush()
}

type printer struct {
	w   *bufio.Writer
	b   *Builder
	idx map[BlockID]int
}

func (p *printer) dump() {
	b := p.b
	if b.attributes != 0 {
		fmt.Fprintf(p.w, "; attributes = %.8X\n", b.attributes)
	}
	for _, l := range b.locals {
		fmt.Fprintf(p.w, "  ; local %s\n", p.value(l))
	}

	for blk := range b.Blocks() {
		block := b.Block(blk)
		switch {
		case blk == b.blockHead:
			fmt.Fprintln(p.w, "<entry>:")
		case !block.LabelHead.IsValid():
			fmt.Fprintf(p.w, "<block%d>:\n", p.idx[blk])
		}
		for l := range b.BlockLabels(blk) {
			fmt.Fprintf(p.w, "%s:\n", p.label(l))
		}
		for e := range b.Incoming(blk) {
			edge := b.Edge(e)
			fmt.Fprintf(p.w, "  ; in: %s, %s\n", p.blockRef(edge.Src), edgeFlags(edge.Flags))
		}
		for e := range b.Outgoing(blk) {
			edge := b.Edge(e)
			fmt.Fprintf(p.w, "  ; out: %s, %s\n", p.blockRef(edge.Dest), edgeFlags(edge.Flags))
		}
		for id := range b.BlockInstrs(blk) {
			p.instr(id)
		}
	}
}

func edgeFlags(f EdgeFlags) string {
	dom, uncond := 0, 0
	if f&EdgeDominates != 0 {
		dom = 1
	}
	if f&EdgeUnconditional != 0 {
		uncond = 1
	}
	return fmt.Sprintf("dom:%d, uncond:%d", dom, uncond)
}

func (p *printer) label(id LabelID) string {
	l := p.b.Label(id)
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("label%d", l.ID)
}

// blockRef names a block by its first label, falling back to its position.
func (p *printer) blockRef(id BlockID) string {
	if head := p.b.Block(id).LabelHead; head.IsValid() {
		return p.label(head)
	}
	return fmt.Sprintf("<block%d>", p.idx[id])
}

func (p *printer) value(id ValueID) string {
	v := p.b.Value(id)
	var s string
	if v.IsConstant() {
		s = v.Constant.String()
	} else {
		s = fmt.Sprintf("v%d.%s", v.Ordinal, v.Type)
	}
	if v.Reg.Assigned() {
		s += fmt.Sprintf("<%s%d>", v.Reg.Set, v.Reg.Index)
	}
	return s
}

func (p *printer) operand(op Operand) string {
	switch op.Kind {
	case OperandLabel:
		return p.label(op.Label)
	case OperandOffset:
		return fmt.Sprintf("+%d", op.Offset)
	case OperandSymbol:
		return op.Symbol.DisplayName()
	case OperandValue:
		return p.value(op.Value)
	default:
		return ""
	}
}

func (p *printer) instr(id InstrID) {
	in := p.b.Instr(id)
	info := opcode.Lookup(in.Opcode)
	if info.Flags.Has(opcode.FlagHide) {
		return
	}
	if in.Opcode == opcode.Comment {
		fmt.Fprintf(p.w, "  ; %s\n", p.b.CommentText(id))
		return
	}

	fmt.Fprint(p.w, "  ")
	if in.Dest.IsValid() {
		fmt.Fprintf(p.w, "%s = ", p.value(in.Dest))
	}
	if in.Flags != 0 {
		fmt.Fprintf(p.w, "%s.%d", info.Name, in.Flags)
	} else {
		fmt.Fprint(p.w, info.Name)
	}
	for slot, s := range in.Src {
		if s.Kind == OperandNone {
			continue
		}
		if slot == 0 {
			fmt.Fprint(p.w, " ")
		} else {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, p.operand(s))
	}
	fmt.Fprintln(p.w)
}
