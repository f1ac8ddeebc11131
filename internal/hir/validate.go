package hir

import (
	"errors"
	"fmt"
	"iter"

	"recomp/internal/opcode"
)

// Validate checks the builder's structural invariants and returns every
// violation joined into one error.
func Validate(b *Builder) error {
	if b == nil {
		return nil
	}
	if err := b.CheckNoCycles(); err != nil {
		// The remaining checks walk program order and would not terminate.
		return err
	}

	var errs []error

	// 1. Program-order links
	if err := validateBlockList(b); err != nil {
		errs = append(errs, err)
	}

	// 2. Label ownership
	if err := validateLabels(b); err != nil {
		errs = append(errs, err)
	}

	// 3. Instruction links, operand shapes, definitions and uses
	if err := validateInstrs(b); err != nil {
		errs = append(errs, err)
	}

	// 4. Edge lists
	if err := validateEdges(b); err != nil {
		errs = append(errs, err)
	}

	// 5. Terminators after Finalize
	if b.finalized {
		if err := validateTerminated(b); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// blockIndex maps each block in program order to its position.
func blockIndex(b *Builder) map[BlockID]int {
	idx := make(map[BlockID]int)
	i := 0
	for id := range b.Blocks() {
		idx[id] = i
		i++
	}
	return idx
}

func validateBlockList(b *Builder) error {
	var errs []error
	if b.blockHead.IsValid() != b.blockTail.IsValid() {
		return fmt.Errorf("block list head %d and tail %d disagree", b.blockHead, b.blockTail)
	}
	if b.blockHead.IsValid() && b.Block(b.blockHead).Prev.IsValid() {
		errs = append(errs, fmt.Errorf("entry block has a predecessor %d", b.Block(b.blockHead).Prev))
	}
	last := NoBlock
	i := 0
	for id := range b.Blocks() {
		if p := b.Block(id).Prev; p != last {
			errs = append(errs, fmt.Errorf("block%d: prev is %d, want %d", i, p, last))
		}
		last = id
		i++
	}
	if last != b.blockTail {
		errs = append(errs, fmt.Errorf("block list ends at %d, tail is %d", last, b.blockTail))
	}
	if b.current.IsValid() {
		if _, ok := blockIndex(b)[b.current]; !ok {
			errs = append(errs, fmt.Errorf("current block %d is not in program order", b.current))
		}
	}
	return errors.Join(errs...)
}

func validateLabels(b *Builder) error {
	var errs []error
	i := 0
	for blk := range b.Blocks() {
		prev := NoLabel
		for id := range b.BlockLabels(blk) {
			l := b.Label(id)
			if l.Block != blk {
				errs = append(errs, fmt.Errorf("block%d: label%d claims block %d", i, l.ID, l.Block))
			}
			if l.Prev != prev {
				errs = append(errs, fmt.Errorf("block%d: label%d prev is %d, want %d", i, l.ID, l.Prev, prev))
			}
			prev = id
		}
		if b.Block(blk).LabelTail != prev {
			errs = append(errs, fmt.Errorf("block%d: label tail is %d, want %d", i, b.Block(blk).LabelTail, prev))
		}
		i++
	}
	return errors.Join(errs...)
}

func validateInstrs(b *Builder) error {
	var errs []error

	locals := make(map[ValueID]bool, len(b.locals))
	for _, l := range b.locals {
		locals[l] = true
	}

	// Pass 1: list links and definitions.
	defined := make(map[ValueID]InstrID)
	i := 0
	for blk := range b.Blocks() {
		prev := NoInstr
		for id := range b.BlockInstrs(blk) {
			in := b.Instr(id)
			if in.Block != blk {
				errs = append(errs, fmt.Errorf("block%d: %s claims block %d", i, in.Opcode, in.Block))
			}
			if in.Prev != prev {
				errs = append(errs, fmt.Errorf("block%d: %s prev is %d, want %d", i, in.Opcode, in.Prev, prev))
			}
			prev = id
			if in.Dest.IsValid() {
				if other, dup := defined[in.Dest]; dup {
					errs = append(errs, fmt.Errorf("block%d: v%d defined by instructions %d and %d",
						i, b.Value(in.Dest).Ordinal, other, id))
				}
				defined[in.Dest] = id
				if d := b.Value(in.Dest); d.Def != id {
					errs = append(errs, fmt.Errorf("block%d: v%d def is %d, want %d", i, d.Ordinal, d.Def, id))
				} else if d.IsConstant() {
					errs = append(errs, fmt.Errorf("block%d: constant v%d has a defining instruction", i, d.Ordinal))
				}
			}
		}
		if b.Block(blk).InstrTail != prev {
			errs = append(errs, fmt.Errorf("block%d: instruction tail is %d, want %d", i, b.Block(blk).InstrTail, prev))
		}
		i++
	}

	// Pass 2: operand shapes, def-before-use and use records.
	seen := make(map[ValueID]bool)
	i = 0
	for blk := range b.Blocks() {
		for id := range b.BlockInstrs(blk) {
			in := b.Instr(id)
			if err := validateShape(b, in); err != nil {
				errs = append(errs, fmt.Errorf("block%d: %w", i, err))
			}
			for slot, s := range in.Src {
				if s.Kind != OperandValue {
					if in.SrcUse[slot].IsValid() {
						errs = append(errs, fmt.Errorf("block%d: %s slot %d has a use record but no value", i, in.Opcode, slot+1))
					}
					continue
				}
				v := b.Value(s.Value)
				switch {
				case v.IsConstant() || locals[s.Value]:
				case !v.Def.IsValid():
					errs = append(errs, fmt.Errorf("block%d: %s reads v%d which has no definition", i, in.Opcode, v.Ordinal))
				case b.Instr(v.Def).Block == blk && !seen[s.Value]:
					errs = append(errs, fmt.Errorf("block%d: %s reads v%d before its definition", i, in.Opcode, v.Ordinal))
				}
				if err := validateUse(b, id, uint8(slot)); err != nil {
					errs = append(errs, fmt.Errorf("block%d: %w", i, err))
				}
			}
			if in.Dest.IsValid() {
				seen[in.Dest] = true
			}
		}
		i++
	}
	return errors.Join(errs...)
}

func validateShape(b *Builder, in *Instr) error {
	info := opcode.Lookup(in.Opcode)
	sig := info.Signature
	if (sig.Dest() == opcode.SigTypeV) != in.Dest.IsValid() {
		return fmt.Errorf("%s: destination does not match signature %s", info.Name, sig)
	}
	for slot, s := range in.Src {
		if want := OperandKind(sig.Src(slot)); s.Kind != want {
			return fmt.Errorf("%s: operand %d is %s, signature %s wants %s", info.Name, slot+1, s.Kind, sig, want)
		}
		if s.Kind == OperandLabel && b.finalized && !b.Label(s.Label).Block.IsValid() {
			return fmt.Errorf("%s: label%d is never placed", info.Name, b.Label(s.Label).ID)
		}
	}
	return nil
}

func validateUse(b *Builder, id InstrID, slot uint8) error {
	in := b.Instr(id)
	uid := in.SrcUse[slot]
	if !uid.IsValid() {
		return fmt.Errorf("%s slot %d has no use record", in.Opcode, slot+1)
	}
	u := b.Use(uid)
	if u.Value != in.Src[slot].Value || u.Instr != id || u.Slot != slot {
		return fmt.Errorf("%s slot %d use record points elsewhere", in.Opcode, slot+1)
	}
	for x := range b.Uses(u.Value) {
		if x == uid {
			return nil
		}
	}
	return fmt.Errorf("%s slot %d use is missing from v%d's use list", in.Opcode, slot+1, b.Value(u.Value).Ordinal)
}

func hasEdge(list iter.Seq[EdgeID], e EdgeID) bool {
	for x := range list {
		if x == e {
			return true
		}
	}
	return false
}

func validateEdges(b *Builder) error {
	var errs []error
	idx := blockIndex(b)
	i := 0
	for blk := range b.Blocks() {
		for e := range b.Outgoing(blk) {
			edge := b.Edge(e)
			if edge.Src != blk {
				errs = append(errs, fmt.Errorf("block%d: outgoing edge %d has source %d", i, e, edge.Src))
			}
			if _, ok := idx[edge.Dest]; !ok {
				errs = append(errs, fmt.Errorf("block%d: edge %d targets a removed block", i, e))
			} else if !hasEdge(b.Incoming(edge.Dest), e) {
				errs = append(errs, fmt.Errorf("block%d: edge %d missing from destination's incoming list", i, e))
			}
		}
		for e := range b.Incoming(blk) {
			edge := b.Edge(e)
			if edge.Dest != blk {
				errs = append(errs, fmt.Errorf("block%d: incoming edge %d has destination %d", i, e, edge.Dest))
			}
			if _, ok := idx[edge.Src]; !ok {
				errs = append(errs, fmt.Errorf("block%d: edge %d comes from a removed block", i, e))
			} else if !hasEdge(b.Outgoing(edge.Src), e) {
				errs = append(errs, fmt.Errorf("block%d: edge %d missing from source's outgoing list", i, e))
			}
		}
		i++
	}
	return errors.Join(errs...)
}

// validateTerminated checks that every block ends in a branch, return or
// tail call.
func validateTerminated(b *Builder) error {
	var errs []error
	i := 0
	for blk := range b.Blocks() {
		tail := b.Block(blk).InstrTail
		if !tail.IsValid() || !b.IsUnconditionalJump(tail) {
			errs = append(errs, fmt.Errorf("block%d: unterminated block", i))
		}
		i++
	}
	return errors.Join(errs...)
}
