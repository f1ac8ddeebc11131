// Package testkit holds generators and structural checks shared by tests
// across the build pipeline.
package testkit

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"recomp/internal/opcode"
	"recomp/internal/snapshot"
)

// CheckSnapshotInvariants verifies the index structure of a captured
// function:
//  1. blocks tile Instrs in order with no gaps
//  2. every operand, dest, label and edge index is in range
//  3. each edge appears in its source's outgoing and its dest's incoming list
//  4. a finalized function ends every block in a control transfer
func CheckSnapshotInvariants(f *snapshot.Function) error {
	if f == nil {
		return fmt.Errorf("nil snapshot")
	}
	nInstrs, err := safecast.Conv[int32](len(f.Instrs))
	if err != nil {
		return fmt.Errorf("instruction count overflow: %w", err)
	}
	nValues := len(f.Values)
	nLabels := len(f.Labels)
	nBlocks := len(f.Blocks)

	// 1) tiling
	var next int32
	for i, blk := range f.Blocks {
		if blk.First != next {
			return fmt.Errorf("block %d starts at %d, want %d", i, blk.First, next)
		}
		if blk.Count < 0 || blk.Count > nInstrs-next {
			return fmt.Errorf("block %d has count %d, %d instructions left", i, blk.Count, nInstrs-next)
		}
		next += blk.Count
		for _, l := range blk.Labels {
			if !inRange(l, nLabels) {
				return fmt.Errorf("block %d: label index %d out of range", i, l)
			}
			if got := f.Labels[l].Block; int(got) != i {
				return fmt.Errorf("block %d lists label %d which points at block %d", i, l, got)
			}
		}
	}
	if next != nInstrs {
		return fmt.Errorf("blocks cover %d instructions, have %d", next, nInstrs)
	}

	// 2) references
	for i, l := range f.Locals {
		if !inRange(l, nValues) {
			return fmt.Errorf("local %d: value index %d out of range", i, l)
		}
	}
	for i, l := range f.Labels {
		if l.Block != snapshot.None && !inRange(l.Block, nBlocks) {
			return fmt.Errorf("label %d: block index %d out of range", i, l.Block)
		}
	}
	for i, in := range f.Instrs {
		if _, ok := opcode.ByName(in.Opcode); !ok {
			return fmt.Errorf("instr %d: unknown opcode %q", i, in.Opcode)
		}
		if in.Dest != snapshot.None && !inRange(in.Dest, nValues) {
			return fmt.Errorf("instr %d: dest index %d out of range", i, in.Dest)
		}
		for j, op := range in.Operands {
			switch op.Kind {
			case uint8(opcode.SigTypeV):
				if !inRange(op.Value, nValues) {
					return fmt.Errorf("instr %d operand %d: value index %d out of range", i, j, op.Value)
				}
			case uint8(opcode.SigTypeL):
				if !inRange(op.Label, nLabels) {
					return fmt.Errorf("instr %d operand %d: label index %d out of range", i, j, op.Label)
				}
			}
		}
	}

	// 3) edge lists
	for i, e := range f.Edges {
		if !inRange(e.Src, nBlocks) || !inRange(e.Dest, nBlocks) {
			return fmt.Errorf("edge %d: %d -> %d out of range", i, e.Src, e.Dest)
		}
		idx, _ := safecast.Conv[int32](i)
		if !slices.Contains(f.Blocks[e.Src].Outgoing, idx) {
			return fmt.Errorf("edge %d missing from outgoing list of block %d", i, e.Src)
		}
		if !slices.Contains(f.Blocks[e.Dest].Incoming, idx) {
			return fmt.Errorf("edge %d missing from incoming list of block %d", i, e.Dest)
		}
	}

	// 4) explicit control transfer
	if f.Finalized {
		for i := range f.Blocks {
			instrs := f.BlockInstrs(i)
			if len(instrs) == 0 {
				continue
			}
			if tail := instrs[len(instrs)-1]; !transfersControl(tail) {
				return fmt.Errorf("block %d ends in %s", i, tail.Opcode)
			}
		}
	}
	return nil
}

func inRange(i int32, n int) bool { return i >= 0 && int(i) < n }

func transfersControl(in snapshot.Instr) bool {
	switch in.Opcode {
	case "branch", "return":
		return true
	case "call", "call_indirect":
		return in.Flags&opcode.CallTail != 0
	}
	return false
}
