package hir

import (
	"go.uber.org/zap"

	"recomp/internal/opcode"
)

// Finalize makes every block's control transfer explicit. A block that does
// not end in a branch, return or tail call gets a likely branch to the next
// block; the last block gets a trap followed by a return instead. Block
// count is unchanged. Finalize runs once per build; a second call returns
// ErrAlreadyFinalized.
func (b *Builder) Finalize() error {
	if b.finalized {
		return ErrAlreadyFinalized
	}
	b.finalized = true

	for id := b.blockHead; id.IsValid(); id = b.Block(id).Next {
		blk := b.Block(id)
		if tail := blk.InstrTail; tail.IsValid() && b.IsUnconditionalJump(tail) {
			continue
		}
		b.current = id
		if !blk.Next.IsValid() {
			b.log.Warn("function falls off its end; appending trap and return",
				zap.Uint32("block", blk.Ordinal))
			b.emitVoid(opcode.Trap, 0)
			b.emitVoid(opcode.Return, 0)
			b.current = NoBlock
			break
		}
		b.BranchBlock(blk.Next, opcode.BranchLikely)
		b.current = NoBlock
	}
	return nil
}
