package hir

// Label is a branch target anchored to a block.
type Label struct {
	ID    uint32
	Name  string
	Block BlockID
	Prev  LabelID
	Next  LabelID
	Tag   any
}

// EdgeFlags annotate a control-flow edge.
type EdgeFlags uint32

const (
	EdgeDominates     EdgeFlags = 1 << 0
	EdgeUnconditional EdgeFlags = 1 << 1
)

// Edge is a directed control-flow arc. It sits in the outgoing list of Src
// and the incoming list of Dest.
type Edge struct {
	Src          BlockID
	Dest         BlockID
	Flags        EdgeFlags
	OutgoingPrev EdgeID
	OutgoingNext EdgeID
	IncomingPrev EdgeID
	IncomingNext EdgeID
}

// Block is a run of labels and instructions. Prev/Next give program order,
// which is always acyclic; edges carry the real control flow.
type Block struct {
	Ordinal      uint32
	LabelHead    LabelID
	LabelTail    LabelID
	InstrHead    InstrID
	InstrTail    InstrID
	IncomingHead EdgeID
	OutgoingHead EdgeID
	Prev         BlockID
	Next         BlockID
}
