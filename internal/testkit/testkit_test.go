package testkit

import (
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"

	"recomp/internal/hir"
	"recomp/internal/script"
	"recomp/internal/snapshot"
)

func build(t *rapid.T, fn *script.Func) *snapshot.Function {
	b := hir.New(hir.WithCapacity(32))
	if err := script.Run(b, fn, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := hir.Validate(b); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return snapshot.Capture(fn.Name, b)
}

func TestGeneratedScriptsBuild(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fn := Func().Draw(t, "func")
		snap := build(t, fn)
		if err := CheckSnapshotInvariants(snap); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		data, err := snapshot.Marshal(snap)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		back, err := snapshot.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := CheckSnapshotInvariants(back); err != nil {
			t.Fatalf("decoded snapshot: %v", err)
		}
	})
}

func valid(t *testing.T) *snapshot.Function {
	t.Helper()
	b := hir.New()
	entry := b.CurrentBlock()
	x := b.LoadContext(0, hir.Int32)
	exit := b.NewLabel()
	b.BranchTrue(b.IsTrue(x), exit, 0)
	b.MarkLabel(exit, hir.NoBlock)
	b.AddEdge(entry, b.CurrentBlock(), 0)
	b.Return()
	assert.NilError(t, b.Finalize())
	f := snapshot.Capture("f", b)
	assert.NilError(t, CheckSnapshotInvariants(f))
	return f
}

func TestCheckSnapshotInvariants_Corruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(f *snapshot.Function)
		msg     string
	}{
		{"gap", func(f *snapshot.Function) { f.Blocks[1].First++ }, "starts at"},
		{"short", func(f *snapshot.Function) { f.Blocks[1].Count-- }, "blocks cover"},
		{"dest", func(f *snapshot.Function) { f.Instrs[0].Dest = 99 }, "dest index 99"},
		{"operand", func(f *snapshot.Function) { f.Instrs[1].Operands[0].Value = -3 }, "value index -3"},
		{"opcode", func(f *snapshot.Function) { f.Instrs[0].Opcode = "teleport" }, `unknown opcode "teleport"`},
		{"edge list", func(f *snapshot.Function) { f.Blocks[0].Outgoing = nil }, "missing from outgoing"},
		{"label owner", func(f *snapshot.Function) { f.Labels[0].Block = 0 }, "points at block 0"},
		{"unterminated", func(f *snapshot.Function) {
			last := len(f.Instrs) - 1
			f.Instrs[last].Opcode = "nop"
		}, "ends in nop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid(t)
			tt.corrupt(f)
			assert.ErrorContains(t, CheckSnapshotInvariants(f), tt.msg)
		})
	}
	assert.ErrorContains(t, CheckSnapshotInvariants(nil), "nil snapshot")
}
