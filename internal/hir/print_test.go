package hir

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestDump(t *testing.T) {
	b := New()
	b.SetAttributes(AttribInline)
	loc := b.AllocLocal(Int32)
	b.SourceOffset(0x8200_0000)
	entry := b.CurrentBlock()
	x := b.LoadContext(16, Int32)
	b.Comment("hello")
	s := b.Add(x, b.LoadConstantInt32(1), 0)
	b.StoreLocal(loc, s)
	exit := b.NewNamedLabel("exit")
	b.BranchTrue(b.CompareEQ(s, x), exit, 0)
	b.MarkLabel(exit, NoBlock)
	b.AddEdge(entry, b.CurrentBlock(), EdgeDominates)
	b.Return()
	assert.NilError(t, b.Finalize())

	var sb strings.Builder
	assert.NilError(t, Dump(&sb, b))

	want := `; attributes = 00000002
  ; local v0.i32
<entry>:
  ; out: exit, dom:1, uncond:0
  v1.i32 = load_context +16
  ; hello
  v3.i32 = add v1.i32, 1
  store_local v0.i32, v3.i32
  v4.i8 = compare_eq v3.i32, v1.i32
  branch_true v4.i8, exit
  branch.2 exit
exit:
  ; in: <block0>, dom:1, uncond:0
  return
`
	assert.Equal(t, sb.String(), want)
}

func TestDump_AnonymousBlocks(t *testing.T) {
	b := New()
	b.AppendBlock()
	b.Nop()
	b.AppendBlock()
	l := b.NewLabel()
	b.MarkLabel(l, NoBlock)
	b.Nop()
	b.AppendBlock()
	b.Return()

	var sb strings.Builder
	assert.NilError(t, Dump(&sb, b))
	assert.Equal(t, sb.String(), "<entry>:\n  nop\nlabel0:\n  nop\n<block2>:\n  return\n")
}
