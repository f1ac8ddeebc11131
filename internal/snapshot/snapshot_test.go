package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"

	"recomp/internal/hir"
	"recomp/internal/symbol"
)

// sample builds entry -> exit with a conditional branch, a local and a call.
func sample(t *testing.T) *hir.Builder {
	t.Helper()
	b := hir.New()
	b.SetAttributes(hir.AttribInline)
	loc := b.AllocLocal(hir.Int32)
	entry := b.CurrentBlock()
	x := b.LoadContext(16, hir.Int32)
	b.Comment("bump")
	s := b.Add(x, b.LoadConstantInt32(1), 0)
	b.StoreLocal(loc, s)
	exit := b.NewNamedLabel("exit")
	b.BranchTrue(b.CompareEQ(s, x), exit, 0)
	b.Call(&symbol.Func{Name: "helper"}, 0)
	b.MarkLabel(exit, hir.NoBlock)
	b.AddEdge(entry, b.CurrentBlock(), hir.EdgeDominates)
	b.Return()
	assert.NilError(t, b.Finalize())
	return b
}

func TestCapture(t *testing.T) {
	f := Capture("sample", sample(t))

	assert.Equal(t, f.Schema, SchemaVersion)
	assert.Equal(t, f.Name, "sample")
	assert.Equal(t, f.Attributes, hir.AttribInline)
	assert.Assert(t, f.Finalized)
	assert.DeepEqual(t, f.Locals, []int32{0})

	// Values are numbered in ordinal order: local, x, 1, s, cmp.
	var types []string
	for i, v := range f.Values {
		types = append(types, v.Type)
		if i > 0 {
			assert.Assert(t, v.Ordinal > f.Values[i-1].Ordinal)
		}
	}
	assert.DeepEqual(t, types, []string{"i32", "i32", "i32", "i32", "i8"})
	assert.Equal(t, f.Values[2].Constant.I, int64(1))

	// Finalize labelled the call block when it branched into it.
	assert.Equal(t, len(f.Blocks), 3)
	assert.Equal(t, len(f.Labels), 2)
	var names []string
	for _, in := range f.BlockInstrs(0) {
		names = append(names, in.Opcode)
	}
	assert.DeepEqual(t, names, []string{
		"load_context", "comment", "add", "store_local", "compare_eq", "branch_true", "branch",
	})
	assert.Equal(t, f.BlockInstrs(0)[1].Comment, "bump")

	call := f.BlockInstrs(1)[0]
	assert.Equal(t, call.Opcode, "call")
	assert.Equal(t, call.Operands[0].Symbol, "helper")
	assert.Equal(t, call.Dest, None)

	branch := f.BlockInstrs(0)[5]
	target := f.Labels[branch.Operands[1].Label]
	assert.Equal(t, target.Name, "exit")
	assert.Equal(t, target.Block, int32(2))

	assert.DeepEqual(t, f.Edges, []Edge{{Src: 0, Dest: 2, Flags: uint32(hir.EdgeDominates)}})
	assert.DeepEqual(t, f.Blocks[0].Outgoing, []int32{0})
	assert.DeepEqual(t, f.Blocks[2].Incoming, []int32{0})
	assert.Equal(t, f.InstrCount(), 10)
}

func TestCapture_UnplacedLabel(t *testing.T) {
	b := hir.New()
	b.Branch(b.NewNamedLabel("nowhere"), 0)

	f := Capture("f", b)
	assert.Assert(t, !f.Finalized)
	assert.Equal(t, len(f.Labels), 1)
	assert.Equal(t, f.Labels[0].Block, None)
}

func TestEncodeDecode(t *testing.T) {
	want := Capture("sample", sample(t))
	data, err := Marshal(want)
	assert.NilError(t, err)

	got, err := Unmarshal(data)
	assert.NilError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot changed across encoding (-want +got):\n%s", diff)
	}
}

func TestDecode_SchemaMismatch(t *testing.T) {
	data, err := msgpack.Marshal(&Function{Schema: SchemaVersion + 1})
	assert.NilError(t, err)
	_, err = Decode(bytes.NewReader(data))
	assert.Assert(t, errors.Is(err, ErrSchema))

	_, err = Unmarshal([]byte{0xc1})
	assert.ErrorContains(t, err, "snapshot: decode")
}

func TestKeyFor(t *testing.T) {
	k := KeyFor("f", []byte("src"), "validate")
	assert.Equal(t, k, KeyFor("f", []byte("src"), "validate"))
	assert.Assert(t, k != KeyFor("g", []byte("src"), "validate"))
	assert.Assert(t, k != KeyFor("f", []byte("src"), ""))
	dep := KeyFor("f", []byte("src"), "validate", "g@0x10")
	assert.Assert(t, k != dep)
	assert.Assert(t, dep != KeyFor("f", []byte("src"), "validate", "g@0x20"))
	// Parts are length-prefixed, so moving a boundary changes the key.
	assert.Assert(t, KeyFor("ab", []byte("c"), "") != KeyFor("a", []byte("bc"), ""))
	assert.Equal(t, len(k.String()), 64)
}

func TestDiskCache(t *testing.T) {
	dir := fs.NewDir(t, "cache")
	c, err := OpenDiskCache(dir.Join("recomp"))
	assert.NilError(t, err)

	key := KeyFor("sample", nil, "")
	_, ok, err := c.Get(key)
	assert.NilError(t, err)
	assert.Assert(t, !ok)

	want := Capture("sample", sample(t))
	assert.NilError(t, c.Put(key, want))
	got, ok, err := c.Get(key)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.DeepEqual(t, got, want)

	assert.NilError(t, c.DropAll())
	_, ok, err = c.Get(key)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}

func TestDiskCache_Nil(t *testing.T) {
	var c *DiskCache
	assert.NilError(t, c.Put(Digest{}, &Function{}))
	_, ok, err := c.Get(Digest{})
	assert.NilError(t, err)
	assert.Assert(t, !ok)
	assert.NilError(t, c.DropAll())
}

func TestDiskCache_Concurrent(t *testing.T) {
	c, err := OpenDiskCache(t.TempDir())
	assert.NilError(t, err)

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			name := fmt.Sprintf("f%d", i%4)
			key := KeyFor(name, nil, "")
			if err := c.Put(key, &Function{Schema: SchemaVersion, Name: name}); err != nil {
				return err
			}
			f, ok, err := c.Get(key)
			if err != nil {
				return err
			}
			if !ok || f.Name != name {
				return fmt.Errorf("lost entry for %s", name)
			}
			return nil
		})
	}
	assert.NilError(t, g.Wait())
}
