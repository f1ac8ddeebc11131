package arena

import (
	"testing"

	"gotest.tools/v3/assert"
)

type node struct {
	id   int
	name string
}

func TestArena_AllocateGet(t *testing.T) {
	a := New[node](0)
	if got := a.Get(0); got != nil {
		t.Fatalf("Get(0) = %v, want nil", got)
	}

	h1 := a.Allocate(node{id: 1})
	h2 := a.Allocate(node{id: 2})
	assert.Equal(t, h1, uint32(1))
	assert.Equal(t, h2, uint32(2))
	assert.Equal(t, a.Len(), uint32(2))
	assert.Equal(t, a.Get(h2).id, 2)
	assert.Assert(t, a.Valid(h1))
	assert.Assert(t, !a.Valid(3))
}

func TestArena_PointersStableAcrossPages(t *testing.T) {
	a := New[node](4)
	first := a.Get(a.Allocate(node{id: 0}))
	for i := 1; i < pageSize*3; i++ {
		a.Allocate(node{id: i})
	}
	first.name = "kept"
	assert.Equal(t, a.Get(1).name, "kept")
	assert.Equal(t, a.Get(pageSize*3).id, pageSize*3-1)
}

func TestArena_Reset(t *testing.T) {
	a := New[node](0)
	a.Allocate(node{id: 7})
	a.Reset()
	assert.Equal(t, a.Len(), uint32(0))
	assert.Assert(t, !a.Valid(1))

	h := a.Allocate(node{id: 8})
	assert.Equal(t, h, uint32(1))
	assert.Equal(t, a.Get(h).id, 8)
}

func TestArena_DebugFill(t *testing.T) {
	a := New[node](0)
	a.SetDebugFill(true)
	p := a.Get(a.Allocate(node{id: 9, name: "stale"}))
	a.Reset()
	assert.Equal(t, p.id, 0)
	assert.Equal(t, p.name, "")
}

func TestArena_GetOutOfRangePanics(t *testing.T) {
	a := New[node](0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range handle")
		}
	}()
	a.Get(5)
}
