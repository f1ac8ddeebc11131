// Package arena provides paged, handle-addressed storage for IR nodes.
//
// Nodes are never freed individually: a build session allocates into an
// Arena and drops every node at once with Reset. Handles are 1-based so that
// the zero handle can mean "no node".
package arena

import (
	"fmt"

	"fortio.org/safecast"
)

// pageSize is the number of nodes per page. Pages are never reallocated, so
// pointers returned by Get stay valid until Reset.
const pageSize = 128

type Arena[T any] struct {
	pages     [][]T
	n         int
	debugFill bool
}

// New creates and returns an *Arena[T] with room for roughly capHint nodes
// before a new page is needed; zero is allowed.
func New[T any](capHint uint) *Arena[T] {
	pages := (int(capHint) + pageSize - 1) / pageSize
	a := &Arena[T]{pages: make([][]T, 0, max(pages, 1))}
	for range pages {
		a.pages = append(a.pages, make([]T, pageSize))
	}
	return a
}

// SetDebugFill makes Reset zero every page it retains, so that a handle kept
// across a reset observes zero values instead of stale nodes.
func (a *Arena[T]) SetDebugFill(enabled bool) {
	a.debugFill = enabled
}

// Allocate stores value and returns its handle (1-based).
func (a *Arena[T]) Allocate(value T) uint32 {
	page, slot := a.n/pageSize, a.n%pageSize
	if page == len(a.pages) {
		a.pages = append(a.pages, make([]T, pageSize))
	}
	a.pages[page][slot] = value
	a.n++
	h, err := safecast.Conv[uint32](a.n)
	if err != nil {
		panic(fmt.Errorf("arena: handle overflow: %w", err))
	}
	return h
}

// Get returns the node behind handle h, or nil for the zero handle.
// Handles past the allocated range panic.
func (a *Arena[T]) Get(h uint32) *T {
	if h == 0 {
		return nil
	}
	idx := int(h) - 1
	if idx >= a.n {
		panic(fmt.Errorf("arena: handle %d out of range (len %d)", h, a.n))
	}
	return &a.pages[idx/pageSize][idx%pageSize]
}

// Valid reports whether h refers to an allocated node.
func (a *Arena[T]) Valid(h uint32) bool {
	return h != 0 && int(h) <= a.n
}

func (a *Arena[T]) Len() uint32 {
	return uint32(a.n) //nolint:gosec // bounded by Allocate
}

// Reset drops every node. Pages are kept for reuse.
func (a *Arena[T]) Reset() {
	if a.debugFill {
		used := (a.n + pageSize - 1) / pageSize
		for i := range used {
			clear(a.pages[i])
		}
	}
	a.n = 0
}
