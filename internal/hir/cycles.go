package hir

import "fmt"

// CheckNoCycles walks the program-order block list with two pointers and
// reports ErrCycle if the list loops back on itself. The edge graph may
// contain cycles; only program order is checked.
func (b *Builder) CheckNoCycles() error {
	tortoise, hare := b.blockHead, b.blockHead
	if !hare.IsValid() {
		return nil
	}
	for {
		hare = b.Block(hare).Next
		if !hare.IsValid() {
			return nil
		}
		if hare == tortoise {
			return fmt.Errorf("%w: block %d reached twice", ErrCycle, hare)
		}
		hare = b.Block(hare).Next
		if !hare.IsValid() {
			return nil
		}
		if hare == tortoise {
			return fmt.Errorf("%w: block %d reached twice", ErrCycle, hare)
		}
		tortoise = b.Block(tortoise).Next
	}
}

// AssertNoCycles panics if CheckNoCycles fails. Meant for tests and debug
// builds after structural edits.
func (b *Builder) AssertNoCycles() {
	if err := b.CheckNoCycles(); err != nil {
		panic(err)
	}
}
