// Package symbol holds callable targets referenced by call instructions.
package symbol

import (
	"fmt"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Func is a callable target. The builder only reads its display name.
type Func struct {
	Name    string
	Address uint64
}

// DisplayName returns the name used in dumps.
func (f *Func) DisplayName() string {
	if f == nil || f.Name == "" {
		return "<fn>"
	}
	return f.Name
}

// Table resolves functions by name and address. Safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	byName map[string]*Func
	byAddr map[uint64]*Func
}

func NewTable() *Table {
	return &Table{
		byName: make(map[string]*Func),
		byAddr: make(map[uint64]*Func),
	}
}

// Declare registers a function. Declaring the same name and address twice
// returns the existing entry; a name bound to a different address is an error.
func (t *Table) Declare(name string, addr uint64) (*Func, error) {
	key := norm.NFC.String(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.byName[key]; ok {
		if f.Address != addr {
			return nil, fmt.Errorf("symbol %q already declared at %#x", key, f.Address)
		}
		return f, nil
	}
	if f, ok := t.byAddr[addr]; ok && addr != 0 {
		return nil, fmt.Errorf("address %#x already bound to %q", addr, f.Name)
	}
	f := &Func{Name: key, Address: addr}
	t.byName[key] = f
	if addr != 0 {
		t.byAddr[addr] = f
	}
	return f, nil
}

// Lookup finds a function by name.
func (t *Table) Lookup(name string) (*Func, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.byName[norm.NFC.String(name)]
	return f, ok
}

// LookupAddress finds a function by guest address.
func (t *Table) LookupAddress(addr uint64) (*Func, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.byAddr[addr]
	return f, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}
