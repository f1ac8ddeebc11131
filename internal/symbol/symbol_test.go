package symbol

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestTable_DeclareLookup(t *testing.T) {
	tab := NewTable()
	f, err := tab.Declare("memcpy", 0x82001000)
	assert.NilError(t, err)

	again, err := tab.Declare("memcpy", 0x82001000)
	assert.NilError(t, err)
	assert.Equal(t, f, again)

	got, ok := tab.LookupAddress(0x82001000)
	assert.Assert(t, ok)
	assert.Equal(t, got.Name, "memcpy")

	_, err = tab.Declare("memcpy", 0x82002000)
	assert.ErrorContains(t, err, "already declared")

	_, err = tab.Declare("other", 0x82001000)
	assert.ErrorContains(t, err, "already bound")
	assert.Equal(t, tab.Len(), 1)
}

func TestTable_NormalizesNames(t *testing.T) {
	tab := NewTable()
	// "é" precomposed vs. "e" + combining acute.
	_, err := tab.Declare("caf\u00e9", 0)
	assert.NilError(t, err)

	f, ok := tab.Lookup("cafe\u0301")
	assert.Assert(t, ok)
	assert.Equal(t, f.Name, "caf\u00e9")
}

func TestDisplayName(t *testing.T) {
	var nilFunc *Func
	assert.Equal(t, nilFunc.DisplayName(), "<fn>")
	assert.Equal(t, (&Func{}).DisplayName(), "<fn>")
	assert.Equal(t, (&Func{Name: "f"}).DisplayName(), "f")
}
