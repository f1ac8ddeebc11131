package opcode

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestCatalog_Complete(t *testing.T) {
	seen := make(map[string]bool)
	for _, info := range All() {
		assert.Assert(t, info.Name != "", "opcode %d has no name", info.Num)
		assert.Assert(t, !seen[info.Name], "duplicate name %s", info.Name)
		seen[info.Name] = true

		got, ok := ByName(info.Name)
		assert.Assert(t, ok)
		assert.Equal(t, got, info.Num)
	}
	assert.Equal(t, len(seen), Count())
}

func TestSignature_Fields(t *testing.T) {
	tests := []struct {
		op   Opcode
		want [4]SigType
		str  string
	}{
		{Branch, [4]SigType{SigTypeX, SigTypeL, SigTypeX, SigTypeX}, "X_L"},
		{BranchTrue, [4]SigType{SigTypeX, SigTypeV, SigTypeL, SigTypeX}, "X_V_L"},
		{Call, [4]SigType{SigTypeX, SigTypeS, SigTypeX, SigTypeX}, "X_S"},
		{Add, [4]SigType{SigTypeV, SigTypeV, SigTypeV, SigTypeX}, "V_V_V"},
		{Select, [4]SigType{SigTypeV, SigTypeV, SigTypeV, SigTypeV}, "V_V_V_V"},
		{LoadContext, [4]SigType{SigTypeV, SigTypeO, SigTypeX, SigTypeX}, "V_O"},
		{Return, [4]SigType{SigTypeX, SigTypeX, SigTypeX, SigTypeX}, "X"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			s := Lookup(tt.op).Signature
			assert.Equal(t, s.Dest(), tt.want[0])
			assert.Equal(t, s.Src1(), tt.want[1])
			assert.Equal(t, s.Src2(), tt.want[2])
			assert.Equal(t, s.Src3(), tt.want[3])
			for i := range 3 {
				assert.Equal(t, s.Src(i), tt.want[i+1])
			}
			assert.Equal(t, s.String(), tt.str)
		})
	}
}

func TestFlags(t *testing.T) {
	assert.Assert(t, Lookup(Branch).Flags.Has(FlagBranch))
	assert.Assert(t, Lookup(SourceOffset).Flags.Has(FlagHide))
	assert.Assert(t, !Lookup(Add).Flags.Has(FlagBranch))
	assert.Equal(t, (FlagBranch | FlagMemory).String(), "branch|memory")
	assert.Equal(t, Flags(0).String(), "-")
}

func TestMasks(t *testing.T) {
	assert.Equal(t, SwizzleXYZWToXYZW, uint32(0xE4))
	assert.Equal(t, PermuteIdentity, uint32(0x03020100))
}

func TestLookupUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Lookup(numOpcodes)
}

func TestParseFlagNames(t *testing.T) {
	m, ok := ParseRoundMode("to_nearest")
	assert.Assert(t, ok)
	assert.Equal(t, m, RoundToNearest)
	_, ok = ParseRoundMode("nearest")
	assert.Assert(t, !ok)

	p, ok := ParsePackType("float16_4")
	assert.Assert(t, ok)
	assert.Equal(t, p, PackFloat16x4)
	assert.Equal(t, PackS16In32Hi.String(), "s16_in_32_hi")
}
