package fuzztests

import (
	"testing"

	"recomp/internal/hir"
	"recomp/internal/script"
	"recomp/internal/snapshot"
	"recomp/internal/symbol"
	"recomp/internal/testkit"
)

// FuzzSnapshotDecode feeds arbitrary bytes to the snapshot decoder. Decode
// may fail but must not panic, and whatever it accepts must encode again.
func FuzzSnapshotDecode(f *testing.F) {
	for _, src := range scriptSeeds() {
		for _, data := range encodedSeeds(src) {
			f.Add(data)
		}
	}
	f.Add([]byte{})
	f.Add([]byte{0x80})       // empty map
	f.Add([]byte{0xdd, 0xff}) // truncated array32 header

	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		fn, err := snapshot.Unmarshal(input)
		if err != nil {
			return
		}
		// Decoded shapes need not be consistent; the checker must cope.
		_ = testkit.CheckSnapshotInvariants(fn)
		if _, err := snapshot.Marshal(fn); err != nil {
			t.Fatalf("re-encode: %v", err)
		}
	})
}

// encodedSeeds builds every function in a script and returns the encoded
// snapshots of the ones that build cleanly.
func encodedSeeds(src []byte) [][]byte {
	file, err := script.Parse(src)
	if err != nil {
		return nil
	}
	syms := symbol.NewTable()
	if file.Declare(syms) != nil {
		return nil
	}
	var out [][]byte
	for i := range file.Funcs {
		fn := &file.Funcs[i]
		b := hir.New()
		if script.Run(b, fn, syms) != nil || b.Finalize() != nil {
			continue
		}
		data, err := snapshot.Marshal(snapshot.Capture(fn.Name, b))
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out
}
