package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB
)

// scriptSeeds returns every script under testdata/scripts, clamped.
func scriptSeeds() [][]byte {
	root := filepath.Join("..", "..", "testdata", "scripts")
	if _, err := os.Stat(root); err != nil {
		return nil
	}
	var seeds [][]byte
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".toml" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		seeds = append(seeds, clampSeed(src))
		return nil
	})
	return seeds
}

func addScriptSeeds(f *testing.F) {
	for _, s := range scriptSeeds() {
		f.Add(s)
	}
	f.Add([]byte{})
	f.Add([]byte("[[func]]\nname = \"f\"\n"))
	f.Add([]byte("[[func]]\nname = \"f\"\n[[func.step]]\nop = \"return\"\n"))
	// branch to a label that is never placed
	f.Add([]byte("[[func]]\nname = \"f\"\n[[func.step]]\nop = \"branch\"\nargs = [\"@x\"]\n"))
	// label split after the last instruction
	f.Add([]byte("[[func]]\nname = \"f\"\n[[func.step]]\nop = \"load_context\"\ndest = \"a\"\ntype = \"i32\"\n" +
		"[[func.step]]\nop = \"insert_label\"\nargs = [\"@m\", \"a\"]\n"))
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
