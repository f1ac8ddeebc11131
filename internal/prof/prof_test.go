package prof

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestSession_WritesProfiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU: filepath.Join(dir, "cpu.pprof"),
		Mem: filepath.Join(dir, "mem.pprof"),
	}
	s, err := Start(opts)
	assert.NilError(t, err)
	assert.NilError(t, s.Stop())

	for _, p := range []string{opts.CPU, opts.Mem} {
		fi, err := os.Stat(p)
		assert.NilError(t, err)
		assert.Assert(t, fi.Size() > 0, p)
	}
}

func TestSession_NilStop(t *testing.T) {
	var s *Session
	assert.NilError(t, s.Stop())
}
