package buildpipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"recomp/internal/config"
	"recomp/internal/hir"
	"recomp/internal/script"
	"recomp/internal/snapshot"
	"recomp/internal/trace"
)

const source = `
[[func]]
name = "one"
  [[func.step]]
  op = "load_context"
  dest = "x"
  type = "i32"
  [[func.step]]
  op = "add"
  dest = "y"
  args = ["x", "1:i32"]
  [[func.step]]
  op = "store_context"
  offset = 4
  args = ["y"]
  [[func.step]]
  op = "return"

[[func]]
name = "two"
  [[func.step]]
  op = "call"
  args = ["&one"]
  [[func.step]]
  op = "return"

[[func]]
name = "three"
  [[func.step]]
  op = "load_context"
  dest = "x"
  type = "i64"
  [[func.step]]
  op = "branch_true"
  args = ["x", "@out"]
  [[func.step]]
  op = "nop"
  [[func.step]]
  op = "label"
  args = ["@out"]
  [[func.step]]
  op = "return"
`

const broken = `
[[func]]
name = "bad"
  [[func.step]]
  op = "warp"
`

func parse(t *testing.T, src string) *script.File {
	t.Helper()
	f, err := script.Parse([]byte(src))
	assert.NilError(t, err)
	return f
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Build.Jobs = 2
	cfg.Cache.Enabled = false
	return &cfg
}

func funcEvents(events []Event, fn string) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Func == fn {
			ev.Elapsed = 0
			out = append(out, ev)
		}
	}
	return out
}

func TestBuild(t *testing.T) {
	sink := &RecordingSink{}
	res, err := Build(context.Background(), &Request{
		Script:   parse(t, source),
		Config:   testConfig(),
		Progress: sink,
	})
	assert.NilError(t, err)
	assert.Equal(t, len(res.Funcs), 3)
	assert.Equal(t, res.Failed(), 0)

	for i, name := range []string{"one", "two", "three"} {
		f := res.Funcs[i]
		assert.Equal(t, f.Name, name)
		assert.Assert(t, f.Snapshot != nil)
		assert.Assert(t, f.Snapshot.Finalized)
		assert.Assert(t, !f.Cached)
	}
	assert.Equal(t, res.Funcs[1].Snapshot.Instrs[0].Operands[0].Symbol, "one")

	want := []Event{{Func: "one", Stage: StageBuild, Status: StatusQueued}}
	for _, st := range Stages {
		want = append(want,
			Event{Func: "one", Stage: st, Status: StatusWorking},
			Event{Func: "one", Stage: st, Status: StatusDone})
	}
	if diff := cmp.Diff(want, funcEvents(sink.Events(), "one")); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	var names []string
	for _, p := range res.Timings.Phases {
		names = append(names, p.Name)
		assert.Equal(t, p.Count, 3)
	}
	assert.Assert(t, is.Len(names, 4))
}

func TestBuild_FailureStops(t *testing.T) {
	file := parse(t, broken)
	sink := &RecordingSink{}
	_, err := Build(context.Background(), &Request{Script: file, Config: testConfig(), Progress: sink})
	assert.Assert(t, errors.Is(err, script.ErrUnknownOp))
	assert.ErrorContains(t, err, "bad: build:")

	events := funcEvents(sink.Events(), "bad")
	last := events[len(events)-1]
	assert.Equal(t, last.Status, StatusError)
	assert.Equal(t, last.Stage, StageBuild)
}

func TestBuild_KeepGoing(t *testing.T) {
	file := parse(t, source)
	file.Funcs = append(file.Funcs, parse(t, broken).Funcs...)

	res, err := Build(context.Background(), &Request{Script: file, Config: testConfig(), KeepGoing: true})
	assert.Assert(t, errors.Is(err, script.ErrUnknownOp))
	assert.Equal(t, res.Failed(), 1)
	assert.Assert(t, res.Funcs[0].Snapshot != nil)
	assert.Assert(t, res.Funcs[3].Snapshot == nil)
}

func TestBuild_ContractViolation(t *testing.T) {
	file := parse(t, `
[[func]]
name = "mix"
  [[func.step]]
  op = "add"
  args = ["1:i32", "1:i64"]
`)
	_, err := Build(context.Background(), &Request{Script: file, Config: testConfig()})
	assert.Assert(t, errors.Is(err, hir.ErrContract))
}

func TestBuild_Cache(t *testing.T) {
	cache, err := snapshot.OpenDiskCache(t.TempDir())
	assert.NilError(t, err)
	req := &Request{Script: parse(t, source), Config: testConfig(), Cache: cache}

	first, err := Build(context.Background(), req)
	assert.NilError(t, err)

	sink := &RecordingSink{}
	req.Progress = sink
	second, err := Build(context.Background(), req)
	assert.NilError(t, err)
	for i, f := range second.Funcs {
		assert.Assert(t, f.Cached, f.Name)
		assert.DeepEqual(t, f.Snapshot, first.Funcs[i].Snapshot)
	}
	assert.DeepEqual(t, funcEvents(sink.Events(), "two"), []Event{
		{Func: "two", Stage: StageBuild, Status: StatusQueued},
		{Func: "two", Stage: StageEncode, Status: StatusDone, Cached: true},
	})

	// A settings change misses.
	req.Config.Build.Validate = false
	third, err := Build(context.Background(), req)
	assert.NilError(t, err)
	assert.Assert(t, !third.Funcs[0].Cached)
}

const caller = `
[[func]]
name = "caller"
  [[func.step]]
  op = "call"
  args = ["&callee"]
  [[func.step]]
  op = "return"
`

func withCallee(addr string) string {
	return caller + `
[[func]]
name = "callee"
address = ` + addr + `
  [[func.step]]
  op = "return"
`
}

func buildCaller(t *testing.T, cache *snapshot.DiskCache, src string) FuncResult {
	t.Helper()
	res, _ := Build(context.Background(), &Request{
		Script: parse(t, src),
		Config: testConfig(),
		Cache:  cache,
		Only:   []string{"caller"},
	})
	assert.Equal(t, len(res.Funcs), 1)
	return res.Funcs[0]
}

func TestBuild_CacheTracksCallees(t *testing.T) {
	cache, err := snapshot.OpenDiskCache(t.TempDir())
	assert.NilError(t, err)

	first := buildCaller(t, cache, withCallee("0x100"))
	assert.NilError(t, first.Err)
	assert.Assert(t, !first.Cached)
	assert.Assert(t, buildCaller(t, cache, withCallee("0x100")).Cached)

	// Without the callee the cached snapshot must not hide the failure.
	gone := buildCaller(t, cache, caller)
	assert.ErrorContains(t, gone.Err, `undeclared symbol "callee"`)
	assert.Assert(t, !gone.Cached)

	moved := buildCaller(t, cache, withCallee("0x200"))
	assert.NilError(t, moved.Err)
	assert.Assert(t, !moved.Cached)
	assert.Assert(t, buildCaller(t, cache, withCallee("0x200")).Cached)
}

func TestBuild_DumpSkipsCacheReads(t *testing.T) {
	cache, err := snapshot.OpenDiskCache(t.TempDir())
	assert.NilError(t, err)
	req := &Request{Script: parse(t, source), Config: testConfig(), Cache: cache, Only: []string{"one"}}
	_, err = Build(context.Background(), req)
	assert.NilError(t, err)

	var dumps strings.Builder
	req.Dump = func(name string, b *hir.Builder) {
		dumps.WriteString("; " + name + "\n")
	}
	res, err := Build(context.Background(), req)
	assert.NilError(t, err)
	assert.Assert(t, !res.Funcs[0].Cached)
	assert.Equal(t, dumps.String(), "; one\n")

	// The dumping build still refreshed the cache.
	req.Dump = nil
	res, err = Build(context.Background(), req)
	assert.NilError(t, err)
	assert.Assert(t, res.Funcs[0].Cached)
}

func TestBuild_Only(t *testing.T) {
	res, err := Build(context.Background(), &Request{
		Script: parse(t, source),
		Config: testConfig(),
		Only:   []string{"three"},
	})
	assert.NilError(t, err)
	assert.Equal(t, len(res.Funcs), 1)
	assert.Equal(t, res.Funcs[0].Name, "three")

	_, err = Build(context.Background(), &Request{Script: parse(t, source), Only: []string{"four"}})
	assert.ErrorContains(t, err, `no function named "four"`)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, &Request{Script: parse(t, source), Config: testConfig()})
	assert.Assert(t, errors.Is(err, context.Canceled))
}

func TestBuild_TraceAndDump(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelFunc)
	ctx := trace.WithTracer(context.Background(), ring)

	var dumps strings.Builder
	_, err := Build(ctx, &Request{
		Script: parse(t, source),
		Config: testConfig(),
		Only:   []string{"one"},
		Dump: func(name string, b *hir.Builder) {
			dumps.WriteString("; " + name + "\n")
			assert.NilError(t, hir.Dump(&dumps, b))
		},
	})
	assert.NilError(t, err)
	assert.Assert(t, is.Contains(dumps.String(), "; one\n<entry>:\n"))

	var spans []string
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanBegin {
			spans = append(spans, ev.Name)
		}
	}
	assert.DeepEqual(t, spans, []string{"build", "func:one"})
}

func TestBuild_MissingRequest(t *testing.T) {
	_, err := Build(context.Background(), nil)
	assert.ErrorContains(t, err, "missing build request")
}
