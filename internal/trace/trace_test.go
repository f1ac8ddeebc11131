package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"off", "error", "phase", "func", "debug"} {
		l, err := ParseLevel(strings.ToUpper(name))
		assert.NilError(t, err)
		assert.Equal(t, l.String(), name)
	}
	_, err := ParseLevel("verbose")
	assert.ErrorContains(t, err, "invalid trace level")
}

func TestLevel_ShouldEmit(t *testing.T) {
	assert.Assert(t, LevelPhase.ShouldEmit(ScopePass))
	assert.Assert(t, !LevelPhase.ShouldEmit(ScopeFunc))
	assert.Assert(t, LevelFunc.ShouldEmit(ScopeFunc))
	assert.Assert(t, !LevelFunc.ShouldEmit(ScopeInstr))
	assert.Assert(t, LevelDebug.ShouldEmit(ScopeInstr))
	assert.Assert(t, !LevelError.ShouldEmit(ScopeDriver))
}

func TestStreamTracer_SpansThroughContext(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelFunc, FormatNDJSON)
	ctx := WithTracer(context.Background(), tr)

	ctx, outer := Start(ctx, ScopePass, "build")
	_, inner := Start(ctx, ScopeFunc, "func:main")
	inner.WithExtra("instrs", "12").End("")
	_, skipped := Start(ctx, ScopeInstr, "add")
	skipped.End("")
	outer.End("ok")

	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev map[string]any
		assert.NilError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	assert.Equal(t, len(events), 4)
	assert.Equal(t, events[1]["name"], "func:main")
	assert.Equal(t, events[1]["parent_id"], float64(outer.ID()))
	assert.DeepEqual(t, events[2]["extra"], map[string]any{"instrs": "12"})
	assert.Equal(t, events[3]["detail"], "ok")
}

func TestRingTracer_Wraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopeFunc, Name: name})
	}
	var names []string
	for _, ev := range r.Snapshot() {
		names = append(names, ev.Name)
	}
	assert.DeepEqual(t, names, []string{"c", "d", "e"})

	var buf bytes.Buffer
	assert.NilError(t, r.Dump(&buf, FormatText))
	assert.Assert(t, is.Contains(buf.String(), "• e"))
}

func TestMultiTracer(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	assert.NilError(t, err)
	Begin(tr, ScopeDriver, "recomp build", 0).End("")

	m := tr.(*MultiTracer)
	assert.Equal(t, len(m.Ring().Snapshot()), 2)
	assert.Assert(t, is.Contains(buf.String(), "→ recomp build"))
	assert.NilError(t, tr.Close())
}

func TestNew_Off(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	assert.NilError(t, err)
	assert.Assert(t, !tr.Enabled())
	s := Begin(tr, ScopeDriver, "x", 0)
	assert.Equal(t, s.End(""), time.Duration(0))
}

func TestFormatText_SortsExtra(t *testing.T) {
	out := string(FormatEvent(&Event{
		Seq:   7,
		Kind:  KindSpanEnd,
		Scope: ScopeFunc,
		Name:  "func:f",
		Extra: map[string]string{"z": "1", "a": "2"},
	}, FormatText))
	assert.Equal(t, out, "#000007 [func] ← func:f {a=2, z=1}\n")
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, formatFor("trace.ndjson", FormatAuto), FormatNDJSON)
	assert.Equal(t, formatFor("-", FormatAuto), FormatText)
	assert.Equal(t, formatFor("trace.ndjson", FormatText), FormatText)
}

func TestHeartbeat_Status(t *testing.T) {
	r := NewRingTracer(16, LevelPhase)
	h := StartHeartbeat(r, time.Millisecond, func() string { return "funcs=3" })
	assert.Assert(t, h != nil)
	deadline := time.Now().Add(5 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()

	evs := r.Snapshot()
	assert.Assert(t, len(evs) > 0)
	assert.Equal(t, evs[0].Kind, KindHeartbeat)
	assert.Equal(t, evs[0].Detail, "#1 funcs=3")

	assert.Assert(t, StartHeartbeat(Nop, time.Millisecond, nil) == nil)
	var none *Heartbeat
	none.Stop()
}
