package ui

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"recomp/internal/buildpipeline"
)

func send(m *progressModel, ev buildpipeline.Event) {
	m.Update(eventMsg(ev))
}

func TestProgressModel_TracksFunctions(t *testing.T) {
	m := NewProgressModel("recomp build", []string{"alpha", "beta", "gamma"}, nil).(*progressModel)

	send(m, buildpipeline.Event{Func: "alpha", Stage: buildpipeline.StageFinalize, Status: buildpipeline.StatusWorking})
	send(m, buildpipeline.Event{Func: "beta", Stage: buildpipeline.StageEncode, Status: buildpipeline.StatusDone, Cached: true})
	send(m, buildpipeline.Event{Func: "gamma", Stage: buildpipeline.StageBuild, Status: buildpipeline.StatusError})
	send(m, buildpipeline.Event{Func: "unknown", Stage: buildpipeline.StageBuild, Status: buildpipeline.StatusWorking})

	assert.Equal(t, m.items[0].status, "finalizing")
	assert.Assert(t, !m.items[0].finished)
	assert.Equal(t, m.items[1].status, "cached")
	assert.Equal(t, m.items[2].status, "error")
	assert.Equal(t, m.finished(), 2)

	view := m.View()
	assert.Assert(t, is.Contains(view, "recomp build [2/3] 1 failed"))
	assert.Assert(t, is.Contains(view, "alpha"))

	// A done event before encode does not finish the function.
	send(m, buildpipeline.Event{Func: "alpha", Stage: buildpipeline.StageValidate, Status: buildpipeline.StatusDone, Elapsed: time.Millisecond})
	assert.Assert(t, !m.items[0].finished)
	send(m, buildpipeline.Event{Func: "alpha", Stage: buildpipeline.StageEncode, Status: buildpipeline.StatusDone, Elapsed: 500 * time.Microsecond})
	assert.Equal(t, m.items[0].status, "done")
	assert.Assert(t, is.Contains(m.View(), "alpha (1.5ms)"))

	m.Update(doneMsg{})
	assert.Assert(t, is.Contains(m.View(), "done: recomp build [3/3]"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, truncate("short", 10), "short")
	assert.Equal(t, truncate("function_name", 8), "funct...")
	assert.Equal(t, truncate("関数関数関数", 7), "関数...")
	assert.Equal(t, truncate("abcdef", 2), "ab")
}
