package observ

import (
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestTimer_Phases(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("parse")
	tm.End(idx, "3 funcs")
	tm.End(42, "ignored")

	r := tm.Report()
	assert.Equal(t, len(r.Phases), 1)
	assert.Equal(t, r.Phases[0].Name, "parse")
	assert.Equal(t, r.Phases[0].Note, "3 funcs")
	assert.Assert(t, is.Contains(tm.Summary(), "// 3 funcs"))
}

func TestTimer_AddAggregates(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.Add("finalize", time.Millisecond)
		}()
	}
	wg.Wait()

	r := tm.Report()
	assert.Equal(t, len(r.Phases), 1)
	assert.Equal(t, r.Phases[0].Count, 8)
	assert.Equal(t, r.Phases[0].DurationMS, 8.0)
	assert.Equal(t, r.TotalMS, 0.0)
	assert.Assert(t, is.Contains(tm.Summary(), "x8"))
}

func TestTimer_Empty(t *testing.T) {
	assert.DeepEqual(t, NewTimer().Report(), Report{})
	var nilTimer *Timer
	nilTimer.Add("x", time.Second)
}
