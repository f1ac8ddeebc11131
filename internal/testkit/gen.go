package testkit

import (
	"fmt"

	"pgregory.net/rapid"

	"recomp/internal/script"
)

var (
	intOps     = []string{"add", "sub", "mul", "and", "or", "xor", "shl", "shr", "sha", "rotate_left", "max", "min"}
	compareOps = []string{"compare_eq", "compare_ne", "compare_slt", "compare_ult", "compare_sge", "compare_uge"}
)

// scriptGen tracks the names a partial script has defined so every drawn
// step references something valid.
type scriptGen struct {
	steps   []script.Step
	ints    []string
	conds   []string
	labels  []string
	placed  map[string]bool
	nextVal int
}

func (g *scriptGen) fresh(prefix string) string {
	g.nextVal++
	return fmt.Sprintf("%s%d", prefix, g.nextVal)
}

func (g *scriptGen) emit(s script.Step) { g.steps = append(g.steps, s) }

func (g *scriptGen) step(t *rapid.T) {
	action := rapid.IntRange(0, 9).Draw(t, "action")
	if len(g.ints) == 0 {
		action = 0
	}
	switch action {
	case 0:
		dest := g.fresh("x")
		g.emit(script.Step{
			Op:     "load_context",
			Dest:   dest,
			Offset: rapid.Uint64Range(0, 64).Draw(t, "offset") * 4,
			Type:   "i32",
		})
		g.ints = append(g.ints, dest)
	case 1:
		dest := g.fresh("k")
		g.emit(script.Step{
			Op:   "const",
			Dest: dest,
			Args: []string{fmt.Sprintf("%d:i32", rapid.Int32Range(-4, 4).Draw(t, "k"))},
		})
		g.ints = append(g.ints, dest)
	case 2, 3:
		dest := g.fresh("v")
		g.emit(script.Step{
			Op:   rapid.SampledFrom(intOps).Draw(t, "op"),
			Dest: dest,
			Args: []string{g.anyInt(t, "lhs"), g.anyInt(t, "rhs")},
		})
		g.ints = append(g.ints, dest)
	case 4:
		dest := g.fresh("c")
		g.emit(script.Step{
			Op:   rapid.SampledFrom(compareOps).Draw(t, "cmp"),
			Dest: dest,
			Args: []string{g.anyInt(t, "lhs"), g.anyInt(t, "rhs")},
		})
		g.conds = append(g.conds, dest)
	case 5:
		g.emit(script.Step{
			Op:     "store_context",
			Offset: rapid.Uint64Range(0, 64).Draw(t, "offset") * 4,
			Args:   []string{g.anyInt(t, "value")},
		})
	case 6:
		label := g.anyLabel(t)
		if len(g.conds) > 0 && rapid.Bool().Draw(t, "conditional") {
			op := rapid.SampledFrom([]string{"branch_true", "branch_false"}).Draw(t, "branch")
			g.emit(script.Step{Op: op, Args: []string{rapid.SampledFrom(g.conds).Draw(t, "cond"), label}})
			return
		}
		g.emit(script.Step{Op: "branch", Args: []string{label}})
	case 7:
		var unplaced []string
		for _, l := range g.labels {
			if !g.placed[l] {
				unplaced = append(unplaced, l)
			}
		}
		if len(unplaced) == 0 {
			unplaced = append(unplaced, g.newLabel())
		}
		l := rapid.SampledFrom(unplaced).Draw(t, "mark")
		g.placed[l] = true
		g.emit(script.Step{Op: "label", Args: []string{l}})
	case 8:
		g.emit(script.Step{Op: "comment", Text: g.fresh("note ")})
	case 9:
		g.emit(script.Step{Op: "return"})
	}
}

func (g *scriptGen) anyInt(t *rapid.T, label string) string {
	return rapid.SampledFrom(g.ints).Draw(t, label)
}

func (g *scriptGen) newLabel() string {
	l := fmt.Sprintf("@l%d", len(g.labels))
	g.labels = append(g.labels, l)
	return l
}

func (g *scriptGen) anyLabel(t *rapid.T) string {
	if len(g.labels) == 0 || rapid.Bool().Draw(t, "new_label") {
		return g.newLabel()
	}
	return rapid.SampledFrom(g.labels).Draw(t, "label")
}

// Func draws a well-formed integer function script: every argument names
// an earlier value and every referenced label is placed exactly once.
func Func() *rapid.Generator[*script.Func] {
	return rapid.Custom(func(t *rapid.T) *script.Func {
		g := &scriptGen{placed: make(map[string]bool)}
		n := rapid.IntRange(1, 40).Draw(t, "steps")
		for range n {
			g.step(t)
		}
		for _, l := range g.labels {
			if !g.placed[l] {
				g.placed[l] = true
				g.emit(script.Step{Op: "label", Args: []string{l}})
			}
		}
		g.emit(script.Step{Op: "return"})
		return &script.Func{
			Name:  rapid.StringMatching(`[a-z][a-z0-9_]{0,11}`).Draw(t, "name"),
			Steps: g.steps,
		}
	})
}
