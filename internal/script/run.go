package script

import (
	"fmt"
	"strconv"
	"strings"

	"recomp/internal/hir"
	"recomp/internal/opcode"
	"recomp/internal/symbol"
)

var attributeNames = map[string]uint32{
	"inline": hir.AttribInline,
}

// runner holds the name bindings of one function while its steps replay.
type runner struct {
	b      *hir.Builder
	syms   *symbol.Table
	values map[string]hir.ValueID
	locals map[string]hir.ValueID
	labels map[string]hir.LabelID
}

// Run replays fn through b. Builder contract violations come back as errors
// wrapping hir.ErrContract; the builder is left in whatever state the
// failing step produced.
func Run(b *hir.Builder, fn *Func, syms *symbol.Table) error {
	r := &runner{
		b:      b,
		syms:   syms,
		values: make(map[string]hir.ValueID),
		locals: make(map[string]hir.ValueID, len(fn.Locals)),
		labels: make(map[string]hir.LabelID),
	}
	if err := r.prologue(fn); err != nil {
		return fmt.Errorf("%s: %w", fn.Name, err)
	}
	for i := range fn.Steps {
		s := &fn.Steps[i]
		h, ok := ops[s.Op]
		if !ok {
			return fmt.Errorf("%s: step %d: %w %q", fn.Name, i+1, ErrUnknownOp, s.Op)
		}
		var stepErr error
		if err := hir.Capture(func() { stepErr = h(r, s) }); err != nil {
			stepErr = err
		}
		if stepErr != nil {
			return fmt.Errorf("%s: step %d (%s): %w", fn.Name, i+1, s.Op, stepErr)
		}
	}
	return nil
}

func (r *runner) prologue(fn *Func) error {
	var attrs uint32
	for _, a := range fn.Attributes {
		bit, ok := attributeNames[a]
		if !ok {
			return fmt.Errorf("unknown attribute %q", a)
		}
		attrs |= bit
	}
	r.b.SetAttributes(attrs)
	for _, l := range fn.Locals {
		t, err := parseType(l.Type)
		if err != nil {
			return fmt.Errorf("local %q: %w", l.Name, err)
		}
		if _, dup := r.locals[l.Name]; dup {
			return fmt.Errorf("local %q declared twice", l.Name)
		}
		r.locals[l.Name] = r.b.AllocLocal(t)
	}
	return nil
}

// bind records the result of a step under its dest name. A step without a
// dest discards the result.
func (r *runner) bind(s *Step, v hir.ValueID) error {
	if s.Dest == "" {
		return nil
	}
	if _, dup := r.values[s.Dest]; dup {
		return fmt.Errorf("%q is already defined", s.Dest)
	}
	r.values[s.Dest] = v
	return nil
}

func (r *runner) args(s *Step, n int) error {
	if len(s.Args) != n {
		return fmt.Errorf("want %d args, got %d", n, len(s.Args))
	}
	return nil
}

// valueArgs resolves every argument of s as a value; s must have exactly n.
func (r *runner) valueArgs(s *Step, n int) ([]hir.ValueID, error) {
	if err := r.args(s, n); err != nil {
		return nil, err
	}
	vs := make([]hir.ValueID, n)
	for i, a := range s.Args {
		v, err := r.value(a)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func (r *runner) value(arg string) (hir.ValueID, error) {
	switch {
	case strings.HasPrefix(arg, "$"):
		v, ok := r.locals[arg[1:]]
		if !ok {
			return hir.NoValue, fmt.Errorf("unknown local %q", arg)
		}
		return v, nil
	case strings.HasPrefix(arg, "@"), strings.HasPrefix(arg, "&"):
		return hir.NoValue, fmt.Errorf("%q is not a value", arg)
	case strings.Contains(arg, ":"):
		c, err := parseLiteral(arg)
		if err != nil {
			return hir.NoValue, err
		}
		return r.b.LoadConstant(c), nil
	}
	v, ok := r.values[arg]
	if !ok {
		return hir.NoValue, fmt.Errorf("undefined value %q", arg)
	}
	return v, nil
}

// label resolves @name, creating the label on first reference.
func (r *runner) label(arg string) (hir.LabelID, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok || name == "" {
		return hir.NoLabel, fmt.Errorf("%q is not a label", arg)
	}
	if l, ok := r.labels[name]; ok {
		return l, nil
	}
	l := r.b.NewNamedLabel(name)
	r.labels[name] = l
	return l, nil
}

func (r *runner) symbol(arg string) (*symbol.Func, error) {
	name, ok := strings.CutPrefix(arg, "&")
	if !ok || name == "" {
		return nil, fmt.Errorf("%q is not a symbol", arg)
	}
	if r.syms == nil {
		return nil, fmt.Errorf("no symbol table for %q", arg)
	}
	fn, ok := r.syms.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("undeclared symbol %q", name)
	}
	return fn, nil
}

func parseType(s string) (hir.TypeName, error) {
	t, ok := hir.ParseType(s)
	if !ok {
		return 0, fmt.Errorf("unknown type %q", s)
	}
	return t, nil
}

func parseRound(s string) (opcode.RoundMode, error) {
	if s == "" {
		return opcode.RoundToZero, nil
	}
	m, ok := opcode.ParseRoundMode(s)
	if !ok {
		return 0, fmt.Errorf("unknown round mode %q", s)
	}
	return m, nil
}

// parseLiteral reads "<value>:<type>". Integers accept any Go integer
// syntax and may be given unsigned; vectors are four comma-separated
// float32 lanes.
func parseLiteral(arg string) (hir.Constant, error) {
	i := strings.LastIndexByte(arg, ':')
	lit, typ := arg[:i], arg[i+1:]
	t, err := parseType(typ)
	if err != nil {
		return hir.Constant{}, fmt.Errorf("literal %q: %w", arg, err)
	}
	switch {
	case t.IsInt():
		if v, err := strconv.ParseInt(lit, 0, 64); err == nil {
			return hir.IntConstant(t, v), nil
		}
		u, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			return hir.Constant{}, fmt.Errorf("literal %q: bad integer", arg)
		}
		return hir.IntConstant(t, int64(u)), nil
	case t.IsFloat():
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return hir.Constant{}, fmt.Errorf("literal %q: bad float", arg)
		}
		return hir.FloatConstant(t, f), nil
	default:
		lanes := strings.Split(lit, ",")
		if len(lanes) != 4 {
			return hir.Constant{}, fmt.Errorf("literal %q: want 4 lanes", arg)
		}
		var fs [4]float32
		for j, lane := range lanes {
			f, err := strconv.ParseFloat(strings.TrimSpace(lane), 32)
			if err != nil {
				return hir.Constant{}, fmt.Errorf("literal %q: bad lane %q", arg, lane)
			}
			fs[j] = float32(f)
		}
		return hir.VecConstant(hir.V128FromFloats(fs[0], fs[1], fs[2], fs[3])), nil
	}
}
