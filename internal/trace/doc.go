// Package trace records what the build pipeline is doing so slow or stuck
// builds can be diagnosed.
//
// Tracing is enabled from the command line:
//
//	recomp build --trace=- --trace-level=func funcs.toml
//
// Tracers:
//
//   - Nop discards everything.
//   - StreamTracer writes each event as it arrives.
//   - RingTracer keeps the most recent events for a crash dump.
//   - MultiTracer fans out to several tracers.
//
// Levels select how much is recorded: off, error (crash dumps only), phase
// (driver and pipeline phases), func (one span per built function) and
// debug (everything, including per-instruction events).
//
// The tracer and the current span travel through context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeFunc, "build:"+name, parent)
//	defer span.End("")
package trace
