// Package trace provides the structured tracing layer of the aotc compiler.
//
// Every long running piece of the compiler (the driver, the type pipeline, the
// scheduler workers) reports what it is doing through a Tracer carried in the
// context. Tracing is how a stuck or slow build is diagnosed: a span that begins
// but never ends points at the type or element that hangs.
//
// # Usage
//
//	aotc compile --trace=- --trace-level=detail
//
// # Sinks
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes each event immediately (text or NDJSON)
//   - RingTracer: keeps the last N events in memory for crash dumps
//   - MultiTracer: fans events out to several tracers
//
// # Levels and scopes
//
// Scopes go from coarse to fine: driver, phase, type, element. LevelPhase emits
// driver and phase events, LevelDetail adds per-type stage transitions and
// LevelDebug adds per-element compilation events.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "schedule", 0)
//	defer span.End("")
package trace
