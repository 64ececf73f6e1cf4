package trace

import (
	"io"
	"sync"
)

// StreamTracer writes every accepted event to an io.Writer as it happens.
// Write errors are remembered and reported by Flush; tracing never fails
// a compilation.
type StreamTracer struct {
	mu      sync.Mutex
	w       io.Writer
	level   Level
	format  Format
	wrote   bool
	err     error
	trailer bool
}

// NewStreamTracer creates a StreamTracer. FormatAuto falls back to text.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	st := &StreamTracer{w: w, level: level, format: format}
	if format == FormatChrome {
		st.write([]byte("{\"traceEvents\":[\n"))
	}
	return st
}

// write must be called with mu held or before the tracer is shared.
func (t *StreamTracer) write(p []byte) {
	if t.err != nil {
		return
	}
	if _, err := t.w.Write(p); err != nil {
		t.err = err
	}
}

// Emit formats and writes ev when its scope passes the level.
func (t *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	if ev.Seq == 0 {
		ev.Seq = NextSeq()
	}
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trailer {
		return
	}
	if t.format == FormatChrome && t.wrote {
		t.write([]byte(",\n"))
	}
	t.write(data)
	t.wrote = true
}

// Flush reports the first write error and flushes buffered writers.
func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	err := t.err
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close terminates a chrome document, flushes and closes the writer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.format == FormatChrome && !t.trailer {
		t.write([]byte("\n]}\n"))
	}
	t.trailer = true
	t.mu.Unlock()

	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
