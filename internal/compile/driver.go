package compile

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"aotc/internal/definition"
	"aotc/internal/diag"
	"aotc/internal/graph"
	"aotc/internal/object"
	"aotc/internal/observ"
	"aotc/internal/trace"
)

// ErrTooManyErrors stops a run once more classes failed than allowed.
var ErrTooManyErrors = errors.New("too many failed classes")

// Unit is one element handed to the graph builder. Its enclosing class is
// prepared and its exact function assigned.
type Unit struct {
	Element  *definition.Executable
	Prepared *definition.Prepared
	Function *object.Function
	Factory  *graph.Factory
}

// GraphBuilder builds the value graph of a unit, enqueuing every element
// the graph calls. It returns the nodes the body ends with.
type GraphBuilder interface {
	BuildGraph(ctx context.Context, c *Context, u *Unit) ([]*graph.Node, error)
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	// Jobs is the number of workers; 0 means GOMAXPROCS.
	Jobs int
	// MaxErrors is the number of failed classes tolerated before the run
	// stops; 0 means unlimited.
	MaxErrors int
	Builder   GraphBuilder
	Offsets   graph.FieldOffsets
	// RuntimeInit reports classes whose initializer runs at run time and
	// must therefore be compiled.
	RuntimeInit func(className string) bool
	Progress    ProgressSink
	Reporter    diag.Reporter
	Timer       *observ.Timer
}

// Result summarises a run.
type Result struct {
	Compiled int
	Failed   []string // classes, sorted
	Modules  []*object.ProgramModule
}

// Driver runs workers over a Context until no work is left.
type Driver struct {
	c    *Context
	opts DriverOptions

	inflight atomic.Int64
	compiled atomic.Int64

	failMu sync.Mutex
	failed map[string]struct{}
}

// NewDriver creates a driver for c.
func NewDriver(c *Context, opts DriverOptions) *Driver {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Progress == nil {
		opts.Progress = nopSink{}
	}
	if opts.Reporter == nil {
		opts.Reporter = c.defs.Reporter()
	}
	if opts.Timer == nil {
		opts.Timer = observ.NewTimer()
	}
	return &Driver{c: c, opts: opts, failed: make(map[string]struct{})}
}

// Run enqueues the entry points and compiles everything reachable from
// them. Class-level failures are reported and counted; invariant
// violations, cancellation and exceeding MaxErrors abort the run.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	if trace.FromContext(ctx) == trace.Nop {
		ctx = trace.WithTracer(ctx, d.c.defs.Tracer())
	}
	ctx, span := trace.BeginContext(ctx, trace.ScopeDriver, "compile")
	start := time.Now()

	err := d.opts.Timer.Time("schedule", func() error {
		if _, err := d.c.ExceptionField(); err != nil {
			return fmt.Errorf("exception field: %w", err)
		}
		for _, e := range d.c.EntryPoints() {
			if d.c.Enqueue(e) {
				d.emit(e, StageQueued, nil, 0)
			}
		}
		return nil
	})
	if err == nil {
		err = d.opts.Timer.Time("compile", func() error { return d.work(ctx) })
	}

	res := Result{Compiled: int(d.compiled.Load()), Failed: d.Failed(), Modules: d.c.ProgramModules()}
	span.WithExtra("compiled", strconv.Itoa(res.Compiled)).
		WithExtra("failed", strconv.Itoa(len(res.Failed))).
		End(errDetail(err))
	d.opts.Progress.OnEvent(Event{Stage: StageCompleted, Err: err, Elapsed: time.Since(start)})
	return res, err
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (d *Driver) work(ctx context.Context) error {
	ctx, span := trace.BeginContext(ctx, trace.ScopePhase, "workers")
	defer span.End("")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Jobs)
	for range d.opts.Jobs {
		g.Go(func() error { return d.worker(gctx) })
	}
	return g.Wait()
}

// worker polls the queue. It stops once the queue is empty and no other
// worker holds an element, since only in-flight elements enqueue more.
func (d *Driver) worker(ctx context.Context) error {
	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.inflight.Add(1)
		e, ok := d.c.Dequeue()
		if !ok {
			if d.inflight.Add(-1) == 0 && d.c.Pending() == 0 {
				return nil
			}
			idle++
			backoff(idle)
			continue
		}
		idle = 0
		err := d.process(ctx, e)
		d.inflight.Add(-1)
		if err != nil {
			return err
		}
	}
}

func backoff(n int) {
	if n < 16 {
		runtime.Gosched()
		return
	}
	time.Sleep(50 * time.Microsecond)
}

func (d *Driver) process(ctx context.Context, e *definition.Executable) error {
	started := time.Now()
	_, span := trace.BeginContext(ctx, trace.ScopeElement, e.String())
	defer span.End("")

	prepared, err := d.prepare(e)
	if err != nil {
		d.emit(e, StageFailed, err, time.Since(started))
		return d.classFailed(e.Enclosing.Name(), err)
	}
	if clinit := prepared.Resolved().Verified().Initializer(); clinit != nil && d.opts.RuntimeInit != nil &&
		d.opts.RuntimeInit(e.Enclosing.Name()) && d.c.Enqueue(clinit) {
		d.emit(clinit, StageQueued, nil, 0)
	}

	d.emit(e, StageCompile, nil, time.Since(started))
	fn, err := d.c.ExactFunction(e)
	if err != nil {
		return d.elementFailed(e, err, started)
	}
	if d.opts.Builder != nil && !e.IsAbstract() && !e.Modifiers.Has(definition.AccNative) {
		f := graph.NewFactory(d.c.types, d.opts.Offsets, e)
		roots, err := d.opts.Builder.BuildGraph(ctx, d.c, &Unit{Element: e, Prepared: prepared, Function: fn, Factory: f})
		if err != nil {
			if errors.Is(err, definition.ErrInvariant) || ctx.Err() != nil {
				return err
			}
			return d.elementFailed(e, err, started)
		}
		var sb strings.Builder
		if err := graph.Print(&sb, d.c.types, roots...); err != nil {
			return err
		}
		fn.SetBody(object.Body{Nodes: f.Len(), Text: sb.String()})
		span.WithExtra("nodes", strconv.Itoa(f.Len()))
	}
	d.compiled.Add(1)
	d.emit(e, StageDone, nil, time.Since(started))
	return nil
}

// prepare drives the enclosing class through its stages, so the class and
// its ancestors are prepared before the element's graph is built.
func (d *Driver) prepare(e *definition.Executable) (*definition.Prepared, error) {
	d.emit(e, StageVerify, nil, 0)
	v, err := e.Enclosing.Verify()
	if err != nil {
		return nil, err
	}
	d.emit(e, StageResolve, nil, 0)
	r, err := v.Resolve()
	if err != nil {
		return nil, err
	}
	d.emit(e, StagePrepare, nil, 0)
	return r.Prepare()
}

func (d *Driver) elementFailed(e *definition.Executable, err error, started time.Time) error {
	loc := diag.ElementLocation(e.Enclosing.Name(), e.Signature())
	diag.ReportError(d.opts.Reporter, diag.GraphFailed, loc, err.Error()).Emit()
	d.emit(e, StageFailed, err, time.Since(started))
	return d.classFailed(e.Enclosing.Name(), err)
}

// classFailed counts a failed class and decides whether the run goes on.
func (d *Driver) classFailed(name string, err error) error {
	if errors.Is(err, definition.ErrInvariant) {
		return err
	}
	d.failMu.Lock()
	d.failed[name] = struct{}{}
	n := len(d.failed)
	d.failMu.Unlock()
	if d.opts.MaxErrors > 0 && n > d.opts.MaxErrors {
		diag.ReportError(d.opts.Reporter, diag.TooManyErrors, diag.Location{},
			fmt.Sprintf("stopping after %d failed classes", n)).Emit()
		return fmt.Errorf("%w: %d", ErrTooManyErrors, n)
	}
	return nil
}

// Failed returns the failed classes sorted by name.
func (d *Driver) Failed() []string {
	d.failMu.Lock()
	defer d.failMu.Unlock()
	out := make([]string, 0, len(d.failed))
	for name := range d.failed {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (d *Driver) emit(e *definition.Executable, stage Stage, err error, elapsed time.Duration) {
	d.opts.Progress.OnEvent(Event{
		Type:    e.Enclosing.Name(),
		Element: e.Signature(),
		Stage:   stage,
		Err:     err,
		Elapsed: elapsed,
	})
}
