// Package buildpipeline builds the functions of a script in parallel,
// from script replay through snapshot encoding.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recomp/internal/config"
	"recomp/internal/hir"
	"recomp/internal/observ"
	"recomp/internal/script"
	"recomp/internal/snapshot"
	"recomp/internal/symbol"
	"recomp/internal/trace"
)

// Request configures a build.
type Request struct {
	Script *script.File
	// Only restricts the build to the named functions; empty builds all.
	Only []string
	// Config supplies builder and check settings; nil means config.Default.
	Config *config.Config
	// Symbols resolves call targets. Script functions are declared into it;
	// nil uses a fresh table.
	Symbols *symbol.Table
	// Cache is consulted before building and filled after; nil disables it.
	Cache    *snapshot.DiskCache
	Progress ProgressSink
	Logger   *zap.Logger
	// Timer receives per-stage timings; nil uses a private timer.
	Timer *observ.Timer
	// KeepGoing builds every function even after one fails.
	KeepGoing bool
	// Dump, when set, receives the builder of each finalized function.
	// Cached snapshots carry no builder, so a dumping build skips cache
	// reads; it still fills the cache.
	Dump func(name string, b *hir.Builder)
}

// FuncResult is the outcome of one function.
type FuncResult struct {
	Name     string
	Snapshot *snapshot.Function
	Cached   bool
	Err      error
	Elapsed  time.Duration
}

// Result collects per-function outcomes in script order.
type Result struct {
	Funcs   []FuncResult
	Timings observ.Report
}

// Failed counts functions that ended in an error.
func (r Result) Failed() int {
	n := 0
	for _, f := range r.Funcs {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Build runs every selected function through the pipeline with at most
// Config.Build.Jobs workers. Without KeepGoing the first failure cancels
// the rest.
func Build(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || req.Script == nil {
		return result, fmt.Errorf("missing build request")
	}
	cfg := req.Config
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	log := req.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timer := req.Timer
	if timer == nil {
		timer = observ.NewTimer()
	}
	syms := req.Symbols
	if syms == nil {
		syms = symbol.NewTable()
	}
	if err := req.Script.Declare(syms); err != nil {
		return result, fmt.Errorf("declare functions: %w", err)
	}

	funcs, err := selectFuncs(req.Script, req.Only)
	if err != nil {
		return result, err
	}
	names := make([]string, len(funcs))
	for i, fn := range funcs {
		names[i] = fn.Name
	}

	ctx, span := trace.Start(ctx, trace.ScopePass, "build")
	span.WithExtra("funcs", fmt.Sprint(len(funcs)))
	defer span.End("")

	emitQueued(req.Progress, names)

	w := &worker{
		req:      req,
		cfg:      cfg,
		log:      log,
		timer:    timer,
		syms:     syms,
		settings: settingsKey(cfg),
	}

	jobs := cfg.Build.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each goroutine owns results[i].
	result.Funcs = make([]FuncResult, len(funcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(funcs))))
	for i, fn := range funcs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				result.Funcs[i] = FuncResult{Name: fn.Name, Err: gctx.Err()}
				return gctx.Err()
			default:
			}
			res := w.build(gctx, fn)
			result.Funcs[i] = res
			if res.Err != nil && !req.KeepGoing {
				return res.Err
			}
			return nil
		})
	}
	err = g.Wait()
	result.Timings = timer.Report()
	if err != nil {
		return result, err
	}

	var errs []error
	for _, f := range result.Funcs {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return result, errors.Join(errs...)
}

func selectFuncs(f *script.File, only []string) ([]*script.Func, error) {
	var out []*script.Func
	for i := range f.Funcs {
		fn := &f.Funcs[i]
		if len(only) == 0 || slices.Contains(only, fn.Name) {
			out = append(out, fn)
		}
	}
	for _, name := range only {
		if !slices.ContainsFunc(out, func(fn *script.Func) bool { return fn.Name == name }) {
			return nil, fmt.Errorf("no function named %q", name)
		}
	}
	return out, nil
}

// settingsKey folds every setting that changes build output into the cache
// key.
func settingsKey(cfg *config.Config) string {
	return fmt.Sprintf("schema=%d validate=%t cycles=%t",
		snapshot.SchemaVersion, cfg.Build.Validate, cfg.Build.CheckCycles)
}

type worker struct {
	req      *Request
	cfg      *config.Config
	log      *zap.Logger
	timer    *observ.Timer
	syms     *symbol.Table
	settings string
}

func (w *worker) build(ctx context.Context, fn *script.Func) FuncResult {
	start := time.Now()
	res := FuncResult{Name: fn.Name}
	ctx, span := trace.Start(ctx, trace.ScopeFunc, "func:"+fn.Name)
	defer func() {
		res.Elapsed = time.Since(start)
		detail := "ok"
		if res.Err != nil {
			detail = res.Err.Error()
		} else if res.Cached {
			detail = "cached"
		}
		span.End(detail)
	}()

	key, keyErr := w.cacheKey(fn)
	if keyErr == nil && w.req.Dump == nil {
		snap, ok, err := w.req.Cache.Get(key)
		if err != nil {
			w.log.Warn("cache read failed", zap.String("func", fn.Name), zap.Error(err))
		}
		if ok {
			res.Snapshot, res.Cached = snap, true
			w.req.progress(Event{Func: fn.Name, Stage: StageEncode, Status: StatusDone, Cached: true})
			return res
		}
	}

	log := w.log.With(zap.String("func", fn.Name))
	b := hir.New(
		hir.WithCapacity(w.cfg.Arena.Capacity),
		hir.WithDebugFill(w.cfg.Arena.DebugFill),
		hir.WithLogger(log),
	)

	stages := []struct {
		stage Stage
		run   func() error
	}{
		{StageBuild, func() error { return script.Run(b, fn, w.syms) }},
		{StageFinalize, b.Finalize},
		{StageValidate, func() error { return w.check(b) }},
		{StageEncode, func() error {
			res.Snapshot = snapshot.Capture(fn.Name, b)
			if w.req.Dump != nil {
				w.req.Dump(fn.Name, b)
			}
			if keyErr != nil {
				return nil
			}
			if err := w.req.Cache.Put(key, res.Snapshot); err != nil {
				log.Warn("cache write failed", zap.Error(err))
			}
			return nil
		}},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		emit(w.req.Progress, fn.Name, st.stage, StatusWorking, nil, 0)
		t0 := time.Now()
		err := st.run()
		d := time.Since(t0)
		w.timer.Add(string(st.stage), d)
		if err != nil {
			res.Err = fmt.Errorf("%s: %s: %w", fn.Name, st.stage, err)
			res.Snapshot = nil
			emit(w.req.Progress, fn.Name, st.stage, StatusError, err, d)
			log.Debug("stage failed", zap.String("stage", string(st.stage)), zap.Error(err))
			return res
		}
		emit(w.req.Progress, fn.Name, st.stage, StatusDone, nil, d)
		trace.Point(ctx, trace.ScopeFunc, string(st.stage), d.String())
	}
	return res
}

func (w *worker) check(b *hir.Builder) error {
	if w.cfg.Build.CheckCycles {
		if err := b.CheckNoCycles(); err != nil {
			return err
		}
	}
	if w.cfg.Build.Validate {
		return hir.Validate(b)
	}
	return nil
}

// cacheKey hashes the msgpack form of the function's steps together with
// the build settings and the name and address of every callee. A callee
// missing from the symbol table yields errUnresolved, which bypasses the
// cache so the build reports it.
func (w *worker) cacheKey(fn *script.Func) (snapshot.Digest, error) {
	if w.req.Cache == nil {
		return snapshot.Digest{}, errNoCache
	}
	src, err := msgpack.Marshal(fn)
	if err != nil {
		return snapshot.Digest{}, err
	}
	callees := fn.Callees()
	deps := make([]string, 0, len(callees))
	for _, name := range callees {
		sym, ok := w.syms.Lookup(name)
		if !ok {
			return snapshot.Digest{}, fmt.Errorf("%w: %q", errUnresolved, name)
		}
		deps = append(deps, fmt.Sprintf("%s@%#x", sym.Name, sym.Address))
	}
	return snapshot.KeyFor(fn.Name, src, w.settings, deps...), nil
}

var (
	errNoCache    = errors.New("cache disabled")
	errUnresolved = errors.New("unresolved callee")
)

func (r *Request) progress(ev Event) {
	if r.Progress != nil {
		r.Progress.OnEvent(ev)
	}
}
