package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aotc/internal/compile"
	"aotc/internal/config"
	"aotc/internal/definition"
	"aotc/internal/diag"
	"aotc/internal/features"
	"aotc/internal/layout"
	"aotc/internal/manifest"
	"aotc/internal/object"
	"aotc/internal/observ"
	"aotc/internal/output"
	"aotc/internal/trace"
	"aotc/internal/types"
)

// Build loads the project inputs, compiles every element reachable from the
// configured entry points and writes one artifact per program module.
// Diagnostics are collected in Result.Bag even when an error is returned.
func Build(ctx context.Context, req *Request) (Result, error) {
	result := Result{Timer: observ.NewTimer()}
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || req.Config == nil {
		return result, fmt.Errorf("missing build request")
	}
	cfg := req.Config
	result.Bag = diag.NewBag(req.MaxDiagnostics)
	reporter := diag.NewDedupReporter(diag.BagReporter{Bag: result.Bag, Min: req.MinLevel})

	ctx, span := trace.BeginContext(ctx, trace.ScopeDriver, "build")
	defer span.End("")

	env, err := Open(ctx, cfg, reporter, result.Timer)
	if err != nil {
		return result, err
	}
	result.RuntimeInit = env.Features.RuntimeInitialized()
	c := compile.NewContext(env.Defs, compile.Options{
		ThreadClass:    cfg.Build.ThreadClass,
		ThrowableClass: cfg.Build.ThrowableClass,
		OutputDir:      cfg.OutputDir(),
	})
	if registerEntries(c, cfg.Inputs.Entry, reporter) == 0 {
		return result, ErrNoEntryPoints
	}

	driver := compile.NewDriver(c, compile.DriverOptions{
		Jobs:        cfg.Build.Jobs,
		MaxErrors:   cfg.Build.MaxErrors,
		Builder:     manifest.Builder{},
		Offsets:     env.Layout,
		RuntimeInit: env.Features.InitializeAtRuntime,
		Progress:    req.Progress,
		Reporter:    reporter,
		Timer:       result.Timer,
	})
	res, err := driver.Run(ctx)
	result.Compiled = res.Compiled
	result.Failed = res.Failed
	if err != nil {
		return result, err
	}

	_ = result.Timer.Time("emit", func() error {
		for _, m := range res.Modules {
			path, err := writeModule(c, env.Layout, m)
			if err != nil {
				diag.ReportError(reporter, diag.ArtifactWriteErr, diag.TypeLocation(m.TypeName()), err.Error()).Emit()
				continue
			}
			result.Artifacts = append(result.Artifacts, path)
		}
		return nil
	})
	if result.Bag.HasErrors() || len(result.Failed) > 0 {
		return result, ErrBuildFailed
	}
	return result, nil
}

// Env is the loaded input of a build: class definitions over the manifest
// source, the layout engine installed as their preparer, and the build
// features.
type Env struct {
	Source   *manifest.Source
	Features *features.Set
	Defs     *definition.Context
	Layout   *layout.Engine
}

// Open loads the manifests and feature files named by cfg and sets up the
// definition context and layout engine. Failures are reported to r.
func Open(ctx context.Context, cfg *config.Config, r diag.Reporter, timer *observ.Timer) (*Env, error) {
	if timer == nil {
		timer = observ.NewTimer()
	}
	env := &Env{}
	err := timer.Time("load", func() error {
		var err error
		if env.Source, err = manifest.Load(cfg.ClassFiles()...); err != nil {
			diag.ReportError(r, diag.ManifestInvalid, diag.Location{}, "cannot load class manifests").
				WithNote(diag.Location{}, err.Error()).
				Emit()
			return err
		}
		env.Features, _ = features.Load(r, cfg.FeatureFiles()...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	env.Defs = definition.NewContext(types.NewInterner(cfg.TargetSpec()), env.Source, definition.Options{
		RootClass: cfg.Build.RootClass,
		Reporter:  r,
		Tracer:    trace.FromContext(ctx),
	})
	env.Layout, err = layout.New(env.Defs, layout.Options{RootClass: cfg.Build.RootClass, ClassClass: cfg.Build.ClassClass})
	if err != nil {
		diag.ReportError(r, diag.LayoutFailed, diag.TypeLocation(cfg.Build.RootClass), err.Error()).Emit()
		return nil, err
	}
	return env, nil
}

// LayoutOf returns the instance layout of the class with internal name.
func (e *Env) LayoutOf(name string) (*layout.Info, error) {
	d, err := e.Defs.Bootstrap().FindDefinedType(name)
	if err != nil {
		return nil, err
	}
	return e.Layout.LayoutOf(d)
}

// registerEntries resolves each "owner.name(desc)ret" entry and registers
// it, reporting the ones that are missing. It returns the number
// registered.
func registerEntries(c *compile.Context, entries []string, r diag.Reporter) int {
	n := 0
	for _, entry := range entries {
		e, err := findEntry(c.Definitions(), entry)
		if err != nil {
			diag.ReportError(r, diag.EntryPointMissing, diag.Location{}, "entry point "+entry+" not found").
				WithNote(diag.Location{}, err.Error()).
				Emit()
			continue
		}
		c.RegisterEntryPoint(e)
		n++
	}
	return n
}

func findEntry(defs *definition.Context, entry string) (*definition.Executable, error) {
	owner, sig, err := config.SplitEntry(entry)
	if err != nil {
		return nil, err
	}
	i := strings.IndexByte(sig, '(')
	_, e, err := manifest.FindMember(defs.Bootstrap(), owner, sig[:i], sig[i:])
	return e, err
}

func writeModule(c *compile.Context, eng *layout.Engine, m *object.ProgramModule) (string, error) {
	d, err := c.Definitions().Bootstrap().FindDefinedType(m.TypeName())
	if err != nil {
		return "", err
	}
	var info *layout.Info
	if !d.IsInterface() {
		if info, err = eng.LayoutOf(d); err != nil && !errors.Is(err, layout.ErrInterfaceLayout) {
			return "", err
		}
	}
	a, err := output.FromModule(c.Types(), m, info)
	if err != nil {
		return "", err
	}
	path := c.OutputFile(d, output.Suffix)
	if err := output.Write(path, a); err != nil {
		return "", err
	}
	return path, nil
}
