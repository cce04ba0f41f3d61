// Package api implements the handle-based external interface of
// spec.md §6: callers address a Project/Model/Sim through opaque
// integer handles rather than raw pointers, so the interface stays
// language-neutral at a future FFI boundary (the same reason the
// spec phrases every operation as `noun_verb(Handle, ...)` rather than
// as methods on an exported Go type).
package api

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/compiler"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
	"github.com/sd-lang/sdcore/internal/loop"
	"github.com/sd-lang/sdcore/internal/patch"
	"github.com/sd-lang/sdcore/internal/schema"
	"github.com/sd-lang/sdcore/internal/vm"
)

// ProjectHandle, ModelHandle, and SimHandle are opaque references into
// a Registry. The zero value is never valid.
type (
	ProjectHandle uint64
	ModelHandle   uint64
	SimHandle     uint64
)

type projectEntry struct {
	proj   *dm.Project
	errs   []*errors.Report // last validation pass's results (project_get_errors)
	st     *analysis.SymbolTable
	stErrs []*errors.Report
}

type modelEntry struct {
	project ProjectHandle
	name    string
	st      *analysis.SymbolTable
}

type simEntry struct {
	model     ModelHandle
	sim       *vm.Sim
	prog      *compiler.Program
	specs     dm.SimSpecs
	st        *analysis.SymbolTable
	enableLTM bool
	loops     []loop.Loop
}

// Registry owns every live handle. A Registry is safe for concurrent
// use by multiple goroutines (spec.md §5: "Multiple Sim instances may
// run concurrently on independent data"); it only ever serializes
// access to its own handle tables, never to the Sim/Project values
// themselves, which callers must not share across goroutines without
// their own synchronization — the same single-writer contract
// internal/vm.Sim already documents.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	projects map[ProjectHandle]*projectEntry
	models   map[ModelHandle]*modelEntry
	sims     map[SimHandle]*simEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		projects: make(map[ProjectHandle]*projectEntry),
		models:   make(map[ModelHandle]*modelEntry),
		sims:     make(map[SimHandle]*simEntry),
	}
}

func (r *Registry) allocID() uint64 {
	return atomic.AddUint64(&r.nextID, 1)
}

// ProjectOpen deserializes data (the canonical serialized form from
// internal/schema) and registers the result, running the static
// analysis pass immediately so project_get_errors has something to
// report even before any patch or sim is attempted.
func (r *Registry) ProjectOpen(data []byte) (ProjectHandle, error) {
	proj, err := schema.Decode(data)
	if err != nil {
		return 0, err
	}
	return r.registerProject(proj), nil
}

func (r *Registry) registerProject(proj *dm.Project) ProjectHandle {
	entry := &projectEntry{proj: proj}
	entry.errs = append(entry.errs, proj.ValidateStructure()...)
	st, stErrs := analysis.Analyze(proj)
	entry.st = st
	entry.stErrs = stErrs
	entry.errs = append(entry.errs, stErrs...)

	h := ProjectHandle(r.allocID())
	r.mu.Lock()
	r.projects[h] = entry
	r.mu.Unlock()
	return h
}

func (r *Registry) project(h ProjectHandle) (*projectEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.projects[h]
	if !ok {
		return nil, fmt.Errorf("api: unknown project handle %d", h)
	}
	return e, nil
}

// ProjectSerialize returns the canonical serialized form of the project
// behind h.
func (r *Registry) ProjectSerialize(h ProjectHandle) ([]byte, error) {
	e, err := r.project(h)
	if err != nil {
		return nil, err
	}
	return schema.Encode(e.proj)
}

// ProjectApplyPatch runs p against the project behind h via
// internal/patch.Apply. On commit (opts.DryRun == false and the result
// was accepted), h's registered project and cached analysis are
// replaced by the patched result.
func (r *Registry) ProjectApplyPatch(h ProjectHandle, ops []patch.Op, opts patch.Options) (*patch.Result, error) {
	e, err := r.project(h)
	if err != nil {
		return nil, err
	}
	res, err := patch.Apply(e.proj, ops, opts)
	if err != nil {
		return nil, err
	}
	if res.Applied {
		newEntry := &projectEntry{proj: res.Project, errs: res.Errors}
		st, stErrs := analysis.Analyze(res.Project)
		newEntry.st = st
		newEntry.stErrs = stErrs
		r.mu.Lock()
		r.projects[h] = newEntry
		r.mu.Unlock()
	}
	return res, nil
}

// ProjectGetErrors returns every static error recorded for h's project.
func (r *Registry) ProjectGetErrors(h ProjectHandle) ([]*errors.Report, error) {
	e, err := r.project(h)
	if err != nil {
		return nil, err
	}
	return e.errs, nil
}

// ProjectGetModel resolves a ModelHandle scoped to h. Per spec.md
// §4.2's flattening rule, C3 only ever flattens the variables reachable
// from "main" — name, when given, is recorded for diagnostics but must
// name the main model; any other name returns an error, since a
// non-main model is only ever visible inlined into main's flattened
// view, never as an independently analyzable handle.
func (r *Registry) ProjectGetModel(h ProjectHandle, name string) (ModelHandle, error) {
	e, err := r.project(h)
	if err != nil {
		return 0, err
	}
	if name != "" && dm.Canonical(name) != dm.Canonical(dm.MainModelName) {
		return 0, fmt.Errorf("api: model %q is not independently addressable; only %q is analyzed", name, dm.MainModelName)
	}
	if e.st == nil {
		return 0, fmt.Errorf("api: project has unresolved static errors; fix them before requesting a model handle")
	}

	mh := ModelHandle(r.allocID())
	r.mu.Lock()
	r.models[mh] = &modelEntry{project: h, name: dm.MainModelName, st: e.st}
	r.mu.Unlock()
	return mh, nil
}

func (r *Registry) model(h ModelHandle) (*modelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.models[h]
	if !ok {
		return nil, fmt.Errorf("api: unknown model handle %d", h)
	}
	return e, nil
}

// ModelGetLinks returns every causal Link in h's use-graph (spec.md
// §4.5, `model_get_links`).
func (r *Registry) ModelGetLinks(h ModelHandle) ([]loop.Link, error) {
	e, err := r.model(h)
	if err != nil {
		return nil, err
	}
	return loop.DetectLinks(e.st), nil
}

// ModelGetIncomingLinks returns the idents of every variable with a
// direct causal link into varIdent (`model_get_incoming_links`).
func (r *Registry) ModelGetIncomingLinks(h ModelHandle, varIdent string) ([]string, error) {
	links, err := r.ModelGetLinks(h)
	if err != nil {
		return nil, err
	}
	ident := dm.Canonical(varIdent)
	var out []string
	for _, l := range links {
		if dm.Canonical(l.To) == ident {
			out = append(out, l.From)
		}
	}
	return out, nil
}

// AnalyzeGetLoops enumerates every elementary feedback loop reachable
// from h's use-graph (`analyze_get_loops`). It takes a ProjectHandle
// directly, per spec.md §6, by resolving h's main model internally.
func (r *Registry) AnalyzeGetLoops(h ProjectHandle) ([]loop.Loop, error) {
	e, err := r.project(h)
	if err != nil {
		return nil, err
	}
	if e.st == nil {
		return nil, fmt.Errorf("api: project has unresolved static errors")
	}
	loops, _ := loop.FindLoops(e.st)
	return loops, nil
}

// SimNew compiles and initializes a Sim over the model behind h
// (`sim_new`). When enableLTM is true, AnalyzeGetRelativeLoopScore
// becomes available against the returned handle.
func (r *Registry) SimNew(h ModelHandle, enableLTM bool) (SimHandle, error) {
	me, err := r.model(h)
	if err != nil {
		return 0, err
	}

	pe, err := r.project(me.project)
	if err != nil {
		return 0, err
	}
	var fatal []*errors.Report
	for _, rep := range pe.stErrs {
		if !errors.IsWarning(rep.Code) {
			fatal = append(fatal, rep)
		}
	}
	if len(fatal) > 0 {
		return 0, fmt.Errorf("api: sim_new: %s: %d unresolved static error(s), first: %s",
			errors.SIM002, len(fatal), fatal[0].Message)
	}

	prog, cerrs := compiler.Compile(me.st)
	if len(cerrs) > 0 {
		return 0, fmt.Errorf("api: sim_new: %d compile error(s), first: %s", len(cerrs), cerrs[0].Message)
	}

	sim := vm.NewSim(prog, pe.proj.SimSpecs)
	sim.Init()

	entry := &simEntry{model: h, sim: sim, prog: prog, specs: pe.proj.SimSpecs, st: me.st, enableLTM: enableLTM}
	if enableLTM {
		loops, _ := loop.FindLoops(me.st)
		entry.loops = loops
	}

	sh := SimHandle(r.allocID())
	r.mu.Lock()
	r.sims[sh] = entry
	r.mu.Unlock()
	return sh, nil
}

func (r *Registry) simEntry(h SimHandle) (*simEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sims[h]
	if !ok {
		return nil, fmt.Errorf("api: unknown sim handle %d", h)
	}
	return e, nil
}

// SimRunTo advances the sim behind h to t (`sim_run_to`).
func (r *Registry) SimRunTo(h SimHandle, t float64) error {
	e, err := r.simEntry(h)
	if err != nil {
		return err
	}
	e.sim.RunTo(t)
	return nil
}

// SimRunToEnd runs the sim behind h to completion (`sim_run_to_end`).
func (r *Registry) SimRunToEnd(h SimHandle) error {
	e, err := r.simEntry(h)
	if err != nil {
		return err
	}
	e.sim.RunToEnd()
	return nil
}

// SimReset re-initializes the sim behind h in place from its already
// compiled program, handle unchanged (`sim_reset`).
func (r *Registry) SimReset(h SimHandle) error {
	e, err := r.simEntry(h)
	if err != nil {
		return err
	}
	sim := vm.NewSim(e.prog, e.specs)
	sim.Init()

	r.mu.Lock()
	r.sims[h].sim = sim
	r.mu.Unlock()
	return nil
}

// SimGetValue returns ident's current value (`sim_get_value`).
func (r *Registry) SimGetValue(h SimHandle, ident string) (float64, error) {
	e, err := r.simEntry(h)
	if err != nil {
		return 0, err
	}
	v, ok := e.sim.Value(ident)
	if !ok {
		return 0, fmt.Errorf("api: unknown variable %q", ident)
	}
	return v, nil
}

// SimSetValue installs an override on ident (`sim_set_value`): every
// subsequent init/step re-applies it, per spec.md §4.4's override rule.
func (r *Registry) SimSetValue(h SimHandle, ident string, value float64) error {
	e, err := r.simEntry(h)
	if err != nil {
		return err
	}
	e.sim.SetOverride(ident, value)
	return nil
}

// SimGetSeries returns ident's recorded value at every save-boundary
// frame so far, one entry per frame (`sim_get_series`).
func (r *Registry) SimGetSeries(h SimHandle, ident string) ([]float64, error) {
	e, err := r.simEntry(h)
	if err != nil {
		return nil, err
	}
	series, ok := e.sim.TimeSeries(ident)
	if !ok {
		return nil, fmt.Errorf("api: unknown variable %q", ident)
	}
	return series, nil
}

// SimGetElements returns every element of an arrayed variable's current
// value, a single instant across its dimension rather than across time
// (`sim_get_elements`; distinct from `sim_get_series`).
func (r *Registry) SimGetElements(h SimHandle, ident string) ([]float64, error) {
	e, err := r.simEntry(h)
	if err != nil {
		return nil, err
	}
	elems, ok := e.sim.Elements(ident)
	if !ok {
		return nil, fmt.Errorf("api: unknown variable %q", ident)
	}
	return elems, nil
}

// AnalyzeGetRelativeLoopScore returns loopID's LTM score series for the
// sim behind h (`analyze_get_relative_loop_score`). h must have been
// created with enableLTM == true.
func (r *Registry) AnalyzeGetRelativeLoopScore(h SimHandle, loopID string) ([]float64, error) {
	e, err := r.simEntry(h)
	if err != nil {
		return nil, err
	}
	if !e.enableLTM {
		return nil, fmt.Errorf("api: sim handle %d was not created with enable_ltm", h)
	}
	scores := loop.ComputeLoopScores(e.st, e.prog, e.sim, e.loops)
	for _, s := range scores {
		if s.LoopID == loopID {
			return s.Series, nil
		}
	}
	return nil, fmt.Errorf("api: unknown loop id %q", loopID)
}
