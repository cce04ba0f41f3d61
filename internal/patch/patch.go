// Package patch implements the project mutation API of spec.md §6: a
// patch is a sequence of typed operations applied to a dm.Project,
// either committed or, under dry_run, only validated.
package patch

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
	"github.com/sd-lang/sdcore/internal/schema"
)

// OpKind selects which of the patch payload's typed operations an Op
// represents, per spec.md §6.
type OpKind int

const (
	UpsertStock OpKind = iota
	UpsertFlow
	UpsertAux
	UpsertModule
	DeleteVariable
	RenameVariable
	UpsertView
	DeleteView
	SetSimSpecs
)

func (k OpKind) String() string {
	switch k {
	case UpsertStock:
		return "upsert_stock"
	case UpsertFlow:
		return "upsert_flow"
	case UpsertAux:
		return "upsert_aux"
	case UpsertModule:
		return "upsert_module"
	case DeleteVariable:
		return "delete_variable"
	case RenameVariable:
		return "rename_variable"
	case UpsertView:
		return "upsert_view"
	case DeleteView:
		return "delete_view"
	case SetSimSpecs:
		return "set_sim_specs"
	}
	return "unknown"
}

// Op is one patch operation. Which fields are meaningful depends on
// Kind, the same tagged-union convention dm.Variable uses for its
// Stock/Flow/Aux/Module payloads.
type Op struct {
	Kind  OpKind
	Model string // target model name; "" means the project's main model

	Variable *dm.Variable // UpsertStock/Flow/Aux/Module

	Ident    string // DeleteVariable/RenameVariable: the existing ident
	NewIdent string // RenameVariable's replacement ident

	ViewID string         // UpsertView
	View   map[string]any // UpsertView's opaque payload

	SimSpecs *dm.SimSpecs // SetSimSpecs; Model == "" sets the project default
}

// Options controls how Apply commits or discards a patch.
type Options struct {
	DryRun      bool // validate only; never mutate the passed-in Project
	AllowErrors bool // if false, reject (without committing) a patch whose result has any static error
}

// Result is the outcome of Apply.
type Result struct {
	Project *dm.Project     // the resulting project (a new value; proj is never mutated in place)
	Errors  []*errors.Report // every static error in the resulting project, whether or not committed
	Applied bool            // true iff the patch was actually committed (false for dry_run or a rejected patch)
}

// Apply runs every Op in p against a snapshot of proj, in order, then
// validates the result. proj itself is never mutated — Apply clones it
// first via a serialize/deserialize round trip through internal/schema,
// which doubles as the dry_run guarantee of spec.md §8 ("project state
// is byte-identical before and after"): since the input is never
// touched, that invariant holds trivially for every call, not just
// dry_run ones.
//
// The clone commits (Result.Applied == true, Result.Project is the
// clone) when either opts.DryRun is false and (opts.AllowErrors or the
// clone has no errors). Otherwise Result.Project is proj itself,
// unchanged, and Result.Applied is false.
func Apply(proj *dm.Project, p []Op, opts Options) (*Result, error) {
	snapshot, err := schema.Encode(proj)
	if err != nil {
		return nil, fmt.Errorf("patch: snapshot project: %w", err)
	}
	clone, err := schema.Decode(snapshot)
	if err != nil {
		return nil, fmt.Errorf("patch: clone project: %w", err)
	}

	var opErrs []*errors.Report
	for _, op := range p {
		if rep := applyOp(clone, op); rep != nil {
			opErrs = append(opErrs, rep)
		}
	}
	clone.Build()

	result := &Result{Project: clone}
	result.Errors = append(result.Errors, opErrs...)
	result.Errors = append(result.Errors, clone.ValidateStructure()...)
	if st, errs := analysis.Analyze(clone); st != nil || len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
	}

	hasErrors := false
	for _, r := range result.Errors {
		if !errors.IsWarning(r.Code) {
			hasErrors = true
			break
		}
	}

	if !opts.DryRun && (opts.AllowErrors || !hasErrors) {
		result.Applied = true
		return result, nil
	}

	result.Project = proj
	result.Applied = false
	return result, nil
}

func applyOp(proj *dm.Project, op Op) *errors.Report {
	switch op.Kind {
	case UpsertStock, UpsertFlow, UpsertAux, UpsertModule:
		return upsertVariable(proj, op)
	case DeleteVariable:
		return deleteVariable(proj, op)
	case RenameVariable:
		return renameVariable(proj, op)
	case UpsertView:
		upsertView(proj, op)
		return nil
	case DeleteView:
		deleteView(proj, op)
		return nil
	case SetSimSpecs:
		return setSimSpecs(proj, op)
	}
	return errors.New(errors.SIM003, "patch", fmt.Sprintf("unknown op kind %v", op.Kind))
}

func targetModel(proj *dm.Project, name string) (*dm.Model, *errors.Report) {
	if name == "" {
		name = dm.MainModelName
	}
	m, ok := proj.Model(name)
	if !ok {
		return nil, errors.New(errors.REF005, "patch", fmt.Sprintf("unknown model %q", name))
	}
	return m, nil
}

var wantKind = map[OpKind]dm.VarKind{
	UpsertStock:  dm.KindStock,
	UpsertFlow:   dm.KindFlow,
	UpsertAux:    dm.KindAux,
	UpsertModule: dm.KindModule,
}

func upsertVariable(proj *dm.Project, op Op) *errors.Report {
	if op.Variable == nil {
		return errors.New(errors.REF001, "patch", fmt.Sprintf("%s: missing variable payload", op.Kind))
	}
	m, rep := targetModel(proj, op.Model)
	if rep != nil {
		return rep
	}
	want := wantKind[op.Kind]
	v := *op.Variable
	v.Kind = want
	v.Ident = dm.Canonical(v.Ident)

	for i, existing := range m.Variables {
		if existing.Ident == v.Ident {
			m.Variables[i] = &v
			m.Build()
			return nil
		}
	}
	m.Variables = append(m.Variables, &v)
	m.Build()
	return nil
}

func deleteVariable(proj *dm.Project, op Op) *errors.Report {
	m, rep := targetModel(proj, op.Model)
	if rep != nil {
		return rep
	}
	ident := dm.Canonical(op.Ident)
	out := m.Variables[:0]
	found := false
	for _, v := range m.Variables {
		if v.Ident == ident {
			found = true
			continue
		}
		out = append(out, v)
	}
	m.Variables = out
	m.Build()
	if !found {
		return errors.New(errors.REF001, "patch", fmt.Sprintf("delete_variable: %q does not exist", op.Ident))
	}
	return nil
}

// renameVariable updates the variable's own ident/name and every
// reference to it from the rest of the model: stock inflow/outflow
// lists, and module bindings. It does NOT rewrite occurrences inside
// other variables' equation text — that is intentionally left to the
// caller (an equation string is free-form user text; a renaming patch
// op is not an equation-level refactor per spec.md §6).
func renameVariable(proj *dm.Project, op Op) *errors.Report {
	m, rep := targetModel(proj, op.Model)
	if rep != nil {
		return rep
	}
	oldIdent := dm.Canonical(op.Ident)
	newIdent := dm.Canonical(op.NewIdent)
	if newIdent == "" {
		return errors.New(errors.REF001, "patch", "rename_variable: new_ident is empty")
	}

	v, ok := m.Lookup(oldIdent)
	if !ok {
		return errors.New(errors.REF001, "patch", fmt.Sprintf("rename_variable: %q does not exist", op.Ident))
	}
	v.Ident = newIdent
	v.Name = op.NewIdent

	for _, other := range m.Variables {
		if other.Kind == dm.KindStock {
			renameInList(other.Inflows, oldIdent, newIdent)
			renameInList(other.Outflows, oldIdent, newIdent)
		}
		for i := range other.Bindings {
			if dm.Canonical(other.Bindings[i].Src) == oldIdent {
				other.Bindings[i].Src = newIdent
			}
		}
	}
	m.Build()
	return nil
}

func renameInList(list []string, oldIdent, newIdent string) {
	for i, s := range list {
		if dm.Canonical(s) == oldIdent {
			list[i] = newIdent
		}
	}
}

func upsertView(proj *dm.Project, op Op) {
	if proj.Views == nil {
		proj.Views = make(map[string]map[string]any)
	}
	proj.Views[op.ViewID] = op.View
}

func deleteView(proj *dm.Project, op Op) {
	delete(proj.Views, op.ViewID)
}

func setSimSpecs(proj *dm.Project, op Op) *errors.Report {
	if op.SimSpecs == nil {
		return errors.New(errors.SIM003, "patch", "set_sim_specs: missing sim_specs payload")
	}
	if op.SimSpecs.DT <= 0 {
		return errors.New(errors.SIM003, "patch", "set_sim_specs: dt must be positive")
	}
	if op.Model == "" {
		proj.SimSpecs = *op.SimSpecs
		return nil
	}
	m, rep := targetModel(proj, op.Model)
	if rep != nil {
		return rep
	}
	specs := *op.SimSpecs
	m.SimSpecs = &specs
	return nil
}
