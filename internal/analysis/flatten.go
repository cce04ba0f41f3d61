package analysis

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
)

// FlatVariable is one dm.Variable after module flattening: its Ident is
// qualified with its module-instance path ("reservoir.inflow_rate" for
// a variable of model "reservoir" instantiated as the module named
// "reservoir"), and every identifier its equations reference has been
// rebased onto this same flat namespace.
type FlatVariable struct {
	Ident       string
	Name        string
	Kind        dm.VarKind
	Dimensions  []string
	GF          *dm.GraphicalFunction
	NonNegative bool
	Inflows     []string
	Outflows    []string
	Eqns        map[string]ast.Expr0
	InitEq      ast.Expr0
}

// FlatModel is the single flat variable space the compiler (C4) works
// from: the project's main model with every Module-kind variable
// recursively inlined.
type FlatModel struct {
	Name string
	Vars []*FlatVariable

	byIdent map[string]*FlatVariable
}

func (fm *FlatModel) Build() {
	fm.byIdent = make(map[string]*FlatVariable, len(fm.Vars))
	for _, v := range fm.Vars {
		fm.byIdent[v.Ident] = v
	}
}

func (fm *FlatModel) Lookup(ident string) (*FlatVariable, bool) {
	v, ok := fm.byIdent[ident]
	return v, ok
}

// identOrder returns every variable's flat ident in declaration order, a
// deterministic fallback evaluation order used when the dependency
// graph contains a cycle and no topological order exists.
func (fm *FlatModel) identOrder() []string {
	out := make([]string, len(fm.Vars))
	for i, v := range fm.Vars {
		out[i] = v.Ident
	}
	return out
}

// computeScope maps every variable of model to its flat ident under
// prefix (the identity mapping when prefix is "", i.e. for the main
// model itself).
func computeScope(model *dm.Model, prefix string) map[string]string {
	m := make(map[string]string, len(model.Variables))
	for _, v := range model.Variables {
		m[v.Ident] = prefix + v.Ident
	}
	return m
}

// Flatten inlines every Module-kind variable of proj's main model,
// recursively, producing one flat variable space plus any REF002/REF003
// errors found while resolving module input bindings. This trades
// cross-module symbol indirection for a simulation core with a single,
// dependency-graph-friendly variable namespace.
func Flatten(proj *dm.Project) (*FlatModel, []*errors.Report) {
	var errs []*errors.Report
	main, ok := proj.MainModel()
	if !ok {
		return nil, append(errs, errors.New(errors.REF005, "analyze", "project has no model named \"main\""))
	}
	fm := &FlatModel{Name: main.Name}
	visiting := map[string]bool{dm.Canonical(main.Name): true}
	visitModel(proj, main, "", computeScope(main, ""), nil, &errs, fm, visiting)
	fm.Build()
	return fm, errs
}

// visitModel appends a FlatVariable for every Variable of model except
// those named in skip: a model's declared inputs (spec.md's convention
// of "no equation, no GF" marking an input slot) are never evaluated in
// their own right — every reference to one is rebased, via scope, onto
// whatever the instantiating module bound it to.
func visitModel(proj *dm.Project, model *dm.Model, prefix string, scope map[string]string, skip map[string]bool, errs *[]*errors.Report, fm *FlatModel, visiting map[string]bool) {
	for _, v := range model.Variables {
		if v.Kind == dm.KindModule {
			flattenModuleInstance(proj, model, v, scope, errs, fm, visiting)
			continue
		}
		if skip[v.Ident] {
			continue
		}

		qualIdent := scope[v.Ident]
		fv := &FlatVariable{
			Ident:       qualIdent,
			Name:        v.Name,
			Kind:        v.Kind,
			Dimensions:  v.Dimensions,
			GF:          v.GF,
			NonNegative: v.NonNegative,
		}
		for _, f := range v.Inflows {
			fv.Inflows = append(fv.Inflows, scope[dm.Canonical(f)])
		}
		for _, f := range v.Outflows {
			fv.Outflows = append(fv.Outflows, scope[dm.Canonical(f)])
		}

		pv, perrs := ParseVariable(v)
		for _, r := range perrs {
			*errs = append(*errs, r.WithVar(model.Name, qualIdent))
		}
		fv.Eqns = make(map[string]ast.Expr0, len(pv.Eqns))
		for key, e := range pv.Eqns {
			fv.Eqns[key] = substIdents(e, scope)
		}
		if pv.InitEq != nil {
			fv.InitEq = substIdents(pv.InitEq, scope)
		}

		fm.Vars = append(fm.Vars, fv)
	}
}

func flattenModuleInstance(proj *dm.Project, model *dm.Model, v *dm.Variable, scope map[string]string, errs *[]*errors.Report, fm *FlatModel, visiting map[string]bool) {
	child, ok := proj.Model(v.ModelName)
	if !ok {
		*errs = append(*errs, errors.New(errors.REF005, "analyze",
			fmt.Sprintf("module %q references unknown model %q", v.Name, v.ModelName)).WithVar(model.Name, v.Ident))
		return
	}

	childPrefix := scope[v.Ident] + "."
	childScope := computeScope(child, childPrefix)

	declared := map[string]bool{}
	for _, in := range child.ModuleInputs() {
		declared[in] = true
	}
	bound := map[string]bool{}
	for _, b := range v.Bindings {
		dst := dm.Canonical(b.Dst)
		if !declared[dst] {
			*errs = append(*errs, errors.New(errors.REF002, "analyze",
				fmt.Sprintf("module %q binds %q, which is not a declared input of model %q", v.Name, b.Dst, v.ModelName)).WithVar(model.Name, v.Ident))
			continue
		}
		bound[dst] = true
		src := dm.Canonical(b.Src)
		if mapped, ok2 := scope[src]; ok2 {
			childScope[dst] = mapped
		} else {
			childScope[dst] = src
		}
	}
	for in := range declared {
		if !bound[in] {
			*errs = append(*errs, errors.New(errors.REF003, "analyze",
				fmt.Sprintf("module %q does not bind declared input %q of model %q", v.Name, in, v.ModelName)).WithVar(model.Name, v.Ident))
		}
	}

	childKey := dm.Canonical(v.ModelName)
	if visiting[childKey] {
		// Acyclicity is already reported once by Project.ValidateStructure;
		// don't also recurse forever here.
		return
	}
	visiting[childKey] = true
	visitModel(proj, child, childPrefix, childScope, declared, errs, fm, visiting)
	delete(visiting, childKey)
}
