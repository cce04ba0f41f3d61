package analysis

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
	"github.com/sd-lang/sdcore/internal/types"
)

// statefulBuiltins are desugared to an implicit stock at compile time
// (C4): their first argument is read against the *previous* step's
// state, so it never contributes a same-step dependency edge for cycle
// detection — a feedback loop closed only through one of these is a
// legitimate stock-mediated loop, not an unsolvable simultaneous system.
var statefulBuiltins = map[string]bool{
	"SMOOTHN": true, "DELAYN": true, "DELAYFIXED": true, "TREND": true,
	"FORECAST": true, "SAMPLEIFTRUE": true, "PREVIOUS": true,
}

// StatefulBuiltin reports whether name is one of the builtins whose
// first argument is read against the previous step (internal/loop
// reuses this to exclude that argument from causal-link detection the
// same way stepRefs excludes it from dependency-graph edges).
func StatefulBuiltin(name string) bool { return statefulBuiltins[name] }

// StepReferences returns every identifier e's step-time evaluation
// reads, in first-occurrence order, with a stateful builtin's lagged
// first argument excluded — exported for internal/loop's link
// detection, which walks the same equations this package already
// parses and flattens.
func StepReferences(e ast.Expr0) []string { return stepRefs(e) }

// stepRefs is ReferencedIdents with the lagged argument of a stateful
// builtin excluded.
func stepRefs(e ast.Expr0) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var walk func(ast.Expr0)
	walk = func(n ast.Expr0) {
		switch x := n.(type) {
		case *ast.VarExpr:
			add(x.Ident)
		case *ast.SubscriptExpr:
			add(x.Ident)
			for _, t := range x.Subs {
				if t.Kind == ast.SubExpr {
					walk(t.Index)
				}
			}
		case *ast.UnaryExpr:
			walk(x.X)
		case *ast.BinaryExpr:
			walk(x.L)
			walk(x.R)
		case *ast.IfExpr:
			walk(x.Cond)
			walk(x.Then)
			walk(x.Else)
		case *ast.CallExpr:
			start := 0
			if statefulBuiltins[x.Builtin] && len(x.Args) > 0 {
				start = 1
			}
			for i := start; i < len(x.Args); i++ {
				walk(x.Args[i])
			}
		}
	}
	walk(e)
	return out
}

func addGraphRefs(g *Graph, flat *FlatModel, from string, e ast.Expr0) []*errors.Report {
	var out []*errors.Report
	for _, ref := range stepRefs(e) {
		if ref == "time" || ref == "dt" {
			continue // simulation clock/step size, not a graph node
		}
		if _, ok := flat.Lookup(ref); !ok {
			out = append(out, errors.New(errors.GPH002, "analyze",
				fmt.Sprintf("%q depends on unknown variable %q", from, ref)).WithVar("", from))
			continue
		}
		g.AddEdge(from, ref)
	}
	return out
}

// SymbolTable is the complete result of C3 over one project: the
// flattened variable space, every equation's shape/unit-annotated Expr,
// the same-step dependency graph and its evaluation order, and the
// separate initial-value dependency graph and order.
type SymbolTable struct {
	Flat  *FlatModel
	Dims  map[string]*dm.Dimension
	Typed map[string]map[string]*types.Expr // flat ident -> subscript key ("", "@init", or an element key) -> Expr

	StepGraph *Graph
	InitGraph *Graph
	Order     []string // same-step evaluation order, dependency-first
	InitOrder []string // initial-value evaluation order, dependency-first
}

// Analyze runs the full static-analysis pass over a Project: structural
// validation (dm.Project.ValidateStructure), module flattening,
// dimension/unit inference over every equation, dependency-graph
// construction, cycle detection, and topological ordering. It never
// stops at the first problem — every Report from every sub-phase is
// collected and returned together, per spec.md §4.2.
func Analyze(proj *dm.Project) (*SymbolTable, []*errors.Report) {
	proj.Build()
	var errs []*errors.Report
	errs = append(errs, proj.ValidateStructure()...)

	flat, ferrs := Flatten(proj)
	errs = append(errs, ferrs...)
	if flat == nil {
		return nil, errs
	}

	dims := make(map[string]*dm.Dimension, len(proj.Dimensions))
	for _, d := range proj.Dimensions {
		dims[dm.Canonical(d.Name)] = d
	}
	ctx := &types.Context{Dims: dims, Vars: make(map[string]types.VarInfo, len(flat.Vars))}
	for _, v := range flat.Vars {
		if len(v.Dimensions) > 1 {
			errs = append(errs, errors.New(errors.DIM004, "analyze",
				fmt.Sprintf("%q has %d dimensions; only single-dimension arrays are supported", v.Ident, len(v.Dimensions))).WithVar("", v.Ident))
		}
		ctx.Vars[v.Ident] = types.VarInfo{Ident: v.Ident, Dims: v.Dimensions}
	}

	st := &SymbolTable{
		Flat:      flat,
		Dims:      dims,
		Typed:     make(map[string]map[string]*types.Expr, len(flat.Vars)),
		StepGraph: NewGraph(),
		InitGraph: NewGraph(),
	}
	for _, v := range flat.Vars {
		st.StepGraph.AddNode(v.Ident)
		st.InitGraph.AddNode(v.Ident)
	}

	for _, v := range flat.Vars {
		st.Typed[v.Ident] = make(map[string]*types.Expr, len(v.Eqns)+1)
		for key, e := range v.Eqns {
			typed, terrs := types.Infer(e, ctx)
			for _, r := range terrs {
				errs = append(errs, r.WithVar("", v.Ident))
			}
			st.Typed[v.Ident][key] = typed
			errs = append(errs, checkStatefulOrder(v.Ident, e)...)

			if v.Kind == dm.KindStock {
				errs = append(errs, addGraphRefs(st.InitGraph, flat, v.Ident, e)...)
			} else {
				errs = append(errs, addGraphRefs(st.StepGraph, flat, v.Ident, e)...)
				errs = append(errs, addGraphRefs(st.InitGraph, flat, v.Ident, e)...)
			}
		}
		if v.InitEq != nil {
			typed, terrs := types.Infer(v.InitEq, ctx)
			for _, r := range terrs {
				errs = append(errs, r.WithVar("", v.Ident))
			}
			st.Typed[v.Ident]["@init"] = typed
			st.InitGraph.edges[v.Ident] = nil // InitEq replaces the regular equation for init ordering
			errs = append(errs, addGraphRefs(st.InitGraph, flat, v.Ident, v.InitEq)...)
			errs = append(errs, checkStatefulOrder(v.Ident, v.InitEq)...)
		}
	}

	for _, scc := range st.StepGraph.SCCs() {
		if len(scc) > 1 || st.StepGraph.HasSelfLoop(scc[0]) {
			errs = append(errs, errors.New(errors.GPH001, "analyze",
				fmt.Sprintf("circular dependency among non-stock variables: %v", scc)))
		}
	}

	order, err := st.StepGraph.TopoSort()
	if err != nil {
		order = flat.identOrder()
	}
	st.Order = order

	initOrder, err := st.InitGraph.TopoSort()
	if err != nil {
		initOrder = flat.identOrder()
	}
	st.InitOrder = initOrder

	return st, errs
}
