package types

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
)

// monotonicBuiltins are known monotonic in every argument; kept here
// because it's a property of the same builtin table the shape/unit rules
// live in. The link polarity analysis of C5 does not call
// IsMonotonicBuiltin: internal/loop keeps its own table
// (monotoneBuiltins in polarity.go).
var monotonicBuiltins = map[string]bool{
	"MAX": true, "MIN": true,
}

func IsMonotonicBuiltin(name string) bool { return monotonicBuiltins[name] }

// Infer lowers an untyped ast.Expr0 into a shape-annotated Expr,
// collecting every dimension error along the way rather than stopping at
// the first one (spec.md §4.2: "errors ... are collected").
func Infer(e ast.Expr0, ctx *Context) (*Expr, []*errors.Report) {
	var out []*errors.Report
	typed := infer(e, ctx, &out)
	return typed, out
}

func infer(e ast.Expr0, ctx *Context, errs *[]*errors.Report) *Expr {
	switch n := e.(type) {
	case *ast.ConstExpr:
		return &Expr{Node: n, Shape: Scalar()}

	case *ast.VarExpr:
		if n.Ident == "time" || n.Ident == "dt" {
			return &Expr{Node: n, Shape: Scalar()}
		}
		info, ok := ctx.Vars[n.Ident]
		if !ok {
			*errs = append(*errs, errors.New(errors.REF001, "analyze",
				fmt.Sprintf("unknown identifier %q", n.Raw)).WithSpan(n.Span))
			return &Expr{Node: n, Shape: Scalar()}
		}
		if len(info.Dims) > 0 {
			*errs = append(*errs, errors.New(errors.DIM002, "analyze",
				fmt.Sprintf("%q is an array and needs explicit subscripts", n.Raw)).WithSpan(n.Span))
		}
		return &Expr{Node: n, Shape: Shape{Dims: info.Dims}, Unit: info.Unit}

	case *ast.SubscriptExpr:
		return inferSubscript(n, ctx, errs)

	case *ast.UnaryExpr:
		x := infer(n.X, ctx, errs)
		return &Expr{Node: n, Shape: x.Shape, Unit: x.Unit, Children: []*Expr{x}}

	case *ast.BinaryExpr:
		return inferBinary(n, ctx, errs)

	case *ast.IfExpr:
		cond := infer(n.Cond, ctx, errs)
		thenE := infer(n.Then, ctx, errs)
		elseE := infer(n.Else, ctx, errs)
		shape, ok := broadcast(thenE.Shape, elseE.Shape, ctx)
		if !ok {
			*errs = append(*errs, errors.New(errors.DIM001, "analyze",
				"IF branches have incompatible dimensions").WithSpan(n.Span))
		}
		return &Expr{Node: n, Shape: shape, Children: []*Expr{cond, thenE, elseE}}

	case *ast.CallExpr:
		return inferCall(n, ctx, errs)
	}
	return &Expr{Node: e, Shape: Scalar()}
}

func inferBinary(n *ast.BinaryExpr, ctx *Context, errs *[]*errors.Report) *Expr {
	l := infer(n.L, ctx, errs)
	r := infer(n.R, ctx, errs)
	children := []*Expr{l, r}

	switch n.Op {
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		if !l.Shape.Equal(r.Shape) && !(l.Shape.IsScalar() && r.Shape.IsScalar()) {
			if !shapesMatchByName(l.Shape, r.Shape, ctx) {
				*errs = append(*errs, errors.New(errors.DIM001, "analyze",
					fmt.Sprintf("comparison requires identical dimensions, got %s and %s", l.Shape, r.Shape)).WithSpan(n.Span))
			}
		}
		// Per spec.md §4.2 step 4: comparison result is scalar-shaped (a
		// boolean surrogate). See DESIGN.md for the element-wise-broadcast
		// Open Question this literal reading resolves.
		return &Expr{Node: n, Shape: Scalar(), Children: children}

	case ast.OpAnd, ast.OpOr:
		shape, ok := broadcast(l.Shape, r.Shape, ctx)
		if !ok {
			*errs = append(*errs, errors.New(errors.DIM001, "analyze",
				fmt.Sprintf("logical operator requires compatible dimensions, got %s and %s", l.Shape, r.Shape)).WithSpan(n.Span))
		}
		return &Expr{Node: n, Shape: shape, Children: children}

	default: // + - * / MOD ^
		shape, ok := broadcast(l.Shape, r.Shape, ctx)
		if !ok {
			*errs = append(*errs, errors.New(errors.DIM001, "analyze",
				fmt.Sprintf("operands have incompatible dimensions: %s vs %s", l.Shape, r.Shape)).WithSpan(n.Span))
		}
		if (n.Op == ast.OpAdd || n.Op == ast.OpSub) && l.Unit != nil && r.Unit != nil && !l.Unit.Equal(r.Unit) {
			w := errors.New(errors.UNIT001, "analyze",
				fmt.Sprintf("unit mismatch: %s vs %s", l.Unit, r.Unit)).WithSpan(n.Span)
			*errs = append(*errs, w)
		}
		var u *UnitExpr
		if l.Unit != nil || r.Unit != nil {
			u = combineUnits(n.Op, l.Unit, r.Unit)
		}
		return &Expr{Node: n, Shape: shape, Unit: u, Children: children}
	}
}

// shapesMatchByName checks element-wise dimension-name compatibility
// without allowing scalar broadcast (used for comparisons, which spec.md
// requires to have identical dimensions rather than broadcasting).
func shapesMatchByName(a, b Shape, ctx *Context) bool {
	if len(a.Dims) != len(b.Dims) {
		return false
	}
	for i := range a.Dims {
		if !ctx.sameDim(a.Dims[i], b.Dims[i]) {
			return false
		}
	}
	return true
}

// broadcast computes the broadcast shape of two operands per spec.md
// §4.2 step 4: a scalar broadcasts against anything; otherwise axes must
// correspond by dimension name (or mapping), not merely by size.
func broadcast(a, b Shape, ctx *Context) (Shape, bool) {
	if a.IsScalar() {
		return b, true
	}
	if b.IsScalar() {
		return a, true
	}
	if !shapesMatchByName(a, b, ctx) {
		return Shape{}, false
	}
	return a, true
}

func inferSubscript(n *ast.SubscriptExpr, ctx *Context, errs *[]*errors.Report) *Expr {
	info, ok := ctx.Vars[n.Ident]
	if !ok {
		*errs = append(*errs, errors.New(errors.REF001, "analyze",
			fmt.Sprintf("unknown identifier %q", n.Raw)).WithSpan(n.Span))
		return &Expr{Node: n, Shape: Scalar()}
	}
	if len(n.Subs) != len(info.Dims) {
		*errs = append(*errs, errors.New(errors.DIM002, "analyze",
			fmt.Sprintf("%q has %d dimension(s) but %d subscript(s) were given", n.Raw, len(info.Dims), len(n.Subs))).WithSpan(n.Span))
		return &Expr{Node: n, Shape: Scalar()}
	}
	var children []*Expr
	var keep []string
	for i, t := range n.Subs {
		dim := info.Dims[i]
		switch t.Kind {
		case ast.SubElement:
			// Writing the dimension's own name as the subscript ("pop[Region]")
			// is the apply-to-all self-index idiom: keep the axis, evaluated
			// once per element, rather than treat it as a literal element
			// lookup that would reduce the axis away.
			if dm.Canonical(t.Element) == dm.Canonical(dim) {
				keep = append(keep, dim)
				break
			}
			d, ok := ctx.Dims[dim]
			if ok && d.Kind == dm.DimNamed && d.IndexOf(t.Element) == -1 {
				*errs = append(*errs, errors.New(errors.REF001, "analyze",
					fmt.Sprintf("%q is not an element of dimension %q", t.Element, dim)).WithSpan(t.Span))
			}
			// axis removed
		case ast.SubWildcard:
			keep = append(keep, dim)
		case ast.SubRange:
			keep = append(keep, dim)
		case ast.SubBang:
			keep = append(keep, t.Dim)
		case ast.SubExpr:
			idx := infer(t.Index, ctx, errs)
			if !idx.Shape.IsScalar() {
				*errs = append(*errs, errors.New(errors.DIM001, "analyze",
					"subscript index expression must be scalar").WithSpan(t.Span))
			}
			children = append(children, idx)
			// axis removed
		}
	}
	return &Expr{Node: n, Shape: Shape{Dims: keep}, Unit: info.Unit, Children: children}
}

func inferCall(n *ast.CallExpr, ctx *Context, errs *[]*errors.Report) *Expr {
	var children []*Expr
	for _, a := range n.Args {
		children = append(children, infer(a, ctx, errs))
	}

	name := n.Builtin

	// Array-reduction builtins: SUM/MEAN/STDDEV/PROD/SIZE/RANK always
	// reduce; MIN/MAX reduce only when called with a single arrayed
	// argument (their ordinary form is the 2+-argument scalar/broadcast
	// builtin handled in the default case below).
	isReducerCall := IsArrayReducer(name) || ((name == "MIN" || name == "MAX") && len(n.Args) == 1 && !children[0].Shape.IsScalar())
	if isReducerCall {
		if name == "SIZE" {
			return &Expr{Node: n, Shape: Scalar(), Children: children}
		}
		keep := partialReductionDims(n.Args[0])
		return &Expr{Node: n, Shape: Shape{Dims: keep}, Children: children}
	}

	switch name {
	case "ABS", "EXP", "LN", "LOG10", "SQRT", "SIN", "COS", "TAN",
		"ARCSIN", "ARCCOS", "ARCTAN", "INTEGER":
		return &Expr{Node: n, Shape: children[0].Shape, Children: children}

	case "MIN", "MAX":
		shape := Scalar()
		for _, c := range children {
			var ok bool
			shape, ok = broadcast(shape, c.Shape, ctx)
			if !ok {
				*errs = append(*errs, errors.New(errors.DIM001, "analyze",
					fmt.Sprintf("%s arguments have incompatible dimensions", name)).WithSpan(n.Span))
				break
			}
		}
		return &Expr{Node: n, Shape: shape, Children: children}

	case "PULSE", "STEP", "RAMP":
		return &Expr{Node: n, Shape: Scalar(), Children: children}

	case "LOOKUP":
		if len(children) < 2 {
			return &Expr{Node: n, Shape: Scalar(), Children: children}
		}
		return &Expr{Node: n, Shape: children[1].Shape, Children: children}

	case "SMOOTHN", "DELAYN", "DELAYFIXED", "TREND", "FORECAST",
		"SAMPLEIFTRUE", "PREVIOUS":
		return &Expr{Node: n, Shape: children[0].Shape, Children: children}
	}

	*errs = append(*errs, errors.New(errors.PAR007, "analyze",
		fmt.Sprintf("unknown builtin %q", name)).WithSpan(n.Span))
	return &Expr{Node: n, Shape: Scalar(), Children: children}
}

// partialReductionDims inspects the raw argument to an array-reduction
// builtin and returns the dimension names that survive the reduction:
// every subscript position written as a dimension-bound bang wildcard
// ("d!") is preserved; every other position (plain "*", a range, a
// literal element) is reduced away. A position written as a dimension's
// own name (the D of SUM(m[D,*])) counts as a literal element and is
// reduced away as well.
func partialReductionDims(arg ast.Expr0) []string {
	sub, ok := arg.(*ast.SubscriptExpr)
	if !ok {
		return nil
	}
	var keep []string
	for _, t := range sub.Subs {
		if t.Kind == ast.SubBang {
			keep = append(keep, t.Dim)
		}
	}
	return keep
}
