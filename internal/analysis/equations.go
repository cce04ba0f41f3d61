package analysis

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
	"github.com/sd-lang/sdcore/internal/parser"
)

// ParsedVariable is one dm.Variable after C2 has run over every equation
// string it carries. Eqns is keyed by the subscript-tuple key used in
// dm.ArrayedEquation.ByElement ("" for a scalar or apply-to-all
// variable). Stock's Equation holds its initial-value expression
// (parsed once, evaluated only at t = Start); Flow and Aux's Equation
// holds the per-step expression recomputed at every dt step. An Aux
// may additionally carry InitEq: a once-only expression used in place
// of Equation at t = Start, for the variables whose steady-state
// formula divides by zero or is otherwise undefined before the run
// begins.
type ParsedVariable struct {
	Var    *dm.Variable
	Eqns   map[string]ast.Expr0
	InitEq ast.Expr0
}

// ParseVariable parses every equation string a Variable carries,
// collecting every PAR### error rather than stopping at the first.
func ParseVariable(v *dm.Variable) (*ParsedVariable, []*errors.Report) {
	var out []*errors.Report
	pv := &ParsedVariable{Var: v, Eqns: map[string]ast.Expr0{}}

	parseOne := func(src string) ast.Expr0 {
		e, errs := parser.Parse(src)
		for _, r := range errs {
			out = append(out, r.WithVar("", v.Ident))
		}
		return e
	}

	switch {
	case v.Equation.IsApplyToAll():
		pv.Eqns[""] = parseOne(v.Equation.ApplyToAll)
	case len(v.Equation.ByElement) > 0:
		for key, src := range v.Equation.ByElement {
			pv.Eqns[key] = parseOne(src)
		}
	case v.Kind == dm.KindModule:
		// Module variables carry no equation of their own; their value
		// comes from the flattened child model (see flatten.go).
	default:
		out = append(out, errors.New(errors.PAR005, "parse",
			fmt.Sprintf("variable %q has no equation", v.Name)).WithVar("", v.Ident))
	}

	if v.Kind == dm.KindAux && v.InitialEq.IsApplyToAll() {
		pv.InitEq = parseOne(v.InitialEq.ApplyToAll)
	}

	return pv, out
}
