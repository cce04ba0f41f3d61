package analysis

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/errors"
)

// orderedStatefulBuiltins are the stateful builtins whose third argument
// is a smoothing/delay order (SMOOTHN's N, DELAYN's N); internal/vm
// collapses every order to a single exponential stage rather than
// staging N cascaded sub-delays (internal/vm/stateful.go), so a caller
// passing N != 1 gets a different curve shape than the textbook Nth-order
// response. This check surfaces that gap as a warning instead of letting
// it pass through silently.
var orderedStatefulBuiltins = map[string]bool{
	"SMOOTHN": true, "DELAYN": true,
}

// checkStatefulOrder walks e looking for SMOOTHN/DELAYN calls whose order
// argument is a constant other than 1, and reports each one found.
func checkStatefulOrder(ident string, e ast.Expr0) []*errors.Report {
	var out []*errors.Report
	var walk func(ast.Expr0)
	walk = func(n ast.Expr0) {
		switch x := n.(type) {
		case *ast.ConstExpr:
		case *ast.VarExpr:
		case *ast.SubscriptExpr:
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
			if orderedStatefulBuiltins[x.Builtin] && len(x.Args) > 2 {
				if c, ok := x.Args[2].(*ast.ConstExpr); ok && c.Value != 1 {
					out = append(out, errors.New(errors.SIM004, "analyze",
						fmt.Sprintf("%s(..., order=%g) in %q: order is collapsed to a single exponential stage, not staged as %g cascaded sub-delays",
							x.Builtin, c.Value, ident, c.Value)).WithVar("", ident))
				}
			}
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}
