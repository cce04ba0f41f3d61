package types

import "github.com/sd-lang/sdcore/internal/ast"

// Expr is the typed AST produced by Infer: every ast.Expr0 node paired
// with its inferred Shape (and, when the unit pass ran, its inferred
// Unit). The compiler (internal/compiler) walks Expr, not Expr0, so that
// lowering never has to re-derive shapes.
type Expr struct {
	Node     ast.Expr0
	Shape    Shape
	Unit     *UnitExpr
	Children []*Expr
}

// reducerBuiltins accept an arrayed sub-expression and reduce some or
// all of its axes to scalar, per spec.md §4.2 step 4.
var reducerBuiltins = map[string]bool{
	"SUM": true, "MIN": false, "MAX": false, "MEAN": true,
	"STDDEV": true, "PROD": true, "SIZE": true, "RANK": true,
}

// IsArrayReducer reports whether name is one of the array-reduction
// builtins (SUM, MEAN, STDDEV, PROD, SIZE, RANK) — MIN/MAX are excluded
// because they are also the ordinary 2+-argument scalar builtins; the
// array-reduction behavior for MIN/MAX is triggered structurally (single
// arrayed argument) rather than by name alone, see Infer.
func IsArrayReducer(name string) bool {
	return reducerBuiltins[name]
}
