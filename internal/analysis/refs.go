package analysis

import "github.com/sd-lang/sdcore/internal/ast"

// ReferencedIdents walks a parsed equation and returns every variable
// ident it reads, in first-occurrence order with duplicates removed.
// This is the dependency-edge source for the per-variable Graph.
func ReferencedIdents(e ast.Expr0) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(ast.Expr0)
	walk = func(n ast.Expr0) {
		if n == nil {
			return
		}
		switch x := n.(type) {
		case *ast.ConstExpr:
			// no references
		case *ast.VarExpr:
			if !seen[x.Ident] {
				seen[x.Ident] = true
				out = append(out, x.Ident)
			}
		case *ast.SubscriptExpr:
			if !seen[x.Ident] {
				seen[x.Ident] = true
				out = append(out, x.Ident)
			}
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
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}
