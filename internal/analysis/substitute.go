package analysis

import "github.com/sd-lang/sdcore/internal/ast"

// substIdents returns a copy of e with every VarExpr/SubscriptExpr ident
// present in sub rewritten to its mapped value, used by Flatten to
// rebase a child model's equations onto the flat variable namespace of
// the model that instantiates it.
func substIdents(e ast.Expr0, sub map[string]string) ast.Expr0 {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *ast.ConstExpr:
		return x
	case *ast.VarExpr:
		if mapped, ok := sub[x.Ident]; ok {
			return &ast.VarExpr{Ident: mapped, Raw: mapped, Span: x.Span}
		}
		return x
	case *ast.SubscriptExpr:
		ident := x.Ident
		raw := x.Raw
		if mapped, ok := sub[ident]; ok {
			ident, raw = mapped, mapped
		}
		subs := make([]ast.SubTerm, len(x.Subs))
		for i, t := range x.Subs {
			subs[i] = t
			if t.Kind == ast.SubExpr {
				subs[i].Index = substIdents(t.Index, sub)
			}
		}
		return &ast.SubscriptExpr{Ident: ident, Raw: raw, Subs: subs, Span: x.Span}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Op: x.Op, X: substIdents(x.X, sub), Span: x.Span}
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Op: x.Op, L: substIdents(x.L, sub), R: substIdents(x.R, sub), Span: x.Span}
	case *ast.IfExpr:
		return &ast.IfExpr{
			Cond: substIdents(x.Cond, sub),
			Then: substIdents(x.Then, sub),
			Else: substIdents(x.Else, sub),
			Span: x.Span,
		}
	case *ast.CallExpr:
		args := make([]ast.Expr0, len(x.Args))
		for i, a := range x.Args {
			args[i] = substIdents(a, sub)
		}
		return &ast.CallExpr{Builtin: x.Builtin, Args: args, Span: x.Span}
	}
	return e
}
