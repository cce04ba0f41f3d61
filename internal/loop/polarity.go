// Package loop implements C5, the link/loop analyzer: it derives one
// signed Link per dependency-graph edge, enumerates the model's
// elementary feedback loops with Johnson's algorithm, and (when driven
// by a running Sim) computes per-step relative loop scores from
// forward-mode partial derivatives — spec.md §4.5's LTM instrumentation.
package loop

import "github.com/sd-lang/sdcore/internal/ast"

// Polarity is a causal link's sign: spec.md §4.5's "holding all other
// inputs fixed, does the effect move with or against the cause".
type Polarity int

const (
	Unknown Polarity = iota
	Positive
	Negative
)

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "unknown"
	}
}

// combine merges two polarity observations of the same link: agreement
// holds, disagreement (or either side unknown) collapses to Unknown,
// per spec.md's "unknown otherwise (sign changes, or not analyzable
// statically)".
func combine(a, b Polarity) Polarity {
	if a == Unknown || b == Unknown {
		return Unknown
	}
	if a == b {
		return a
	}
	return Unknown
}

func flip(p Polarity) Polarity {
	switch p {
	case Positive:
		return Negative
	case Negative:
		return Positive
	default:
		return Unknown
	}
}

// monotoneBuiltins are builtins that are monotonically non-decreasing
// in every argument, so a reference inside one of them keeps the
// ambient sign instead of collapsing to Unknown — spec.md §4.5's "unless
// the builtin is known monotonic (e.g. max is positive in all args)".
var monotoneBuiltins = map[string]bool{
	"MIN": true, "MAX": true, "SUM": true, "MEAN": true,
}

// statefulBuiltins mirrors analysis.StatefulBuiltin: their first
// argument is a lagged read, excluded from same-step causal polarity
// exactly as it is excluded from the dependency graph.
var statefulBuiltins = map[string]bool{
	"SMOOTHN": true, "DELAYN": true, "DELAYFIXED": true, "TREND": true,
	"FORECAST": true, "SAMPLEIFTRUE": true, "PREVIOUS": true,
}

// staticPolarity is a static approximation of link polarity: every occurrence
// of target within e is assigned a sign from the ambient +/- multiplier
// context it sits in (flipped by subtraction, division-by, or negation;
// collapsed to Unknown inside a comparison, boolean operator, or
// non-monotonic builtin); all of target's occurrences are then combined.
// Returns Unknown if target does not occur at all.
func staticPolarity(e ast.Expr0, target string) Polarity {
	result := Unknown
	found := false
	for _, p := range occurrences(e, target, Positive, false) {
		if !found {
			result = p
			found = true
			continue
		}
		result = combine(result, p)
	}
	if !found {
		return Unknown
	}
	return result
}

func occurrences(n ast.Expr0, target string, sign Polarity, unknownCtx bool) []Polarity {
	report := func() Polarity {
		if unknownCtx {
			return Unknown
		}
		return sign
	}
	switch x := n.(type) {
	case *ast.ConstExpr:
		return nil
	case *ast.VarExpr:
		if x.Ident == target {
			return []Polarity{report()}
		}
		return nil
	case *ast.SubscriptExpr:
		var out []Polarity
		if x.Ident == target {
			out = append(out, report())
		}
		for _, t := range x.Subs {
			if t.Kind == ast.SubExpr {
				out = append(out, occurrences(t.Index, target, Positive, true)...)
			}
		}
		return out
	case *ast.UnaryExpr:
		switch x.Op {
		case ast.UnaryNeg:
			return occurrences(x.X, target, flip(sign), unknownCtx)
		case ast.UnaryNot:
			return occurrences(x.X, target, sign, true)
		default:
			return occurrences(x.X, target, sign, unknownCtx)
		}
	case *ast.BinaryExpr:
		switch x.Op {
		case ast.OpAdd:
			return append(occurrences(x.L, target, sign, unknownCtx), occurrences(x.R, target, sign, unknownCtx)...)
		case ast.OpSub:
			return append(occurrences(x.L, target, sign, unknownCtx), occurrences(x.R, target, flip(sign), unknownCtx)...)
		case ast.OpMul, ast.OpPow:
			// Static approximation: treat the other operand as a positive
			// multiplier, per spec.md §4.5.
			return append(occurrences(x.L, target, sign, unknownCtx), occurrences(x.R, target, sign, unknownCtx)...)
		case ast.OpDiv:
			return append(occurrences(x.L, target, sign, unknownCtx), occurrences(x.R, target, flip(sign), unknownCtx)...)
		default:
			// Comparisons, MOD, AND, OR: not sign-analyzable.
			return append(occurrences(x.L, target, sign, true), occurrences(x.R, target, sign, true)...)
		}
	case *ast.IfExpr:
		var out []Polarity
		out = append(out, occurrences(x.Cond, target, sign, true)...)
		out = append(out, occurrences(x.Then, target, sign, unknownCtx)...)
		out = append(out, occurrences(x.Else, target, sign, unknownCtx)...)
		return out
	case *ast.CallExpr:
		var out []Polarity
		argUnknown := unknownCtx || !monotoneBuiltins[x.Builtin]
		start := 0
		if statefulBuiltins[x.Builtin] && len(x.Args) > 0 {
			start = 1
		}
		for i := start; i < len(x.Args); i++ {
			out = append(out, occurrences(x.Args[i], target, sign, argUnknown)...)
		}
		return out
	}
	return nil
}
