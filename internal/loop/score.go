package loop

import (
	"math"

	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/compiler"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/vm"
)

// linkDerivKind distinguishes the two ways a link's partial derivative
// gets computed: through the target's own equation tree (eqnLink), or,
// when the target is a stock and the source one of its flows, as the
// flow's direct dt-scaled contribution to the next stock value
// (stockLink) — a stock has no step-time equation to differentiate
// against (dm.Variable.Inflows/Outflows is structural, not algebraic).
type linkDerivKind int

const (
	eqnLink linkDerivKind = iota
	stockInflow
	stockOutflow
)

type linkMeta struct {
	kind linkDerivKind
	eqn  ast.Expr0
}

// LoopScore is one loop's relative-contribution time series, spec.md
// §4.5's LTM output: one value per recorded history frame, normalized
// so that at every frame Σ|score| = 1 across all scored loops.
type LoopScore struct {
	LoopID string
	Series []float64
}

// dual is a forward-mode dual number: a value paired with its
// derivative with respect to one fixed seed variable.
type dual struct{ v, d float64 }

// ComputeLoopScores computes, for every recorded frame of sim's history,
// each loop's relative score: the product of its links' local partial
// derivatives (∂To/∂From, holding every other direct input fixed),
// normalized across all scored loops so the absolute values sum to 1 —
// spec.md §4.5's relative loop score. Each link's partial derivative is
// evaluated by forward-mode differentiation of the *to* variable's own
// equation tree against that frame's recorded values, seeding only the
// *from* variable's derivative to 1: algebraically equivalent to
// differentiating the compiled bytecode tape one op at a time (the
// compiler's codegen in internal/compiler is a direct, order-preserving
// lowering of the same tree), but implemented directly against the typed
// equation instead of re-deriving it from compiler.Program's opcodes.
//
// An arrayed variable's score is evaluated against its representative
// (offset 0) element only — a loop that only closes through some other
// element of an array is not distinguished from one closing through
// element 0. Opaque builtins (lookups, stateful builtins, array
// reductions, time-shape functions) contribute a zero marginal
// derivative: spec.md's polarity rule already draws this same "not
// analytically tractable short of full symbolic differentiation"
// boundary by falling back to Unknown for non-monotonic builtins.
func ComputeLoopScores(st *analysis.SymbolTable, prog *compiler.Program, sim *vm.Sim, loops []Loop) []LoopScore {
	out := make([]LoopScore, len(loops))
	for i, lp := range loops {
		out[i] = LoopScore{LoopID: lp.ID, Series: make([]float64, 0, len(sim.History()))}
	}

	needed := map[[2]string]linkMeta{}
	for _, lp := range loops {
		for _, l := range lp.Links {
			key := [2]string{l.From, l.To}
			if _, ok := needed[key]; ok {
				continue
			}
			fv, ok := st.Flat.Lookup(l.To)
			if !ok {
				continue
			}
			if fv.Kind == dm.KindStock {
				kind := stockOutflow
				for _, in := range fv.Inflows {
					if in == l.From {
						kind = stockInflow
						break
					}
				}
				needed[key] = linkMeta{kind: kind}
				continue
			}
			needed[key] = linkMeta{kind: eqnLink, eqn: representativeEquation(fv)}
		}
	}

	history := sim.History()
	for i, frame := range history {
		env := make(map[string]float64, len(prog.Layout.Slots))
		for ident, slot := range prog.Layout.Slots {
			env[ident] = frame.Data[slot.Offset]
		}
		stepDT := 0.0
		if i > 0 {
			stepDT = frame.T - history[i-1].T
		} else if len(history) > 1 {
			stepDT = history[1].T - history[0].T
		}

		linkDeriv := make(map[[2]string]float64, len(needed))
		for key, meta := range needed {
			switch meta.kind {
			case stockInflow:
				linkDeriv[key] = stepDT
			case stockOutflow:
				linkDeriv[key] = -stepDT
			default:
				if meta.eqn == nil {
					linkDeriv[key] = 0
					continue
				}
				linkDeriv[key] = evalDual(meta.eqn, env, key[0]).d
			}
		}

		raw := make([]float64, len(loops))
		for i, lp := range loops {
			prod := 1.0
			for _, l := range lp.Links {
				prod *= linkDeriv[[2]string{l.From, l.To}]
			}
			raw[i] = prod
		}
		denom := 0.0
		for _, v := range raw {
			denom += math.Abs(v)
		}
		for i, v := range raw {
			score := 0.0
			if denom > 0 {
				score = v / denom
			}
			out[i].Series = append(out[i].Series, score)
		}
	}

	return out
}

func representativeEquation(fv *analysis.FlatVariable) ast.Expr0 {
	if e, ok := fv.Eqns[""]; ok {
		return e
	}
	for _, e := range fv.Eqns {
		return e
	}
	return nil
}

func evalDual(e ast.Expr0, env map[string]float64, seed string) dual {
	lookup := func(ident string) dual {
		d := 0.0
		if ident == seed {
			d = 1
		}
		return dual{v: env[ident], d: d}
	}

	switch x := e.(type) {
	case *ast.ConstExpr:
		return dual{v: x.Value}
	case *ast.VarExpr:
		return lookup(x.Ident)
	case *ast.SubscriptExpr:
		return lookup(x.Ident)
	case *ast.UnaryExpr:
		sub := evalDual(x.X, env, seed)
		switch x.Op {
		case ast.UnaryNeg:
			return dual{v: -sub.v, d: -sub.d}
		case ast.UnaryNot:
			v := 0.0
			if sub.v == 0 {
				v = 1
			}
			return dual{v: v}
		default:
			return sub
		}
	case *ast.BinaryExpr:
		a := evalDual(x.L, env, seed)
		b := evalDual(x.R, env, seed)
		switch x.Op {
		case ast.OpAdd:
			return dual{v: a.v + b.v, d: a.d + b.d}
		case ast.OpSub:
			return dual{v: a.v - b.v, d: a.d - b.d}
		case ast.OpMul:
			return dual{v: a.v * b.v, d: a.d*b.v + a.v*b.d}
		case ast.OpDiv:
			if b.v == 0 {
				return dual{v: math.NaN()}
			}
			return dual{v: a.v / b.v, d: (a.d*b.v - a.v*b.d) / (b.v * b.v)}
		case ast.OpPow:
			v := math.Pow(a.v, b.v)
			if b.d == 0 {
				return dual{v: v, d: b.v * math.Pow(a.v, b.v-1) * a.d}
			}
			if a.v > 0 {
				return dual{v: v, d: v * (b.d*math.Log(a.v) + b.v*a.d/a.v)}
			}
			return dual{v: v}
		case ast.OpMod:
			return dual{v: math.Mod(a.v, b.v)}
		default:
			return boolDual(x.Op, a.v, b.v)
		}
	case *ast.IfExpr:
		cond := evalDual(x.Cond, env, seed)
		if cond.v != 0 {
			return evalDual(x.Then, env, seed)
		}
		return evalDual(x.Else, env, seed)
	case *ast.CallExpr:
		return evalBuiltinDual(x, env, seed)
	}
	return dual{}
}

func boolDual(op ast.BinOp, a, b float64) dual {
	truth := func(b bool) dual {
		if b {
			return dual{v: 1}
		}
		return dual{v: 0}
	}
	switch op {
	case ast.OpEq:
		return truth(a == b)
	case ast.OpNeq:
		return truth(a != b)
	case ast.OpLt:
		return truth(a < b)
	case ast.OpLte:
		return truth(a <= b)
	case ast.OpGt:
		return truth(a > b)
	case ast.OpGte:
		return truth(a >= b)
	case ast.OpAnd:
		return truth(a != 0 && b != 0)
	case ast.OpOr:
		return truth(a != 0 || b != 0)
	}
	return dual{}
}

var unaryDualFns = map[string]func(dual) dual{
	"ABS": func(a dual) dual {
		sign := 1.0
		if a.v < 0 {
			sign = -1
		}
		return dual{v: math.Abs(a.v), d: sign * a.d}
	},
	"EXP": func(a dual) dual {
		ev := math.Exp(a.v)
		return dual{v: ev, d: ev * a.d}
	},
	"LN": func(a dual) dual {
		if a.v <= 0 {
			return dual{v: math.NaN()}
		}
		return dual{v: math.Log(a.v), d: a.d / a.v}
	},
	"LOG10": func(a dual) dual {
		if a.v <= 0 {
			return dual{v: math.NaN()}
		}
		return dual{v: math.Log10(a.v), d: a.d / (a.v * math.Ln10)}
	},
	"SQRT": func(a dual) dual {
		if a.v < 0 {
			return dual{v: math.NaN()}
		}
		sq := math.Sqrt(a.v)
		if sq == 0 {
			return dual{v: 0}
		}
		return dual{v: sq, d: a.d / (2 * sq)}
	},
	"SIN": func(a dual) dual { return dual{v: math.Sin(a.v), d: math.Cos(a.v) * a.d} },
	"COS": func(a dual) dual { return dual{v: math.Cos(a.v), d: -math.Sin(a.v) * a.d} },
	"TAN": func(a dual) dual {
		c := math.Cos(a.v)
		return dual{v: math.Tan(a.v), d: a.d / (c * c)}
	},
	"ARCSIN": func(a dual) dual {
		denom := math.Sqrt(1 - a.v*a.v)
		if denom == 0 {
			return dual{v: math.Asin(a.v)}
		}
		return dual{v: math.Asin(a.v), d: a.d / denom}
	},
	"ARCCOS": func(a dual) dual {
		denom := math.Sqrt(1 - a.v*a.v)
		if denom == 0 {
			return dual{v: math.Acos(a.v)}
		}
		return dual{v: math.Acos(a.v), d: -a.d / denom}
	},
	"ARCTAN": func(a dual) dual { return dual{v: math.Atan(a.v), d: a.d / (1 + a.v*a.v)} },
	"INTEGER": func(a dual) dual { return dual{v: math.Trunc(a.v)} },
}

func evalBuiltinDual(x *ast.CallExpr, env map[string]float64, seed string) dual {
	if fn, ok := unaryDualFns[x.Builtin]; ok && len(x.Args) > 0 {
		return fn(evalDual(x.Args[0], env, seed))
	}
	switch x.Builtin {
	case "MIN", "MAX":
		if len(x.Args) == 0 {
			return dual{}
		}
		best := evalDual(x.Args[0], env, seed)
		for _, arg := range x.Args[1:] {
			d := evalDual(arg, env, seed)
			if (x.Builtin == "MIN" && d.v < best.v) || (x.Builtin == "MAX" && d.v > best.v) {
				best = d
			}
		}
		return best
	default:
		// Opaque w.r.t. analytic differentiation (lookups, stateful
		// builtins, array reductions, time-shape functions): contribute a
		// representative value with zero marginal derivative.
		if len(x.Args) > 0 {
			return dual{v: evalDual(x.Args[0], env, seed).v}
		}
		return dual{}
	}
}
