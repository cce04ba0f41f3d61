package loop

import (
	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/dm"
)

// Link is one causal edge of the model's use-graph: From influences To
// (To's equation reads From), signed per spec.md §4.5.
type Link struct {
	From     string
	To       string
	Polarity Polarity
}

// DetectLinks derives one Link per causal edge of st: an equation-level
// link for every step-time reference (minus a stateful builtin's lagged
// first argument, exactly as the dependency graph itself excludes it),
// plus one structural link per stock inflow (positive) and outflow
// (negative) — the part of a system dynamics model's causality that
// lives in dm.Variable.Inflows/Outflows rather than in any equation
// text, and so would otherwise be invisible to an equation-reference
// walk. A feedback loop closed only through a stock's flows (the most
// common shape in practice, e.g. population -> births -> population)
// depends on these structural links existing.
//
// A variable with more than one by-element equation can, in principle,
// use the same referenced identifier with different signs across
// elements; those observations are combined the same way multiple
// occurrences within one equation are, so a Link's polarity still
// collapses to Unknown on disagreement.
func DetectLinks(st *analysis.SymbolTable) []Link {
	linkIndex := map[[2]string]*Link{}
	var order [][2]string

	record := func(from, to string, pol Polarity) {
		key := [2]string{from, to}
		if existing, ok := linkIndex[key]; ok {
			existing.Polarity = combine(existing.Polarity, pol)
			return
		}
		linkIndex[key] = &Link{From: from, To: to, Polarity: pol}
		order = append(order, key)
	}

	for _, v := range st.Flat.Vars {
		for _, e := range v.Eqns {
			for _, ref := range analysis.StepReferences(e) {
				if _, ok := st.Flat.Lookup(ref); !ok {
					continue
				}
				record(ref, v.Ident, staticPolarity(e, ref))
			}
		}
		if v.Kind == dm.KindStock {
			for _, in := range v.Inflows {
				record(in, v.Ident, Positive)
			}
			for _, out := range v.Outflows {
				record(out, v.Ident, Negative)
			}
		}
	}

	out := make([]Link, len(order))
	for i, key := range order {
		out[i] = *linkIndex[key]
	}
	return out
}
