package loop

import (
	"fmt"
	"sort"

	"github.com/sd-lang/sdcore/internal/analysis"
)

// LoopPolarity classifies a feedback loop from the parity of its
// links' negative polarities, per spec.md §4.5.
type LoopPolarity int

const (
	LoopUnknown LoopPolarity = iota
	Reinforcing
	Balancing
)

func (p LoopPolarity) String() string {
	switch p {
	case Reinforcing:
		return "reinforcing"
	case Balancing:
		return "balancing"
	default:
		return "unknown"
	}
}

// Loop is one elementary feedback loop: an ordered cycle of variables
// and the Link along each arc of the cycle, plus its overall polarity.
type Loop struct {
	ID       string
	Vars     []string // cycle order; the last element closes back to Vars[0]
	Links    []Link   // Links[i] is Vars[i] -> Vars[i+1 mod len]
	Polarity LoopPolarity
}

// FindLoops runs C5 over an already-analyzed project: it derives every
// causal Link from st (DetectLinks) and enumerates every elementary
// feedback loop in the resulting use-graph with Johnson's algorithm.
// Loops are assigned stable ids by sorting on their canonical
// (lexicographically-least-first) vertex sequence, so the same model
// always produces the same ids regardless of map iteration order.
func FindLoops(st *analysis.SymbolTable) ([]Loop, []Link) {
	links := DetectLinks(st)

	succ := map[string][]string{}
	byEdge := map[[2]string]Link{}
	var nodes []string
	seen := map[string]bool{}
	for _, l := range links {
		succ[l.From] = append(succ[l.From], l.To)
		byEdge[[2]string{l.From, l.To}] = l
		for _, v := range []string{l.From, l.To} {
			if !seen[v] {
				seen[v] = true
				nodes = append(nodes, v)
			}
		}
	}

	cycles := FindCycles(nodes, succ)

	loops := make([]Loop, 0, len(cycles))
	for _, cyc := range cycles {
		canon := canonicalRotation(cyc)
		loopLinks := make([]Link, len(canon))
		pol := Reinforcing
		for i, v := range canon {
			next := canon[(i+1)%len(canon)]
			l := byEdge[[2]string{v, next}]
			loopLinks[i] = l
			switch l.Polarity {
			case Unknown:
				pol = LoopUnknown
			case Negative:
				if pol != LoopUnknown {
					pol = flipLoopPolarity(pol)
				}
			}
		}
		loops = append(loops, Loop{Vars: canon, Links: loopLinks, Polarity: pol})
	}

	sort.Slice(loops, func(i, j int) bool { return lessVars(loops[i].Vars, loops[j].Vars) })
	for i := range loops {
		loops[i].ID = fmt.Sprintf("L%d", i+1)
	}

	return loops, links
}

func flipLoopPolarity(p LoopPolarity) LoopPolarity {
	if p == Reinforcing {
		return Balancing
	}
	return Reinforcing
}

// canonicalRotation rotates a cycle so its lexicographically smallest
// vertex comes first, giving every equivalent rotation of the same
// cycle an identical representation.
func canonicalRotation(cyc []string) []string {
	minIdx := 0
	for i, v := range cyc {
		if v < cyc[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, len(cyc))
	for i := range cyc {
		out[i] = cyc[(minIdx+i)%len(cyc)]
	}
	return out
}

func lessVars(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
