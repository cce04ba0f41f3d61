package loop

import "sort"

// johnson enumerates every elementary cycle of a directed graph using
// Johnson's 1975 algorithm: peel off the least-index vertex, restrict to
// its strongly connected component, backtrack with a blocking set. This
// is one step beyond internal/analysis's Tarjan SCC pass: Tarjan finds
// components, Johnson finds every simple cycle within them.
type johnson struct {
	succ    map[string][]string
	index   map[string]int
	blocked map[string]bool
	blockOf map[string]map[string]bool
	stack   []string
	cycles  [][]string
}

// FindCycles returns every elementary (simple) cycle in the directed
// graph described by succ, as ordered vertex sequences (the first
// vertex is not repeated at the end). Self-loops are returned as
// single-vertex cycles.
func FindCycles(nodes []string, succ map[string][]string) [][]string {
	ordered := append([]string(nil), nodes...)
	sort.Strings(ordered)
	index := make(map[string]int, len(ordered))
	for i, n := range ordered {
		index[n] = i
	}

	j := &johnson{succ: succ, index: index}

	for i, s := range ordered {
		eligible := make(map[string]bool, len(ordered)-i)
		for _, n := range ordered[i:] {
			eligible[n] = true
		}
		comp := sccContaining(s, eligible, succ)
		if len(comp) == 0 {
			continue
		}
		if len(comp) == 1 && !selfLoop(s, succ) {
			continue
		}

		j.blocked = make(map[string]bool, len(comp))
		j.blockOf = make(map[string]map[string]bool, len(comp))
		for v := range comp {
			j.blocked[v] = false
			j.blockOf[v] = map[string]bool{}
		}
		j.stack = nil
		j.circuit(s, s, comp)
	}
	return j.cycles
}

func selfLoop(v string, succ map[string][]string) bool {
	for _, w := range succ[v] {
		if w == v {
			return true
		}
	}
	return false
}

// sccContaining computes the strongly connected components of the
// subgraph induced by eligible (Tarjan's algorithm, as in
// internal/analysis.Graph.SCCs) and returns the vertex set of whichever
// component contains s.
func sccContaining(s string, eligible map[string]bool, succ map[string][]string) map[string]bool {
	index := 0
	var stack []string
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var sccs [][]string

	var strongconnect func(string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range succ[v] {
			if !eligible[w] {
				continue
			}
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range eligible {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}

	for _, scc := range sccs {
		for _, v := range scc {
			if v == s {
				set := make(map[string]bool, len(scc))
				for _, w := range scc {
					set[w] = true
				}
				return set
			}
		}
	}
	return nil
}

func (j *johnson) unblock(v string) {
	j.blocked[v] = false
	for w := range j.blockOf[v] {
		delete(j.blockOf[v], w)
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}

func (j *johnson) circuit(v, s string, comp map[string]bool) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true

	for _, w := range j.succ[v] {
		if !comp[w] {
			continue
		}
		if w == s {
			cycle := append([]string(nil), j.stack...)
			j.cycles = append(j.cycles, cycle)
			found = true
		} else if !j.blocked[w] {
			if j.circuit(w, s, comp) {
				found = true
			}
		}
	}

	if found {
		j.unblock(v)
	} else {
		for _, w := range j.succ[v] {
			if !comp[w] {
				continue
			}
			if j.blockOf[w] == nil {
				j.blockOf[w] = map[string]bool{}
			}
			j.blockOf[w][v] = true
		}
	}

	j.stack = j.stack[:len(j.stack)-1]
	return found
}
