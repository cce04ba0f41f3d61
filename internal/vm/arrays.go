package vm

import (
	"math"
	"sort"

	"github.com/sd-lang/sdcore/internal/compiler"
)

// arraySource reads the base..base+length cells of an arrayed variable,
// from prev if it is a stock's array (its per-step bytecode never
// touches stock cells directly) or from data otherwise.
func (s *Sim) arraySource(env *evalEnv, base, length int) []float64 {
	src := env.data
	if s.Prog.StockCell[base] {
		src = env.prevSrc
	}
	return src[base : base+length]
}

func (s *Sim) arrayReduce(env *evalEnv, op compiler.Opcode, base, length int) float64 {
	xs := s.arraySource(env, base, length)
	switch op {
	case compiler.OpArraySum:
		var sum float64
		for _, x := range xs {
			sum += x
		}
		return sum
	case compiler.OpArrayMean:
		if length == 0 {
			return math.NaN()
		}
		var sum float64
		for _, x := range xs {
			sum += x
		}
		return sum / float64(length)
	case compiler.OpArrayStddev:
		if length == 0 {
			return math.NaN()
		}
		var sum float64
		for _, x := range xs {
			sum += x
		}
		mean := sum / float64(length)
		var ss float64
		for _, x := range xs {
			d := x - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(length))
	case compiler.OpArrayProd:
		prod := 1.0
		for _, x := range xs {
			prod *= x
		}
		return prod
	case compiler.OpArraySize:
		return float64(length)
	case compiler.OpArrayMin:
		return minSlice(xs)
	case compiler.OpArrayMax:
		return maxSlice(xs)
	}
	return math.NaN()
}

// arrayRank returns the rank-th smallest element (1-based), the
// RANK(array, k) builtin's sort-and-select semantics.
func (s *Sim) arrayRank(env *evalEnv, base, length, rank int) float64 {
	xs := append([]float64(nil), s.arraySource(env, base, length)...)
	sort.Float64s(xs)
	if rank < 1 {
		rank = 1
	}
	if rank > len(xs) {
		rank = len(xs)
	}
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[rank-1]
}
