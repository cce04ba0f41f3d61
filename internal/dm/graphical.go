package dm

// GFKind selects the interpolation/extrapolation behavior of a
// GraphicalFunction outside and between its defined points, per
// spec.md §3 and §4.3 "Lookup semantics".
type GFKind int

const (
	GFContinuous GFKind = iota
	GFDiscrete
	GFExtrapolate
)

// GraphicalFunction is a piecewise lookup table used as a univariate
// function: an x-scale, a y-scale, an ordered sequence of y-points, and
// an optional explicit x-points sequence. When XPoints is empty, x
// values are evenly spaced across XScale.
//
// Its field set mirrors the DYNAMO reference implementation's Table
// (other_examples/.../bfix-dynamo__src-dynamo-model.go NewTable), which
// stores raw y-data plus precomputed Newton-polynomial divided-difference
// coefficients; this project keeps the raw points as the primary
// representation (used by the default piecewise-linear evaluator in
// internal/vm) and exposes the Newton-polynomial coefficients as an
// alternate strategy (NewtonCoeffs, §C.1 of SPEC_FULL.md).
type GraphicalFunction struct {
	XScale [2]float64
	YScale [2]float64
	YPoints []float64
	XPoints []float64 // optional explicit x-points; same length as YPoints
	Kind    GFKind
}

// EffectiveXPoints returns the x-coordinate of each y-point, computing
// an even spacing across XScale when XPoints was not supplied.
func (g *GraphicalFunction) EffectiveXPoints() []float64 {
	if len(g.XPoints) > 0 {
		return g.XPoints
	}
	n := len(g.YPoints)
	xs := make([]float64, n)
	if n == 1 {
		xs[0] = g.XScale[0]
		return xs
	}
	step := (g.XScale[1] - g.XScale[0]) / float64(n-1)
	for i := range xs {
		xs[i] = g.XScale[0] + step*float64(i)
	}
	return xs
}

// NewtonCoeffs computes the divided-difference coefficients for
// Newton-polynomial interpolation over evenly spaced y-points, grounded
// directly in the DYNAMO reference's recursive a_mj formula. Valid only
// when XPoints is empty (points are evenly spaced); callers needing the
// explicit-x-points form must use the default piecewise evaluator.
func (g *GraphicalFunction) NewtonCoeffs() []float64 {
	n := len(g.YPoints)
	if n == 0 {
		return nil
	}
	step := (g.XScale[1] - g.XScale[0]) / float64(maxInt(n-1, 1))
	var a func(m, j int) float64
	memo := make(map[[2]int]float64)
	a = func(m, j int) float64 {
		if m == j {
			return g.YPoints[m]
		}
		key := [2]int{m, j}
		if v, ok := memo[key]; ok {
			return v
		}
		v := (a(m+1, j) - a(m, j-1)) / (float64(j-m) * step)
		memo[key] = v
		return v
	}
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		out[j] = a(0, j)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
