package vm

import "github.com/sd-lang/sdcore/internal/dm"

// pulse returns height over [start, start+width) and 0 elsewhere, with
// width defaulting to one dt (a single-step impulse) when omitted —
// the common STEP/PULSE time-shape builtins of SD modeling languages.
func (s *Sim) pulse(args []float64) float64 {
	height, start := args[0], args[1]
	width := s.dt
	if len(args) > 2 && args[2] > 0 {
		width = args[2]
	}
	if s.t >= start && s.t < start+width {
		return height
	}
	return 0
}

func (s *Sim) stepFn(args []float64) float64 {
	height, start := args[0], args[1]
	if s.t >= start {
		return height
	}
	return 0
}

// ramp returns 0 before start, slope*(t-start) between start and end
// (or indefinitely if end is omitted), and holds its end-time value
// thereafter.
func (s *Sim) ramp(args []float64) float64 {
	slope, start := args[0], args[1]
	if s.t < start {
		return 0
	}
	if len(args) > 2 {
		end := args[2]
		if s.t > end {
			return slope * (end - start)
		}
	}
	return slope * (s.t - start)
}

// lookupGF implements spec.md §4.4's three lookup modes: continuous
// (linear interpolation, clamped at the ends), discrete (step function,
// clamped), and extrapolate (linear interpolation inside the range,
// linear extrapolation from the end segment's slope outside it).
func lookupGF(gf *dm.GraphicalFunction, x float64) float64 {
	xs := gf.EffectiveXPoints()
	ys := gf.YPoints
	n := len(ys)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return ys[0]
	}
	if x <= xs[0] {
		if gf.Kind == dm.GFExtrapolate {
			slope := (ys[1] - ys[0]) / (xs[1] - xs[0])
			return ys[0] + slope*(x-xs[0])
		}
		return ys[0]
	}
	if x >= xs[n-1] {
		if gf.Kind == dm.GFExtrapolate {
			slope := (ys[n-1] - ys[n-2]) / (xs[n-1] - xs[n-2])
			return ys[n-1] + slope*(x-xs[n-1])
		}
		return ys[n-1]
	}
	for i := 0; i < n-1; i++ {
		if x >= xs[i] && x <= xs[i+1] {
			if gf.Kind == dm.GFDiscrete {
				return ys[i]
			}
			frac := (x - xs[i]) / (xs[i+1] - xs[i])
			return ys[i] + frac*(ys[i+1]-ys[i])
		}
	}
	return ys[n-1]
}
