package vm

import "github.com/sd-lang/sdcore/internal/compiler"

// statefulState is the Go-side bookkeeping for one desugared stateful
// builtin call site, keyed by its reserved arena offset (compiler.
// StatefulState.Offset). Only SmoothN/DelayN/Trend/Forecast/SampleIfTrue
// need a running value; DelayFixed additionally needs a ring buffer —
// this is VM-internal state behind the arena, the same relationship the
// VM already has to its recorded history.
//
// Argument order convention (spec.md's builtin arity table records
// counts, not names; this project fixes the order): the first argument
// is always the value being tracked; any remaining arguments are
// parameters (time constants, horizons, initial values).
type statefulState struct {
	initialized bool
	value       float64

	ring     []float64
	ringNext int
}

func (s *Sim) state(offset int) *statefulState {
	st, ok := s.stateful[offset]
	if !ok {
		st = &statefulState{}
		s.stateful[offset] = st
	}
	return st
}

func (s *Sim) evalStateful(op compiler.Opcode, offset int, args []float64) float64 {
	st := s.state(offset)
	switch op {
	case compiler.OpSmoothN:
		return s.smooth(st, args)
	case compiler.OpDelayN:
		return s.smooth(st, args) // single-stage exponential delay, order collapsed (internal/analysis.checkStatefulOrder warns on this)
	case compiler.OpDelayFixed:
		return s.delayFixed(st, args)
	case compiler.OpTrend:
		return s.trend(st, args)
	case compiler.OpForecast:
		return s.forecast(st, args)
	case compiler.OpSampleIfTrue:
		return s.sampleIfTrue(st, args)
	case compiler.OpPreviousSelf:
		return s.previousSelf(args)
	}
	return 0
}

// smooth is a first-order exponential smooth: value += dt/time*(input-value).
// SMOOTHN's optional order argument is accepted but not staged — every
// order smooths at the same single-stage rate rather than N cascaded
// sub-delays. internal/analysis.checkStatefulOrder reports a SIM004
// warning wherever a caller passes an order other than 1, so this
// simplification surfaces as a diagnostic instead of only a comment.
func (s *Sim) smooth(st *statefulState, args []float64) float64 {
	input, time := args[0], args[1]
	if time <= 0 {
		time = s.dt
	}
	if !st.initialized {
		st.value = input
		st.initialized = true
		return st.value
	}
	st.value += s.dt / time * (input - st.value)
	return st.value
}

// delayFixed is a true fixed-length delay via a ring buffer sized to
// round(delay_time/dt) at first use.
func (s *Sim) delayFixed(st *statefulState, args []float64) float64 {
	input, delayTime := args[0], args[1]
	initial := input
	if len(args) > 2 {
		initial = args[2]
	}
	if !st.initialized {
		n := int(delayTime/s.dt + 0.5)
		if n < 1 {
			n = 1
		}
		st.ring = make([]float64, n)
		for i := range st.ring {
			st.ring[i] = initial
		}
		st.ringNext = 0
		st.initialized = true
	}
	out := st.ring[st.ringNext]
	st.ring[st.ringNext] = input
	st.ringNext = (st.ringNext + 1) % len(st.ring)
	return out
}

// trend returns the fractional rate of change of input over avgTime,
// computed against an internally smoothed average of input.
func (s *Sim) trend(st *statefulState, args []float64) float64 {
	input, avgTime := args[0], args[1]
	if avgTime <= 0 {
		avgTime = s.dt
	}
	if !st.initialized {
		st.value = input
		st.initialized = true
		return 0
	}
	smoothed := st.value + s.dt/avgTime*(input-st.value)
	st.value = smoothed
	if smoothed == 0 {
		return 0
	}
	return (input - smoothed) / (avgTime * smoothed)
}

// forecast extrapolates input horizon time units ahead using the same
// trend estimate as TREND.
func (s *Sim) forecast(st *statefulState, args []float64) float64 {
	input, avgTime, horizon := args[0], args[1], args[2]
	rate := s.trend(st, []float64{input, avgTime})
	return input * (1 + rate*horizon)
}

// sampleIfTrue holds input's last value sampled while condition was
// true (args[0]=input, args[1]=condition), per this project's chosen
// argument ordering (see statefulState's doc comment).
func (s *Sim) sampleIfTrue(st *statefulState, args []float64) float64 {
	input, cond := args[0], args[1]
	if !st.initialized {
		st.value = input
		st.initialized = true
	}
	if cond != 0 {
		st.value = input
	}
	return st.value
}

// previousSelf returns args[0] as compiled (already read against the
// prev array), falling back to an optional initial value only on the
// very first step, when there is no real previous value yet.
func (s *Sim) previousSelf(args []float64) float64 {
	if s.stepIndex == 0 && len(args) > 1 {
		return args[1]
	}
	return args[0]
}
