// Package vm executes a compiler.Program (spec.md §4.4): a single-
// threaded, cooperatively scheduled stack machine over a flat f64 arena,
// advancing one dt at a time with Euler or RK4 integration and recording
// a save-boundary history. It is the runtime half of C4; internal/compiler
// is its static half.
package vm

import (
	"github.com/sd-lang/sdcore/internal/compiler"
	"github.com/sd-lang/sdcore/internal/dm"
)

// Frame is one recorded output row: the simulation time plus a snapshot
// of every flat cell at that moment.
type Frame struct {
	T    float64
	Data []float64
}

// Sim is one running instance of a compiled Program. Program itself is
// immutable and safe to share across many Sims (spec.md §5); all mutable
// state lives here.
type Sim struct {
	Prog *compiler.Program
	Spec dm.SimSpecs

	data []float64
	prev []float64

	t         float64
	dt        float64
	stepIndex int
	history   []Frame

	stateful  map[int]*statefulState
	overrides map[string]float64
}

// NewSim allocates a fresh Sim over prog, ready for Init.
func NewSim(prog *compiler.Program, spec dm.SimSpecs) *Sim {
	return &Sim{
		Prog:      prog,
		Spec:      spec,
		data:      make([]float64, prog.Layout.Total),
		prev:      make([]float64, prog.Layout.Total),
		dt:        spec.DT,
		stateful:  make(map[int]*statefulState),
		overrides: make(map[string]float64),
	}
}

// SetOverride forces ident to value on every subsequent step/init,
// re-applied after normal evaluation each time (spec.md §4.4's override
// mechanism). Works on a whole variable at once; an arrayed variable's
// override broadcasts value to every element.
func (s *Sim) SetOverride(ident string, value float64) {
	s.overrides[ident] = value
}

// ClearOverride removes a previously set override.
func (s *Sim) ClearOverride(ident string) {
	delete(s.overrides, ident)
}

func (s *Sim) applyOverrides() {
	for ident, v := range s.overrides {
		slot, ok := s.Prog.Layout.Slots[ident]
		if !ok {
			continue
		}
		for i := 0; i < slot.Length; i++ {
			s.data[slot.Offset+i] = v
		}
	}
}

// Init runs the init-time program (InitOrder's equations, including
// every stock's initial value) and takes the first history snapshot at
// t = Start.
func (s *Sim) Init() {
	s.t = s.Spec.Start
	s.stepIndex = 0
	env := &evalEnv{data: s.data, prevSrc: s.data}
	for _, vc := range s.Prog.Init {
		s.execVarCode(vc, env)
	}
	copy(s.prev, s.data)
	s.applyOverrides()
	s.pushHistory()
}

// Value returns the current value of a scalar variable (or element 0 of
// an arrayed one).
func (s *Sim) Value(ident string) (float64, bool) {
	slot, ok := s.Prog.Layout.Slots[ident]
	if !ok {
		return 0, false
	}
	return s.data[slot.Offset], true
}

// Elements returns every element of an arrayed variable's current value.
// Distinct from TimeSeries: this reads across a variable's dimension at
// one instant, not across history.
func (s *Sim) Elements(ident string) ([]float64, bool) {
	slot, ok := s.Prog.Layout.Slots[ident]
	if !ok {
		return nil, false
	}
	out := make([]float64, slot.Length)
	copy(out, s.data[slot.Offset:slot.Offset+slot.Length])
	return out, true
}

// TimeSeries returns ident's recorded value at every save-boundary frame
// so far, one entry per Frame in History (spec.md §4.4/§6's sim_get_series).
// ident must be scalar (or a single arrayed element accessed via its
// resolved slot offset); it does not sum or otherwise reduce an array.
func (s *Sim) TimeSeries(ident string) ([]float64, bool) {
	slot, ok := s.Prog.Layout.Slots[ident]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(s.history))
	for i, frame := range s.history {
		out[i] = frame.Data[slot.Offset]
	}
	return out, true
}

// Time is the simulation's current clock value.
func (s *Sim) Time() float64 { return s.t }

// History returns every recorded save-boundary frame so far.
func (s *Sim) History() []Frame { return s.history }

func (s *Sim) pushHistory() {
	snap := make([]float64, len(s.data))
	copy(snap, s.data)
	s.history = append(s.history, Frame{T: s.t, Data: snap})
}

func (s *Sim) onSaveBoundary() bool {
	save := s.Spec.EffectiveSaveStep()
	if save <= 0 {
		return true
	}
	ratio := save / s.dt
	if ratio < 1 {
		ratio = 1
	}
	n := int(ratio + 0.5)
	return n <= 1 || s.stepIndex%n == 0
}

// Step advances the simulation by one dt using the configured
// integration method, then records a frame if this step lands on a save
// boundary.
func (s *Sim) Step() {
	switch s.Spec.Method {
	case dm.MethodRK4:
		s.stepRK4()
	default:
		s.stepEuler()
	}
	s.t += s.dt
	s.stepIndex++
	s.applyOverrides()
	copy(s.prev, s.data)
	if s.onSaveBoundary() {
		s.pushHistory()
	}
}

// Done reports whether the simulation has reached its end time
// (spec.md §4.4's "t >= end_time - dt/2" termination rule, which
// tolerates floating-point drift across many accumulated steps).
func (s *Sim) Done() bool {
	return s.t >= s.Spec.End-s.dt/2
}

// RunToEnd steps the simulation until Done, then returns the recorded
// history.
func (s *Sim) RunToEnd() []Frame {
	for !s.Done() {
		s.Step()
	}
	return s.history
}

// RunTo advances the simulation in dt increments until t reaches target
// (or the simulation ends first), supporting cooperative, cancellable
// long runs the way a caller might drive the VM from a UI loop one
// increment at a time.
func (s *Sim) RunTo(target float64) {
	for !s.Done() && s.t < target-s.dt/2 {
		s.Step()
	}
}
