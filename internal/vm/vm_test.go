package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/compiler"
	"github.com/sd-lang/sdcore/internal/dm"
)

func buildSIRProject(method dm.IntegrationMethod) *dm.Project {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "S", Ident: "s", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "999"}, Outflows: []string{"inf_rate"}},
			{Name: "I", Ident: "i", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "1"}, Inflows: []string{"inf_rate"}, Outflows: []string{"rec_rate"}},
			{Name: "R", Ident: "r", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "0"}, Inflows: []string{"rec_rate"}},
			{Name: "inf_rate", Ident: "inf_rate", Kind: dm.KindFlow, Equation: dm.ArrayedEquation{ApplyToAll: "beta*s*i/n"}},
			{Name: "rec_rate", Ident: "rec_rate", Kind: dm.KindFlow, Equation: dm.ArrayedEquation{ApplyToAll: "gamma*i"}},
			{Name: "beta", Ident: "beta", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "0.3"}},
			{Name: "gamma", Ident: "gamma", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "0.1"}},
			{Name: "n", Ident: "n", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "1000"}},
		},
	}
	p := &dm.Project{
		Name:   "sir",
		Models: []*dm.Model{main},
		SimSpecs: dm.SimSpecs{
			Start: 0, End: 10, DT: 0.125, Method: method,
		},
	}
	p.Build()
	return p
}

func compileProject(t *testing.T, p *dm.Project) *compiler.Program {
	t.Helper()
	st, errs := analysis.Analyze(p)
	require.Empty(t, errs)
	prog, cerrs := compiler.Compile(st)
	require.Empty(t, cerrs)
	return prog
}

func TestSimEulerInfectionDynamics(t *testing.T) {
	prog := compileProject(t, buildSIRProject(dm.MethodEuler))
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 10, DT: 0.125, Method: dm.MethodEuler})
	sim.Init()

	s0, _ := sim.Value("s")
	i0, _ := sim.Value("i")
	require.Equal(t, 999.0, s0)
	require.Equal(t, 1.0, i0)

	for !sim.Done() {
		sim.Step()
	}

	sEnd, _ := sim.Value("s")
	iEnd, _ := sim.Value("i")
	rEnd, _ := sim.Value("r")
	require.Less(t, sEnd, s0, "susceptibles should decline as infection spreads")
	require.Greater(t, rEnd, 0.0, "some individuals should have recovered")
	require.InDelta(t, 1000.0, sEnd+iEnd+rEnd, 1e-6, "total population is conserved")
}

func TestSimRK4MatchesEulerQualitatively(t *testing.T) {
	prog := compileProject(t, buildSIRProject(dm.MethodRK4))
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 10, DT: 0.125, Method: dm.MethodRK4})
	sim.Init()
	for !sim.Done() {
		sim.Step()
	}
	sEnd, _ := sim.Value("s")
	rEnd, _ := sim.Value("r")
	require.Less(t, sEnd, 999.0)
	require.Greater(t, rEnd, 0.0)
}

func TestSimOverrideHoldsAuxConstant(t *testing.T) {
	prog := compileProject(t, buildSIRProject(dm.MethodEuler))
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 5, DT: 0.25, Method: dm.MethodEuler})
	sim.SetOverride("beta", 0)
	sim.Init()
	for !sim.Done() {
		sim.Step()
	}
	// With transmission forced off, no new infections occur: S never moves.
	sEnd, _ := sim.Value("s")
	require.InDelta(t, 999.0, sEnd, 1e-9)
}

func buildDelayProject() *dm.Project {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "input", Ident: "input", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "10"}},
			{Name: "delayed", Ident: "delayed", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "DELAYFIXED(input, 1, 0)"}},
		},
	}
	p := &dm.Project{Name: "delay", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: 0, End: 5, DT: 0.5}}
	p.Build()
	return p
}

func TestSimDelayFixedHoldsThenPassesThrough(t *testing.T) {
	prog := compileProject(t, buildDelayProject())
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 5, DT: 0.5, Method: dm.MethodEuler})
	sim.Init()

	d0, _ := sim.Value("delayed")
	require.Equal(t, 0.0, d0, "before the delay elapses the initial value of 0 should hold")

	for i := 0; i < 2; i++ {
		sim.Step()
	}
	dAfterDelay, _ := sim.Value("delayed")
	require.Equal(t, 10.0, dAfterDelay, "once delay_time/dt steps have passed, input should emerge")
}

func buildGFProject() *dm.Project {
	gf := &dm.GraphicalFunction{
		XScale:  [2]float64{0, 2},
		YScale:  [2]float64{0, 1},
		YPoints: []float64{0, 0.5, 1},
		Kind:    dm.GFContinuous,
	}
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "x", Ident: "x", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "1"}},
			{Name: "effect", Ident: "effect", Kind: dm.KindAux, GF: gf, Equation: dm.ArrayedEquation{ApplyToAll: "0"}},
			{Name: "looked_up", Ident: "looked_up", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "LOOKUP(effect, x)"}},
		},
	}
	p := &dm.Project{Name: "gf", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: 0, End: 1, DT: 1}}
	p.Build()
	return p
}

func TestSimGraphicalFunctionLookup(t *testing.T) {
	prog := compileProject(t, buildGFProject())
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 1, DT: 1})
	sim.Init()
	v, ok := sim.Value("looked_up")
	require.True(t, ok)
	require.InDelta(t, 0.5, v, 1e-9, "x=1 sits at the midpoint of the [0,2] domain")
}
