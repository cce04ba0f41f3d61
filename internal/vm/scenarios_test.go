package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/dm"
)

// These mirror the six worked scenarios: one stock/flow pair growing at
// a constant fractional rate, with no inflow other than growth itself.
func buildExponentialGrowthProject(dt float64) *dm.Project {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "P", Ident: "p", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "100"}, Inflows: []string{"growth"}},
			{Name: "growth", Ident: "growth", Kind: dm.KindFlow, Equation: dm.ArrayedEquation{ApplyToAll: "0.1*p"}},
		},
	}
	p := &dm.Project{Name: "growth", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: 0, End: 10, DT: dt, Method: dm.MethodEuler}}
	p.Build()
	return p
}

func TestScenarioExponentialGrowth(t *testing.T) {
	prog := compileProject(t, buildExponentialGrowthProject(0.25))
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 10, DT: 0.25, Method: dm.MethodEuler})
	sim.Init()
	for !sim.Done() {
		sim.Step()
	}
	want := 100 * math.Exp(0.1*10)
	got, ok := sim.Value("p")
	require.True(t, ok)
	require.InEpsilon(t, want, got, 0.02, "P(10) should track 100*e^(0.1*10) within 2%% at dt=0.25")
}

func TestScenarioExponentialGrowthTighterAtSmallerDT(t *testing.T) {
	want := 100 * math.Exp(0.1*10)

	progCoarse := compileProject(t, buildExponentialGrowthProject(0.25))
	simCoarse := NewSim(progCoarse, dm.SimSpecs{Start: 0, End: 10, DT: 0.25, Method: dm.MethodEuler})
	simCoarse.Init()
	for !simCoarse.Done() {
		simCoarse.Step()
	}
	gotCoarse, _ := simCoarse.Value("p")

	progFine := compileProject(t, buildExponentialGrowthProject(0.125))
	simFine := NewSim(progFine, dm.SimSpecs{Start: 0, End: 10, DT: 0.125, Method: dm.MethodEuler})
	simFine.Init()
	for !simFine.Done() {
		simFine.Step()
	}
	gotFine, _ := simFine.Value("p")

	require.Less(t, math.Abs(gotFine-want), math.Abs(gotCoarse-want),
		"halving dt should bring Euler's result closer to the closed form")
}

func buildSIRScenarioProject() *dm.Project {
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
	p := &dm.Project{Name: "sir", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: 0, End: 60, DT: 0.125, Method: dm.MethodEuler}}
	p.Build()
	return p
}

func TestScenarioSIREpidemicConservesPopulationAndPeaksOnce(t *testing.T) {
	prog := compileProject(t, buildSIRScenarioProject())
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 60, DT: 0.125, Method: dm.MethodEuler})
	sim.Init()

	iSeries := []float64{}
	for {
		v, _ := sim.Value("i")
		iSeries = append(iSeries, v)
		if sim.Done() {
			break
		}
		sim.Step()
	}

	s, _ := sim.Value("s")
	i, _ := sim.Value("i")
	r, _ := sim.Value("r")
	require.InDelta(t, 1000.0, s+i+r, 1e-6, "S+I+R must be conserved")

	peakIdx := 0
	for idx, v := range iSeries {
		if v > iSeries[peakIdx] {
			peakIdx = idx
		}
	}
	require.Greater(t, peakIdx, 0, "infection should rise from its initial value before peaking")
	require.Less(t, peakIdx, len(iSeries)-1, "infection should decline after its peak")
	for idx := peakIdx + 1; idx < len(iSeries)-1; idx++ {
		require.LessOrEqual(t, iSeries[idx+1], iSeries[idx]+1e-9, "I should decline monotonically once past its single peak")
	}
	require.Less(t, iSeries[len(iSeries)-1], iSeries[peakIdx], "I should be well below its peak by day 60")
}

func buildGraphicalClampProject(kind dm.GFKind) *dm.Project {
	gf := &dm.GraphicalFunction{
		XScale:  [2]float64{0, 10},
		YScale:  [2]float64{2, 10},
		YPoints: []float64{2, 4, 6, 8, 10},
		Kind:    kind,
	}
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "gf", Ident: "gf", Kind: dm.KindAux, GF: gf, Equation: dm.ArrayedEquation{ApplyToAll: "0"}},
			{Name: "y", Ident: "y", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "LOOKUP(gf, time)"}},
		},
	}
	p := &dm.Project{Name: "gfclamp", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: -1, End: 11, DT: 1, Method: dm.MethodEuler}}
	p.Build()
	return p
}

func TestScenarioGraphicalFunctionClampsAtEndpoints(t *testing.T) {
	prog := compileProject(t, buildGraphicalClampProject(dm.GFContinuous))
	sim := NewSim(prog, dm.SimSpecs{Start: -1, End: 11, DT: 1, Method: dm.MethodEuler})
	sim.Init()

	y, _ := sim.Value("y")
	require.InDelta(t, 2.0, y, 1e-9, "at time=-1, below the gf's x-range, y should clamp to its first y-point")

	for !sim.Done() {
		sim.Step()
	}
	y, _ = sim.Value("y")
	require.InDelta(t, 10.0, y, 1e-9, "at time=11, above the gf's x-range, y should clamp to its last y-point")
}

func TestScenarioGraphicalFunctionExtrapolatesPastEnd(t *testing.T) {
	prog := compileProject(t, buildGraphicalClampProject(dm.GFExtrapolate))
	sim := NewSim(prog, dm.SimSpecs{Start: -1, End: 11, DT: 1, Method: dm.MethodEuler})
	sim.Init()
	for !sim.Done() {
		sim.Step()
	}
	y, _ := sim.Value("y")
	// Points are evenly spaced across [0,10] for 5 y-values, so the last
	// segment runs from x=7.5 (y=8) to x=10 (y=10): slope 0.8/unit.
	require.InDelta(t, 10.8, y, 1e-9, "extrapolate continues the final segment's slope past the table's domain")
}

func buildArraySumProject() *dm.Project {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{
				Name: "x", Ident: "x", Kind: dm.KindAux, Dimensions: []string{"d"},
				Equation: dm.ArrayedEquation{ByElement: map[string]string{"a": "1", "b": "2", "c": "3"}},
			},
			{
				Name: "total", Ident: "total", Kind: dm.KindAux,
				Equation: dm.ArrayedEquation{ApplyToAll: "SUM(x[*])"},
			},
		},
	}
	p := &dm.Project{
		Name:       "arraysum",
		Models:     []*dm.Model{main},
		Dimensions: []*dm.Dimension{{Name: "d", Kind: dm.DimNamed, Elements: []string{"a", "b", "c"}}},
		SimSpecs:   dm.SimSpecs{Start: 0, End: 2, DT: 1, Method: dm.MethodEuler},
	}
	p.Build()
	return p
}

func TestScenarioArraySum(t *testing.T) {
	prog := compileProject(t, buildArraySumProject())
	sim := NewSim(prog, dm.SimSpecs{Start: 0, End: 2, DT: 1, Method: dm.MethodEuler})
	sim.Init()
	for {
		total, ok := sim.Value("total")
		require.True(t, ok)
		require.InDelta(t, 6.0, total, 1e-9, "SUM(x[*]) should equal 1+2+3 at every step")
		if sim.Done() {
			break
		}
		sim.Step()
	}
}

func buildOverrideProject() *dm.Project {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "x", Ident: "x", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "10"}, Inflows: []string{"r"}},
			{Name: "r", Ident: "r", Kind: dm.KindFlow, Equation: dm.ArrayedEquation{ApplyToAll: "1"}},
		},
	}
	p := &dm.Project{Name: "override", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: 0, End: 5, DT: 1, Method: dm.MethodEuler}}
	p.Build()
	return p
}

func TestScenarioOverrideChangesOutcome(t *testing.T) {
	prog := compileProject(t, buildOverrideProject())

	withOverride := NewSim(prog, dm.SimSpecs{Start: 0, End: 5, DT: 1, Method: dm.MethodEuler})
	withOverride.SetOverride("r", 2)
	withOverride.Init()
	for !withOverride.Done() {
		withOverride.Step()
	}
	xOverride, _ := withOverride.Value("x")
	require.InDelta(t, 20.0, xOverride, 1e-9)

	plain := NewSim(prog, dm.SimSpecs{Start: 0, End: 5, DT: 1, Method: dm.MethodEuler})
	plain.Init()
	for !plain.Done() {
		plain.Step()
	}
	xPlain, _ := plain.Value("x")
	require.InDelta(t, 15.0, xPlain, 1e-9)
}
