package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/dm"
)

func buildSIRProject() *dm.Project {
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
	p := &dm.Project{Name: "sir", Models: []*dm.Model{main}, SimSpecs: dm.SimSpecs{Start: 0, End: 60, DT: 0.125}}
	p.Build()
	return p
}

func indexOf(order []string, ident string) int {
	for i, v := range order {
		if v == ident {
			return i
		}
	}
	return -1
}

func TestAnalyzeSIRModel(t *testing.T) {
	p := buildSIRProject()
	st, errs := Analyze(p)
	require.Empty(t, errs, "expected no analysis errors, got %+v", errs)
	require.NotNil(t, st)

	order := st.Order
	require.Less(t, indexOf(order, "beta"), indexOf(order, "inf_rate"))
	require.Less(t, indexOf(order, "n"), indexOf(order, "inf_rate"))
	require.Less(t, indexOf(order, "gamma"), indexOf(order, "rec_rate"))

	// Stocks are sinks in the step graph: nothing needs to be computed
	// "after" them within one step, since their value already exists at
	// the start of it.
	require.Empty(t, st.StepGraph.Successors("s"))
	require.Empty(t, st.StepGraph.Successors("i"))
	require.Empty(t, st.StepGraph.Successors("r"))
}

func TestAnalyzeDetectsAlgebraicCycle(t *testing.T) {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "a", Ident: "a", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "b+1"}},
			{Name: "b", Ident: "b", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "a+1"}},
		},
	}
	p := &dm.Project{Name: "cyc", Models: []*dm.Model{main}}
	p.Build()

	_, errs := Analyze(p)
	found := false
	for _, r := range errs {
		if r.Code == "GPH001" {
			found = true
		}
	}
	require.True(t, found, "expected a GPH001 circular dependency report, got %+v", errs)
}

func TestStatefulBuiltinDoesNotCountAsCycle(t *testing.T) {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "x", Ident: "x", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "SMOOTHN(y, 5)"}},
			{Name: "y", Ident: "y", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "x*2"}},
		},
	}
	p := &dm.Project{Name: "smoothed", Models: []*dm.Model{main}}
	p.Build()

	_, errs := Analyze(p)
	for _, r := range errs {
		require.NotEqual(t, "GPH001", r.Code, "SMOOTHN's lagged argument should not create a same-step cycle")
	}
}

func TestStatefulOrderOtherThanOneWarns(t *testing.T) {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "x", Ident: "x", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "SMOOTHN(y, 5, 3)"}},
			{Name: "y", Ident: "y", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "1"}},
		},
	}
	p := &dm.Project{Name: "smoothed3", Models: []*dm.Model{main}}
	p.Build()

	_, errs := Analyze(p)
	found := false
	for _, r := range errs {
		if r.Code == "SIM004" {
			found = true
		}
	}
	require.True(t, found, "expected a SIM004 warning for SMOOTHN's order=3, got %+v", errs)
}

func TestStatefulOrderOneDoesNotWarn(t *testing.T) {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "x", Ident: "x", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "SMOOTHN(y, 5, 1)"}},
			{Name: "y", Ident: "y", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "1"}},
		},
	}
	p := &dm.Project{Name: "smoothed1", Models: []*dm.Model{main}}
	p.Build()

	_, errs := Analyze(p)
	for _, r := range errs {
		require.NotEqual(t, "SIM004", r.Code, "order=1 is exactly what the single-stage collapse implements")
	}
}

func TestFlattenModule(t *testing.T) {
	sub := &dm.Model{
		Name: "reservoir",
		Variables: []*dm.Variable{
			{Name: "inflow", Ident: "inflow", Kind: dm.KindAux}, // declared input: no equation
			{Name: "level", Ident: "level", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "0"}, Inflows: []string{"fill"}},
			{Name: "fill", Ident: "fill", Kind: dm.KindFlow, Equation: dm.ArrayedEquation{ApplyToAll: "inflow"}},
		},
	}
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "source", Ident: "source", Kind: dm.KindAux, Equation: dm.ArrayedEquation{ApplyToAll: "5"}},
			{
				Name: "tank", Ident: "tank", Kind: dm.KindModule, ModelName: "reservoir",
				Bindings: []dm.ModuleBinding{{Src: "source", Dst: "inflow"}},
			},
		},
	}
	p := &dm.Project{Name: "p", Models: []*dm.Model{main, sub}}
	p.Build()

	flat, errs := Flatten(p)
	require.Empty(t, errs, "expected no flatten errors, got %+v", errs)
	require.NotNil(t, flat)

	_, ok := flat.Lookup("tank.level")
	require.True(t, ok)
	fill, ok := flat.Lookup("tank.fill")
	require.True(t, ok)
	require.Equal(t, "source", fill.Eqns[""].String(), "the module's declared input should resolve to its bound parent-scope source")
}

func TestFlattenReportsUnboundInput(t *testing.T) {
	sub := &dm.Model{
		Name: "reservoir",
		Variables: []*dm.Variable{
			{Name: "inflow", Ident: "inflow", Kind: dm.KindAux},
			{Name: "level", Ident: "level", Kind: dm.KindStock, Equation: dm.ArrayedEquation{ApplyToAll: "inflow"}},
		},
	}
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{Name: "tank", Ident: "tank", Kind: dm.KindModule, ModelName: "reservoir"},
		},
	}
	p := &dm.Project{Name: "p", Models: []*dm.Model{main, sub}}
	p.Build()

	_, errs := Flatten(p)
	found := false
	for _, r := range errs {
		if r.Code == "REF003" {
			found = true
		}
	}
	require.True(t, found, "expected a REF003 unbound-input report, got %+v", errs)
}
