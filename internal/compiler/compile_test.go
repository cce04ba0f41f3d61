package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sd-lang/sdcore/internal/analysis"
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

func TestCompileSIRModel(t *testing.T) {
	st, errs := analysis.Analyze(buildSIRProject())
	require.Empty(t, errs)

	prog, cerrs := Compile(st)
	require.Empty(t, cerrs)
	require.NotNil(t, prog)

	require.Len(t, prog.Stocks, 3, "S, I, R")
	require.Len(t, prog.Init, 8, "one init VarCode per variable")
	// Step excludes the 3 stocks: inf_rate, rec_rate, beta, gamma, n.
	require.Len(t, prog.Step, 5)

	s := prog.Layout.Slots["s"]
	require.True(t, prog.StockCell[s.Offset])
	beta := prog.Layout.Slots["beta"]
	require.False(t, prog.StockCell[beta.Offset])

	var sFlow *FlowRefs
	for i := range prog.Stocks {
		if prog.Stocks[i].StockOffset == s.Offset {
			sFlow = &prog.Stocks[i]
		}
	}
	require.NotNil(t, sFlow)
	require.Empty(t, sFlow.Inflows)
	require.Len(t, sFlow.Outflows, 1)
}

func buildArrayedProject() *dm.Project {
	main := &dm.Model{
		Name: "main",
		Variables: []*dm.Variable{
			{
				Name: "capacity", Ident: "capacity", Kind: dm.KindAux, Dimensions: []string{"region"},
				Equation: dm.ArrayedEquation{ApplyToAll: "100"},
			},
			{
				Name: "load", Ident: "load", Kind: dm.KindAux, Dimensions: []string{"region"},
				Equation: dm.ArrayedEquation{ApplyToAll: "capacity[region]*0.5"},
			},
			{
				Name: "total_load", Ident: "total_load", Kind: dm.KindAux,
				Equation: dm.ArrayedEquation{ApplyToAll: "SUM(load[region!])"},
			},
		},
	}
	p := &dm.Project{
		Name:       "regions",
		Models:     []*dm.Model{main},
		Dimensions: []*dm.Dimension{{Name: "region", Kind: dm.DimNamed, Elements: []string{"north", "south"}}},
	}
	p.Build()
	return p
}

func TestCompileArrayedVariable(t *testing.T) {
	st, errs := analysis.Analyze(buildArrayedProject())
	require.Empty(t, errs)

	prog, cerrs := Compile(st)
	require.Empty(t, cerrs)

	capSlot := prog.Layout.Slots["capacity"]
	require.Equal(t, 2, capSlot.Length)

	var loadCode *VarCode
	for i := range prog.Step {
		if prog.Step[i].Ident == "load" {
			loadCode = &prog.Step[i]
		}
	}
	require.NotNil(t, loadCode)
	require.True(t, loadCode.Loop)
	require.Equal(t, 2, loadCode.Length)

	var found bool
	for _, instr := range loadCode.Code {
		if instr.Op == OpLoadElem && instr.A == capSlot.Offset {
			found = true
		}
	}
	require.True(t, found, "load[region] should read capacity's own element via the shared loop index")
}
