package dm

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/errors"
)

// Model is a named collection of Variables plus the SimSpecs it should
// be simulated with (nil means "use the owning Project's default").
type Model struct {
	Name      string
	Variables []*Variable
	SimSpecs  *SimSpecs

	byIdent map[string]*Variable
}

// Build indexes Variables by canonical ident for O(1) lookup. Must be
// called after construction or mutation, before Lookup is used.
func (m *Model) Build() {
	m.byIdent = make(map[string]*Variable, len(m.Variables))
	for _, v := range m.Variables {
		m.byIdent[v.Ident] = v
	}
}

// Lookup finds a Variable by canonical or raw name.
func (m *Model) Lookup(name string) (*Variable, bool) {
	if m.byIdent == nil {
		m.Build()
	}
	v, ok := m.byIdent[Canonical(name)]
	return v, ok
}

// ModuleInputs returns the canonical idents of the declared "input
// slots" of m that a parent module instance may bind into, whether or not
// any Module actually binds them. A model's inputs are, by convention,
// its Aux/Stock/Flow variables with no equation of their own, bound
// entirely from the parent; this project treats any variable with an
// empty equation and no GF as a declared input.
func (m *Model) ModuleInputs() []string {
	var out []string
	for _, v := range m.Variables {
		if v.Kind == KindModule {
			continue
		}
		if v.Equation.ApplyToAll == "" && len(v.Equation.ByElement) == 0 && v.GF == nil {
			out = append(out, v.Ident)
		}
	}
	return out
}

// ValidateStructure checks the Model-local invariants of spec.md §3 that
// don't require cross-model or dimension information: stock in/outflow
// references resolve to Flow variables, a Flow is claimed by at most one
// Stock, variable idents are unique, and array equations are either
// apply-to-all or fully and non-redundantly specified once dimension
// sizes are known (checked by internal/analysis, not here).
func (m *Model) ValidateStructure() []*errors.Report {
	var out []*errors.Report
	seen := make(map[string]bool, len(m.Variables))
	flowOwner := make(map[string]string) // flow ident -> owning stock ident

	for _, v := range m.Variables {
		if seen[v.Ident] {
			out = append(out, errors.New(errors.REF004, "analyze",
				fmt.Sprintf("duplicate variable %q in model %q", v.Name, m.Name)).WithVar(m.Name, v.Ident))
			continue
		}
		seen[v.Ident] = true
	}

	for _, v := range m.Variables {
		if v.Kind != KindStock {
			continue
		}
		for _, flows := range [][]string{v.Inflows, v.Outflows} {
			for _, f := range flows {
				fv, ok := m.Lookup(f)
				if !ok {
					out = append(out, errors.New(errors.REF001, "analyze",
						fmt.Sprintf("stock %q references unknown flow %q", v.Name, f)).WithVar(m.Name, v.Ident))
					continue
				}
				if fv.Kind != KindFlow {
					out = append(out, errors.New(errors.REF001, "analyze",
						fmt.Sprintf("stock %q references %q, which is not a flow", v.Name, f)).WithVar(m.Name, v.Ident))
					continue
				}
				if owner, taken := flowOwner[fv.Ident]; taken && owner != v.Ident {
					out = append(out, errors.New(errors.REF004, "analyze",
						fmt.Sprintf("flow %q is claimed by more than one stock (%q and %q)", f, owner, v.Ident)).WithVar(m.Name, fv.Ident))
					continue
				}
				flowOwner[fv.Ident] = v.Ident
			}
		}
	}
	return out
}
