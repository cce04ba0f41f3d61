package dm

import (
	"fmt"

	"github.com/sd-lang/sdcore/internal/errors"
)

// Project is a named bundle of Models, Dimensions, and Units, plus
// default SimSpecs. Exactly one Model must be named "main".
type Project struct {
	Name       string
	Models     []*Model
	Dimensions []*Dimension
	Units      []*Unit
	SimSpecs   SimSpecs

	// Views carries opaque editor/diagram-layout metadata keyed by view
	// id (internal/patch's upsert_view/delete_view ops write here). The
	// core never interprets this data — diagram rendering is an external
	// collaborator per spec.md §1 — it is only stored and round-tripped.
	Views map[string]map[string]any

	byModel map[string]*Model
	byDim   map[string]*Dimension
	byUnit  map[string]*Unit
}

const MainModelName = "main"

// Build indexes Models/Dimensions/Units by canonical name and builds
// each Dimension's element index. Call after construction, after
// deserializing, and after any patch mutation.
func (p *Project) Build() {
	p.byModel = make(map[string]*Model, len(p.Models))
	for _, m := range p.Models {
		m.Build()
		p.byModel[Canonical(m.Name)] = m
	}
	p.byDim = make(map[string]*Dimension, len(p.Dimensions))
	for _, d := range p.Dimensions {
		d.Build()
		p.byDim[Canonical(d.Name)] = d
	}
	p.byUnit = make(map[string]*Unit, len(p.Units))
	for _, u := range p.Units {
		p.byUnit[Canonical(u.Name)] = u
	}
}

func (p *Project) Model(name string) (*Model, bool) {
	if p.byModel == nil {
		p.Build()
	}
	m, ok := p.byModel[Canonical(name)]
	return m, ok
}

func (p *Project) MainModel() (*Model, bool) {
	return p.Model(MainModelName)
}

func (p *Project) Dimension(name string) (*Dimension, bool) {
	if p.byDim == nil {
		p.Build()
	}
	d, ok := p.byDim[Canonical(name)]
	return d, ok
}

func (p *Project) Unit(name string) (*Unit, bool) {
	if p.byUnit == nil {
		p.Build()
	}
	u, ok := p.byUnit[Canonical(name)]
	return u, ok
}

// ValidateStructure checks the Project-level invariants of spec.md §3
// that ValidateStructure on each Model cannot see by itself: exactly one
// main model, unique model/dimension/unit names, dimension element
// uniqueness, and module-reference acyclicity.
func (p *Project) ValidateStructure() []*errors.Report {
	if p.byModel == nil {
		p.Build()
	}
	var out []*errors.Report

	if _, ok := p.MainModel(); !ok {
		out = append(out, errors.New(errors.REF005, "analyze", "project has no model named \"main\""))
	}

	seenModel := make(map[string]bool)
	for _, m := range p.Models {
		c := Canonical(m.Name)
		if seenModel[c] {
			out = append(out, errors.New(errors.REF004, "analyze", fmt.Sprintf("duplicate model name %q", m.Name)))
		}
		seenModel[c] = true
		out = append(out, m.ValidateStructure()...)
	}

	seenDim := make(map[string]bool)
	for _, d := range p.Dimensions {
		c := Canonical(d.Name)
		if seenDim[c] {
			out = append(out, errors.New(errors.REF006, "analyze", fmt.Sprintf("duplicate dimension name %q", d.Name)))
		}
		seenDim[c] = true
		if d.HasDuplicateElements() {
			out = append(out, errors.New(errors.REF006, "analyze", fmt.Sprintf("dimension %q has duplicate element names", d.Name)))
		}
		if d.MapsTo != "" {
			target, ok := p.Dimension(d.MapsTo)
			if !ok {
				out = append(out, errors.New(errors.REF006, "analyze", fmt.Sprintf("dimension %q maps to unknown dimension %q", d.Name, d.MapsTo)))
			} else if target.Len() != d.Len() {
				out = append(out, errors.New(errors.DIM001, "analyze", fmt.Sprintf("dimension %q cannot map 1:1 to %q: sizes differ (%d vs %d)", d.Name, d.MapsTo, d.Len(), target.Len())))
			}
		}
	}

	out = append(out, p.checkModuleAcyclicity()...)
	return out
}

// checkModuleAcyclicity runs a DFS over the module-reference graph (one
// node per Model, one edge per Module-kind variable's ModelName) and
// reports a GPH001 if any Model directly or transitively contains
// itself, per spec.md §3's module invariant.
func (p *Project) checkModuleAcyclicity() []*errors.Report {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.Models))
	var out []*errors.Report

	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		c := Canonical(name)
		if color[c] == gray {
			out = append(out, errors.New(errors.GPH001, "analyze",
				fmt.Sprintf("module reference cycle: %v", append(path, name))))
			return true
		}
		if color[c] == black {
			return false
		}
		color[c] = gray
		m, ok := p.Model(name)
		if ok {
			for _, v := range m.Variables {
				if v.Kind == KindModule {
					if visit(v.ModelName, append(path, name)) {
						color[c] = black
						return true
					}
				}
			}
		}
		color[c] = black
		return false
	}

	for _, m := range p.Models {
		if color[Canonical(m.Name)] == white {
			visit(m.Name, nil)
		}
	}
	return out
}
