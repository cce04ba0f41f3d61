package dm

// VarKind tags which of the four Variable shapes a Variable carries.
// The kind is authoritative — spec.md §4.2 step 2 is explicit that the
// static analyzer classifies a variable from this tag and never infers
// stock-ness from equation shape.
type VarKind int

const (
	KindStock VarKind = iota
	KindFlow
	KindAux
	KindModule
)

func (k VarKind) String() string {
	switch k {
	case KindStock:
		return "stock"
	case KindFlow:
		return "flow"
	case KindAux:
		return "aux"
	case KindModule:
		return "module"
	}
	return "unknown"
}

// ArrayedEquation is either a single apply-to-all equation, or a set of
// element-specific equations keyed by the canonical subscript tuple
// ("a,b" joined by commas in dimension order).
type ArrayedEquation struct {
	ApplyToAll string            // non-empty when this variable has one equation for every element
	ByElement  map[string]string // subscript-tuple key -> equation text, used otherwise
}

// IsApplyToAll reports whether a single equation covers every element.
func (e ArrayedEquation) IsApplyToAll() bool {
	return e.ApplyToAll != ""
}

// ModuleBinding connects one input of a Module-kind variable's child
// model to a value produced by the parent model.
type ModuleBinding struct {
	Src string // parent-model variable (or further-nested module output)
	Dst string // child-model declared input name
}

// Variable is one named element of a Model: a Stock, Flow, Aux, or
// Module reference. Exactly one of the per-kind payload fields below is
// meaningful, selected by Kind.
type Variable struct {
	Name  string // human-readable, as authored
	Ident string // canonical form, unique within the owning Model
	Kind  VarKind

	// Stock / Flow / Aux
	Equation        ArrayedEquation
	InitialEq       ArrayedEquation // Aux-only: separate init-time equation
	GF              *GraphicalFunction
	NonNegative     bool
	Dimensions      []string // dimension names, in subscript order; empty => scalar

	// Stock-only
	Inflows  []string // canonical Flow idents
	Outflows []string

	// Module-only
	ModelName string
	Bindings  []ModuleBinding
}

// IsArrayed reports whether this variable has one or more dimensions.
func (v *Variable) IsArrayed() bool {
	return len(v.Dimensions) > 0
}
