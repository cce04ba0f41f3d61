package compiler

// VarCode is the compiled bytecode for one equation of one flat
// variable: either the whole-variable apply-to-all form (Loop=true,
// executed once per element with the VM's elemIndex register stepping
// 0..Length-1 and a trailing OpStoreElem), or a single scalar
// computation (Loop=false: a plain scalar variable, or one explicit
// by-element equation, each ending in a fixed-offset OpStoreOff).
type VarCode struct {
	Ident  string
	Key    string // "" (apply-to-all/scalar/init), or the ByElement subscript key
	Code   []Instr
	Loop   bool
	Length int
}

// FlowRefs is a stock's resolved integration inputs: the flat offsets of
// every bound inflow/outflow variable, used by the VM's generic
// "new = prev + dt*(ΣI-ΣO)" step (spec.md §4.4) instead of compiled
// bytecode, since that arithmetic is the same fixed shape for every
// stock regardless of model.
type FlowRefs struct {
	StockOffset int
	Length      int
	Inflows     []int
	Outflows    []int
	NonNegative bool
}

// Program is the immutable, shareable compiled form of one model
// (spec.md §4.3/§5): the flat memory layout, the init-time and per-step
// instruction streams in dependency order, the stock integration table,
// the graphical-function table, and the stateful-builtin state slots
// materialized while compiling.
type Program struct {
	Layout    *Layout
	Init      []VarCode
	Step      []VarCode
	Stocks    []FlowRefs
	StockCell []bool // Total-length bitmap: true at any cell belonging to a stock
	Stateful  []StatefulState
}
