package compiler

import (
	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/dm"
)

// Slot is the (offset, length) of one flat variable's cells in the
// shared data arena. Length is 1 for a scalar, or the dimension's
// element count for a single-dimension array (multi-dimensional arrays
// are rejected earlier by DIM004).
type Slot struct {
	Offset int
	Length int
}

// StatefulState is the arena cell reserved for one stateful-builtin call
// site. Length is always 1 and Offset identifies the call site: the
// builtin's running value (and DelayFixed's ring buffer) is kept by the
// VM in Go-side state keyed by Offset, not in the arena. DelayN keeps a
// single running value with no ring buffer.
type StatefulState struct {
	Kind   Opcode
	Offset int
	Length int
}

// Layout is the flat-memory plan for a FlatModel: every variable's cell
// range, the graphical-function table, and the stateful-builtin state
// slots discovered while walking every equation.
type Layout struct {
	Slots   map[string]Slot
	GFs     []*dm.GraphicalFunction
	GFIndex map[string]int // flat ident (of the GF-bearing variable) -> index into GFs
	Total   int
}

// BuildLayout assigns contiguous cell ranges to every variable of flat,
// in FlatModel.Vars order (which is already depth-first over module
// instances, so one module instance's variables occupy one contiguous
// span — the property spec.md's Call(module_slot_base, ...) instruction
// assumes, kept here even though this compiler's codegen resolves module
// references by flattening rather than by a runtime Call).
func BuildLayout(flat *analysis.FlatModel, dims map[string]*dm.Dimension) *Layout {
	lay := &Layout{
		Slots:   make(map[string]Slot, len(flat.Vars)),
		GFIndex: make(map[string]int),
	}
	offset := 0
	for _, v := range flat.Vars {
		length := 1
		if len(v.Dimensions) == 1 {
			if d, ok := dims[dm.Canonical(v.Dimensions[0])]; ok {
				length = d.Len()
			}
		}
		lay.Slots[v.Ident] = Slot{Offset: offset, Length: length}
		offset += length
		if v.GF != nil {
			lay.GFIndex[v.Ident] = len(lay.GFs)
			lay.GFs = append(lay.GFs, v.GF)
		}
	}
	lay.Total = offset
	return lay
}

// Reserve allocates n fresh cells at the end of the arena (used for
// stateful-builtin state, which has no FlatVariable of its own) and
// returns their base offset.
func (lay *Layout) Reserve(n int) int {
	base := lay.Total
	lay.Total += n
	return base
}
