package compiler

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sd-lang/sdcore/internal/analysis"
	"github.com/sd-lang/sdcore/internal/ast"
	"github.com/sd-lang/sdcore/internal/dm"
	"github.com/sd-lang/sdcore/internal/errors"
)

// statefulOpcode maps a stateful-builtin name to the opcode that reads
// and advances its persisted state slot.
var statefulOpcode = map[string]Opcode{
	"SMOOTHN":      OpSmoothN,
	"DELAYN":       OpDelayN,
	"DELAYFIXED":   OpDelayFixed,
	"TREND":        OpTrend,
	"FORECAST":     OpForecast,
	"SAMPLEIFTRUE": OpSampleIfTrue,
	"PREVIOUS":     OpPreviousSelf,
}

// unaryMathOpcode maps a single-argument math/trig builtin to its opcode.
var unaryMathOpcode = map[string]Opcode{
	"ABS": OpAbs, "EXP": OpExp, "LN": OpLn, "LOG10": OpLog10, "SQRT": OpSqrt,
	"SIN": OpSin, "COS": OpCos, "TAN": OpTan,
	"ARCSIN": OpArcsin, "ARCCOS": OpArccos, "ARCTAN": OpArctan,
	"INTEGER": OpInteger,
}

// Compiler lowers one analysis.SymbolTable into a Program. Its
// expression-walking codegen (compileExpr/compileCall, one case per AST
// node kind, emitting through Builder) follows the shape of
// ATSOTECK-rage's compileExpr/compileCall in compiler_exprs.go; the
// domain-specific pieces (flat-memory addressing, stateful-builtin state,
// stock integration, graphical-function lookup) are new, grounded
// directly on spec.md §4.3.
type Compiler struct {
	st   *analysis.SymbolTable
	lay  *Layout
	errs []*errors.Report
	stfl []StatefulState
}

// Compile produces the bytecode Program for a fully analyzed project.
// Callers should check the returned errors for a NotSimulatable verdict
// before handing the Program to internal/vm.
func Compile(st *analysis.SymbolTable) (*Program, []*errors.Report) {
	c := &Compiler{st: st, lay: BuildLayout(st.Flat, st.Dims)}

	prog := &Program{Layout: c.lay}

	for _, ident := range st.InitOrder {
		fv, ok := st.Flat.Lookup(ident)
		if !ok {
			continue
		}
		prog.Init = append(prog.Init, c.compileVarEqns(fv)...)
		if fv.InitEq != nil {
			prog.Init = append(prog.Init, c.compileOne(fv, "@init", fv.InitEq))
		}
	}

	for _, ident := range st.Order {
		fv, ok := st.Flat.Lookup(ident)
		if !ok || fv.Kind == dm.KindStock {
			continue
		}
		prog.Step = append(prog.Step, c.compileVarEqns(fv)...)
	}

	for _, fv := range st.Flat.Vars {
		if fv.Kind != dm.KindStock {
			continue
		}
		slot := c.lay.Slots[fv.Ident]
		fr := FlowRefs{StockOffset: slot.Offset, Length: slot.Length, NonNegative: fv.NonNegative}
		for _, in := range fv.Inflows {
			if s, ok := c.lay.Slots[in]; ok {
				fr.Inflows = append(fr.Inflows, s.Offset)
			}
		}
		for _, out := range fv.Outflows {
			if s, ok := c.lay.Slots[out]; ok {
				fr.Outflows = append(fr.Outflows, s.Offset)
			}
		}
		prog.Stocks = append(prog.Stocks, fr)
	}

	prog.StockCell = make([]bool, c.lay.Total)
	for _, fr := range prog.Stocks {
		for i := 0; i < fr.Length; i++ {
			prog.StockCell[fr.StockOffset+i] = true
		}
	}
	prog.Stateful = c.stfl

	return prog, c.errs
}

// compileVarEqns compiles every (key, equation) pair of fv's Eqns, in
// sorted key order for deterministic output.
func (c *Compiler) compileVarEqns(fv *analysis.FlatVariable) []VarCode {
	keys := make([]string, 0, len(fv.Eqns))
	for k := range fv.Eqns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []VarCode
	for _, k := range keys {
		out = append(out, c.compileOne(fv, k, fv.Eqns[k]))
	}
	return out
}

func (c *Compiler) compileOne(fv *analysis.FlatVariable, key string, e ast.Expr0) VarCode {
	b := &Builder{}
	loop := len(fv.Dimensions) == 1 && key == "" || (key == "@init" && len(fv.Dimensions) == 1)
	c.compileExpr(e, b, false)

	slot := c.lay.Slots[fv.Ident]
	if loop {
		b.emitA(OpStoreElem, slot.Offset)
		return VarCode{Ident: fv.Ident, Key: key, Code: b.Code(), Loop: true, Length: slot.Length}
	}

	offset := slot.Offset
	if len(fv.Dimensions) == 1 {
		dim := c.st.Dims[dm.Canonical(fv.Dimensions[0])]
		offset += elementIndex(dim, key)
	}
	b.emitA(OpStoreOff, offset)
	return VarCode{Ident: fv.Ident, Key: key, Code: b.Code(), Loop: false, Length: 1}
}

func elementIndex(dim *dm.Dimension, key string) int {
	if dim == nil || key == "" {
		return 0
	}
	if dim.Kind == dm.DimIndexed {
		if n, err := strconv.Atoi(key); err == nil {
			return n
		}
		return 0
	}
	if idx := dim.IndexOf(key); idx >= 0 {
		return idx
	}
	return 0
}

func (c *Compiler) compileExpr(e ast.Expr0, b *Builder, forcePrev bool) {
	switch x := e.(type) {
	case *ast.ConstExpr:
		b.emitConst(x.Value)
	case *ast.VarExpr:
		c.loadIdent(x.Ident, b, forcePrev)
	case *ast.SubscriptExpr:
		c.loadSubscript(x, b, forcePrev)
	case *ast.UnaryExpr:
		c.compileExpr(x.X, b, forcePrev)
		switch x.Op {
		case ast.UnaryNeg:
			b.emit(OpNeg)
		case ast.UnaryNot:
			b.emit(OpNot)
		}
	case *ast.BinaryExpr:
		c.compileBinary(x, b, forcePrev)
	case *ast.IfExpr:
		c.compileExpr(x.Cond, b, forcePrev)
		elseJ := b.emitJump(OpJumpIfFalse)
		c.compileExpr(x.Then, b, forcePrev)
		endJ := b.emitJump(OpJump)
		b.patchJump(elseJ)
		c.compileExpr(x.Else, b, forcePrev)
		b.patchJump(endJ)
	case *ast.CallExpr:
		c.compileCall(x, b, forcePrev)
	default:
		c.errs = append(c.errs, errors.New(errors.PAR007, "compile", fmt.Sprintf("unsupported expression node %T", e)))
		b.emitConst(0)
	}
}

func (c *Compiler) loadIdent(ident string, b *Builder, forcePrev bool) {
	switch ident {
	case "time":
		b.emit(OpPushTime)
		return
	case "dt":
		b.emit(OpPushDt)
		return
	}
	slot, ok := c.lay.Slots[ident]
	if !ok {
		c.errs = append(c.errs, errors.New(errors.REF001, "compile", fmt.Sprintf("unknown identifier %q", ident)))
		b.emitConst(0)
		return
	}
	b.emitAB(OpLoadOff, slot.Offset, prevFlag(forcePrev))
}

func (c *Compiler) loadSubscript(x *ast.SubscriptExpr, b *Builder, forcePrev bool) {
	slot, ok := c.lay.Slots[x.Ident]
	if !ok {
		c.errs = append(c.errs, errors.New(errors.REF001, "compile", fmt.Sprintf("unknown identifier %q", x.Ident)))
		b.emitConst(0)
		return
	}
	if len(x.Subs) == 0 {
		b.emitAB(OpLoadOff, slot.Offset, prevFlag(forcePrev))
		return
	}
	ref, _ := c.st.Flat.Lookup(x.Ident)
	t := x.Subs[0]
	switch t.Kind {
	case ast.SubElement:
		if ref != nil && len(ref.Dimensions) == 1 && dm.Canonical(t.Element) == dm.Canonical(ref.Dimensions[0]) {
			// self-index: "pop[Region]" inside an apply-to-all equation
			b.emitAB(OpLoadElem, slot.Offset, prevFlag(forcePrev))
			return
		}
		var dim *dm.Dimension
		if ref != nil && len(ref.Dimensions) == 1 {
			dim = c.st.Dims[dm.Canonical(ref.Dimensions[0])]
		}
		b.emitAB(OpLoadOff, slot.Offset+elementIndex(dim, t.Element), prevFlag(forcePrev))
	case ast.SubBang, ast.SubWildcard, ast.SubRange:
		// Per-element lockstep read against the enclosing apply-to-all
		// loop's own index; whole-array pass-through beyond reduction
		// builtins is out of scope (DIM004 restricts to 1-D arrays).
		b.emitAB(OpLoadElem, slot.Offset, prevFlag(forcePrev))
	case ast.SubExpr:
		c.compileExpr(t.Index, b, forcePrev)
		b.emit(OpInteger)
		b.emitAB(OpLoadIndirect, slot.Offset, prevFlag(forcePrev))
	}
}

func prevFlag(forcePrev bool) int {
	if forcePrev {
		return 1
	}
	return 0
}

func (c *Compiler) compileBinary(x *ast.BinaryExpr, b *Builder, forcePrev bool) {
	c.compileExpr(x.L, b, forcePrev)
	c.compileExpr(x.R, b, forcePrev)
	switch x.Op {
	case ast.OpAdd:
		b.emit(OpAdd)
	case ast.OpSub:
		b.emit(OpSub)
	case ast.OpMul:
		b.emit(OpMul)
	case ast.OpDiv:
		b.emit(OpDiv)
	case ast.OpMod:
		b.emit(OpMod)
	case ast.OpPow:
		b.emit(OpPow)
	case ast.OpEq:
		b.emit(OpEq)
	case ast.OpNeq:
		b.emit(OpEq)
		b.emit(OpNot)
	case ast.OpLt:
		b.emit(OpLt)
	case ast.OpLte:
		b.emit(OpGt)
		b.emit(OpNot)
	case ast.OpGt:
		b.emit(OpGt)
	case ast.OpGte:
		b.emit(OpLt)
		b.emit(OpNot)
	case ast.OpAnd:
		b.emit(OpAnd)
	case ast.OpOr:
		b.emit(OpOr)
	}
}

func isArrayReduceCall(x *ast.CallExpr) bool {
	switch x.Builtin {
	case "SUM", "MEAN", "STDDEV", "PROD", "SIZE", "RANK":
		return true
	case "MIN", "MAX":
		if len(x.Args) != 1 {
			return false
		}
		sub, ok := x.Args[0].(*ast.SubscriptExpr)
		if !ok || len(sub.Subs) == 0 {
			return false
		}
		k := sub.Subs[0].Kind
		return k == ast.SubBang || k == ast.SubWildcard
	}
	return false
}

func (c *Compiler) compileCall(x *ast.CallExpr, b *Builder, forcePrev bool) {
	if isArrayReduceCall(x) {
		c.compileReducer(x, b, forcePrev)
		return
	}

	if op, ok := unaryMathOpcode[x.Builtin]; ok {
		c.compileExpr(x.Args[0], b, forcePrev)
		b.emit(op)
		return
	}

	switch x.Builtin {
	case "MIN":
		for _, a := range x.Args {
			c.compileExpr(a, b, forcePrev)
		}
		b.emitA(OpMin, len(x.Args))
	case "MAX":
		for _, a := range x.Args {
			c.compileExpr(a, b, forcePrev)
		}
		b.emitA(OpMax, len(x.Args))
	case "PULSE":
		for _, a := range x.Args {
			c.compileExpr(a, b, forcePrev)
		}
		b.emitA(OpPulse, len(x.Args))
	case "STEP":
		for _, a := range x.Args {
			c.compileExpr(a, b, forcePrev)
		}
		b.emitA(OpStep, len(x.Args))
	case "RAMP":
		for _, a := range x.Args {
			c.compileExpr(a, b, forcePrev)
		}
		b.emitA(OpRamp, len(x.Args))
	case "LOOKUP":
		ident, ok := gfIdent(x.Args[0])
		if !ok {
			c.errs = append(c.errs, errors.New(errors.REF001, "compile", "LOOKUP's first argument must name a variable with a graphical function"))
			b.emitConst(0)
			return
		}
		gfID, ok := c.lay.GFIndex[ident]
		if !ok {
			c.errs = append(c.errs, errors.New(errors.REF001, "compile", fmt.Sprintf("%q has no graphical function", ident)))
			b.emitConst(0)
			return
		}
		c.compileExpr(x.Args[1], b, forcePrev)
		b.emitA(OpLookup, gfID)
	case "SMOOTHN", "DELAYN", "DELAYFIXED", "TREND", "FORECAST", "SAMPLEIFTRUE", "PREVIOUS":
		c.compileStateful(x, b)
	default:
		c.errs = append(c.errs, errors.New(errors.PAR007, "compile", fmt.Sprintf("unknown builtin %q", x.Builtin)))
		b.emitConst(0)
	}
}

// compileStateful lowers one of the stateful/lagged builtins. Its first
// argument always reads against the VM's prev array (forcePrev=true) —
// for PREVIOUS that is the builtin's whole meaning; for the
// SMOOTHN/DELAY/TREND/FORECAST/SAMPLEIFTRUE family it is what lets the
// same-step dependency graph treat the call as a stock-mediated loop
// rather than a simultaneous equation (see analysis.stepRefs).
func (c *Compiler) compileStateful(x *ast.CallExpr, b *Builder) {
	c.compileExpr(x.Args[0], b, true)
	for _, a := range x.Args[1:] {
		c.compileExpr(a, b, false)
	}
	off := c.lay.Reserve(1)
	op := statefulOpcode[x.Builtin]
	c.stfl = append(c.stfl, StatefulState{Kind: op, Offset: off, Length: 1})
	b.emitAB(op, off, len(x.Args))
}

func (c *Compiler) compileReducer(x *ast.CallExpr, b *Builder, forcePrev bool) {
	sub, ok := x.Args[0].(*ast.SubscriptExpr)
	if !ok {
		c.errs = append(c.errs, errors.New(errors.DIM002, "compile", fmt.Sprintf("%s requires an array argument", x.Builtin)))
		b.emitConst(0)
		return
	}
	slot, ok := c.lay.Slots[sub.Ident]
	if !ok {
		c.errs = append(c.errs, errors.New(errors.REF001, "compile", fmt.Sprintf("unknown identifier %q", sub.Ident)))
		b.emitConst(0)
		return
	}
	switch x.Builtin {
	case "SUM":
		b.emitAB(OpArraySum, slot.Offset, slot.Length)
	case "MEAN":
		b.emitAB(OpArrayMean, slot.Offset, slot.Length)
	case "STDDEV":
		b.emitAB(OpArrayStddev, slot.Offset, slot.Length)
	case "PROD":
		b.emitAB(OpArrayProd, slot.Offset, slot.Length)
	case "SIZE":
		b.emitAB(OpArraySize, slot.Offset, slot.Length)
	case "MIN":
		b.emitAB(OpArrayMin, slot.Offset, slot.Length)
	case "MAX":
		b.emitAB(OpArrayMax, slot.Offset, slot.Length)
	case "RANK":
		if len(x.Args) > 1 {
			c.compileExpr(x.Args[1], b, forcePrev)
		} else {
			b.emitConst(1)
		}
		b.emitAB(OpArrayRank, slot.Offset, slot.Length)
	}
}

// gfIdent extracts the plain identifier LOOKUP's first argument must be.
func gfIdent(e ast.Expr0) (string, bool) {
	if v, ok := e.(*ast.VarExpr); ok {
		return v.Ident, true
	}
	return "", false
}
