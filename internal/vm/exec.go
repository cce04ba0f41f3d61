package vm

import "github.com/sd-lang/sdcore/internal/compiler"

// evalEnv is the memory an instruction stream reads and writes against:
// data is the array being computed this pass (already-evaluated
// non-stocks read back from it within the same pass, per topological
// order); prevSrc is what a stock cell, or any load explicitly marked
// forcePrev, reads instead.
type evalEnv struct {
	data    []float64
	prevSrc []float64
}

// execVarCode runs one compiled variable's bytecode. A looping VarCode
// (an apply-to-all array equation) repeats Code once per element with
// elemIndex stepping 0..Length-1; OpLoadElem/OpStoreElem add elemIndex to
// their base offset to address the current element. An overridden
// variable is re-assigned its override value right after its own code
// runs, so later variables in the same pass read the override.
func (s *Sim) execVarCode(vc compiler.VarCode, env *evalEnv) {
	if !vc.Loop {
		s.execCode(vc.Code, env, 0)
	} else {
		for i := 0; i < vc.Length; i++ {
			s.execCode(vc.Code, env, i)
		}
	}
	if v, ok := s.overrides[vc.Ident]; ok {
		if slot, ok := s.Prog.Layout.Slots[vc.Ident]; ok {
			for i := 0; i < slot.Length; i++ {
				env.data[slot.Offset+i] = v
			}
		}
	}
}

// execCode interprets one instruction stream with a shared operand
// stack, following compiler.Builder's emit/emitJump/patchJump scheme:
// OpJump/OpJumpIfFalse targets are absolute instruction indices.
func (s *Sim) execCode(code []compiler.Instr, env *evalEnv, elemIndex int) {
	var stack []float64
	push := func(v float64) { stack = append(stack, v) }
	pop := func() float64 {
		n := len(stack) - 1
		v := stack[n]
		stack = stack[:n]
		return v
	}
	popN := func(n int) []float64 {
		out := make([]float64, n)
		for i := n - 1; i >= 0; i-- {
			out[i] = pop()
		}
		return out
	}
	boolF := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	pc := 0
	for pc < len(code) {
		ins := code[pc]
		switch ins.Op {
		case compiler.OpPushConst:
			push(ins.C)
		case compiler.OpPushTime:
			push(s.t)
		case compiler.OpPushDt:
			push(s.dt)

		case compiler.OpLoadOff:
			push(s.loadCell(env, ins.A, ins.B == 1))
		case compiler.OpLoadElem:
			push(s.loadCell(env, ins.A+elemIndex, ins.B == 1))
		case compiler.OpLoadIndirect:
			idx := int(pop())
			off := ins.A + idx
			if off < 0 || off >= len(env.data) {
				push(0) // out-of-range subscript: 0, per spec.md §4.2's propagation policy
			} else {
				push(s.loadCell(env, off, ins.B == 1))
			}
		case compiler.OpStoreOff:
			env.data[ins.A] = pop()
		case compiler.OpStoreElem:
			env.data[ins.A+elemIndex] = pop()

		case compiler.OpAdd:
			b, a := pop(), pop()
			push(a + b)
		case compiler.OpSub:
			b, a := pop(), pop()
			push(a - b)
		case compiler.OpMul:
			b, a := pop(), pop()
			push(a * b)
		case compiler.OpDiv:
			b, a := pop(), pop()
			push(safeDiv(a, b))
		case compiler.OpMod:
			b, a := pop(), pop()
			push(safeMod(a, b))
		case compiler.OpPow:
			b, a := pop(), pop()
			push(safePow(a, b))
		case compiler.OpNeg:
			push(-pop())

		case compiler.OpEq:
			b, a := pop(), pop()
			push(boolF(a == b))
		case compiler.OpLt:
			b, a := pop(), pop()
			push(boolF(a < b))
		case compiler.OpGt:
			b, a := pop(), pop()
			push(boolF(a > b))
		case compiler.OpNot:
			push(boolF(pop() == 0))
		case compiler.OpAnd:
			b, a := pop(), pop()
			push(boolF(a != 0 && b != 0))
		case compiler.OpOr:
			b, a := pop(), pop()
			push(boolF(a != 0 || b != 0))

		case compiler.OpJumpIfFalse:
			if pop() == 0 {
				pc = ins.A
				continue
			}
		case compiler.OpJump:
			pc = ins.A
			continue

		case compiler.OpAbs, compiler.OpExp, compiler.OpLn, compiler.OpLog10, compiler.OpSqrt,
			compiler.OpSin, compiler.OpCos, compiler.OpTan,
			compiler.OpArcsin, compiler.OpArccos, compiler.OpArctan, compiler.OpInteger:
			push(unaryMath(ins.Op, pop()))

		case compiler.OpMin:
			push(minSlice(popN(ins.A)))
		case compiler.OpMax:
			push(maxSlice(popN(ins.A)))

		case compiler.OpPulse:
			push(s.pulse(popN(ins.A)))
		case compiler.OpStep:
			push(s.stepFn(popN(ins.A)))
		case compiler.OpRamp:
			push(s.ramp(popN(ins.A)))

		case compiler.OpLookup:
			x := pop()
			push(lookupGF(s.Prog.Layout.GFs[ins.A], x))

		case compiler.OpSmoothN, compiler.OpDelayN, compiler.OpDelayFixed,
			compiler.OpTrend, compiler.OpForecast, compiler.OpSampleIfTrue, compiler.OpPreviousSelf:
			push(s.evalStateful(ins.Op, ins.A, popN(ins.B)))

		case compiler.OpArraySum, compiler.OpArrayMean, compiler.OpArrayStddev,
			compiler.OpArrayProd, compiler.OpArraySize, compiler.OpArrayMin, compiler.OpArrayMax:
			push(s.arrayReduce(env, ins.Op, ins.A, ins.B))
		case compiler.OpArrayRank:
			rank := pop()
			push(s.arrayRank(env, ins.A, ins.B, int(rank)))
		}
		pc++
	}
}

// loadCell reads a cell from prevSrc when forcePrev is set or the cell
// belongs to a stock (stocks are sinks of the step graph: their current
// value is carried state, never computed within the same step), and
// from data otherwise.
func (s *Sim) loadCell(env *evalEnv, off int, forcePrev bool) float64 {
	if forcePrev || s.Prog.StockCell[off] {
		return env.prevSrc[off]
	}
	return env.data[off]
}
