// Package compiler lowers a flattened, dimension-checked model
// (internal/analysis.SymbolTable) into the stack bytecode consumed by
// internal/vm (spec.md §4.3). Its instruction set and code-generation
// idiom are grounded on other_examples'
// c0437b28_ATSOTECK-rage__internal-compiler-compiler_exprs.go.go: a
// stack-machine expression compiler built around emit/emitArg for fixed
// opcodes and emitJump/patchJump for forward branches, which this
// package's Builder reuses directly (see builder.go).
package compiler

// Opcode is one stack-machine instruction. Every Instr carries at most
// two integer operands (A, B) and one float operand (C); which ones are
// meaningful depends on Op, documented alongside each constant.
type Opcode int

const (
	// Stack/constant sources.
	OpPushConst Opcode = iota // C: literal value
	OpPushTime                // push the current simulation time
	OpPushDt                  // push the current step size

	// Flat-memory access. A is always an absolute cell offset into the
	// shared f64 arena unless noted otherwise. For the three loads, B is
	// a "force previous" flag: 1 means read the VM's prev array
	// regardless of whether the target is a stock (used to compile a
	// stateful builtin's lagged argument); 0 lets the VM decide by its
	// own stock/non-stock bitmap, which is the normal case.
	OpLoadOff      // A: offset, B: forcePrev. Push data or prev [A].
	OpLoadElem     // A: base offset of an arrayed variable, B: forcePrev. Push data/prev[A+elemIndex], using the VM's current per-element loop register.
	OpLoadIndirect // A: base offset, B: forcePrev. Pop an index, push data/prev[A+index] (clamped; out-of-range yields 0, matching spec.md's runtime-OOB-subscript rule).
	OpStoreOff     // A: offset. Pop a value, store to data[A].
	OpStoreElem    // A: base offset of an arrayed variable. Pop a value, store to data[A+elemIndex].

	// Arithmetic, unary, comparison, logic. All pop their operands and
	// push one result.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpEq
	OpLt
	OpGt
	OpNot
	OpAnd
	OpOr

	// Control flow. A is an absolute instruction index. OpJumpIfFalse
	// pops the condition; this is the compiled form of spec.md's
	// If(skip)/Jmp(target) pair, using absolute targets instead of
	// relative skip counts to keep patchJump (below) a single write.
	OpJumpIfFalse
	OpJump

	// Unary math/trig builtins: pop one operand, push one result.
	OpAbs
	OpExp
	OpLn
	OpLog10
	OpSqrt
	OpSin
	OpCos
	OpTan
	OpArcsin
	OpArccos
	OpArctan
	OpInteger

	// Variadic builtins. A: argument count already pushed on the stack.
	OpMin
	OpMax

	// Time-shape builtins. A: argument count (2 or 3, matching PULSE/RAMP's
	// optional third argument; STEP is always 2).
	OpPulse
	OpStep
	OpRamp

	// Graphical-function lookup. A: index into Program.Layout.GFs. Pops x, pushes y.
	OpLookup

	// Stateful builtins. A: the arena offset reserved for this call site
	// (also recorded in Program.Stateful), which the VM uses as the key
	// of the call's persistent state; B: argument count. Each pops all B
	// arguments (the first compiled as a read of the previous step's
	// values) and pushes the current output.
	OpSmoothN
	OpDelayN
	OpDelayFixed
	OpTrend
	OpForecast
	OpSampleIfTrue
	OpPreviousSelf

	// Array-reduction builtins. A: base offset of the array; B: element
	// count. OpArrayRank additionally pops a 1-based rank index (pushed
	// by the compiled rank-index argument before this opcode runs).
	OpArraySum
	OpArrayMean
	OpArrayStddev
	OpArrayProd
	OpArraySize
	OpArrayRank
	OpArrayMin // MIN/MAX called with a single arrayed argument reduces instead of comparing.
	OpArrayMax

	// Module call. Present for fidelity with spec.md's instruction
	// inventory; unused by this compiler's flattening-based codegen (see
	// BuildLayout's doc comment in layout.go) but kept so internal/vm's dispatch table
	// is complete if a non-flattened compilation mode is added later.
	// A: child program id. B: slot base for the call frame.
	OpCall
)

// Instr is one bytecode instruction.
type Instr struct {
	Op Opcode
	A  int
	B  int
	C  float64
}
