package compiler

// Builder accumulates Instr values for one bytecode stream, in the
// emit/emitJump/patchJump idiom of ATSOTECK-rage's compiler_exprs.go:
// forward branches are emitted with a placeholder target and back-patched
// once the jump's destination is known.
type Builder struct {
	code []Instr
}

func (b *Builder) emit(op Opcode) int {
	b.code = append(b.code, Instr{Op: op})
	return len(b.code) - 1
}

func (b *Builder) emitA(op Opcode, a int) int {
	b.code = append(b.code, Instr{Op: op, A: a})
	return len(b.code) - 1
}

func (b *Builder) emitAB(op Opcode, a, b2 int) int {
	b.code = append(b.code, Instr{Op: op, A: a, B: b2})
	return len(b.code) - 1
}

func (b *Builder) emitConst(v float64) int {
	b.code = append(b.code, Instr{Op: OpPushConst, C: v})
	return len(b.code) - 1
}

// emitJump appends a branch instruction with a placeholder target and
// returns its index, to be passed to patchJump once the destination is
// known.
func (b *Builder) emitJump(op Opcode) int {
	b.code = append(b.code, Instr{Op: op, A: -1})
	return len(b.code) - 1
}

// currentOffset is the index the next emitted instruction will occupy.
func (b *Builder) currentOffset() int {
	return len(b.code)
}

// patchJump sets the jump at idx to target the instruction stream's
// current end.
func (b *Builder) patchJump(idx int) {
	b.code[idx].A = b.currentOffset()
}

// patchJumpTo sets the jump at idx to target a specific instruction index.
func (b *Builder) patchJumpTo(idx, target int) {
	b.code[idx].A = target
}

// Code returns the accumulated instruction stream.
func (b *Builder) Code() []Instr { return b.code }
