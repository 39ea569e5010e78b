// SPDX-License-Identifier: Apache-2.0
package ir

// FunctionBuilder is a small imperative cursor for constructing a
// Function's CFG by hand: used by internal/irasm (the textual IR
// assembly front end) and by the optimizer's own test fixtures, the way
// the teacher's internal/ir.Builder drives AST-to-IR lowering with a
// currentBlock cursor (see _examples/kanso-lang-kanso/internal/ir/builder.go).
// The optimizer's real input always arrives as an already-built Function
// from the semantic layer (§4.1 "Construction"); this builder exists only
// to construct that shape without a full AST front end, which is out of
// scope (§1).
type FunctionBuilder struct {
	Fn      *Function
	current *BasicBlock
}

// NewFunctionBuilder starts building fn at its entry block.
func NewFunctionBuilder(fn *Function) *FunctionBuilder {
	return &FunctionBuilder{Fn: fn, current: fn.Block(fn.Entry)}
}

// Block switches the cursor to an existing block.
func (b *FunctionBuilder) Block(id BlockID) *FunctionBuilder {
	b.current = b.Fn.Block(id)
	return b
}

// NewBlock allocates and switches to a fresh block.
func (b *FunctionBuilder) NewBlock() *BasicBlock {
	blk := b.Fn.AddBlock()
	b.current = blk
	return blk
}

// Slot declares a fresh typed slot in the function.
func (b *FunctionBuilder) Slot(t Type) SlotID { return b.Fn.Slots.Declare(t) }

// Emit appends an instruction to the current block.
func (b *FunctionBuilder) Emit(inst Instruction) *FunctionBuilder {
	b.current.Append(inst)
	return b
}

// Assign declares a slot of e's type, emits an AssignInst, and returns the
// slot.
func (b *FunctionBuilder) Assign(e Expr) SlotID {
	dst := b.Slot(e.ResultType())
	b.Emit(&AssignInst{Dst: dst, Expr: e})
	return dst
}

// Terminate sets the current block's terminator.
func (b *FunctionBuilder) Terminate(term Terminator) {
	b.current.SetTerminator(term)
}

// Ref returns a VarRefExpr reading slot's current value.
func (fn *Function) Ref(slot SlotID) *VarRefExpr {
	return &VarRefExpr{Slot: slot, Type: fn.Slots.TypeOf(slot)}
}
