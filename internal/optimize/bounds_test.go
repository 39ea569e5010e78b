// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"testing"

	"solmid/internal/diag"
	"solmid/internal/ir"
)

// TestBoundsEliminationDropsCheckOnKnownLengthArray is scenario S5: an
// index proven constant and within the bounds of a dynamic array whose
// companion length slot is a known constant lets the bounds check be
// removed outright.
func TestBoundsEliminationDropsCheckOnKnownLengthArray(t *testing.T) {
	u256 := ir.IntType{Bits: 256}
	fn := ir.NewFunction("s5")
	arraySlot := fn.Slots.Declare(ir.ArrayType{Elem: u256, Len: -1})
	lenSlot := fn.Slots.Declare(u256)
	idxSlot := fn.Slots.Declare(u256)
	fn.ArrayLenSlots = map[ir.SlotID]ir.SlotID{arraySlot: lenSlot}

	b := ir.NewFunctionBuilder(fn)
	entry := fn.Entry
	checkBlock := b.NewBlock()
	abortBlock := b.NewBlock()

	b.Block(entry)
	b.Emit(&ir.AssignInst{Dst: lenSlot, Expr: intLit256(3)})
	b.Emit(&ir.AssignInst{Dst: idxSlot, Expr: intLit256(1)})
	b.Terminate(&ir.JumpTerm{Target: checkBlock.ID})

	b.Block(checkBlock.ID)
	b.Emit(&ir.BoundsCheckInst{Index: fn.Ref(idxSlot), Length: fn.Ref(lenSlot), AbortBlock: abortBlock.ID})
	readLen := fn.Slots.Declare(u256)
	b.Emit(&ir.AssignInst{Dst: readLen, Expr: fn.Ref(lenSlot)})
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(readLen)}})

	b.Block(abortBlock.ID).Terminate(&ir.RevertTerm{})

	sink := diag.NewSink("u")
	changed := (&BoundsElimination{}).Apply(fn, sink)
	if !changed {
		t.Fatal("expected the provably-safe bounds check to be removed")
	}

	var codes []string
	for _, d := range sink.All() {
		codes = append(codes, d.Code)
	}
	if !containsCode(codes, diag.CodeBoundsCheckEliminated) {
		t.Errorf("expected a %s witness diagnostic for the elided check, got %v", diag.CodeBoundsCheckEliminated, codes)
	}
	if !containsCode(codes, diag.CodeLengthKnown) {
		t.Errorf("expected a %s witness diagnostic for the folded length read, got %v", diag.CodeLengthKnown, codes)
	}

	insts := fn.Block(checkBlock.ID).Instructions
	for _, inst := range insts {
		if _, ok := inst.(*ir.BoundsCheckInst); ok {
			t.Error("bounds check should have been eliminated")
		}
	}
	if len(insts) != 1 {
		t.Fatalf("expected only the rewritten length-read assign to remain, got %d instructions", len(insts))
	}
	assign := insts[0].(*ir.AssignInst)
	lit, ok := assign.Expr.(*ir.LiteralExpr)
	if !ok || lit.Int.Value.String() != "3" {
		t.Error("the companion length read should fold to the literal 3")
	}
}

func containsCode(codes []string, want string) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}

func TestBoundsEliminationKeepsCheckForParameterIndex(t *testing.T) {
	u256 := ir.IntType{Bits: 256}
	fn := ir.NewFunction("paramarray")
	idxSlot := fn.Slots.Declare(u256)
	lenSlot := fn.Slots.Declare(u256)
	fn.Params = append(fn.Params, idxSlot)

	b := ir.NewFunctionBuilder(fn)
	abortBlock := b.NewBlock()
	b.Block(fn.Entry)
	b.Emit(&ir.AssignInst{Dst: lenSlot, Expr: intLit256(3)})
	b.Emit(&ir.BoundsCheckInst{Index: fn.Ref(idxSlot), Length: fn.Ref(lenSlot), AbortBlock: abortBlock.ID})
	b.Terminate(&ir.ReturnTerm{})
	b.Block(abortBlock.ID).Terminate(&ir.RevertTerm{})

	changed := (&BoundsElimination{}).Apply(fn, diag.NewSink("u"))
	if changed {
		t.Error("a caller-supplied index must never be treated as provably in bounds")
	}
}

// TestBoundsEliminationElidesStructurallyDuplicateCheck covers spec.md
// §4.5's tie-break rule: two subscripts on the same array that alias to
// the identical (index, length) pair collapse to a single check even
// when neither is provable on its own (a caller-supplied index here, so
// the lattice-based proof never fires).
func TestBoundsEliminationElidesStructurallyDuplicateCheck(t *testing.T) {
	u256 := ir.IntType{Bits: 256}
	fn := ir.NewFunction("duplicate_check")
	idxSlot := fn.Slots.Declare(u256)
	lenSlot := fn.Slots.Declare(u256)
	fn.Params = append(fn.Params, idxSlot)

	b := ir.NewFunctionBuilder(fn)
	abortBlock := b.NewBlock()
	b.Block(fn.Entry)
	b.Emit(&ir.AssignInst{Dst: lenSlot, Expr: intLit256(3)})
	b.Emit(&ir.BoundsCheckInst{Index: fn.Ref(idxSlot), Length: fn.Ref(lenSlot), AbortBlock: abortBlock.ID})
	// Second subscript on the same array with the identical index and
	// length slots: structurally redundant regardless of provability.
	b.Emit(&ir.BoundsCheckInst{Index: fn.Ref(idxSlot), Length: fn.Ref(lenSlot), AbortBlock: abortBlock.ID})
	b.Terminate(&ir.ReturnTerm{})
	b.Block(abortBlock.ID).Terminate(&ir.RevertTerm{})

	sink := diag.NewSink("u")
	changed := (&BoundsElimination{}).Apply(fn, sink)
	if !changed {
		t.Fatal("expected the structurally duplicate check to be elided")
	}

	var numChecks int
	for _, inst := range fn.Block(fn.Entry).Instructions {
		if _, ok := inst.(*ir.BoundsCheckInst); ok {
			numChecks++
		}
	}
	if numChecks != 1 {
		t.Errorf("expected exactly one surviving bounds check, got %d", numChecks)
	}

	var codes []string
	for _, d := range sink.All() {
		codes = append(codes, d.Code)
	}
	if !containsCode(codes, diag.CodeBoundsCheckEliminated) {
		t.Errorf("expected a %s witness diagnostic for the elided duplicate, got %v", diag.CodeBoundsCheckEliminated, codes)
	}
}

// TestBoundsEliminationKeepsCheckAfterIndexRedefinition confirms the
// structural dedup does not fire across a redefinition of the index
// slot: a second check guarding a different value must survive even
// though it references the same slot number as the first.
func TestBoundsEliminationKeepsCheckAfterIndexRedefinition(t *testing.T) {
	u256 := ir.IntType{Bits: 256}
	fn := ir.NewFunction("reindexed_check")
	idxSlot := fn.Slots.Declare(u256)
	lenSlot := fn.Slots.Declare(u256)
	fn.Params = append(fn.Params, idxSlot)

	b := ir.NewFunctionBuilder(fn)
	abortBlock := b.NewBlock()
	b.Block(fn.Entry)
	b.Emit(&ir.AssignInst{Dst: lenSlot, Expr: intLit256(3)})
	b.Emit(&ir.BoundsCheckInst{Index: fn.Ref(idxSlot), Length: fn.Ref(lenSlot), AbortBlock: abortBlock.ID})
	// idxSlot is redefined before the second check, so the two checks
	// guard different values despite naming the same slot.
	b.Emit(&ir.AssignInst{Dst: idxSlot, Expr: intLit256(2)})
	b.Emit(&ir.BoundsCheckInst{Index: fn.Ref(idxSlot), Length: fn.Ref(lenSlot), AbortBlock: abortBlock.ID})
	b.Terminate(&ir.ReturnTerm{})
	b.Block(abortBlock.ID).Terminate(&ir.RevertTerm{})

	(&BoundsElimination{}).Apply(fn, diag.NewSink("u"))

	var numChecks int
	for _, inst := range fn.Block(fn.Entry).Instructions {
		if _, ok := inst.(*ir.BoundsCheckInst); ok {
			numChecks++
		}
	}
	if numChecks != 2 {
		t.Errorf("expected both checks to survive since the index was redefined in between, got %d", numChecks)
	}
}
