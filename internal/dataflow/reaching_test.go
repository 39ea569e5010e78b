// SPDX-License-Identifier: Apache-2.0
package dataflow

import (
	"testing"

	"solmid/internal/bignum"
	"solmid/internal/ir"
)

// buildStraightLineRedef constructs:
//
//	bb0: %v0 = 1
//	     %v0 = 2
//	     ret %v0
//
// so that the second assignment's DefSite is the only one reaching the
// block's exit; the first is killed by the redefinition within the same
// block.
func buildStraightLineRedef() (*ir.Function, ir.SlotID) {
	fn := ir.NewFunction("straight_line_redef")
	u64 := ir.IntType{Bits: 64}
	b := ir.NewFunctionBuilder(fn)

	v0 := b.Slot(u64)
	b.Emit(&ir.AssignInst{Dst: v0, Expr: &ir.LiteralExpr{Type: u64, Int: &ir.IntLiteral{Value: bignum.FromUint64(1)}}})
	b.Emit(&ir.AssignInst{Dst: v0, Expr: &ir.LiteralExpr{Type: u64, Int: &ir.IntLiteral{Value: bignum.FromUint64(2)}}})
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(v0)}})

	return fn, v0
}

func TestComputeReachingDefsKillsEarlierRedefinition(t *testing.T) {
	fn, v0 := buildStraightLineRedef()
	rd := ComputeReachingDefs(fn)

	out := rd.Out[fn.Entry][v0]
	if len(out) != 1 {
		t.Fatalf("expected exactly one definition to survive to the block exit, got %d", len(out))
	}
	for def := range out {
		if def.Index != 1 {
			t.Errorf("surviving definition index = %d, want 1 (the second assignment)", def.Index)
		}
	}
}

// buildDiamondMerge constructs a diamond CFG where %v0 is defined
// differently on each branch, so both definitions should reach the
// merge block's entry.
func buildDiamondMerge() (*ir.Function, ir.SlotID, ir.BlockID) {
	fn := ir.NewFunction("diamond_merge")
	u64 := ir.IntType{Bits: 64}
	boolT := ir.BoolType{}
	b := ir.NewFunctionBuilder(fn)

	param := b.Slot(boolT)
	fn.Params = append(fn.Params, param)
	v0 := b.Slot(u64)

	left := fn.AddBlock()
	right := fn.AddBlock()
	merge := fn.AddBlock()

	fn.Block(fn.Entry).SetTerminator(&ir.CondBranchTerm{Predicate: fn.Ref(param), TrueBlock: left.ID, FalseBlock: right.ID})

	b.Block(left.ID)
	b.Emit(&ir.AssignInst{Dst: v0, Expr: &ir.LiteralExpr{Type: u64, Int: &ir.IntLiteral{Value: bignum.FromUint64(1)}}})
	left.SetTerminator(&ir.JumpTerm{Target: merge.ID})

	b.Block(right.ID)
	b.Emit(&ir.AssignInst{Dst: v0, Expr: &ir.LiteralExpr{Type: u64, Int: &ir.IntLiteral{Value: bignum.FromUint64(2)}}})
	right.SetTerminator(&ir.JumpTerm{Target: merge.ID})

	merge.SetTerminator(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(v0)}})

	return fn, v0, merge.ID
}

func TestComputeReachingDefsMergesBothBranches(t *testing.T) {
	fn, v0, merge := buildDiamondMerge()
	if err := ir.Verify(fn); err != nil {
		t.Fatalf("fixture failed verification: %v", err)
	}
	rd := ComputeReachingDefs(fn)

	in := rd.In[merge][v0]
	if len(in) != 2 {
		t.Fatalf("expected both branch definitions to reach the merge block, got %d", len(in))
	}
}
