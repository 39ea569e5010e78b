// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"testing"

	"solmid/internal/bignum"
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// litU256 builds a uint256 literal expression.
func litU256(v uint64) *ir.LiteralExpr {
	return &ir.LiteralExpr{Type: ir.IntType{Bits: 256}, Int: &ir.IntLiteral{Value: bignum.FromUint64(v)}}
}

// TestConstantFoldEvaluatesArithmeticAtCompileTime is scenario S1: x = 2 +
// 3*4 folds straight to the literal 14.
func TestConstantFoldEvaluatesArithmeticAtCompileTime(t *testing.T) {
	fn := ir.NewFunction("s1")
	b := ir.NewFunctionBuilder(fn)

	mul := &ir.BinaryExpr{Op: ir.OpMul, Left: litU256(3), Right: litU256(4), Type: ir.IntType{Bits: 256}}
	add := &ir.BinaryExpr{Op: ir.OpAdd, Left: litU256(2), Right: mul, Type: ir.IntType{Bits: 256}}
	dst := b.Assign(add)
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

	sink := diag.NewSink("u")
	changed := (&ConstantFold{}).Apply(fn, sink)
	if !changed {
		t.Fatal("expected constant folding to report a change")
	}

	assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
	lit, ok := assign.Expr.(*ir.LiteralExpr)
	if !ok {
		t.Fatalf("expected a folded literal, got %T", assign.Expr)
	}
	if lit.Int.Value.String() != "14" {
		t.Errorf("folded value = %s, want 14", lit.Int.Value.String())
	}
}

func TestConstantFoldLeavesOverflowingResultUnfolded(t *testing.T) {
	fn := ir.NewFunction("overflow")
	u8 := ir.IntType{Bits: 8}
	b := ir.NewFunctionBuilder(fn)

	lit200 := &ir.LiteralExpr{Type: u8, Int: &ir.IntLiteral{Value: bignum.FromUint64(200)}}
	lit100 := &ir.LiteralExpr{Type: u8, Int: &ir.IntLiteral{Value: bignum.FromUint64(100)}}
	sum := &ir.BinaryExpr{Op: ir.OpAdd, Left: lit200, Right: lit100, Type: u8}
	dst := b.Assign(sum)
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

	sink := diag.NewSink("u")
	(&ConstantFold{}).Apply(fn, sink)

	assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
	if _, ok := assign.Expr.(*ir.LiteralExpr); ok {
		t.Error("200+100 overflows uint8 and must not be folded")
	}

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.CodeArithmeticRange {
			found = true
		}
	}
	if !found {
		t.Error("an abandoned overflowing fold should report a Silent arithmetic-range diagnostic")
	}
}

func TestConstantFoldLeavesDivisionByLiteralZeroUnfolded(t *testing.T) {
	fn := ir.NewFunction("divzero")
	b := ir.NewFunctionBuilder(fn)

	div := &ir.BinaryExpr{Op: ir.OpDiv, Left: litU256(10), Right: litU256(0), Type: ir.IntType{Bits: 256}}
	dst := b.Assign(div)
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

	(&ConstantFold{}).Apply(fn, diag.NewSink("u"))

	assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
	if _, ok := assign.Expr.(*ir.LiteralExpr); ok {
		t.Error("division by a literal zero must never be folded")
	}
}

func TestConstantFoldShortCircuitsBooleanAnd(t *testing.T) {
	fn := ir.NewFunction("shortcircuit")
	boolT := ir.BoolType{}
	b := ir.NewFunctionBuilder(fn)

	falseLit := &ir.LiteralExpr{Type: boolT, Int: &ir.IntLiteral{Value: bignum.FromUint64(0)}}
	paramSlot := fn.Slots.Declare(boolT)
	fn.Params = append(fn.Params, paramSlot)
	and := &ir.BinaryExpr{Op: ir.OpAnd, Left: falseLit, Right: fn.Ref(paramSlot), Type: boolT}
	dst := b.Assign(and)
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

	changed := (&ConstantFold{}).Apply(fn, diag.NewSink("u"))
	if !changed {
		t.Fatal("expected the false&&x short circuit to fire")
	}
	assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
	lit, ok := assign.Expr.(*ir.LiteralExpr)
	if !ok || lit.Int.Value.Sign() != 0 {
		t.Error("false && x should fold to false regardless of x")
	}
}

// TestConstantFoldShortCircuitsNonDominatingOperand covers the other half
// of the short-circuit rule: when the literal operand does not dominate
// the result, evaluation "proceeds" and the expression folds to the
// other operand itself (true && x -> x, false || x -> x), not just to a
// boolean constant.
func TestConstantFoldShortCircuitsNonDominatingOperand(t *testing.T) {
	boolT := ir.BoolType{}
	trueLit := &ir.LiteralExpr{Type: boolT, Int: &ir.IntLiteral{Value: bignum.FromUint64(1)}}
	falseLit := &ir.LiteralExpr{Type: boolT, Int: &ir.IntLiteral{Value: bignum.FromUint64(0)}}

	t.Run("true&&x", func(t *testing.T) {
		fn := ir.NewFunction("and_identity")
		b := ir.NewFunctionBuilder(fn)
		paramSlot := fn.Slots.Declare(boolT)
		fn.Params = append(fn.Params, paramSlot)
		and := &ir.BinaryExpr{Op: ir.OpAnd, Left: trueLit, Right: fn.Ref(paramSlot), Type: boolT}
		dst := b.Assign(and)
		b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

		changed := (&ConstantFold{}).Apply(fn, diag.NewSink("u"))
		if !changed {
			t.Fatal("expected the true&&x identity to fire")
		}
		assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
		ref, ok := assign.Expr.(*ir.VarRefExpr)
		if !ok || ref.Slot != paramSlot {
			t.Fatalf("true && x should fold to x itself, got %T", assign.Expr)
		}
	})

	t.Run("false||x", func(t *testing.T) {
		fn := ir.NewFunction("or_identity")
		b := ir.NewFunctionBuilder(fn)
		paramSlot := fn.Slots.Declare(boolT)
		fn.Params = append(fn.Params, paramSlot)
		or := &ir.BinaryExpr{Op: ir.OpOr, Left: falseLit, Right: fn.Ref(paramSlot), Type: boolT}
		dst := b.Assign(or)
		b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

		changed := (&ConstantFold{}).Apply(fn, diag.NewSink("u"))
		if !changed {
			t.Fatal("expected the false||x identity to fire")
		}
		assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
		ref, ok := assign.Expr.(*ir.VarRefExpr)
		if !ok || ref.Slot != paramSlot {
			t.Fatalf("false || x should fold to x itself, got %T", assign.Expr)
		}
	})
}
