// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"strings"
	"testing"

	"solmid/internal/bignum"
)

func TestNewFunctionHasSingleEmptyEntry(t *testing.T) {
	fn := NewFunction("f")
	if fn.Entry != 0 {
		t.Errorf("Entry = %d, want 0", fn.Entry)
	}
	if len(fn.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(fn.Blocks))
	}
	if err := Verify(fn); err == nil {
		t.Error("a freshly created function has no terminator yet and should fail Verify")
	}
}

func TestVerifyRejectsUndefinedSuccessor(t *testing.T) {
	fn := NewFunction("f")
	fn.Block(fn.Entry).SetTerminator(&JumpTerm{Target: 99})
	if err := Verify(fn); err == nil {
		t.Error("Verify should reject a jump to an undefined block")
	}
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	fn := NewFunction("f")
	fn.AddBlock()
	fn.Block(fn.Entry).SetTerminator(&JumpTerm{Target: 1})
	// block 1 has no terminator
	if err := Verify(fn); err == nil {
		t.Error("Verify should reject a block with no terminator")
	}
}

func TestVerifyRejectsBinaryOperandTypeMismatch(t *testing.T) {
	fn := NewFunction("f")
	u64 := IntType{Bits: 64}
	u256 := IntType{Bits: 256}
	bad := &BinaryExpr{
		Op:    OpAdd,
		Left:  &LiteralExpr{Type: u64, Int: &IntLiteral{Value: bignum.FromUint64(1)}},
		Right: &LiteralExpr{Type: u256, Int: &IntLiteral{Value: bignum.FromUint64(1)}},
		Type:  u64,
	}
	dst := fn.Slots.Declare(u64)
	fn.Block(fn.Entry).Append(&AssignInst{Dst: dst, Expr: bad})
	fn.Block(fn.Entry).SetTerminator(&ReturnTerm{})

	err := Verify(fn)
	if err == nil {
		t.Fatal("Verify should reject mismatched binary operand widths")
	}
	if !strings.Contains(err.Error(), "operand type mismatch") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVerifyAcceptsWellFormedFunction(t *testing.T) {
	fn := NewFunction("f")
	u256 := IntType{Bits: 256}
	dst := fn.Slots.Declare(u256)
	sum := &BinaryExpr{
		Op:    OpAdd,
		Left:  &LiteralExpr{Type: u256, Int: &IntLiteral{Value: bignum.FromUint64(2)}},
		Right: &LiteralExpr{Type: u256, Int: &IntLiteral{Value: bignum.FromUint64(3)}},
		Type:  u256,
	}
	fn.Block(fn.Entry).Append(&AssignInst{Dst: dst, Expr: sum})
	fn.Block(fn.Entry).SetTerminator(&ReturnTerm{Values: []Expr{&VarRefExpr{Slot: dst, Type: u256}}})

	if err := Verify(fn); err != nil {
		t.Fatalf("Verify rejected a well-formed function: %v", err)
	}
}

func TestSlotTableDeclareAtAdvancesNextCounter(t *testing.T) {
	st := NewSlotTable()
	st.DeclareAt(SlotID(5), BoolType{})
	next := st.Declare(IntType{Bits: 8})
	if next != 6 {
		t.Errorf("Declare after DeclareAt(5) = %d, want 6", next)
	}
}

func TestModuleStampsUniqueCompilationUnitID(t *testing.T) {
	m1 := NewModule(nil)
	m2 := NewModule(nil)
	if m1.CompilationUnitID == "" {
		t.Error("CompilationUnitID should not be empty")
	}
	if m1.CompilationUnitID == m2.CompilationUnitID {
		t.Error("two modules should not share a compilation unit id")
	}
}

func TestContractFunctionOf(t *testing.T) {
	fn := NewFunction("transfer")
	c := &Contract{Name: "Token", Functions: []*Function{fn}}
	if c.FunctionOf("transfer") != fn {
		t.Error("FunctionOf should find the matching function")
	}
	if c.FunctionOf("missing") != nil {
		t.Error("FunctionOf should return nil for an unknown name")
	}
}
