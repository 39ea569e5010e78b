// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"testing"

	"solmid/internal/bignum"
)

func TestBinaryOpIsArithmeticIsComparison(t *testing.T) {
	if !OpMul.IsArithmetic() {
		t.Error("* should be arithmetic")
	}
	if OpMul.IsComparison() {
		t.Error("* should not be a comparison")
	}
	if !OpLt.IsComparison() {
		t.Error("< should be a comparison")
	}
	if OpLt.IsArithmetic() {
		t.Error("< should not be arithmetic")
	}
}

func TestLiteralExprResultTypeAndString(t *testing.T) {
	lit := &LiteralExpr{Type: IntType{Bits: 256}, Int: &IntLiteral{Value: bignum.FromUint64(42)}}
	if lit.ResultType().String() != "uint256" {
		t.Errorf("ResultType() = %s, want uint256", lit.ResultType())
	}
	if lit.String() != "42" {
		t.Errorf("String() = %s, want 42", lit.String())
	}
}

func TestLiteralExprBytesString(t *testing.T) {
	lit := &LiteralExpr{Type: FixedBytesType{Len: 2}, Bytes: []byte{0xde, 0xad}}
	if lit.String() != "0xdead" {
		t.Errorf("String() = %s, want 0xdead", lit.String())
	}
}

func TestBinaryExprOperandsAndString(t *testing.T) {
	a := &LiteralExpr{Type: IntType{Bits: 256}, Int: &IntLiteral{Value: bignum.FromUint64(2)}}
	b := &LiteralExpr{Type: IntType{Bits: 256}, Int: &IntLiteral{Value: bignum.FromUint64(3)}}
	bin := &BinaryExpr{Op: OpAdd, Left: a, Right: b, Type: IntType{Bits: 256}}

	ops := bin.Operands()
	if len(ops) != 2 || ops[0] != a || ops[1] != b {
		t.Error("Operands() should return [Left, Right] in order")
	}
	if bin.String() != "(2 + 3)" {
		t.Errorf("String() = %s, want (2 + 3)", bin.String())
	}
}

func TestStorageSlotExprStringScalarVsMapping(t *testing.T) {
	scalar := &StorageSlotExpr{Root: "owner", Type: AddressType{Width: 20}}
	if scalar.String() != "storage.owner" {
		t.Errorf("scalar String() = %s, want storage.owner", scalar.String())
	}

	key := &LiteralExpr{Type: IntType{Bits: 256}, Int: &IntLiteral{Value: bignum.FromUint64(7)}}
	mapping := &StorageSlotExpr{Root: "balances", Key: key, Type: IntType{Bits: 256}}
	if mapping.String() != "storage.balances[7]" {
		t.Errorf("mapping String() = %s, want storage.balances[7]", mapping.String())
	}
	if len(mapping.Operands()) != 1 {
		t.Error("a keyed StorageSlotExpr should report its key as an operand")
	}
	if len(scalar.Operands()) != 0 {
		t.Error("a scalar StorageSlotExpr should report no operands")
	}
}

func TestAllocVectorAndSliceLiteralShareReadShape(t *testing.T) {
	init := []byte{0x01, 0x02}
	vec := &AllocVectorExpr{Init: init, Type: BytesType{Flavor: FlavorVector}}
	slice := &SliceLiteralExpr{Init: init, Type: BytesType{Flavor: FlavorSlice}}

	if !SameType(vec.ResultType(), slice.ResultType()) {
		t.Error("vector and slice allocations of the same init should read-compatible")
	}
}

func TestExtendTruncateResultTypes(t *testing.T) {
	x := &LiteralExpr{Type: IntType{Bits: 8}, Int: &IntLiteral{Value: bignum.FromUint64(1)}}
	ext := &ExtendExpr{X: x, To: IntType{Bits: 256}}
	if ext.ResultType().String() != "uint256" {
		t.Errorf("ExtendExpr.ResultType() = %s, want uint256", ext.ResultType())
	}
	trunc := &TruncateExpr{X: x, To: IntType{Bits: 8}}
	if trunc.ResultType().String() != "uint8" {
		t.Errorf("TruncateExpr.ResultType() = %s, want uint8", trunc.ResultType())
	}
}
