// SPDX-License-Identifier: Apache-2.0
package ir

import "testing"

func TestSameTypeRejectsWidthMismatch(t *testing.T) {
	if SameType(IntType{Bits: 64}, IntType{Bits: 256}) {
		t.Error("uint64 and uint256 must not be SameType")
	}
}

func TestSameTypeRejectsSignednessMismatch(t *testing.T) {
	if SameType(IntType{Bits: 256, Signed: false}, IntType{Bits: 256, Signed: true}) {
		t.Error("uint256 and int256 must not be SameType")
	}
}

func TestSameTypeAcceptsVectorSliceForReads(t *testing.T) {
	vector := BytesType{Flavor: FlavorVector, IsString: false}
	slice := BytesType{Flavor: FlavorSlice, IsString: false}
	if !SameType(vector, slice) {
		t.Error("vector and slice bytes must be read-compatible (§4.9)")
	}
}

func TestSameTypeRejectsStringBytesMismatch(t *testing.T) {
	str := BytesType{Flavor: FlavorVector, IsString: true}
	raw := BytesType{Flavor: FlavorVector, IsString: false}
	if SameType(str, raw) {
		t.Error("string and plain bytes must not be SameType")
	}
}

func TestSameTypeNilHandling(t *testing.T) {
	if !SameType(nil, nil) {
		t.Error("nil == nil should be SameType")
	}
	if SameType(nil, BoolType{}) {
		t.Error("nil should never equal a concrete type")
	}
}

func TestArrayTypeStringDynamicVsFixed(t *testing.T) {
	dyn := ArrayType{Elem: IntType{Bits: 256}, Len: -1}
	if dyn.String() != "uint256[]" {
		t.Errorf("dynamic array String() = %s, want uint256[]", dyn.String())
	}
	fixed := ArrayType{Elem: IntType{Bits: 256}, Len: 3}
	if fixed.String() != "uint256[3]" {
		t.Errorf("fixed array String() = %s, want uint256[3]", fixed.String())
	}
}

func TestEnumTypeBitsWidensAtPowerOfTwoBoundary(t *testing.T) {
	e := EnumType{Name: "Color", Variants: []string{"Red", "Green", "Blue"}}
	if e.Bits() != 8 {
		t.Errorf("3-variant enum Bits() = %d, want 8", e.Bits())
	}
	big := EnumType{Name: "Big", Variants: make([]string, 300)}
	if big.Bits() != 16 {
		t.Errorf("300-variant enum Bits() = %d, want 16", big.Bits())
	}
}
