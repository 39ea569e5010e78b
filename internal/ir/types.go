// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// Type is the closed set of value types the optimizer's IR carries. Every
// expression and every instruction result records one of these; implicit
// conversions are rejected (see BinaryExpr / ExtendExpr / TruncateExpr /
// CastExpr) so that 256-bit arithmetic errors surface as type mismatches
// rather than silently wrong bit widths.
type Type interface {
	String() string
	equalType(Type) bool
}

// BoolType is the single-bit boolean type.
type BoolType struct{}

func (BoolType) String() string { return "bool" }
func (BoolType) equalType(o Type) bool {
	_, ok := o.(BoolType)
	return ok
}

// IntType is a signed or unsigned integer of width 8-256 bits, in multiples
// of 8.
type IntType struct {
	Bits   int
	Signed bool
}

func (t IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

func (t IntType) equalType(o Type) bool {
	ot, ok := o.(IntType)
	return ok && ot.Bits == t.Bits && ot.Signed == t.Signed
}

// FixedBytesType is a fixed-length byte array of 1-32 bytes (Solidity's
// bytesN).
type FixedBytesType struct {
	Len int
}

func (t FixedBytesType) String() string { return fmt.Sprintf("bytes%d", t.Len) }
func (t FixedBytesType) equalType(o Type) bool {
	ot, ok := o.(FixedBytesType)
	return ok && ot.Len == t.Len
}

// BytesFlavor distinguishes the two ownership flavours of variable-length
// byte data. A Vector is a heap-owned, mutable buffer; a Slice is a
// read-only (pointer, length) pair into initializer memory. See §4.9.
type BytesFlavor int

const (
	FlavorVector BytesFlavor = iota
	FlavorSlice
)

func (f BytesFlavor) String() string {
	if f == FlavorSlice {
		return "slice"
	}
	return "vector"
}

// BytesType is the variable-length byte array type (also used, aliased, for
// Solidity's `string`).
type BytesType struct {
	Flavor   BytesFlavor
	IsString bool
}

func (t BytesType) String() string {
	name := "bytes"
	if t.IsString {
		name = "string"
	}
	return fmt.Sprintf("%s<%s>", name, t.Flavor)
}

func (t BytesType) equalType(o Type) bool {
	ot, ok := o.(BytesType)
	// Vector and slice are type-compatible for reads: the vector-to-slice
	// pass demotes one to the other without changing any downstream
	// expression's declared type (§4.9).
	return ok && ot.IsString == t.IsString
}

// AddressType is the chain-address type; its width is a backend parameter
// (20 bytes on the eBPF program runtime, 32 on the WASM contracts pallet).
type AddressType struct {
	Width int
}

func (t AddressType) String() string { return fmt.Sprintf("address%d", t.Width) }
func (t AddressType) equalType(o Type) bool {
	ot, ok := o.(AddressType)
	return ok && ot.Width == t.Width
}

// StorageRefType is the type of a resolved contract-storage location.
type StorageRefType struct {
	Elem Type
}

func (t StorageRefType) String() string { return fmt.Sprintf("storage<%s>", t.Elem) }
func (t StorageRefType) equalType(o Type) bool {
	ot, ok := o.(StorageRefType)
	return ok && ot.Elem.equalType(t.Elem)
}

// ArrayType is a fixed- or dynamic-length array of any type. Len is -1 for
// a dynamic array; dynamic arrays carry a companion length slot (§3
// "Auxiliary slot contracts for arrays").
type ArrayType struct {
	Elem Type
	Len  int
}

func (t ArrayType) String() string {
	if t.Len < 0 {
		return fmt.Sprintf("%s[]", t.Elem)
	}
	return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
}

func (t ArrayType) equalType(o Type) bool {
	ot, ok := o.(ArrayType)
	return ok && ot.Len == t.Len && ot.Elem.equalType(t.Elem)
}

// MappingType is a mapping from key-type to value-type.
type MappingType struct {
	Key   Type
	Value Type
}

func (t MappingType) String() string { return fmt.Sprintf("mapping(%s => %s)", t.Key, t.Value) }
func (t MappingType) equalType(o Type) bool {
	ot, ok := o.(MappingType)
	return ok && ot.Key.equalType(t.Key) && ot.Value.equalType(t.Value)
}

// StructField is one ordered, named field of a StructType.
type StructField struct {
	Name string
	Type Type
}

// StructType is an ordered collection of named fields.
type StructType struct {
	Name   string
	Fields []StructField
}

func (t StructType) String() string { return t.Name }
func (t StructType) equalType(o Type) bool {
	ot, ok := o.(StructType)
	return ok && ot.Name == t.Name
}

// EnumType is a user-defined enumeration, represented as an unsigned
// integer sized to the number of variants.
type EnumType struct {
	Name     string
	Variants []string
}

func (t EnumType) String() string { return t.Name }
func (t EnumType) equalType(o Type) bool {
	ot, ok := o.(EnumType)
	return ok && ot.Name == t.Name
}

// Bits returns the narrowest unsigned width that can index every variant.
func (t EnumType) Bits() int {
	n := len(t.Variants)
	bits := 8
	for (1 << bits) < n {
		bits += 8
	}
	return bits
}

// SameType reports whether a and b are identical per the language's
// rigid equality rule: operand types must match exactly, never implicitly
// convert (§4.1).
func SameType(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.equalType(b)
}
