// SPDX-License-Identifier: Apache-2.0

// Package bignum implements the arbitrary-precision arithmetic constant
// folding requires (spec.md §4.3, §9): evaluation happens at full
// precision, then the result is checked against the operand's declared
// width before it is allowed to replace an expression. A 257-bit signed
// accumulator is needed to detect overflow of the int256 type, since the
// difference of two int256 extremes does not fit in 256 bits.
//
// Most Solidity arithmetic is uint256, so the common path is backed by
// github.com/holiman/uint256, the same fixed-width 256-bit unsigned
// integer go-ethereum uses internally; math/big is the fallback for
// signed values and for widths/operations uint256.Int cannot represent
// (shifts past 256, intermediate products that overflow 256 bits during
// evaluation, modulo by zero detection).
package bignum

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Int is an arbitrary-precision integer value used by constant folding.
// It satisfies the ir.Bignum interface without internal/ir importing this
// package, keeping the dependency direction leaf-ward (§3 "Ownership":
// optimize/dataflow depend on ir and bignum, never the reverse).
type Int struct {
	big *big.Int
	// u256 mirrors big whenever the value is non-negative and fits in 256
	// bits; nil otherwise. Kept in sync by every constructor and operation
	// in this file so callers get the uint256 fast path for free.
	u256 *uint256.Int
}

// FromUint64 builds an Int from a native unsigned value.
func FromUint64(v uint64) *Int {
	return &Int{big: new(big.Int).SetUint64(v), u256: uint256.NewInt(v)}
}

// FromBig builds an Int from an arbitrary math/big.Int, computing the
// uint256 mirror when possible.
func FromBig(v *big.Int) *Int {
	i := &Int{big: new(big.Int).Set(v)}
	if v.Sign() >= 0 && v.BitLen() <= 256 {
		u, overflow := uint256.FromBig(v)
		if !overflow {
			i.u256 = u
		}
	}
	return i
}

// FromBytes interprets b as a big-endian unsigned integer (used for byte
// sequence literals folded through hash builtins, §4.3).
func FromBytes(b []byte) *Int {
	return FromBig(new(big.Int).SetBytes(b))
}

// Big returns the underlying arbitrary-precision value. Callers must not
// mutate the result.
func (i *Int) Big() *big.Int { return i.big }

// Sign returns -1, 0, or 1.
func (i *Int) Sign() int { return i.big.Sign() }

// String renders the decimal value.
func (i *Int) String() string { return i.big.String() }

// FitsWidth reports whether i fits in a declared integer type of the
// given bit width and signedness, using two's-complement range rules. A
// negative value never fits an unsigned type.
func (i *Int) FitsWidth(bits int, signed bool) bool {
	if !signed {
		if i.big.Sign() < 0 {
			return false
		}
		max := maxUnsigned(bits)
		return i.big.Cmp(max) <= 0
	}
	lo, hi := signedRange(bits)
	return i.big.Cmp(lo) >= 0 && i.big.Cmp(hi) <= 0
}

func maxUnsigned(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return max.Sub(max, big.NewInt(1))
}

func signedRange(bits int) (lo, hi *big.Int) {
	hi = new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	hi.Sub(hi, big.NewInt(1))
	lo = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(bits-1)))
	return lo, hi
}

// fastPath reports whether a and b are both representable in unsigned
// 256-bit form, letting an operation use uint256.Int arithmetic directly
// instead of math/big.
func fastPath(a, b *Int) bool { return a.u256 != nil && b.u256 != nil }

// Add returns a+b evaluated at full precision (never overflows: the
// result may exceed any declared width, which is exactly what the width
// check in the caller is for).
func Add(a, b *Int) *Int {
	if fastPath(a, b) {
		var r uint256.Int
		overflow := r.AddOverflow(a.u256, b.u256)
		if !overflow {
			return &Int{big: r.ToBig(), u256: &r}
		}
	}
	return FromBig(new(big.Int).Add(a.big, b.big))
}

// Sub returns a-b evaluated at full precision (may be negative even for
// unsigned operands; the width check catches that when folding back to
// an unsigned declared type).
func Sub(a, b *Int) *Int {
	if fastPath(a, b) && a.u256.Cmp(b.u256) >= 0 {
		var r uint256.Int
		r.Sub(a.u256, b.u256)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Sub(a.big, b.big))
}

// Mul returns a*b evaluated at full precision.
func Mul(a, b *Int) *Int {
	if fastPath(a, b) {
		var r uint256.Int
		overflow := r.MulOverflow(a.u256, b.u256)
		if !overflow {
			return &Int{big: r.ToBig(), u256: &r}
		}
	}
	return FromBig(new(big.Int).Mul(a.big, b.big))
}

// Div returns the truncated quotient a/b. The caller is responsible for
// not calling this with a zero divisor: spec.md §4.3 requires division by
// a literal zero to be left unfolded, not evaluated.
func Div(a, b *Int) *Int {
	if fastPath(a, b) && b.u256.Sign() != 0 {
		var r uint256.Int
		r.Div(a.u256, b.u256)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Quo(a.big, b.big))
}

// Mod returns a%b, same zero-divisor caveat as Div.
func Mod(a, b *Int) *Int {
	if fastPath(a, b) && b.u256.Sign() != 0 {
		var r uint256.Int
		r.Mod(a.u256, b.u256)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Rem(a.big, b.big))
}

// Exp returns a**b. Solidity's ** operator only accepts non-negative
// exponents; callers must ensure that upstream.
func Exp(a, b *Int) *Int {
	return FromBig(new(big.Int).Exp(a.big, b.big, nil))
}

// And, Or, Xor implement the bitwise operators over two's-complement
// representations; folded only for non-negative operands by the caller
// (constant folding never reaches these for negative bitwise operands,
// since Solidity's bitwise operators are defined over fixed-width
// registers, not arbitrary precision).
func And(a, b *Int) *Int {
	if fastPath(a, b) {
		var r uint256.Int
		r.And(a.u256, b.u256)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).And(a.big, b.big))
}

func Or(a, b *Int) *Int {
	if fastPath(a, b) {
		var r uint256.Int
		r.Or(a.u256, b.u256)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Or(a.big, b.big))
}

func Xor(a, b *Int) *Int {
	if fastPath(a, b) {
		var r uint256.Int
		r.Xor(a.u256, b.u256)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Xor(a.big, b.big))
}

// Shl and Shr implement logical shifts by a native shift count.
func Shl(a *Int, shift uint) *Int {
	if a.u256 != nil && uint(a.big.BitLen())+shift <= 256 {
		var r uint256.Int
		r.Lsh(a.u256, shift)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Lsh(a.big, shift))
}

func Shr(a *Int, shift uint) *Int {
	if a.u256 != nil {
		var r uint256.Int
		r.Rsh(a.u256, shift)
		return &Int{big: r.ToBig(), u256: &r}
	}
	return FromBig(new(big.Int).Rsh(a.big, shift))
}

// Cmp compares a and b as signed arbitrary-precision values.
func Cmp(a, b *Int) int { return a.big.Cmp(b.big) }

// IsPowerOfTwo reports whether i is a positive power of two, used by
// strength reduction to rewrite * and / by that constant into shifts
// (§4.4).
func (i *Int) IsPowerOfTwo() (shift uint, ok bool) {
	if i.big.Sign() <= 0 {
		return 0, false
	}
	if i.big.BitLen() == 0 {
		return 0, false
	}
	// Power of two iff exactly one bit set.
	bits := i.big.BitLen()
	if new(big.Int).Lsh(big.NewInt(1), uint(bits-1)).Cmp(i.big) == 0 {
		return uint(bits - 1), true
	}
	return 0, false
}

// Signed257 is a 257-bit-capable signed accumulator, used wherever a
// computation over two int256 extremes could overflow 256 bits (§9).
// It is a thin alias over *Int/math/big: math/big has no fixed width, so
// "257-bit" describes the guarantee (never truncates), not a storage
// layout.
type Signed257 = Int

// NewSigned257 builds a Signed257 from a native signed value.
func NewSigned257(v int64) *Signed257 {
	return FromBig(big.NewInt(v))
}
