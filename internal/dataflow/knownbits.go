// SPDX-License-Identifier: Apache-2.0
package dataflow

import (
	"github.com/bits-and-blooms/bitset"

	"solmid/internal/bignum"
	"solmid/internal/ir"
)

// Kind is the known-bits lattice's discriminant. Rank order
// (Bottom < Concrete < Range < Mask < Top) gives the lattice its finite
// height: Join never returns a strictly lower-ranked kind than the
// highest-ranked input, so a slot visited repeatedly in a fixed-point
// loop can be joined at most four times before settling at Top, which
// bounds the dataflow iteration (§4.2 "finite height").
type Kind int

const (
	Bottom Kind = iota
	Concrete
	Range
	Mask
	Top
)

// Bits is one lattice element over an integer slot.
type Bits struct {
	Kind Kind

	// Value holds the exact value when Kind == Concrete.
	Value *bignum.Int

	// Lo, Hi bound the value (inclusive) when Kind == Range.
	Lo, Hi *bignum.Int

	// ZeroMask/OneMask record bits certainly 0 / certainly 1 when
	// Kind == Mask. A bit set in both would be a contradiction and never
	// occurs by construction.
	ZeroMask, OneMask *bitset.BitSet

	Width int
}

// BottomBits is the unreached element.
func BottomBits() Bits { return Bits{Kind: Bottom} }

// TopBits is the fully-unknown element.
func TopBits(width int) Bits { return Bits{Kind: Top, Width: width} }

// ConcreteBits wraps a single known value.
func ConcreteBits(v *bignum.Int, width int) Bits {
	return Bits{Kind: Concrete, Value: v, Width: width}
}

// RangeBits wraps an inclusive [lo, hi] bound. Per §4.2, width must be
// ≤ the native-word bits the backend supports for a range to be useful to
// strength reduction; callers needing wider ranges use Concrete or Top.
func RangeBits(lo, hi *bignum.Int, width int) Bits {
	return Bits{Kind: Range, Lo: lo, Hi: hi, Width: width}
}

// IsConstant reports whether b pins down an exact value, either directly
// (Concrete) or because its range has collapsed to a single point.
func (b Bits) IsConstant() bool {
	if b.Kind == Concrete {
		return true
	}
	if b.Kind == Range && b.Lo != nil && b.Hi != nil {
		return bignum.Cmp(b.Lo, b.Hi) == 0
	}
	return false
}

// ConstantValue returns the pinned-down value; only valid when
// IsConstant() is true.
func (b Bits) ConstantValue() *bignum.Int {
	if b.Kind == Concrete {
		return b.Value
	}
	return b.Lo
}

// FitsBits reports whether every concretely possible value b can take is
// representable in the given native width, i.e. whether strength
// reduction may safely narrow an operation using b to that width
// (§4.4).
func (b Bits) FitsBits(nativeWidth int) bool {
	switch b.Kind {
	case Bottom:
		return true // unreached: any narrowing is vacuously safe
	case Concrete:
		return b.Value.FitsWidth(nativeWidth, false)
	case Range:
		if b.Lo == nil || b.Hi == nil {
			return false
		}
		return b.Lo.FitsWidth(nativeWidth, false) && b.Hi.FitsWidth(nativeWidth, false)
	default:
		return false // Mask/Top: upper bound unknown at the top, per §4.4
	}
}

// Join computes the pointwise meet/union of a and b (§4.2). Bottom is the
// identity; mixing incompatible non-bottom kinds conservatively widens to
// Top rather than attempting a cross-kind reconciliation, keeping the
// lattice's height finite and the implementation auditable.
func Join(a, b Bits) Bits {
	if a.Kind == Bottom {
		return b
	}
	if b.Kind == Bottom {
		return a
	}
	if a.Kind == Top || b.Kind == Top {
		return TopBits(maxWidth(a.Width, b.Width))
	}
	if a.Kind == Concrete && b.Kind == Concrete {
		if bignum.Cmp(a.Value, b.Value) == 0 {
			return a
		}
		return joinToRange(a.Value, a.Value, b.Value, b.Value, a.Width, b.Width)
	}
	if (a.Kind == Concrete || a.Kind == Range) && (b.Kind == Concrete || b.Kind == Range) {
		aLo, aHi := rangeOf(a)
		bLo, bHi := rangeOf(b)
		return joinToRange(aLo, aHi, bLo, bHi, a.Width, b.Width)
	}
	if a.Kind == Mask && b.Kind == Mask {
		zero := a.ZeroMask.Clone().InPlaceIntersection(b.ZeroMask)
		one := a.OneMask.Clone().InPlaceIntersection(b.OneMask)
		return Bits{Kind: Mask, ZeroMask: zero, OneMask: one, Width: maxWidth(a.Width, b.Width)}
	}
	return TopBits(maxWidth(a.Width, b.Width))
}

func rangeOf(b Bits) (lo, hi *bignum.Int) {
	if b.Kind == Concrete {
		return b.Value, b.Value
	}
	return b.Lo, b.Hi
}

func joinToRange(aLo, aHi, bLo, bHi *bignum.Int, aw, bw int) Bits {
	lo := aLo
	if bignum.Cmp(bLo, lo) < 0 {
		lo = bLo
	}
	hi := aHi
	if bignum.Cmp(bHi, hi) > 0 {
		hi = bHi
	}
	return RangeBits(lo, hi, maxWidth(aw, bw))
}

func maxWidth(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// TransferBinary computes the output lattice element for a binary
// operation given its operands' lattice elements, per §4.2: "each
// operation's output lattice element is the tightest element that safely
// bounds all concretely possible outputs given the inputs." This
// implementation covers the arithmetic/bitwise/comparison operators
// constant folding and strength reduction need; anything it cannot bound
// tightly, it reports as Top rather than guess.
func TransferBinary(op ir.BinaryOp, a, b Bits, resultWidth int) Bits {
	if a.Kind == Bottom || b.Kind == Bottom {
		return BottomBits()
	}
	if op.IsComparison() {
		return transferComparison(op, a, b)
	}
	if a.IsConstant() && b.IsConstant() {
		if v, ok := evalConstBinary(op, a.ConstantValue(), b.ConstantValue()); ok {
			return ConcreteBits(v, resultWidth)
		}
		return TopBits(resultWidth)
	}
	if (a.Kind == Concrete || a.Kind == Range) && (b.Kind == Concrete || b.Kind == Range) {
		return transferRangeArith(op, a, b, resultWidth)
	}
	return TopBits(resultWidth)
}

func evalConstBinary(op ir.BinaryOp, a, b *bignum.Int) (*bignum.Int, bool) {
	switch op {
	case ir.OpAdd:
		return bignum.Add(a, b), true
	case ir.OpSub:
		return bignum.Sub(a, b), true
	case ir.OpMul:
		return bignum.Mul(a, b), true
	case ir.OpAnd:
		return bignum.And(a, b), true
	case ir.OpOr:
		return bignum.Or(a, b), true
	case ir.OpXor:
		return bignum.Xor(a, b), true
	}
	return nil, false
}

func transferRangeArith(op ir.BinaryOp, a, b Bits, width int) Bits {
	aLo, aHi := rangeOf(a)
	bLo, bHi := rangeOf(b)
	switch op {
	case ir.OpAdd:
		return RangeBits(bignum.Add(aLo, bLo), bignum.Add(aHi, bHi), width)
	case ir.OpSub:
		lo := bignum.Sub(aLo, bHi)
		if lo.Sign() < 0 {
			// Unsigned subtraction can't safely bound below zero without
			// knowing the operation is checked; report Top rather than a
			// wrong-signed range.
			return TopBits(width)
		}
		return RangeBits(lo, bignum.Sub(aHi, bLo), width)
	case ir.OpMul:
		// §4.4's own bound: lo1*hi2 + hi1*lo2 is the conservative upper
		// limit used to decide whether a narrowing rewrite is safe; here
		// we instead want the tightest *range*, so lo*lo..hi*hi suffices
		// for non-negative operands (the only case reached, since
		// constant folding/strength reduction only narrow unsigned
		// arithmetic at wide widths).
		if aLo.Sign() < 0 || bLo.Sign() < 0 {
			return TopBits(width)
		}
		return RangeBits(bignum.Mul(aLo, bLo), bignum.Mul(aHi, bHi), width)
	}
	return TopBits(width)
}

func transferComparison(op ir.BinaryOp, a, b Bits) Bits {
	if a.IsConstant() && b.IsConstant() {
		cmp := bignum.Cmp(a.ConstantValue(), b.ConstantValue())
		var result bool
		switch op {
		case ir.OpEq:
			result = cmp == 0
		case ir.OpNeq:
			result = cmp != 0
		case ir.OpLt:
			result = cmp < 0
		case ir.OpLte:
			result = cmp <= 0
		case ir.OpGt:
			result = cmp > 0
		case ir.OpGte:
			result = cmp >= 0
		default:
			return TopBits(1)
		}
		v := bignum.FromUint64(0)
		if result {
			v = bignum.FromUint64(1)
		}
		return ConcreteBits(v, 1)
	}
	return TopBits(1)
}

// RefineLtTrue implements §4.2's dedicated rule: on the true edge of
// `x < bound`, x's range narrows to [0, bound). This is essential for
// proving loop-index bounds checks redundant (§4.5, §8 property 10).
func RefineLtTrue(bound *bignum.Int, width int) Bits {
	hi := bignum.Sub(bound, bignum.FromUint64(1))
	return RangeBits(bignum.FromUint64(0), hi, width)
}
