// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"solmid/internal/bignum"
	"solmid/internal/dataflow"
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// StrengthReduction narrows wide arithmetic to a native machine width
// when the known-bits lattice proves every operand value fits that
// width, and rewrites multiply/divide by a power-of-two constant into a
// shift (spec.md §4.4). A multiply is only narrowed when the
// conservative product bound lo1*hi2+hi1*lo2 itself fits the native
// width, since narrowing the operands alone does not bound the product.
type StrengthReduction struct {
	// NativeWidth is the machine word width narrowing targets. The WASM
	// contracts pallet and the eBPF program runtime both expose 64-bit
	// native arithmetic beneath the 256-bit emulated type, so 64 is the
	// default; callers targeting a different backend may override it.
	NativeWidth int
}

func (p *StrengthReduction) Name() string { return "strength_reduce" }
func (p *StrengthReduction) Description() string {
	return "narrows wide arithmetic and rewrites power-of-two multiply/divide to shifts"
}

func (p *StrengthReduction) nativeWidth() int {
	if p.NativeWidth > 0 {
		return p.NativeWidth
	}
	return 64
}

func (p *StrengthReduction) Apply(fn *ir.Function, sink *diag.Sink) bool {
	bits := dataflow.Analyze(fn)
	changed := false

	for _, b := range fn.Blocks {
		local := cloneEntryBits(bits, b.ID)
		for i, inst := range b.Instructions {
			assign, ok := inst.(*ir.AssignInst)
			if !ok {
				advanceLocal(local, inst)
				continue
			}
			rewritten, did := p.reduceExpr(assign.Expr, local)
			if did {
				b.Instructions[i] = &ir.AssignInst{Dst: assign.Dst, Expr: rewritten}
				fn.CopySpan(inst, b.Instructions[i])
				changed = true
			}
			local[assign.Dst] = dataflowEval(local, assign.Expr)
		}
	}
	return changed
}

// reduceExpr applies the power-of-two rewrite and the width-narrowing
// rewrite to e's top-level binary operation, using local as the
// known-bits state at this program point.
func (p *StrengthReduction) reduceExpr(e ir.Expr, local map[ir.SlotID]dataflow.Bits) (ir.Expr, bool) {
	bin, ok := e.(*ir.BinaryExpr)
	if !ok {
		return e, false
	}
	it, isInt := bin.Type.(ir.IntType)
	if !isInt {
		return e, false
	}

	if rewritten, ok := p.reducePowerOfTwo(bin, it); ok {
		return rewritten, true
	}

	if !bin.Op.IsArithmetic() {
		return e, false
	}
	native := p.nativeWidth()
	if it.Bits <= native {
		return e, false
	}

	leftBits := evalLocalOrTop(local, bin.Left)
	rightBits := evalLocalOrTop(local, bin.Right)
	if !leftBits.FitsBits(native) || !rightBits.FitsBits(native) {
		return e, false
	}
	if bin.Op == ir.OpMul && !multiplyBoundFits(leftBits, rightBits, native) {
		return e, false
	}

	narrow := ir.IntType{Bits: native, Signed: it.Signed}
	narrowed := &ir.BinaryExpr{
		Op:    bin.Op,
		Left:  &ir.TruncateExpr{X: bin.Left, To: narrow},
		Right: &ir.TruncateExpr{X: bin.Right, To: narrow},
		Type:  narrow,
	}
	// spec.md §4.4: narrowing must be followed by "appropriate extension
	// of the result" back to the original declared width so the
	// rewrite's type matches the destination slot it is assigned to.
	return &ir.ExtendExpr{X: narrowed, To: it}, true
}

// reducePowerOfTwo rewrites x*c and x/c into shifts when c is a literal
// power of two (spec.md §4.4).
func (p *StrengthReduction) reducePowerOfTwo(bin *ir.BinaryExpr, it ir.IntType) (ir.Expr, bool) {
	if bin.Op != ir.OpMul && bin.Op != ir.OpDiv {
		return nil, false
	}
	lit, litOnRight := asIntLiteral(bin.Right)
	operand := bin.Left
	if !litOnRight {
		var ok bool
		lit, ok = asIntLiteral(bin.Left)
		if !ok || bin.Op == ir.OpDiv {
			// division by a variable reciprocal is not a valid rewrite
			return nil, false
		}
		operand = bin.Right
	}
	if lit == nil {
		return nil, false
	}
	shift, ok := lit.IsPowerOfTwo()
	if !ok {
		return nil, false
	}
	shiftAmount := intLiteral(bignum.FromUint64(uint64(shift)), it)
	op := ir.OpShl
	if bin.Op == ir.OpDiv {
		op = ir.OpShr
	}
	return &ir.BinaryExpr{Op: op, Left: operand, Right: shiftAmount, Type: it}, true
}

// multiplyBoundFits implements spec.md §4.4's conservative safety check
// for narrowing a multiply: lo1*hi2 + hi1*lo2 must itself fit the native
// width, since the tightest achievable product range is not simply
// lo*lo..hi*hi once cross terms are considered.
func multiplyBoundFits(a, b dataflow.Bits, native int) bool {
	aLo, aHi := rangeBounds(a)
	bLo, bHi := rangeBounds(b)
	if aLo == nil || bLo == nil {
		return false
	}
	bound := bignum.Add(bignum.Mul(aLo, bHi), bignum.Mul(aHi, bLo))
	return bound.FitsWidth(native, false)
}

func rangeBounds(b dataflow.Bits) (lo, hi *bignum.Int) {
	if b.IsConstant() {
		v := b.ConstantValue()
		return v, v
	}
	if b.Kind == dataflow.Range {
		return b.Lo, b.Hi
	}
	return nil, nil
}

func cloneEntryBits(fb *dataflow.FunctionBits, block ir.BlockID) map[ir.SlotID]dataflow.Bits {
	out := make(map[ir.SlotID]dataflow.Bits)
	for slot, bits := range fb.Entry[block] {
		out[slot] = bits
	}
	return out
}

func advanceLocal(local map[ir.SlotID]dataflow.Bits, inst ir.Instruction) {
	if s := inst.ResultSlot(); s != ir.InvalidSlot {
		local[s] = dataflow.TopBits(256)
	}
}

func evalLocalOrTop(local map[ir.SlotID]dataflow.Bits, e ir.Expr) dataflow.Bits {
	ref, ok := e.(*ir.VarRefExpr)
	if !ok {
		return dataflowEval(local, e)
	}
	if b, ok := local[ref.Slot]; ok {
		return b
	}
	return dataflow.TopBits(256)
}

// dataflowEval mirrors dataflow's unexported expression evaluator for the
// subset of nodes strength reduction needs (literals, refs, binary ops),
// since that evaluator is not part of dataflow's exported surface.
func dataflowEval(local map[ir.SlotID]dataflow.Bits, e ir.Expr) dataflow.Bits {
	switch n := e.(type) {
	case *ir.LiteralExpr:
		if n.Int != nil {
			if v, ok := n.Int.Value.(*bignum.Int); ok {
				return dataflow.ConcreteBits(v, widthOfType(n.Type))
			}
		}
		return dataflow.TopBits(widthOfType(n.Type))
	case *ir.VarRefExpr:
		if b, ok := local[n.Slot]; ok {
			return b
		}
		return dataflow.TopBits(widthOfType(n.Type))
	case *ir.BinaryExpr:
		return dataflow.TransferBinary(n.Op, dataflowEval(local, n.Left), dataflowEval(local, n.Right), widthOfType(n.Type))
	default:
		return dataflow.TopBits(256)
	}
}

func widthOfType(t ir.Type) int {
	if it, ok := t.(ir.IntType); ok {
		return it.Bits
	}
	return 256
}
