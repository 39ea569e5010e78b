// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"solmid/internal/bignum"
	"solmid/internal/dataflow"
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// BoundsElimination removes a BoundsCheckInst when the known-bits lattice
// already proves 0 <= index < length at that program point, and replaces
// a dynamic array's `.length` read with a literal when its companion
// length slot is known exactly (spec.md §4.5). Function-parameter arrays
// carry Top length, so this never fires on an unchecked caller-supplied
// array.
type BoundsElimination struct{}

func (p *BoundsElimination) Name() string { return "bounds_elimination" }
func (p *BoundsElimination) Description() string {
	return "removes array bounds checks proven redundant by known-bits range analysis"
}

func (p *BoundsElimination) Apply(fn *ir.Function, sink *diag.Sink) bool {
	bits := dataflow.Analyze(fn)
	changed := false

	paramSlots := make(map[ir.SlotID]bool)
	for _, p := range fn.Params {
		paramSlots[p] = true
	}

	lengthSlots := make(map[ir.SlotID]bool)
	for _, lenSlot := range fn.ArrayLenSlots {
		lengthSlots[lenSlot] = true
	}

	for _, b := range fn.Blocks {
		local := cloneEntryBits(bits, b.ID)
		seenChecks := make(map[string]bool)
		defIndex := make(map[ir.SlotID]int)
		kept := b.Instructions[:0]
		for i, inst := range b.Instructions {
			check, ok := inst.(*ir.BoundsCheckInst)
			if ok {
				if boundsProvenSafe(check, local, paramSlots) {
					changed = true
					if sink != nil {
						sink.Report(diag.Diagnostic{
							Severity: diag.Silent,
							Code:     diag.CodeBoundsCheckEliminated,
							Pass:     p.Name(),
							Message:  fn.Name + ": bounds check proven redundant by known-bits range",
							Span:     fn.Spans[inst],
						})
					}
					continue // drop the now-redundant check
				}
				// spec.md §4.5's tie-break: two subscripts that alias to
				// the identical (index, length) pair need no lattice
				// proof at all — the first check already covers every
				// later occurrence, structurally, regardless of whether
				// either is provable on its own.
				if sig, ok := boundsCheckSignature(check, defIndex); ok {
					if seenChecks[sig] {
						changed = true
						if sink != nil {
							sink.Report(diag.Diagnostic{
								Severity: diag.Silent,
								Code:     diag.CodeBoundsCheckEliminated,
								Pass:     p.Name(),
								Message:  fn.Name + ": bounds check eliminated as a duplicate of an earlier identical check",
								Span:     fn.Spans[inst],
							})
						}
						continue
					}
					seenChecks[sig] = true
				}
			}
			if assign, ok := inst.(*ir.AssignInst); ok {
				if rewritten, did := replaceKnownLength(assign.Expr, local, lengthSlots); did {
					original := inst
					inst = &ir.AssignInst{Dst: assign.Dst, Expr: rewritten}
					fn.CopySpan(original, inst)
					changed = true
					if sink != nil {
						sink.Report(diag.Diagnostic{
							Severity: diag.Silent,
							Code:     diag.CodeLengthKnown,
							Pass:     p.Name(),
							Message:  fn.Name + ": array length read replaced by known constant",
							Span:     fn.Spans[inst],
						})
					}
				}
			}
			kept = append(kept, inst)
			advanceLocal(local, inst)
			if dst := inst.ResultSlot(); dst != ir.InvalidSlot {
				defIndex[dst] = i
			}
		}
		b.Instructions = kept
	}
	return changed
}

// boundsCheckSignature builds a structural key for check's (index, length)
// pair, reusing cse's reaching-definitions-aware expression signature so
// that two checks only collide when neither operand's slot was redefined
// between them (spec.md §4.5's redundant-check tie-break).
func boundsCheckSignature(check *ir.BoundsCheckInst, defIndex map[ir.SlotID]int) (string, bool) {
	idxSig, ok := signatureOf(check.Index, defIndex)
	if !ok {
		return "", false
	}
	lenSig, ok := signatureOf(check.Length, defIndex)
	if !ok {
		return "", false
	}
	return idxSig + "<" + lenSig, true
}

// replaceKnownLength rewrites a direct read of a companion length slot
// (`VarRefExpr` over a slot in fn.ArrayLenSlots) into a literal when the
// known-bits state pins that slot to an exact value.
func replaceKnownLength(e ir.Expr, local map[ir.SlotID]dataflow.Bits, lengthSlots map[ir.SlotID]bool) (ir.Expr, bool) {
	ref, ok := e.(*ir.VarRefExpr)
	if !ok || !lengthSlots[ref.Slot] {
		return e, false
	}
	bits, ok := local[ref.Slot]
	if !ok || !bits.IsConstant() {
		return e, false
	}
	return intLiteral(bits.ConstantValue(), ref.Type), true
}

// boundsProvenSafe reports whether index is provably in [0, length) given
// the known-bits state at this program point, per the dedicated
// `RefineLtTrue` propagation rule of §4.2/§4.5.
func boundsProvenSafe(check *ir.BoundsCheckInst, local map[ir.SlotID]dataflow.Bits, paramSlots map[ir.SlotID]bool) bool {
	idxRef, ok := check.Index.(*ir.VarRefExpr)
	if !ok {
		return false
	}
	if paramSlots[idxRef.Slot] {
		return false // caller-supplied index: its range is unknown, never provably safe
	}
	idxBits, ok := local[idxRef.Slot]
	if !ok {
		return false
	}
	lenBits := evalLocalOrTop(local, check.Length)

	idxLo, idxHi := rangeBounds(idxBits)
	if idxLo == nil {
		return false
	}
	if idxLo.Sign() < 0 {
		return false
	}
	if !lenBits.IsConstant() {
		return false
	}
	lenVal := lenBits.ConstantValue()
	return bignum.Cmp(idxHi, lenVal) < 0
}
