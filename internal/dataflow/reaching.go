// SPDX-License-Identifier: Apache-2.0

// Package dataflow implements the two analyses spec.md §4.2 requires:
// forward reaching-definitions and the known-bits lattice over integer
// slots. Both are demand-recomputed at the start of each pass that needs
// them (§4.2 "Both analyses are demand-recomputed..."); neither analysis
// mutates the CFG it observes.
package dataflow

import "solmid/internal/ir"

// DefSite names the (block, instruction-index) pair where a slot is
// defined. Terminators never define a slot, so Index always refers into
// BasicBlock.Instructions.
type DefSite struct {
	Block ir.BlockID
	Index int
}

// defSet is a small ordered set of DefSite, kept as a map for join
// efficiency and converted to a sorted slice only when stable iteration
// order is required (§5 "Ordering guarantees").
type defSet map[DefSite]bool

func (s defSet) clone() defSet {
	out := make(defSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func union(a, b defSet) defSet {
	out := a.clone()
	for k := range b {
		out[k] = true
	}
	return out
}

func equalSets(a, b defSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// ReachingDefs holds, for every block, the set of (slot, def-site) pairs
// that reach the block's entry and exit.
type ReachingDefs struct {
	In  map[ir.BlockID]map[ir.SlotID]defSet
	Out map[ir.BlockID]map[ir.SlotID]defSet
}

// ReachesEntry reports whether def is among the definitions of slot that
// reach the entry of block.
func (r *ReachingDefs) ReachesEntry(block ir.BlockID, slot ir.SlotID, def DefSite) bool {
	bySlot, ok := r.In[block]
	if !ok {
		return false
	}
	return bySlot[slot][def]
}

// DefsReachingEntry returns every def-site of slot reaching block's entry,
// in a stable (block, index) sorted order (§5).
func (r *ReachingDefs) DefsReachingEntry(block ir.BlockID, slot ir.SlotID) []DefSite {
	return sortedSites(r.In[block][slot])
}

func sortedSites(s defSet) []DefSite {
	out := make([]DefSite, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && (out[j-1].Block > out[j].Block ||
			(out[j-1].Block == out[j].Block && out[j-1].Index > out[j].Index)); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// predecessors computes each block's predecessor list from the function's
// successor edges.
func predecessors(fn *ir.Function) map[ir.BlockID][]ir.BlockID {
	preds := make(map[ir.BlockID][]ir.BlockID)
	for _, b := range fn.Blocks {
		for _, succ := range b.Successors() {
			preds[succ] = append(preds[succ], b.ID)
		}
	}
	return preds
}

// ComputeReachingDefs runs the forward, may, worklist-based reaching
// definitions analysis of spec.md §4.2. Iteration proceeds until the
// per-block sets reach a fixed point, which is guaranteed because every
// block's local def/kill sets are finite and monotone.
func ComputeReachingDefs(fn *ir.Function) *ReachingDefs {
	preds := predecessors(fn)

	// gen[b][slot] = def-sites generated by b for slot (only the last
	// definition of slot within b survives to the block's Out set, since
	// an intra-block redefinition kills the earlier one locally).
	gen := make(map[ir.BlockID]map[ir.SlotID]DefSite)
	// killSlots[b] = the set of slots b redefines at all (used to kill
	// incoming defs of that slot from predecessors).
	killSlots := make(map[ir.BlockID]map[ir.SlotID]bool)

	for _, b := range fn.Blocks {
		gen[b.ID] = make(map[ir.SlotID]DefSite)
		killSlots[b.ID] = make(map[ir.SlotID]bool)
		for idx, inst := range b.Instructions {
			dst := inst.ResultSlot()
			if dst == ir.InvalidSlot {
				continue
			}
			gen[b.ID][dst] = DefSite{Block: b.ID, Index: idx}
			killSlots[b.ID][dst] = true
		}
	}

	result := &ReachingDefs{
		In:  make(map[ir.BlockID]map[ir.SlotID]defSet),
		Out: make(map[ir.BlockID]map[ir.SlotID]defSet),
	}
	for _, b := range fn.Blocks {
		result.In[b.ID] = make(map[ir.SlotID]defSet)
		result.Out[b.ID] = make(map[ir.SlotID]defSet)
	}

	worklist := make([]ir.BlockID, 0, len(fn.Blocks))
	for _, b := range fn.Blocks {
		worklist = append(worklist, b.ID)
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]

		in := make(map[ir.SlotID]defSet)
		for _, p := range preds[b] {
			for slot, defs := range result.Out[p] {
				in[slot] = union(in[slot], defs)
			}
		}

		out := make(map[ir.SlotID]defSet)
		for slot, defs := range in {
			if killSlots[b][slot] {
				continue // killed by a redefinition within b
			}
			out[slot] = defs.clone()
		}
		for slot, site := range gen[b] {
			out[slot] = defSet{site: true}
		}

		changed := !slotMapEqual(result.In[b], in) || !slotMapEqual(result.Out[b], out)
		result.In[b] = in
		result.Out[b] = out

		if changed {
			// Revisit successors; a fixed point is reached when no block's
			// In/Out sets change in a full pass (finite height: the
			// lattice is bounded by the total number of def-sites).
			for _, succ := range blockSuccessors(fn, b) {
				worklist = append(worklist, succ)
			}
		}
	}

	return result
}

func slotMapEqual(a, b map[ir.SlotID]defSet) bool {
	if len(a) != len(b) {
		return false
	}
	for slot, defs := range a {
		if !equalSets(defs, b[slot]) {
			return false
		}
	}
	return true
}

func blockSuccessors(fn *ir.Function, id ir.BlockID) []ir.BlockID {
	b := fn.Block(id)
	if b == nil {
		return nil
	}
	return b.Successors()
}
