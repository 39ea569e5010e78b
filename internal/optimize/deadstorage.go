// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// DeadStorage removes redundant storage loads and stores within a single
// basic block (spec.md §4.7). A second load from the same slot with no
// intervening store (or aliasing store) becomes a reference to the first
// load's destination; a store immediately superseded by another store to
// the same slot, with no intervening read, is removed. This
// implementation covers the required intra-block case; the optional
// straight-line-path extension spec.md §4.7 mentions is not attempted
// (an Open Question resolution, see DESIGN.md).
//
// Any barrier instruction (external call, revert, self-destruct, event
// emission, return) clears all tracked state: no store-removal or
// load-combine may cross it.
//
// PackGroups carries the contract's storage-packing layout
// (SPEC_FULL.md "Storage slot packing metadata"): two root slot keys
// listed as packed siblings alias each other for barrier purposes even
// though they are distinct storage roots, since a store to one may
// clobber the physical word the other's value also lives in. Pipeline
// populates this per contract from ir.Contract.Storage before Apply
// runs; a nil/empty map falls back to the plain same-root aliasing
// rule.
type DeadStorage struct {
	PackGroups map[string][]string
}

func (p *DeadStorage) Name() string { return "dead_storage" }
func (p *DeadStorage) Description() string {
	return "removes redundant storage loads and stores within a basic block"
}

func (p *DeadStorage) Apply(fn *ir.Function, sink *diag.Sink) bool {
	changed := false
	for _, b := range fn.Blocks {
		if optimizeStorageBlock(fn, b, p.PackGroups, sink, p.Name()) {
			changed = true
		}
	}
	return changed
}

// BuildPackGroups turns a contract's storage layout into the symmetric
// sibling map DeadStorage.PackGroups expects: if decl "a" lists
// PackWith ["b"], the resulting map holds both a->[b] and b->[a] so
// storageAliases can check either root's neighbour list.
func BuildPackGroups(storage []ir.StorageSlotDecl) map[string][]string {
	if len(storage) == 0 {
		return nil
	}
	groups := make(map[string][]string)
	for _, decl := range storage {
		for _, sibling := range decl.PackWith {
			groups[decl.Key] = append(groups[decl.Key], sibling)
			groups[sibling] = append(groups[sibling], decl.Key)
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}

// storeCandidate is an as-yet-unconfirmed-redundant store: removable if a
// later store to an aliasing slot arrives with no intervening read.
type storeCandidate struct {
	index int
	slot  *ir.StorageSlotExpr
	read  bool
}

// optimizeStorageBlock runs a single analysis pass over b recording which
// instruction indices to drop and which loads to rewrite as references,
// then applies both decisions in a second pass. sink/passName report the
// diagnostic witness for each rewrite (SPEC_FULL.md "Diagnostic witness
// report"); sink may be nil.
func optimizeStorageBlock(fn *ir.Function, b *ir.BasicBlock, packGroups map[string][]string, sink *diag.Sink, passName string) bool {
	removed := make(map[int]bool)
	rewriteLoad := make(map[int]ir.SlotID)

	var candidates []storeCandidate
	loadCache := make(map[string]ir.SlotID)

	for i, inst := range b.Instructions {
		switch n := inst.(type) {
		case *ir.StorageLoadInst:
			key, symbolic := canonicalStorageKey(n.Slot)
			if symbolic {
				markReads(candidates, n.Slot, packGroups)
				invalidateLoadCacheForRoot(loadCache, n.Slot.Root)
				continue
			}
			markReads(candidates, n.Slot, packGroups)
			if firstDst, ok := loadCache[key]; ok {
				rewriteLoad[i] = firstDst
			} else {
				loadCache[key] = n.Dst
			}

		case *ir.StorageStoreInst:
			for idx := range candidates {
				c := &candidates[idx]
				if !removed[c.index] && !c.read && storageAliases(c.slot, n.Slot, packGroups) {
					removed[c.index] = true
				}
			}
			candidates = append(candidates, storeCandidate{index: i, slot: n.Slot})
			invalidateLoadCacheForAlias(loadCache, n.Slot, packGroups)

		default:
			if inst.IsBarrier() {
				candidates = nil
				loadCache = make(map[string]ir.SlotID)
			}
		}
	}

	if len(removed) == 0 && len(rewriteLoad) == 0 {
		return false
	}

	kept := b.Instructions[:0]
	for i, inst := range b.Instructions {
		if removed[i] {
			if sink != nil {
				sink.Report(diag.Diagnostic{
					Severity: diag.Silent,
					Code:     diag.CodeStorageStoreElided,
					Pass:     passName,
					Message:  fn.Name + ": storage store superseded with no intervening read",
					Span:     fn.Spans[inst],
				})
			}
			continue
		}
		if dst, ok := rewriteLoad[i]; ok {
			load := inst.(*ir.StorageLoadInst)
			rewritten := &ir.AssignInst{Dst: load.Dst, Expr: &ir.VarRefExpr{Slot: dst, Type: load.Slot.Type}}
			fn.CopySpan(inst, rewritten)
			kept = append(kept, rewritten)
			if sink != nil {
				sink.Report(diag.Diagnostic{
					Severity: diag.Silent,
					Code:     diag.CodeStorageLoadCombined,
					Pass:     passName,
					Message:  fn.Name + ": redundant storage load combined with an earlier load",
					Span:     fn.Spans[inst],
				})
			}
			continue
		}
		kept = append(kept, inst)
	}
	b.Instructions = kept
	return true
}

func markReads(candidates []storeCandidate, slot *ir.StorageSlotExpr, packGroups map[string][]string) {
	for idx := range candidates {
		c := &candidates[idx]
		if storageAliases(c.slot, slot, packGroups) {
			c.read = true
		}
	}
}

// canonicalStorageKey returns a string uniquely identifying slot's
// (root, key) pair when the key is constant, and reports whether the key
// is instead symbolic (non-constant), per the aliasing model of §4.7.
func canonicalStorageKey(slot *ir.StorageSlotExpr) (key string, symbolic bool) {
	if slot.Key == nil {
		return slot.Root, false
	}
	if lit, ok := slot.Key.(*ir.LiteralExpr); ok {
		return slot.Root + "[" + lit.String() + "]", false
	}
	return slot.Root, true
}

// storageAliases implements §4.7's aliasing rule: identical after
// constant folding, or either side symbolic on the same root. Two
// distinct roots also alias when packGroups lists one as a packed
// sibling of the other (SPEC_FULL.md "Storage slot packing metadata"):
// a store to either may clobber the shared physical word.
func storageAliases(a, b *ir.StorageSlotExpr, packGroups map[string][]string) bool {
	if a.Root != b.Root {
		return packedSiblings(a.Root, b.Root, packGroups)
	}
	aKey, aSym := canonicalStorageKey(a)
	bKey, bSym := canonicalStorageKey(b)
	if aSym || bSym {
		return true
	}
	return aKey == bKey
}

func packedSiblings(root, other string, packGroups map[string][]string) bool {
	for _, sibling := range packGroups[root] {
		if sibling == other {
			return true
		}
	}
	return false
}

func invalidateLoadCacheForAlias(cache map[string]ir.SlotID, slot *ir.StorageSlotExpr, packGroups map[string][]string) {
	key, symbolic := canonicalStorageKey(slot)
	if symbolic {
		invalidateLoadCacheForRoot(cache, slot.Root)
		return
	}
	delete(cache, key)
	for _, sibling := range packGroups[slot.Root] {
		invalidateLoadCacheForRoot(cache, sibling)
	}
}

func invalidateLoadCacheForRoot(cache map[string]ir.SlotID, root string) {
	for key := range cache {
		if keyRoot(key) == root {
			delete(cache, key)
		}
	}
}

func keyRoot(key string) string {
	for i, c := range key {
		if c == '[' {
			return key[:i]
		}
	}
	return key
}
