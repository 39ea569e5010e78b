// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// VectorToSlice demotes a byte vector allocation to a read-only slice
// when the destination slot is never mutated anywhere in the function
// (spec.md §4.9): no push/pop, no use as an argument to an internal or
// external call or contract creation (this IR has no by-value/by-ref
// argument distinction, so any such use is conservatively treated as a
// possible mutation), and no cast from a `string`-flavoured vector to a
// plain `bytes`. It runs last in the pipeline, after CSE, so that a
// CSE-introduced alias of the allocation has already been accounted for
// in the mutation scan.
type VectorToSlice struct {
	// LogRuntimeErrors and LogPrints mirror the same-named pipeline
	// flags. A PrintInst never mutates its arguments regardless of
	// their setting, so they do not gate demotion eligibility here;
	// they are accepted to keep this pass's construction symmetric
	// with the rest of the pipeline's release-mode wiring.
	LogRuntimeErrors bool
	LogPrints        bool
}

func (p *VectorToSlice) Name() string { return "vector_to_slice" }
func (p *VectorToSlice) Description() string {
	return "demotes never-mutated byte vectors to read-only slices"
}

func (p *VectorToSlice) Apply(fn *ir.Function, sink *diag.Sink) bool {
	sites := make(map[ir.SlotID]*ir.AssignInst)
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			assign, ok := inst.(*ir.AssignInst)
			if !ok {
				continue
			}
			if _, ok := assign.Expr.(*ir.AllocVectorExpr); ok {
				sites[assign.Dst] = assign
			}
		}
	}
	if len(sites) == 0 {
		return false
	}

	mutated := make(map[ir.SlotID]bool)
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			scanForMutation(inst, sites, mutated)
		}
		if b.Terminator != nil {
			scanForMutation(b.Terminator, sites, mutated)
		}
	}

	changed := false
	for slot, assign := range sites {
		if mutated[slot] {
			continue
		}
		alloc := assign.Expr.(*ir.AllocVectorExpr)
		sliceType := alloc.Type
		if bt, ok := alloc.Type.(ir.BytesType); ok {
			sliceType = ir.BytesType{Flavor: ir.FlavorSlice, IsString: bt.IsString}
		}
		assign.Expr = &ir.SliceLiteralExpr{Init: alloc.Init, Type: sliceType}
		changed = true
		if sink != nil {
			sink.Report(diag.Diagnostic{
				Severity: diag.Silent,
				Code:     diag.CodeVectorDemoted,
				Pass:     p.Name(),
				Message:  fn.Name + ": byte vector demoted to slice",
				Span:     fn.Spans[assign],
			})
		}
	}
	return changed
}

// scanForMutation inspects inst for a use of any slot in sites that
// disqualifies that slot's allocation from demotion, per spec.md §4.9's
// "no element write, no push/pop, no passing as mutable argument, no
// conversion to bytes when originally string".
func scanForMutation(inst ir.Instruction, sites map[ir.SlotID]*ir.AssignInst, mutated map[ir.SlotID]bool) {
	switch n := inst.(type) {
	case *ir.ArrayPushInst:
		if slot, ok := slotOf(n.Array); ok {
			if _, isVector := sites[slot]; isVector {
				mutated[slot] = true
			}
		}
	case *ir.ArrayPopInst:
		if slot, ok := slotOf(n.Array); ok {
			if _, isVector := sites[slot]; isVector {
				mutated[slot] = true
			}
		}
	case *ir.CallExternalInst:
		markArgsMutated(n.Args, sites, mutated)
	case *ir.CallInternalInst:
		markArgsMutated(n.Args, sites, mutated)
	case *ir.CreateContractInst:
		markArgsMutated(n.Args, sites, mutated)
	}

	for _, op := range inst.Operands() {
		scanExprForCast(op, sites, mutated)
	}
}

func markArgsMutated(args []ir.Expr, sites map[ir.SlotID]*ir.AssignInst, mutated map[ir.SlotID]bool) {
	for _, arg := range args {
		if slot, ok := slotOf(arg); ok {
			if _, isVector := sites[slot]; isVector {
				mutated[slot] = true
			}
		}
	}
}

func slotOf(e ir.Expr) (ir.SlotID, bool) {
	ref, ok := e.(*ir.VarRefExpr)
	if !ok {
		return 0, false
	}
	return ref.Slot, true
}

// scanExprForCast walks e looking for a CastExpr that narrows a
// string-flavoured vector slot to a plain, non-string bytes type — the
// one conversion spec.md §4.9 calls out as disqualifying on its own.
func scanExprForCast(e ir.Expr, sites map[ir.SlotID]*ir.AssignInst, mutated map[ir.SlotID]bool) {
	if e == nil {
		return
	}
	if cast, ok := e.(*ir.CastExpr); ok {
		if slot, ok := slotOf(cast.X); ok {
			if site, isVector := sites[slot]; isVector {
				if orig, ok := site.Expr.(*ir.AllocVectorExpr); ok {
					if bt, ok := orig.Type.(ir.BytesType); ok && bt.IsString {
						if to, ok := cast.To.(ir.BytesType); ok && !to.IsString {
							mutated[slot] = true
						}
					}
				}
			}
		}
	}
	for _, op := range e.Operands() {
		scanExprForCast(op, sites, mutated)
	}
}
