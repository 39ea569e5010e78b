// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// UnusedVariable removes an AssignInst whose destination slot is never
// read anywhere in the function, while preserving any side-effecting
// subexpression the assignment's right-hand side contains (spec.md §4.6).
// Since calls and storage reads are separate instructions in this IR,
// never expression nodes, a dead AssignInst's expression tree has no side
// effect and is dropped whole; every removal is reported as a Warning.
type UnusedVariable struct{}

func (p *UnusedVariable) Name() string { return "unused_variable" }
func (p *UnusedVariable) Description() string {
	return "removes assignments to slots that are never read"
}

func (p *UnusedVariable) Apply(fn *ir.Function, sink *diag.Sink) bool {
	used := computeUsedSlots(fn)

	changed := false
	for _, b := range fn.Blocks {
		kept := b.Instructions[:0]
		for _, inst := range b.Instructions {
			assign, ok := inst.(*ir.AssignInst)
			if ok && !used[assign.Dst] {
				changed = true
				if sink != nil {
					sink.Report(diag.Diagnostic{
						Severity: diag.Warning,
						Code:     diag.CodeUnusedVariable,
						Pass:     p.Name(),
						Message:  fn.Name + ": assigned slot is never read",
						Span:     fn.Spans[inst],
					})
				}
				continue
			}
			kept = append(kept, inst)
		}
		b.Instructions = kept
	}
	return changed
}

// computeUsedSlots finds every slot that is transitively read by a live
// root: a terminator, a side-effecting instruction, or an AssignInst
// whose own destination is itself live. This cascades correctly: an
// AssignInst kept alive only by a now-dead AssignInst's RHS is not
// counted as used, so removing one dead assignment can make another one
// dead in the same pass (spec.md §4.6).
func computeUsedSlots(fn *ir.Function) map[ir.SlotID]bool {
	used := make(map[ir.SlotID]bool)
	for _, slot := range fn.Params {
		used[slot] = true // parameters are always considered live-in
	}

	assignExpr := make(map[ir.SlotID]ir.Expr)
	var roots []ir.Expr

	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			if assign, ok := inst.(*ir.AssignInst); ok {
				assignExpr[assign.Dst] = assign.Expr
				continue
			}
			roots = append(roots, inst.Operands()...)
		}
		if b.Terminator != nil {
			roots = append(roots, b.Terminator.Operands()...)
		}
	}

	var walk func(e ir.Expr)
	var markSlotUsed func(slot ir.SlotID)
	walk = func(e ir.Expr) {
		if ref, ok := e.(*ir.VarRefExpr); ok {
			markSlotUsed(ref.Slot)
		}
		for _, op := range e.Operands() {
			walk(op)
		}
	}
	markSlotUsed = func(slot ir.SlotID) {
		if used[slot] {
			return
		}
		used[slot] = true
		if expr, ok := assignExpr[slot]; ok {
			walk(expr)
		}
	}

	for _, e := range roots {
		walk(e)
	}
	return used
}
