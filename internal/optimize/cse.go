// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"fmt"
	"strings"

	"solmid/internal/diag"
	"solmid/internal/ir"
)

// CommonSubexpr implements spec.md §4.8's two-pass value numbering.
// Pass one assigns a value number to every pure expression computed by an
// AssignInst, using reaching definitions to confirm none of its operand
// slots were redefined since the expression's first occurrence. Pass two
// rewrites each eligible recurrence into a reference to the first
// occurrence's destination slot.
//
// This implementation value-numbers within a single basic block: the
// "dominated by the first occurrence" requirement of §4.8 is trivially
// satisfied there without constructing a full dominator tree, which the
// cross-block hoisting variant would require (an Open Question
// resolution scoping this pass the same way dead storage elimination is
// scoped to intra-block, see DESIGN.md). Because a block is a
// straight-line instruction sequence, "none of its operands have been
// redefined since the first occurrence" reduces to comparing the index
// of each operand's last definition against the first occurrence's
// index — a direct reaching-definitions check that does not need
// dataflow's general fixed-point solver.
type CommonSubexpr struct{}

func (p *CommonSubexpr) Name() string { return "cse" }
func (p *CommonSubexpr) Description() string {
	return "replaces recurring pure expressions with a reference to their first computation"
}

func (p *CommonSubexpr) Apply(fn *ir.Function, sink *diag.Sink) bool {
	changed := false
	for _, b := range fn.Blocks {
		if cseBlock(fn, b, sink, p.Name()) {
			changed = true
		}
	}
	return changed
}

type vnEntry struct {
	slot  ir.SlotID
	index int
}

func cseBlock(fn *ir.Function, b *ir.BasicBlock, sink *diag.Sink, passName string) bool {
	table := make(map[string]vnEntry)
	defIndex := make(map[ir.SlotID]int) // last (re)definition index of slot within this block, so far

	changed := false
	for i, inst := range b.Instructions {
		assign, ok := inst.(*ir.AssignInst)
		if !ok {
			if dst := inst.ResultSlot(); dst != ir.InvalidSlot {
				defIndex[dst] = i
			}
			continue
		}
		if !isPure(assign.Expr) {
			defIndex[assign.Dst] = i
			continue
		}

		sig, ok := signatureOf(assign.Expr, defIndex)
		if !ok {
			defIndex[assign.Dst] = i
			continue
		}

		if entry, seen := table[sig]; seen {
			b.Instructions[i] = &ir.AssignInst{Dst: assign.Dst, Expr: &ir.VarRefExpr{Slot: entry.slot, Type: assign.Expr.ResultType()}}
			fn.CopySpan(inst, b.Instructions[i])
			changed = true
			if sink != nil {
				sink.Report(diag.Diagnostic{
					Severity: diag.Silent,
					Code:     diag.CodeCSEIntroduced,
					Pass:     passName,
					Message:  fn.Name + ": recurring expression replaced by a reference to its first computation",
					Span:     fn.Spans[inst],
				})
			}
		} else {
			table[sig] = vnEntry{slot: assign.Dst, index: i}
		}
		defIndex[assign.Dst] = i
	}
	return changed
}

// isPure reports whether e contains no StorageSlotExpr node — the class
// of expressions §4.8 allows into value numbering. Storage reads, calls
// and events are separate instructions, never Expr nodes, so a
// StorageSlotExpr is the only node rejected here. HashExpr is
// deterministic given its argument and is treated as pure.
func isPure(e ir.Expr) bool {
	switch e.(type) {
	case *ir.StorageSlotExpr:
		return false
	}
	for _, op := range e.Operands() {
		if !isPure(op) {
			return false
		}
	}
	return true
}

// signatureOf builds a structural key for e. Each VarRefExpr operand is
// keyed by (slot, index of its last definition so far in this block),
// so two occurrences of the same expression only collide when none of
// their shared operand slots were redefined in between — the
// reaching-definitions eligibility check of §4.8.
func signatureOf(e ir.Expr, defIndex map[ir.SlotID]int) (string, bool) {
	var b strings.Builder
	ok := true
	var walk func(e ir.Expr)
	walk = func(e ir.Expr) {
		switch n := e.(type) {
		case *ir.VarRefExpr:
			idx, defined := defIndex[n.Slot]
			if !defined {
				idx = -1 // not defined in this block; never collides with index 0
			}
			fmt.Fprintf(&b, "ref(%d@%d)", n.Slot, idx)
		case *ir.LiteralExpr:
			fmt.Fprintf(&b, "lit(%s)", n.String())
		case *ir.BuiltinExpr:
			fmt.Fprintf(&b, "builtin(%s)", n.Kind)
		case *ir.BinaryExpr:
			b.WriteString("bin(")
			b.WriteString(string(n.Op))
			b.WriteByte(',')
			walk(n.Left)
			b.WriteByte(',')
			walk(n.Right)
			b.WriteByte(')')
		case *ir.NotExpr:
			b.WriteString("not(")
			walk(n.X)
			b.WriteByte(')')
		case *ir.NegExpr:
			b.WriteString("neg(")
			walk(n.X)
			b.WriteByte(')')
		case *ir.ExtendExpr:
			fmt.Fprintf(&b, "ext(%s,", n.To)
			walk(n.X)
			b.WriteByte(')')
		case *ir.TruncateExpr:
			fmt.Fprintf(&b, "trunc(%s,", n.To)
			walk(n.X)
			b.WriteByte(')')
		case *ir.CastExpr:
			fmt.Fprintf(&b, "cast(%s,", n.To)
			walk(n.X)
			b.WriteByte(')')
		case *ir.HashExpr:
			fmt.Fprintf(&b, "hash(%s,", n.Kind)
			walk(n.Arg)
			b.WriteByte(')')
		case *ir.FieldSelectExpr:
			b.WriteString("field(")
			walk(n.Struct)
			fmt.Fprintf(&b, ",%s)", n.Field)
		case *ir.SubscriptExpr:
			b.WriteString("idx(")
			walk(n.Array)
			b.WriteByte(',')
			walk(n.Index)
			b.WriteByte(')')
		case *ir.MapIndexExpr:
			b.WriteString("map(")
			walk(n.Map)
			b.WriteByte(',')
			walk(n.Key)
			b.WriteByte(')')
		default:
			ok = false
		}
	}
	walk(e)
	if !ok {
		return "", false
	}
	return b.String(), true
}
