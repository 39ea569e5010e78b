// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"testing"

	"solmid/internal/config"
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// TestPipelineRunsEnabledPassesInFixedOrder confirms the pipeline folds a
// constant expression and then drops the now-dead intermediate, matching
// spec.md §2's fixed ordering of constant folding before unused-variable
// elimination.
func TestPipelineRunsEnabledPassesInFixedOrder(t *testing.T) {
	fn := ir.NewFunction("ordered")
	b := ir.NewFunctionBuilder(fn)

	mul := &ir.BinaryExpr{Op: ir.OpMul, Left: intLit256(3), Right: intLit256(4), Type: ir.IntType{Bits: 256}}
	b.Assign(mul) // folds to 12, then is unread and removed
	b.Terminate(&ir.ReturnTerm{})

	pipeline := New(config.Default())
	sink := diag.NewSink("u")
	if err := pipeline.Run(fn, sink); err != nil {
		t.Fatalf("pipeline.Run returned an error: %v", err)
	}
	if len(fn.Block(fn.Entry).Instructions) != 0 {
		t.Error("constant folding then unused-variable elimination should leave no instructions")
	}
}

func TestPipelineOmitsDisabledPasses(t *testing.T) {
	fn := ir.NewFunction("disabled")
	b := ir.NewFunctionBuilder(fn)
	mul := &ir.BinaryExpr{Op: ir.OpMul, Left: intLit256(3), Right: intLit256(4), Type: ir.IntType{Bits: 256}}
	dst := b.Assign(mul)
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

	cfg := config.Default()
	cfg.ConstantFolding = false
	pipeline := New(cfg)
	if err := pipeline.Run(fn, diag.NewSink("u")); err != nil {
		t.Fatalf("pipeline.Run returned an error: %v", err)
	}

	assign := fn.Block(fn.Entry).Instructions[0].(*ir.AssignInst)
	if _, ok := assign.Expr.(*ir.LiteralExpr); ok {
		t.Error("disabling constant folding must leave the multiply unfolded")
	}
}

// TestRunModuleAppliesPerContractPackGroups confirms RunModule threads
// each contract's storage-packing layout into the dead-storage pass so a
// store to one packed sibling is treated as aliasing a store to the
// other, and that a second contract with no packing declared does not
// inherit the first contract's groups.
func TestRunModuleAppliesPerContractPackGroups(t *testing.T) {
	makeFn := func(name string, lo, hi *ir.StorageSlotExpr) *ir.Function {
		fn := ir.NewFunction(name)
		b := ir.NewFunctionBuilder(fn)
		b.Emit(&ir.StorageStoreInst{Slot: lo, Value: boolLit(true)})
		b.Emit(&ir.StorageStoreInst{Slot: hi, Value: boolLit(true)})
		b.Terminate(&ir.ReturnTerm{})
		return fn
	}

	lo := &ir.StorageSlotExpr{Root: "flags_lo", Type: ir.BoolType{}}
	hi := &ir.StorageSlotExpr{Root: "flags_hi", Type: ir.BoolType{}}

	packed := &ir.Contract{
		Name: "Packed",
		Storage: []ir.StorageSlotDecl{
			{Key: "flags_lo", Type: ir.BoolType{}, PackWith: []string{"flags_hi"}},
			{Key: "flags_hi", Type: ir.BoolType{}},
		},
		Functions: []*ir.Function{makeFn("setBoth", lo, hi)},
	}
	unpacked := &ir.Contract{
		Name:      "Unpacked",
		Functions: []*ir.Function{makeFn("setBoth", lo, hi)},
	}
	mod := &ir.Module{Contracts: []*ir.Contract{packed, unpacked}}

	pipeline := New(config.Default())
	if err := pipeline.RunModule(mod, diag.NewSink("u")); err != nil {
		t.Fatalf("RunModule returned an error: %v", err)
	}

	countStores := func(fn *ir.Function) int {
		n := 0
		for _, inst := range fn.Block(fn.Entry).Instructions {
			if _, ok := inst.(*ir.StorageStoreInst); ok {
				n++
			}
		}
		return n
	}

	if got := countStores(packed.Functions[0]); got != 1 {
		t.Errorf("packed contract: expected the aliased store collapsed to 1, got %d", got)
	}
	if got := countStores(unpacked.Functions[0]); got != 2 {
		t.Errorf("unpacked contract: expected both stores to survive, got %d", got)
	}
}

// TestRunTwiceAndCompareIsIdempotent exercises spec.md §8 property 6: a
// second pipeline run over already-optimized output changes nothing
// further.
func TestRunTwiceAndCompareIsIdempotent(t *testing.T) {
	fn := ir.NewFunction("idempotent")
	b := ir.NewFunctionBuilder(fn)
	mul := &ir.BinaryExpr{Op: ir.OpMul, Left: intLit256(3), Right: intLit256(4), Type: ir.IntType{Bits: 256}}
	dst := b.Assign(mul)
	b.Terminate(&ir.ReturnTerm{Values: []ir.Expr{fn.Ref(dst)}})

	pipeline := New(config.Default())
	stable, err := pipeline.RunTwiceAndCompare(fn, diag.NewSink("u"))
	if err != nil {
		t.Fatalf("RunTwiceAndCompare returned an error: %v", err)
	}
	if !stable {
		t.Error("expected a second pipeline run over already-optimized output to be a no-op")
	}
}

func TestPipelineRunFailsVerificationOnMalformedInput(t *testing.T) {
	fn := ir.NewFunction("broken")
	// No terminator set on the entry block: Verify must reject this before
	// any pass runs.
	pipeline := New(config.Default())
	sink := diag.NewSink("u")
	err := pipeline.Run(fn, sink)
	if err == nil {
		t.Fatal("expected Run to fail verification on a function with no terminator")
	}
	if !sink.HasFatal() {
		t.Error("a pre-optimization verification failure should be recorded as fatal")
	}
}
