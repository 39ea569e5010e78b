// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// SlotTable maps a slot id to its declared type. The slot table owns the
// types; slots themselves are identifier-only (§3 "Ownership").
type SlotTable struct {
	types map[SlotID]Type
	next  SlotID
}

// NewSlotTable creates an empty slot table.
func NewSlotTable() *SlotTable {
	return &SlotTable{types: make(map[SlotID]Type)}
}

// Declare allocates a fresh slot of the given type and returns its id.
func (t *SlotTable) Declare(typ Type) SlotID {
	id := t.next
	t.next++
	t.types[id] = typ
	return id
}

// DeclareAt records typ for an explicitly-numbered slot, used by
// internal/irasm to reconstruct the exact slot numbering a textual IR
// listing names (%v3, %v7, ...). It advances the table's next-id
// counter past id so a later Declare call never collides with it.
func (t *SlotTable) DeclareAt(id SlotID, typ Type) {
	t.types[id] = typ
	if id >= t.next {
		t.next = id + 1
	}
}

// TypeOf returns the declared type of slot, or nil if undeclared.
func (t *SlotTable) TypeOf(slot SlotID) Type { return t.types[slot] }

// Len returns the number of declared slots.
func (t *SlotTable) Len() int { return len(t.types) }

// Visibility of a function as seen by callers outside the contract.
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityPublic
	VisibilityExternal
)

// Mutability classifies a function's storage access for the backend's
// ABI and the dead-storage pass's barrier reasoning.
type Mutability int

const (
	MutabilityPure Mutability = iota
	MutabilityView
	MutabilityPayable
	MutabilityNonpayable
)

// Function is a single function's CFG plus its metadata (§3).
type Function struct {
	Name       string
	Visibility Visibility
	Mutability Mutability
	Selector   [4]byte

	Params     []SlotID
	ReturnType Type

	Slots *SlotTable
	Entry BlockID
	Blocks []*BasicBlock

	// ArrayLenSlots maps a dynamic-array-typed slot to the companion slot
	// holding its current length (§3 "Auxiliary slot contracts for
	// arrays"). Only bounds elimination may read this map's targets'
	// known-value range; no other pass may elide the updates that keep it
	// in lock-step.
	ArrayLenSlots map[SlotID]SlotID

	// Spans preserves source locations for diagnostic rendering across
	// rewrites (§6).
	Spans map[Instruction]Span
}

// NewFunction creates an empty function with a single empty entry block.
func NewFunction(name string) *Function {
	fn := &Function{
		Name:          name,
		Slots:         NewSlotTable(),
		ArrayLenSlots: make(map[SlotID]SlotID),
		Spans:         make(map[Instruction]Span),
	}
	entry := NewBasicBlock(0)
	fn.Blocks = append(fn.Blocks, entry)
	fn.Entry = 0
	return fn
}

// Block looks up a block by id, or nil if absent.
func (fn *Function) Block(id BlockID) *BasicBlock {
	for _, b := range fn.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// AddBlock appends a freshly numbered block and returns it.
func (fn *Function) AddBlock() *BasicBlock {
	id := BlockID(len(fn.Blocks))
	b := NewBasicBlock(id)
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// StorageSlotDecl is one entry of a contract's ordered storage layout.
type StorageSlotDecl struct {
	Key  string
	Type Type
	// PackWith lists sibling slot keys packed into the same physical
	// storage word as this one. Two packed siblings alias for barrier
	// purposes: a store to one may invalidate a cached load of the other
	// (see SPEC_FULL.md "Storage slot packing metadata").
	PackWith []string
}

// EventDecl is a contract's event declaration (name + ordered,
// indexed-or-not parameter types).
type EventDecl struct {
	Name   string
	Topics []Type
	Data   []Type
}

// Contract is one contract's full IR: its storage layout, events, and
// function CFGs.
type Contract struct {
	Name      string
	Storage   []StorageSlotDecl
	Events    []EventDecl
	Functions []*Function
}

// Module is the full compilation unit: an ordered list of contracts
// (§6 "Input from semantic analyzer"). CompilationUnitID is a KSUID
// stamped once per module so diagnostics from every pass can be
// correlated back to the same compilation unit.
type Module struct {
	Contracts         []*Contract
	CompilationUnitID string
}

// NewModule wraps contracts into a Module, stamping it with a fresh
// KSUID so every diagnostic the pipeline reports while optimizing it can
// be correlated back to this one run (§5, §9).
func NewModule(contracts []*Contract) *Module {
	return &Module{Contracts: contracts, CompilationUnitID: ksuid.New().String()}
}

// FunctionOf finds a contract's function by name, or nil.
func (c *Contract) FunctionOf(name string) *Function {
	for _, fn := range c.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Verify checks structural invariants of §4.1/§8: the entry block exists,
// block ids are unique, every block has a terminator whose targets exist,
// binary operands and results agree in type with their operator rule, and
// each assignment's expression type matches its destination slot's
// declared type. It does not check that a slot is defined before it is
// read. A violation is an internal-compiler-error: the
// optimizer must reject a malformed CFG rather than silently proceed
// (§4.1, §7 "Invariant violation").
func Verify(fn *Function) error {
	if len(fn.Blocks) == 0 {
		return errors.Errorf("function %q: no blocks", fn.Name)
	}
	if fn.Block(fn.Entry) == nil {
		return errors.Errorf("function %q: entry block bb%d missing", fn.Name, fn.Entry)
	}
	ids := make(map[BlockID]bool)
	for _, b := range fn.Blocks {
		if ids[b.ID] {
			return errors.Errorf("function %q: duplicate block id bb%d", fn.Name, b.ID)
		}
		ids[b.ID] = true
		if b.Terminator == nil {
			return errors.Errorf("function %q: bb%d has no terminator", fn.Name, b.ID)
		}
	}
	for _, b := range fn.Blocks {
		for _, succ := range b.Successors() {
			if !ids[succ] {
				return errors.Errorf("function %q: bb%d branches to undefined bb%d", fn.Name, b.ID, succ)
			}
		}
	}
	return verifyTypes(fn)
}

// verifyTypes walks every instruction's operand expressions and confirms
// declared types agree with operator rules (§4.1 invariant 3, §8
// invariant 2/3). This is a conservative structural check, not a full
// dataflow definite-assignment prover (semantic analysis upstream already
// guarantees definite assignment, §3).
func verifyTypes(fn *Function) error {
	var walk func(e Expr) error
	walk = func(e Expr) error {
		switch n := e.(type) {
		case *BinaryExpr:
			if !SameType(n.Left.ResultType(), n.Right.ResultType()) {
				return errors.Errorf("function %q: binary %s operand type mismatch: %s vs %s",
					fn.Name, n.Op, n.Left.ResultType(), n.Right.ResultType())
			}
			if n.Op.IsComparison() {
				if _, ok := n.Type.(BoolType); !ok {
					return errors.Errorf("function %q: comparison must have bool type", fn.Name)
				}
			} else if !SameType(n.Type, n.Left.ResultType()) {
				return errors.Errorf("function %q: binary %s result type %s disagrees with operand type %s",
					fn.Name, n.Op, n.Type, n.Left.ResultType())
			}
		}
		for _, op := range e.Operands() {
			if err := walk(op); err != nil {
				return err
			}
		}
		return nil
	}
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			if assign, ok := inst.(*AssignInst); ok {
				declared := fn.Slots.TypeOf(assign.Dst)
				if declared != nil && !SameType(declared, assign.Expr.ResultType()) {
					return errors.Errorf("function %q: slot %s declared %s but assigned expression of type %s",
						fn.Name, slotName(assign.Dst), declared, assign.Expr.ResultType())
				}
			}
			for _, op := range inst.Operands() {
				if err := walk(op); err != nil {
					return err
				}
			}
		}
		if b.Terminator != nil {
			for _, op := range b.Terminator.Operands() {
				if err := walk(op); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// String renders a compact one-line signature, used by diagnostics that
// need to name a function without the full printer.
func (fn *Function) String() string {
	return fmt.Sprintf("fn %s(%d params) -> %v", fn.Name, len(fn.Params), fn.ReturnType)
}
