// SPDX-License-Identifier: Apache-2.0
package ir

import "fmt"

// SlotID numbers a function-local slot. Slots are identifier-only; the
// owning Function's SlotTable carries the type (§3 "Ownership").
type SlotID int

func slotName(s SlotID) string { return fmt.Sprintf("%%v%d", s) }

// BlockID numbers a basic block within a function.
type BlockID int

// Instruction is one ordered step within a basic block. Every instruction
// that produces a value reports the destination slot via ResultSlot
// (InvalidSlot if it produces nothing).
type Instruction interface {
	ResultSlot() SlotID
	Operands() []Expr
	IsBarrier() bool
	String() string
}

// InvalidSlot marks "no result".
const InvalidSlot SlotID = -1

// AssignInst assigns the value of an expression to a slot.
type AssignInst struct {
	Dst  SlotID
	Expr Expr
}

func (a *AssignInst) ResultSlot() SlotID  { return a.Dst }
func (a *AssignInst) Operands() []Expr    { return []Expr{a.Expr} }
func (a *AssignInst) IsBarrier() bool     { return false }
func (a *AssignInst) String() string {
	return fmt.Sprintf("%s = %s", slotName(a.Dst), a.Expr.String())
}

// StorageStoreInst writes a value to a storage slot.
type StorageStoreInst struct {
	Slot  *StorageSlotExpr
	Value Expr
}

func (s *StorageStoreInst) ResultSlot() SlotID { return InvalidSlot }
func (s *StorageStoreInst) Operands() []Expr   { return []Expr{s.Slot, s.Value} }
func (s *StorageStoreInst) IsBarrier() bool    { return false }
func (s *StorageStoreInst) String() string {
	return fmt.Sprintf("sstore %s = %s", s.Slot.String(), s.Value.String())
}

// StorageLoadInst reads a storage slot into a new local slot.
type StorageLoadInst struct {
	Dst  SlotID
	Slot *StorageSlotExpr
}

func (s *StorageLoadInst) ResultSlot() SlotID { return s.Dst }
func (s *StorageLoadInst) Operands() []Expr   { return []Expr{s.Slot} }
func (s *StorageLoadInst) IsBarrier() bool    { return false }
func (s *StorageLoadInst) String() string {
	return fmt.Sprintf("%s = sload %s", slotName(s.Dst), s.Slot.String())
}

// ArrayPushInst appends Value to the dynamic array rooted at Array and
// bumps its companion length slot (§3 "Auxiliary slot contracts for
// arrays").
type ArrayPushInst struct {
	Array Expr
	Value Expr
}

func (a *ArrayPushInst) ResultSlot() SlotID { return InvalidSlot }
func (a *ArrayPushInst) Operands() []Expr   { return []Expr{a.Array, a.Value} }
func (a *ArrayPushInst) IsBarrier() bool    { return false }
func (a *ArrayPushInst) String() string {
	return fmt.Sprintf("push %s, %s", a.Array.String(), a.Value.String())
}

// ArrayPopInst removes and returns the last element of a dynamic array,
// decrementing its companion length slot.
type ArrayPopInst struct {
	Dst   SlotID
	Array Expr
}

func (a *ArrayPopInst) ResultSlot() SlotID { return a.Dst }
func (a *ArrayPopInst) Operands() []Expr   { return []Expr{a.Array} }
func (a *ArrayPopInst) IsBarrier() bool    { return false }
func (a *ArrayPopInst) String() string {
	return fmt.Sprintf("%s = pop %s", slotName(a.Dst), a.Array.String())
}

// CallExternalInst invokes a function on another contract. It is always a
// barrier: the callee may reenter and observe or mutate storage (§4.7).
type CallExternalInst struct {
	Results   []SlotID
	Address   Expr
	Selector  [4]byte
	Args      []Expr
	Writable  bool // whether this call may mutate the callee's account set
}

func (c *CallExternalInst) ResultSlot() SlotID {
	if len(c.Results) == 0 {
		return InvalidSlot
	}
	return c.Results[0]
}
func (c *CallExternalInst) Operands() []Expr {
	ops := append([]Expr{c.Address}, c.Args...)
	return ops
}
func (c *CallExternalInst) IsBarrier() bool { return true }
func (c *CallExternalInst) String() string {
	return fmt.Sprintf("call_external %s selector=%x", c.Address.String(), c.Selector)
}

// CallInternalInst invokes another function within the same contract by
// id. Internal calls share the caller's storage directly but are still
// treated conservatively by dead-storage as a barrier unless the callee's
// own effect summary proves otherwise (not modelled here; conservative).
type CallInternalInst struct {
	Results  []SlotID
	Function string
	Args     []Expr
}

func (c *CallInternalInst) ResultSlot() SlotID {
	if len(c.Results) == 0 {
		return InvalidSlot
	}
	return c.Results[0]
}
func (c *CallInternalInst) Operands() []Expr { return c.Args }
func (c *CallInternalInst) IsBarrier() bool  { return true }
func (c *CallInternalInst) String() string {
	return fmt.Sprintf("call_internal %s", c.Function)
}

// CreateContractInst deploys a new contract instance. Always a barrier.
type CreateContractInst struct {
	Dst      SlotID
	CodeHash [32]byte
	Args     []Expr
}

func (c *CreateContractInst) ResultSlot() SlotID { return c.Dst }
func (c *CreateContractInst) Operands() []Expr   { return c.Args }
func (c *CreateContractInst) IsBarrier() bool    { return true }
func (c *CreateContractInst) String() string     { return fmt.Sprintf("%s = create", slotName(c.Dst)) }

// EmitEventInst logs an event with the given indexed topics and data.
// Always a barrier (§4.7, §GLOSSARY).
type EmitEventInst struct {
	Event  string
	Topics []Expr
	Data   []Expr
}

func (e *EmitEventInst) ResultSlot() SlotID { return InvalidSlot }
func (e *EmitEventInst) Operands() []Expr   { return append(append([]Expr{}, e.Topics...), e.Data...) }
func (e *EmitEventInst) IsBarrier() bool    { return true }
func (e *EmitEventInst) String() string     { return "emit " + e.Event }

// PrintInst is a debug side-effecting print (log_prints / log_runtime_errors
// controlled, §6).
type PrintInst struct {
	Runtime bool // true for low-level runtime fault codes, false for user prints
	Args    []Expr
}

func (p *PrintInst) ResultSlot() SlotID { return InvalidSlot }
func (p *PrintInst) Operands() []Expr   { return p.Args }
func (p *PrintInst) IsBarrier() bool    { return false }
func (p *PrintInst) String() string     { return "print" }

// BoundsCheckInst is the explicit runtime bounds check every array
// subscript and length-changing method call carries before lowering
// (§4.5). AbortBlock is the block branched to on failure.
type BoundsCheckInst struct {
	Index      Expr
	Length     Expr
	AbortBlock BlockID
}

func (b *BoundsCheckInst) ResultSlot() SlotID { return InvalidSlot }
func (b *BoundsCheckInst) Operands() []Expr   { return []Expr{b.Index, b.Length} }
func (b *BoundsCheckInst) IsBarrier() bool    { return false }
func (b *BoundsCheckInst) String() string {
	return fmt.Sprintf("bounds_check %s < %s else goto bb%d", b.Index.String(), b.Length.String(), b.AbortBlock)
}

// Terminator ends a basic block. Every basic block ends in exactly one.
type Terminator interface {
	Instruction
	Successors() []BlockID
}

// CondBranchTerm branches to one of two successor blocks on a bool
// predicate.
type CondBranchTerm struct {
	Predicate   Expr
	TrueBlock   BlockID
	FalseBlock  BlockID
}

func (c *CondBranchTerm) ResultSlot() SlotID    { return InvalidSlot }
func (c *CondBranchTerm) Operands() []Expr      { return []Expr{c.Predicate} }
func (c *CondBranchTerm) IsBarrier() bool       { return false }
func (c *CondBranchTerm) Successors() []BlockID { return []BlockID{c.TrueBlock, c.FalseBlock} }
func (c *CondBranchTerm) String() string {
	return fmt.Sprintf("br %s, bb%d, bb%d", c.Predicate.String(), c.TrueBlock, c.FalseBlock)
}

// JumpTerm is an unconditional branch.
type JumpTerm struct{ Target BlockID }

func (j *JumpTerm) ResultSlot() SlotID    { return InvalidSlot }
func (j *JumpTerm) Operands() []Expr      { return nil }
func (j *JumpTerm) IsBarrier() bool       { return false }
func (j *JumpTerm) Successors() []BlockID { return []BlockID{j.Target} }
func (j *JumpTerm) String() string        { return fmt.Sprintf("jmp bb%d", j.Target) }

// ReturnTerm returns zero or more values from the function. A barrier: no
// store may be elided past it (§4.7).
type ReturnTerm struct{ Values []Expr }

func (r *ReturnTerm) ResultSlot() SlotID    { return InvalidSlot }
func (r *ReturnTerm) Operands() []Expr      { return r.Values }
func (r *ReturnTerm) IsBarrier() bool       { return true }
func (r *ReturnTerm) Successors() []BlockID { return nil }
func (r *ReturnTerm) String() string        { return "ret" }

// RevertTerm aborts the transaction with an optional reason string. A
// barrier.
type RevertTerm struct{ Reason Expr }

func (r *RevertTerm) ResultSlot() SlotID    { return InvalidSlot }
func (r *RevertTerm) Operands() []Expr {
	if r.Reason == nil {
		return nil
	}
	return []Expr{r.Reason}
}
func (r *RevertTerm) IsBarrier() bool       { return true }
func (r *RevertTerm) Successors() []BlockID { return nil }
func (r *RevertTerm) String() string        { return "revert" }

// UnreachableTerm marks a block the compiler has proven dead-ends without
// an explicit revert (e.g. after an eliminated abort edge whose guard was
// proven always-false).
type UnreachableTerm struct{}

func (UnreachableTerm) ResultSlot() SlotID    { return InvalidSlot }
func (UnreachableTerm) Operands() []Expr      { return nil }
func (UnreachableTerm) IsBarrier() bool       { return true }
func (UnreachableTerm) Successors() []BlockID { return nil }
func (UnreachableTerm) String() string        { return "unreachable" }
