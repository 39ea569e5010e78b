// SPDX-License-Identifier: Apache-2.0
package irasm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"solmid/internal/bignum"
	"solmid/internal/ir"
)

// lowerCtx carries the per-function state needed to turn a parsed FileSrc
// function into an *ir.Function: the function under construction, the
// block-label table (built in a first pass so forward branches resolve),
// and a running record of every slot's declared type (since this is a
// not-strict-SSA IR, a slot's type is fixed at its first declaration and
// every later reference must agree with it, the same rigidity §4.1
// requires of the optimizer proper).
type lowerCtx struct {
	fn        *ir.Function
	labels    map[string]ir.BlockID
	slotTypes map[ir.SlotID]ir.Type
}

// lowerFunction converts one parsed FunctionSrc into an *ir.Function.
func lowerFunction(src *FunctionSrc) (*ir.Function, error) {
	fn := ir.NewFunction(src.Name)
	ctx := &lowerCtx{fn: fn, labels: make(map[string]ir.BlockID), slotTypes: make(map[ir.SlotID]ir.Type)}

	for _, p := range src.Params {
		slot, err := parseSlotID(p.Slot)
		if err != nil {
			return nil, err
		}
		typ, err := ctx.resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		fn.Slots.DeclareAt(slot, typ)
		fn.Params = append(fn.Params, slot)
		ctx.slotTypes[slot] = typ
	}

	retType, err := ctx.resolveType(src.Return)
	if err != nil {
		return nil, err
	}
	fn.ReturnType = retType

	if len(src.Blocks) == 0 {
		return nil, fmt.Errorf("function %s: no basic blocks", src.Name)
	}

	// First pass: one ir.BasicBlock per BlockSrc, in source order, so a
	// forward jmp/br/bounds_check target resolves before its own block is
	// lowered.
	for i, b := range src.Blocks {
		var blk *ir.BasicBlock
		if i == 0 {
			blk = fn.Block(fn.Entry)
		} else {
			blk = fn.AddBlock()
		}
		if _, dup := ctx.labels[b.Label]; dup {
			return nil, fmt.Errorf("function %s: duplicate block label %s", src.Name, b.Label)
		}
		ctx.labels[b.Label] = blk.ID
	}

	for i, b := range src.Blocks {
		blk := fn.Blocks[i]
		for _, instSrc := range b.Instructions {
			inst, err := ctx.lowerInst(instSrc)
			if err != nil {
				return nil, fmt.Errorf("function %s, block %s: %w", src.Name, b.Label, err)
			}
			blk.Append(inst)
		}
		term, err := ctx.lowerTerm(b.Terminator)
		if err != nil {
			return nil, fmt.Errorf("function %s, block %s: %w", src.Name, b.Label, err)
		}
		blk.SetTerminator(term)
	}

	return fn, nil
}

func (c *lowerCtx) blockID(label string) (ir.BlockID, error) {
	id, ok := c.labels[label]
	if !ok {
		return 0, fmt.Errorf("undefined block label %s", label)
	}
	return id, nil
}

func parseSlotID(s string) (ir.SlotID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "%v"))
	if err != nil {
		return 0, fmt.Errorf("malformed slot %q: %w", s, err)
	}
	return ir.SlotID(n), nil
}

// declareFresh records a brand-new slot's type, the way every instruction
// that introduces a destination slot (assign, sload, pop) must.
func (c *lowerCtx) declareFresh(dst string, typ ir.Type) (ir.SlotID, error) {
	slot, err := parseSlotID(dst)
	if err != nil {
		return 0, err
	}
	if prev, ok := c.slotTypes[slot]; ok && !ir.SameType(prev, typ) {
		return 0, fmt.Errorf("slot %s redefined as %v, first declared as %v", dst, typ, prev)
	}
	c.fn.Slots.DeclareAt(slot, typ)
	c.slotTypes[slot] = typ
	return slot, nil
}

func (c *lowerCtx) resolveType(src *TypeSrc) (ir.Type, error) {
	if src == nil {
		return nil, fmt.Errorf("missing type")
	}
	name := src.Name
	switch {
	case name == "bool":
		return ir.BoolType{}, nil
	case strings.HasPrefix(name, "uint"):
		bits, err := strconv.Atoi(name[len("uint"):])
		if err != nil {
			return nil, fmt.Errorf("malformed integer type %q", name)
		}
		return ir.IntType{Bits: bits, Signed: false}, nil
	case strings.HasPrefix(name, "int"):
		bits, err := strconv.Atoi(name[len("int"):])
		if err != nil {
			return nil, fmt.Errorf("malformed integer type %q", name)
		}
		return ir.IntType{Bits: bits, Signed: true}, nil
	case strings.HasPrefix(name, "bytes") && name != "bytes":
		n, err := strconv.Atoi(name[len("bytes"):])
		if err != nil {
			return nil, fmt.Errorf("malformed fixed-bytes type %q", name)
		}
		return ir.FixedBytesType{Len: n}, nil
	case name == "bytes", name == "string":
		flavor := ir.FlavorVector
		if src.Flavor == "slice" {
			flavor = ir.FlavorSlice
		}
		return ir.BytesType{Flavor: flavor, IsString: name == "string"}, nil
	case strings.HasPrefix(name, "address"):
		width := 20
		if src.Flavor != "" {
			w, err := strconv.Atoi(src.Flavor)
			if err == nil {
				width = w
			}
		}
		return ir.AddressType{Width: width}, nil
	}
	return nil, fmt.Errorf("unrecognized type %q", name)
}

func (c *lowerCtx) lowerInst(src *InstSrc) (ir.Instruction, error) {
	switch {
	case src.Assign != nil:
		expr, err := c.lowerExpr(src.Assign.Expr)
		if err != nil {
			return nil, err
		}
		dst, err := c.declareFresh(src.Assign.Dst, expr.ResultType())
		if err != nil {
			return nil, err
		}
		return &ir.AssignInst{Dst: dst, Expr: expr}, nil

	case src.SStore != nil:
		value, err := c.lowerExpr(src.SStore.Value)
		if err != nil {
			return nil, err
		}
		slot, err := c.lowerStorageRef(src.SStore.Slot, value.ResultType())
		if err != nil {
			return nil, err
		}
		return &ir.StorageStoreInst{Slot: slot, Value: value}, nil

	case src.SLoad != nil:
		if src.SLoad.Slot.Type == nil {
			return nil, fmt.Errorf("sload requires an explicit 'as <type>' annotation")
		}
		slot, err := c.lowerStorageRef(src.SLoad.Slot, nil)
		if err != nil {
			return nil, err
		}
		dst, err := c.declareFresh(src.SLoad.Dst, slot.Type)
		if err != nil {
			return nil, err
		}
		return &ir.StorageLoadInst{Dst: dst, Slot: slot}, nil

	case src.Push != nil:
		array, err := c.lowerExpr(src.Push.Array)
		if err != nil {
			return nil, err
		}
		value, err := c.lowerExpr(src.Push.Value)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayPushInst{Array: array, Value: value}, nil

	case src.Pop != nil:
		array, err := c.lowerExpr(src.Pop.Array)
		if err != nil {
			return nil, err
		}
		arrType, ok := array.ResultType().(ir.ArrayType)
		if !ok {
			return nil, fmt.Errorf("pop target is not an array")
		}
		dst, err := c.declareFresh(src.Pop.Dst, arrType.Elem)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayPopInst{Dst: dst, Array: array}, nil

	case src.Bounds != nil:
		index, err := c.lowerExpr(src.Bounds.Index)
		if err != nil {
			return nil, err
		}
		length, err := c.lowerExpr(src.Bounds.Length)
		if err != nil {
			return nil, err
		}
		abort, err := c.blockID(src.Bounds.AbortBlock)
		if err != nil {
			return nil, err
		}
		return &ir.BoundsCheckInst{Index: index, Length: length, AbortBlock: abort}, nil
	}
	return nil, fmt.Errorf("empty instruction")
}

func (c *lowerCtx) lowerTerm(src *TerminatorSrc) (ir.Terminator, error) {
	switch {
	case src.Branch != nil:
		pred, err := c.lowerExpr(src.Branch.Predicate)
		if err != nil {
			return nil, err
		}
		tb, err := c.blockID(src.Branch.TrueLabel)
		if err != nil {
			return nil, err
		}
		fb, err := c.blockID(src.Branch.FalseLabel)
		if err != nil {
			return nil, err
		}
		return &ir.CondBranchTerm{Predicate: pred, TrueBlock: tb, FalseBlock: fb}, nil

	case src.Jump != nil:
		target, err := c.blockID(src.Jump.Label)
		if err != nil {
			return nil, err
		}
		return &ir.JumpTerm{Target: target}, nil

	case src.Return != nil:
		values := make([]ir.Expr, 0, len(src.Return.Values))
		for _, v := range src.Return.Values {
			e, err := c.lowerExpr(v)
			if err != nil {
				return nil, err
			}
			values = append(values, e)
		}
		return &ir.ReturnTerm{Values: values}, nil

	case src.Revert != nil:
		var reason ir.Expr
		if src.Revert.Reason != nil {
			e, err := c.lowerExpr(src.Revert.Reason)
			if err != nil {
				return nil, err
			}
			reason = e
		}
		return &ir.RevertTerm{Reason: reason}, nil

	case src.Unreachable != nil:
		return &ir.UnreachableTerm{}, nil
	}
	return nil, fmt.Errorf("empty terminator")
}

func (c *lowerCtx) lowerExpr(src *ExprSrc) (ir.Expr, error) {
	e, err := c.lowerAtom(src.Atom)
	if err != nil {
		return nil, err
	}
	for _, idxSrc := range src.Indices {
		arr, ok := e.ResultType().(ir.ArrayType)
		if !ok {
			return nil, fmt.Errorf("subscript target is not an array")
		}
		idx, err := c.lowerExpr(idxSrc)
		if err != nil {
			return nil, err
		}
		e = &ir.SubscriptExpr{Array: e, Index: idx, Type: arr.Elem}
	}
	return e, nil
}

func (c *lowerCtx) lowerAtom(a *AtomSrc) (ir.Expr, error) {
	switch {
	case a.Binary != nil:
		return c.lowerBinary(a.Binary)
	case a.Not != nil:
		x, err := c.lowerExpr(a.Not)
		if err != nil {
			return nil, err
		}
		return &ir.NotExpr{X: x}, nil
	case a.Neg != nil:
		x, err := c.lowerExpr(a.Neg)
		if err != nil {
			return nil, err
		}
		return &ir.NegExpr{X: x, Type: x.ResultType()}, nil
	case a.Extend != nil:
		x, to, err := c.lowerConv(a.Extend)
		if err != nil {
			return nil, err
		}
		return &ir.ExtendExpr{X: x, To: to}, nil
	case a.Truncate != nil:
		x, to, err := c.lowerConv(a.Truncate)
		if err != nil {
			return nil, err
		}
		return &ir.TruncateExpr{X: x, To: to}, nil
	case a.Cast != nil:
		x, err := c.lowerExpr(a.Cast.Expr)
		if err != nil {
			return nil, err
		}
		to, err := c.resolveType(a.Cast.To)
		if err != nil {
			return nil, err
		}
		return &ir.CastExpr{X: x, To: to}, nil
	case a.Hash != nil:
		arg, err := c.lowerExpr(a.Hash.Arg)
		if err != nil {
			return nil, err
		}
		kind, err := lowerHashKind(a.Hash.Kind)
		if err != nil {
			return nil, err
		}
		return &ir.HashExpr{Kind: kind, Arg: arg}, nil
	case a.Alloc != nil:
		init, err := parseHexBytes(a.Alloc.Init)
		if err != nil {
			return nil, err
		}
		return &ir.AllocVectorExpr{Init: init, Type: ir.BytesType{Flavor: ir.FlavorVector, IsString: a.Alloc.Kind == "alloc_string"}}, nil
	case a.Slice != nil:
		init, err := parseHexBytes(a.Slice.Init)
		if err != nil {
			return nil, err
		}
		return &ir.SliceLiteralExpr{Init: init, Type: ir.BytesType{Flavor: ir.FlavorSlice, IsString: a.Slice.Kind == "slice_string"}}, nil
	case a.Storage != nil:
		if a.Storage.Type == nil {
			return nil, fmt.Errorf("storage reference requires an explicit 'as <type>' annotation in expression position")
		}
		return c.lowerStorageRef(a.Storage, nil)
	case a.Slot != nil:
		slot, err := parseSlotID(*a.Slot)
		if err != nil {
			return nil, err
		}
		typ, ok := c.slotTypes[slot]
		if !ok {
			return nil, fmt.Errorf("slot %s used before definition", *a.Slot)
		}
		return &ir.VarRefExpr{Slot: slot, Type: typ}, nil
	case a.Hex != nil:
		b, err := parseHexBytes(*a.Hex)
		if err != nil {
			return nil, err
		}
		return &ir.LiteralExpr{Type: ir.FixedBytesType{Len: len(b)}, Bytes: b}, nil
	case a.Int != nil:
		value, typ, err := parseIntLiteral(*a.Int)
		if err != nil {
			return nil, err
		}
		return &ir.LiteralExpr{Type: typ, Int: &ir.IntLiteral{Value: value}}, nil
	}
	return nil, fmt.Errorf("empty expression atom")
}

func (c *lowerCtx) lowerBinary(src *BinarySrc) (ir.Expr, error) {
	left, err := c.lowerExpr(src.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.lowerExpr(src.Right)
	if err != nil {
		return nil, err
	}
	op := ir.BinaryOp(src.Op)
	if op.IsComparison() {
		return &ir.BinaryExpr{Op: op, Left: left, Right: right, Type: ir.BoolType{}}, nil
	}
	if !ir.SameType(left.ResultType(), right.ResultType()) {
		return nil, fmt.Errorf("binary %s operand type mismatch: %s vs %s", op, left.ResultType(), right.ResultType())
	}
	return &ir.BinaryExpr{Op: op, Left: left, Right: right, Type: left.ResultType()}, nil
}

func (c *lowerCtx) lowerConv(src *ConvSrc) (ir.Expr, ir.IntType, error) {
	x, err := c.lowerExpr(src.Expr)
	if err != nil {
		return nil, ir.IntType{}, err
	}
	to, err := c.resolveType(src.To)
	if err != nil {
		return nil, ir.IntType{}, err
	}
	it, ok := to.(ir.IntType)
	if !ok {
		return nil, ir.IntType{}, fmt.Errorf("extend/truncate target must be an integer type, got %s", to)
	}
	return x, it, nil
}

// lowerStorageRef converts a StorageRefSrc into a *ir.StorageSlotExpr.
// fallback is used when the ref carries no explicit "as" annotation
// (legal for sstore, whose type is the value being stored).
func (c *lowerCtx) lowerStorageRef(src *StorageRefSrc, fallback ir.Type) (*ir.StorageSlotExpr, error) {
	typ := fallback
	if src.Type != nil {
		t, err := c.resolveType(src.Type)
		if err != nil {
			return nil, err
		}
		typ = t
	}
	if typ == nil {
		return nil, fmt.Errorf("storage.%s: no type available (missing 'as' annotation and no stored value to infer from)", src.Root)
	}
	var key ir.Expr
	if src.Key != nil {
		k, err := c.lowerExpr(src.Key)
		if err != nil {
			return nil, err
		}
		key = k
	}
	return &ir.StorageSlotExpr{Root: src.Root, Key: key, Type: typ}, nil
}

func lowerHashKind(s string) (ir.HashKind, error) {
	switch s {
	case "keccak256":
		return ir.HashKeccak256, nil
	case "sha256":
		return ir.HashSHA256, nil
	case "ripemd160":
		return ir.HashRipemd160, nil
	}
	return "", fmt.Errorf("unrecognized hash builtin %q", s)
}

func parseHexBytes(s string) ([]byte, error) {
	digits := strings.TrimPrefix(s, "0x")
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	return hex.DecodeString(digits)
}

// parseIntLiteral splits a lexed Integer token into its decimal digits and
// optional u<bits>/i<bits> width suffix, defaulting to unsigned 256-bit
// when no suffix is present (the width every unannotated Solidity integer
// literal effectively carries before the type checker narrows it).
func parseIntLiteral(s string) (*bignum.Int, ir.IntType, error) {
	digits := s
	bits := 256
	signed := false
	if idx := strings.IndexAny(s, "ui"); idx > 0 {
		digits = s[:idx]
		signed = s[idx] == 'i'
		n, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return nil, ir.IntType{}, fmt.Errorf("malformed integer literal %q: %w", s, err)
		}
		bits = n
	}
	big, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ir.IntType{}, fmt.Errorf("malformed integer literal %q", s)
	}
	return bignum.FromBig(big), ir.IntType{Bits: bits, Signed: signed}, nil
}
