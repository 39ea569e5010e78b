// SPDX-License-Identifier: Apache-2.0
package optimize

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // retained for the hash builtin, not transport security
	"golang.org/x/crypto/sha3"

	"solmid/internal/bignum"
	"solmid/internal/diag"
	"solmid/internal/ir"
)

// ConstantFold evaluates compile-time-constant subexpressions at full
// arbitrary precision and replaces them with literals when the result
// provably fits the expression's declared width (spec.md §4.3). It is
// the first pass in the pipeline so every later pass sees the simplest
// possible expression trees.
//
// Folding is best-effort: a candidate that would overflow its declared
// width, or a division/modulo whose literal divisor is zero, is left
// unfolded rather than folded to a wrong or undefined value.
type ConstantFold struct{}

func (p *ConstantFold) Name() string { return "constant_folding" }
func (p *ConstantFold) Description() string {
	return "evaluates constant-valued expressions at compile time"
}

func (p *ConstantFold) Apply(fn *ir.Function, sink *diag.Sink) bool {
	changed := false
	for _, b := range fn.Blocks {
		for i, inst := range b.Instructions {
			if rewritten, ok := foldInstruction(inst, sink, fn.Name, p.Name()); ok {
				b.Instructions[i] = rewritten
				fn.CopySpan(inst, rewritten)
				changed = true
			}
		}
		if b.Terminator != nil {
			if rewritten, ok := foldTerminator(b.Terminator); ok {
				b.Terminator = rewritten
				changed = true
			}
		}
	}
	return changed
}

func foldInstruction(inst ir.Instruction, sink *diag.Sink, fnName, pass string) (ir.Instruction, bool) {
	switch n := inst.(type) {
	case *ir.AssignInst:
		folded, changed := foldExpr(n.Expr, sink, fnName, pass)
		if !changed {
			return inst, false
		}
		return &ir.AssignInst{Dst: n.Dst, Expr: folded}, true
	}
	return inst, false
}

func foldTerminator(term ir.Terminator) (ir.Terminator, bool) {
	cb, ok := term.(*ir.CondBranchTerm)
	if !ok {
		return term, false
	}
	folded, changed := foldExpr(cb.Predicate, nil, "", "")
	if !changed {
		return term, false
	}
	return &ir.CondBranchTerm{Predicate: folded, TrueBlock: cb.TrueBlock, FalseBlock: cb.FalseBlock}, true
}

// foldExpr recursively folds e, returning the rewritten expression and
// whether anything changed.
func foldExpr(e ir.Expr, sink *diag.Sink, fnName, pass string) (ir.Expr, bool) {
	switch n := e.(type) {
	case *ir.BinaryExpr:
		left, lc := foldExpr(n.Left, sink, fnName, pass)
		right, rc := foldExpr(n.Right, sink, fnName, pass)
		changed := lc || rc

		if lit, ok := foldBinaryShortCircuit(n.Op, left, right, n.Type); ok {
			return lit, true
		}

		leftLit, leftOk := asIntLiteral(left)
		rightLit, rightOk := asIntLiteral(right)
		if leftOk && rightOk {
			if folded, ok := foldBinaryConst(n.Op, leftLit, rightLit, n.Type, sink, fnName, pass); ok {
				return folded, true
			}
		}
		if !changed {
			return n, false
		}
		return &ir.BinaryExpr{Op: n.Op, Left: left, Right: right, Type: n.Type}, true

	case *ir.NotExpr:
		x, xc := foldExpr(n.X, sink, fnName, pass)
		if lit, ok := asIntLiteral(x); ok {
			return boolLiteral(lit.Sign() == 0), true
		}
		if !xc {
			return n, false
		}
		return &ir.NotExpr{X: x}, true

	case *ir.NegExpr:
		x, xc := foldExpr(n.X, sink, fnName, pass)
		if lit, ok := asIntLiteral(x); ok {
			it, isInt := n.Type.(ir.IntType)
			if isInt {
				neg := bignum.Sub(bignum.FromUint64(0), lit)
				if neg.FitsWidth(it.Bits, it.Signed) {
					return intLiteral(neg, n.Type), true
				}
				reportRangeFailure(sink, fnName, pass, "negation would overflow declared width")
			}
		}
		if !xc {
			return n, false
		}
		return &ir.NegExpr{X: x, Type: n.Type}, true

	case *ir.ExtendExpr:
		x, xc := foldExpr(n.X, sink, fnName, pass)
		if lit, ok := asIntLiteral(x); ok {
			return intLiteral(lit, n.To), true
		}
		if !xc {
			return n, false
		}
		return &ir.ExtendExpr{X: x, To: n.To}, true

	case *ir.TruncateExpr:
		x, xc := foldExpr(n.X, sink, fnName, pass)
		if lit, ok := asIntLiteral(x); ok && lit.FitsWidth(n.To.Bits, n.To.Signed) {
			return intLiteral(lit, n.To), true
		}
		if !xc {
			return n, false
		}
		return &ir.TruncateExpr{X: x, To: n.To}, true

	case *ir.HashExpr:
		arg, ac := foldExpr(n.Arg, sink, fnName, pass)
		if bytes, ok := asByteLiteral(arg); ok {
			return &ir.LiteralExpr{Type: ir.FixedBytesType{Len: 32}, Bytes: evalHash(n.Kind, bytes)}, true
		}
		if !ac {
			return n, false
		}
		return &ir.HashExpr{Kind: n.Kind, Arg: arg}, true

	case *ir.SubscriptExpr:
		arr, ac := foldExpr(n.Array, sink, fnName, pass)
		idx, ic := foldExpr(n.Index, sink, fnName, pass)
		if !ac && !ic {
			return n, false
		}
		return &ir.SubscriptExpr{Array: arr, Index: idx, Type: n.Type}, true

	case *ir.CastExpr:
		x, xc := foldExpr(n.X, sink, fnName, pass)
		if !xc {
			return n, false
		}
		return &ir.CastExpr{X: x, To: n.To}, true

	default:
		return e, false
	}
}

func foldBinaryShortCircuit(op ir.BinaryOp, left, right ir.Expr, typ ir.Type) (ir.Expr, bool) {
	if _, isBool := typ.(ir.BoolType); !isBool {
		return nil, false
	}
	if op != ir.OpAnd && op != ir.OpOr {
		return nil, false
	}
	if lit, ok := asIntLiteral(left); ok {
		// The dominating case: the left operand alone fixes the result
		// regardless of what the right operand evaluates to.
		if op == ir.OpAnd && lit.Sign() == 0 {
			return boolLiteral(false), true
		}
		if op == ir.OpOr && lit.Sign() != 0 {
			return boolLiteral(true), true
		}
		// The "evaluation proceeds" case: the left operand is the
		// identity for op, so the result is exactly the right operand
		// (true && x -> x, false || x -> x).
		if op == ir.OpAnd && lit.Sign() != 0 {
			return right, true
		}
		if op == ir.OpOr && lit.Sign() == 0 {
			return right, true
		}
	}
	if lit, ok := asIntLiteral(right); ok {
		if op == ir.OpAnd && lit.Sign() == 0 {
			return boolLiteral(false), true
		}
		if op == ir.OpOr && lit.Sign() != 0 {
			return boolLiteral(true), true
		}
		if op == ir.OpAnd && lit.Sign() != 0 {
			return left, true
		}
		if op == ir.OpOr && lit.Sign() == 0 {
			return left, true
		}
	}
	return nil, false
}

func foldBinaryConst(op ir.BinaryOp, a, b *bignum.Int, typ ir.Type, sink *diag.Sink, fnName, pass string) (ir.Expr, bool) {
	if op.IsComparison() {
		return comparisonLiteral(op, a, b), true
	}

	if (op == ir.OpDiv || op == ir.OpMod) && b.Sign() == 0 {
		// spec.md §4.3: division/modulo by a literal zero is never folded.
		reportRangeFailure(sink, fnName, pass, "division or modulo by a literal zero is left unfolded")
		return nil, false
	}

	var result *bignum.Int
	switch op {
	case ir.OpAdd:
		result = bignum.Add(a, b)
	case ir.OpSub:
		result = bignum.Sub(a, b)
	case ir.OpMul:
		result = bignum.Mul(a, b)
	case ir.OpDiv:
		result = bignum.Div(a, b)
	case ir.OpMod:
		result = bignum.Mod(a, b)
	case ir.OpExp:
		result = bignum.Exp(a, b)
	case ir.OpAnd:
		result = bignum.And(a, b)
	case ir.OpOr:
		result = bignum.Or(a, b)
	case ir.OpXor:
		result = bignum.Xor(a, b)
	default:
		return nil, false
	}

	it, isInt := typ.(ir.IntType)
	if !isInt {
		return nil, false
	}
	if !result.FitsWidth(it.Bits, it.Signed) {
		reportRangeFailure(sink, fnName, pass, "fold result does not fit the declared width")
		return nil, false
	}
	return intLiteral(result, typ), true
}

func comparisonLiteral(op ir.BinaryOp, a, b *bignum.Int) ir.Expr {
	cmp := bignum.Cmp(a, b)
	var result bool
	switch op {
	case ir.OpEq:
		result = cmp == 0
	case ir.OpNeq:
		result = cmp != 0
	case ir.OpLt:
		result = cmp < 0
	case ir.OpLte:
		result = cmp <= 0
	case ir.OpGt:
		result = cmp > 0
	case ir.OpGte:
		result = cmp >= 0
	}
	return boolLiteral(result)
}

func reportRangeFailure(sink *diag.Sink, fnName, pass, message string) {
	if sink == nil {
		return
	}
	sink.Report(diag.Diagnostic{
		Severity: diag.Silent,
		Code:     diag.CodeArithmeticRange,
		Pass:     pass,
		Message:  fnName + ": " + message,
	})
}

func asIntLiteral(e ir.Expr) (*bignum.Int, bool) {
	lit, ok := e.(*ir.LiteralExpr)
	if !ok || lit.Int == nil {
		return nil, false
	}
	v, ok := lit.Int.Value.(*bignum.Int)
	return v, ok
}

func asByteLiteral(e ir.Expr) ([]byte, bool) {
	lit, ok := e.(*ir.LiteralExpr)
	if !ok || lit.Bytes == nil {
		return nil, false
	}
	return lit.Bytes, true
}

func intLiteral(v *bignum.Int, typ ir.Type) *ir.LiteralExpr {
	return &ir.LiteralExpr{Type: typ, Int: &ir.IntLiteral{Value: v}}
}

func boolLiteral(v bool) *ir.LiteralExpr {
	n := uint64(0)
	if v {
		n = 1
	}
	return intLiteral(bignum.FromUint64(n), ir.BoolType{})
}

func evalHash(kind ir.HashKind, data []byte) []byte {
	switch kind {
	case ir.HashKeccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		return h.Sum(nil)
	case ir.HashSHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	case ir.HashRipemd160:
		h := ripemd160.New()
		h.Write(data)
		digest := h.Sum(nil)
		padded := make([]byte, 32)
		copy(padded[32-len(digest):], digest)
		return padded
	}
	return nil
}
