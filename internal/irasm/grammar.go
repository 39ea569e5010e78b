// SPDX-License-Identifier: Apache-2.0
package irasm

// The struct-tag grammar below follows the same alternation-of-pointer-
// fields idiom as the teacher's grammar.go (SourceElement's
// `Comment *Comment "|" Module *Module`). Scope is intentionally a
// subset of internal/ir.Printer's full output: literals (with an
// optional u<bits>/i<bits> width suffix), slot references, storage
// references (constant or symbolic key, with an optional "as <type>"
// annotation where the type can't be inferred from context),
// parenthesized binary expressions, not/neg, cast/truncate/extend, the
// three hash builtins, the vector/slice byte-literal pseudo-expressions,
// array subscript, and the instruction/terminator forms (including
// valued ret/revert) constant folding, strength reduction, bounds
// elimination, unused-variable, dead-storage, CSE, and vector-to-slice
// actually produce in their own test fixtures. Field-select, map-index,
// builtin constants (block.timestamp etc.), calls, event emission, and
// prints are not supported by this round-trip format; a listing
// containing one fails to parse.

type FileSrc struct {
	Functions []*FunctionSrc `@@*`
}

type FunctionSrc struct {
	Name    string        `"fn" @Ident`
	Params  []*ParamSrc   `"(" [ @@ { "," @@ } ] ")"`
	Return  *TypeSrc      `"->" @@`
	Blocks  []*BlockSrc   `"{" @@* "}"`
}

type ParamSrc struct {
	Slot string  `@Slot`
	Type *TypeSrc `":" @@`
}

type TypeSrc struct {
	Name   string `@Ident`
	Flavor string `[ "<" @(Ident | Integer) ">" ]`
}

type BlockSrc struct {
	Label        string          `@Ident ":"`
	Instructions []*InstSrc      `@@*`
	Terminator   *TerminatorSrc  `@@`
}

type InstSrc struct {
	Assign  *AssignSrc  `  @@`
	SStore  *SStoreSrc  `| @@`
	SLoad   *SLoadSrc   `| @@`
	Push    *PushSrc    `| @@`
	Pop     *PopSrc     `| @@`
	Bounds  *BoundsSrc  `| @@`
}

type AssignSrc struct {
	Dst  string   `@Slot "="`
	Expr *ExprSrc `@@`
}

type SStoreSrc struct {
	Slot  *StorageRefSrc `"sstore" @@ "="`
	Value *ExprSrc       `@@`
}

type SLoadSrc struct {
	Dst  string         `@Slot "=" "sload"`
	Slot *StorageRefSrc `@@`
}

type PushSrc struct {
	Array *ExprSrc `"push" @@ ","`
	Value *ExprSrc `@@`
}

type PopSrc struct {
	Dst   string   `@Slot "=" "pop"`
	Array *ExprSrc `@@`
}

type BoundsSrc struct {
	Index      *ExprSrc `"bounds_check" @@`
	Length     *ExprSrc `"<" @@`
	AbortBlock string   `"else" "goto" @Ident`
}

type TerminatorSrc struct {
	Branch      *BranchSrc      `  @@`
	Jump        *JumpSrc        `| @@`
	Return      *ReturnSrc      `| @@`
	Revert      *RevertSrc      `| @@`
	Unreachable *bool           `| @"unreachable"`
}

type BranchSrc struct {
	Predicate *ExprSrc `"br" @@ ","`
	TrueLabel string   `@Ident ","`
	FalseLabel string  `@Ident`
}

type JumpSrc struct {
	Label string `"jmp" @Ident`
}

// ReturnSrc carries zero or more returned values (§3's ReturnTerm).
type ReturnSrc struct {
	Values []*ExprSrc `"ret" [ @@ { "," @@ } ]`
}

// RevertSrc carries an optional reason expression (§3's RevertTerm).
type RevertSrc struct {
	Reason *ExprSrc `"revert" [ @@ ]`
}

// StorageRefSrc names a storage location. Type is mandatory wherever the
// declared element type cannot otherwise be inferred (sload has no other
// source for its destination slot's type); sstore may omit it and take
// its type from the stored value instead.
type StorageRefSrc struct {
	Root string   `"storage" "." @Ident`
	Key  *ExprSrc `[ "[" @@ "]" ]`
	Type *TypeSrc `[ "as" @@ ]`
}

// ExprSrc is the recursive expression alternation. Subscript is parsed
// as a trailing, optionally-repeated postfix so `a[i][j]` nests left to
// right, matching SubscriptExpr's left-associative construction.
type ExprSrc struct {
	Atom    *AtomSrc      `@@`
	Indices []*ExprSrc    `{ "[" @@ "]" }`
}

type AtomSrc struct {
	Binary   *BinarySrc     `  "(" @@ ")"`
	Not      *ExprSrc       `| "!" @@`
	Neg      *ExprSrc       `| "-" @@`
	Extend   *ConvSrc       `| "extend" @@`
	Truncate *ConvSrc       `| "truncate" @@`
	Cast     *ConvSrc       `| "cast" @@`
	Hash     *HashSrc       `| @@`
	Alloc    *AllocSrc      `| @@`
	Slice    *SliceSrc      `| @@`
	Storage  *StorageRefSrc `| @@`
	Slot     *string        `| @Slot`
	Hex      *string        `| @HexLiteral`
	Int      *string        `| @Integer`
}

// AllocSrc is the pseudo-expression that allocates a mutable byte vector
// (§3, §4.9). Kind selects whether the vector carries the `string` flag;
// "alloc_bytes" and "alloc_string" are the only two spellings, matching
// the two-flavour split BytesType.IsString carries.
type AllocSrc struct {
	Kind string `@("alloc_bytes" | "alloc_string")`
	Init string `"(" @HexLiteral ")"`
}

// SliceSrc is what an AllocSrc demotes to once vector-to-slice proves no
// mutation reaches it.
type SliceSrc struct {
	Kind string `@("slice_bytes" | "slice_string")`
	Init string `"(" @HexLiteral ")"`
}

type BinarySrc struct {
	Left  *ExprSrc `@@`
	Op    string   `@Operator`
	Right *ExprSrc `@@`
}

type ConvSrc struct {
	To   *TypeSrc `"<" @@ ">" "("`
	Expr *ExprSrc `@@ ")"`
}

type HashSrc struct {
	Kind string   `@("keccak256" | "sha256" | "ripemd160")`
	Arg  *ExprSrc `"(" @@ ")"`
}
