// SPDX-License-Identifier: Apache-2.0

// Package irasm is a small textual assembly format for internal/ir's
// CFG, sharing the syntax internal/ir.Printer emits for functions (slot
// references like %v3, block labels like bb2:, instruction mnemonics
// like sload/sstore/bounds_check). Printer output is not always
// parseable: see internal/ir.Printer for the forms that differ. It exists so the optimizer
// has fixtures and a CLI input format without a full Solidity front end,
// which is out of scope (spec.md §1 treats the optimizer's input as
// already-typed IR from a semantic analyzer).
//
// Grounded on the teacher's own source-language front end
// (_examples/kanso-lang-kanso/grammar/lexer.go's stateful participle
// lexer and internal/parser/parser_pratt.go's struct-tag precedence
// style), generalized from Kanso's surface syntax to this IR's printed
// form.
package irasm

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes a textual IR listing. Slot (%v3) and HexLiteral
// (0xdead...) get their own token kinds so the grammar doesn't have to
// reassemble them from punctuation, the same call the teacher's lexer
// makes for its own Integer/Ident tokens; block labels (bb2) lex as Ident.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"Slot", `%v[0-9]+`, nil},
		{"HexLiteral", `0x[0-9a-fA-F]+`, nil},
		{"Integer", `[0-9]+(u[0-9]+|i[0-9]+)?`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Operator", `(->|==|!=|<=|>=|<<|>>|\*\*|[-+*/%&|^<>!])`, nil},
		{"Punctuation", `[{}\[\]():,.%=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
