// SPDX-License-Identifier: Apache-2.0
package irasm

import (
	"io"

	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"

	"solmid/internal/ir"
)

// parser is built once at package init, the same way the teacher's own
// grammar package builds its participle parser as a package-level var
// (_examples/kanso-lang-kanso/grammar/grammar.go).
var parser = participle.MustBuild[FileSrc](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse reads a single function's textual IR listing from r and lowers it
// to an *ir.Function. Callers that need every function in a listing should
// use ParseModule instead.
func Parse(name string, r io.Reader) (*ir.Function, error) {
	file, err := parser.Parse(name, r)
	if err != nil {
		return nil, errors.Wrapf(err, "irasm: parsing %s", name)
	}
	if len(file.Functions) != 1 {
		return nil, errors.Errorf("irasm: %s: expected exactly one function, found %d", name, len(file.Functions))
	}
	return lowerFunction(file.Functions[0])
}

// ParseModule reads every function in a textual IR listing and lowers each
// in turn, returning them in source order.
func ParseModule(name string, r io.Reader) ([]*ir.Function, error) {
	file, err := parser.Parse(name, r)
	if err != nil {
		return nil, errors.Wrapf(err, "irasm: parsing %s", name)
	}
	fns := make([]*ir.Function, 0, len(file.Functions))
	for _, fnSrc := range file.Functions {
		fn, err := lowerFunction(fnSrc)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}
