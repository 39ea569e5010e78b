// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"fmt"
	"strings"
)

// Printer renders a Module as textual IR assembly, using the same slot,
// label and mnemonic syntax internal/irasm parses, the printer/parser-pair
// idiom the teacher uses for its own source language (grammar/printer.go +
// internal/parser). The output does not parse back in as a whole: the
// module-level compilation-unit, CONTRACT and STORAGE lines have no irasm
// grammar, ret and revert print without their operands, sload prints
// without the `as <type>` annotation irasm requires, and integer literals
// print without a width suffix.
type Printer struct {
	indent int
	out    strings.Builder
}

// NewPrinter creates an empty printer.
func NewPrinter() *Printer { return &Printer{} }

// Print renders an entire module.
func Print(mod *Module) string {
	p := NewPrinter()
	p.printModule(mod)
	return p.out.String()
}

// PrintFunction renders a single function, used by passes and tests that
// want a before/after diff without the surrounding module scaffolding.
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.out.String()
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.out.WriteString(strings.Repeat("  ", p.indent))
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) printModule(mod *Module) {
	p.writeLine("; compilation-unit %s", mod.CompilationUnitID)
	for _, c := range mod.Contracts {
		p.printContract(c)
	}
}

func (p *Printer) printContract(c *Contract) {
	p.writeLine("CONTRACT %s {", c.Name)
	p.indent++
	if len(c.Storage) > 0 {
		p.writeLine("STORAGE:")
		p.indent++
		for _, s := range c.Storage {
			if len(s.PackWith) > 0 {
				p.writeLine("%s : %s  ; packed with %s", s.Key, s.Type, strings.Join(s.PackWith, ", "))
			} else {
				p.writeLine("%s : %s", s.Key, s.Type)
			}
		}
		p.indent--
	}
	for _, e := range c.Events {
		p.writeLine("EVENT %s", e.Name)
	}
	for _, fn := range c.Functions {
		p.printFunction(fn)
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, slot := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", slotName(slot), fn.Slots.TypeOf(slot))
	}
	p.writeLine("fn %s(%s) -> %v {", fn.Name, strings.Join(params, ", "), fn.ReturnType)
	p.indent++
	for _, b := range fn.Blocks {
		p.printBlock(b)
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printBlock(b *BasicBlock) {
	p.writeLine("bb%d:", b.ID)
	p.indent++
	for _, inst := range b.Instructions {
		p.writeLine("%s", inst.String())
	}
	if b.Terminator != nil {
		p.writeLine("%s", b.Terminator.String())
	}
	p.indent--
}
