// SPDX-License-Identifier: Apache-2.0

// Package diag implements the error taxonomy of spec.md §7: invariant
// violations are fatal and stop the whole pipeline, semantic-preservation
// failures abandon only the offending rewrite, arithmetic-range failures
// are silent, and warnings are purely informational. It is grounded on
// internal/errors' ErrorReporter (Rust-style caret rendering via
// github.com/fatih/color), adapted to report against ir.Span locations
// instead of raw source text, and to stamp every diagnostic with the
// emitting compilation unit's ID.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sasha-s/go-deadlock"

	"solmid/internal/ir"
)

// Severity classifies a Diagnostic per spec.md §7's four-way taxonomy.
type Severity int

const (
	// Fatal is an invariant violation: an internal-compiler-error that
	// aborts the whole run. The optimizer must never emit one against a
	// well-formed input; seeing one means a pass has a bug.
	Fatal Severity = iota

	// PassAbort is a semantic-preservation failure: the pass that raised
	// it abandons the one rewrite in question (and only that rewrite) and
	// continues with the next candidate.
	PassAbort

	// Silent never surfaces to a human; it exists only so passes have a
	// uniform way to record "abandoned, and here is why" for tests and
	// tracing. Constant folding's width/zero-divisor bailouts are Silent.
	Silent

	// Warning is recoverable and purely informational (unused-variable
	// elimination's report, §4.6).
	Warning
)

func (s Severity) String() string {
	switch s {
	case Fatal:
		return "error"
	case PassAbort:
		return "error"
	case Silent:
		return "silent"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic is one reported event, optionally anchored to a source span.
type Diagnostic struct {
	Severity Severity
	Code     string
	Pass     string // the pass name that raised it, e.g. "dead_storage"
	Message  string
	Span     ir.Span
	Notes    []string

	// UnitID is the compilation unit this diagnostic was raised against,
	// stamped in by the Sink on Report.
	UnitID string
}

// Sink collects diagnostics for one compilation unit run. It is
// append-only and safe for concurrent use by functions optimized in
// parallel (§5 "global append-only... diagnostic sink").
type Sink struct {
	mu          deadlock.Mutex
	unitID      string
	diagnostics []Diagnostic
}

// NewSink creates a Sink stamping every diagnostic it collects with
// unitID.
func NewSink(unitID string) *Sink {
	return &Sink{unitID: unitID}
}

// Report appends d to the sink, stamping its UnitID.
func (s *Sink) Report(d Diagnostic) {
	d.UnitID = s.unitID
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, d)
}

// Fatal reports a Fatal diagnostic as an error value, for passes that
// need to both record it and return early via a normal Go error.
func (s *Sink) Fatal(pass, code, message string, span ir.Span) error {
	s.Report(Diagnostic{Severity: Fatal, Code: code, Pass: pass, Message: message, Span: span})
	return fmt.Errorf("%s: %s: %s", pass, code, message)
}

// All returns every diagnostic reported so far, in report order.
func (s *Sink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// HasFatal reports whether any Fatal diagnostic was reported, which
// callers use to decide whether to keep the optimized output or reject
// it (§7 "an invariant violation is always fatal to the whole run").
func (s *Sink) HasFatal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.diagnostics {
		if d.Severity == Fatal {
			return true
		}
	}
	return false
}

// Warnings returns only the Warning-severity diagnostics, sorted by
// location for stable, deterministic CLI output (§5 "Ordering
// guarantees").
func (s *Sink) Warnings() []Diagnostic {
	all := s.All()
	out := make([]Diagnostic, 0, len(all))
	for _, d := range all {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Span, out[j].Span
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return out
}

// Reporter renders Diagnostics as human-readable text, in the same
// Rust-like caret style internal/errors.ErrorReporter uses, minus the
// surrounding source lines (the optimizer works over IR, not text; its
// spans point back at source the reporter here never holds).
type Reporter struct{}

// NewReporter creates a Reporter.
func NewReporter() *Reporter { return &Reporter{} }

// Format renders one diagnostic.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := r.levelColor(d.Severity)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Pass != "" {
		out.WriteString(fmt.Sprintf("%s[%s] (%s): %s\n",
			levelColor(d.Severity.String()), d.Code, bold(d.Pass), d.Message))
	} else {
		out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(d.Severity.String()), d.Code, d.Message))
	}

	if !d.Span.IsZero() {
		out.WriteString(fmt.Sprintf("   %s %s:%d:%d\n", dim("-->"), d.Span.File, d.Span.Line, d.Span.Col))
	}

	for _, note := range d.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		out.WriteString(fmt.Sprintf("   %s %s\n", noteColor("note:"), note))
	}

	return out.String()
}

func (r *Reporter) levelColor(sev Severity) func(...interface{}) string {
	switch sev {
	case Fatal, PassAbort:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	}
}

// FormatAll renders every diagnostic in s, in report order.
func (r *Reporter) FormatAll(s *Sink) string {
	var out strings.Builder
	for _, d := range s.All() {
		out.WriteString(r.Format(d))
	}
	return out.String()
}
