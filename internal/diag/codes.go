// SPDX-License-Identifier: Apache-2.0
package diag

// Diagnostic codes for the optimizer, in the same spirit as
// internal/errors' E-prefixed ranges but under their own O-prefix so the
// two tools' codes never collide.
//
// Code ranges:
// O0001-O0099: invariant violations (internal-compiler-error, fatal)
// O0100-O0199: semantic preservation failures (pass-local fatal)
// O0200: arithmetic range failures (silent, fold abandoned)
// O0201-O0299: silent optimization witness notes (a rewrite was made)
// O0800-O0899: warnings
const (
	// O0001: a pass observed a function that failed ir.Verify.
	CodeInvariantViolation = "O0001"

	// O0002: a pass produced output that itself fails ir.Verify.
	CodeInvariantCorrupted = "O0002"

	// O0100: a rewrite was abandoned because it could not prove the
	// rewritten program observably equivalent to the original.
	CodeSemanticPreservation = "O0100"

	// O0200: a constant-fold candidate was abandoned because the folded
	// value would not fit the operand's declared width, or the operation
	// was a division/modulo by a literal zero.
	CodeArithmeticRange = "O0200"

	// O0201: a byte vector allocation was demoted to a read-only slice
	// (vector-to-slice's informational note, §4.9). Silent: this is a
	// backend annotation, not a finding the caller needs to act on.
	CodeVectorDemoted = "O0201"

	// O0202: a runtime array bounds check was proven redundant by the
	// known-bits lattice and removed (§4.5). Part of the diagnostic
	// witness report (SPEC_FULL.md "Diagnostic witness report").
	CodeBoundsCheckEliminated = "O0202"

	// O0203: a dynamic array's `.length` read was replaced by a known
	// constant (§4.5).
	CodeLengthKnown = "O0203"

	// O0204: a redundant storage load was rewritten into a reference to an
	// earlier load's destination slot (§4.7).
	CodeStorageLoadCombined = "O0204"

	// O0205: a storage store was proven dead (superseded with no
	// intervening read) and removed (§4.7).
	CodeStorageStoreElided = "O0205"

	// O0206: CSE replaced a recurring pure expression with a reference to
	// the destination slot of its first computation; no new slot is
	// introduced (§4.8).
	CodeCSEIntroduced = "O0206"

	// O0800: an assigned slot is never read (unused-variable elimination's
	// diagnostic, §4.6).
	CodeUnusedVariable = "O0800"
)
