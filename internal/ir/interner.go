// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"github.com/sasha-s/go-deadlock"
)

// StringInterner is the module-global, append-only string interner
// described in spec.md §5/§9 ("Global mutable state"). Lookup is by
// structural hash (the string's own bytes); no pass ever removes an
// entry, which is what lets the optional per-function parallelization of
// §5 read it without locking once all of a thread's writes to it have
// happened-before its reads. go-deadlock catches any accidental lock
// ordering violation between this interner and the type interner during
// development; it behaves exactly like sync.RWMutex in production builds.
type StringInterner struct {
	mu     deadlock.RWMutex
	ids    map[string]int
	values []string
}

// NewStringInterner creates an empty interner.
func NewStringInterner() *StringInterner {
	return &StringInterner{ids: make(map[string]int)}
}

// Intern returns a stable id for s, allocating one if s hasn't been seen.
func (si *StringInterner) Intern(s string) int {
	si.mu.RLock()
	if id, ok := si.ids[s]; ok {
		si.mu.RUnlock()
		return id
	}
	si.mu.RUnlock()

	si.mu.Lock()
	defer si.mu.Unlock()
	if id, ok := si.ids[s]; ok {
		return id
	}
	id := len(si.values)
	si.values = append(si.values, s)
	si.ids[s] = id
	return id
}

// Lookup returns the string for a previously interned id.
func (si *StringInterner) Lookup(id int) (string, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()
	if id < 0 || id >= len(si.values) {
		return "", false
	}
	return si.values[id], true
}

// TypeInterner is the module-global, append-only type interner. Types are
// deduplicated by their String() form, which is a sufficient structural
// hash for the closed type set of §3 (no two distinct types in this IR
// print identically).
type TypeInterner struct {
	mu    deadlock.RWMutex
	ids   map[string]int
	types []Type
}

// NewTypeInterner creates an empty interner.
func NewTypeInterner() *TypeInterner {
	return &TypeInterner{ids: make(map[string]int)}
}

// Intern returns a stable id for t, allocating one if t's structural form
// hasn't been seen.
func (ti *TypeInterner) Intern(t Type) int {
	key := t.String()
	ti.mu.RLock()
	if id, ok := ti.ids[key]; ok {
		ti.mu.RUnlock()
		return id
	}
	ti.mu.RUnlock()

	ti.mu.Lock()
	defer ti.mu.Unlock()
	if id, ok := ti.ids[key]; ok {
		return id
	}
	id := len(ti.types)
	ti.types = append(ti.types, t)
	ti.ids[key] = id
	return id
}

// Lookup returns the type for a previously interned id.
func (ti *TypeInterner) Lookup(id int) (Type, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	if id < 0 || id >= len(ti.types) {
		return nil, false
	}
	return ti.types[id], true
}
