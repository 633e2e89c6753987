// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides language extractors for the code knowledge graph.
//
// Each extractor turns raw source text into a flat-plus-nested list of raw
// symbols, import records, and call-site candidates. Extractors report their
// findings in the language's own vocabulary ("struct", "protocol",
// "component", ...); the normalize package maps that vocabulary onto the
// canonical graph model.
//
// Design principles:
//   - Extractors never abort on malformed input: syntax problems append to
//     ParseResult.Errors and whatever partial structure was recovered is
//     returned.
//   - One precise-grammar extractor (Python, via tree-sitter) and several
//     heuristic extractors (TypeScript/JavaScript, Go, Java) that use
//     keyword-anchored patterns and bracket-balanced block scanning. The
//     heuristic extractors are approximate by contract: generics, multi-line
//     signatures, and nested closures may be missed or partially captured.
//   - Timestamps are int64 UnixMilli per project conventions.
package ast

import (
	"fmt"
	"strings"
	"time"
)

// Raw symbol kinds reported by extractors.
//
// These are the extractors' local vocabulary, not the canonical graph
// enumeration. The normalize package owns the mapping. Keeping the raw
// strings here lets a heuristic extractor report exactly what it saw
// ("protocol" vs "interface") without forcing an early normalization.
const (
	KindModule    = "module"
	KindClass     = "class"
	KindStruct    = "struct"
	KindInterface = "interface"
	KindProtocol  = "protocol"
	KindTrait     = "trait"
	KindEnum      = "enum"
	KindFunction  = "function"
	KindMethod    = "method"
	KindProperty  = "property"
	KindComponent = "component"
	KindVariable  = "variable"
	KindConstant  = "constant"
	KindUnknown   = "unknown"
)

// Symbol represents a raw code construct extracted from one source file.
//
// Symbols nest: methods appear as Children of their class, inner functions
// as Children of their enclosing function. The normalize package flattens
// the tree and synthesizes containment relations from the nesting.
type Symbol struct {
	// Name is the identifier as it appears in source.
	Name string `json:"name"`

	// Kind is the raw, extractor-local kind string (see Kind* constants).
	Kind string `json:"kind"`

	// FilePath is the path of the containing file, relative to project root.
	FilePath string `json:"file_path"`

	// StartLine and EndLine are 1-indexed and inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Signature is the declaration text, single-line normalized.
	// Example: "def fetch(self, url: str) -> Response".
	Signature string `json:"signature"`

	// Doc is the leading documentation comment or docstring, if any.
	Doc string `json:"doc,omitempty"`

	// Receiver is the receiver or owner type name for methods.
	Receiver string `json:"receiver,omitempty"`

	// Exported reports whether the symbol is publicly visible by the
	// language's convention (capitalization, underscore prefix, export
	// keyword).
	Exported bool `json:"exported"`

	// Children contains nested symbols. May be nil.
	Children []*Symbol `json:"children,omitempty"`

	// Meta carries optional language-specific details.
	Meta *SymbolMeta `json:"meta,omitempty"`
}

// SymbolMeta carries optional language-specific details for a raw symbol.
//
// All fields are optional. Concrete fields are preferred over free-form
// maps; Extra exists only for extractor notes that have no other home.
type SymbolMeta struct {
	// Decorators lists decorator or annotation names applied to the symbol.
	// Example: ["staticmethod", "lru_cache"] for Python, ["Override"] for Java.
	Decorators []string `json:"decorators,omitempty"`

	// Extends lists base class or parent type names.
	Extends []string `json:"extends,omitempty"`

	// Implements lists interface or protocol names the symbol declares.
	Implements []string `json:"implements,omitempty"`

	// TypeParameters lists generic parameter names, when captured.
	TypeParameters []string `json:"type_parameters,omitempty"`

	// ReturnType is the declared return type, when captured.
	ReturnType string `json:"return_type,omitempty"`

	// IsAsync indicates an async function or method.
	IsAsync bool `json:"is_async,omitempty"`

	// IsAbstract indicates an abstract class or method.
	IsAbstract bool `json:"is_abstract,omitempty"`

	// IsStatic indicates a static method.
	IsStatic bool `json:"is_static,omitempty"`

	// Extra holds extractor-specific notes keyed by well-known strings.
	Extra map[string]string `json:"extra,omitempty"`
}

// Import represents one import statement.
type Import struct {
	// Path is the imported module path or name.
	// Example: "os.path" for Python, "react" for TypeScript.
	Path string `json:"path"`

	// Alias is the local alias, if the import is aliased.
	Alias string `json:"alias,omitempty"`

	// Names lists specific names for selective imports
	// (from x import a, b / import { a, b } from "x").
	Names []string `json:"names,omitempty"`

	// IsWildcard indicates 'from module import *' style imports.
	IsWildcard bool `json:"is_wildcard,omitempty"`

	// IsRelative indicates a relative import ('from . import x').
	IsRelative bool `json:"is_relative,omitempty"`

	// Line is the 1-indexed line of the import statement.
	Line int `json:"line"`
}

// CallSite is a raw call-expression candidate for the call graph.
//
// Caller is the name of the innermost enclosing function or method at the
// call site; empty for module-level calls. Callee is the called expression's
// rightmost identifier chain as written ("self.save", "json.dumps", "run").
type CallSite struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	Line   int    `json:"line"`
}

// ParseResult contains the output of extracting one source file.
type ParseResult struct {
	// FilePath is the parsed file's path, relative to project root.
	FilePath string `json:"file_path"`

	// Language is the canonical language name ("python", "typescript", ...).
	Language string `json:"language"`

	// Package is the declared package or derived module name.
	Package string `json:"package,omitempty"`

	// Symbols contains the extracted symbols in source order.
	Symbols []*Symbol `json:"symbols"`

	// Imports lists the file's import statements.
	Imports []Import `json:"imports"`

	// Calls lists raw call-site candidates.
	Calls []CallSite `json:"calls,omitempty"`

	// Errors contains non-fatal extraction problems. The result may still
	// hold partial symbols despite errors.
	Errors []string `json:"errors,omitempty"`

	// Hash is the SHA256 hex digest of the file content at parse time.
	Hash string `json:"hash"`

	// ParsedAtMilli is the Unix timestamp in milliseconds when parsing
	// completed.
	ParsedAtMilli int64 `json:"parsed_at_milli"`

	// ParseDurationMs is how long extraction took.
	ParseDurationMs int64 `json:"parse_duration_ms"`
}

// HasErrors returns true if extraction recorded any non-fatal problems.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// SetParsedAt stamps ParsedAtMilli with the current time.
func (r *ParseResult) SetParsedAt() {
	r.ParsedAtMilli = time.Now().UnixMilli()
}

// MaxSymbolDepth bounds nested symbol traversal. Prevents unbounded work on
// maliciously crafted or generated input.
const MaxSymbolDepth = 100

// SymbolCount returns the total number of symbols including nested children,
// up to MaxSymbolDepth levels. Iterative, to avoid call-stack recursion on
// deeply nested input.
func (r *ParseResult) SymbolCount() int {
	type entry struct {
		symbols []*Symbol
		depth   int
	}

	count := 0
	stack := []entry{{symbols: r.Symbols}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range e.symbols {
			count++
			if len(s.Children) > 0 && e.depth < MaxSymbolDepth {
				stack = append(stack, entry{symbols: s.Children, depth: e.depth + 1})
			}
		}
	}
	return count
}

// ValidationError reports a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks structural invariants on a raw symbol.
//
// Validates:
//   - Name is non-empty
//   - FilePath is non-empty and free of path traversal
//   - StartLine >= 1, EndLine >= StartLine
//
// Children are validated recursively.
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return ValidationError{Field: "Name", Message: "must not be empty"}
	}
	if s.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if strings.Contains(s.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}
	if s.StartLine < 1 {
		return ValidationError{Field: "StartLine", Message: "must be >= 1 (1-indexed)"}
	}
	if s.EndLine < s.StartLine {
		return ValidationError{Field: "EndLine", Message: "must be >= StartLine"}
	}
	for i, child := range s.Children {
		if err := child.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Children[%d]", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}

// Validate checks structural invariants on a parse result, including all
// symbols.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if strings.Contains(r.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}
	if r.Language == "" {
		return ValidationError{Field: "Language", Message: "must not be empty"}
	}
	for i, sym := range r.Symbols {
		if sym == nil {
			return ValidationError{Field: fmt.Sprintf("Symbols[%d]", i), Message: "must not be nil"}
		}
		if err := sym.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Symbols[%d]", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}
