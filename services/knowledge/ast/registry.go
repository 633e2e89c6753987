// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// DefaultMaxFileSize is the maximum file size a parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold above which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// ParseOptions controls extraction detail shared by all parsers.
type ParseOptions struct {
	// IncludePrivate includes symbols that are not exported by the
	// language's convention. Default: true.
	IncludePrivate bool

	// IncludeCalls extracts call-site candidates for the call graph.
	// Default: true.
	IncludeCalls bool
}

// DefaultParseOptions returns the default extraction options.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		IncludePrivate: true,
		IncludeCalls:   true,
	}
}

// Parser is the capability every language extractor implements.
//
// Implementations must be safe for concurrent use and must never panic on
// malformed input: syntax problems surface as ParseResult.Errors entries
// with partial results retained.
type Parser interface {
	// Parse extracts symbols, imports, and call sites from source content.
	//
	// Returns a non-nil result on success, possibly with Errors set for
	// recoverable problems. Returns an error only for complete failures
	// (oversized file, invalid encoding, canceled context).
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical language name ("python", "go", ...).
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string
}

// Registry maps file extensions to parsers.
//
// Dispatch is by extension, not inheritance: each language gets exactly one
// Parser implementation and the registry selects it per file.
//
// # Thread Safety
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byExt   map[string]Parser
	parsers []Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]Parser),
	}
}

// DefaultRegistry returns a registry with all built-in extractors registered:
// Python (precise), TypeScript/JavaScript, Go, and Java (heuristic).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPythonParser())
	r.Register(NewTypeScriptParser())
	r.Register(NewGoParser())
	r.Register(NewJavaParser())
	return r
}

// Register adds a parser for all of its extensions. A later registration for
// the same extension replaces the earlier one.
func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = append(r.parsers, p)
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForFile returns the parser responsible for the given path.
//
// Returns ErrNoParser if the extension has no registered parser.
func (r *Registry) ForFile(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParser, path)
	}
	return p, nil
}

// Languages returns the sorted set of registered language names.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.parsers))
	var names []string
	for _, p := range r.parsers {
		if !seen[p.Language()] {
			seen[p.Language()] = true
			names = append(names, p.Language())
		}
	}
	sort.Strings(names)
	return names
}

// Extensions returns the sorted set of registered file extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// validateContent applies the checks shared by all parsers: context state,
// size limit, and UTF-8 validity.
func validateContent(ctx context.Context, content []byte, maxSize int64) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), maxSize)
	}
	if !utf8.Valid(content) {
		return fmt.Errorf("%w", ErrInvalidContent)
	}
	return nil
}

// contentHash returns the SHA256 hex digest of the file content.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
