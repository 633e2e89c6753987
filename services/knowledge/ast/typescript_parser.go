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
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Patterns for the TypeScript/JavaScript heuristic extractor. Applied to
// the stripped line view (strings and comments blanked).
var (
	tsImportRe     = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(.+?)\s+from\s+['"]([^'"]+)['"]`)
	tsBareImportRe = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	tsRequireRe    = regexp.MustCompile(`(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*require\(`)
	tsRequirePath  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)

	tsClassRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:declare\s+)?(abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	tsExtends = regexp.MustCompile(`\bextends\s+([\w$.]+(?:\s*<[^{]*?>)?)`)
	tsImpl    = regexp.MustCompile(`\bimplements\s+([^{]+)`)

	tsInterfaceRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?interface\s+([A-Za-z_$][\w$]*)`)
	tsIfaceExt    = regexp.MustCompile(`\bextends\s+([^{]+)`)
	tsEnumRe      = regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?(?:const\s+)?enum\s+([A-Za-z_$][\w$]*)`)
	tsTypeRe      = regexp.MustCompile(`^\s*(?:export\s+)?type\s+([A-Za-z_$][\w$]*)`)

	tsFunctionRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`)
	tsArrowRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+?)?=\s*(async\b)?[^=>;]*=>`)
	tsMethodRe   = regexp.MustCompile(`^\s*(?:(?:public|private|protected|readonly|static|override|async)\s+)*(get\s+|set\s+)?\*?([A-Za-z_$][\w$]*)\s*(?:<[^(]*>)?\s*\([^;={]*\)\s*(?::\s*[^{;]+)?\{`)

	tsExportedRe = regexp.MustCompile(`^\s*export\b`)
	tsCallRe     = regexp.MustCompile(`([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)\s*\(`)
	tsJSXRe      = regexp.MustCompile(`(?:return\s*\(?\s*<[A-Za-z>]|=>\s*\(?\s*<[A-Za-z>])`)
)

// tsCallKeywords are identifiers that look like calls on the stripped view
// but are control flow or declarations.
var tsCallKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "typeof": true, "super": true,
	"constructor": true, "import": true, "require": true, "new": true,
}

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser will accept.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithTypeScriptParseOptions applies the given ParseOptions to the parser.
func WithTypeScriptParseOptions(opts ParseOptions) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		p.parseOptions = opts
	}
}

// TypeScriptParser is the heuristic extractor for TypeScript and JavaScript.
//
// # Description
//
// TypeScriptParser uses keyword-anchored patterns and bracket-balanced
// block scanning rather than a full grammar. It recovers classes,
// interfaces, enums, type aliases, functions and arrow-function constants,
// class methods, extends/implements clauses, ES and CommonJS imports, and
// React-style component declarations (uppercase function returning JSX, or
// a class extending Component).
//
// # Limitations
//
// Approximate by contract. Known gaps: declarations inside deeply nested
// template literals, multi-line generic signatures, object-literal methods,
// and re-export chains. These gaps are accepted; the precise extractor is
// Python only.
//
// # Thread Safety
//
// TypeScriptParser instances are safe for concurrent use.
type TypeScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewTypeScriptParser creates a TypeScriptParser with the given options.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string {
	return "typescript"
}

// Extensions returns the extensions this parser handles.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs"}
}

// Parse extracts symbols, imports, and call candidates from
// TypeScript/JavaScript source using pattern matching.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := validateContent(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	started := time.Now()
	src := newScanSource(content, "//", true)

	result := &ParseResult{
		FilePath: filePath,
		Language: "typescript",
		Package:  tsModuleName(filePath),
		Hash:     contentHash(content),
		Symbols:  make([]*Symbol, 0),
		Imports:  make([]Import, 0),
		Errors:   make([]string, 0),
	}

	covered := make([]bool, len(src.lines))

	// First pass: container declarations (class, interface, enum).
	for i := 0; i < len(src.lines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("parse canceled: %w", err)
		}
		line := src.stripped[i]

		if m := tsClassRe.FindStringSubmatch(line); m != nil {
			sym := p.processClass(src, i, filePath, m[2], m[1] != "")
			markCovered(covered, i, sym.EndLine-1)
			result.Symbols = append(result.Symbols, sym)
			i = sym.EndLine - 1
			continue
		}
		if m := tsInterfaceRe.FindStringSubmatch(line); m != nil {
			end := src.blockEnd(i)
			sym := &Symbol{
				Name:      m[1],
				Kind:      KindInterface,
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   end + 1,
				Signature: strings.TrimSpace(src.lines[i]),
				Doc:       src.docAbove(i, "//"),
				Exported:  tsExportedRe.MatchString(line),
			}
			if em := tsIfaceExt.FindStringSubmatch(line); em != nil {
				sym.Meta = &SymbolMeta{Extends: splitNameList(em[1])}
			}
			markCovered(covered, i, end)
			result.Symbols = append(result.Symbols, sym)
			i = end
			continue
		}
		if m := tsEnumRe.FindStringSubmatch(line); m != nil {
			end := src.blockEnd(i)
			result.Symbols = append(result.Symbols, &Symbol{
				Name:      m[1],
				Kind:      KindEnum,
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   end + 1,
				Signature: strings.TrimSpace(src.lines[i]),
				Doc:       src.docAbove(i, "//"),
				Exported:  tsExportedRe.MatchString(line),
			})
			markCovered(covered, i, end)
			i = end
			continue
		}
	}

	// Second pass: imports, functions, arrows, type aliases outside the
	// container blocks found above.
	for i := 0; i < len(src.lines); i++ {
		line := src.lines[i]
		strippedLine := src.stripped[i]

		// Imports match on the raw line: paths live inside string
		// literals, which the stripped view blanks.
		if m := tsImportRe.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, parseTSImportClause(m[1], m[2], i+1))
			continue
		}
		if m := tsBareImportRe.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, Import{Path: m[1], Line: i + 1})
			continue
		}
		if m := tsRequireRe.FindStringSubmatch(line); m != nil {
			if pm := tsRequirePath.FindStringSubmatch(line); pm != nil {
				result.Imports = append(result.Imports, Import{Path: pm[1], Alias: m[1], Line: i + 1})
			}
			continue
		}

		if covered[i] {
			continue
		}

		if m := tsFunctionRe.FindStringSubmatch(strippedLine); m != nil {
			sym := p.processFunction(src, i, filePath, m[2], m[1] != "")
			markCovered(covered, i, sym.EndLine-1)
			result.Symbols = append(result.Symbols, sym)
			i = sym.EndLine - 1
			continue
		}
		if m := tsArrowRe.FindStringSubmatch(strippedLine); m != nil {
			sym := p.processFunction(src, i, filePath, m[1], m[2] != "")
			markCovered(covered, i, sym.EndLine-1)
			result.Symbols = append(result.Symbols, sym)
			i = sym.EndLine - 1
			continue
		}
		if m := tsTypeRe.FindStringSubmatch(strippedLine); m != nil {
			result.Symbols = append(result.Symbols, &Symbol{
				Name:      m[1],
				Kind:      "type",
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   i + 1,
				Signature: strings.TrimSpace(line),
				Doc:       src.docAbove(i, "//"),
				Exported:  tsExportedRe.MatchString(strippedLine),
			})
			continue
		}
	}

	if p.parseOptions.IncludeCalls {
		p.extractCalls(src, result)
	}
	if !p.parseOptions.IncludePrivate {
		result.Symbols = filterExported(result.Symbols)
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	result.SetParsedAt()
	result.ParseDurationMs = time.Since(started).Milliseconds()
	recordParse(ctx, "typescript", time.Since(started), len(result.Symbols), result.HasErrors())
	return result, nil
}

// processClass extracts a class declaration, its methods, and its
// extends/implements clauses. Classes extending Component/React.Component
// are reported as components.
func (p *TypeScriptParser) processClass(src *scanSource, idx int, filePath, name string, abstract bool) *Symbol {
	end := src.blockEnd(idx)
	line := src.stripped[idx]

	kind := KindClass
	meta := &SymbolMeta{
		IsAbstract: abstract,
		Decorators: src.annotationsAbove(idx),
	}
	if m := tsExtends.FindStringSubmatch(line); m != nil {
		base := strings.TrimSpace(m[1])
		if gi := strings.Index(base, "<"); gi > 0 {
			base = base[:gi]
		}
		meta.Extends = []string{base}
		if base == "Component" || base == "PureComponent" ||
			strings.HasSuffix(base, ".Component") || strings.HasSuffix(base, ".PureComponent") {
			kind = KindComponent
		}
	}
	if m := tsImpl.FindStringSubmatch(line); m != nil {
		meta.Implements = splitNameList(m[1])
	}

	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		StartLine: idx + 1,
		EndLine:   end + 1,
		Signature: strings.TrimSpace(src.lines[idx]),
		Doc:       src.docAbove(idx, "//"),
		Exported:  tsExportedRe.MatchString(line),
		Meta:      meta,
	}

	// Methods: one level of pattern matching inside the class body.
	// Nested function bodies can yield false positives; accepted.
	for i := idx + 1; i < end; i++ {
		if m := tsMethodRe.FindStringSubmatch(src.stripped[i]); m != nil {
			mName := m[2]
			if tsCallKeywords[mName] && mName != "constructor" {
				continue
			}
			mEnd := src.blockEnd(i)
			mKind := KindMethod
			if m[1] != "" {
				mKind = KindProperty // get/set accessors
			}
			sym.Children = append(sym.Children, &Symbol{
				Name:      mName,
				Kind:      mKind,
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   mEnd + 1,
				Signature: squashWhitespace(strings.TrimSuffix(strings.TrimSpace(src.lines[i]), "{")),
				Doc:       src.docAbove(i, "//"),
				Receiver:  name,
				Exported:  !strings.Contains(src.stripped[i], "private"),
			})
			i = mEnd
		}
	}
	return sym
}

// processFunction extracts a function or arrow-function declaration.
// Uppercase-named functions whose body contains JSX are reported as
// components.
func (p *TypeScriptParser) processFunction(src *scanSource, idx int, filePath, name string, isAsync bool) *Symbol {
	end := src.blockEnd(idx)

	kind := KindFunction
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		for i := idx; i <= end && i < len(src.lines); i++ {
			if tsJSXRe.MatchString(src.lines[i]) {
				kind = KindComponent
				break
			}
		}
	}

	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		StartLine: idx + 1,
		EndLine:   end + 1,
		Signature: squashWhitespace(strings.TrimSuffix(strings.TrimSpace(src.lines[idx]), "{")),
		Doc:       src.docAbove(idx, "//"),
		Exported:  tsExportedRe.MatchString(src.stripped[idx]),
	}
	if isAsync {
		sym.Meta = &SymbolMeta{IsAsync: true}
	}
	return sym
}

// extractCalls scans stripped lines for call expressions and attributes
// each to the innermost enclosing symbol by line range.
func (p *TypeScriptParser) extractCalls(src *scanSource, result *ParseResult) {
	flat := flattenSymbols(result.Symbols)
	for i, line := range src.stripped {
		for _, m := range tsCallRe.FindAllStringSubmatch(line, -1) {
			callee := m[1]
			head := callee
			if di := strings.Index(head, "."); di > 0 {
				head = head[:di]
			}
			if tsCallKeywords[head] || tsCallKeywords[callee] {
				continue
			}
			caller := enclosingCallable(flat, i+1)
			// Skip the declaration line of the caller itself: the
			// pattern also matches the signature.
			if caller != nil && caller.StartLine == i+1 {
				continue
			}
			name := ""
			if caller != nil {
				name = caller.Name
			}
			result.Calls = append(result.Calls, CallSite{Caller: name, Callee: callee, Line: i + 1})
		}
	}
}

// parseTSImportClause parses the clause between "import" and "from":
// default imports, namespace imports, and named import lists.
func parseTSImportClause(clause, path string, line int) Import {
	clause = strings.TrimSpace(clause)
	imp := Import{Path: path, Line: line}

	switch {
	case strings.HasPrefix(clause, "* as "):
		imp.Alias = strings.TrimSpace(strings.TrimPrefix(clause, "* as "))
	case strings.HasPrefix(clause, "{"):
		inner := strings.Trim(clause, "{} ")
		imp.Names = splitNameList(inner)
	default:
		// Default import, possibly with a trailing named list:
		// "React, { useState }".
		if bi := strings.Index(clause, "{"); bi >= 0 {
			imp.Alias = strings.TrimSuffix(strings.TrimSpace(clause[:bi]), ",")
			imp.Names = splitNameList(strings.Trim(clause[bi:], "{} "))
		} else {
			imp.Alias = clause
		}
	}
	return imp
}

// tsModuleName derives a module name from the file path, dropping the
// extension: "src/components/App.tsx" becomes "src/components/App".
func tsModuleName(filePath string) string {
	if di := strings.LastIndex(filePath, "."); di > 0 {
		return filePath[:di]
	}
	return filePath
}

// markCovered marks an inclusive 0-indexed line range as consumed.
func markCovered(covered []bool, from, to int) {
	for i := from; i <= to && i < len(covered); i++ {
		covered[i] = true
	}
}

// flattenSymbols returns all symbols including children, depth-bounded.
func flattenSymbols(symbols []*Symbol) []*Symbol {
	type entry struct {
		symbols []*Symbol
		depth   int
	}
	var flat []*Symbol
	stack := []entry{{symbols: symbols}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range e.symbols {
			flat = append(flat, s)
			if len(s.Children) > 0 && e.depth < MaxSymbolDepth {
				stack = append(stack, entry{symbols: s.Children, depth: e.depth + 1})
			}
		}
	}
	return flat
}

// enclosingCallable returns the innermost function-like symbol whose line
// range contains the given 1-indexed line, or nil.
func enclosingCallable(flat []*Symbol, line int) *Symbol {
	var best *Symbol
	for _, s := range flat {
		switch s.Kind {
		case KindFunction, KindMethod, KindComponent, KindProperty:
		default:
			continue
		}
		if line < s.StartLine || line > s.EndLine {
			continue
		}
		if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
			best = s
		}
	}
	return best
}

// filterExported drops unexported symbols, recursively.
func filterExported(symbols []*Symbol) []*Symbol {
	var kept []*Symbol
	for _, s := range symbols {
		if !s.Exported {
			continue
		}
		s.Children = filterExported(s.Children)
		kept = append(kept, s)
	}
	return kept
}
