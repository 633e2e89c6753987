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

// Patterns for the Java heuristic extractor.
var (
	javaPackageRe = regexp.MustCompile(`^package\s+([\w.]+)\s*;`)
	javaImportRe  = regexp.MustCompile(`^import\s+(static\s+)?([\w.]+(?:\.\*)?)\s*;`)

	javaTypeRe = regexp.MustCompile(`^\s*(?:(?:public|protected|private|static|final|sealed|non-sealed|strictfp)\s+)*(abstract\s+)?(class|interface|enum|record)\s+(\w+)`)
	javaExtRe  = regexp.MustCompile(`\bextends\s+([\w.<>, ]+?)(?:\s+implements\b|\s*\{|$)`)
	javaImplRe = regexp.MustCompile(`\bimplements\s+([\w.<>, ]+?)(?:\s*\{|$)`)

	javaMethodRe = regexp.MustCompile(`^\s*(?:(?:public|protected|private|static|final|abstract|synchronized|native|default|strictfp)\s+)*(?:<[^>]+>\s+)?([\w.<>\[\], ?]+)\s+(\w+)\s*\([^)]*\)?\s*(?:throws\s+[\w,. ]+)?\s*[{;]`)

	javaCallRe = regexp.MustCompile(`([A-Za-z_][\w]*(?:\.[A-Za-z_][\w]*)*)\s*\(`)
)

// javaCallKeywords are identifiers matching the call pattern that are not
// method calls.
var javaCallKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "super": true, "this": true,
	"synchronized": true, "assert": true, "throw": true,
}

// javaControlWords are tokens that disqualify a method-pattern match
// (control statements look like "Type name(args)" to the pattern).
var javaControlWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "else": true, "do": true, "try": true,
}

// JavaParserOption configures a JavaParser instance.
type JavaParserOption func(*JavaParser)

// WithJavaMaxFileSize sets the maximum file size the parser will accept.
func WithJavaMaxFileSize(bytes int64) JavaParserOption {
	return func(p *JavaParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithJavaParseOptions applies the given ParseOptions to the parser.
func WithJavaParseOptions(opts ParseOptions) JavaParserOption {
	return func(p *JavaParser) {
		p.parseOptions = opts
	}
}

// JavaParser is the heuristic extractor for Java source.
//
// # Description
//
// JavaParser recovers package and import declarations, class/interface/
// enum/record declarations with extends and implements clauses, annotations,
// methods and constructors inside type bodies, and call candidates.
//
// # Limitations
//
// Approximate by contract: anonymous classes, lambdas assigned to fields,
// and annotations with complex arguments are partially captured or missed.
//
// # Thread Safety
//
// JavaParser instances are safe for concurrent use.
type JavaParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewJavaParser creates a JavaParser with the given options.
func NewJavaParser(opts ...JavaParserOption) *JavaParser {
	p := &JavaParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "java".
func (p *JavaParser) Language() string {
	return "java"
}

// Extensions returns the extensions this parser handles (.java).
func (p *JavaParser) Extensions() []string {
	return []string{".java"}
}

// Parse extracts symbols, imports, and call candidates from Java source
// using pattern matching.
func (p *JavaParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := validateContent(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	started := time.Now()
	src := newScanSource(content, "//", true)

	result := &ParseResult{
		FilePath: filePath,
		Language: "java",
		Hash:     contentHash(content),
		Symbols:  make([]*Symbol, 0),
		Imports:  make([]Import, 0),
		Errors:   make([]string, 0),
	}

	for i := 0; i < len(src.lines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("parse canceled: %w", err)
		}
		line := src.stripped[i]

		if m := javaPackageRe.FindStringSubmatch(line); m != nil && result.Package == "" {
			result.Package = m[1]
			continue
		}
		if m := javaImportRe.FindStringSubmatch(line); m != nil {
			imp := Import{Path: m[2], Line: i + 1}
			if strings.HasSuffix(m[2], ".*") {
				imp.Path = strings.TrimSuffix(m[2], ".*")
				imp.IsWildcard = true
			}
			result.Imports = append(result.Imports, imp)
			continue
		}

		if m := javaTypeRe.FindStringSubmatch(line); m != nil {
			sym := p.processType(src, i, filePath, m[3], m[2], m[1] != "")
			result.Symbols = append(result.Symbols, sym)
			i = sym.EndLine - 1
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
	recordParse(ctx, "java", time.Since(started), len(result.Symbols), result.HasErrors())
	return result, nil
}

// processType extracts a class, interface, enum, or record declaration
// with its methods.
func (p *JavaParser) processType(src *scanSource, idx int, filePath, name, which string, abstract bool) *Symbol {
	end := src.blockEnd(idx)
	line := src.stripped[idx]

	var kind string
	switch which {
	case "interface":
		kind = KindInterface
	case "enum":
		kind = KindEnum
	default:
		// class and record both normalize to class
		kind = KindClass
	}

	meta := &SymbolMeta{
		IsAbstract: abstract,
		Decorators: src.annotationsAbove(idx),
	}
	if m := javaExtRe.FindStringSubmatch(line); m != nil {
		meta.Extends = splitNameList(m[1])
	}
	if m := javaImplRe.FindStringSubmatch(line); m != nil {
		meta.Implements = splitNameList(m[1])
	}

	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		StartLine: idx + 1,
		EndLine:   end + 1,
		Signature: strings.TrimSuffix(strings.TrimSpace(src.lines[idx]), "{"),
		Doc:       src.docAbove(idx, "//"),
		Exported:  strings.Contains(line, "public"),
		Meta:      meta,
	}

	// Methods and constructors inside the type body. Field declarations
	// match the method pattern only when followed by "(", so plain fields
	// are skipped naturally.
	ctorRe := regexp.MustCompile(`^(?:public|protected|private)\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	for i := idx + 1; i < end; i++ {
		body := src.stripped[i]
		trimmed := strings.TrimSpace(body)

		// Constructor: "Name(args) {" with no return type.
		if strings.HasPrefix(trimmed, name+"(") || ctorRe.MatchString(trimmed) {
			mEnd := src.blockEnd(i)
			sym.Children = append(sym.Children, &Symbol{
				Name:      name,
				Kind:      KindMethod,
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   mEnd + 1,
				Signature: squashWhitespace(strings.TrimSuffix(strings.TrimSpace(src.lines[i]), "{")),
				Doc:       src.docAbove(i, "//"),
				Receiver:  name,
				Exported:  strings.Contains(body, "public"),
			})
			i = mEnd
			continue
		}

		if m := javaMethodRe.FindStringSubmatch(body); m != nil {
			retType := strings.TrimSpace(m[1])
			head := strings.Fields(retType)
			if len(head) > 0 && javaControlWords[head[0]] {
				continue
			}
			mEnd := src.blockEnd(i)
			child := &Symbol{
				Name:      m[2],
				Kind:      KindMethod,
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   mEnd + 1,
				Signature: squashWhitespace(strings.TrimSuffix(strings.TrimSpace(src.lines[i]), "{")),
				Doc:       src.docAbove(i, "//"),
				Receiver:  name,
				Exported:  strings.Contains(body, "public"),
			}
			if annotations := src.annotationsAbove(i); len(annotations) > 0 {
				child.Meta = &SymbolMeta{
					Decorators: annotations,
					ReturnType: retType,
				}
			}
			sym.Children = append(sym.Children, child)
			i = mEnd
		}
	}
	return sym
}

// extractCalls scans stripped lines for call expressions, attributing each
// to the innermost enclosing method.
func (p *JavaParser) extractCalls(src *scanSource, result *ParseResult) {
	flat := flattenSymbols(result.Symbols)
	for i, line := range src.stripped {
		for _, m := range javaCallRe.FindAllStringSubmatch(line, -1) {
			callee := m[1]
			head := callee
			if di := strings.Index(head, "."); di > 0 {
				head = head[:di]
			}
			if javaCallKeywords[head] || javaCallKeywords[callee] {
				continue
			}
			caller := enclosingCallable(flat, i+1)
			if caller == nil || caller.StartLine == i+1 {
				// Java has no module-level code worth attributing.
				continue
			}
			result.Calls = append(result.Calls, CallSite{Caller: caller.Name, Callee: callee, Line: i + 1})
		}
	}
}
