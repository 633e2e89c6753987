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

// Patterns for the Go heuristic extractor.
var (
	goPackageRe   = regexp.MustCompile(`^package\s+(\w+)`)
	goImportOneRe = regexp.MustCompile(`^import\s+(?:(\w+|\.)\s+)?"([^"]+)"`)
	goImportLineRe = regexp.MustCompile(`^\s*(?:(\w+|\.)\s+)?"([^"]+)"`)

	goTypeRe   = regexp.MustCompile(`^type\s+(\w+)(?:\[[^\]]*\])?\s+(struct|interface)\s*\{`)
	goAliasRe  = regexp.MustCompile(`^type\s+(\w+)(?:\[[^\]]*\])?\s+`)
	goFuncRe   = regexp.MustCompile(`^func\s+(?:\(\s*\w+\s+\*?([\w\[\], ]+?)\s*\)\s+)?(\w+)(?:\[[^\]]*\])?\s*\(`)
	goConstRe  = regexp.MustCompile(`^(const|var)\s+(\w+)`)
	goGroupRe  = regexp.MustCompile(`^(const|var)\s*\($`)
	goGroupIdRe = regexp.MustCompile(`^\s*(\w+)\b`)
	goEmbedRe  = regexp.MustCompile(`^\s*\*?([A-Z]\w*(?:\.[A-Z]\w*)?)\s*$`)
	goIdentRe  = regexp.MustCompile(`^\w+$`)

	goCallRe = regexp.MustCompile(`([A-Za-z_][\w]*(?:\.[A-Za-z_][\w]*)*)\s*\(`)
)

// goCallKeywords are identifiers that match the call pattern but are
// control flow, builtins, or declarations.
var goCallKeywords = map[string]bool{
	"if": true, "for": true, "switch": true, "select": true, "func": true,
	"return": true, "go": true, "defer": true, "range": true,
	"make": true, "new": true, "len": true, "cap": true, "append": true,
	"copy": true, "delete": true, "panic": true, "recover": true,
	"print": true, "println": true, "close": true, "string": true,
	"int": true, "int64": true, "byte": true, "float64": true, "error": true,
}

// GoParserOption configures a GoParser instance.
type GoParserOption func(*GoParser)

// WithGoMaxFileSize sets the maximum file size the parser will accept.
func WithGoMaxFileSize(bytes int64) GoParserOption {
	return func(p *GoParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithGoParseOptions applies the given ParseOptions to the parser.
func WithGoParseOptions(opts ParseOptions) GoParserOption {
	return func(p *GoParser) {
		p.parseOptions = opts
	}
}

// GoParser is the heuristic extractor for Go source.
//
// # Description
//
// GoParser recovers the package clause, imports (single and factored
// blocks), struct and interface declarations with embedded types, top-level
// functions and methods with receivers, const/var declarations, and call
// candidates. Go's line-oriented declaration style makes the heuristic
// reliable for conventional gofmt-formatted code; hand-formatted
// declarations spanning odd line breaks may be missed.
//
// # Thread Safety
//
// GoParser instances are safe for concurrent use.
type GoParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewGoParser creates a GoParser with the given options.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "go".
func (p *GoParser) Language() string {
	return "go"
}

// Extensions returns the extensions this parser handles (.go).
func (p *GoParser) Extensions() []string {
	return []string{".go"}
}

// Parse extracts symbols, imports, and call candidates from Go source
// using pattern matching.
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := validateContent(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	started := time.Now()
	src := newScanSource(content, "//", true)

	result := &ParseResult{
		FilePath: filePath,
		Language: "go",
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
		raw := src.lines[i]

		if m := goPackageRe.FindStringSubmatch(line); m != nil && result.Package == "" {
			result.Package = m[1]
			continue
		}

		// Imports live in string literals, so match on the raw line.
		if m := goImportOneRe.FindStringSubmatch(raw); m != nil {
			result.Imports = append(result.Imports, Import{Path: m[2], Alias: m[1], Line: i + 1})
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "import (") {
			for j := i + 1; j < len(src.lines); j++ {
				if strings.TrimSpace(src.stripped[j]) == ")" {
					i = j
					break
				}
				if m := goImportLineRe.FindStringSubmatch(src.lines[j]); m != nil {
					result.Imports = append(result.Imports, Import{Path: m[2], Alias: m[1], Line: j + 1})
				}
			}
			continue
		}

		if m := goTypeRe.FindStringSubmatch(line); m != nil {
			sym := p.processType(src, i, filePath, m[1], m[2])
			result.Symbols = append(result.Symbols, sym)
			i = sym.EndLine - 1
			continue
		}
		if m := goAliasRe.FindStringSubmatch(line); m != nil {
			result.Symbols = append(result.Symbols, &Symbol{
				Name:      m[1],
				Kind:      "type",
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   i + 1,
				Signature: strings.TrimSpace(raw),
				Doc:       src.docAbove(i, "//"),
				Exported:  goExported(m[1]),
			})
			continue
		}

		if m := goFuncRe.FindStringSubmatch(line); m != nil {
			end := src.blockEnd(i)
			receiver := strings.TrimSpace(m[1])
			if bi := strings.IndexAny(receiver, "[ "); bi > 0 {
				receiver = receiver[:bi]
			}
			kind := KindFunction
			if receiver != "" {
				kind = KindMethod
			}
			result.Symbols = append(result.Symbols, &Symbol{
				Name:      m[2],
				Kind:      kind,
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   end + 1,
				Signature: squashWhitespace(strings.TrimSuffix(strings.TrimSpace(raw), "{")),
				Doc:       src.docAbove(i, "//"),
				Receiver:  receiver,
				Exported:  goExported(m[2]),
			})
			i = end
			continue
		}

		if goGroupRe.MatchString(strings.TrimRight(line, " \t")) {
			kindWord := strings.Fields(line)[0]
			for j := i + 1; j < len(src.lines); j++ {
				if strings.TrimSpace(src.stripped[j]) == ")" {
					i = j
					break
				}
				if m := goGroupIdRe.FindStringSubmatch(src.stripped[j]); m != nil && m[1] != "_" {
					result.Symbols = append(result.Symbols, &Symbol{
						Name:      m[1],
						Kind:      goValueKind(kindWord),
						FilePath:  filePath,
						StartLine: j + 1,
						EndLine:   j + 1,
						Exported:  goExported(m[1]),
					})
				}
			}
			continue
		}
		if m := goConstRe.FindStringSubmatch(line); m != nil {
			result.Symbols = append(result.Symbols, &Symbol{
				Name:      m[2],
				Kind:      goValueKind(m[1]),
				FilePath:  filePath,
				StartLine: i + 1,
				EndLine:   i + 1,
				Signature: strings.TrimSpace(raw),
				Doc:       src.docAbove(i, "//"),
				Exported:  goExported(m[2]),
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
	recordParse(ctx, "go", time.Since(started), len(result.Symbols), result.HasErrors())
	return result, nil
}

// processType extracts a struct or interface declaration. Embedded types
// (bare capitalized identifiers in the body) are recorded as Extends;
// interface methods become children.
func (p *GoParser) processType(src *scanSource, idx int, filePath, name, which string) *Symbol {
	end := src.blockEnd(idx)

	kind := KindStruct
	if which == "interface" {
		kind = KindInterface
	}

	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		StartLine: idx + 1,
		EndLine:   end + 1,
		Signature: strings.TrimSuffix(strings.TrimSpace(src.lines[idx]), "{"),
		Doc:       src.docAbove(idx, "//"),
		Exported:  goExported(name),
	}

	var embedded []string
	for i := idx + 1; i < end; i++ {
		body := src.stripped[i]
		if m := goEmbedRe.FindStringSubmatch(body); m != nil {
			embedded = append(embedded, m[1])
			continue
		}
		if which == "interface" {
			// Interface method: "Name(args) ret" with no func keyword.
			trimmed := strings.TrimSpace(body)
			if mi := strings.Index(trimmed, "("); mi > 0 {
				mName := trimmed[:mi]
				if goIdentRe.MatchString(mName) {
					sym.Children = append(sym.Children, &Symbol{
						Name:      mName,
						Kind:      KindMethod,
						FilePath:  filePath,
						StartLine: i + 1,
						EndLine:   i + 1,
						Signature: strings.TrimSpace(src.lines[i]),
						Receiver:  name,
						Exported:  goExported(mName),
					})
				}
			}
		}
	}
	if len(embedded) > 0 {
		sym.Meta = &SymbolMeta{Extends: embedded}
	}
	return sym
}

// extractCalls scans stripped lines for call expressions, attributing each
// to the innermost enclosing function or method.
func (p *GoParser) extractCalls(src *scanSource, result *ParseResult) {
	flat := flattenSymbols(result.Symbols)
	for i, line := range src.stripped {
		for _, m := range goCallRe.FindAllStringSubmatch(line, -1) {
			callee := m[1]
			head := callee
			if di := strings.Index(head, "."); di > 0 {
				head = head[:di]
			}
			if goCallKeywords[head] || goCallKeywords[callee] {
				continue
			}
			caller := enclosingCallable(flat, i+1)
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

// goValueKind maps a const/var keyword to the raw symbol kind.
func goValueKind(keyword string) string {
	if keyword == "const" {
		return KindConstant
	}
	return KindVariable
}

// goExported reports Go's capitalization-based visibility.
func goExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
