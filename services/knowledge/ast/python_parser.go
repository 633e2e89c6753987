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
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithPythonParseOptions applies the given ParseOptions to the parser.
func WithPythonParseOptions(opts ParseOptions) PythonParserOption {
	return func(p *PythonParser) {
		p.parseOptions = opts
	}
}

// PythonParser is the precise-grammar extractor for Python source.
//
// # Description
//
// PythonParser walks a full tree-sitter syntax tree and extracts imports,
// classes (with bases, decorators, and members, including nested
// definitions), functions, module variables, and call expressions for the
// call graph. It is the only extractor with full-grammar coverage; the
// other languages use heuristic extraction.
//
// # Thread Safety
//
// PythonParser instances are safe for concurrent use. Each Parse call
// creates its own tree-sitter parser internally.
//
// # Example
//
//	parser := NewPythonParser()
//	result, err := parser.Parse(ctx, []byte("def hello(): pass"), "main.py")
type PythonParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewPythonParser creates a PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "python".
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the extensions this parser handles (.py, .pyi).
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Parse extracts symbols, imports, and call sites from Python source.
//
// # Description
//
// Parse is error-tolerant: syntactically invalid source yields partial
// results with an entry in ParseResult.Errors, never a crash.
//
// # Inputs
//
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw source bytes. Must be valid UTF-8.
//   - filePath: Path relative to project root, forward slashes.
//
// # Outputs
//
//   - *ParseResult: Extracted facts. Never nil on success.
//   - error: Non-nil only for complete failures (ErrFileTooLarge,
//     ErrInvalidContent, context errors).
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := validateContent(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	started := time.Now()

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath: filePath,
		Language: "python",
		Package:  moduleNameFromPath(filePath),
		Hash:     contentHash(content),
		Symbols:  make([]*Symbol, 0),
		Imports:  make([]Import, 0),
		Errors:   make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		result.SetParsedAt()
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.extractImports(root, content, result)
	p.extractDefinitions(root, content, filePath, result)
	if p.parseOptions.IncludeCalls {
		p.extractCalls(root, content, result)
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	result.SetParsedAt()
	result.ParseDurationMs = time.Since(started).Milliseconds()
	recordParse(ctx, "python", time.Since(started), len(result.Symbols), result.HasErrors())
	return result, nil
}

// moduleNameFromPath derives a dotted module name from a file path.
// "pkg/util/io.py" becomes "pkg.util.io".
func moduleNameFromPath(filePath string) string {
	trimmed := filePath
	for _, ext := range []string{".py", ".pyi"} {
		trimmed = strings.TrimSuffix(trimmed, ext)
	}
	trimmed = strings.TrimSuffix(trimmed, "/__init__")
	return strings.ReplaceAll(trimmed, "/", ".")
}

// extractImports walks top-level import statements.
func (p *PythonParser) extractImports(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement":
			p.processImportStatement(child, content, result)
		case "import_from_statement":
			p.processImportFromStatement(child, content, result)
		}
	}
}

// processImportStatement handles 'import foo' and 'import foo as bar'.
func (p *PythonParser) processImportStatement(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			result.Imports = append(result.Imports, Import{
				Path: nodeText(child, content),
				Line: int(node.StartPoint().Row + 1),
			})
		case "aliased_import":
			var path, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "dotted_name":
					path = nodeText(gc, content)
				case "identifier":
					alias = nodeText(gc, content)
				}
			}
			if path != "" {
				result.Imports = append(result.Imports, Import{
					Path:  path,
					Alias: alias,
					Line:  int(node.StartPoint().Row + 1),
				})
			}
		}
	}
}

// processImportFromStatement handles 'from x import y' variants, including
// relative, aliased, and wildcard imports.
func (p *PythonParser) processImportFromStatement(node *sitter.Node, content []byte, result *ParseResult) {
	var modulePath string
	var names []string
	var isWildcard, isRelative, sawImport bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			isRelative = true
			var prefix, name string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "import_prefix":
					prefix = nodeText(gc, content)
				case "dotted_name":
					name = nodeText(gc, content)
				}
			}
			modulePath = prefix + name
		case "dotted_name":
			if !sawImport {
				modulePath = nodeText(child, content)
			} else {
				names = append(names, nodeText(child, content))
			}
		case "wildcard_import":
			isWildcard = true
		case "aliased_import":
			var importName, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "identifier":
					if importName == "" {
						importName = nodeText(gc, content)
					} else {
						alias = nodeText(gc, content)
					}
				case "dotted_name":
					if importName == "" {
						importName = nodeText(gc, content)
					}
				}
			}
			if alias != "" {
				names = append(names, importName+" as "+alias)
			} else if importName != "" {
				names = append(names, importName)
			}
		case "identifier":
			if sawImport {
				names = append(names, nodeText(child, content))
			}
		}
	}

	if modulePath == "" && !isRelative {
		return
	}
	result.Imports = append(result.Imports, Import{
		Path:       modulePath,
		Names:      names,
		IsWildcard: isWildcard,
		IsRelative: isRelative,
		Line:       int(node.StartPoint().Row + 1),
	})
}

// extractDefinitions walks top-level classes, functions, and variables.
func (p *PythonParser) extractDefinitions(root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "class_definition":
			if cls := p.processClass(child, content, filePath, nil); cls != nil {
				result.Symbols = append(result.Symbols, cls)
			}
		case "function_definition":
			if fn := p.processFunction(child, content, filePath, nil, ""); fn != nil {
				p.extractNestedFunctions(child, content, filePath, fn)
				result.Symbols = append(result.Symbols, fn)
			}
		case "decorated_definition":
			decorators := p.extractDecorators(child, content)
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "class_definition":
					if cls := p.processClass(gc, content, filePath, decorators); cls != nil {
						result.Symbols = append(result.Symbols, cls)
					}
				case "function_definition":
					if fn := p.processFunction(gc, content, filePath, decorators, ""); fn != nil {
						p.extractNestedFunctions(gc, content, filePath, fn)
						result.Symbols = append(result.Symbols, fn)
					}
				}
			}
		case "expression_statement":
			if child.ChildCount() > 0 {
				expr := child.Child(0)
				if expr.Type() == "assignment" {
					if v := p.processModuleVariable(expr, content, filePath); v != nil {
						result.Symbols = append(result.Symbols, v)
					}
				}
			}
		}
	}
}

// processClass extracts a class definition with bases, members, and
// docstring. Classes whose bases include Protocol are reported with the raw
// kind "protocol" so the normalizer can map them to Interface.
func (p *PythonParser) processClass(node *sitter.Node, content []byte, filePath string, decorators []string) *Symbol {
	var name string
	var bases []string
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			name = nodeText(child, content)
		case "argument_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				arg := child.Child(j)
				if arg.Type() == "identifier" || arg.Type() == "attribute" || arg.Type() == "subscript" {
					bases = append(bases, nodeText(arg, content))
				}
			}
		case "block":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}
	exported := pythonExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	kind := KindClass
	for _, b := range bases {
		if b == "Protocol" || strings.HasSuffix(b, ".Protocol") || strings.HasPrefix(b, "Protocol[") {
			kind = KindProtocol
		}
	}

	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Exported:  exported,
		Signature: fmt.Sprintf("class %s(%s)", name, strings.Join(bases, ", ")),
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		Children:  make([]*Symbol, 0),
	}
	if bodyNode != nil {
		sym.Doc = p.extractDocstring(bodyNode, content)
	}
	if len(decorators) > 0 || len(bases) > 0 {
		sym.Meta = &SymbolMeta{
			Decorators: decorators,
			Extends:    bases,
		}
	}

	if bodyNode != nil {
		p.extractClassMembers(bodyNode, content, filePath, sym)
	}
	return sym
}

// extractClassMembers extracts methods and class variables from a class body.
func (p *PythonParser) extractClassMembers(body *sitter.Node, content []byte, filePath string, classSym *Symbol) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			if m := p.processFunction(child, content, filePath, nil, classSym.Name); m != nil {
				classSym.Children = append(classSym.Children, m)
			}
		case "decorated_definition":
			decorators := p.extractDecorators(child, content)
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "function_definition" {
					if m := p.processFunction(gc, content, filePath, decorators, classSym.Name); m != nil {
						classSym.Children = append(classSym.Children, m)
					}
					break
				}
			}
		case "class_definition":
			// Inner class
			if inner := p.processClass(child, content, filePath, nil); inner != nil {
				classSym.Children = append(classSym.Children, inner)
			}
		case "expression_statement":
			if child.ChildCount() > 0 {
				assign := child.Child(0)
				if assign.Type() == "assignment" || assign.Type() == "augmented_assignment" {
					if field := p.processAssignment(assign, content, filePath, KindProperty); field != nil {
						classSym.Children = append(classSym.Children, field)
					}
				}
			}
		}
	}
}

// processFunction extracts a function or method definition.
func (p *PythonParser) processFunction(node *sitter.Node, content []byte, filePath string, decorators []string, className string) *Symbol {
	var name, params, returnType, docstring string
	var isAsync bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "async":
			isAsync = true
		case "identifier":
			name = nodeText(child, content)
		case "parameters":
			params = squashWhitespace(nodeText(child, content))
		case "type":
			returnType = nodeText(child, content)
		case "block":
			docstring = p.extractDocstring(child, content)
		}
	}

	if name == "" {
		return nil
	}
	exported := pythonExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	kind := KindFunction
	isStatic := false
	if className != "" {
		kind = KindMethod
	}
	for _, dec := range decorators {
		switch dec {
		case "property", "cached_property", "functools.cached_property":
			kind = KindProperty
		case "staticmethod", "classmethod":
			isStatic = true
		}
	}

	signature := fmt.Sprintf("def %s%s", name, params)
	if isAsync {
		signature = "async " + signature
	}
	if returnType != "" {
		signature += " -> " + returnType
	}

	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Exported:  exported,
		Signature: signature,
		Doc:       docstring,
		Receiver:  className,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
	}
	if len(decorators) > 0 || returnType != "" || isAsync || isStatic {
		sym.Meta = &SymbolMeta{
			Decorators: decorators,
			ReturnType: returnType,
			IsAsync:    isAsync,
			IsStatic:   isStatic,
		}
	}
	return sym
}

// extractNestedFunctions extracts function definitions nested inside a
// function body. One level of decoration is honored; deeper nesting
// recurses through the tree, bounded by tree depth.
func (p *PythonParser) extractNestedFunctions(funcNode *sitter.Node, content []byte, filePath string, parentFn *Symbol) {
	for i := 0; i < int(funcNode.ChildCount()); i++ {
		child := funcNode.Child(i)
		if child.Type() != "block" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			stmt := child.Child(j)
			switch stmt.Type() {
			case "function_definition":
				if nested := p.processFunction(stmt, content, filePath, nil, ""); nested != nil {
					p.extractNestedFunctions(stmt, content, filePath, nested)
					parentFn.Children = append(parentFn.Children, nested)
				}
			case "decorated_definition":
				decorators := p.extractDecorators(stmt, content)
				for k := 0; k < int(stmt.ChildCount()); k++ {
					def := stmt.Child(k)
					if def.Type() == "function_definition" {
						if nested := p.processFunction(def, content, filePath, decorators, ""); nested != nil {
							parentFn.Children = append(parentFn.Children, nested)
						}
						break
					}
				}
			}
		}
		break
	}
}

// processModuleVariable extracts a top-level assignment as a variable or
// constant (ALL_CAPS convention).
func (p *PythonParser) processModuleVariable(node *sitter.Node, content []byte, filePath string) *Symbol {
	return p.processAssignment(node, content, filePath, "")
}

// processAssignment extracts an assignment target. kindOverride forces the
// reported kind (class properties); empty picks variable/constant by naming
// convention.
func (p *PythonParser) processAssignment(node *sitter.Node, content []byte, filePath string, kindOverride string) *Symbol {
	var name, typeStr string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = nodeText(child, content)
			}
		case "type":
			typeStr = nodeText(child, content)
		}
	}

	if name == "" {
		return nil
	}
	exported := pythonExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	kind := kindOverride
	if kind == "" {
		kind = KindVariable
		if isAllCaps(name) {
			kind = KindConstant
		}
	}

	return &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Exported:  exported,
		Signature: typeStr,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
	}
}

// extractDecorators extracts decorator names from a decorated_definition.
func (p *PythonParser) extractDecorators(node *sitter.Node, content []byte) []string {
	decorators := make([]string, 0)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "decorator" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "identifier", "attribute":
				decorators = append(decorators, nodeText(gc, content))
			case "call":
				// Decorator with arguments: @foo(x)
				for k := 0; k < int(gc.ChildCount()); k++ {
					ggc := gc.Child(k)
					if ggc.Type() == "identifier" || ggc.Type() == "attribute" {
						decorators = append(decorators, nodeText(ggc, content))
						break
					}
				}
			}
		}
	}
	return decorators
}

// extractCalls walks the whole tree iteratively and records call
// expressions together with their innermost enclosing function name.
//
// Iterative with an explicit stack: generated Python can nest deeply enough
// to blow the call stack on a recursive walk.
func (p *PythonParser) extractCalls(root *sitter.Node, content []byte, result *ParseResult) {
	type frame struct {
		node      *sitter.Node
		enclosing string
	}

	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		enclosing := f.enclosing
		if f.node.Type() == "function_definition" {
			for i := 0; i < int(f.node.ChildCount()); i++ {
				c := f.node.Child(i)
				if c.Type() == "identifier" {
					enclosing = nodeText(c, content)
					break
				}
			}
		}

		if f.node.Type() == "call" {
			if callee := p.calleeName(f.node, content); callee != "" {
				result.Calls = append(result.Calls, CallSite{
					Caller: enclosing,
					Callee: callee,
					Line:   int(f.node.StartPoint().Row + 1),
				})
			}
		}

		for i := int(f.node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Child(i), enclosing: enclosing})
		}
	}
}

// calleeName returns the called expression's name for a call node:
// "run" for run(), "json.dumps" for json.dumps(), "self.save" for
// self.save().
func (p *PythonParser) calleeName(call *sitter.Node, content []byte) string {
	if call.ChildCount() == 0 {
		return ""
	}
	fn := call.Child(0)
	switch fn.Type() {
	case "identifier", "attribute":
		return nodeText(fn, content)
	default:
		return ""
	}
}

// extractDocstring extracts the docstring from a block node.
func (p *PythonParser) extractDocstring(block *sitter.Node, content []byte) string {
	if block.ChildCount() == 0 {
		return ""
	}
	first := block.Child(0)
	if first.Type() == "expression_statement" && first.ChildCount() > 0 {
		strNode := first.Child(0)
		if strNode.Type() == "string" {
			raw := nodeText(strNode, content)
			return strings.TrimSpace(strings.Trim(raw, `"'`))
		}
	}
	return ""
}

// nodeText returns the source text covered by a tree-sitter node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// squashWhitespace collapses runs of whitespace (including newlines) into
// single spaces. Used to single-line multi-line signatures.
func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// pythonExported reports whether a Python name is public by convention.
// Dunder names (__init__) are public; underscore-prefixed names are not.
func pythonExported(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return !strings.HasPrefix(name, "_")
}

// isAllCaps reports whether a name follows the ALL_CAPS constant
// convention. Requires at least one letter.
func isAllCaps(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return hasLetter
}
