// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize turns raw extractor output into the canonical graph
// model.
//
// Extractors speak their language's vocabulary ("struct", "protocol",
// "component"); this package owns the mapping onto graph.EntityKind,
// computes qualified names from package and nesting, synthesizes the
// structural relations (Contains, Defines), and carries the raw reference
// relations (Calls, Imports, Inherits, Implements) forward for resolution
// against the full entity set.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// kindMap is the vocabulary table from extractor kind strings to the
// canonical enumeration. Struct-like and trait-like constructs fold into
// class and interface; module variables and constants become properties of
// their module.
var kindMap = map[string]graph.EntityKind{
	ast.KindModule:    graph.KindModule,
	ast.KindClass:     graph.KindClass,
	ast.KindStruct:    graph.KindClass,
	ast.KindInterface: graph.KindInterface,
	ast.KindProtocol:  graph.KindInterface,
	ast.KindTrait:     graph.KindInterface,
	ast.KindEnum:      graph.KindEnum,
	ast.KindFunction:  graph.KindFunction,
	ast.KindMethod:    graph.KindMethod,
	ast.KindProperty:  graph.KindProperty,
	ast.KindComponent: graph.KindComponent,
	ast.KindVariable:  graph.KindProperty,
	ast.KindConstant:  graph.KindProperty,
	"type":            graph.KindClass,
}

// MapKind maps an extractor kind string to the canonical kind.
// Unrecognized strings map to KindUnknown.
func MapKind(raw string) graph.EntityKind {
	if k, ok := kindMap[strings.ToLower(raw)]; ok {
		return k
	}
	return graph.KindUnknown
}

// Extraction confidence by provenance. Precise-grammar output is trusted
// fully; heuristic extractors and call candidates less so.
const (
	confidencePrecise   = 1.0
	confidenceHeuristic = 0.8
	confidenceCall      = 0.7
)

// preciseLanguages are the languages backed by a real grammar.
var preciseLanguages = map[string]bool{
	"python": true,
}

// RawRelation is a reference edge before name resolution: the source is a
// concrete entity ID, the target still a name as written in source.
type RawRelation struct {
	// SourceID is the originating entity's ID.
	SourceID string

	// SourceModule is the qualified name of the source's module, used for
	// file-local resolution preference.
	SourceModule string

	// TargetName is the referenced name as written.
	TargetName string

	// Type classifies the edge.
	Type graph.RelationType

	// Line is the 1-indexed source line.
	Line int

	// Confidence is the extraction confidence before resolution.
	Confidence float64
}

// NormalizedFile is the output of normalizing one parse result.
type NormalizedFile struct {
	// Module is the file's module entity; also present in Entities.
	Module graph.Entity

	// Entities holds every entity the file defines, module included.
	Entities []graph.Entity

	// Structural holds the synthesized Contains and Defines edges, fully
	// resolved (both endpoints are file-local).
	Structural []graph.Relation

	// References holds the unresolved reference edges (Calls, Imports,
	// Inherits, Implements) awaiting project-wide resolution.
	References []RawRelation
}

// Normalizer maps parse results onto the canonical model.
//
// # Thread Safety
//
// Normalizer is stateless apart from its logger and safe for concurrent use.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil logger falls back to the
// default slog logger.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// NormalizeFile converts one parse result into entities and relations.
//
// # Description
//
// Creates a module entity for the file, then walks the symbol tree
// computing dotted qualified names (module.Class.method). Name collisions
// within a file get a "#2", "#3" suffix so every entity keeps a distinct
// deterministic ID. Contains edges mirror symbol nesting; Defines edges
// connect the module to its top-level entities; imports, bases, interface
// declarations, and call candidates become RawRelations for resolution.
//
// # Inputs
//
//	projectID - Project scope for all produced records.
//	result - One extractor output. Must not be nil.
//
// # Outputs
//
//	*NormalizedFile - Entities plus structural and reference edges.
//	error - Non-nil only for invalid input.
func (n *Normalizer) NormalizeFile(projectID string, result *ast.ParseResult) (*NormalizedFile, error) {
	if result == nil {
		return nil, fmt.Errorf("normalize: nil parse result")
	}
	if projectID == "" {
		return nil, fmt.Errorf("normalize: empty project ID")
	}

	moduleName := result.Package
	if moduleName == "" {
		moduleName = moduleNameFromPath(result.FilePath)
	}

	out := &NormalizedFile{}
	used := map[string]int{}

	module := graph.Entity{
		ID:            graph.EntityID(projectID, moduleName, result.FilePath),
		ProjectID:     projectID,
		QualifiedName: moduleName,
		Name:          lastSegment(moduleName),
		Kind:          graph.KindModule,
		Language:      result.Language,
		FilePath:      result.FilePath,
		LineStart:     1,
		LineEnd:       maxLine(result),
	}
	used[moduleName] = 1
	out.Module = module
	out.Entities = append(out.Entities, module)

	refConf := confidenceHeuristic
	if preciseLanguages[result.Language] {
		refConf = confidencePrecise
	}

	// Imports: module -> external module path.
	for _, imp := range result.Imports {
		if imp.Path == "" {
			continue
		}
		out.References = append(out.References, RawRelation{
			SourceID:     module.ID,
			SourceModule: moduleName,
			TargetName:   imp.Path,
			Type:         graph.RelationImports,
			Line:         imp.Line,
			Confidence:   refConf,
		})
	}

	// Symbol tree walk with an explicit stack.
	type frame struct {
		sym      *ast.Symbol
		parentID string
		prefix   string
		topLevel bool
	}
	var stack []frame
	for i := len(result.Symbols) - 1; i >= 0; i-- {
		stack = append(stack, frame{
			sym:      result.Symbols[i],
			parentID: module.ID,
			prefix:   moduleName,
			topLevel: true,
		})
	}

	// callables maps symbol name -> entity ID for call-site attribution.
	// Last definition wins on shadowing, matching extractor attribution.
	callables := map[string]string{}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sym := f.sym

		qname := f.prefix + "." + sym.Name
		used[qname]++
		if c := used[qname]; c > 1 {
			qname = fmt.Sprintf("%s#%d", qname, c)
		}

		entity := n.entityFromSymbol(projectID, qname, sym, result.Language)
		out.Entities = append(out.Entities, entity)

		switch entity.Kind {
		case graph.KindFunction, graph.KindMethod, graph.KindComponent:
			callables[sym.Name] = entity.ID
		}

		// Structural edges are file-local and carry full confidence.
		containsType := graph.RelationContains
		if f.topLevel {
			containsType = graph.RelationDefines
		}
		out.Structural = append(out.Structural, n.resolvedRelation(
			projectID, f.parentID, entity.ID, qname, containsType, sym.StartLine))

		if sym.Meta != nil {
			for _, base := range sym.Meta.Extends {
				out.References = append(out.References, RawRelation{
					SourceID:     entity.ID,
					SourceModule: moduleName,
					TargetName:   base,
					Type:         graph.RelationInherits,
					Line:         sym.StartLine,
					Confidence:   refConf,
				})
			}
			for _, iface := range sym.Meta.Implements {
				out.References = append(out.References, RawRelation{
					SourceID:     entity.ID,
					SourceModule: moduleName,
					TargetName:   iface,
					Type:         graph.RelationImplements,
					Line:         sym.StartLine,
					Confidence:   refConf,
				})
			}
		}

		for i := len(sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				sym:      sym.Children[i],
				parentID: entity.ID,
				prefix:   qname,
				topLevel: false,
			})
		}
	}

	// Call candidates: attribute to the enclosing callable's entity, or
	// the module for top-level calls.
	for _, call := range result.Calls {
		sourceID := module.ID
		if call.Caller != "" {
			if id, ok := callables[call.Caller]; ok {
				sourceID = id
			} else {
				continue // caller was filtered out (private, depth cap)
			}
		}
		out.References = append(out.References, RawRelation{
			SourceID:     sourceID,
			SourceModule: moduleName,
			TargetName:   call.Callee,
			Type:         graph.RelationCalls,
			Line:         call.Line,
			Confidence:   confidenceCall,
		})
	}

	return out, nil
}

// entityFromSymbol builds one canonical entity from a raw symbol.
func (n *Normalizer) entityFromSymbol(projectID, qname string, sym *ast.Symbol, language string) graph.Entity {
	kind := MapKind(sym.Kind)
	if kind == graph.KindUnknown {
		n.logger.Debug("unmapped symbol kind",
			slog.String("kind", sym.Kind),
			slog.String("symbol", sym.Name))
	}

	e := graph.Entity{
		ID:            graph.EntityID(projectID, qname, sym.FilePath),
		ProjectID:     projectID,
		QualifiedName: qname,
		Name:          sym.Name,
		Kind:          kind,
		Language:      language,
		FilePath:      sym.FilePath,
		LineStart:     sym.StartLine,
		LineEnd:       sym.EndLine,
		Signature:     sym.Signature,
		DocSummary:    firstSentence(sym.Doc),
	}

	meta := &graph.EntityMetadata{
		Receiver: sym.Receiver,
		Exported: sym.Exported,
	}
	hasMeta := sym.Receiver != "" || sym.Exported
	if sym.Meta != nil {
		meta.Decorators = sym.Meta.Decorators
		meta.Extends = sym.Meta.Extends
		meta.Implements = sym.Meta.Implements
		meta.TypeParameters = sym.Meta.TypeParameters
		meta.IsAsync = sym.Meta.IsAsync
		meta.IsAbstract = sym.Meta.IsAbstract
		meta.Extra = sym.Meta.Extra
		hasMeta = true
	}
	if hasMeta {
		e.Metadata = meta
	}
	return e
}

// resolvedRelation builds a structural edge with both endpoints known.
func (n *Normalizer) resolvedRelation(projectID, sourceID, targetID, targetName string, typ graph.RelationType, line int) graph.Relation {
	r := graph.Relation{
		ProjectID:  projectID,
		SourceID:   sourceID,
		TargetID:   targetID,
		TargetName: targetName,
		Type:       typ,
		Confidence: confidencePrecise,
		Line:       line,
	}
	r.ID = graph.RelationID(projectID, r.DedupKey())
	return r
}

// moduleNameFromPath derives a dotted module name from a file path when the
// extractor did not report a package ("src/app.tsx" becomes "src.app").
func moduleNameFromPath(filePath string) string {
	name := filePath
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.Trim(name, "/")
	return strings.ReplaceAll(name, "/", ".")
}

func lastSegment(qname string) string {
	if idx := strings.LastIndex(qname, "."); idx >= 0 {
		return qname[idx+1:]
	}
	return qname
}

// firstSentence returns the first sentence of a doc string, capped for
// storage as a summary.
func firstSentence(doc string) string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return ""
	}
	if idx := strings.Index(doc, ". "); idx >= 0 {
		doc = doc[:idx+1]
	}
	const maxSummary = 200
	if len(doc) > maxSummary {
		doc = doc[:maxSummary]
	}
	return doc
}

// maxLine returns the highest end line across all symbols, with a floor of
// one, for the module entity's span.
func maxLine(result *ast.ParseResult) int {
	max := 1
	for _, sym := range result.Symbols {
		if sym.EndLine > max {
			max = sym.EndLine
		}
	}
	return max
}
