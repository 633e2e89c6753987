// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"testing"

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// fixtureResult models the extraction of one python file:
//
//	import os
//	class Widget(Base):
//	    def render(self): ...
//	def render(): ...          <- bare-name collision with the method's name
func fixtureResult() *ast.ParseResult {
	return &ast.ParseResult{
		FilePath: "pkg/widget.py",
		Language: "python",
		Package:  "pkg.widget",
		Imports: []ast.Import{
			{Path: "os", Line: 1},
		},
		Symbols: []*ast.Symbol{
			{
				Name: "Widget", Kind: ast.KindClass, FilePath: "pkg/widget.py",
				StartLine: 3, EndLine: 8,
				Doc:  "A widget. It renders.",
				Meta: &ast.SymbolMeta{Extends: []string{"Base"}},
				Children: []*ast.Symbol{
					{
						Name: "render", Kind: ast.KindMethod, FilePath: "pkg/widget.py",
						StartLine: 4, EndLine: 6, Receiver: "Widget",
					},
				},
			},
			{
				Name: "render", Kind: ast.KindFunction, FilePath: "pkg/widget.py",
				StartLine: 10, EndLine: 12,
			},
		},
		Calls: []ast.CallSite{
			{Caller: "render", Callee: "os.getcwd", Line: 11},
		},
	}
}

func findEntity(t *testing.T, entities []graph.Entity, qname string) graph.Entity {
	t.Helper()
	for _, e := range entities {
		if e.QualifiedName == qname {
			return e
		}
	}
	t.Fatalf("entity %q not found in %d entities", qname, len(entities))
	return graph.Entity{}
}

func TestNormalizeFile_Entities(t *testing.T) {
	n := NewNormalizer(nil)
	out, err := n.NormalizeFile("proj", fixtureResult())
	if err != nil {
		t.Fatalf("NormalizeFile() error = %v", err)
	}

	// module + class + method + function
	if len(out.Entities) != 4 {
		t.Fatalf("entities = %d, want 4", len(out.Entities))
	}

	module := findEntity(t, out.Entities, "pkg.widget")
	if module.Kind != graph.KindModule {
		t.Errorf("module kind = %v", module.Kind)
	}
	if module.ID != out.Module.ID {
		t.Error("Module field must match the module entity")
	}

	widget := findEntity(t, out.Entities, "pkg.widget.Widget")
	if widget.Kind != graph.KindClass {
		t.Errorf("Widget kind = %v, want class", widget.Kind)
	}
	if widget.DocSummary != "A widget." {
		t.Errorf("DocSummary = %q, want first sentence", widget.DocSummary)
	}

	method := findEntity(t, out.Entities, "pkg.widget.Widget.render")
	if method.Kind != graph.KindMethod {
		t.Errorf("method kind = %v", method.Kind)
	}
	if method.Metadata == nil || method.Metadata.Receiver != "Widget" {
		t.Errorf("method metadata = %+v, want receiver Widget", method.Metadata)
	}

	fn := findEntity(t, out.Entities, "pkg.widget.render")
	if fn.Kind != graph.KindFunction {
		t.Errorf("function kind = %v", fn.Kind)
	}
}

func TestNormalizeFile_DeterministicIDs(t *testing.T) {
	n := NewNormalizer(nil)
	first, err := n.NormalizeFile("proj", fixtureResult())
	if err != nil {
		t.Fatal(err)
	}
	second, err := n.NormalizeFile("proj", fixtureResult())
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Entities {
		if first.Entities[i].ID != second.Entities[i].ID {
			t.Errorf("entity %s ID changed between runs", first.Entities[i].QualifiedName)
		}
	}
}

func TestNormalizeFile_StructuralEdges(t *testing.T) {
	n := NewNormalizer(nil)
	out, err := n.NormalizeFile("proj", fixtureResult())
	if err != nil {
		t.Fatal(err)
	}

	module := findEntity(t, out.Entities, "pkg.widget")
	widget := findEntity(t, out.Entities, "pkg.widget.Widget")
	method := findEntity(t, out.Entities, "pkg.widget.Widget.render")

	var defines, contains int
	for _, r := range out.Structural {
		switch r.Type {
		case graph.RelationDefines:
			defines++
			if r.SourceID != module.ID {
				t.Errorf("defines edge from %s, want module", r.SourceID)
			}
		case graph.RelationContains:
			contains++
			if r.SourceID != widget.ID || r.TargetID != method.ID {
				t.Errorf("contains edge %s -> %s, want Widget -> render", r.SourceID, r.TargetID)
			}
		}
	}
	if defines != 2 {
		t.Errorf("defines edges = %d, want 2 (class + top-level function)", defines)
	}
	if contains != 1 {
		t.Errorf("contains edges = %d, want 1", contains)
	}
}

func TestNormalizeFile_References(t *testing.T) {
	n := NewNormalizer(nil)
	out, err := n.NormalizeFile("proj", fixtureResult())
	if err != nil {
		t.Fatal(err)
	}

	widget := findEntity(t, out.Entities, "pkg.widget.Widget")
	fn := findEntity(t, out.Entities, "pkg.widget.render")

	var imports, inherits, calls int
	for _, ref := range out.References {
		switch ref.Type {
		case graph.RelationImports:
			imports++
			if ref.TargetName != "os" {
				t.Errorf("import target = %q", ref.TargetName)
			}
		case graph.RelationInherits:
			inherits++
			if ref.SourceID != widget.ID || ref.TargetName != "Base" {
				t.Errorf("inherits ref = %+v", ref)
			}
		case graph.RelationCalls:
			calls++
			if ref.SourceID != fn.ID {
				t.Errorf("call attributed to %s, want the top-level render", ref.SourceID)
			}
		}
	}
	if imports != 1 || inherits != 1 || calls != 1 {
		t.Errorf("refs = %d imports, %d inherits, %d calls", imports, inherits, calls)
	}
}

func TestNormalizeFile_CollisionSuffix(t *testing.T) {
	result := &ast.ParseResult{
		FilePath: "m.py",
		Language: "python",
		Package:  "m",
		Symbols: []*ast.Symbol{
			{Name: "dup", Kind: ast.KindFunction, FilePath: "m.py", StartLine: 1, EndLine: 2},
			{Name: "dup", Kind: ast.KindFunction, FilePath: "m.py", StartLine: 4, EndLine: 5},
			{Name: "dup", Kind: ast.KindFunction, FilePath: "m.py", StartLine: 7, EndLine: 8},
		},
	}
	n := NewNormalizer(nil)
	out, err := n.NormalizeFile("proj", result)
	if err != nil {
		t.Fatal(err)
	}

	qnames := map[string]bool{}
	ids := map[string]bool{}
	for _, e := range out.Entities {
		if qnames[e.QualifiedName] {
			t.Errorf("duplicate qualified name %q", e.QualifiedName)
		}
		qnames[e.QualifiedName] = true
		if ids[e.ID] {
			t.Errorf("duplicate entity ID %q", e.ID)
		}
		ids[e.ID] = true
	}
	if !qnames["m.dup"] || !qnames["m.dup#2"] || !qnames["m.dup#3"] {
		t.Errorf("collision suffixes missing: %v", qnames)
	}
}

func TestMapKind(t *testing.T) {
	tests := []struct {
		raw  string
		want graph.EntityKind
	}{
		{ast.KindStruct, graph.KindClass},
		{ast.KindProtocol, graph.KindInterface},
		{ast.KindTrait, graph.KindInterface},
		{ast.KindComponent, graph.KindComponent},
		{ast.KindConstant, graph.KindProperty},
		{"type", graph.KindClass},
		{"garbage", graph.KindUnknown},
	}
	for _, tt := range tests {
		if got := MapKind(tt.raw); got != tt.want {
			t.Errorf("MapKind(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeFile_NilResult(t *testing.T) {
	n := NewNormalizer(nil)
	if _, err := n.NormalizeFile("proj", nil); err == nil {
		t.Error("expected error for nil result")
	}
	if _, err := n.NormalizeFile("", fixtureResult()); err == nil {
		t.Error("expected error for empty project")
	}
}
