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

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

func indexEntity(projectID, qname, file string, kind graph.EntityKind) graph.Entity {
	return graph.Entity{
		ID:            graph.EntityID(projectID, qname, file),
		ProjectID:     projectID,
		QualifiedName: qname,
		Name:          lastSegment(qname),
		Kind:          kind,
		FilePath:      file,
		LineStart:     1,
		LineEnd:       5,
	}
}

func buildFixtureIndex() (*NameIndex, map[string]graph.Entity) {
	entities := map[string]graph.Entity{
		"a":        indexEntity("proj", "a", "a.py", graph.KindModule),
		"a.run":    indexEntity("proj", "a.run", "a.py", graph.KindFunction),
		"a.helper": indexEntity("proj", "a.helper", "a.py", graph.KindFunction),
		"b":        indexEntity("proj", "b", "b.py", graph.KindModule),
		"b.save":   indexEntity("proj", "b.save", "b.py", graph.KindFunction),
		// "dup" exists in both modules: bare lookup must not guess.
		"a.dup": indexEntity("proj", "a.dup", "a.py", graph.KindFunction),
		"b.dup": indexEntity("proj", "b.dup", "b.py", graph.KindFunction),
	}
	idx := NewNameIndex()
	for _, e := range entities {
		entity := e
		idx.Add(&entity)
	}
	return idx, entities
}

func resolveOne(t *testing.T, idx *NameIndex, ref RawRelation) graph.Relation {
	t.Helper()
	out := idx.Resolve("proj", []RawRelation{ref})
	if len(out) != 1 {
		t.Fatalf("Resolve() produced %d relations, want 1", len(out))
	}
	return out[0]
}

func TestResolve_ExactQualifiedName(t *testing.T) {
	idx, entities := buildFixtureIndex()
	r := resolveOne(t, idx, RawRelation{
		SourceID:     entities["a.run"].ID,
		SourceModule: "a",
		TargetName:   "b.save",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	})
	if r.TargetID != entities["b.save"].ID {
		t.Errorf("TargetID = %q, want b.save", r.TargetID)
	}
	if r.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want unchanged 0.7", r.Confidence)
	}
}

func TestResolve_ModuleLocalName(t *testing.T) {
	idx, entities := buildFixtureIndex()
	r := resolveOne(t, idx, RawRelation{
		SourceID:     entities["a.run"].ID,
		SourceModule: "a",
		TargetName:   "helper",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	})
	if r.TargetID != entities["a.helper"].ID {
		t.Errorf("TargetID = %q, want a.helper", r.TargetID)
	}
	if r.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want unchanged for module-local match", r.Confidence)
	}
}

func TestResolve_BareNameUniqueAcrossProject(t *testing.T) {
	idx, entities := buildFixtureIndex()
	r := resolveOne(t, idx, RawRelation{
		SourceID:     entities["a.run"].ID,
		SourceModule: "a",
		TargetName:   "save",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	})
	if r.TargetID != entities["b.save"].ID {
		t.Errorf("TargetID = %q, want b.save via unique bare name", r.TargetID)
	}
	if r.Confidence >= 0.7 {
		t.Errorf("Confidence = %v, want markdown for bare-name binding", r.Confidence)
	}
}

func TestResolve_AttributeCallLastSegment(t *testing.T) {
	idx, entities := buildFixtureIndex()
	// "store.save" does not exist as a qualified name; the last segment
	// "save" is unique project-wide.
	r := resolveOne(t, idx, RawRelation{
		SourceID:     entities["a.run"].ID,
		SourceModule: "a",
		TargetName:   "store.save",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	})
	if r.TargetID != entities["b.save"].ID {
		t.Errorf("TargetID = %q, want b.save via last segment", r.TargetID)
	}
}

func TestResolve_AmbiguousBareNameStaysExternal(t *testing.T) {
	idx, entities := buildFixtureIndex()
	r := resolveOne(t, idx, RawRelation{
		SourceID:     entities["b.save"].ID,
		SourceModule: "b",  // b has its own dup, so module preference wins
		TargetName:   "dup",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	})
	if r.TargetID != entities["b.dup"].ID {
		t.Errorf("TargetID = %q, want module-local b.dup", r.TargetID)
	}

	// From a module with no local dup the name is ambiguous: stay external.
	ext := resolveOne(t, idx, RawRelation{
		SourceID:     entities["b.save"].ID,
		SourceModule: "c",
		TargetName:   "dup",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	})
	if ext.TargetID != "" {
		t.Errorf("ambiguous name resolved to %q, want external", ext.TargetID)
	}
	if !ext.IsExternal() {
		t.Error("relation should be external")
	}
}

func TestResolve_ImportsOnlyExactMatch(t *testing.T) {
	idx, entities := buildFixtureIndex()

	internal := resolveOne(t, idx, RawRelation{
		SourceID:     entities["a"].ID,
		SourceModule: "a",
		TargetName:   "b",
		Type:         graph.RelationImports,
		Confidence:   1.0,
	})
	if internal.TargetID != entities["b"].ID {
		t.Errorf("internal import TargetID = %q, want module b", internal.TargetID)
	}

	external := resolveOne(t, idx, RawRelation{
		SourceID:     entities["a"].ID,
		SourceModule: "a",
		TargetName:   "os.path",
		Type:         graph.RelationImports,
		Confidence:   1.0,
	})
	if !external.IsExternal() {
		t.Error("os.path import should stay external")
	}
	if external.Confidence > unresolvedConfidence {
		t.Errorf("external confidence = %v, want capped", external.Confidence)
	}
}

func TestResolve_DeduplicatesEdges(t *testing.T) {
	idx, entities := buildFixtureIndex()
	refs := []RawRelation{
		{SourceID: entities["a.run"].ID, SourceModule: "a", TargetName: "b.save", Type: graph.RelationCalls, Confidence: 0.7, Line: 4},
		{SourceID: entities["a.run"].ID, SourceModule: "a", TargetName: "b.save", Type: graph.RelationCalls, Confidence: 0.7, Line: 9},
	}
	out := idx.Resolve("proj", refs)
	if len(out) != 1 {
		t.Errorf("Resolve() = %d relations, want deduplicated 1", len(out))
	}
}

func TestResolve_DeterministicRelationIDs(t *testing.T) {
	idx, entities := buildFixtureIndex()
	ref := RawRelation{
		SourceID:     entities["a.run"].ID,
		SourceModule: "a",
		TargetName:   "b.save",
		Type:         graph.RelationCalls,
		Confidence:   0.7,
	}
	first := resolveOne(t, idx, ref)
	second := resolveOne(t, idx, ref)
	if first.ID != second.ID {
		t.Error("relation ID must be deterministic")
	}
}
