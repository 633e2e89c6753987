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
	"strings"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// Penalty factors applied during resolution. An exact qualified-name match
// keeps the extraction confidence; weaker bindings are marked down.
const (
	bareNamePenalty      = 0.8
	unresolvedConfidence = 0.5
)

type bareEntry struct {
	id     string
	module string
}

// NameIndex resolves target names to entity IDs across a project's full
// entity set.
//
// # Thread Safety
//
// NameIndex is not safe for concurrent mutation. Build it fully, then share
// it read-only.
type NameIndex struct {
	byQualified map[string]string
	byBare      map[string][]bareEntry
	modules     map[string]string // module qname -> module entity ID
}

// NewNameIndex creates an empty index.
func NewNameIndex() *NameIndex {
	return &NameIndex{
		byQualified: make(map[string]string),
		byBare:      make(map[string][]bareEntry),
		modules:     make(map[string]string),
	}
}

// BuildNameIndex indexes a batch of entities.
func BuildNameIndex(entities []graph.Entity) *NameIndex {
	idx := NewNameIndex()
	for i := range entities {
		idx.Add(&entities[i])
	}
	return idx
}

// Add indexes one entity.
func (idx *NameIndex) Add(e *graph.Entity) {
	idx.byQualified[e.QualifiedName] = e.ID
	module := moduleOf(e.QualifiedName)
	idx.byBare[e.Name] = append(idx.byBare[e.Name], bareEntry{id: e.ID, module: module})
	if e.Kind == graph.KindModule {
		idx.modules[e.QualifiedName] = e.ID
	}
}

// moduleOf strips the last segment of a qualified name.
func moduleOf(qname string) string {
	if idx := strings.LastIndex(qname, "."); idx > 0 {
		return qname[:idx]
	}
	return qname
}

// Resolve binds raw reference relations against the index.
//
// # Description
//
// Resolution order for each target name:
//
//  1. Exact qualified-name match.
//  2. Module-local match (source module + "." + name).
//  3. Bare-name match on the full name, then on its last segment,
//     preferring candidates in the source's own module; an ambiguous
//     cross-module bare name stays unresolved rather than guessing.
//
// Import edges only attempt the exact match: an import path either names a
// project module or points outside the project. Resolved bindings via bare
// name carry a confidence markdown; unresolved edges become external with
// confidence capped at the unresolved ceiling. Duplicate edges (same
// source, effective target, type) collapse to the highest-confidence one.
//
// # Outputs
//
//	[]graph.Relation - Resolved and external relations, ready to persist.
func (idx *NameIndex) Resolve(projectID string, refs []RawRelation) []graph.Relation {
	deduped := make(map[string]graph.Relation)

	for _, ref := range refs {
		if ref.TargetName == "" || ref.SourceID == "" {
			continue
		}

		targetID, confidence := idx.resolveTarget(ref)

		r := graph.Relation{
			ProjectID:  projectID,
			SourceID:   ref.SourceID,
			TargetID:   targetID,
			TargetName: ref.TargetName,
			Type:       ref.Type,
			Confidence: confidence,
			Line:       ref.Line,
		}
		r.ID = graph.RelationID(projectID, r.DedupKey())

		if existing, ok := deduped[r.DedupKey()]; !ok || r.Confidence > existing.Confidence {
			deduped[r.DedupKey()] = r
		}
	}

	out := make([]graph.Relation, 0, len(deduped))
	for _, r := range deduped {
		out = append(out, r)
	}
	return out
}

func (idx *NameIndex) resolveTarget(ref RawRelation) (string, float64) {
	if id, ok := idx.byQualified[ref.TargetName]; ok {
		return id, ref.Confidence
	}

	if ref.Type == graph.RelationImports {
		// Import paths do not participate in bare-name fallback.
		return "", capConfidence(ref.Confidence)
	}

	if id, ok := idx.byQualified[ref.SourceModule+"."+ref.TargetName]; ok {
		return id, ref.Confidence
	}

	if id, ok := idx.bareLookup(ref.TargetName, ref.SourceModule); ok {
		return id, ref.Confidence * bareNamePenalty
	}
	if dot := strings.LastIndex(ref.TargetName, "."); dot >= 0 {
		last := ref.TargetName[dot+1:]
		if id, ok := idx.bareLookup(last, ref.SourceModule); ok {
			return id, ref.Confidence * bareNamePenalty
		}
	}

	return "", capConfidence(ref.Confidence)
}

// bareLookup finds a unique entity for a bare name, preferring the source
// module. Ambiguity across modules yields no match.
func (idx *NameIndex) bareLookup(name, sourceModule string) (string, bool) {
	candidates := idx.byBare[name]
	if len(candidates) == 0 {
		return "", false
	}

	var local []bareEntry
	for _, c := range candidates {
		if c.module == sourceModule {
			local = append(local, c)
		}
	}
	if len(local) == 1 {
		return local[0].id, true
	}
	if len(local) > 1 {
		return "", false
	}
	if len(candidates) == 1 {
		return candidates[0].id, true
	}
	return "", false
}

func capConfidence(c float64) float64 {
	if c > unresolvedConfidence {
		return unresolvedConfidence
	}
	return c
}
