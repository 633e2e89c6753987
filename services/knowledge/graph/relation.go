// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// RelationType classifies a directed edge between entities.
type RelationType int

const (
	RelationUnknown RelationType = iota
	RelationCalls
	RelationImports
	RelationInherits
	RelationImplements
	RelationContains
	RelationUses
	RelationDefines
)

var relationTypeNames = map[RelationType]string{
	RelationUnknown:    "unknown",
	RelationCalls:      "calls",
	RelationImports:    "imports",
	RelationInherits:   "inherits",
	RelationImplements: "implements",
	RelationContains:   "contains",
	RelationUses:       "uses",
	RelationDefines:    "defines",
}

var relationTypeValues = func() map[string]RelationType {
	m := make(map[string]RelationType, len(relationTypeNames))
	for k, v := range relationTypeNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the relation type.
func (t RelationType) String() string {
	if name, ok := relationTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseRelationType maps a type name to its RelationType.
func ParseRelationType(name string) (RelationType, bool) {
	t, ok := relationTypeValues[strings.ToLower(name)]
	return t, ok
}

// MarshalJSON encodes the relation type as its string name.
func (t RelationType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a relation type from its string name.
func (t *RelationType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseRelationType(name)
	if !ok {
		return fmt.Errorf("unknown relation type %q", name)
	}
	*t = parsed
	return nil
}

// Direction selects which edges of an entity a query traverses.
type Direction int

const (
	// DirectionOut follows edges where the entity is the source.
	DirectionOut Direction = iota

	// DirectionIn follows edges where the entity is the target.
	DirectionIn

	// DirectionBoth follows edges in either orientation.
	DirectionBoth
)

// Relation is one directed, typed edge in the knowledge graph.
//
// An edge with an empty TargetID and a non-empty TargetName points at
// something outside the analyzed project (a standard-library module, a
// third-party package) or at a name resolution could not bind.
type Relation struct {
	// ID is the deterministic relation identifier (see RelationID).
	ID string `json:"id"`

	// ProjectID scopes the relation to one analyzed project.
	ProjectID string `json:"project_id"`

	// SourceID is the originating entity's ID.
	SourceID string `json:"source_id"`

	// TargetID is the target entity's ID; empty for external targets.
	TargetID string `json:"target_id,omitempty"`

	// TargetName is the target as written in source. Always set for
	// external targets; retained for resolved ones as provenance.
	TargetName string `json:"target_name,omitempty"`

	// Type classifies the edge.
	Type RelationType `json:"type"`

	// Confidence is the extraction confidence in [0,1]. Precise-grammar
	// extractions carry 1.0; heuristic and unresolved edges less.
	Confidence float64 `json:"confidence"`

	// Line is the 1-indexed source line the edge was extracted from.
	Line int `json:"line,omitempty"`

	// UpdatedAtMilli is the Unix-millisecond time of the last write.
	UpdatedAtMilli int64 `json:"updated_at_milli"`
}

// IsExternal reports whether the relation points outside the project graph.
func (r *Relation) IsExternal() bool {
	return r.TargetID == "" && r.TargetName != ""
}

// DedupKey returns the identity key for upserts: two relations with the
// same source, effective target, and type are the same edge.
func (r *Relation) DedupKey() string {
	target := r.TargetID
	if target == "" {
		target = "ext:" + r.TargetName
	}
	return r.SourceID + "|" + target + "|" + r.Type.String()
}

// RelationID computes the deterministic identifier for an edge from its
// project and dedup key, in the same format as EntityID.
func RelationID(projectID, dedupKey string) string {
	sum := sha256.Sum256([]byte(projectID + "|" + dedupKey))
	return hex.EncodeToString(sum[:])[:16]
}

// Validate checks structural invariants on a relation.
func (r *Relation) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidRelation)
	}
	if r.ProjectID == "" {
		return fmt.Errorf("%w: empty ProjectID", ErrInvalidRelation)
	}
	if r.SourceID == "" {
		return fmt.Errorf("%w: empty SourceID", ErrInvalidRelation)
	}
	if r.TargetID == "" && r.TargetName == "" {
		return fmt.Errorf("%w: neither TargetID nor TargetName set", ErrInvalidRelation)
	}
	if r.Type == RelationUnknown {
		return fmt.Errorf("%w: unknown relation type", ErrInvalidRelation)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidRelation, r.Confidence)
	}
	return nil
}
