// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph defines the canonical code knowledge graph model and its
// persistent store.
//
// Entities are normalized code constructs with deterministic IDs; relations
// are directed, typed edges between them. Quality issues and debt snapshots
// live alongside the graph so one store holds everything a project analysis
// produces. All keys are project-scoped: no operation can read or write
// across project boundaries.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityKind classifies a normalized code entity.
//
// The zero value is KindUnknown so an unset field is visible rather than
// silently becoming a module.
type EntityKind int

const (
	KindUnknown EntityKind = iota
	KindModule
	KindClass
	KindInterface
	KindEnum
	KindFunction
	KindMethod
	KindProperty
	KindComponent
)

var entityKindNames = map[EntityKind]string{
	KindUnknown:   "unknown",
	KindModule:    "module",
	KindClass:     "class",
	KindInterface: "interface",
	KindEnum:      "enum",
	KindFunction:  "function",
	KindMethod:    "method",
	KindProperty:  "property",
	KindComponent: "component",
}

var entityKindValues = func() map[string]EntityKind {
	m := make(map[string]EntityKind, len(entityKindNames))
	for k, v := range entityKindNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the kind.
func (k EntityKind) String() string {
	if name, ok := entityKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEntityKind maps a kind name to its EntityKind. Unrecognized names
// return KindUnknown and ok=false.
func ParseEntityKind(name string) (EntityKind, bool) {
	k, ok := entityKindValues[strings.ToLower(name)]
	return k, ok
}

// MarshalJSON encodes the kind as its string name.
func (k EntityKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its string name.
func (k *EntityKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseEntityKind(name)
	if !ok {
		return fmt.Errorf("unknown entity kind %q", name)
	}
	*k = parsed
	return nil
}

// EntityMetadata carries optional normalized details for an entity.
//
// Concrete fields are preferred over free-form maps. Extra exists only for
// extractor-specific notes that have no structured home.
type EntityMetadata struct {
	// Decorators lists decorator or annotation names applied to the entity.
	Decorators []string `json:"decorators,omitempty"`

	// Extends lists base class or parent type names as written in source.
	Extends []string `json:"extends,omitempty"`

	// Implements lists interface or protocol names the entity declares.
	Implements []string `json:"implements,omitempty"`

	// TypeParameters lists generic parameter names, when captured.
	TypeParameters []string `json:"type_parameters,omitempty"`

	// Receiver is the owner type name for methods.
	Receiver string `json:"receiver,omitempty"`

	// IsAsync indicates an async function or method.
	IsAsync bool `json:"is_async,omitempty"`

	// IsAbstract indicates an abstract class or method.
	IsAbstract bool `json:"is_abstract,omitempty"`

	// Exported reports source-language visibility.
	Exported bool `json:"exported,omitempty"`

	// Extra holds extractor-specific notes keyed by well-known strings.
	Extra map[string]string `json:"extra,omitempty"`
}

// Entity is one normalized code construct in the knowledge graph.
type Entity struct {
	// ID is the deterministic entity identifier (see EntityID).
	ID string `json:"id"`

	// ProjectID scopes the entity to one analyzed project.
	ProjectID string `json:"project_id"`

	// QualifiedName is the dotted path from module root to the entity.
	// Example: "pkg.util.io.Reader.read".
	QualifiedName string `json:"qualified_name"`

	// Name is the bare identifier (last segment of QualifiedName).
	Name string `json:"name"`

	// Kind classifies the entity.
	Kind EntityKind `json:"kind"`

	// Language is the source language ("python", "go", ...).
	Language string `json:"language"`

	// FilePath is the defining file, relative to project root.
	FilePath string `json:"file_path"`

	// LineStart and LineEnd are 1-indexed and inclusive.
	LineStart int `json:"line_start"`
	LineEnd   int `json:"line_end"`

	// Signature is the single-line declaration text.
	Signature string `json:"signature,omitempty"`

	// DocSummary is the first sentence of the entity's documentation.
	DocSummary string `json:"doc_summary,omitempty"`

	// Metadata carries optional details. May be nil.
	Metadata *EntityMetadata `json:"metadata,omitempty"`

	// UpdatedAtMilli is the Unix-millisecond time of the last write.
	UpdatedAtMilli int64 `json:"updated_at_milli"`
}

// EntityID computes the deterministic identifier for an entity: the first
// 16 hex characters of sha256("project|qualified_name|file_path").
//
// The same construct in the same file always maps to the same ID, which is
// what makes repeated analysis and incremental updates idempotent.
func EntityID(projectID, qualifiedName, filePath string) string {
	sum := sha256.Sum256([]byte(projectID + "|" + qualifiedName + "|" + filePath))
	return hex.EncodeToString(sum[:])[:16]
}

// Validate checks structural invariants on an entity.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidEntity)
	}
	if e.ProjectID == "" {
		return fmt.Errorf("%w: empty ProjectID", ErrInvalidEntity)
	}
	if e.QualifiedName == "" {
		return fmt.Errorf("%w: empty QualifiedName", ErrInvalidEntity)
	}
	if e.FilePath == "" {
		return fmt.Errorf("%w: empty FilePath", ErrInvalidEntity)
	}
	if strings.Contains(e.FilePath, "..") {
		return fmt.Errorf("%w: FilePath contains path traversal", ErrInvalidEntity)
	}
	if e.LineStart < 1 || e.LineEnd < e.LineStart {
		return fmt.Errorf("%w: bad line range %d-%d", ErrInvalidEntity, e.LineStart, e.LineEnd)
	}
	return nil
}

// ModulePrefix returns the directory portion of the entity's file path,
// used for architecture grouping. Returns "." for files at the root.
func (e *Entity) ModulePrefix() string {
	idx := strings.LastIndexAny(e.FilePath, "/\\")
	if idx < 0 {
		return "."
	}
	return e.FilePath[:idx]
}
