// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"sort"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// topExternalImports caps the external-import list in a summary.
const topExternalImports = 10

// ModuleSummary aggregates one directory's entities and cross-module
// coupling.
type ModuleSummary struct {
	// Path is the directory, "." for the project root.
	Path string `json:"path"`

	// EntityCounts counts entities by kind name.
	EntityCounts map[string]int `json:"entity_counts"`

	// TotalEntities is the module's entity count.
	TotalEntities int `json:"total_entities"`

	// FanIn counts edges arriving from other modules.
	FanIn int `json:"fan_in"`

	// FanOut counts edges leaving to other modules.
	FanOut int `json:"fan_out"`
}

// ExternalImport is one imported name outside the project.
type ExternalImport struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ArchitectureSummary is the project-level structural overview.
type ArchitectureSummary struct {
	ProjectID      string           `json:"project_id"`
	Modules        []ModuleSummary  `json:"modules"`
	ExternalTop    []ExternalImport `json:"top_external_imports,omitempty"`
	TotalEntities  int              `json:"total_entities"`
	TotalRelations int              `json:"total_relations"`
}

// SummarizeArchitecture builds a per-directory overview of the project.
//
// # Description
//
// Groups entities by the directory of their defining file, counts them by
// kind, and computes cross-module fan-in/fan-out over all relation types
// (edges within one module do not count as coupling). External imports
// are tallied by name; the most frequent appear in the summary.
func (e *Engine) SummarizeArchitecture(ctx context.Context, projectID string) (*ArchitectureSummary, error) {
	entities, err := e.store.ListEntities(ctx, projectID, graph.EntityFilter{})
	if err != nil {
		return nil, err
	}
	relations, err := e.store.ListRelations(ctx, projectID, nil)
	if err != nil {
		return nil, err
	}

	modules := make(map[string]*ModuleSummary)
	entityModule := make(map[string]string, len(entities))

	for i := range entities {
		ent := &entities[i]
		prefix := ent.ModulePrefix()
		entityModule[ent.ID] = prefix

		mod, ok := modules[prefix]
		if !ok {
			mod = &ModuleSummary{Path: prefix, EntityCounts: make(map[string]int)}
			modules[prefix] = mod
		}
		mod.EntityCounts[ent.Kind.String()]++
		mod.TotalEntities++
	}

	externalCounts := make(map[string]int)
	for _, rel := range relations {
		if rel.TargetID == "" {
			if rel.Type == graph.RelationImports {
				externalCounts[rel.TargetName]++
			}
			continue
		}
		srcMod, srcOK := entityModule[rel.SourceID]
		dstMod, dstOK := entityModule[rel.TargetID]
		if !srcOK || !dstOK || srcMod == dstMod {
			continue
		}
		modules[srcMod].FanOut++
		modules[dstMod].FanIn++
	}

	summary := &ArchitectureSummary{
		ProjectID:      projectID,
		TotalEntities:  len(entities),
		TotalRelations: len(relations),
	}
	for _, mod := range modules {
		summary.Modules = append(summary.Modules, *mod)
	}
	sort.Slice(summary.Modules, func(i, j int) bool {
		return summary.Modules[i].Path < summary.Modules[j].Path
	})

	for name, count := range externalCounts {
		summary.ExternalTop = append(summary.ExternalTop, ExternalImport{Name: name, Count: count})
	}
	sort.Slice(summary.ExternalTop, func(i, j int) bool {
		if summary.ExternalTop[i].Count != summary.ExternalTop[j].Count {
			return summary.ExternalTop[i].Count > summary.ExternalTop[j].Count
		}
		return summary.ExternalTop[i].Name < summary.ExternalTop[j].Name
	})
	if len(summary.ExternalTop) > topExternalImports {
		summary.ExternalTop = summary.ExternalTop[:topExternalImports]
	}

	return summary, nil
}
