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
	"fmt"
	"sort"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// dependencyTypes are the edge types that constitute a dependency.
var dependencyTypes = []graph.RelationType{
	graph.RelationImports,
	graph.RelationUses,
}

// Dependency is one entry in a dependency closure.
type Dependency struct {
	// Entity is the resolved dependency; nil for external ones.
	Entity *graph.Entity `json:"entity,omitempty"`

	// Name is the dependency's name: qualified name for resolved
	// entities, the name as written for external ones.
	Name string `json:"name"`

	// External reports a dependency outside the analyzed project.
	External bool `json:"external,omitempty"`

	// Depth is the hop count from the queried entity (1 = direct).
	Depth int `json:"depth"`
}

// DependencyOptions configures FindDependencies.
type DependencyOptions struct {
	// Reverse finds dependents (who depends on this) instead of
	// dependencies.
	Reverse bool

	// Transitive follows the closure instead of direct edges only.
	Transitive bool

	// MaxDepth bounds the transitive closure. Zero uses DefaultMaxDepth.
	MaxDepth int
}

// FindDependencies returns what an entity depends on, or what depends on
// it, over Imports and Uses edges.
//
// # Description
//
// Direct mode returns one-hop edges. Transitive mode runs a BFS closure
// with a visited set, so shared and cyclic dependencies appear once, at
// their shortest depth. External dependencies appear by name and are
// never expanded; reverse mode yields only resolved entities, since
// external code cannot depend on project entities.
func (e *Engine) FindDependencies(ctx context.Context, projectID, entityID string, opts DependencyOptions) ([]Dependency, error) {
	if _, err := e.store.GetEntity(ctx, projectID, entityID); err != nil {
		return nil, err
	}

	maxDepth := 1
	if opts.Transitive {
		maxDepth = opts.MaxDepth
		if maxDepth <= 0 {
			maxDepth = DefaultMaxDepth
		}
	}

	dir := graph.DirectionOut
	if opts.Reverse {
		dir = graph.DirectionIn
	}

	var deps []Dependency
	visited := map[string]bool{entityID: true}
	seenExternal := map[string]bool{}

	type queueItem struct {
		id    string
		depth int
	}
	queue := []queueItem{{id: entityID, depth: 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return deps, nil
		}
		item := queue[0]
		queue = queue[1:]

		if item.depth >= maxDepth {
			continue
		}

		rels, err := e.store.GetRelations(ctx, projectID, item.id, dependencyTypes, dir)
		if err != nil {
			return nil, fmt.Errorf("dependencies of %s: %w", item.id, err)
		}

		for _, rel := range rels {
			nextID := rel.TargetID
			if opts.Reverse {
				nextID = rel.SourceID
			}

			if nextID == "" {
				if opts.Reverse || seenExternal[rel.TargetName] {
					continue
				}
				seenExternal[rel.TargetName] = true
				deps = append(deps, Dependency{
					Name:     rel.TargetName,
					External: true,
					Depth:    item.depth + 1,
				})
				continue
			}

			if visited[nextID] {
				continue
			}
			visited[nextID] = true

			entity, err := e.store.GetEntity(ctx, projectID, nextID)
			if err != nil {
				continue // dangling edge
			}
			deps = append(deps, Dependency{
				Entity: entity,
				Name:   entity.QualifiedName,
				Depth:  item.depth + 1,
			})
			queue = append(queue, queueItem{id: nextID, depth: item.depth + 1})
		}
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Depth != deps[j].Depth {
			return deps[i].Depth < deps[j].Depth
		}
		return deps[i].Name < deps[j].Name
	})
	return deps, nil
}
