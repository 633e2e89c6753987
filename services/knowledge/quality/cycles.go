// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// cycleEdgeTypes restrict the cycle subgraph to dependency edges.
var cycleEdgeTypes = []graph.RelationType{
	graph.RelationImports,
	graph.RelationUses,
}

// node colors for the DFS.
const (
	colorWhite = iota
	colorGray
	colorBlack
)

// DetectCycles finds circular dependencies over Imports and Uses edges.
//
// # Description
//
// Runs depth-first search with an explicit frame stack, so deep graphs
// cannot exhaust the goroutine stack. A back-edge into a gray node yields
// the cycle as the gray-path slice from that node to the current one.
// Cycles are canonicalized by rotating the smallest entity id first, so
// each cycle is reported once regardless of discovery order. Severity
// scales with length: more than 4 entities is critical, more than 2 is
// high, the rest medium.
//
// # Outputs
//
//	[]graph.QualityIssue - One open issue per distinct cycle, sorted by
//	severity descending. Not persisted.
func (a *Analyzer) DetectCycles(ctx context.Context, projectID string) ([]graph.QualityIssue, error) {
	if ctx == nil {
		return nil, fmt.Errorf("nil context")
	}

	entities, err := a.store.ListEntities(ctx, projectID, graph.EntityFilter{})
	if err != nil {
		return nil, err
	}
	relations, err := a.store.ListRelations(ctx, projectID, cycleEdgeTypes)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*graph.Entity, len(entities))
	for i := range entities {
		byID[entities[i].ID] = &entities[i]
	}

	adj := make(map[string][]string)
	for _, rel := range relations {
		if rel.TargetID == "" {
			continue
		}
		if _, ok := byID[rel.SourceID]; !ok {
			continue
		}
		if _, ok := byID[rel.TargetID]; !ok {
			continue
		}
		adj[rel.SourceID] = append(adj[rel.SourceID], rel.TargetID)
	}
	for id := range adj {
		sort.Strings(adj[id])
	}

	// Deterministic root order.
	roots := make([]string, 0, len(adj))
	for id := range adj {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	colors := make(map[string]int, len(adj))
	seen := make(map[string]bool)
	var cycles [][]string

	type frame struct {
		id   string
		next int
	}

	for _, root := range roots {
		if colors[root] != colorWhite {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stack := []frame{{id: root}}
		var grayPath []string

		for len(stack) > 0 {
			f := &stack[len(stack)-1]

			if f.next == 0 {
				if colors[f.id] != colorWhite {
					// Pushed twice by different parents; the first
					// frame already owns it.
					stack = stack[:len(stack)-1]
					continue
				}
				colors[f.id] = colorGray
				grayPath = append(grayPath, f.id)
			}

			if f.next < len(adj[f.id]) {
				next := adj[f.id][f.next]
				f.next++

				switch colors[next] {
				case colorWhite:
					stack = append(stack, frame{id: next})
				case colorGray:
					// Back edge: the cycle is the gray path from next
					// to the current node.
					for i, id := range grayPath {
						if id == next {
							cycle := canonicalCycle(grayPath[i:])
							key := strings.Join(cycle, "|")
							if !seen[key] {
								seen[key] = true
								cycles = append(cycles, cycle)
							}
							break
						}
					}
				}
				continue
			}

			colors[f.id] = colorBlack
			grayPath = grayPath[:len(grayPath)-1]
			stack = stack[:len(stack)-1]
		}
	}

	issues := make([]graph.QualityIssue, 0, len(cycles))
	for _, cycle := range cycles {
		issues = append(issues, a.cycleIssue(projectID, cycle, byID))
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity > issues[j].Severity
	})
	return issues, nil
}

// canonicalCycle rotates the cycle so the smallest id comes first.
func canonicalCycle(cycle []string) []string {
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[min:]...)
	out = append(out, cycle[:min]...)
	return out
}

func cycleSeverity(length int) graph.Severity {
	switch {
	case length > 4:
		return graph.SeverityCritical
	case length > 2:
		return graph.SeverityHigh
	default:
		return graph.SeverityMedium
	}
}

func (a *Analyzer) cycleIssue(projectID string, cycle []string, byID map[string]*graph.Entity) graph.QualityIssue {
	names := make([]string, len(cycle))
	for i, id := range cycle {
		if e, ok := byID[id]; ok {
			names[i] = e.QualifiedName
		} else {
			names[i] = id
		}
	}
	closed := append(names, names[0])

	issue := graph.NewQualityIssue(projectID, graph.IssueTypeCycle,
		cycleSeverity(len(cycle)),
		fmt.Sprintf("Circular dependency: %s", strings.Join(closed, " -> ")))
	issue.EntityID = cycle[0]
	if e, ok := byID[cycle[0]]; ok {
		issue.FilePath = e.FilePath
	}
	if len(cycle) == 2 {
		issue.Suggestion = fmt.Sprintf(
			"Extract the shared pieces of %s and %s into a module both can depend on",
			names[0], names[1])
	} else {
		issue.Suggestion = fmt.Sprintf(
			"Break the cycle by inverting one dependency; it involves %d entities",
			len(cycle))
	}
	return issue
}
