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

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

const (
	// DefaultMaxDepth bounds call-chain traversal depth.
	DefaultMaxDepth = 5

	// DefaultMaxNodes bounds the total nodes in one trace result.
	DefaultMaxNodes = 500
)

// TraceOptions configures a call-chain trace.
type TraceOptions struct {
	// MaxDepth bounds traversal depth. Zero uses DefaultMaxDepth.
	MaxDepth int

	// MaxNodes bounds total expanded nodes. Zero uses DefaultMaxNodes.
	MaxNodes int

	// Types selects the edge types to follow. Empty follows Calls.
	Types []graph.RelationType

	// Direction selects forward (callees) or reverse (callers) tracing.
	Direction graph.Direction
}

// ChainNode is one node in a trace result tree.
type ChainNode struct {
	// Entity is the node's resolved entity.
	Entity graph.Entity `json:"entity"`

	// Depth is the node's distance from the trace root.
	Depth int `json:"depth"`

	// Children are the next hops, in deterministic order.
	Children []*ChainNode `json:"children,omitempty"`

	// CycleEdge marks a node already visited on this trace; its subtree
	// is not expanded again.
	CycleEdge bool `json:"cycle_edge,omitempty"`

	// Truncated marks a node whose expansion was cut by a limit.
	Truncated bool `json:"truncated,omitempty"`
}

// TraceResult is the output of TraceCallChain.
type TraceResult struct {
	// Root is the trace tree rooted at the start entity.
	Root *ChainNode `json:"root"`

	// NodeCount is the number of nodes in the tree.
	NodeCount int `json:"node_count"`

	// Truncated reports whether any limit cut the traversal.
	Truncated bool `json:"truncated"`

	// CycleDetected reports whether any cycle edge was encountered.
	CycleDetected bool `json:"cycle_detected"`
}

// TraceCallChain walks call edges from a start entity, breadth-first.
//
// # Description
//
// Builds a tree of call chains up to MaxDepth hops and MaxNodes total
// nodes. Each entity is expanded at most once per trace; re-encountering
// an entity produces a CycleEdge leaf, so cyclic call graphs terminate.
// External (unresolved) call targets are not expanded.
//
// # Inputs
//
//	ctx - Context for cancellation.
//	projectID - Project scope.
//	startID - Entity to trace from. Must exist.
//	opts - Traversal bounds and direction.
//
// # Outputs
//
//	*TraceResult - The trace tree with truncation and cycle flags.
//	error - graph.ErrEntityNotFound if the start entity is unknown.
func (e *Engine) TraceCallChain(ctx context.Context, projectID, startID string, opts TraceOptions) (*TraceResult, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	types := opts.Types
	if len(types) == 0 {
		types = []graph.RelationType{graph.RelationCalls}
	}

	start, err := e.store.GetEntity(ctx, projectID, startID)
	if err != nil {
		return nil, err
	}

	root := &ChainNode{Entity: *start, Depth: 0}
	result := &TraceResult{Root: root, NodeCount: 1}

	visited := map[string]bool{startID: true}
	queue := []*ChainNode{root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			result.Truncated = true
			return result, nil
		}

		node := queue[0]
		queue = queue[1:]

		if node.Depth >= maxDepth {
			continue
		}

		rels, err := e.store.GetRelations(ctx, projectID, node.Entity.ID, types, opts.Direction)
		if err != nil {
			return nil, fmt.Errorf("trace relations for %s: %w", node.Entity.ID, err)
		}

		for _, rel := range rels {
			nextID := rel.TargetID
			if opts.Direction == graph.DirectionIn {
				nextID = rel.SourceID
			}
			if nextID == "" {
				continue
			}

			if result.NodeCount >= maxNodes {
				node.Truncated = true
				result.Truncated = true
				break
			}

			next, err := e.store.GetEntity(ctx, projectID, nextID)
			if err != nil {
				// Dangling edge; the updater prunes these eventually.
				continue
			}

			child := &ChainNode{Entity: *next, Depth: node.Depth + 1}
			node.Children = append(node.Children, child)
			result.NodeCount++

			if visited[nextID] {
				child.CycleEdge = true
				result.CycleDetected = true
				continue
			}
			visited[nextID] = true

			if child.Depth >= maxDepth {
				// Children beyond this depth exist but are not expanded.
				if hasMore, _ := e.hasEdges(ctx, projectID, nextID, types, opts.Direction); hasMore {
					child.Truncated = true
					result.Truncated = true
				}
				continue
			}
			queue = append(queue, child)
		}
	}

	return result, nil
}

func (e *Engine) hasEdges(ctx context.Context, projectID, entityID string, types []graph.RelationType, dir graph.Direction) (bool, error) {
	rels, err := e.store.GetRelations(ctx, projectID, entityID, types, dir)
	if err != nil {
		return false, err
	}
	for _, rel := range rels {
		if dir == graph.DirectionIn {
			if rel.SourceID != "" {
				return true, nil
			}
			continue
		}
		if rel.TargetID != "" {
			return true, nil
		}
	}
	return false, nil
}
