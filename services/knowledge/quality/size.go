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

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// DetectOversized flags entities that exceed size tiers.
//
// # Description
//
// Functions and methods are graded on line span against the
// FunctionLines tiers. Classes are graded on method count, taken from
// their outgoing Contains edges, against the ClassMethods tiers.
func (a *Analyzer) DetectOversized(ctx context.Context, projectID string) ([]graph.QualityIssue, error) {
	entities, err := a.store.ListEntities(ctx, projectID, graph.EntityFilter{})
	if err != nil {
		return nil, err
	}

	var issues []graph.QualityIssue
	for i := range entities {
		e := &entities[i]
		switch e.Kind {
		case graph.KindFunction, graph.KindMethod:
			if issue, ok := a.oversizedCallable(projectID, e); ok {
				issues = append(issues, issue)
			}
		case graph.KindClass:
			issue, ok, err := a.oversizedClass(ctx, projectID, e)
			if err != nil {
				return nil, err
			}
			if ok {
				issues = append(issues, issue)
			}
		}
	}
	return issues, nil
}

func (a *Analyzer) oversizedCallable(projectID string, e *graph.Entity) (graph.QualityIssue, bool) {
	lines := e.LineEnd - e.LineStart + 1
	tiers := a.thresholds.FunctionLines

	var severity graph.Severity
	switch {
	case lines > tiers.Critical:
		severity = graph.SeverityCritical
	case lines > tiers.High:
		severity = graph.SeverityHigh
	case lines > tiers.Medium:
		severity = graph.SeverityMedium
	default:
		return graph.QualityIssue{}, false
	}

	issue := graph.NewQualityIssue(projectID, graph.IssueTypeOversized, severity,
		fmt.Sprintf("%s %s spans %d lines", e.Kind, e.QualifiedName, lines))
	issue.EntityID = e.ID
	issue.FilePath = e.FilePath
	issue.Suggestion = fmt.Sprintf(
		"Split %s into smaller units; aim for under %d lines", e.Name, tiers.Medium)
	return issue, true
}

func (a *Analyzer) oversizedClass(ctx context.Context, projectID string, e *graph.Entity) (graph.QualityIssue, bool, error) {
	rels, err := a.store.GetRelations(ctx, projectID, e.ID,
		[]graph.RelationType{graph.RelationContains}, graph.DirectionOut)
	if err != nil {
		return graph.QualityIssue{}, false, err
	}
	methods := len(rels)
	tiers := a.thresholds.ClassMethods

	var severity graph.Severity
	switch {
	case methods > tiers.Critical:
		severity = graph.SeverityCritical
	case methods > tiers.High:
		severity = graph.SeverityHigh
	default:
		return graph.QualityIssue{}, false, nil
	}

	issue := graph.NewQualityIssue(projectID, graph.IssueTypeOversized, severity,
		fmt.Sprintf("class %s has %d members", e.QualifiedName, methods))
	issue.EntityID = e.ID
	issue.FilePath = e.FilePath
	issue.Suggestion = fmt.Sprintf(
		"Split responsibilities of %s across collaborating classes", e.Name)
	return issue, true, nil
}
