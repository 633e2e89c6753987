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

// DetectCoupling flags entities with extreme fan-in, fan-out, or
// imbalance between the two.
//
// # Description
//
// Degrees are counted over all relation types, resolved edges only.
// Exceeding MaxFanIn or MaxFanOut yields a high-severity issue.
// Separately, entities with at least MinImbalanceEdges total degree whose
// in/out ratio (either direction) exceeds ImbalanceRatio yield a
// medium-severity issue; such entities are usually god objects or
// dumping-ground utilities.
func (a *Analyzer) DetectCoupling(ctx context.Context, projectID string) ([]graph.QualityIssue, error) {
	entities, err := a.store.ListEntities(ctx, projectID, graph.EntityFilter{})
	if err != nil {
		return nil, err
	}
	relations, err := a.store.ListRelations(ctx, projectID, nil)
	if err != nil {
		return nil, err
	}

	fanIn := make(map[string]int)
	fanOut := make(map[string]int)
	for _, rel := range relations {
		if rel.TargetID == "" {
			continue
		}
		fanOut[rel.SourceID]++
		fanIn[rel.TargetID]++
	}

	t := a.thresholds
	var issues []graph.QualityIssue
	for i := range entities {
		e := &entities[i]
		in, out := fanIn[e.ID], fanOut[e.ID]

		if in > t.MaxFanIn || out > t.MaxFanOut {
			issue := graph.NewQualityIssue(projectID, graph.IssueTypeCoupling,
				graph.SeverityHigh,
				fmt.Sprintf("%s has fan-in %d and fan-out %d (ceilings %d/%d)",
					e.QualifiedName, in, out, t.MaxFanIn, t.MaxFanOut))
			issue.EntityID = e.ID
			issue.FilePath = e.FilePath
			issue.Suggestion = fmt.Sprintf(
				"Reduce direct dependencies on %s, e.g. behind a narrower interface", e.Name)
			issues = append(issues, issue)
			continue
		}

		if in+out >= t.MinImbalanceEdges && imbalanced(in, out, t.ImbalanceRatio) {
			issue := graph.NewQualityIssue(projectID, graph.IssueTypeCoupling,
				graph.SeverityMedium,
				fmt.Sprintf("%s has imbalanced coupling: fan-in %d vs fan-out %d",
					e.QualifiedName, in, out))
			issue.EntityID = e.ID
			issue.FilePath = e.FilePath
			issue.Suggestion = "Rebalance responsibilities; extreme one-way coupling concentrates change risk"
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// imbalanced reports whether the larger degree exceeds the smaller by
// more than ratio. A zero smaller side counts as imbalanced.
func imbalanced(in, out int, ratio float64) bool {
	lo, hi := in, out
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return false
	}
	if lo == 0 {
		return true
	}
	return float64(hi)/float64(lo) > ratio
}
