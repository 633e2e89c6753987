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
	"testing"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

func appendIssue(t *testing.T, store *graph.Store, project, issueType string, severity graph.Severity, file string) graph.QualityIssue {
	t.Helper()
	issue := graph.NewQualityIssue(project, issueType, severity, "test issue")
	issue.FilePath = file
	if err := store.AppendIssues(context.Background(), project, []graph.QualityIssue{issue}); err != nil {
		t.Fatalf("append issue: %v", err)
	}
	return issue
}

func TestComputeDebtScore_CleanProject(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "debt-clean"

	putEntity(t, store, project, "m.f", graph.KindFunction, "m.py", 1, 10)

	snap, err := a.ComputeDebtScore(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if snap.OverallScore != 10 {
		t.Errorf("clean project score = %v, want 10", snap.OverallScore)
	}
	for cat, score := range snap.CategoryScores {
		if score != 10 {
			t.Errorf("category %s = %v, want 10", cat, score)
		}
	}
	if len(snap.IssueCounts) != 0 {
		t.Errorf("clean project issue counts = %v", snap.IssueCounts)
	}
}

func TestComputeDebtScore_Monotonic(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "debt-mono"

	// Five files: the per-file budget keeps scores off the floor.
	for _, f := range []string{"a.py", "b.py", "c.py", "d.py", "e.py"} {
		putEntity(t, store, project, "mod."+f, graph.KindModule, f, 1, 10)
	}

	appendIssue(t, store, project, graph.IssueTypeCycle, graph.SeverityCritical, "a.py")
	first, err := a.ComputeDebtScore(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	appendIssue(t, store, project, graph.IssueTypeCycle, graph.SeverityCritical, "b.py")
	second, err := a.ComputeDebtScore(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if first.OverallScore >= 10 {
		t.Errorf("score with one critical issue = %v, want < 10", first.OverallScore)
	}
	if second.OverallScore >= first.OverallScore {
		t.Errorf("score did not drop: %v then %v", first.OverallScore, second.OverallScore)
	}
	if second.CategoryScores[CategoryCycles] >= first.CategoryScores[CategoryCycles] {
		t.Errorf("cycles category did not drop: %v then %v",
			first.CategoryScores[CategoryCycles], second.CategoryScores[CategoryCycles])
	}
	if second.IssueCounts["critical"] != 2 {
		t.Errorf("critical count = %d, want 2", second.IssueCounts["critical"])
	}
}

func TestComputeDebtScore_ResolvedIssuesExcluded(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "debt-resolved"

	putEntity(t, store, project, "m", graph.KindModule, "m.py", 1, 10)
	issue := appendIssue(t, store, project, graph.IssueTypeOversized, graph.SeverityCritical, "m.py")

	ctx := context.Background()
	if err := store.ResolveIssue(ctx, project, issue.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	snap, err := a.ComputeDebtScore(ctx, project, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if snap.OverallScore != 10 {
		t.Errorf("resolved issue still counted: score %v", snap.OverallScore)
	}
}

func TestComputeDebtScore_ExternalCategories(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "debt-external"

	putEntity(t, store, project, "m", graph.KindModule, "m.py", 1, 10)

	snap, err := a.ComputeDebtScore(context.Background(), project, map[string]float64{
		"test_coverage": 4,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if snap.CategoryScores["test_coverage"] != 4 {
		t.Errorf("external category missing: %v", snap.CategoryScores)
	}
	// Mean of 10, 10, 10, 4.
	if snap.OverallScore != 8.5 {
		t.Errorf("overall = %v, want 8.5", snap.OverallScore)
	}
}

func TestIdentifyHotspots(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "debt-hotspots"

	appendIssue(t, store, project, graph.IssueTypeOversized, graph.SeverityCritical, "worst.py")
	appendIssue(t, store, project, graph.IssueTypeCoupling, graph.SeverityMedium, "mild.py")
	appendIssue(t, store, project, graph.IssueTypeCoupling, graph.SeverityLow, "mild.py")

	hotspots, err := a.IdentifyHotspots(context.Background(), project, 0)
	if err != nil {
		t.Fatalf("hotspots: %v", err)
	}
	if len(hotspots) != 2 {
		t.Fatalf("got %d hotspots, want 2", len(hotspots))
	}
	if hotspots[0].FilePath != "worst.py" || hotspots[0].Weighted != 4 {
		t.Errorf("top hotspot = %+v", hotspots[0])
	}
	if hotspots[1].FilePath != "mild.py" || hotspots[1].Weighted != 1.5 {
		t.Errorf("second hotspot = %+v", hotspots[1])
	}
	if hotspots[1].IssueCount != 2 {
		t.Errorf("mild.py issue count = %d, want 2", hotspots[1].IssueCount)
	}

	top1, err := a.IdentifyHotspots(context.Background(), project, 1)
	if err != nil {
		t.Fatalf("hotspots top 1: %v", err)
	}
	if len(top1) != 1 || top1[0].FilePath != "worst.py" {
		t.Errorf("topK=1 = %+v", top1)
	}
}

func TestIdentifyHotspots_Empty(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	hotspots, err := a.IdentifyHotspots(context.Background(), "no-issues", 5)
	if err != nil {
		t.Fatalf("hotspots: %v", err)
	}
	if len(hotspots) != 0 {
		t.Errorf("expected none, got %d", len(hotspots))
	}
}
