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
	"sort"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// Category names used in snapshot CategoryScores.
const (
	CategoryCycles   = "cycles"
	CategorySize     = "size"
	CategoryCoupling = "coupling"
)

var issueCategory = map[string]string{
	graph.IssueTypeCycle:     CategoryCycles,
	graph.IssueTypeOversized: CategorySize,
	graph.IssueTypeCoupling:  CategoryCoupling,
}

// FileDebt is one file's aggregated debt.
type FileDebt struct {
	// FilePath identifies the file.
	FilePath string `json:"file_path"`

	// Weighted is the severity-weighted sum of the file's open issues.
	Weighted float64 `json:"weighted"`

	// Score is the file's 0-10 debt score; 10 means clean.
	Score float64 `json:"score"`

	// IssueCount is the number of open issues in the file.
	IssueCount int `json:"issue_count"`
}

// ComputeDebtScore aggregates open issues into a debt snapshot.
//
// # Description
//
// Each open issue contributes its severity weight (critical 4, high 2,
// medium 1, low 0.5). A category's score is 10 minus its weighted sum
// normalized by DebtPointsPerFile times the file count, floored at 0,
// so 10 means no issues and every added issue strictly lowers the score
// until the floor. The overall score is the mean of the three analyzer
// categories plus any entries in external, which carries scores computed
// elsewhere (test coverage, docs coverage, dependency freshness).
//
// The snapshot is returned, not persisted.
func (a *Analyzer) ComputeDebtScore(ctx context.Context, projectID string, external map[string]float64) (*graph.DebtSnapshot, error) {
	issues, err := a.openIssues(ctx, projectID)
	if err != nil {
		return nil, err
	}
	entities, err := a.store.ListEntities(ctx, projectID, graph.EntityFilter{})
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool)
	for i := range entities {
		files[entities[i].FilePath] = true
	}
	fileCount := len(files)
	if fileCount == 0 {
		fileCount = 1
	}
	budget := a.thresholds.DebtPointsPerFile * float64(fileCount)

	snap := graph.NewDebtSnapshot(projectID)
	categoryWeighted := map[string]float64{
		CategoryCycles:   0,
		CategorySize:     0,
		CategoryCoupling: 0,
	}
	for _, issue := range issues {
		snap.IssueCounts[issue.Severity.String()]++
		cat, ok := issueCategory[issue.IssueType]
		if !ok {
			continue
		}
		categoryWeighted[cat] += issue.Severity.Weight()
	}

	var sum float64
	var n int
	for cat, weighted := range categoryWeighted {
		score := 10 - 10*weighted/budget
		if score < 0 {
			score = 0
		}
		snap.CategoryScores[cat] = score
		sum += score
		n++
	}
	for cat, score := range external {
		snap.CategoryScores[cat] = score
		sum += score
		n++
	}
	snap.OverallScore = sum / float64(n)
	return &snap, nil
}

// IdentifyHotspots ranks files by aggregated open-issue debt, worst
// first.
func (a *Analyzer) IdentifyHotspots(ctx context.Context, projectID string, topK int) ([]FileDebt, error) {
	issues, err := a.openIssues(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byFile := make(map[string]*FileDebt)
	for _, issue := range issues {
		if issue.FilePath == "" {
			continue
		}
		fd, ok := byFile[issue.FilePath]
		if !ok {
			fd = &FileDebt{FilePath: issue.FilePath}
			byFile[issue.FilePath] = fd
		}
		fd.Weighted += issue.Severity.Weight()
		fd.IssueCount++
	}

	hotspots := make([]FileDebt, 0, len(byFile))
	for _, fd := range byFile {
		fd.Score = 10 - fd.Weighted
		if fd.Score < 0 {
			fd.Score = 0
		}
		hotspots = append(hotspots, *fd)
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Weighted != hotspots[j].Weighted {
			return hotspots[i].Weighted > hotspots[j].Weighted
		}
		return hotspots[i].FilePath < hotspots[j].FilePath
	})

	if topK > 0 && len(hotspots) > topK {
		hotspots = hotspots[:topK]
	}
	return hotspots, nil
}

func (a *Analyzer) openIssues(ctx context.Context, projectID string) ([]graph.QualityIssue, error) {
	return a.store.ListIssues(ctx, projectID, graph.IssueFilter{
		Statuses: []graph.IssueStatus{graph.IssueOpen},
	})
}
