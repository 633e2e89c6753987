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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity grades a quality issue.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

var severityValues = func() map[string]Severity {
	m := make(map[string]Severity, len(severityNames))
	for k, v := range severityNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase severity name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "low"
}

// ParseSeverity maps a severity name to its value.
func ParseSeverity(name string) (Severity, bool) {
	s, ok := severityValues[strings.ToLower(name)]
	return s, ok
}

// Weight returns the debt-score weight for the severity.
//
// critical=4, high=2, medium=1, low=0.5.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0.5
	}
}

// MarshalJSON encodes the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its string name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseSeverity(name)
	if !ok {
		return fmt.Errorf("unknown severity %q", name)
	}
	*s = parsed
	return nil
}

// IssueStatus is the lifecycle state of a quality issue.
//
// Issues are never deleted; they move between states.
type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
	IssueIgnored  IssueStatus = "ignored"
)

// ValidIssueStatus reports whether s is a known lifecycle state.
func ValidIssueStatus(s IssueStatus) bool {
	switch s {
	case IssueOpen, IssueResolved, IssueIgnored:
		return true
	}
	return false
}

// Issue type names produced by the quality analyzers.
const (
	IssueTypeCycle     = "circular_dependency"
	IssueTypeOversized = "oversized_entity"
	IssueTypeCoupling  = "high_coupling"
)

// QualityIssue is one detected quality problem, bound to an entity or file.
type QualityIssue struct {
	// ID is a unique issue identifier (UUID).
	ID string `json:"id"`

	// ProjectID scopes the issue to one analyzed project.
	ProjectID string `json:"project_id"`

	// IssueType names the detector that produced the issue.
	IssueType string `json:"issue_type"`

	// Severity grades the issue.
	Severity Severity `json:"severity"`

	// EntityID is the implicated entity, when the issue binds to one.
	EntityID string `json:"entity_id,omitempty"`

	// FilePath locates the issue for file-level aggregation.
	FilePath string `json:"file_path,omitempty"`

	// Description is a human-readable account of the problem.
	Description string `json:"description"`

	// Suggestion is an actionable remediation hint.
	Suggestion string `json:"suggestion,omitempty"`

	// Status is the lifecycle state. New issues start open.
	Status IssueStatus `json:"status"`

	// CreatedAtMilli is the Unix-millisecond creation time.
	CreatedAtMilli int64 `json:"created_at_milli"`
}

// NewQualityIssue creates an open issue with a fresh ID and timestamp.
func NewQualityIssue(projectID, issueType string, severity Severity, description string) QualityIssue {
	return QualityIssue{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		IssueType:      issueType,
		Severity:       severity,
		Description:    description,
		Status:         IssueOpen,
		CreatedAtMilli: time.Now().UnixMilli(),
	}
}

// Validate checks structural invariants on an issue.
func (q *QualityIssue) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidIssue)
	}
	if q.ProjectID == "" {
		return fmt.Errorf("%w: empty ProjectID", ErrInvalidIssue)
	}
	if q.IssueType == "" {
		return fmt.Errorf("%w: empty IssueType", ErrInvalidIssue)
	}
	if q.Description == "" {
		return fmt.Errorf("%w: empty Description", ErrInvalidIssue)
	}
	if !ValidIssueStatus(q.Status) {
		return fmt.Errorf("%w: bad status %q", ErrInvalidIssue, q.Status)
	}
	return nil
}

// DebtSnapshot is one append-only record of a project's debt scoring run.
type DebtSnapshot struct {
	// ID is a unique snapshot identifier (UUID).
	ID string `json:"id"`

	// ProjectID scopes the snapshot to one analyzed project.
	ProjectID string `json:"project_id"`

	// OverallScore is the 0-10 debt score; 10 means clean.
	OverallScore float64 `json:"overall_score"`

	// CategoryScores holds per-category 0-10 scores keyed by category name
	// ("cycles", "size", "coupling", ...).
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`

	// IssueCounts holds open-issue counts keyed by severity name.
	IssueCounts map[string]int `json:"issue_counts,omitempty"`

	// CreatedAtMilli is the Unix-millisecond creation time.
	CreatedAtMilli int64 `json:"created_at_milli"`
}

// NewDebtSnapshot creates a snapshot shell with a fresh ID and timestamp.
func NewDebtSnapshot(projectID string) DebtSnapshot {
	return DebtSnapshot{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		CategoryScores: make(map[string]float64),
		IssueCounts:    make(map[string]int),
		CreatedAtMilli: time.Now().UnixMilli(),
	}
}
