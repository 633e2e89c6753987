// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/quality"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	issueTypes      []string
	issueSeverities []string
	issueStatuses   []string
	issueFile       string

	debtTrend    int
	debtHotspots int

	qualityThresholds string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect circular dependencies",
	Long: `Run cycle detection over the project's import and use edges and
print each cycle found. Detection is a pure read; stored issues are
not modified.

Examples:
  codegraph cycles --project backend
  codegraph cycles -p backend --format json`,
	Args: cobra.NoArgs,
	Run:  exitWith(runCycles),
}

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List recorded quality issues",
	Long: `List the quality issues recorded by past analysis runs, most severe
first.

Examples:
  codegraph issues --project backend
  codegraph issues -p backend --severity high --severity critical
  codegraph issues -p backend --type circular_dependency --status open`,
	Args: cobra.NoArgs,
	Run:  exitWith(runIssuesList),
}

var issuesResolveCmd = &cobra.Command{
	Use:   "resolve ISSUE_ID",
	Short: "Mark an issue resolved",
	Args:  cobra.ExactArgs(1),
	Run:   exitWith(runIssueResolve),
}

var issuesIgnoreCmd = &cobra.Command{
	Use:   "ignore ISSUE_ID",
	Short: "Mark an issue ignored",
	Args:  cobra.ExactArgs(1),
	Run:   exitWith(runIssueIgnore),
}

var debtCmd = &cobra.Command{
	Use:   "debt",
	Short: "Report the project's technical debt score",
	Long: `Compute the current debt score per category, list the worst files,
or show how the score moved across analysis runs.

Scores run 0 (worst) to 10 (clean).

Examples:
  codegraph debt --project backend
  codegraph debt -p backend --trend 10
  codegraph debt -p backend --hotspots 5`,
	Args: cobra.NoArgs,
	Run:  exitWith(runDebt),
}

func init() {
	issuesCmd.Flags().StringSliceVar(&issueTypes, "type", nil,
		"Filter by issue type (repeatable)")
	issuesCmd.Flags().StringSliceVar(&issueSeverities, "severity", nil,
		"Filter by severity (repeatable)")
	issuesCmd.Flags().StringSliceVar(&issueStatuses, "status", nil,
		"Filter by status: open, resolved, ignored (repeatable)")
	issuesCmd.Flags().StringVar(&issueFile, "file", "",
		"Filter by exact file path")
	issuesCmd.AddCommand(issuesResolveCmd)
	issuesCmd.AddCommand(issuesIgnoreCmd)

	debtCmd.Flags().IntVar(&debtTrend, "trend", 0,
		"Show the last N debt snapshots instead of the current score")
	debtCmd.Flags().IntVar(&debtHotspots, "hotspots", 0,
		"Show the N files carrying the most debt")
	debtCmd.Flags().StringVar(&qualityThresholds, "thresholds", "",
		"YAML file overriding quality thresholds")

	cyclesCmd.Flags().StringVar(&qualityThresholds, "thresholds", "",
		"YAML file overriding quality thresholds")

	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(debtCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runCycles(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	analyzer, code := buildAnalyzer(store)
	if code != ExitSuccess {
		return code
	}
	issues, err := analyzer.DetectCycles(cmd.Context(), projectID)
	if err != nil {
		return fail("cycle detection failed", err)
	}

	if jsonOutput() {
		return emitJSON(issues)
	}
	if len(issues) == 0 {
		fmt.Println("No circular dependencies.")
		return ExitSuccess
	}
	for _, issue := range issues {
		fmt.Printf("[%s] %s\n", issue.Severity, issue.Description)
		if issue.Suggestion != "" {
			fmt.Printf("        %s\n", issue.Suggestion)
		}
	}
	fmt.Printf("\n%d cycle(s)\n", len(issues))
	return ExitSuccess
}

func runIssuesList(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	filter, err := buildIssueFilter()
	if err != nil {
		return fail("bad filter", err)
	}

	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	issues, err := store.ListIssues(cmd.Context(), projectID, filter)
	if err != nil {
		return fail("listing issues", err)
	}

	if jsonOutput() {
		return emitJSON(issues)
	}
	if len(issues) == 0 {
		fmt.Println("No issues.")
		return ExitSuccess
	}
	for _, issue := range issues {
		location := issue.FilePath
		if location == "" {
			location = "-"
		}
		fmt.Printf("%s  [%s/%s] %s  %s\n",
			issue.ID, issue.Severity, issue.Status, issue.IssueType, location)
		fmt.Printf("    %s\n", issue.Description)
	}
	fmt.Printf("\n%d issue(s)\n", len(issues))
	return ExitSuccess
}

func runIssueResolve(cmd *cobra.Command, args []string) int {
	return setIssueStatus(cmd, args[0], graph.IssueResolved)
}

func runIssueIgnore(cmd *cobra.Command, args []string) int {
	return setIssueStatus(cmd, args[0], graph.IssueIgnored)
}

func runDebt(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	if debtTrend > 0 {
		return showDebtTrend(cmd, store, projectID)
	}
	if debtHotspots > 0 {
		return showDebtHotspots(cmd, store, projectID)
	}

	analyzer, code := buildAnalyzer(store)
	if code != ExitSuccess {
		return code
	}
	snapshot, err := analyzer.ComputeDebtScore(cmd.Context(), projectID, nil)
	if err != nil {
		return fail("computing debt score", err)
	}

	if jsonOutput() {
		return emitJSON(snapshot)
	}
	fmt.Printf("Debt score for %s: %.1f / 10\n\n", projectID, snapshot.OverallScore)
	for category, score := range snapshot.CategoryScores {
		fmt.Printf("  %-20s %.1f\n", category, score)
	}
	if len(snapshot.IssueCounts) > 0 {
		fmt.Println("\nOpen issues by severity:")
		for _, severity := range []graph.Severity{
			graph.SeverityCritical, graph.SeverityHigh, graph.SeverityMedium, graph.SeverityLow,
		} {
			if count := snapshot.IssueCounts[severity.String()]; count > 0 {
				fmt.Printf("  %-10s %d\n", severity, count)
			}
		}
	}
	return ExitSuccess
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func buildAnalyzer(store *graph.Store) (*quality.Analyzer, int) {
	thresholds := quality.DefaultThresholds()
	if qualityThresholds != "" {
		loaded, err := quality.LoadThresholds(qualityThresholds)
		if err != nil {
			return nil, fail("loading thresholds", err)
		}
		thresholds = loaded
	}
	analyzer, err := quality.NewAnalyzer(store, thresholds, logger.Logger)
	if err != nil {
		return nil, fail("creating analyzer", err)
	}
	return analyzer, ExitSuccess
}

func buildIssueFilter() (graph.IssueFilter, error) {
	filter := graph.IssueFilter{Types: issueTypes, FilePath: issueFile}
	for _, name := range issueSeverities {
		severity, ok := graph.ParseSeverity(name)
		if !ok {
			return filter, fmt.Errorf("unknown severity %q", name)
		}
		filter.Severities = append(filter.Severities, severity)
	}
	for _, name := range issueStatuses {
		status := graph.IssueStatus(name)
		if !graph.ValidIssueStatus(status) {
			return filter, fmt.Errorf("unknown status %q", name)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}

func setIssueStatus(cmd *cobra.Command, issueID string, status graph.IssueStatus) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	if err := store.UpdateIssueStatus(cmd.Context(), projectID, issueID, status); err != nil {
		return fail("updating issue", err)
	}
	if jsonOutput() {
		return emitJSON(map[string]any{"success": true, "id": issueID, "status": status})
	}
	fmt.Printf("Issue %s marked %s.\n", issueID, status)
	return ExitSuccess
}

func showDebtTrend(cmd *cobra.Command, store *graph.Store, projectID string) int {
	trend, err := store.GetDebtTrend(cmd.Context(), projectID, debtTrend)
	if err != nil {
		return fail("reading debt trend", err)
	}
	if jsonOutput() {
		return emitJSON(trend)
	}
	if len(trend) == 0 {
		fmt.Println("No snapshots yet. Run 'codegraph analyze' first.")
		return ExitSuccess
	}
	for _, snap := range trend {
		when := time.UnixMilli(snap.CreatedAtMilli).Format("2006-01-02 15:04")
		fmt.Printf("  %s  %.1f\n", when, snap.OverallScore)
	}
	return ExitSuccess
}

func showDebtHotspots(cmd *cobra.Command, store *graph.Store, projectID string) int {
	analyzer, code := buildAnalyzer(store)
	if code != ExitSuccess {
		return code
	}
	hotspots, err := analyzer.IdentifyHotspots(cmd.Context(), projectID, debtHotspots)
	if err != nil {
		return fail("identifying hotspots", err)
	}
	if jsonOutput() {
		return emitJSON(hotspots)
	}
	if len(hotspots) == 0 {
		fmt.Println("No debt hotspots.")
		return ExitSuccess
	}
	for _, h := range hotspots {
		fmt.Printf("  %6.1f  %s  (%d issue(s))\n", h.Weighted, h.FilePath, h.IssueCount)
	}
	return ExitSuccess
}
