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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/quality"
	"github.com/AleutianAI/codegraph/services/knowledge/session"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	analyzeWorkers    int
	analyzeExcludes   []string
	analyzeLanguages  []string
	analyzeThresholds string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var analyzeCmd = &cobra.Command{
	Use:   "analyze PATH",
	Short: "Analyze a source tree into the knowledge graph",
	Long: `Walk a source tree, extract entities and relations from every
supported file, resolve cross-file references, and run the quality
detectors. Re-running on the same project is idempotent.

Examples:
  codegraph analyze ./myproject
  codegraph analyze . --project backend --exclude "generated/**"
  codegraph analyze . --language python --workers 8`,
	Args: cobra.ExactArgs(1),
	Run:  exitWith(runAnalyze),
}

var updateCmd = &cobra.Command{
	Use:   "update PATH FILE...",
	Short: "Re-analyze only the listed changed files",
	Long: `Incrementally update an analyzed project. FILE arguments are paths
relative to PATH; a listed file missing on disk counts as deleted.
Entities in unchanged files keep their identities.

Examples:
  codegraph update ./myproject src/auth.py
  codegraph update . --project backend src/api.py src/models.py`,
	Args: cobra.MinimumNArgs(2),
	Run:  exitWith(runUpdate),
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0,
		"Parallel parse workers (0 = default)")
	analyzeCmd.Flags().StringSliceVar(&analyzeExcludes, "exclude", nil,
		"Glob patterns for paths to skip (repeatable)")
	analyzeCmd.Flags().StringSliceVar(&analyzeLanguages, "language", nil,
		"Only analyze the listed languages (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeThresholds, "thresholds", "",
		"YAML file overriding quality thresholds")

	updateCmd.Flags().StringVar(&analyzeThresholds, "thresholds", "",
		"YAML file overriding quality thresholds")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(updateCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runAnalyze(cmd *cobra.Command, args []string) int {
	root, projectID, code := resolveRoot(args[0])
	if code != ExitSuccess {
		return code
	}

	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	s, code := buildSession(store)
	if code != ExitSuccess {
		return code
	}

	opts := session.AnalyzeOptions{
		Languages:       analyzeLanguages,
		ExcludePatterns: analyzeExcludes,
	}
	if !jsonOutput() {
		opts.Progress = func(p session.Progress) {
			fmt.Fprintf(os.Stderr, "\r%s %d/%d", p.Phase, p.FilesDone, p.FilesTotal)
		}
	}

	report, err := s.Analyze(cmd.Context(), projectID, root, opts)
	if !jsonOutput() {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		code := fail("analysis failed", err)
		if report != nil && !jsonOutput() {
			fmt.Fprintf(os.Stderr, "Committed before failure: %d file(s), %d entities, %d relations\n",
				report.FilesParsed, report.EntitiesAdded, report.RelationsAdded)
		}
		return code
	}

	if jsonOutput() {
		return emitJSON(report)
	}
	fmt.Printf("Analyzed %s as project %q\n\n", root, projectID)
	fmt.Printf("  Files parsed:    %d\n", report.FilesParsed)
	fmt.Printf("  Entities added:  %d\n", report.EntitiesAdded)
	fmt.Printf("  Relations added: %d\n", report.RelationsAdded)
	fmt.Printf("  Issues found:    %d\n", report.IssuesFound)
	if report.Snapshot != nil {
		fmt.Printf("  Debt score:      %.1f / 10\n", report.Snapshot.OverallScore)
	}
	fmt.Printf("  Duration:        %dms\n", report.DurationMilli)
	printFileErrors(report.Errors)
	return ExitSuccess
}

func runUpdate(cmd *cobra.Command, args []string) int {
	root, projectID, code := resolveRoot(args[0])
	if code != ExitSuccess {
		return code
	}
	changed := args[1:]

	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	s, code := buildSession(store)
	if code != ExitSuccess {
		return code
	}

	report, err := s.Update(cmd.Context(), projectID, root, changed)
	if err != nil {
		code := fail("update failed", err)
		if report != nil && !jsonOutput() {
			fmt.Fprintf(os.Stderr, "Committed before failure: %d file(s), %d entities added, %d removed\n",
				report.FilesParsed, report.EntitiesAdded, report.EntitiesRemoved)
		}
		return code
	}

	if jsonOutput() {
		return emitJSON(report)
	}
	fmt.Printf("Updated %d file(s) in project %q\n\n", len(changed), projectID)
	fmt.Printf("  Files parsed:         %d\n", report.FilesParsed)
	fmt.Printf("  Entities added:       %d\n", report.EntitiesAdded)
	fmt.Printf("  Entities removed:     %d\n", report.EntitiesRemoved)
	fmt.Printf("  Relations pruned:     %d\n", report.RelationsPruned)
	fmt.Printf("  Relations rewired:    %d\n", report.RelationsRewired)
	fmt.Printf("  Relations downgraded: %d\n", report.RelationsDowngraded)
	printFileErrors(report.Errors)
	return ExitSuccess
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// resolveRoot makes the path absolute and derives the project id from
// --project or the directory name.
func resolveRoot(path string) (root, projectID string, code int) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fail("resolving path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fail("reading path", err)
	}
	if !info.IsDir() {
		return "", "", fail("reading path", fmt.Errorf("%s is not a directory", abs))
	}

	projectID = flagProject
	if projectID == "" {
		projectID = filepath.Base(abs)
	}
	return abs, projectID, ExitSuccess
}

func buildSession(store *graph.Store) (*session.Session, int) {
	cfg := session.DefaultConfig()
	if analyzeWorkers > 0 {
		cfg.Workers = analyzeWorkers
	}
	if analyzeThresholds != "" {
		thresholds, err := quality.LoadThresholds(analyzeThresholds)
		if err != nil {
			return nil, fail("loading thresholds", err)
		}
		cfg.Thresholds = thresholds
	}

	s, err := session.NewSession(store,
		session.WithConfig(cfg),
		session.WithLogger(logger.Logger))
	if err != nil {
		return nil, fail("creating session", err)
	}
	return s, ExitSuccess
}

func printFileErrors(errs []session.FileError) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("\n%d file(s) failed:\n", len(errs))
	for _, fe := range errs {
		fmt.Printf("  %s: %s\n", fe.FilePath, fe.Message)
	}
}
