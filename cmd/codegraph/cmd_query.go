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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/query"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	queryReverse    bool
	queryTransitive bool
	queryDepth      int
	queryMaxNodes   int
	queryKinds      []string
	queryLimit      int
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var traceCmd = &cobra.Command{
	Use:   "trace SYMBOL",
	Short: "Trace the call chain from a symbol",
	Long: `Walk call edges from a symbol, breadth-first, printing the chain as
a tree. Cycles are marked and not expanded twice.

Examples:
  codegraph trace "auth.validate_token" --project backend
  codegraph trace "api.handler" -p backend --reverse
  codegraph trace "main.run" -p backend --depth 3 --format json`,
	Args: cobra.ExactArgs(1),
	Run:  exitWith(runTrace),
}

var depsCmd = &cobra.Command{
	Use:   "deps SYMBOL",
	Short: "Show what a symbol depends on, or what depends on it",
	Long: `List the dependencies of a symbol over import and use edges.
--reverse lists dependents instead; --transitive follows the closure.

Examples:
  codegraph deps "app.service" --project backend
  codegraph deps "lib.util" -p backend --reverse
  codegraph deps "app.main" -p backend --transitive --depth 4`,
	Args: cobra.ExactArgs(1),
	Run:  exitWith(runDeps),
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search entities by name, qualified name, or doc text",
	Long: `Rank project entities against a query string. Exact name matches
score highest, then prefixes, substrings, qualified names, and doc text.

Examples:
  codegraph search "token" --project backend
  codegraph search "validate" -p backend --kind function --kind method
  codegraph search "payment" -p backend --limit 10`,
	Args: cobra.ExactArgs(1),
	Run:  exitWith(runSearch),
}

var archCmd = &cobra.Command{
	Use:   "arch",
	Short: "Summarize the project's module architecture",
	Long: `Group entities by module, with cross-module coupling counts and the
most imported external packages.

Examples:
  codegraph arch --project backend
  codegraph arch -p backend --format json`,
	Args: cobra.NoArgs,
	Run:  exitWith(runArch),
}

func init() {
	traceCmd.Flags().BoolVar(&queryReverse, "reverse", false,
		"Trace callers instead of callees")
	traceCmd.Flags().IntVar(&queryDepth, "depth", 0,
		"Maximum traversal depth (0 = default)")
	traceCmd.Flags().IntVar(&queryMaxNodes, "max-nodes", 0,
		"Maximum nodes in the result (0 = default)")

	depsCmd.Flags().BoolVar(&queryReverse, "reverse", false,
		"List dependents instead of dependencies")
	depsCmd.Flags().BoolVar(&queryTransitive, "transitive", false,
		"Follow the dependency closure")
	depsCmd.Flags().IntVar(&queryDepth, "depth", 0,
		"Maximum closure depth (0 = default)")

	searchCmd.Flags().StringSliceVar(&queryKinds, "kind", nil,
		"Restrict to entity kinds (repeatable)")
	searchCmd.Flags().IntVar(&queryLimit, "limit", 0,
		"Maximum results (0 = default)")

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(archCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runTrace(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	entity, code := resolveEntity(cmd, store, projectID, args[0])
	if code != ExitSuccess {
		return code
	}
	engine, err := query.NewEngine(store, logger.Logger)
	if err != nil {
		return fail("creating engine", err)
	}

	opts := query.TraceOptions{MaxDepth: queryDepth, MaxNodes: queryMaxNodes}
	if queryReverse {
		opts.Direction = graph.DirectionIn
	}
	result, err := engine.TraceCallChain(cmd.Context(), projectID, entity.ID, opts)
	if err != nil {
		return fail("trace failed", err)
	}

	if jsonOutput() {
		return emitJSON(result)
	}
	direction := "Callees of"
	if queryReverse {
		direction = "Callers of"
	}
	fmt.Printf("%s %s:\n\n", direction, entity.QualifiedName)
	printChain(result.Root, "")
	fmt.Printf("\n%d node(s)", result.NodeCount)
	if result.CycleDetected {
		fmt.Print(", cycle detected")
	}
	if result.Truncated {
		fmt.Print(", truncated")
	}
	fmt.Println()
	return ExitSuccess
}

func runDeps(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	entity, code := resolveEntity(cmd, store, projectID, args[0])
	if code != ExitSuccess {
		return code
	}
	engine, err := query.NewEngine(store, logger.Logger)
	if err != nil {
		return fail("creating engine", err)
	}

	deps, err := engine.FindDependencies(cmd.Context(), projectID, entity.ID, query.DependencyOptions{
		Reverse:    queryReverse,
		Transitive: queryTransitive,
		MaxDepth:   queryDepth,
	})
	if err != nil {
		return fail("dependency query failed", err)
	}

	if jsonOutput() {
		return emitJSON(deps)
	}
	heading := "Dependencies of"
	if queryReverse {
		heading = "Dependents of"
	}
	fmt.Printf("%s %s:\n\n", heading, entity.QualifiedName)
	if len(deps) == 0 {
		fmt.Println("  None.")
		return ExitSuccess
	}
	for _, d := range deps {
		indent := strings.Repeat("  ", d.Depth)
		if d.External {
			fmt.Printf("%s%s  (external)\n", indent, d.Name)
		} else {
			fmt.Printf("%s%s  (%s, %s)\n", indent, d.Name, d.Entity.Kind, d.Entity.FilePath)
		}
	}
	fmt.Printf("\n%d result(s)\n", len(deps))
	return ExitSuccess
}

func runSearch(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	kinds, err := parseKinds(queryKinds)
	if err != nil {
		return fail("bad --kind", err)
	}

	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	engine, err := query.NewEngine(store, logger.Logger)
	if err != nil {
		return fail("creating engine", err)
	}
	results, err := engine.SearchEntities(cmd.Context(), projectID, args[0], kinds, queryLimit)
	if err != nil {
		return fail("search failed", err)
	}

	if jsonOutput() {
		return emitJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return ExitNotFound
	}
	for _, r := range results {
		fmt.Printf("%6.1f  %-10s %s  %s:%d\n",
			r.Score, r.Entity.Kind, r.Entity.QualifiedName, r.Entity.FilePath, r.Entity.LineStart)
	}
	return ExitSuccess
}

func runArch(cmd *cobra.Command, args []string) int {
	projectID, ok := requireProject()
	if !ok {
		return ExitError
	}
	store, err := openStore()
	if err != nil {
		return fail("opening store", err)
	}
	defer store.Close()

	engine, err := query.NewEngine(store, logger.Logger)
	if err != nil {
		return fail("creating engine", err)
	}
	summary, err := engine.SummarizeArchitecture(cmd.Context(), projectID)
	if err != nil {
		return fail("summary failed", err)
	}

	if jsonOutput() {
		return emitJSON(summary)
	}
	fmt.Printf("Architecture of %s (%d entities, %d relations):\n\n",
		projectID, summary.TotalEntities, summary.TotalRelations)
	for _, m := range summary.Modules {
		fmt.Printf("  %s  (%d entities, fan-in %d, fan-out %d)\n",
			m.Path, m.TotalEntities, m.FanIn, m.FanOut)
		for kind, count := range m.EntityCounts {
			fmt.Printf("      %s: %d\n", kind, count)
		}
	}
	if len(summary.ExternalTop) > 0 {
		fmt.Println("\nTop external imports:")
		for _, ext := range summary.ExternalTop {
			fmt.Printf("  %4d  %s\n", ext.Count, ext.Name)
		}
	}
	return ExitSuccess
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// printChain renders a trace tree with two-space indentation per level.
func printChain(node *query.ChainNode, indent string) {
	if node == nil {
		return
	}
	suffix := ""
	if node.CycleEdge {
		suffix = "  (cycle)"
	} else if node.Truncated {
		suffix = "  (truncated)"
	}
	fmt.Printf("%s%s  %s:%d%s\n",
		indent, node.Entity.QualifiedName, node.Entity.FilePath, node.Entity.LineStart, suffix)
	for _, child := range node.Children {
		printChain(child, indent+"  ")
	}
}

func parseKinds(names []string) ([]graph.EntityKind, error) {
	kinds := make([]graph.EntityKind, 0, len(names))
	for _, name := range names {
		kind, ok := graph.ParseEntityKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown entity kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
