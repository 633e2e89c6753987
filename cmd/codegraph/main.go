// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codegraph analyzes source trees into a persisted code
// knowledge graph and answers structural queries against it.
//
// Typical flow:
//
//	codegraph analyze ./myproject
//	codegraph trace "auth.validate_token" --project myproject
//	codegraph debt --project myproject --trend 10
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/pkg/logging"
	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/query"
)

// Exit codes. Scripts distinguish "query ran but found nothing" from
// real failures.
const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitNotFound = 2
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	flagStorePath string
	flagProject   string
	flagFormat    string
	flagLogLevel  string
	flagLogDir    string

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "codegraph",
		Short: "A cross-language code knowledge graph engine",
		Long: `codegraph extracts entities and relations from source trees into a
persisted graph, then answers structural queries against it:
call-chain traces, dependency closures, entity search, architecture
summaries, and code quality analysis.

Run 'codegraph analyze PATH' first to build the graph.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, err := logging.ParseLevel(flagLogLevel)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v, using WARN\n", err)
				level = logging.LevelWarn
			}
			logger, err = logging.New(logging.Config{
				Level:   level,
				LogDir:  flagLogDir,
				Service: "cli",
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
				logger = logging.Default()
			}
		},
	}
)

func main() {
	defer func() {
		if logger != nil {
			logger.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store", "~/.codegraph/graph",
		"Graph database directory")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "",
		"Project identifier (defaults to the analyzed directory name)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text",
		"Output format: text, json")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "",
		"Directory for JSON log files (disabled when empty)")
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// exitWith adapts an exit-code-returning run function to cobra's Run
// signature. The inner function owns all defers; os.Exit happens after
// they have run.
func exitWith(fn func(cmd *cobra.Command, args []string) int) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		os.Exit(fn(cmd, args))
	}
}

// openStore opens the graph database named by --store.
func openStore() (*graph.Store, error) {
	path := flagStorePath
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return graph.Open(graph.DefaultConfig(path))
}

// requireProject returns --project or fails with a hint.
func requireProject() (string, bool) {
	if flagProject == "" {
		fmt.Fprintln(os.Stderr, "Error: --project is required (the name used at analyze time)")
		return "", false
	}
	return flagProject, true
}

func jsonOutput() bool {
	return flagFormat == "json"
}

// emitJSON writes v to stdout as indented JSON.
func emitJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encoding output: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// fail reports an error in the selected format and picks the exit code
// from its kind.
func fail(msg string, err error) int {
	if jsonOutput() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("%s: %v", msg, err),
		})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	}
	if errors.Is(err, graph.ErrEntityNotFound) || errors.Is(err, graph.ErrIssueNotFound) {
		return ExitNotFound
	}
	return ExitError
}

// resolveEntity looks a qualified name up in the project, printing
// close matches when the exact name is unknown.
func resolveEntity(cmd *cobra.Command, store *graph.Store, projectID, name string) (*graph.Entity, int) {
	ctx := cmd.Context()
	entity, err := store.GetEntityByName(ctx, projectID, name)
	if err == nil {
		return entity, ExitSuccess
	}
	if !errors.Is(err, graph.ErrEntityNotFound) {
		return nil, fail("lookup failed", err)
	}

	code := fail(fmt.Sprintf("symbol %q not found", name), err)
	if !jsonOutput() {
		if engine, eerr := query.NewEngine(store, logger.Logger); eerr == nil {
			if matches, serr := engine.SearchEntities(ctx, projectID, name, nil, 3); serr == nil && len(matches) > 0 {
				fmt.Fprintln(os.Stderr, "Did you mean:")
				for _, m := range matches {
					fmt.Fprintf(os.Stderr, "  %s  (%s)\n", m.Entity.QualifiedName, m.Entity.Kind)
				}
			}
		}
	}
	return nil, code
}
