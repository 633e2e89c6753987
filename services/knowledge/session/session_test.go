// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

const mainSource = `import helper

def run():
    helper.do_work()
`

const helperSource = `def do_work():
    return 1
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newTestSession(t *testing.T) (*Session, *graph.Store) {
	t.Helper()
	store, err := graph.Open(graph.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s, err := NewSession(store)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, store
}

func fixtureProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "main.py", mainSource)
	writeFile(t, root, "helper.py", helperSource)
	return root
}

func TestAnalyze_EndToEnd(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	ctx := context.Background()
	const project = "e2e"

	report, err := s.Analyze(ctx, project, root, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if report.FilesParsed != 2 {
		t.Errorf("FilesParsed = %d, want 2", report.FilesParsed)
	}
	if len(report.Errors) != 0 {
		t.Errorf("parse errors: %v", report.Errors)
	}
	if report.EntitiesAdded == 0 || report.RelationsAdded == 0 {
		t.Errorf("empty report: %+v", report)
	}
	if report.Snapshot == nil {
		t.Fatal("no debt snapshot in report")
	}

	for _, qname := range []string{"main", "helper", "main.run", "helper.do_work"} {
		if _, err := store.GetEntityByName(ctx, project, qname); err != nil {
			t.Errorf("entity %s not stored: %v", qname, err)
		}
	}

	// The call in run() resolves to helper.do_work.
	run, err := store.GetEntityByName(ctx, project, "main.run")
	if err != nil {
		t.Fatalf("get main.run: %v", err)
	}
	calls, err := store.GetRelations(ctx, project, run.ID,
		[]graph.RelationType{graph.RelationCalls}, graph.DirectionOut)
	if err != nil {
		t.Fatalf("get calls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("run has %d call edges, want 1", len(calls))
	}
	if calls[0].TargetID == "" {
		t.Errorf("call target unresolved: %+v", calls[0])
	}

	trend, err := store.GetDebtTrend(ctx, project, 0)
	if err != nil {
		t.Fatalf("debt trend: %v", err)
	}
	if len(trend) != 1 {
		t.Errorf("debt trend length = %d, want 1", len(trend))
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	ctx := context.Background()
	const project = "idem"

	if _, err := s.Analyze(ctx, project, root, AnalyzeOptions{}); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	first, err := store.ListEntities(ctx, project, graph.EntityFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if _, err := s.Analyze(ctx, project, root, AnalyzeOptions{}); err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	second, err := store.ListEntities(ctx, project, graph.EntityFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("entity count changed: %d then %d", len(first), len(second))
	}
	ids := make(map[string]bool, len(first))
	for _, e := range first {
		ids[e.ID] = true
	}
	for _, e := range second {
		if !ids[e.ID] {
			t.Errorf("entity %s got a new ID on re-analysis", e.QualifiedName)
		}
	}
}

func TestAnalyze_ExcludePatterns(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	writeFile(t, root, "generated/schema.py", "def gen():\n    pass\n")
	writeFile(t, root, "vendor/dep.py", "def vendored():\n    pass\n")
	ctx := context.Background()
	const project = "excludes"

	report, err := s.Analyze(ctx, project, root, AnalyzeOptions{
		ExcludePatterns: []string{"generated/**"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.FilesParsed != 2 {
		t.Errorf("FilesParsed = %d, want 2 (vendor and generated skipped)", report.FilesParsed)
	}
	if _, err := store.GetEntityByName(ctx, project, "schema.gen"); err == nil {
		t.Error("excluded file was analyzed")
	}
	if _, err := store.GetEntityByName(ctx, project, "dep.vendored"); err == nil {
		t.Error("vendor file was analyzed")
	}
}

func TestAnalyze_LanguageFilter(t *testing.T) {
	s, _ := newTestSession(t)
	root := fixtureProject(t)
	writeFile(t, root, "app.ts", "export function render() {\n  return 1;\n}\n")
	ctx := context.Background()

	report, err := s.Analyze(ctx, "langs", root, AnalyzeOptions{
		Languages: []string{"python"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.FilesParsed != 2 {
		t.Errorf("FilesParsed = %d, want only the 2 python files", report.FilesParsed)
	}
}

func TestAnalyze_ProgressCallback(t *testing.T) {
	s, _ := newTestSession(t)
	root := fixtureProject(t)

	var phases []string
	_, err := s.Analyze(context.Background(), "progress", root, AnalyzeOptions{
		Progress: func(p Progress) {
			phases = append(phases, p.Phase)
		},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(phases) == 0 {
		t.Fatal("progress callback never invoked")
	}
	if phases[len(phases)-1] != "resolving" {
		t.Errorf("last phase = %s, want resolving", phases[len(phases)-1])
	}
}

func TestAnalyze_StoreFailureKeepsPartialReport(t *testing.T) {
	store, err := graph.Open(graph.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := DefaultConfig()
	cfg.BatchSize = 1
	s, err := NewSession(store, WithConfig(cfg))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	root := fixtureProject(t)

	// Kill the store after the first single-file batch lands; the second
	// batch's commit then fails.
	report, err := s.Analyze(context.Background(), "partial", root, AnalyzeOptions{
		Progress: func(p Progress) {
			if p.Phase == "parsing" && p.FilesDone == 1 {
				store.Close()
			}
		},
	})
	if err == nil {
		t.Fatal("expected a storage failure")
	}
	if !errors.Is(err, graph.ErrStoreClosed) {
		t.Fatalf("err = %v, want ErrStoreClosed", err)
	}
	if report == nil {
		t.Fatal("report for committed batches was dropped")
	}
	if report.FilesParsed != 1 {
		t.Errorf("FilesParsed = %d, want the 1 committed batch", report.FilesParsed)
	}
	if report.EntitiesAdded == 0 {
		t.Error("committed batch entities missing from report")
	}
}

func TestNewSession_NilStore(t *testing.T) {
	if _, err := NewSession(nil); err != ErrNilStore {
		t.Fatalf("expected ErrNilStore, got %v", err)
	}
}
