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

func TestUpdate_UnchangedFilesUntouched(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	ctx := context.Background()
	const project = "upd-isolation"

	if _, err := s.Analyze(ctx, project, root, AnalyzeOptions{}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	mainBefore, err := store.GetEntityByName(ctx, project, "main.run")
	if err != nil {
		t.Fatalf("get main.run: %v", err)
	}

	// Rename do_work to do_stuff and update only helper.py.
	writeFile(t, root, "helper.py", "def do_stuff():\n    return 2\n")
	report, err := s.Update(ctx, project, root, []string{"helper.py"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if report.FilesParsed != 1 {
		t.Errorf("FilesParsed = %d, want 1", report.FilesParsed)
	}
	if report.EntitiesRemoved == 0 {
		t.Error("renamed function should remove the old entity")
	}

	mainAfter, err := store.GetEntityByName(ctx, project, "main.run")
	if err != nil {
		t.Fatalf("main.run disappeared: %v", err)
	}
	if mainAfter.ID != mainBefore.ID {
		t.Error("entity in unchanged file changed ID")
	}

	if _, err := store.GetEntityByName(ctx, project, "helper.do_stuff"); err != nil {
		t.Errorf("helper.do_stuff not stored: %v", err)
	}
	if _, err := store.GetEntityByName(ctx, project, "helper.do_work"); err == nil {
		t.Error("helper.do_work should be gone")
	}
}

func TestUpdate_DanglingCallDowngraded(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	ctx := context.Background()
	const project = "upd-downgrade"

	if _, err := s.Analyze(ctx, project, root, AnalyzeOptions{}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	writeFile(t, root, "helper.py", "def do_stuff():\n    return 2\n")
	report, err := s.Update(ctx, project, root, []string{"helper.py"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if report.RelationsDowngraded == 0 {
		t.Error("call into removed function should be downgraded")
	}

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
	if !calls[0].IsExternal() {
		t.Errorf("dangling call not external: %+v", calls[0])
	}
	if calls[0].TargetName != "helper.do_work" {
		t.Errorf("external name = %q, want helper.do_work", calls[0].TargetName)
	}
	if calls[0].Confidence > 0.5 {
		t.Errorf("downgraded confidence = %v, want <= 0.5", calls[0].Confidence)
	}
}

func TestUpdate_DeletedFile(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	ctx := context.Background()
	const project = "upd-deleted"

	if _, err := s.Analyze(ctx, project, root, AnalyzeOptions{}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "helper.py")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	report, err := s.Update(ctx, project, root, []string{"helper.py"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if report.FilesParsed != 0 {
		t.Errorf("FilesParsed = %d, want 0 for deleted file", report.FilesParsed)
	}
	if report.EntitiesRemoved == 0 {
		t.Error("deleted file should remove its entities")
	}

	if _, err := store.GetEntityByName(ctx, project, "helper.do_work"); err == nil {
		t.Error("entity from deleted file still resolvable")
	}
	if _, err := store.GetEntityByName(ctx, project, "main.run"); err != nil {
		t.Errorf("unrelated entity lost: %v", err)
	}
}

func TestUpdate_StoreFailureKeepsPartialReport(t *testing.T) {
	s, store := newTestSession(t)
	root := fixtureProject(t)
	ctx := context.Background()
	const project = "upd-partial"

	if _, err := s.Analyze(ctx, project, root, AnalyzeOptions{}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	writeFile(t, root, "helper.py", "def do_stuff():\n    return 2\n")
	store.Close()

	report, err := s.Update(ctx, project, root, []string{"helper.py"})
	if err == nil {
		t.Fatal("expected a storage failure")
	}
	if !errors.Is(err, graph.ErrStoreClosed) {
		t.Fatalf("err = %v, want ErrStoreClosed", err)
	}
	if report == nil {
		t.Fatal("report dropped on storage failure")
	}
	if report.FilesParsed != 1 {
		t.Errorf("FilesParsed = %d, want 1 (parsing succeeded before the write)", report.FilesParsed)
	}
	if report.EntitiesAdded != 0 || report.EntitiesRemoved != 0 {
		t.Errorf("failed replace reported entity changes: %+v", report)
	}
}

func TestUpdate_NoChanges(t *testing.T) {
	s, _ := newTestSession(t)

	report, err := s.Update(context.Background(), "upd-empty", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if report.FilesParsed != 0 || report.EntitiesRemoved != 0 {
		t.Errorf("empty update did work: %+v", report)
	}
}
