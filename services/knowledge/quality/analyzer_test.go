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
	"strings"
	"testing"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *graph.Store) {
	t.Helper()

	store, err := graph.Open(graph.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	analyzer, err := NewAnalyzer(store, DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return analyzer, store
}

func putEntity(t *testing.T, store *graph.Store, project, qname string, kind graph.EntityKind, file string, lineStart, lineEnd int) graph.Entity {
	t.Helper()
	e := graph.Entity{
		ID:            graph.EntityID(project, qname, file),
		ProjectID:     project,
		QualifiedName: qname,
		Name:          qname[strings.LastIndex(qname, ".")+1:],
		Kind:          kind,
		Language:      "python",
		FilePath:      file,
		LineStart:     lineStart,
		LineEnd:       lineEnd,
	}
	if err := store.UpsertEntities(context.Background(), project, []graph.Entity{e}); err != nil {
		t.Fatalf("upsert %s: %v", qname, err)
	}
	return e
}

func putRelation(t *testing.T, store *graph.Store, project string, src, dst graph.Entity, typ graph.RelationType) {
	t.Helper()
	r := graph.Relation{
		ProjectID:  project,
		SourceID:   src.ID,
		TargetID:   dst.ID,
		Type:       typ,
		Confidence: 1,
	}
	r.ID = graph.RelationID(project, r.DedupKey())
	if err := store.UpsertRelations(context.Background(), project, []graph.Relation{r}); err != nil {
		t.Fatalf("upsert relation: %v", err)
	}
}

func TestNewAnalyzer_NilStore(t *testing.T) {
	if _, err := NewAnalyzer(nil, DefaultThresholds(), nil); err != ErrNilStore {
		t.Fatalf("expected ErrNilStore, got %v", err)
	}
}

func TestNewAnalyzer_BadThresholds(t *testing.T) {
	store, err := graph.Open(graph.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	bad := DefaultThresholds()
	bad.FunctionLines.High = bad.FunctionLines.Medium // tiers no longer ascend
	if _, err := NewAnalyzer(store, bad, nil); err == nil {
		t.Fatal("expected threshold validation error")
	}
}

func TestDetectCycles_Triangle(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "cycles-triangle"

	x := putEntity(t, store, project, "x", graph.KindModule, "x.py", 1, 10)
	y := putEntity(t, store, project, "y", graph.KindModule, "y.py", 1, 10)
	z := putEntity(t, store, project, "z", graph.KindModule, "z.py", 1, 10)
	putRelation(t, store, project, x, y, graph.RelationImports)
	putRelation(t, store, project, y, z, graph.RelationImports)
	putRelation(t, store, project, z, x, graph.RelationImports)

	issues, err := a.DetectCycles(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want exactly 1", len(issues))
	}

	issue := issues[0]
	if issue.Severity != graph.SeverityHigh {
		t.Errorf("3-cycle severity = %s, want high", issue.Severity)
	}
	if issue.IssueType != graph.IssueTypeCycle {
		t.Errorf("issue type = %s", issue.IssueType)
	}
	for _, name := range []string{"x", "y", "z"} {
		if !strings.Contains(issue.Description, name) {
			t.Errorf("description %q missing %s", issue.Description, name)
		}
	}
	if issue.Status != graph.IssueOpen {
		t.Errorf("new issue status = %s", issue.Status)
	}

	// Deterministic across runs.
	again, err := a.DetectCycles(context.Background(), project)
	if err != nil {
		t.Fatalf("detect again: %v", err)
	}
	if len(again) != 1 || again[0].Description != issue.Description {
		t.Error("repeated detection differs")
	}
}

func TestDetectCycles_SeverityByLength(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "cycles-length"

	// Two-node cycle: medium.
	p := putEntity(t, store, project, "pair.a", graph.KindModule, "pa.py", 1, 5)
	q := putEntity(t, store, project, "pair.b", graph.KindModule, "pb.py", 1, 5)
	putRelation(t, store, project, p, q, graph.RelationUses)
	putRelation(t, store, project, q, p, graph.RelationUses)

	// Five-node cycle: critical.
	ring := make([]graph.Entity, 5)
	names := []string{"ring.a", "ring.b", "ring.c", "ring.d", "ring.e"}
	for i, n := range names {
		ring[i] = putEntity(t, store, project, n, graph.KindModule, n+".py", 1, 5)
	}
	for i := range ring {
		putRelation(t, store, project, ring[i], ring[(i+1)%len(ring)], graph.RelationImports)
	}

	issues, err := a.DetectCycles(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}

	// Sorted by severity descending.
	if issues[0].Severity != graph.SeverityCritical {
		t.Errorf("first issue severity = %s, want critical", issues[0].Severity)
	}
	if issues[1].Severity != graph.SeverityMedium {
		t.Errorf("second issue severity = %s, want medium", issues[1].Severity)
	}
}

func TestDetectCycles_NoCycle(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "cycles-none"

	x := putEntity(t, store, project, "x", graph.KindModule, "x.py", 1, 10)
	y := putEntity(t, store, project, "y", graph.KindModule, "y.py", 1, 10)
	putRelation(t, store, project, x, y, graph.RelationImports)

	issues, err := a.DetectCycles(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("acyclic graph produced %d issues", len(issues))
	}
}

func TestDetectOversized_FunctionTiers(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "size-fn"

	putEntity(t, store, project, "m.small", graph.KindFunction, "m.py", 1, 40)
	putEntity(t, store, project, "m.medium", graph.KindFunction, "m.py", 50, 120)
	putEntity(t, store, project, "m.large", graph.KindMethod, "m.py", 130, 280)
	putEntity(t, store, project, "m.huge", graph.KindFunction, "m.py", 300, 520)

	issues, err := a.DetectOversized(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	bySuffix := map[string]graph.Severity{}
	for _, issue := range issues {
		for _, n := range []string{"m.medium", "m.large", "m.huge", "m.small"} {
			if strings.Contains(issue.Description, n+" ") {
				bySuffix[n] = issue.Severity
			}
		}
	}

	if _, flagged := bySuffix["m.small"]; flagged {
		t.Error("m.small (40 lines) should not be flagged")
	}
	if bySuffix["m.medium"] != graph.SeverityMedium {
		t.Errorf("m.medium severity = %v", bySuffix["m.medium"])
	}
	if bySuffix["m.large"] != graph.SeverityHigh {
		t.Errorf("m.large severity = %v", bySuffix["m.large"])
	}
	if bySuffix["m.huge"] != graph.SeverityCritical {
		t.Errorf("m.huge severity = %v", bySuffix["m.huge"])
	}
}

func TestDetectOversized_ClassMethodCount(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "size-class"

	cls := putEntity(t, store, project, "m.Big", graph.KindClass, "m.py", 1, 30)
	for i := 0; i < 22; i++ {
		m := putEntity(t, store, project,
			"m.Big.method_"+string(rune('a'+i)), graph.KindMethod, "m.py", 1, 2)
		putRelation(t, store, project, cls, m, graph.RelationContains)
	}

	issues, err := a.DetectOversized(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	var found bool
	for _, issue := range issues {
		if issue.EntityID == cls.ID {
			found = true
			if issue.Severity != graph.SeverityHigh {
				t.Errorf("22-method class severity = %s, want high", issue.Severity)
			}
		}
	}
	if !found {
		t.Error("22-method class not flagged")
	}
}

func TestDetectCoupling_FanInCeiling(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "coupling-hub"

	hub := putEntity(t, store, project, "m.hub", graph.KindClass, "m.py", 1, 10)
	for i := 0; i < 26; i++ {
		caller := putEntity(t, store, project,
			"m.caller_"+string(rune('a'+i)), graph.KindFunction, "callers.py", 1, 2)
		putRelation(t, store, project, caller, hub, graph.RelationUses)
	}

	issues, err := a.DetectCoupling(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	var hubIssue *graph.QualityIssue
	for i := range issues {
		if issues[i].EntityID == hub.ID {
			hubIssue = &issues[i]
		}
	}
	if hubIssue == nil {
		t.Fatal("hub with fan-in 26 not flagged")
	}
	if hubIssue.Severity != graph.SeverityHigh {
		t.Errorf("ceiling breach severity = %s, want high", hubIssue.Severity)
	}
	if hubIssue.IssueType != graph.IssueTypeCoupling {
		t.Errorf("issue type = %s", hubIssue.IssueType)
	}
}

func TestDetectCoupling_Imbalance(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "coupling-imbalance"

	// 12 in, 1 out: degree 13 over the minimum, ratio 12 over the limit.
	sink := putEntity(t, store, project, "m.sink", graph.KindClass, "m.py", 1, 10)
	out := putEntity(t, store, project, "m.out", graph.KindClass, "m.py", 11, 20)
	putRelation(t, store, project, sink, out, graph.RelationUses)
	for i := 0; i < 12; i++ {
		src := putEntity(t, store, project,
			"m.src_"+string(rune('a'+i)), graph.KindFunction, "srcs.py", 1, 2)
		putRelation(t, store, project, src, sink, graph.RelationUses)
	}

	issues, err := a.DetectCoupling(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	var found bool
	for _, issue := range issues {
		if issue.EntityID == sink.ID {
			found = true
			if issue.Severity != graph.SeverityMedium {
				t.Errorf("imbalance severity = %s, want medium", issue.Severity)
			}
		}
	}
	if !found {
		t.Error("imbalanced entity not flagged")
	}
}

func TestDetectCoupling_BelowThresholds(t *testing.T) {
	a, store := newTestAnalyzer(t)
	const project = "coupling-quiet"

	x := putEntity(t, store, project, "m.x", graph.KindFunction, "m.py", 1, 5)
	y := putEntity(t, store, project, "m.y", graph.KindFunction, "m.py", 6, 10)
	putRelation(t, store, project, x, y, graph.RelationCalls)

	issues, err := a.DetectCoupling(context.Background(), project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("lightly coupled project produced %d issues", len(issues))
	}
}
