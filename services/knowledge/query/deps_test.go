// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

func depNames(deps []Dependency) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names
}

func TestFindDependencies_Direct(t *testing.T) {
	engine, ents := fixtureEngine(t)

	deps, err := engine.FindDependencies(context.Background(), testProject, ents["main"].ID, DependencyOptions{})
	if err != nil {
		t.Fatalf("deps: %v", err)
	}

	names := depNames(deps)
	if !contains(names, "app.service") {
		t.Errorf("missing resolved import app.service: %v", names)
	}
	if !contains(names, "os") {
		t.Errorf("missing external import os: %v", names)
	}
	for _, d := range deps {
		if d.Depth != 1 {
			t.Errorf("direct dependency %s at depth %d", d.Name, d.Depth)
		}
	}
}

func TestFindDependencies_ExternalFlag(t *testing.T) {
	engine, ents := fixtureEngine(t)

	deps, err := engine.FindDependencies(context.Background(), testProject, ents["main"].ID, DependencyOptions{})
	if err != nil {
		t.Fatalf("deps: %v", err)
	}

	for _, d := range deps {
		switch d.Name {
		case "os":
			if !d.External || d.Entity != nil {
				t.Error("os should be external with no entity")
			}
		case "app.service":
			if d.External || d.Entity == nil {
				t.Error("app.service should be resolved")
			}
		}
	}
}

func TestFindDependencies_Reverse(t *testing.T) {
	engine, ents := fixtureEngine(t)

	deps, err := engine.FindDependencies(context.Background(), testProject, ents["format_row"].ID, DependencyOptions{
		Reverse: true,
	})
	if err != nil {
		t.Fatalf("deps: %v", err)
	}

	// Service has a Uses edge to format_row. The Calls edge from run does
	// not count as a dependency.
	names := depNames(deps)
	if !contains(names, "app.service.Service") {
		t.Errorf("missing dependent app.service.Service: %v", names)
	}
	if contains(names, "app.service.Service.run") {
		t.Errorf("call edge should not appear in dependencies: %v", names)
	}
}

func TestFindDependencies_TransitiveDepths(t *testing.T) {
	engine, ents := fixtureEngine(t)
	ctx := context.Background()

	// Add a second-hop import: app.service module imports lib.util module.
	store := engine.store
	libMod := graph.Entity{
		ID:            graph.EntityID(testProject, "lib.util", "lib/util.py"),
		ProjectID:     testProject,
		QualifiedName: "lib.util",
		Name:          "util",
		Kind:          graph.KindModule,
		Language:      "python",
		FilePath:      "lib/util.py",
		LineStart:     1,
		LineEnd:       1,
	}
	if err := store.UpsertEntities(ctx, testProject, []graph.Entity{libMod}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	hop := graph.Relation{
		ProjectID:  testProject,
		SourceID:   ents["service"].ID,
		TargetID:   libMod.ID,
		Type:       graph.RelationImports,
		Confidence: 1,
	}
	hop.ID = graph.RelationID(testProject, hop.DedupKey())
	if err := store.UpsertRelations(ctx, testProject, []graph.Relation{hop}); err != nil {
		t.Fatalf("upsert relation: %v", err)
	}

	deps, err := engine.FindDependencies(ctx, testProject, ents["main"].ID, DependencyOptions{
		Transitive: true,
	})
	if err != nil {
		t.Fatalf("deps: %v", err)
	}

	depth := map[string]int{}
	for _, d := range deps {
		depth[d.Name] = d.Depth
	}
	if depth["app.service"] != 1 {
		t.Errorf("app.service at depth %d, want 1", depth["app.service"])
	}
	if depth["lib.util"] != 2 {
		t.Errorf("lib.util at depth %d, want 2", depth["lib.util"])
	}
	// os is imported at both hops; it appears once at the shorter one.
	if depth["os"] != 1 {
		t.Errorf("os at depth %d, want 1", depth["os"])
	}
	var osCount int
	for _, d := range deps {
		if d.Name == "os" {
			osCount++
		}
	}
	if osCount != 1 {
		t.Errorf("os appears %d times, want 1", osCount)
	}
}

func TestFindDependencies_UnknownEntity(t *testing.T) {
	engine, _ := fixtureEngine(t)

	_, err := engine.FindDependencies(context.Background(), testProject, "missing", DependencyOptions{})
	if !errors.Is(err, graph.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}
