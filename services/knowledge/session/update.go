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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/normalize"
)

// UpdateReport summarizes one incremental update.
type UpdateReport struct {
	ProjectID           string      `json:"project_id"`
	FilesParsed         int         `json:"files_parsed"`
	EntitiesAdded       int         `json:"entities_added"`
	EntitiesRemoved     int         `json:"entities_removed"`
	RelationsAdded      int         `json:"relations_added"`
	RelationsPruned     int         `json:"relations_pruned"`
	RelationsRewired    int         `json:"relations_rewired"`
	RelationsDowngraded int         `json:"relations_downgraded"`
	Errors              []FileError `json:"errors,omitempty"`
	DurationMilli       int64       `json:"duration_milli"`
}

// Update re-analyzes only the changed files of an already analyzed
// project.
//
// # Description
//
// Re-parses changedFiles (root-relative paths) and atomically replaces
// the entities belonging to them; entities in unchanged files keep their
// ids and are untouched. A changed file missing on disk counts as
// deleted: its entities are removed without replacement. Relations
// touching removed entities are then reconciled: edges whose source is
// gone are pruned; edges whose target is gone are re-pointed when an
// entity with the same qualified name reappeared elsewhere, and
// downgraded to an external reference otherwise.
func (s *Session) Update(ctx context.Context, projectID, rootPath string, changedFiles []string) (*UpdateReport, error) {
	if projectID == "" {
		return nil, fmt.Errorf("empty project ID")
	}
	if len(changedFiles) == 0 {
		return &UpdateReport{ProjectID: projectID}, nil
	}

	release := s.store.LockProject(projectID)
	defer release()

	start := time.Now()
	report := &UpdateReport{ProjectID: projectID}

	files := make([]string, len(changedFiles))
	for i, f := range changedFiles {
		files[i] = filepath.ToSlash(f)
	}

	// Qualified names of everything currently defined in the changed
	// files, needed later to downgrade or re-point dangling edges.
	oldNames := make(map[string]string)
	for _, f := range files {
		for _, id := range s.store.EntitiesInFile(projectID, f) {
			if e, err := s.store.GetEntity(ctx, projectID, id); err == nil {
				oldNames[id] = e.QualifiedName
			}
		}
	}

	var entities []graph.Entity
	var structural []graph.Relation
	var refs []normalize.RawRelation

	for _, f := range files {
		if _, err := os.Stat(filepath.Join(rootPath, filepath.FromSlash(f))); os.IsNotExist(err) {
			continue // deleted file: entities drop with the replace
		}

		result, err := s.parseFile(ctx, rootPath, f)
		if err != nil {
			report.Errors = append(report.Errors, fileError(f, err))
			continue
		}
		nf, err := s.normalizer.NormalizeFile(projectID, result)
		if err != nil {
			report.Errors = append(report.Errors, fileError(f, err))
			continue
		}
		entities = append(entities, nf.Entities...)
		structural = append(structural, nf.Structural...)
		refs = append(refs, nf.References...)
		report.FilesParsed++
	}

	// Storage failures return the report alongside the error so the
	// caller sees what had already landed before the failing write.
	removed, err := s.store.ReplaceEntitiesForFiles(ctx, projectID, files, entities)
	if err != nil {
		report.DurationMilli = time.Since(start).Milliseconds()
		return report, fmt.Errorf("replace entities: %w", err)
	}
	report.EntitiesAdded = len(entities)
	report.EntitiesRemoved = len(removed)

	if err := s.store.UpsertRelations(ctx, projectID, structural); err != nil {
		report.DurationMilli = time.Since(start).Milliseconds()
		return report, fmt.Errorf("commit structural relations: %w", err)
	}
	report.RelationsAdded += len(structural)

	if err := s.reconcileRelations(ctx, projectID, removed, oldNames, report); err != nil {
		report.DurationMilli = time.Since(start).Milliseconds()
		return report, err
	}

	added, err := s.resolveReferences(ctx, projectID, refs)
	if err != nil {
		report.DurationMilli = time.Since(start).Milliseconds()
		return report, err
	}
	report.RelationsAdded += added
	report.DurationMilli = time.Since(start).Milliseconds()

	s.logger.Info("incremental update complete",
		slog.String("project_id", projectID),
		slog.Int("files_parsed", report.FilesParsed),
		slog.Int("entities_added", report.EntitiesAdded),
		slog.Int("entities_removed", report.EntitiesRemoved),
		slog.Int("relations_pruned", report.RelationsPruned),
		slog.Int("relations_downgraded", report.RelationsDowngraded),
		slog.Int64("duration_ms", report.DurationMilli),
	)
	return report, nil
}

// reconcileRelations fixes edges left dangling by entity removal.
func (s *Session) reconcileRelations(ctx context.Context, projectID string, removed []string, oldNames map[string]string, report *UpdateReport) error {
	if len(removed) == 0 {
		return nil
	}
	removedSet := make(map[string]bool, len(removed))
	for _, id := range removed {
		removedSet[id] = true
	}

	touching, err := s.store.RelationsTouching(ctx, projectID, removed)
	if err != nil {
		return fmt.Errorf("relations touching removed: %w", err)
	}

	var toDelete []string
	var toUpsert []graph.Relation
	for _, rel := range touching {
		if removedSet[rel.SourceID] {
			// Source gone, with or without the target. The edge cannot
			// survive without its origin.
			toDelete = append(toDelete, rel.ID)
			report.RelationsPruned++
			continue
		}
		if rel.TargetID == "" || !removedSet[rel.TargetID] {
			continue
		}

		qname := oldNames[rel.TargetID]
		if newID, ok := s.store.ResolveName(projectID, qname); ok && qname != "" {
			rewired := rel
			rewired.TargetID = newID
			rewired.ID = graph.RelationID(projectID, rewired.DedupKey())
			toDelete = append(toDelete, rel.ID)
			toUpsert = append(toUpsert, rewired)
			report.RelationsRewired++
			continue
		}

		downgraded := rel
		downgraded.TargetID = ""
		downgraded.TargetName = qname
		if downgraded.TargetName == "" {
			// Name unknown; nothing to resolve against later.
			toDelete = append(toDelete, rel.ID)
			report.RelationsPruned++
			continue
		}
		if downgraded.Confidence > 0.5 {
			downgraded.Confidence = 0.5
		}
		downgraded.ID = graph.RelationID(projectID, downgraded.DedupKey())
		toDelete = append(toDelete, rel.ID)
		toUpsert = append(toUpsert, downgraded)
		report.RelationsDowngraded++
	}

	if err := s.store.DeleteRelations(ctx, projectID, toDelete); err != nil {
		return fmt.Errorf("prune relations: %w", err)
	}
	if err := s.store.UpsertRelations(ctx, projectID, toUpsert); err != nil {
		return fmt.Errorf("rewrite relations: %w", err)
	}
	return nil
}
