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
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// DefaultSearchLimit caps search results when the caller does not.
const DefaultSearchLimit = 50

// SearchResult is one scored search hit.
type SearchResult struct {
	Entity graph.Entity `json:"entity"`
	Score  float64      `json:"score"`
}

// Score bands. Within a band, earlier and tighter matches score higher.
const (
	scoreExactName  = 100.0
	scorePrefixName = 80.0
	scoreSubstrName = 60.0
	scoreQualified  = 40.0
	scoreDoc        = 20.0
)

// SearchEntities finds entities whose name or documentation matches the
// query text.
//
// # Description
//
// Case-insensitive substring search over bare name, qualified name, and
// doc summary, with band scoring: exact name, name prefix, name
// substring, qualified-name substring, doc substring. Within a band the
// score is adjusted by match position (earlier is better) and by how much
// of the matched field the query covers. Ties order by qualified name so
// results are deterministic.
func (e *Engine) SearchEntities(ctx context.Context, projectID, queryText string, kinds []graph.EntityKind, limit int) ([]SearchResult, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	entities, err := e.store.ListEntities(ctx, projectID, graph.EntityFilter{Kinds: kinds})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(queryText)
	var results []SearchResult
	for i := range entities {
		score := scoreEntity(&entities[i], needle)
		if score > 0 {
			results = append(results, SearchResult{Entity: entities[i], Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.QualifiedName < results[j].Entity.QualifiedName
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scoreEntity returns the best band score for one entity, or 0 for no
// match.
func scoreEntity(e *graph.Entity, needle string) float64 {
	name := strings.ToLower(e.Name)
	qname := strings.ToLower(e.QualifiedName)
	doc := strings.ToLower(e.DocSummary)

	switch {
	case name == needle:
		return scoreExactName
	case strings.HasPrefix(name, needle):
		return scorePrefixName + coverage(needle, name)*10
	case strings.Contains(name, needle):
		pos := strings.Index(name, needle)
		return scoreSubstrName - positionPenalty(pos) + coverage(needle, name)*10
	case strings.Contains(qname, needle):
		pos := strings.Index(qname, needle)
		return scoreQualified - positionPenalty(pos) + coverage(needle, qname)*10
	case doc != "" && strings.Contains(doc, needle):
		return scoreDoc
	}
	return 0
}

// positionPenalty discounts matches that start deeper in the field,
// capped so a late match never falls out of its band.
func positionPenalty(pos int) float64 {
	p := float64(pos)
	if p > 15 {
		p = 15
	}
	return p
}

// coverage is the fraction of the field the query covers, in [0,1].
func coverage(needle, field string) float64 {
	if len(field) == 0 {
		return 0
	}
	return float64(len(needle)) / float64(len(field))
}
