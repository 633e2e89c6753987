// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quality diagnoses a project's knowledge graph: circular
// dependencies, oversized entities, coupling extremes, and an aggregate
// technical-debt score with hotspot ranking.
//
// Detectors are pure reads; they return issues without persisting them.
// The caller decides what to append to the store.
package quality

import (
	"errors"
	"log/slog"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

// ErrNilStore indicates analyzer construction without a store.
var ErrNilStore = errors.New("store must not be nil")

// Analyzer runs quality detectors against a graph store.
//
// # Thread Safety
//
// Analyzer is safe for concurrent use; thresholds are read-only after
// construction.
type Analyzer struct {
	store      *graph.Store
	thresholds Thresholds
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer with the given thresholds.
func NewAnalyzer(store *graph.Store, thresholds Thresholds, logger *slog.Logger) (*Analyzer, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: store, thresholds: thresholds, logger: logger}, nil
}
