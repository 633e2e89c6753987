// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query provides read-only traversal and search over a project's
// knowledge graph: call-chain tracing, dependency closures, entity search,
// and architecture summaries.
//
// All operations are bounded: depth limits, node limits, and visited sets
// guarantee termination on cyclic graphs.
package query

import (
	"errors"
	"log/slog"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
)

var (
	// ErrEmptyQuery indicates a search with no query text.
	ErrEmptyQuery = errors.New("search query must not be empty")

	// ErrNilStore indicates engine construction without a store.
	ErrNilStore = errors.New("store must not be nil")
)

// Engine executes read-only queries against a graph store.
//
// # Thread Safety
//
// Engine is safe for concurrent use; it holds no per-query state.
type Engine struct {
	store  *graph.Store
	logger *slog.Logger
}

// NewEngine creates a query engine over the given store.
func NewEngine(store *graph.Store, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}, nil
}
