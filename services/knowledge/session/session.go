// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session orchestrates full and incremental analysis runs: it
// walks a project tree, parses files in parallel, normalizes the results
// into the graph store, and finishes with a quality pass and a debt
// snapshot.
//
// A Session holds no per-run state and is safe for concurrent use, but
// runs against the same project serialize on the store's project lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/normalize"
	"github.com/AleutianAI/codegraph/services/knowledge/quality"
)

// Default session tuning.
const (
	// DefaultWorkers is the parallel parse worker count.
	DefaultWorkers = 4

	// DefaultBatchSize is the number of files committed per store batch.
	DefaultBatchSize = 100

	// DefaultFileTimeout bounds one file's extraction. Exceeding it fails
	// only that file.
	DefaultFileTimeout = 10 * time.Second
)

// ErrNilStore indicates session construction without a store.
var ErrNilStore = errors.New("store must not be nil")

// Config tunes a session.
type Config struct {
	// Workers is the parallel parse worker count.
	Workers int

	// BatchSize is the number of files per committed batch. Cancellation
	// between batches keeps committed batches and discards nothing else.
	BatchSize int

	// FileTimeout bounds one file's extraction.
	FileTimeout time.Duration

	// Thresholds configure the quality pass.
	Thresholds quality.Thresholds
}

// DefaultConfig returns the default session tuning.
func DefaultConfig() Config {
	return Config{
		Workers:     DefaultWorkers,
		BatchSize:   DefaultBatchSize,
		FileTimeout: DefaultFileTimeout,
		Thresholds:  quality.DefaultThresholds(),
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConfig replaces the session configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.config = cfg
	}
}

// WithRegistry replaces the parser registry.
func WithRegistry(r *ast.Registry) Option {
	return func(s *Session) {
		if r != nil {
			s.registry = r
		}
	}
}

// Session runs analysis over a project tree and a graph store.
type Session struct {
	store      *graph.Store
	registry   *ast.Registry
	normalizer *normalize.Normalizer
	analyzer   *quality.Analyzer
	logger     *slog.Logger
	config     Config
}

// NewSession creates a session over the given store.
func NewSession(store *graph.Store, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Session{
		store:    store,
		registry: ast.DefaultRegistry(),
		logger:   slog.Default(),
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.Workers <= 0 {
		s.config.Workers = DefaultWorkers
	}
	if s.config.BatchSize <= 0 {
		s.config.BatchSize = DefaultBatchSize
	}

	s.normalizer = normalize.NewNormalizer(s.logger)
	analyzer, err := quality.NewAnalyzer(store, s.config.Thresholds, s.logger)
	if err != nil {
		return nil, err
	}
	s.analyzer = analyzer
	return s, nil
}

// FileError records one file that failed to parse.
type FileError struct {
	FilePath string `json:"file_path"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

// Progress reports analysis advancement to an optional callback.
type Progress struct {
	Phase      string
	FilesTotal int
	FilesDone  int
}

// ProgressFunc receives progress updates. May be nil.
type ProgressFunc func(Progress)

// AnalyzeOptions configures one full analysis run.
type AnalyzeOptions struct {
	// Languages keeps only files of the listed languages. Empty keeps all.
	Languages []string

	// ExcludePatterns are glob patterns over root-relative paths.
	ExcludePatterns []string

	// Progress receives phase updates. May be nil.
	Progress ProgressFunc
}

// AnalysisReport summarizes one full analysis run.
type AnalysisReport struct {
	ProjectID      string              `json:"project_id"`
	FilesParsed    int                 `json:"files_parsed"`
	EntitiesAdded  int                 `json:"entities_added"`
	RelationsAdded int                 `json:"relations_added"`
	IssuesFound    int                 `json:"issues_found"`
	Errors         []FileError         `json:"errors,omitempty"`
	Snapshot       *graph.DebtSnapshot `json:"debt_snapshot,omitempty"`
	DurationMilli  int64               `json:"duration_milli"`
}

// Analyze runs a full analysis of the tree under rootPath.
//
// # Description
//
// Walks the tree, parses files in parallel batches, and commits each
// batch of entities and structural edges atomically; cancellation between
// batches keeps what was committed. References are resolved project-wide
// once all batches land, then the quality detectors run, their issues are
// appended, and a debt snapshot is written.
//
// The project write lock is held for the whole run: concurrent Analyze or
// Update calls for the same project serialize, reads do not.
func (s *Session) Analyze(ctx context.Context, projectID, rootPath string, opts AnalyzeOptions) (*AnalysisReport, error) {
	if projectID == "" {
		return nil, fmt.Errorf("empty project ID")
	}
	excludes, err := CompileExcludes(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	languages := make(map[string]bool, len(opts.Languages))
	for _, l := range opts.Languages {
		languages[l] = true
	}

	release := s.store.LockProject(projectID)
	defer release()

	start := time.Now()
	files, err := collectFiles(rootPath, s.registry, languages, excludes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("analysis started",
		slog.String("project_id", projectID),
		slog.Int("file_count", len(files)),
	)

	report := &AnalysisReport{ProjectID: projectID}
	var refs []normalize.RawRelation

	for batchStart := 0; batchStart < len(files); batchStart += s.config.BatchSize {
		if err := ctx.Err(); err != nil {
			// Committed batches stay; the run stops cleanly here.
			report.DurationMilli = time.Since(start).Milliseconds()
			return report, err
		}

		end := batchStart + s.config.BatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[batchStart:end]

		results, parseErrs := s.parseBatch(ctx, rootPath, batch)
		report.Errors = append(report.Errors, parseErrs...)

		var entities []graph.Entity
		var structural []graph.Relation
		parsed := 0
		for _, result := range results {
			nf, err := s.normalizer.NormalizeFile(projectID, result)
			if err != nil {
				report.Errors = append(report.Errors, fileError(result.FilePath, err))
				continue
			}
			entities = append(entities, nf.Entities...)
			structural = append(structural, nf.Structural...)
			refs = append(refs, nf.References...)
			parsed++
		}

		// A failed batch rolls back whole; the report keeps the counts of
		// batches already committed and goes back with the error.
		if err := s.store.UpsertEntities(ctx, projectID, entities); err != nil {
			report.DurationMilli = time.Since(start).Milliseconds()
			return report, fmt.Errorf("commit batch entities: %w", err)
		}
		if err := s.store.UpsertRelations(ctx, projectID, structural); err != nil {
			report.DurationMilli = time.Since(start).Milliseconds()
			return report, fmt.Errorf("commit batch relations: %w", err)
		}
		report.FilesParsed += parsed
		report.EntitiesAdded += len(entities)
		report.RelationsAdded += len(structural)

		if opts.Progress != nil {
			opts.Progress(Progress{Phase: "parsing", FilesTotal: len(files), FilesDone: end})
		}
	}

	resolved, err := s.resolveReferences(ctx, projectID, refs)
	if err != nil {
		report.DurationMilli = time.Since(start).Milliseconds()
		return report, err
	}
	report.RelationsAdded += resolved
	if opts.Progress != nil {
		opts.Progress(Progress{Phase: "resolving", FilesTotal: len(files), FilesDone: len(files)})
	}

	issues, snap, err := s.qualityPass(ctx, projectID)
	if err != nil {
		report.DurationMilli = time.Since(start).Milliseconds()
		return report, err
	}
	report.IssuesFound = issues
	report.Snapshot = snap
	report.DurationMilli = time.Since(start).Milliseconds()

	recordAnalysis(ctx, time.Since(start), report.FilesParsed, report.EntitiesAdded, len(report.Errors))
	s.logger.Info("analysis complete",
		slog.String("project_id", projectID),
		slog.Int("files_parsed", report.FilesParsed),
		slog.Int("entities_added", report.EntitiesAdded),
		slog.Int("relations_added", report.RelationsAdded),
		slog.Int("issues_found", report.IssuesFound),
		slog.Int("parse_errors", len(report.Errors)),
		slog.Int64("duration_ms", report.DurationMilli),
	)
	return report, nil
}

// parseBatch parses one batch of files with bounded parallelism. Parse
// failures are collected, never fatal.
func (s *Session) parseBatch(ctx context.Context, root string, files []string) ([]*ast.ParseResult, []FileError) {
	sem := semaphore.NewWeighted(int64(s.config.Workers))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make([]*ast.ParseResult, 0, len(files))
	var ferrs []FileError

	for _, rel := range files {
		rel := rel
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			result, err := s.parseFile(gctx, root, rel)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ferrs = append(ferrs, fileError(rel, err))
				return nil
			}
			results = append(results, result)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].FilePath < results[j].FilePath
	})
	return results, ferrs
}

func (s *Session) parseFile(ctx context.Context, root, rel string) (*ast.ParseResult, error) {
	parser, err := s.registry.ForFile(rel)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}

	if s.config.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FileTimeout)
		defer cancel()
	}
	return parser.Parse(ctx, content, rel)
}

// resolveReferences resolves raw reference edges against the project-wide
// name index and upserts the result. Returns the number of edges written.
func (s *Session) resolveReferences(ctx context.Context, projectID string, refs []normalize.RawRelation) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	entities, err := s.store.ListEntities(ctx, projectID, graph.EntityFilter{})
	if err != nil {
		return 0, err
	}
	idx := normalize.BuildNameIndex(entities)
	relations := idx.Resolve(projectID, refs)
	if err := s.store.UpsertRelations(ctx, projectID, relations); err != nil {
		return 0, fmt.Errorf("commit resolved relations: %w", err)
	}
	return len(relations), nil
}

// qualityPass runs all detectors, appends their issues, and writes a debt
// snapshot.
func (s *Session) qualityPass(ctx context.Context, projectID string) (int, *graph.DebtSnapshot, error) {
	var issues []graph.QualityIssue

	cycles, err := s.analyzer.DetectCycles(ctx, projectID)
	if err != nil {
		return 0, nil, fmt.Errorf("detect cycles: %w", err)
	}
	issues = append(issues, cycles...)

	oversized, err := s.analyzer.DetectOversized(ctx, projectID)
	if err != nil {
		return 0, nil, fmt.Errorf("detect oversized: %w", err)
	}
	issues = append(issues, oversized...)

	coupling, err := s.analyzer.DetectCoupling(ctx, projectID)
	if err != nil {
		return 0, nil, fmt.Errorf("detect coupling: %w", err)
	}
	issues = append(issues, coupling...)

	if err := s.store.AppendIssues(ctx, projectID, issues); err != nil {
		return 0, nil, fmt.Errorf("append issues: %w", err)
	}

	snap, err := s.analyzer.ComputeDebtScore(ctx, projectID, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("compute debt: %w", err)
	}
	if err := s.store.AppendSnapshot(ctx, projectID, *snap); err != nil {
		return 0, nil, fmt.Errorf("append snapshot: %w", err)
	}
	return len(issues), snap, nil
}

func fileError(path string, err error) FileError {
	return FileError{FilePath: path, Err: err, Message: err.Error()}
}
