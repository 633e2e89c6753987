// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout: every record key is "<table>:<project>:<suffix>". The project
// segment is what enforces isolation; no read or write path ever builds a
// key without it.
const (
	entityTable   = "ent"
	relationTable = "rel"
	issueTable    = "iss"
	snapshotTable = "snap"
)

func tableKey(table, projectID, suffix string) []byte {
	return []byte(table + ":" + projectID + ":" + suffix)
}

func tablePrefix(table, projectID string) []byte {
	return []byte(table + ":" + projectID + ":")
}

// snapshotSuffix orders snapshot keys chronologically: badger iterates keys
// in byte order, so the timestamp is zero-padded.
func snapshotSuffix(createdAtMilli int64, id string) string {
	return fmt.Sprintf("%020d:%s", createdAtMilli, id)
}

// Config holds configuration for the graph store.
type Config struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives store and database log output. If nil, the
	// database's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: synchronous writes, persistent.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a configuration for tests: in-memory, async writes.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// storeLogger adapts slog.Logger to badger's Logger interface.
type storeLogger struct {
	logger *slog.Logger
}

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// projectIndex holds the in-memory lookup structures for one project:
// qualified-name resolution, file membership, and adjacency by direction.
// Rebuilt from disk on open, updated after each committed batch.
type projectIndex struct {
	byName map[string]string          // qualified name -> entity ID
	byFile map[string]map[string]bool // file path -> entity ID set
	out    map[string][]Relation      // source entity ID -> edges
	in     map[string][]Relation      // target entity ID -> edges
}

func newProjectIndex() *projectIndex {
	return &projectIndex{
		byName: make(map[string]string),
		byFile: make(map[string]map[string]bool),
		out:    make(map[string][]Relation),
		in:     make(map[string][]Relation),
	}
}

func (idx *projectIndex) addEntity(e Entity) {
	idx.byName[e.QualifiedName] = e.ID
	set, ok := idx.byFile[e.FilePath]
	if !ok {
		set = make(map[string]bool)
		idx.byFile[e.FilePath] = set
	}
	set[e.ID] = true
}

func (idx *projectIndex) removeEntity(e Entity) {
	if idx.byName[e.QualifiedName] == e.ID {
		delete(idx.byName, e.QualifiedName)
	}
	if set, ok := idx.byFile[e.FilePath]; ok {
		delete(set, e.ID)
		if len(set) == 0 {
			delete(idx.byFile, e.FilePath)
		}
	}
}

// upsertRelation replaces any edge with the same ID, then appends.
func (idx *projectIndex) upsertRelation(r Relation) {
	idx.dropRelation(r.ID, r.SourceID, r.TargetID)
	idx.out[r.SourceID] = append(idx.out[r.SourceID], r)
	if r.TargetID != "" {
		idx.in[r.TargetID] = append(idx.in[r.TargetID], r)
	}
}

func (idx *projectIndex) dropRelation(id, sourceID, targetID string) {
	idx.out[sourceID] = dropByID(idx.out[sourceID], id)
	if len(idx.out[sourceID]) == 0 {
		delete(idx.out, sourceID)
	}
	if targetID != "" {
		idx.in[targetID] = dropByID(idx.in[targetID], id)
		if len(idx.in[targetID]) == 0 {
			delete(idx.in, targetID)
		}
	}
}

func dropByID(rels []Relation, id string) []Relation {
	kept := rels[:0]
	for _, r := range rels {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	return kept
}

// Store is the persistent, project-scoped knowledge graph store.
//
// # Description
//
// Store persists entities, relations, quality issues, and debt snapshots in
// an embedded BadgerDB, with in-memory indices for name resolution and
// adjacency traversal. Writes are transactional per batch: a failed batch
// leaves the store exactly as it was. A conflicting commit is retried once
// before the batch is reported as failed.
//
// # Thread Safety
//
// Store is safe for concurrent use. LockProject serializes writers per
// project without blocking readers.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu      sync.RWMutex
	indices map[string]*projectIndex
	closed  bool

	locksMu    sync.Mutex
	writeLocks map[string]*sync.Mutex
}

// Open opens a graph store with the given configuration and rebuilds the
// in-memory indices from disk.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&storeLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open graph database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		db:         db,
		logger:     logger,
		indices:    make(map[string]*projectIndex),
		writeLocks: make(map[string]*sync.Mutex),
	}
	if err := s.rebuildIndices(); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild indices: %w", err)
	}
	return s, nil
}

// OpenInMemory opens an in-memory store for testing.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close closes the store. Further operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

// LockProject acquires the per-project write lock and returns its release
// function. Serializes analysis runs against the same project; reads are
// not blocked.
func (s *Store) LockProject(projectID string) func() {
	s.locksMu.Lock()
	lock, ok := s.writeLocks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.writeLocks[projectID] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// index returns the project's index, creating it if absent.
// Caller must hold s.mu for writing.
func (s *Store) index(projectID string) *projectIndex {
	idx, ok := s.indices[projectID]
	if !ok {
		idx = newProjectIndex()
		s.indices[projectID] = idx
	}
	return idx
}

// emptyIndex is returned for unknown projects on read paths so they see an
// empty graph without mutating the indices map under a read lock.
var emptyIndex = newProjectIndex()

// readIndex returns the project's index without creating one.
// Caller must hold s.mu at least for reading.
func (s *Store) readIndex(projectID string) *projectIndex {
	if idx, ok := s.indices[projectID]; ok {
		return idx
	}
	return emptyIndex
}

// rebuildIndices scans all persisted entities and relations into memory.
func (s *Store) rebuildIndices() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			parts := strings.SplitN(key, ":", 3)
			if len(parts) != 3 {
				continue
			}
			table, projectID := parts[0], parts[1]

			switch table {
			case entityTable:
				var e Entity
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &e)
				}); err != nil {
					return fmt.Errorf("decode entity %s: %w", key, err)
				}
				s.index(projectID).addEntity(e)
			case relationTable:
				var r Relation
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &r)
				}); err != nil {
					return fmt.Errorf("decode relation %s: %w", key, err)
				}
				s.index(projectID).upsertRelation(r)
			}
		}
		return nil
	})
}

// update runs fn in a read-write transaction with one automatic retry on
// commit conflict. A non-nil return means nothing was applied.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		s.logger.Debug("write batch conflict, retrying once")
		err = s.db.Update(fn)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}
	return nil
}

// UpsertEntities writes a batch of entities atomically.
//
// Every entity must validate and carry the operation's projectID. The
// batch is all-or-nothing; on success the in-memory indices are updated.
func (s *Store) UpsertEntities(ctx context.Context, projectID string, entities []Entity) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for i := range entities {
		if entities[i].ProjectID != projectID {
			return fmt.Errorf("%w: entity %s has project %q", ErrProjectMismatch, entities[i].ID, entities[i].ProjectID)
		}
		if err := entities[i].Validate(); err != nil {
			return err
		}
		entities[i].UpdatedAtMilli = now
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		for i := range entities {
			data, err := json.Marshal(&entities[i])
			if err != nil {
				return fmt.Errorf("encode entity %s: %w", entities[i].ID, err)
			}
			if err := txn.Set(tableKey(entityTable, projectID, entities[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.index(projectID)
	for i := range entities {
		idx.addEntity(entities[i])
	}
	s.mu.Unlock()
	return nil
}

// ReplaceEntitiesForFiles atomically removes every entity defined in the
// given files and inserts the replacement batch, in one transaction.
//
// Returns the IDs of entities that were removed and not re-inserted, so
// callers can reconcile relations that pointed at them.
func (s *Store) ReplaceEntitiesForFiles(ctx context.Context, projectID string, files []string, entities []Entity) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	for i := range entities {
		if entities[i].ProjectID != projectID {
			return nil, fmt.Errorf("%w: entity %s has project %q", ErrProjectMismatch, entities[i].ID, entities[i].ProjectID)
		}
		if err := entities[i].Validate(); err != nil {
			return nil, err
		}
		entities[i].UpdatedAtMilli = now
	}

	// Snapshot the IDs currently attributed to the files.
	s.mu.RLock()
	idx := s.readIndex(projectID)
	oldIDs := make([]string, 0)
	for _, file := range files {
		for id := range idx.byFile[file] {
			oldIDs = append(oldIDs, id)
		}
	}
	s.mu.RUnlock()

	var oldEntities []Entity
	err := s.update(ctx, func(txn *badger.Txn) error {
		oldEntities = oldEntities[:0]
		for _, id := range oldIDs {
			key := tableKey(entityTable, projectID, id)
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var e Entity
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode entity %s: %w", id, err)
			}
			oldEntities = append(oldEntities, e)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for i := range entities {
			data, err := json.Marshal(&entities[i])
			if err != nil {
				return fmt.Errorf("encode entity %s: %w", entities[i].ID, err)
			}
			if err := txn.Set(tableKey(entityTable, projectID, entities[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	newIDs := make(map[string]bool, len(entities))
	for i := range entities {
		newIDs[entities[i].ID] = true
	}

	s.mu.Lock()
	idx = s.index(projectID)
	for _, e := range oldEntities {
		idx.removeEntity(e)
	}
	for i := range entities {
		idx.addEntity(entities[i])
	}
	s.mu.Unlock()

	var removed []string
	for _, e := range oldEntities {
		if !newIDs[e.ID] {
			removed = append(removed, e.ID)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// UpsertRelations writes a batch of relations atomically, deduplicating by
// relation ID (deterministic from the dedup key).
func (s *Store) UpsertRelations(ctx context.Context, projectID string, relations []Relation) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for i := range relations {
		if relations[i].ProjectID != projectID {
			return fmt.Errorf("%w: relation %s has project %q", ErrProjectMismatch, relations[i].ID, relations[i].ProjectID)
		}
		if err := relations[i].Validate(); err != nil {
			return err
		}
		relations[i].UpdatedAtMilli = now
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		for i := range relations {
			data, err := json.Marshal(&relations[i])
			if err != nil {
				return fmt.Errorf("encode relation %s: %w", relations[i].ID, err)
			}
			if err := txn.Set(tableKey(relationTable, projectID, relations[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.index(projectID)
	for i := range relations {
		idx.upsertRelation(relations[i])
	}
	s.mu.Unlock()
	return nil
}

// DeleteRelations removes relations by ID. Unknown IDs are ignored.
func (s *Store) DeleteRelations(ctx context.Context, projectID string, ids []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var deleted []Relation
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = deleted[:0]
		for _, id := range ids {
			key := tableKey(relationTable, projectID, id)
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var r Relation
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode relation %s: %w", id, err)
			}
			deleted = append(deleted, r)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.index(projectID)
	for _, r := range deleted {
		idx.dropRelation(r.ID, r.SourceID, r.TargetID)
	}
	s.mu.Unlock()
	return nil
}

// GetEntity returns one entity by ID.
func (s *Store) GetEntity(ctx context.Context, projectID, id string) (*Entity, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var e Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tableKey(entityTable, projectID, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEntityByName resolves a qualified name to its entity.
func (s *Store) GetEntityByName(ctx context.Context, projectID, qualifiedName string) (*Entity, error) {
	s.mu.RLock()
	id, ok := s.readIndex(projectID).byName[qualifiedName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, qualifiedName)
	}
	return s.GetEntity(ctx, projectID, id)
}

// ResolveName returns the entity ID for a qualified name without loading
// the record. ok is false when the name is unknown.
func (s *Store) ResolveName(projectID, qualifiedName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.readIndex(projectID).byName[qualifiedName]
	return id, ok
}

// EntityFilter narrows ListEntities output.
type EntityFilter struct {
	// Kinds keeps only entities of the listed kinds. Empty keeps all.
	Kinds []EntityKind

	// FilePrefix keeps only entities whose FilePath has the prefix.
	FilePrefix string
}

func (f *EntityFilter) match(e *Entity) bool {
	if f.FilePrefix != "" && !strings.HasPrefix(e.FilePath, f.FilePrefix) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// ListEntities returns the project's entities, filtered and sorted by
// qualified name.
func (s *Store) ListEntities(ctx context.Context, projectID string, filter EntityFilter) ([]Entity, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []Entity
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(entityTable, projectID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entity
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			if filter.match(&e) {
				entities = append(entities, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].QualifiedName < entities[j].QualifiedName
	})
	return entities, nil
}

// GetRelations returns the edges touching an entity, filtered by type and
// direction. Served from the in-memory adjacency index.
func (s *Store) GetRelations(ctx context.Context, projectID, entityID string, types []RelationType, dir Direction) ([]Relation, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	typeSet := make(map[RelationType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	keep := func(r Relation) bool {
		return len(typeSet) == 0 || typeSet[r.Type]
	}

	s.mu.RLock()
	idx := s.readIndex(projectID)
	var rels []Relation
	if dir == DirectionOut || dir == DirectionBoth {
		for _, r := range idx.out[entityID] {
			if keep(r) {
				rels = append(rels, r)
			}
		}
	}
	if dir == DirectionIn || dir == DirectionBoth {
		for _, r := range idx.in[entityID] {
			if keep(r) {
				rels = append(rels, r)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// ListRelations returns all of the project's edges, optionally filtered by
// type. Used by whole-graph analyses (cycles, coupling).
func (s *Store) ListRelations(ctx context.Context, projectID string, types []RelationType) ([]Relation, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	typeSet := make(map[RelationType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	s.mu.RLock()
	idx := s.readIndex(projectID)
	var rels []Relation
	for _, edges := range idx.out {
		for _, r := range edges {
			if len(typeSet) == 0 || typeSet[r.Type] {
				rels = append(rels, r)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// RelationsTouching returns every edge whose source or target is one of the
// given entity IDs. Used by the incremental updater to reconcile edges
// around removed entities.
func (s *Store) RelationsTouching(ctx context.Context, projectID string, entityIDs []string) ([]Relation, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	idx := s.readIndex(projectID)
	seen := make(map[string]bool)
	var rels []Relation
	for _, id := range entityIDs {
		for _, r := range idx.out[id] {
			if !seen[r.ID] {
				seen[r.ID] = true
				rels = append(rels, r)
			}
		}
		for _, r := range idx.in[id] {
			if !seen[r.ID] {
				seen[r.ID] = true
				rels = append(rels, r)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// AppendIssues writes a batch of quality issues atomically.
func (s *Store) AppendIssues(ctx context.Context, projectID string, issues []QualityIssue) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for i := range issues {
		if issues[i].ProjectID != projectID {
			return fmt.Errorf("%w: issue %s has project %q", ErrProjectMismatch, issues[i].ID, issues[i].ProjectID)
		}
		if err := issues[i].Validate(); err != nil {
			return err
		}
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		for i := range issues {
			data, err := json.Marshal(&issues[i])
			if err != nil {
				return fmt.Errorf("encode issue %s: %w", issues[i].ID, err)
			}
			if err := txn.Set(tableKey(issueTable, projectID, issues[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// IssueFilter narrows ListIssues output.
type IssueFilter struct {
	// Types keeps only issues of the listed detector types. Empty keeps all.
	Types []string

	// Severities keeps only the listed severities. Empty keeps all.
	Severities []Severity

	// Statuses keeps only the listed lifecycle states. Empty keeps all.
	Statuses []IssueStatus

	// FilePath keeps only issues bound to the exact file.
	FilePath string
}

func (f *IssueFilter) match(q *QualityIssue) bool {
	if f.FilePath != "" && q.FilePath != f.FilePath {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if q.IssueType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Severities) > 0 {
		found := false
		for _, sev := range f.Severities {
			if q.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if q.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ListIssues returns the project's quality issues, filtered, ordered by
// severity (critical first) then creation time.
func (s *Store) ListIssues(ctx context.Context, projectID string, filter IssueFilter) ([]QualityIssue, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var issues []QualityIssue
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(issueTable, projectID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var q QualityIssue
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &q)
			}); err != nil {
				return err
			}
			if filter.match(&q) {
				issues = append(issues, q)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Severity != issues[j].Severity {
			return issues[i].Severity > issues[j].Severity
		}
		return issues[i].CreatedAtMilli < issues[j].CreatedAtMilli
	})
	return issues, nil
}

// UpdateIssueStatus moves an issue to a new lifecycle state.
func (s *Store) UpdateIssueStatus(ctx context.Context, projectID, issueID string, status IssueStatus) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !ValidIssueStatus(status) {
		return fmt.Errorf("%w: bad status %q", ErrInvalidIssue, status)
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		key := tableKey(issueTable, projectID, issueID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
		}
		if err != nil {
			return err
		}
		var q QualityIssue
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &q)
		}); err != nil {
			return err
		}
		q.Status = status
		data, err := json.Marshal(&q)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// ResolveIssue marks an issue resolved.
func (s *Store) ResolveIssue(ctx context.Context, projectID, issueID string) error {
	return s.UpdateIssueStatus(ctx, projectID, issueID, IssueResolved)
}

// IgnoreIssue marks an issue ignored; ignored issues stop counting toward
// debt scores but stay queryable.
func (s *Store) IgnoreIssue(ctx context.Context, projectID, issueID string) error {
	return s.UpdateIssueStatus(ctx, projectID, issueID, IssueIgnored)
}

// AppendSnapshot appends one debt snapshot. Snapshots are never rewritten.
func (s *Store) AppendSnapshot(ctx context.Context, projectID string, snap DebtSnapshot) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if snap.ProjectID != projectID {
		return fmt.Errorf("%w: snapshot %s has project %q", ErrProjectMismatch, snap.ID, snap.ProjectID)
	}
	if snap.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		data, err := json.Marshal(&snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
		}
		suffix := snapshotSuffix(snap.CreatedAtMilli, snap.ID)
		return txn.Set(tableKey(snapshotTable, projectID, suffix), data)
	})
}

// GetDebtTrend returns the project's snapshots in chronological order.
// A positive limit keeps only the most recent entries.
func (s *Store) GetDebtTrend(ctx context.Context, projectID string, limit int) ([]DebtSnapshot, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snaps []DebtSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(snapshotTable, projectID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var snap DebtSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(snaps) > limit {
		snaps = snaps[len(snaps)-limit:]
	}
	return snaps, nil
}

// EntitiesInFile returns the IDs of entities attributed to a file.
func (s *Store) EntitiesInFile(projectID, filePath string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.readIndex(projectID).byFile[filePath]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
