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

import "errors"

var (
	// ErrEntityNotFound indicates the requested entity does not exist in
	// the project's graph.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrIssueNotFound indicates the requested quality issue does not exist.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrProjectMismatch indicates a record's ProjectID disagrees with the
	// project scope of the operation.
	ErrProjectMismatch = errors.New("record project does not match operation project")

	// ErrBatchFailed indicates a write batch could not be committed after
	// retry. No part of the batch was applied.
	ErrBatchFailed = errors.New("write batch failed")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidEntity indicates an entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRelation indicates a relation failed validation.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrInvalidIssue indicates a quality issue failed validation.
	ErrInvalidIssue = errors.New("invalid issue")
)
