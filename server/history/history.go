/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package history provides the version ledger of documents: durable
// revision history, diffing, snapshotting, rollback and search.
package history

import (
	"context"
	"fmt"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/internal/validation"
	"github.com/coedit-team/coedit/pkg/diff"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/engine"
)

var (
	// ErrSnapshotImmutable is returned when trying to delete a snapshot
	// revision.
	ErrSnapshotImmutable = errors.FailedPrecond("snapshots cannot be deleted").WithCode("ErrSnapshotImmutable")

	// ErrCurrentImmutable is returned when trying to delete the revision the
	// document currently points at.
	ErrCurrentImmutable = errors.FailedPrecond("the current revision cannot be deleted").WithCode("ErrCurrentImmutable")

	// ErrInvalidSnapshotName is returned when a snapshot name is empty or
	// contains characters outside the slug alphabet.
	ErrInvalidSnapshotName = errors.InvalidArgument("invalid snapshot name").WithCode("ErrInvalidSnapshotName")
)

// GetHistory returns the document's revisions newest-first with totals, the
// collaborator set, and a compact timeline of the returned page.
func GetHistory(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	paging types.Paging,
	includeSnapshots bool,
) (*types.HistoryResult, error) {
	info, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	paging = paging.Normalized(be.Config.DefaultPageSize)
	infos, err := be.DB.FindRevisionInfosByPaging(ctx, docID, paging, includeSnapshots)
	if err != nil {
		return nil, err
	}

	total, snapshots, err := be.DB.CountRevisionInfos(ctx, docID)
	if err != nil {
		return nil, err
	}

	result := &types.HistoryResult{
		Revisions:     make([]*types.RevisionRecord, 0, len(infos)),
		Total:         total,
		Snapshots:     snapshots,
		Collaborators: info.Collaborators,
		Timeline:      make([]types.TimelineEntry, 0, len(infos)),
	}
	for _, rev := range infos {
		result.Revisions = append(result.Revisions, rev.ToRecord())
		result.Timeline = append(result.Timeline, rev.ToTimelineEntry())
	}
	return result, nil
}

// GetVersion returns a single revision of the document.
func GetVersion(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	version int64,
) (*types.RevisionRecord, error) {
	rev, err := be.DB.FindRevisionInfo(ctx, docID, version)
	if err != nil {
		return nil, err
	}
	return rev.ToRecord(), nil
}

// Compare returns the line-based difference between two versions. Version 0
// denotes the empty document before the first revision.
func Compare(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	fromVersion int64,
	toVersion int64,
) (*types.DiffResult, error) {
	from, err := contentAt(ctx, be, docID, fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := contentAt(ctx, be, docID, toVersion)
	if err != nil {
		return nil, err
	}

	result := diff.Compare(from, to)
	return &result, nil
}

// Rollback re-submits the target revision's content as a brand-new version.
// History is never rewritten: the target revision stays untouched and the
// document gains a new, higher version carrying its content.
func Rollback(
	ctx context.Context,
	be *backend.Backend,
	eng *engine.Engine,
	docID string,
	targetVersion int64,
	userID string,
	reason string,
) (*types.RevisionRecord, error) {
	target, err := be.DB.FindRevisionInfo(ctx, docID, targetVersion)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("rollback to version %d", targetVersion)
	if reason != "" {
		description += ": " + reason
	}

	rev, err := eng.Commit(ctx, docID, userID, target.Content, func(rev *database.RevisionInfo) {
		rev.Tags = []string{"rollback"}
		rev.SnapshotDescription = description
	})
	if err != nil {
		return nil, err
	}
	return rev.ToRecord(), nil
}

// CreateSnapshot captures the current document content as an immutable,
// named checkpoint. Snapshots are exempt from pruning.
func CreateSnapshot(
	ctx context.Context,
	be *backend.Backend,
	eng *engine.Engine,
	docID string,
	name string,
	description string,
	userID string,
	tags []string,
) (*types.RevisionRecord, error) {
	if err := validation.ValidateValue(name, "required,slug"); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidSnapshotName)
	}

	rev, err := eng.Checkpoint(ctx, docID, userID, func(rev *database.RevisionInfo) {
		rev.IsSnapshot = true
		rev.SnapshotName = name
		rev.SnapshotDescription = description
		rev.Tags = tags
	})
	if err != nil {
		return nil, err
	}
	return rev.ToRecord(), nil
}

// DeleteVersion removes a single revision. Snapshots and the current
// revision are immutable and rejected.
func DeleteVersion(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	version int64,
) error {
	rev, err := be.DB.FindRevisionInfo(ctx, docID, version)
	if err != nil {
		return err
	}
	if rev.IsSnapshot {
		return fmt.Errorf("revision %d of %s: %w", version, docID, ErrSnapshotImmutable)
	}

	info, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return err
	}
	if info.Version == version {
		return fmt.Errorf("revision %d of %s: %w", version, docID, ErrCurrentImmutable)
	}

	return be.DB.DeleteRevisionInfo(ctx, docID, version)
}

// Search returns revisions whose content contains the query, newest-first.
func Search(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	query string,
	paging types.Paging,
) (*types.SearchResult[*types.RevisionRecord], error) {
	if _, err := be.DB.FindDocInfoByID(ctx, docID); err != nil {
		return nil, err
	}

	paging = paging.Normalized(be.Config.DefaultPageSize)
	result, err := be.DB.SearchRevisionInfos(ctx, docID, query, paging)
	if err != nil {
		return nil, err
	}

	records := make([]*types.RevisionRecord, 0, len(result.Elements))
	for _, rev := range result.Elements {
		records = append(records, rev.ToRecord())
	}
	return &types.SearchResult[*types.RevisionRecord]{
		TotalCount: result.TotalCount,
		Elements:   records,
	}, nil
}

func contentAt(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	version int64,
) (string, error) {
	if version == 0 {
		return "", nil
	}

	rev, err := be.DB.FindRevisionInfo(ctx, docID, version)
	if err != nil {
		return "", err
	}
	return rev.Content, nil
}
