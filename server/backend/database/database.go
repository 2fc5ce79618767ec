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

// Package database provides the persistence interface for documents and
// their revision history.
package database

import (
	"context"
	gotime "time"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/pkg/errors"
)

var (
	// ErrDocumentNotFound is returned when the document could not be found.
	ErrDocumentNotFound = errors.NotFound("document not found").WithCode("ErrDocumentNotFound")

	// ErrRevisionNotFound is returned when the revision could not be found.
	ErrRevisionNotFound = errors.NotFound("revision not found").WithCode("ErrRevisionNotFound")

	// ErrRevisionAlreadyExists is returned when a revision with the same
	// version already exists for the document. Revisions are immutable once
	// written and are never overwritten.
	ErrRevisionAlreadyExists = errors.AlreadyExists("revision already exists").WithCode("ErrRevisionAlreadyExists")

	// ErrVersionMismatch is returned when a content update does not advance
	// the stored version by exactly one.
	ErrVersionMismatch = errors.FailedPrecond("document version mismatch").WithCode("ErrVersionMismatch")

	// ErrOwnerImmutable is returned when trying to remove the owner from the
	// collaborator set.
	ErrOwnerImmutable = errors.FailedPrecond("owner cannot be removed from collaborators").WithCode("ErrOwnerImmutable")
)

// Database is the persistence backend for documents and revisions. It offers
// create/read/update by id, append-only revision inserts and paginated
// queries; no cross-document transactional guarantees are required.
type Database interface {
	// Close closes all resources of this database.
	Close() error

	// CreateDocInfo creates a new document with version 0 and empty content.
	CreateDocInfo(
		ctx context.Context,
		title string,
		ownerID string,
		roomID string,
		isPublic bool,
	) (*DocInfo, error)

	// FindDocInfoByID returns the document of the given id.
	FindDocInfoByID(ctx context.Context, docID string) (*DocInfo, error)

	// FindDocInfosByOwner returns the documents owned by the given user,
	// newest-first, with the total count.
	FindDocInfosByOwner(
		ctx context.Context,
		ownerID string,
		paging types.Paging,
	) ([]*DocInfo, int, error)

	// UpdateDocContent replaces the document content, advancing the version.
	// The given version must be exactly one greater than the stored one;
	// otherwise ErrVersionMismatch is returned.
	UpdateDocContent(
		ctx context.Context,
		docID string,
		content string,
		version int64,
		updatedAt gotime.Time,
	) (*DocInfo, error)

	// UpdateDocTitle renames the document.
	UpdateDocTitle(ctx context.Context, docID string, title string) (*DocInfo, error)

	// AddCollaborator adds the given user to the document's collaborator set.
	AddCollaborator(ctx context.Context, docID string, userID string) (*DocInfo, error)

	// RemoveCollaborator removes the given user from the collaborator set.
	// The owner is always a collaborator and cannot be removed.
	RemoveCollaborator(ctx context.Context, docID string, userID string) (*DocInfo, error)

	// RemoveDocInfo removes the document and all of its revisions.
	RemoveDocInfo(ctx context.Context, docID string) error

	// CreateRevisionInfo appends a revision. Revisions are append-only:
	// writing a (document, version) pair that already exists is rejected
	// with ErrRevisionAlreadyExists.
	CreateRevisionInfo(ctx context.Context, rev *RevisionInfo) error

	// FindRevisionInfo returns the revision of the given document and version.
	FindRevisionInfo(
		ctx context.Context,
		docID string,
		version int64,
	) (*RevisionInfo, error)

	// FindLatestRevisionInfo returns the newest revision of the document.
	FindLatestRevisionInfo(ctx context.Context, docID string) (*RevisionInfo, error)

	// FindRevisionInfosByPaging returns revisions newest-first. When
	// includeSnapshots is false, named snapshot checkpoints are filtered out
	// of the listing.
	FindRevisionInfosByPaging(
		ctx context.Context,
		docID string,
		paging types.Paging,
		includeSnapshots bool,
	) ([]*RevisionInfo, error)

	// CountRevisionInfos returns the total number of revisions and how many
	// of them are snapshots.
	CountRevisionInfos(ctx context.Context, docID string) (int, int, error)

	// DeleteRevisionInfo deletes a single revision. Policy checks such as
	// snapshot protection live above this layer.
	DeleteRevisionInfo(ctx context.Context, docID string, version int64) error

	// SearchRevisionInfos returns revisions whose content contains the
	// query, newest-first.
	SearchRevisionInfos(
		ctx context.Context,
		docID string,
		query string,
		paging types.Paging,
	) (*types.SearchResult[*RevisionInfo], error)

	// PruneRevisionInfos removes old auto-revisions beyond maxVersions or
	// older than retention. It never removes snapshots or the newest
	// revision. A maxVersions of 0 disables the count bound and a retention
	// of 0 disables the age bound. It returns the number of pruned revisions.
	PruneRevisionInfos(
		ctx context.Context,
		docID string,
		maxVersions int,
		retention gotime.Duration,
	) (int, error)
}
