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

// Package memory implements the database interface using in-memory database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	gotime "time"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/xid"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// CreateDocInfo creates a new document with version 0 and empty content.
func (d *DB) CreateDocInfo(
	_ context.Context,
	title string,
	ownerID string,
	roomID string,
	isPublic bool,
) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	now := gotime.Now()
	info := &database.DocInfo{
		ID:            xid.New().String(),
		Title:         title,
		Content:       "",
		Version:       0,
		OwnerID:       ownerID,
		RoomID:        roomID,
		Collaborators: []string{ownerID},
		IsPublic:      isPublic,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindDocInfoByID returns the document of the given id.
func (d *DB) FindDocInfoByID(_ context.Context, docID string) (*database.DocInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	return d.findDocInfo(txn, docID)
}

// FindDocInfosByOwner returns the documents owned by the given user,
// newest-first, with the total count.
func (d *DB) FindDocInfosByOwner(
	_ context.Context,
	ownerID string,
	paging types.Paging,
) ([]*database.DocInfo, int, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblDocuments, "owner_id", ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("find documents by owner: %w", err)
	}

	var infos []*database.DocInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		infos = append(infos, raw.(*database.DocInfo))
	}
	slices.SortFunc(infos, func(a, b *database.DocInfo) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	total := len(infos)
	infos = pageOf(infos, paging)

	copied := make([]*database.DocInfo, 0, len(infos))
	for _, info := range infos {
		copied = append(copied, info.DeepCopy())
	}
	return copied, total, nil
}

// UpdateDocContent replaces the document content, advancing the version.
func (d *DB) UpdateDocContent(
	_ context.Context,
	docID string,
	content string,
	version int64,
	updatedAt gotime.Time,
) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, docID)
	if err != nil {
		return nil, err
	}
	if version != info.Version+1 {
		return nil, fmt.Errorf(
			"update %s to version %d from %d: %w",
			docID, version, info.Version, database.ErrVersionMismatch,
		)
	}

	info.Content = content
	info.Version = version
	info.UpdatedAt = updatedAt
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// UpdateDocTitle renames the document.
func (d *DB) UpdateDocTitle(_ context.Context, docID string, title string) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, docID)
	if err != nil {
		return nil, err
	}

	info.Title = title
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("update document title: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// AddCollaborator adds the given user to the document's collaborator set.
func (d *DB) AddCollaborator(_ context.Context, docID string, userID string) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, docID)
	if err != nil {
		return nil, err
	}

	if !info.HasCollaborator(userID) {
		info.Collaborators = append(info.Collaborators, userID)
		if err := txn.Insert(tblDocuments, info); err != nil {
			return nil, fmt.Errorf("add collaborator: %w", err)
		}
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// RemoveCollaborator removes the given user from the collaborator set.
func (d *DB) RemoveCollaborator(_ context.Context, docID string, userID string) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, docID)
	if err != nil {
		return nil, err
	}
	if userID == info.OwnerID {
		return nil, fmt.Errorf("remove %s from %s: %w", userID, docID, database.ErrOwnerImmutable)
	}

	if idx := slices.Index(info.Collaborators, userID); idx >= 0 {
		info.Collaborators = slices.Delete(info.Collaborators, idx, idx+1)
		if err := txn.Insert(tblDocuments, info); err != nil {
			return nil, fmt.Errorf("remove collaborator: %w", err)
		}
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// RemoveDocInfo removes the document and all of its revisions.
func (d *DB) RemoveDocInfo(_ context.Context, docID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, docID)
	if err != nil {
		return err
	}

	if _, err := txn.DeleteAll(tblRevisions, "doc_id", docID); err != nil {
		return fmt.Errorf("remove revisions of %s: %w", docID, err)
	}
	if err := txn.Delete(tblDocuments, info); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	txn.Commit()

	return nil
}

// CreateRevisionInfo appends a revision to the document's ledger.
func (d *DB) CreateRevisionInfo(_ context.Context, rev *database.RevisionInfo) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblRevisions, "id", rev.DocID, rev.Version)
	if err != nil {
		return fmt.Errorf("find revision: %w", err)
	}
	if raw != nil {
		return fmt.Errorf(
			"revision %d of %s: %w",
			rev.Version, rev.DocID, database.ErrRevisionAlreadyExists,
		)
	}

	if err := txn.Insert(tblRevisions, rev.DeepCopy()); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	txn.Commit()

	return nil
}

// FindRevisionInfo returns the revision of the given document and version.
func (d *DB) FindRevisionInfo(
	_ context.Context,
	docID string,
	version int64,
) (*database.RevisionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblRevisions, "id", docID, version)
	if err != nil {
		return nil, fmt.Errorf("find revision: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("revision %d of %s: %w", version, docID, database.ErrRevisionNotFound)
	}

	return raw.(*database.RevisionInfo).DeepCopy(), nil
}

// FindLatestRevisionInfo returns the newest revision of the document.
func (d *DB) FindLatestRevisionInfo(_ context.Context, docID string) (*database.RevisionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	infos, err := d.listRevisions(txn, docID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("latest revision of %s: %w", docID, database.ErrRevisionNotFound)
	}

	return infos[len(infos)-1].DeepCopy(), nil
}

// FindRevisionInfosByPaging returns revisions newest-first.
func (d *DB) FindRevisionInfosByPaging(
	_ context.Context,
	docID string,
	paging types.Paging,
	includeSnapshots bool,
) ([]*database.RevisionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	infos, err := d.listRevisions(txn, docID)
	if err != nil {
		return nil, err
	}
	slices.Reverse(infos)

	if !includeSnapshots {
		infos = slices.DeleteFunc(infos, func(info *database.RevisionInfo) bool {
			return info.IsSnapshot
		})
	}
	infos = pageOf(infos, paging)

	copied := make([]*database.RevisionInfo, 0, len(infos))
	for _, info := range infos {
		copied = append(copied, info.DeepCopy())
	}
	return copied, nil
}

// CountRevisionInfos returns the total number of revisions and how many of
// them are snapshots.
func (d *DB) CountRevisionInfos(_ context.Context, docID string) (int, int, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	infos, err := d.listRevisions(txn, docID)
	if err != nil {
		return 0, 0, err
	}

	snapshots := 0
	for _, info := range infos {
		if info.IsSnapshot {
			snapshots++
		}
	}
	return len(infos), snapshots, nil
}

// DeleteRevisionInfo deletes a single revision.
func (d *DB) DeleteRevisionInfo(_ context.Context, docID string, version int64) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblRevisions, "id", docID, version)
	if err != nil {
		return fmt.Errorf("find revision: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("revision %d of %s: %w", version, docID, database.ErrRevisionNotFound)
	}

	if err := txn.Delete(tblRevisions, raw); err != nil {
		return fmt.Errorf("delete revision: %w", err)
	}
	txn.Commit()

	return nil
}

// SearchRevisionInfos returns revisions whose content contains the query,
// newest-first.
func (d *DB) SearchRevisionInfos(
	_ context.Context,
	docID string,
	query string,
	paging types.Paging,
) (*types.SearchResult[*database.RevisionInfo], error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	infos, err := d.listRevisions(txn, docID)
	if err != nil {
		return nil, err
	}
	slices.Reverse(infos)

	var matched []*database.RevisionInfo
	for _, info := range infos {
		if strings.Contains(info.Content, query) {
			matched = append(matched, info)
		}
	}

	total := len(matched)
	matched = pageOf(matched, paging)

	copied := make([]*database.RevisionInfo, 0, len(matched))
	for _, info := range matched {
		copied = append(copied, info.DeepCopy())
	}
	return &types.SearchResult[*database.RevisionInfo]{
		TotalCount: total,
		Elements:   copied,
	}, nil
}

// PruneRevisionInfos removes old auto-revisions beyond maxVersions or older
// than retention. Snapshots and the newest revision are never pruned.
func (d *DB) PruneRevisionInfos(
	_ context.Context,
	docID string,
	maxVersions int,
	retention gotime.Duration,
) (int, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	infos, err := d.listRevisions(txn, docID)
	if err != nil {
		return 0, err
	}
	if len(infos) == 0 {
		return 0, nil
	}

	latest := infos[len(infos)-1]
	cutoff := gotime.Time{}
	if retention > 0 {
		cutoff = gotime.Now().Add(-retention)
	}

	kept := len(infos)
	pruned := 0
	for _, info := range infos {
		if info.IsSnapshot || info.Version == latest.Version {
			continue
		}

		overCount := maxVersions > 0 && kept > maxVersions
		overAge := retention > 0 && info.CreatedAt.Before(cutoff)
		if !overCount && !overAge {
			continue
		}

		if err := txn.Delete(tblRevisions, info); err != nil {
			return 0, fmt.Errorf("prune revision: %w", err)
		}
		kept--
		pruned++
	}
	txn.Commit()

	return pruned, nil
}

func (d *DB) findDocInfo(txn *memdb.Txn, docID string) (*database.DocInfo, error) {
	raw, err := txn.First(tblDocuments, "id", docID)
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", docID, database.ErrDocumentNotFound)
	}

	return raw.(*database.DocInfo).DeepCopy(), nil
}

// listRevisions returns the document's revisions in ascending version order.
func (d *DB) listRevisions(txn *memdb.Txn, docID string) ([]*database.RevisionInfo, error) {
	it, err := txn.Get(tblRevisions, "doc_id", docID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	var infos []*database.RevisionInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		infos = append(infos, raw.(*database.RevisionInfo))
	}
	slices.SortFunc(infos, func(a, b *database.RevisionInfo) int {
		return int(a.Version - b.Version)
	})
	return infos, nil
}

func pageOf[T any](elems []T, paging types.Paging) []T {
	offset := paging.Offset()
	if offset >= len(elems) {
		return nil
	}
	end := offset + paging.PageSize
	if paging.PageSize <= 0 || end > len(elems) {
		end = len(elems)
	}
	return elems[offset:end]
}
