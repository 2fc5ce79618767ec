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

package memory_test

import (
	"context"
	"fmt"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/backend/database/memory"
)

func setupTestDB(t *testing.T) *memory.DB {
	t.Helper()

	db, err := memory.New()
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func appendRevision(
	t *testing.T,
	db *memory.DB,
	docID string,
	version int64,
	prev, content string,
) *database.RevisionInfo {
	t.Helper()

	rev := database.NewRevisionInfo(
		fmt.Sprintf("%s-%d", docID, version),
		docID, version, prev, content,
		"notes", "user-a", gotime.Now(),
	)
	assert.NoError(t, db.CreateRevisionInfo(context.Background(), rev))
	return rev
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find document test", func(t *testing.T) {
		db := setupTestDB(t)

		info, err := db.CreateDocInfo(ctx, "notes", "user-a", "room-1", false)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), info.Version)
		assert.Equal(t, "", info.Content)
		assert.Equal(t, []string{"user-a"}, info.Collaborators)

		found, err := db.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, info.ID, found.ID)
		assert.Equal(t, "notes", found.Title)

		_, err = db.FindDocInfoByID(ctx, "missing")
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
	})

	t.Run("update content advances version by one test", func(t *testing.T) {
		db := setupTestDB(t)

		info, err := db.CreateDocInfo(ctx, "notes", "user-a", "", false)
		assert.NoError(t, err)

		updated, err := db.UpdateDocContent(ctx, info.ID, "Hello", 1, gotime.Now())
		assert.NoError(t, err)
		assert.Equal(t, int64(1), updated.Version)
		assert.Equal(t, "Hello", updated.Content)

		_, err = db.UpdateDocContent(ctx, info.ID, "skip", 3, gotime.Now())
		assert.ErrorIs(t, err, database.ErrVersionMismatch)

		_, err = db.UpdateDocContent(ctx, info.ID, "replay", 1, gotime.Now())
		assert.ErrorIs(t, err, database.ErrVersionMismatch)
	})

	t.Run("collaborator management test", func(t *testing.T) {
		db := setupTestDB(t)

		info, err := db.CreateDocInfo(ctx, "notes", "user-a", "", false)
		assert.NoError(t, err)

		info, err = db.AddCollaborator(ctx, info.ID, "user-b")
		assert.NoError(t, err)
		assert.True(t, info.HasCollaborator("user-b"))

		// adding twice keeps the set unchanged
		info, err = db.AddCollaborator(ctx, info.ID, "user-b")
		assert.NoError(t, err)
		assert.Len(t, info.Collaborators, 2)

		info, err = db.RemoveCollaborator(ctx, info.ID, "user-b")
		assert.NoError(t, err)
		assert.False(t, info.HasCollaborator("user-b"))

		_, err = db.RemoveCollaborator(ctx, info.ID, "user-a")
		assert.ErrorIs(t, err, database.ErrOwnerImmutable)
	})

	t.Run("find documents by owner with paging test", func(t *testing.T) {
		db := setupTestDB(t)

		for i := 0; i < 5; i++ {
			_, err := db.CreateDocInfo(ctx, fmt.Sprintf("doc-%d", i), "user-a", "", false)
			assert.NoError(t, err)
		}
		_, err := db.CreateDocInfo(ctx, "other", "user-b", "", false)
		assert.NoError(t, err)

		infos, total, err := db.FindDocInfosByOwner(ctx, "user-a", types.Paging{Page: 1, PageSize: 3})
		assert.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, infos, 3)

		infos, total, err = db.FindDocInfosByOwner(ctx, "user-a", types.Paging{Page: 2, PageSize: 3})
		assert.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, infos, 2)
	})

	t.Run("remove document removes revisions test", func(t *testing.T) {
		db := setupTestDB(t)

		info, err := db.CreateDocInfo(ctx, "notes", "user-a", "", false)
		assert.NoError(t, err)
		appendRevision(t, db, info.ID, 1, "", "Hello")

		assert.NoError(t, db.RemoveDocInfo(ctx, info.ID))

		_, err = db.FindDocInfoByID(ctx, info.ID)
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
		total, _, err := db.CountRevisionInfos(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, 0, total)
	})
}

func TestRevisions(t *testing.T) {
	ctx := context.Background()

	t.Run("append only ledger test", func(t *testing.T) {
		db := setupTestDB(t)

		appendRevision(t, db, "doc-1", 1, "", "Hello")
		rev := database.NewRevisionInfo(
			"dup", "doc-1", 1, "", "other", "notes", "user-b", gotime.Now(),
		)
		assert.ErrorIs(t, db.CreateRevisionInfo(ctx, rev), database.ErrRevisionAlreadyExists)

		found, err := db.FindRevisionInfo(ctx, "doc-1", 1)
		assert.NoError(t, err)
		assert.Equal(t, "Hello", found.Content)
		assert.Equal(t, "user-a", found.CreatedBy)

		_, err = db.FindRevisionInfo(ctx, "doc-1", 9)
		assert.ErrorIs(t, err, database.ErrRevisionNotFound)
	})

	t.Run("latest and paging newest first test", func(t *testing.T) {
		db := setupTestDB(t)

		prev := ""
		for v := int64(1); v <= 5; v++ {
			content := fmt.Sprintf("line %d", v)
			appendRevision(t, db, "doc-1", v, prev, content)
			prev = content
		}

		latest, err := db.FindLatestRevisionInfo(ctx, "doc-1")
		assert.NoError(t, err)
		assert.Equal(t, int64(5), latest.Version)

		infos, err := db.FindRevisionInfosByPaging(ctx, "doc-1", types.Paging{Page: 1, PageSize: 3}, true)
		assert.NoError(t, err)
		assert.Len(t, infos, 3)
		assert.Equal(t, int64(5), infos[0].Version)
		assert.Equal(t, int64(3), infos[2].Version)

		infos, err = db.FindRevisionInfosByPaging(ctx, "doc-1", types.Paging{Page: 2, PageSize: 3}, true)
		assert.NoError(t, err)
		assert.Len(t, infos, 2)
		assert.Equal(t, int64(1), infos[1].Version)
	})

	t.Run("snapshot filtering and counting test", func(t *testing.T) {
		db := setupTestDB(t)

		appendRevision(t, db, "doc-1", 1, "", "a")
		snap := database.NewRevisionInfo("snap", "doc-1", 2, "a", "b", "notes", "user-a", gotime.Now())
		snap.IsSnapshot = true
		snap.SnapshotName = "draft"
		assert.NoError(t, db.CreateRevisionInfo(ctx, snap))
		appendRevision(t, db, "doc-1", 3, "b", "c")

		total, snapshots, err := db.CountRevisionInfos(ctx, "doc-1")
		assert.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, 1, snapshots)

		infos, err := db.FindRevisionInfosByPaging(ctx, "doc-1", types.Paging{Page: 1, PageSize: 10}, false)
		assert.NoError(t, err)
		assert.Len(t, infos, 2)
		for _, info := range infos {
			assert.False(t, info.IsSnapshot)
		}
	})

	t.Run("search revisions test", func(t *testing.T) {
		db := setupTestDB(t)

		appendRevision(t, db, "doc-1", 1, "", "hello world")
		appendRevision(t, db, "doc-1", 2, "hello world", "goodbye world")
		appendRevision(t, db, "doc-1", 3, "goodbye world", "hello again")

		result, err := db.SearchRevisionInfos(ctx, "doc-1", "hello", types.Paging{Page: 1, PageSize: 10})
		assert.NoError(t, err)
		assert.Equal(t, 2, result.TotalCount)
		assert.Equal(t, int64(3), result.Elements[0].Version)
		assert.Equal(t, int64(1), result.Elements[1].Version)
	})

	t.Run("prune keeps snapshots and newest test", func(t *testing.T) {
		db := setupTestDB(t)

		prev := ""
		for v := int64(1); v <= 6; v++ {
			content := fmt.Sprintf("v%d", v)
			rev := database.NewRevisionInfo(
				fmt.Sprintf("doc-1-%d", v), "doc-1", v, prev, content,
				"notes", "user-a", gotime.Now(),
			)
			if v == 2 {
				rev.IsSnapshot = true
				rev.SnapshotName = "keep"
			}
			assert.NoError(t, db.CreateRevisionInfo(ctx, rev))
			prev = content
		}

		pruned, err := db.PruneRevisionInfos(ctx, "doc-1", 3, 0)
		assert.NoError(t, err)
		assert.Equal(t, 3, pruned)

		total, snapshots, err := db.CountRevisionInfos(ctx, "doc-1")
		assert.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, 1, snapshots)

		_, err = db.FindRevisionInfo(ctx, "doc-1", 2)
		assert.NoError(t, err)
		_, err = db.FindRevisionInfo(ctx, "doc-1", 6)
		assert.NoError(t, err)
	})
}
