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

package engine_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/engine"
	"github.com/coedit-team/coedit/server/presence"
	"github.com/coedit-team/coedit/server/profiling/prometheus"
)

func setupTestEngine(t *testing.T, conf *backend.Config) (*engine.Engine, *backend.Backend) {
	t.Helper()

	if conf == nil {
		conf = &backend.Config{
			OpWindowSize:              100,
			OpDedupCacheSize:          1000,
			OpDedupCacheTTL:           "10m",
			RevisionMaxRetries:        3,
			RevisionRetryBaseInterval: "10ms",
			RevisionQueueSize:         64,
			HistoryMaxVersions:        0,
			HistoryRetention:          "0s",
			DefaultPageSize:           20,
		}
	}

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)

	be, err := backend.New(conf, nil, nil, metrics)
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})

	tracker := presence.NewTracker(metrics)
	eng, err := engine.New(be, tracker)
	assert.NoError(t, err)
	return eng, be
}

func createTestDoc(t *testing.T, be *backend.Backend) *database.DocInfo {
	t.Helper()

	info, err := be.DB.CreateDocInfo(context.Background(), "notes", "user-a", "", false)
	assert.NoError(t, err)
	return info
}

func insertOp(id, content string, position int, baseVersion int64) types.Operation {
	return types.Operation{
		ID:          id,
		Kind:        types.OpInsert,
		Position:    position,
		Content:     content,
		AuthorID:    "user-a",
		BaseVersion: baseVersion,
		SubmittedAt: time.Now(),
	}
}

func deleteOp(id string, position, length int, baseVersion int64) types.Operation {
	return types.Operation{
		ID:          id,
		Kind:        types.OpDelete,
		Position:    position,
		Length:      length,
		AuthorID:    "user-a",
		BaseVersion: baseVersion,
		SubmittedAt: time.Now(),
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("version increments by one per accepted operation test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		for i := 1; i <= 5; i++ {
			result, err := eng.Submit(ctx, doc.ID, insertOp(
				fmt.Sprintf("op-%d", i), "a", i-1, int64(i-1),
			))
			assert.NoError(t, err)
			assert.Equal(t, int64(i), result.Accepted.Version)
		}

		state, err := eng.GetState(ctx, doc.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(5), state.Version)
		assert.Equal(t, "aaaaa", state.Content)
	})

	t.Run("stale delete is transformed test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		result, err := eng.Submit(ctx, doc.ID, insertOp("op-1", "Hello", 0, 0))
		assert.NoError(t, err)
		assert.Equal(t, "Hello", result.Content)

		result, err = eng.Submit(ctx, doc.ID, insertOp("op-2", " World", 5, 1))
		assert.NoError(t, err)
		assert.Equal(t, "Hello World", result.Content)

		// submitted concurrently with op-2, composed against version 1
		result, err = eng.Submit(ctx, doc.ID, deleteOp("op-3", 0, 6, 1))
		assert.NoError(t, err)
		assert.Equal(t, int64(3), result.Accepted.Version)
		assert.Equal(t, "World", result.Content)
	})

	t.Run("concurrent inserts converge test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		// both composed against version 0; the server decides the order
		_, err := eng.Submit(ctx, doc.ID, insertOp("op-x", "x", 0, 0))
		assert.NoError(t, err)
		result, err := eng.Submit(ctx, doc.ID, insertOp("op-y", "y", 0, 0))
		assert.NoError(t, err)

		assert.Equal(t, "xy", result.Content)
		// the broadcast operation carries the transformed position
		assert.Equal(t, 1, result.Accepted.Position)
	})

	t.Run("resubmission returns the original result test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		op := insertOp("op-1", "Hello", 0, 0)
		first, err := eng.Submit(ctx, doc.ID, op)
		assert.NoError(t, err)

		second, err := eng.Submit(ctx, doc.ID, op)
		assert.NoError(t, err)
		assert.Equal(t, first.Accepted.Version, second.Accepted.Version)
		assert.Equal(t, first.Content, second.Content)

		state, err := eng.GetState(ctx, doc.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), state.Version)
	})

	t.Run("future base version is rejected test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		_, err := eng.Submit(ctx, doc.ID, insertOp("op-1", "a", 0, 7))
		assert.ErrorIs(t, err, engine.ErrFutureBaseVersion)
	})

	t.Run("lag beyond the window requires resync test", func(t *testing.T) {
		conf := &backend.Config{
			OpWindowSize:              2,
			OpDedupCacheSize:          1000,
			OpDedupCacheTTL:           "10m",
			RevisionMaxRetries:        3,
			RevisionRetryBaseInterval: "10ms",
			RevisionQueueSize:         64,
			HistoryRetention:          "0s",
			DefaultPageSize:           20,
		}
		eng, be := setupTestEngine(t, conf)
		doc := createTestDoc(t, be)

		for i := 1; i <= 4; i++ {
			_, err := eng.Submit(ctx, doc.ID, insertOp(
				fmt.Sprintf("op-%d", i), "a", 0, int64(i-1),
			))
			assert.NoError(t, err)
		}

		_, err := eng.Submit(ctx, doc.ID, insertOp("op-stale", "b", 0, 0))
		assert.ErrorIs(t, err, engine.ErrResyncRequired)
		assert.Equal(t, "4", errors.Metadata(err)["currentVersion"])
	})

	t.Run("unknown document test", func(t *testing.T) {
		eng, _ := setupTestEngine(t, nil)

		_, err := eng.Submit(ctx, "missing", insertOp("op-1", "a", 0, 0))
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
	})

	t.Run("accepted operations reach the ledger in order test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		for i := 1; i <= 3; i++ {
			_, err := eng.Submit(ctx, doc.ID, insertOp(
				fmt.Sprintf("op-%d", i), "a", 0, int64(i-1),
			))
			assert.NoError(t, err)
		}

		assert.Eventually(t, func() bool {
			total, _, err := be.DB.CountRevisionInfos(ctx, doc.ID)
			return err == nil && total == 3
		}, time.Second, 10*time.Millisecond)

		for v := int64(1); v <= 3; v++ {
			rev, err := be.DB.FindRevisionInfo(ctx, doc.ID, v)
			assert.NoError(t, err)
			assert.True(t, rev.IsAutoSave)
			assert.Equal(t, "user-a", rev.CreatedBy)
		}
	})
}

func TestCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("replace produces a new version test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		_, err := eng.Submit(ctx, doc.ID, insertOp("op-1", "Hello", 0, 0))
		assert.NoError(t, err)

		rev, err := eng.Commit(ctx, doc.ID, "user-b", "rolled back", func(rev *database.RevisionInfo) {
			rev.Tags = []string{"rollback"}
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), rev.Version)
		assert.Equal(t, []string{"rollback"}, rev.Tags)
		assert.False(t, rev.IsAutoSave)

		state, err := eng.GetState(ctx, doc.ID)
		assert.NoError(t, err)
		assert.Equal(t, "rolled back", state.Content)
		assert.Equal(t, int64(2), state.Version)

		// the window was invalidated by the replace
		_, err = eng.Submit(ctx, doc.ID, insertOp("op-stale", "x", 0, 1))
		assert.ErrorIs(t, err, engine.ErrResyncRequired)
	})

	t.Run("snapshot keeps stale operations valid test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		_, err := eng.Submit(ctx, doc.ID, insertOp("op-1", "Hello", 0, 0))
		assert.NoError(t, err)

		rev, err := eng.Checkpoint(ctx, doc.ID, "user-a", func(rev *database.RevisionInfo) {
			rev.IsSnapshot = true
			rev.SnapshotName = "draft"
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), rev.Version)

		// composed against the pre-snapshot version, still accepted
		result, err := eng.Submit(ctx, doc.ID, insertOp("op-2", "!", 5, 1))
		assert.NoError(t, err)
		assert.Equal(t, "Hello!", result.Content)
		assert.Equal(t, int64(3), result.Accepted.Version)
	})
}

// flakyLedgerDB fails revision ledger writes while failing is set and
// delegates everything else to the wrapped database.
type flakyLedgerDB struct {
	database.Database
	failing atomic.Bool
}

func (d *flakyLedgerDB) CreateRevisionInfo(ctx context.Context, rev *database.RevisionInfo) error {
	if d.failing.Load() {
		return errors.Unavailable("ledger unavailable")
	}
	return d.Database.CreateRevisionInfo(ctx, rev)
}

func TestDegradedDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("retry exhaustion degrades the document and recover restores writes test", func(t *testing.T) {
		eng, be := setupTestEngine(t, &backend.Config{
			OpWindowSize:              100,
			OpDedupCacheSize:          1000,
			OpDedupCacheTTL:           "10m",
			RevisionMaxRetries:        2,
			RevisionRetryBaseInterval: "1ms",
			RevisionQueueSize:         64,
			HistoryRetention:          "0s",
			DefaultPageSize:           20,
		})
		doc := createTestDoc(t, be)

		flaky := &flakyLedgerDB{Database: be.DB}
		flaky.failing.Store(true)
		be.DB = flaky

		// The operation is still accepted; only the ledger write fails.
		result, err := eng.Submit(ctx, doc.ID, insertOp("op-1", "Hello", 0, 0))
		assert.NoError(t, err)
		assert.Equal(t, int64(1), result.Accepted.Version)

		assert.Eventually(t, func() bool {
			return eng.Degraded(doc.ID)
		}, time.Second, 10*time.Millisecond)

		_, err = eng.Submit(ctx, doc.ID, insertOp("op-2", "!", 5, 1))
		assert.ErrorIs(t, err, engine.ErrDocumentDegraded)

		// Reads stay available while the document is degraded.
		state, err := eng.GetState(ctx, doc.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Hello", state.Content)

		flaky.failing.Store(false)
		assert.NoError(t, eng.Recover(ctx, doc.ID))
		assert.False(t, eng.Degraded(doc.ID))

		result, err = eng.Submit(ctx, doc.ID, insertOp("op-2", "!", 5, 1))
		assert.NoError(t, err)
		assert.Equal(t, int64(2), result.Accepted.Version)
		assert.Equal(t, "Hello!", result.Content)

		assert.Eventually(t, func() bool {
			_, err := be.DB.FindRevisionInfo(ctx, doc.ID, 2)
			return err == nil
		}, time.Second, 10*time.Millisecond)
	})
}

func TestEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("evicted documents reload from storage test", func(t *testing.T) {
		eng, be := setupTestEngine(t, nil)
		doc := createTestDoc(t, be)

		_, err := eng.Submit(ctx, doc.ID, insertOp("op-1", "Hello", 0, 0))
		assert.NoError(t, err)

		assert.True(t, eng.Evict(doc.ID))
		assert.False(t, eng.Evict(doc.ID))

		state, err := eng.GetState(ctx, doc.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Hello", state.Content)
		assert.Equal(t, int64(1), state.Version)

		result, err := eng.Submit(ctx, doc.ID, insertOp("op-2", "!", 5, 1))
		assert.NoError(t, err)
		assert.Equal(t, int64(2), result.Accepted.Version)
	})
}
