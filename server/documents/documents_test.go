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

package documents_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/documents"
	"github.com/coedit-team/coedit/server/profiling/prometheus"
)

func setupTestBackend(t *testing.T) *backend.Backend {
	t.Helper()

	conf := &backend.Config{
		OpWindowSize:              100,
		OpDedupCacheSize:          1000,
		OpDedupCacheTTL:           "10m",
		RevisionMaxRetries:        3,
		RevisionRetryBaseInterval: "10ms",
		RevisionQueueSize:         64,
		HistoryRetention:          "0s",
		DefaultPageSize:           20,
	}

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)

	be, err := backend.New(conf, nil, nil, metrics)
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})
	return be
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("create and rename test", func(t *testing.T) {
		be := setupTestBackend(t)

		summary, err := documents.CreateDocument(ctx, be, "notes", "user-a", "", false)
		assert.NoError(t, err)
		assert.Equal(t, "notes", summary.Title)
		assert.Equal(t, "user-a", summary.OwnerID)
		assert.Equal(t, int64(0), summary.Version)

		renamed, err := documents.RenameDocument(ctx, be, summary.ID, "meeting-notes")
		assert.NoError(t, err)
		assert.Equal(t, "meeting-notes", renamed.Title)
	})

	t.Run("title validation test", func(t *testing.T) {
		be := setupTestBackend(t)

		_, err := documents.CreateDocument(ctx, be, "", "user-a", "", false)
		assert.ErrorIs(t, err, documents.ErrInvalidTitle)

		_, err = documents.CreateDocument(ctx, be, strings.Repeat("a", 201), "user-a", "", false)
		assert.ErrorIs(t, err, documents.ErrInvalidTitle)

		summary, err := documents.CreateDocument(ctx, be, "notes", "user-a", "", false)
		assert.NoError(t, err)

		_, err = documents.RenameDocument(ctx, be, summary.ID, "")
		assert.ErrorIs(t, err, documents.ErrInvalidTitle)
	})

	t.Run("list by owner newest first test", func(t *testing.T) {
		be := setupTestBackend(t)

		for _, title := range []string{"alpha", "beta", "gamma"} {
			_, err := documents.CreateDocument(ctx, be, title, "user-a", "", false)
			assert.NoError(t, err)
		}
		_, err := documents.CreateDocument(ctx, be, "other", "user-b", "", false)
		assert.NoError(t, err)

		result, err := documents.ListDocumentsByOwner(ctx, be, "user-a", types.Paging{PageSize: 2})
		assert.NoError(t, err)
		assert.Equal(t, 3, result.TotalCount)
		assert.Len(t, result.Elements, 2)
	})

	t.Run("remove document test", func(t *testing.T) {
		be := setupTestBackend(t)

		summary, err := documents.CreateDocument(ctx, be, "notes", "user-a", "", false)
		assert.NoError(t, err)

		assert.NoError(t, documents.RemoveDocument(ctx, be, summary.ID))
		_, err = documents.GetDocument(ctx, be, summary.ID)
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
	})
}
