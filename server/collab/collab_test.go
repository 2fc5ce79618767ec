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

package collab_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/api/types/events"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/collab"
	"github.com/coedit-team/coedit/server/engine"
	"github.com/coedit-team/coedit/server/presence"
	"github.com/coedit-team/coedit/server/profiling/prometheus"
)

// knownUsers is a UserDirectory stub with a fixed membership.
type knownUsers map[string]bool

func (d knownUsers) Exists(_ context.Context, userID string) (bool, error) {
	return d[userID], nil
}

func setupTestGateway(t *testing.T) (*collab.Gateway, *backend.Backend) {
	t.Helper()

	conf := &backend.Config{
		OpWindowSize:              100,
		OpDedupCacheSize:          1000,
		OpDedupCacheTTL:           "10m",
		RevisionMaxRetries:        3,
		RevisionRetryBaseInterval: "10ms",
		RevisionQueueSize:         64,
		HistoryRetention:          "0s",
		DocSubscriptionLimit:      10,
		DefaultPageSize:           20,
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

	return collab.NewGateway(
		be,
		eng,
		tracker,
		collab.NewDocAuthorizer(be),
		knownUsers{"user-a": true, "user-b": true, "user-c": true},
	), be
}

func createTestDoc(t *testing.T, be *backend.Backend, isPublic bool) *database.DocInfo {
	t.Helper()

	info, err := be.DB.CreateDocInfo(context.Background(), "notes", "user-a", "", isPublic)
	assert.NoError(t, err)
	return info
}

func TestJoinLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("join returns current state and active users test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		state, sub, err := gw.Join(ctx, doc.ID, "user-a")
		assert.NoError(t, err)
		assert.NotNil(t, sub)
		assert.Equal(t, int64(0), state.Version)
		assert.Equal(t, []string{"user-a"}, state.ActiveUsers)

		gw.Leave(ctx, doc.ID, "user-a", sub)
	})

	t.Run("join is denied on a private document test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, _, err := gw.Join(ctx, doc.ID, "user-b")
		assert.Equal(t, errors.CodeOf(collab.ErrReadDenied), errors.CodeOf(err))
	})

	t.Run("anyone can join a public document test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, true)

		state, sub, err := gw.Join(ctx, doc.ID, "user-b")
		assert.NoError(t, err)
		assert.Equal(t, []string{"user-b"}, state.ActiveUsers)
		gw.Leave(ctx, doc.ID, "user-b", sub)
	})

	t.Run("presence events reach the other participants test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, true)

		_, subA, err := gw.Join(ctx, doc.ID, "user-a")
		assert.NoError(t, err)
		defer gw.Leave(ctx, doc.ID, "user-a", subA)

		_, subB, err := gw.Join(ctx, doc.ID, "user-b")
		assert.NoError(t, err)

		select {
		case event := <-subA.Events():
			assert.Equal(t, events.DocUserJoined, event.Type)
			assert.Equal(t, "user-b", event.UserID)
		case <-time.After(time.Second):
			assert.Fail(t, "timeout waiting for join event")
		}

		gw.Leave(ctx, doc.ID, "user-b", subB)
		select {
		case event := <-subA.Events():
			assert.Equal(t, events.DocUserLeft, event.Type)
			assert.Equal(t, "user-b", event.UserID)
		case <-time.After(time.Second):
			assert.Fail(t, "timeout waiting for leave event")
		}
	})
}

func TestSubmitOperation(t *testing.T) {
	ctx := context.Background()

	newInsert := func(id, content string, position int, base int64, author string) types.Operation {
		return types.Operation{
			ID:          id,
			Kind:        types.OpInsert,
			Position:    position,
			Content:     content,
			AuthorID:    author,
			BaseVersion: base,
			SubmittedAt: time.Now(),
		}
	}

	t.Run("present collaborator can edit test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, sub, err := gw.Join(ctx, doc.ID, "user-a")
		assert.NoError(t, err)
		defer gw.Leave(ctx, doc.ID, "user-a", sub)

		result, err := gw.SubmitOperation(ctx, doc.ID, "user-a", newInsert("op-1", "Hello", 0, 0, "user-a"))
		assert.NoError(t, err)
		assert.Equal(t, int64(1), result.Accepted.Version)
		assert.Equal(t, "Hello", result.Content)

		// The publisher does not receive its own event.
		select {
		case event := <-sub.Events():
			assert.Fail(t, "unexpected event", "%+v", event)
		default:
		}
	})

	t.Run("accepted operations reach the other participants test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, true)

		_, subA, err := gw.Join(ctx, doc.ID, "user-a")
		assert.NoError(t, err)
		defer gw.Leave(ctx, doc.ID, "user-a", subA)

		_, subB, err := gw.Join(ctx, doc.ID, "user-b")
		assert.NoError(t, err)
		defer gw.Leave(ctx, doc.ID, "user-b", subB)
		<-subA.Events() // user-b joined

		_, err = gw.SubmitOperation(ctx, doc.ID, "user-a", newInsert("op-1", "Hi", 0, 0, "user-a"))
		assert.NoError(t, err)

		select {
		case event := <-subB.Events():
			assert.Equal(t, events.DocOperationAccepted, event.Type)
			assert.NotNil(t, event.Operation)
			assert.Equal(t, int64(1), event.Operation.Version)
		case <-time.After(time.Second):
			assert.Fail(t, "timeout waiting for operation event")
		}
	})

	t.Run("submitting without joining is rejected test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, err := gw.SubmitOperation(ctx, doc.ID, "user-a", newInsert("op-1", "x", 0, 0, "user-a"))
		assert.ErrorIs(t, err, collab.ErrNotJoined)
	})

	t.Run("reader of a public document cannot edit test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, true)

		_, sub, err := gw.Join(ctx, doc.ID, "user-b")
		assert.NoError(t, err)
		defer gw.Leave(ctx, doc.ID, "user-b", sub)

		_, err = gw.SubmitOperation(ctx, doc.ID, "user-b", newInsert("op-1", "x", 0, 0, "user-b"))
		assert.Equal(t, errors.CodeOf(collab.ErrWriteDenied), errors.CodeOf(err))
	})

	t.Run("author must match the submitting user test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, sub, err := gw.Join(ctx, doc.ID, "user-a")
		assert.NoError(t, err)
		defer gw.Leave(ctx, doc.ID, "user-a", sub)

		_, err = gw.SubmitOperation(ctx, doc.ID, "user-a", newInsert("op-1", "x", 0, 0, "user-b"))
		assert.ErrorIs(t, err, collab.ErrAuthorMismatch)
	})
}

func TestCollaborators(t *testing.T) {
	ctx := context.Background()

	t.Run("owner grants and revokes edit access test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		summary, err := gw.AddCollaborator(ctx, doc.ID, "user-a", "user-b")
		assert.NoError(t, err)
		assert.Contains(t, summary.Collaborators, "user-b")

		_, sub, err := gw.Join(ctx, doc.ID, "user-b")
		assert.NoError(t, err)
		_, err = gw.SubmitOperation(ctx, doc.ID, "user-b", types.Operation{
			ID:          "op-1",
			Kind:        types.OpInsert,
			Content:     "Hi",
			AuthorID:    "user-b",
			SubmittedAt: time.Now(),
		})
		assert.NoError(t, err)
		gw.Leave(ctx, doc.ID, "user-b", sub)

		summary, err = gw.RemoveCollaborator(ctx, doc.ID, "user-a", "user-b")
		assert.NoError(t, err)
		assert.NotContains(t, summary.Collaborators, "user-b")
	})

	t.Run("only the owner manages collaborators test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, err := gw.AddCollaborator(ctx, doc.ID, "user-a", "user-b")
		assert.NoError(t, err)

		_, err = gw.AddCollaborator(ctx, doc.ID, "user-b", "user-c")
		assert.Equal(t, errors.CodeOf(collab.ErrManageDenied), errors.CodeOf(err))
	})

	t.Run("owner removes the document test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, true)

		_, sub, err := gw.Join(ctx, doc.ID, "user-b")
		assert.NoError(t, err)
		defer sub.Close()

		err = gw.RemoveDocument(ctx, doc.ID, "user-b")
		assert.Equal(t, errors.CodeOf(collab.ErrManageDenied), errors.CodeOf(err))

		assert.NoError(t, gw.RemoveDocument(ctx, doc.ID, "user-a"))
		_, _, err = gw.Join(ctx, doc.ID, "user-a")
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
	})

	t.Run("unknown users cannot be added test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, err := gw.AddCollaborator(ctx, doc.ID, "user-a", "user-z")
		assert.ErrorIs(t, err, collab.ErrUnknownUser)
	})
}

func TestHistoryAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("history requires read permission test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, false)

		_, err := gw.GetHistory(ctx, doc.ID, "user-b", types.Paging{}, true)
		assert.Equal(t, errors.CodeOf(collab.ErrReadDenied), errors.CodeOf(err))

		_, err = gw.GetHistory(ctx, doc.ID, "user-a", types.Paging{}, true)
		assert.NoError(t, err)
	})

	t.Run("rollback requires write permission test", func(t *testing.T) {
		gw, be := setupTestGateway(t)
		doc := createTestDoc(t, be, true)

		_, err := gw.Rollback(ctx, doc.ID, "user-b", 1, "")
		assert.Equal(t, errors.CodeOf(collab.ErrWriteDenied), errors.CodeOf(err))
	})
}
