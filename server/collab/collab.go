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

// Package collab provides the collaboration gateway: the facade that a
// transport layer calls into. It owns permission-check ordering, presence
// bookkeeping and event fan-out, and holds no document state of its own.
package collab

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/api/types/events"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/pubsub"
	"github.com/coedit-team/coedit/server/documents"
	"github.com/coedit-team/coedit/server/engine"
	"github.com/coedit-team/coedit/server/history"
	"github.com/coedit-team/coedit/server/presence"
)

var (
	// ErrReadDenied is returned when the user may not read the document.
	ErrReadDenied = errors.PermissionDenied("read permission denied").WithCode("ErrReadDenied")

	// ErrWriteDenied is returned when the user may not edit the document.
	ErrWriteDenied = errors.PermissionDenied("write permission denied").WithCode("ErrWriteDenied")

	// ErrManageDenied is returned when the user may not manage collaborators.
	ErrManageDenied = errors.PermissionDenied("collaborator management denied").WithCode("ErrManageDenied")

	// ErrNotJoined is returned when submitting an operation without being
	// present in the document.
	ErrNotJoined = errors.FailedPrecond("user has not joined the document").WithCode("ErrNotJoined")

	// ErrUnknownUser is returned when adding a collaborator that the user
	// directory does not know.
	ErrUnknownUser = errors.NotFound("user does not exist").WithCode("ErrUnknownUser")

	// ErrAuthorMismatch is returned when an operation's author differs from
	// the submitting user.
	ErrAuthorMismatch = errors.InvalidArgument("operation author differs from the submitting user").WithCode("ErrAuthorMismatch")
)

// AuthorizationProvider decides what a user may do with a document. It is
// an external collaborator of this subsystem.
type AuthorizationProvider interface {
	CanRead(ctx context.Context, userID string, docID string) (bool, error)
	CanWrite(ctx context.Context, userID string, docID string) (bool, error)
	CanManageCollaborators(ctx context.Context, userID string, docID string) (bool, error)
}

// UserDirectory answers whether a user id exists. It is an external
// collaborator of this subsystem.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Gateway translates external calls into engine, presence and history
// operations. Permissions are always checked before any state is touched.
type Gateway struct {
	backend  *backend.Backend
	engine   *engine.Engine
	presence *presence.Tracker
	authz    AuthorizationProvider
	users    UserDirectory
}

// NewGateway creates a new instance of Gateway.
func NewGateway(
	be *backend.Backend,
	eng *engine.Engine,
	tracker *presence.Tracker,
	authz AuthorizationProvider,
	users UserDirectory,
) *Gateway {
	return &Gateway{
		backend:  be,
		engine:   eng,
		presence: tracker,
		authz:    authz,
		users:    users,
	}
}

// Join adds the user to the document's presence and subscribes them to its
// events. It returns the current state and the event subscription.
func (g *Gateway) Join(
	ctx context.Context,
	docID string,
	userID string,
) (*types.DocumentState, *pubsub.Subscription, error) {
	if err := g.checkRead(ctx, userID, docID); err != nil {
		return nil, nil, err
	}

	sub, err := g.backend.PubSub.Subscribe(ctx, userID, docID, g.backend.Config.DocSubscriptionLimit)
	if err != nil {
		return nil, nil, err
	}

	g.presence.Join(docID, userID)

	state, err := g.engine.GetState(ctx, docID)
	if err != nil {
		g.presence.Leave(docID, userID)
		g.backend.PubSub.Unsubscribe(ctx, docID, sub)
		return nil, nil, err
	}

	g.publishPresence(ctx, events.DocUserJoined, docID, userID)
	return state, sub, nil
}

// Leave removes the user from the document's presence. When nobody is left
// the engine's warm cache for the document is evicted. Leaving does not
// cancel in-flight submissions.
func (g *Gateway) Leave(
	ctx context.Context,
	docID string,
	userID string,
	sub *pubsub.Subscription,
) {
	if sub != nil {
		g.backend.PubSub.Unsubscribe(ctx, docID, sub)
	}

	if empty := g.presence.Leave(docID, userID); empty {
		g.engine.Evict(docID)
	}
	g.publishPresence(ctx, events.DocUserLeft, docID, userID)
}

// SubmitOperation submits a single edit on behalf of the user. The user
// must have write permission and be present in the document.
func (g *Gateway) SubmitOperation(
	ctx context.Context,
	docID string,
	userID string,
	op types.Operation,
) (*engine.SubmitResult, error) {
	if op.AuthorID != userID {
		return nil, fmt.Errorf("author %s submitted by %s: %w", op.AuthorID, userID, ErrAuthorMismatch)
	}
	if err := g.checkWrite(ctx, userID, docID); err != nil {
		return nil, err
	}
	if !g.presence.IsPresent(docID, userID) {
		return nil, fmt.Errorf("%s in %s: %w", userID, docID, ErrNotJoined)
	}

	return g.engine.Submit(ctx, docID, op)
}

// GetState returns the document's content, version and active users.
func (g *Gateway) GetState(
	ctx context.Context,
	docID string,
	userID string,
) (*types.DocumentState, error) {
	if err := g.checkRead(ctx, userID, docID); err != nil {
		return nil, err
	}
	return g.engine.GetState(ctx, docID)
}

// GetHistory returns the document's paginated revision history.
func (g *Gateway) GetHistory(
	ctx context.Context,
	docID string,
	userID string,
	paging types.Paging,
	includeSnapshots bool,
) (*types.HistoryResult, error) {
	if err := g.checkRead(ctx, userID, docID); err != nil {
		return nil, err
	}
	return history.GetHistory(ctx, g.backend, docID, paging, includeSnapshots)
}

// GetVersion returns a single revision of the document.
func (g *Gateway) GetVersion(
	ctx context.Context,
	docID string,
	userID string,
	version int64,
) (*types.RevisionRecord, error) {
	if err := g.checkRead(ctx, userID, docID); err != nil {
		return nil, err
	}
	return history.GetVersion(ctx, g.backend, docID, version)
}

// Compare returns the diff between two versions of the document.
func (g *Gateway) Compare(
	ctx context.Context,
	docID string,
	userID string,
	fromVersion int64,
	toVersion int64,
) (*types.DiffResult, error) {
	if err := g.checkRead(ctx, userID, docID); err != nil {
		return nil, err
	}
	return history.Compare(ctx, g.backend, docID, fromVersion, toVersion)
}

// Rollback re-submits a historical revision's content as a new version.
func (g *Gateway) Rollback(
	ctx context.Context,
	docID string,
	userID string,
	targetVersion int64,
	reason string,
) (*types.RevisionRecord, error) {
	if err := g.checkWrite(ctx, userID, docID); err != nil {
		return nil, err
	}
	return history.Rollback(ctx, g.backend, g.engine, docID, targetVersion, userID, reason)
}

// CreateSnapshot captures the current content as a named checkpoint.
func (g *Gateway) CreateSnapshot(
	ctx context.Context,
	docID string,
	userID string,
	name string,
	description string,
	tags []string,
) (*types.RevisionRecord, error) {
	if err := g.checkWrite(ctx, userID, docID); err != nil {
		return nil, err
	}
	return history.CreateSnapshot(ctx, g.backend, g.engine, docID, name, description, userID, tags)
}

// DeleteVersion prunes a single non-snapshot, non-current revision.
func (g *Gateway) DeleteVersion(
	ctx context.Context,
	docID string,
	userID string,
	version int64,
) error {
	if err := g.checkWrite(ctx, userID, docID); err != nil {
		return err
	}
	return history.DeleteVersion(ctx, g.backend, docID, version)
}

// SearchHistory returns revisions whose content contains the query.
func (g *Gateway) SearchHistory(
	ctx context.Context,
	docID string,
	userID string,
	query string,
	paging types.Paging,
) (*types.SearchResult[*types.RevisionRecord], error) {
	if err := g.checkRead(ctx, userID, docID); err != nil {
		return nil, err
	}
	return history.Search(ctx, g.backend, docID, query, paging)
}

// AddCollaborator grants another user edit access to the document.
func (g *Gateway) AddCollaborator(
	ctx context.Context,
	docID string,
	userID string,
	collaboratorID string,
) (*types.DocumentSummary, error) {
	if err := g.checkManage(ctx, userID, docID); err != nil {
		return nil, err
	}

	exists, err := g.users.Exists(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", collaboratorID, ErrUnknownUser)
	}

	return documents.AddCollaborator(ctx, g.backend, docID, collaboratorID)
}

// RemoveCollaborator revokes another user's edit access to the document.
func (g *Gateway) RemoveCollaborator(
	ctx context.Context,
	docID string,
	userID string,
	collaboratorID string,
) (*types.DocumentSummary, error) {
	if err := g.checkManage(ctx, userID, docID); err != nil {
		return nil, err
	}
	return documents.RemoveCollaborator(ctx, g.backend, docID, collaboratorID)
}

// RemoveDocument deletes the document, its revision ledger, its presence
// and its warm state.
func (g *Gateway) RemoveDocument(
	ctx context.Context,
	docID string,
	userID string,
) error {
	if err := g.checkManage(ctx, userID, docID); err != nil {
		return err
	}

	if err := documents.RemoveDocument(ctx, g.backend, docID); err != nil {
		return err
	}
	g.presence.Clear(docID)
	g.engine.Evict(docID)
	return nil
}

func (g *Gateway) checkRead(ctx context.Context, userID, docID string) error {
	ok, err := g.authz.CanRead(ctx, userID, docID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s on %s: %w", userID, docID, ErrReadDenied)
	}
	return nil
}

func (g *Gateway) checkWrite(ctx context.Context, userID, docID string) error {
	ok, err := g.authz.CanWrite(ctx, userID, docID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s on %s: %w", userID, docID, ErrWriteDenied)
	}
	return nil
}

func (g *Gateway) checkManage(ctx context.Context, userID, docID string) error {
	ok, err := g.authz.CanManageCollaborators(ctx, userID, docID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s on %s: %w", userID, docID, ErrManageDenied)
	}
	return nil
}

func (g *Gateway) publishPresence(ctx context.Context, eventType events.DocEventType, docID, userID string) {
	g.backend.PubSub.Publish(ctx, userID, events.DocEvent{
		Type:       eventType,
		DocumentID: docID,
		UserID:     userID,
		OccurredAt: gotime.Now(),
	})
}
