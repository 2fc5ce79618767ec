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

// Package engine provides the authoritative per-document operation engine.
// It decides the order in which operations take effect, transforms stale
// submissions against already-accepted ones, and advances the version
// counter by exactly one per accepted operation.
package engine

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/rs/xid"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/api/types/events"
	"github.com/coedit-team/coedit/pkg/cache"
	"github.com/coedit-team/coedit/pkg/cmap"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/pkg/operations"
	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/backend/messagebroker"
	"github.com/coedit-team/coedit/server/logging"
	"github.com/coedit-team/coedit/server/presence"
)

var (
	// ErrFutureBaseVersion is returned when an operation references a version
	// the server has not produced yet.
	ErrFutureBaseVersion = errors.InvalidArgument("base version is ahead of the document").WithCode("ErrFutureBaseVersion")

	// ErrResyncRequired is returned when an operation's base version lags
	// further behind than the retained operation window.
	ErrResyncRequired = errors.FailedPrecond("client too far behind, resync required").WithCode("ErrResyncRequired")

	// ErrDocumentDegraded is returned when revision persistence for the
	// document has failed permanently and writes are suspended.
	ErrDocumentDegraded = errors.Unavailable("document history persistence is failing").WithCode("ErrDocumentDegraded")
)

const revisionWriterTask = "revision-writer"

// SubmitResult is the outcome of an accepted operation. Accepted carries the
// transformed operation, which is what other collaborators must receive.
type SubmitResult struct {
	Accepted types.AcceptedOperation
	Content  string
}

// Engine owns the registry of active documents. Each document's mutable
// state is mutated under its named lock only, so all mutations of a single
// document are totally ordered while different documents never contend.
type Engine struct {
	backend  *backend.Backend
	presence *presence.Tracker

	docs  *cmap.Map[string, *docEntry]
	dedup *cache.LRUExpireCache[*SubmitResult]
}

// New creates a new instance of Engine.
func New(be *backend.Backend, tracker *presence.Tracker) (*Engine, error) {
	dedup, err := cache.NewLRUExpireCache[*SubmitResult](be.Config.OpDedupCacheSize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		backend:  be,
		presence: tracker,
		docs:     cmap.New[string, *docEntry](),
		dedup:    dedup,
	}, nil
}

// Submit accepts, transforms and applies a single operation. Operations for
// the same document are processed strictly one at a time in arrival order.
func (e *Engine) Submit(
	ctx context.Context,
	docID string,
	op types.Operation,
) (*SubmitResult, error) {
	if err := operations.Validate(op); err != nil {
		e.backend.Metrics.AddOperationRejected("invalid")
		return nil, err
	}

	dedupKey := dedupKeyOf(docID, op.ID)
	if result, ok := e.dedup.Get(dedupKey); ok {
		return result, nil
	}

	lockKey := docLockKey(docID)
	e.backend.Lockers.Lock(lockKey)
	defer func() {
		_ = e.backend.Lockers.Unlock(lockKey)
	}()

	// A duplicate submission may have been accepted while this one waited
	// for the lock.
	if result, ok := e.dedup.Get(dedupKey); ok {
		return result, nil
	}

	entry, err := e.loadEntry(ctx, docID)
	if err != nil {
		return nil, err
	}
	if entry.isDegraded() {
		e.backend.Metrics.AddOperationRejected("degraded")
		return nil, fmt.Errorf("%s: %w", docID, ErrDocumentDegraded)
	}

	if op.BaseVersion > entry.version {
		e.backend.Metrics.AddOperationRejected("future-base-version")
		return nil, fmt.Errorf(
			"base version %d with current %d: %w",
			op.BaseVersion, entry.version, ErrFutureBaseVersion,
		)
	}

	lag := entry.version - op.BaseVersion
	if lag > int64(len(entry.recent)) {
		e.backend.Metrics.AddOperationRejected("resync-required")
		return nil, errors.WithMetadata(
			fmt.Errorf(
				"base version %d with current %d: %w",
				op.BaseVersion, entry.version, ErrResyncRequired,
			),
			map[string]string{"currentVersion": fmt.Sprintf("%d", entry.version)},
		)
	}

	transformed := op
	if lag > 0 {
		for _, applied := range entry.recent[len(entry.recent)-int(lag):] {
			transformed = operations.Transform(transformed, applied.Operation)
		}
		e.backend.Metrics.AddOperationsTransformed(int(lag))
	}

	newContent, err := operations.Apply(entry.content, transformed)
	if err != nil {
		e.backend.Metrics.AddOperationRejected("out-of-bounds")
		return nil, err
	}

	newVersion := entry.version + 1
	now := gotime.Now()
	info, err := e.backend.DB.UpdateDocContent(ctx, docID, newContent, newVersion, now)
	if err != nil {
		e.backend.Metrics.AddOperationRejected("storage")
		return nil, err
	}

	prevContent := entry.content
	accepted := types.AcceptedOperation{Operation: transformed, Version: newVersion}
	entry.apply(info, accepted, e.backend.Config.OpWindowSize)

	rev := database.NewRevisionInfo(
		xid.New().String(),
		docID,
		newVersion,
		prevContent,
		newContent,
		info.Title,
		op.AuthorID,
		now,
	)
	e.enqueueRevision(entry, rev)

	result := &SubmitResult{Accepted: accepted, Content: newContent}
	e.dedup.Add(dedupKey, result, e.backend.Config.ParseOpDedupCacheTTL())
	e.backend.Metrics.AddOperationAccepted(string(op.Kind))

	e.publishAccepted(ctx, docID, accepted)
	return result, nil
}

// Commit replaces the document content wholesale as a single new version.
// Rollback writes go through here so they share the document's serialization
// with regular operations. The decorate callback shapes the resulting
// revision before it is queued.
func (e *Engine) Commit(
	ctx context.Context,
	docID string,
	userID string,
	content string,
	decorate func(rev *database.RevisionInfo),
) (*database.RevisionInfo, error) {
	return e.commit(ctx, docID, userID, func(string) string {
		return content
	}, decorate)
}

// Checkpoint records the current content as a new version without changing
// it. Snapshot writes go through here; the content is captured under the
// document's lock so no concurrent operation can slip in between.
func (e *Engine) Checkpoint(
	ctx context.Context,
	docID string,
	userID string,
	decorate func(rev *database.RevisionInfo),
) (*database.RevisionInfo, error) {
	return e.commit(ctx, docID, userID, func(current string) string {
		return current
	}, decorate)
}

func (e *Engine) commit(
	ctx context.Context,
	docID string,
	userID string,
	contentOf func(current string) string,
	decorate func(rev *database.RevisionInfo),
) (*database.RevisionInfo, error) {
	lockKey := docLockKey(docID)
	e.backend.Lockers.Lock(lockKey)
	defer func() {
		_ = e.backend.Lockers.Unlock(lockKey)
	}()

	entry, err := e.loadEntry(ctx, docID)
	if err != nil {
		return nil, err
	}
	if entry.isDegraded() {
		return nil, fmt.Errorf("%s: %w", docID, ErrDocumentDegraded)
	}

	content := contentOf(entry.content)
	newVersion := entry.version + 1
	now := gotime.Now()
	info, err := e.backend.DB.UpdateDocContent(ctx, docID, content, newVersion, now)
	if err != nil {
		return nil, err
	}

	prevContent := entry.content
	rev := database.NewRevisionInfo(
		xid.New().String(),
		docID,
		newVersion,
		prevContent,
		content,
		info.Title,
		userID,
		now,
	)
	rev.IsAutoSave = false
	if decorate != nil {
		decorate(rev)
	}

	if content == prevContent {
		// Content is unchanged, so stale operations stay valid across this
		// version. A retain placeholder keeps the window contiguous.
		placeholder := types.AcceptedOperation{
			Operation: types.Operation{
				ID:          rev.ID,
				Kind:        types.OpRetain,
				AuthorID:    userID,
				BaseVersion: entry.version,
				SubmittedAt: now,
			},
			Version: newVersion,
		}
		entry.apply(info, placeholder, e.backend.Config.OpWindowSize)
	} else {
		entry.replace(info)
	}

	e.enqueueRevision(entry, rev)
	return rev.DeepCopy(), nil
}

// GetState returns a consistent snapshot of the document's content, version
// and active users. The read does not take the serialization lock.
func (e *Engine) GetState(ctx context.Context, docID string) (*types.DocumentState, error) {
	if entry, ok := e.docs.Get(docID); ok {
		content, version, updatedAt := entry.snapshot()
		return &types.DocumentState{
			Content:      content,
			Version:      version,
			ActiveUsers:  e.presence.ActiveUsers(docID),
			LastModified: updatedAt,
		}, nil
	}

	info, err := e.backend.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &types.DocumentState{
		Content:      info.Content,
		Version:      info.Version,
		ActiveUsers:  e.presence.ActiveUsers(docID),
		LastModified: info.UpdatedAt,
	}, nil
}

// Evict drops the document's warm cache. Queued revision writes are still
// drained by the writer goroutine. It returns false when the document was
// not loaded.
func (e *Engine) Evict(docID string) bool {
	lockKey := docLockKey(docID)
	e.backend.Lockers.Lock(lockKey)
	defer func() {
		_ = e.backend.Lockers.Unlock(lockKey)
	}()

	entry, ok := e.docs.Get(docID)
	if !ok {
		return false
	}

	e.docs.Delete(docID, func(_ *docEntry, exists bool) bool {
		return exists
	})
	close(entry.queue)
	e.backend.Metrics.RemoveActiveDocument()
	if entry.isDegraded() {
		e.backend.Metrics.RemoveDegradedDocument()
	}
	return true
}

// Degraded returns whether the document is currently marked degraded.
func (e *Engine) Degraded(docID string) bool {
	entry, ok := e.docs.Get(docID)
	return ok && entry.isDegraded()
}

// Recover re-syncs the document's in-memory state from storage and clears
// the degraded mark. It is an operator-level action.
func (e *Engine) Recover(ctx context.Context, docID string) error {
	lockKey := docLockKey(docID)
	e.backend.Lockers.Lock(lockKey)
	defer func() {
		_ = e.backend.Lockers.Unlock(lockKey)
	}()

	entry, ok := e.docs.Get(docID)
	if !ok {
		return nil
	}

	info, err := e.backend.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return err
	}

	entry.replace(info)
	if entry.clearDegraded() {
		e.backend.Metrics.RemoveDegradedDocument()
	}
	return nil
}

// loadEntry returns the document's warm cache, loading it from storage on
// first access. The caller must hold the document's lock.
func (e *Engine) loadEntry(ctx context.Context, docID string) (*docEntry, error) {
	if entry, ok := e.docs.Get(docID); ok {
		return entry, nil
	}

	info, err := e.backend.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	entry := newDocEntry(info, e.backend.Config.RevisionQueueSize)
	e.docs.Set(docID, entry)
	e.backend.Metrics.AddActiveDocument()

	e.backend.Background.AttachGoroutine(func(ctx context.Context) {
		e.writeRevisions(ctx, docID, entry)
	}, revisionWriterTask)

	return entry, nil
}

func (e *Engine) enqueueRevision(entry *docEntry, rev *database.RevisionInfo) {
	e.backend.Metrics.AddRevisionQueue()
	entry.queue <- rev
}

// writeRevisions drains the document's revision queue in version order.
// Writes are at-least-once: a failed write is retried with backoff, and a
// duplicate from a redelivery is absorbed by the ledger's uniqueness.
func (e *Engine) writeRevisions(ctx context.Context, docID string, entry *docEntry) {
	for {
		select {
		case rev, ok := <-entry.queue:
			if !ok {
				return
			}
			e.persistRevision(ctx, docID, entry, rev)
			e.backend.Metrics.RemoveRevisionQueue()
		case <-e.backend.Background.Closing():
			// Drain what was queued before shutdown so accepted versions are
			// never missing from the ledger.
			for {
				select {
				case rev, ok := <-entry.queue:
					if !ok {
						return
					}
					e.persistRevision(ctx, docID, entry, rev)
					e.backend.Metrics.RemoveRevisionQueue()
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) persistRevision(
	ctx context.Context,
	docID string,
	entry *docEntry,
	rev *database.RevisionInfo,
) {
	interval := e.backend.Config.ParseRevisionRetryBaseInterval()

	var err error
	for attempt := 0; attempt <= e.backend.Config.RevisionMaxRetries; attempt++ {
		if attempt > 0 {
			gotime.Sleep(interval)
			interval *= 2
			e.backend.Metrics.AddRevisionWriteRetry()
		}

		err = e.backend.DB.CreateRevisionInfo(ctx, rev)
		if err == nil || errors.IsStatus(err, errors.ErrCodeAlreadyExists) {
			e.backend.Metrics.AddRevisionWrite("ok")
			e.produceRevisionEvent(ctx, rev)
			e.pruneRevisions(ctx, docID)
			return
		}

		logging.From(ctx).Warnf(
			"revision write %d of %s failed (attempt %d): %v",
			rev.Version, docID, attempt+1, err,
		)
	}

	e.backend.Metrics.AddRevisionWrite("failed")
	if entry.markDegraded() {
		e.backend.Metrics.AddDegradedDocument()
	}
	logging.From(ctx).Errorf(
		"revision write %d of %s exhausted retries, document degraded: %v",
		rev.Version, docID, err,
	)
}

func (e *Engine) publishAccepted(ctx context.Context, docID string, accepted types.AcceptedOperation) {
	event := events.DocEvent{
		Type:       events.DocOperationAccepted,
		DocumentID: docID,
		UserID:     accepted.AuthorID,
		Operation:  &accepted,
		OccurredAt: gotime.Now(),
	}

	e.backend.PubSub.Publish(ctx, accepted.AuthorID, event)

	if err := e.backend.MsgBroker.DocEvents().Produce(ctx, messagebroker.DocEventMessage{
		DocumentID: docID,
		EventType:  event.Type,
		UserID:     event.UserID,
		Operation:  event.Operation,
		Timestamp:  event.OccurredAt,
	}); err != nil {
		logging.From(ctx).Warnf("produce doc event: %v", err)
	}
}

// pruneRevisions trims auto-revisions beyond the configured bounds. The
// ledger keeps snapshots and the newest revision regardless.
func (e *Engine) pruneRevisions(ctx context.Context, docID string) {
	maxVersions := e.backend.Config.HistoryMaxVersions
	retention := e.backend.Config.ParseHistoryRetention()
	if maxVersions <= 0 && retention <= 0 {
		return
	}

	pruned, err := e.backend.DB.PruneRevisionInfos(ctx, docID, maxVersions, retention)
	if err != nil {
		logging.From(ctx).Warnf("prune revisions of %s: %v", docID, err)
		return
	}
	if pruned > 0 {
		logging.From(ctx).Debugf("pruned %d revisions of %s", pruned, docID)
	}
}

func (e *Engine) produceRevisionEvent(ctx context.Context, rev *database.RevisionInfo) {
	if err := e.backend.MsgBroker.RevisionEvents().Produce(ctx, messagebroker.RevisionEventMessage{
		DocumentID: rev.DocID,
		Version:    rev.Version,
		CreatedBy:  rev.CreatedBy,
		IsSnapshot: rev.IsSnapshot,
		Timestamp:  rev.CreatedAt,
	}); err != nil {
		logging.From(ctx).Warnf("produce revision event: %v", err)
	}
}

func dedupKeyOf(docID, opID string) string {
	return docID + "/" + opID
}

func docLockKey(docID string) string {
	return "doc-" + docID
}
