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

// Package documents provides the document store operations: metadata CRUD
// and collaborator management. Content mutation lives in the engine.
package documents

import (
	"context"
	"fmt"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/internal/validation"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/server/backend"
)

var (
	// ErrInvalidTitle is returned when creating or renaming a document with
	// an empty or oversized title.
	ErrInvalidTitle = errors.InvalidArgument("invalid document title").WithCode("ErrInvalidTitle")
)

func validateTitle(title string) error {
	if err := validation.ValidateValue(title, "required,max=200"); err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidTitle)
	}
	return nil
}

// CreateDocument creates a new document owned by the given user. The owner
// is the first collaborator.
func CreateDocument(
	ctx context.Context,
	be *backend.Backend,
	title string,
	ownerID string,
	roomID string,
	isPublic bool,
) (*types.DocumentSummary, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	info, err := be.DB.CreateDocInfo(ctx, title, ownerID, roomID, isPublic)
	if err != nil {
		return nil, err
	}
	return info.ToSummary(), nil
}

// GetDocument returns the document's metadata.
func GetDocument(
	ctx context.Context,
	be *backend.Backend,
	docID string,
) (*types.DocumentSummary, error) {
	info, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return info.ToSummary(), nil
}

// ListDocumentsByOwner returns the documents owned by the given user,
// newest-first.
func ListDocumentsByOwner(
	ctx context.Context,
	be *backend.Backend,
	ownerID string,
	paging types.Paging,
) (*types.SearchResult[*types.DocumentSummary], error) {
	paging = paging.Normalized(be.Config.DefaultPageSize)
	infos, total, err := be.DB.FindDocInfosByOwner(ctx, ownerID, paging)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.DocumentSummary, 0, len(infos))
	for _, info := range infos {
		summaries = append(summaries, info.ToSummary())
	}
	return &types.SearchResult[*types.DocumentSummary]{
		TotalCount: total,
		Elements:   summaries,
	}, nil
}

// RenameDocument changes the document's title.
func RenameDocument(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	title string,
) (*types.DocumentSummary, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	info, err := be.DB.UpdateDocTitle(ctx, docID, title)
	if err != nil {
		return nil, err
	}
	return info.ToSummary(), nil
}

// AddCollaborator grants the given user edit access to the document.
func AddCollaborator(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	userID string,
) (*types.DocumentSummary, error) {
	info, err := be.DB.AddCollaborator(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	return info.ToSummary(), nil
}

// RemoveCollaborator revokes the given user's edit access. The owner's
// access cannot be revoked.
func RemoveCollaborator(
	ctx context.Context,
	be *backend.Backend,
	docID string,
	userID string,
) (*types.DocumentSummary, error) {
	info, err := be.DB.RemoveCollaborator(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	return info.ToSummary(), nil
}

// RemoveDocument deletes the document and its whole revision ledger.
func RemoveDocument(
	ctx context.Context,
	be *backend.Backend,
	docID string,
) error {
	return be.DB.RemoveDocInfo(ctx, docID)
}
