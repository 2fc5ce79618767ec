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

package collab

import (
	"context"

	"github.com/coedit-team/coedit/server/backend"
)

// DocAuthorizer is the default AuthorizationProvider, backed by the
// document's own collaborator list: anyone may read a public document,
// collaborators (the owner included) may write, and only the owner may
// manage collaborators.
type DocAuthorizer struct {
	backend *backend.Backend
}

// NewDocAuthorizer creates a new instance of DocAuthorizer.
func NewDocAuthorizer(be *backend.Backend) *DocAuthorizer {
	return &DocAuthorizer{backend: be}
}

// CanRead returns whether the user may read the document.
func (a *DocAuthorizer) CanRead(ctx context.Context, userID string, docID string) (bool, error) {
	info, err := a.backend.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return false, err
	}
	return info.CanRead(userID), nil
}

// CanWrite returns whether the user may edit the document.
func (a *DocAuthorizer) CanWrite(ctx context.Context, userID string, docID string) (bool, error) {
	info, err := a.backend.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return false, err
	}
	return info.HasCollaborator(userID), nil
}

// CanManageCollaborators returns whether the user may manage the
// document's collaborator list.
func (a *DocAuthorizer) CanManageCollaborators(ctx context.Context, userID string, docID string) (bool, error) {
	info, err := a.backend.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return false, err
	}
	return info.OwnerID == userID, nil
}

// OpenDirectory is the default UserDirectory for deployments without an
// external account system. Every non-empty user id exists.
type OpenDirectory struct{}

// Exists returns whether the given user id exists.
func (OpenDirectory) Exists(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}
