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

package types

import (
	"time"
)

// DocumentSummary is the metadata shape of a document without its content.
type DocumentSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Version       int64     `json:"version"`
	OwnerID       string    `json:"ownerId"`
	RoomID        string    `json:"roomId,omitempty"`
	IsPublic      bool      `json:"isPublic"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"createdAt"`
	LastModified  time.Time `json:"lastModified"`
}

// Paging is a page/limit pagination request. Page is 1-based; a PageSize of
// 0 falls back to the server default.
type Paging struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalized returns the paging with defaults applied.
func (p Paging) Normalized(defaultPageSize int) Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	return p
}

// Offset returns the number of elements to skip for this page.
func (p Paging) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// SearchResult is a paginated result of a query with the total match count.
type SearchResult[T any] struct {
	TotalCount int `json:"totalCount"`
	Elements   []T `json:"elements"`
}
