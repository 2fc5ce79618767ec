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

// Package mongo implements the database interface using MongoDB.
package mongo

import (
	"context"
	gerrors "errors"
	"fmt"
	"regexp"
	gotime "time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/server/backend/database"
	"github.com/coedit-team/coedit/server/logging"
)

// Client is a client that connects to Mongo DB and reads or saves documents
// and revisions.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancel()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.CoeditDatabase)); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof(
		"MongoDB connected, URI: %s, DB: %s",
		conf.ConnectionURI,
		conf.CoeditDatabase,
	)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// CreateDocInfo creates a new document with version 0 and empty content.
func (c *Client) CreateDocInfo(
	ctx context.Context,
	title string,
	ownerID string,
	roomID string,
	isPublic bool,
) (*database.DocInfo, error) {
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

	if _, err := c.collection(ColDocuments).InsertOne(ctx, info); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	return info, nil
}

// FindDocInfoByID returns the document of the given id.
func (c *Client) FindDocInfoByID(ctx context.Context, docID string) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOne(ctx, bson.M{"_id": docID})

	info := &database.DocInfo{}
	if err := result.Decode(info); err != nil {
		if gerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", docID, database.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}

	return info, nil
}

// FindDocInfosByOwner returns the documents owned by the given user,
// newest-first, with the total count.
func (c *Client) FindDocInfosByOwner(
	ctx context.Context,
	ownerID string,
	paging types.Paging,
) ([]*database.DocInfo, int, error) {
	filter := bson.M{"owner_id": ownerID}

	total, err := c.collection(ColDocuments).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip(int64(paging.Offset()))
	if paging.PageSize > 0 {
		opts.SetLimit(int64(paging.PageSize))
	}

	cursor, err := c.collection(ColDocuments).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find documents: %w", err)
	}

	var infos []*database.DocInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, 0, fmt.Errorf("fetch documents: %w", err)
	}

	return infos, int(total), nil
}

// UpdateDocContent replaces the document content, advancing the version.
func (c *Client) UpdateDocContent(
	ctx context.Context,
	docID string,
	content string,
	version int64,
	updatedAt gotime.Time,
) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOneAndUpdate(
		ctx,
		bson.M{"_id": docID, "version": version - 1},
		bson.M{"$set": bson.M{
			"content":    content,
			"version":    version,
			"updated_at": updatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	info := &database.DocInfo{}
	if err := result.Decode(info); err != nil {
		if gerrors.Is(err, mongo.ErrNoDocuments) {
			stored, findErr := c.FindDocInfoByID(ctx, docID)
			if findErr != nil {
				return nil, findErr
			}
			return nil, fmt.Errorf(
				"update %s to version %d from %d: %w",
				docID, version, stored.Version, database.ErrVersionMismatch,
			)
		}
		return nil, fmt.Errorf("update document: %w", err)
	}

	return info, nil
}

// UpdateDocTitle renames the document.
func (c *Client) UpdateDocTitle(ctx context.Context, docID string, title string) (*database.DocInfo, error) {
	return c.findAndUpdateDoc(ctx, docID, bson.M{"$set": bson.M{"title": title}})
}

// AddCollaborator adds the given user to the document's collaborator set.
func (c *Client) AddCollaborator(ctx context.Context, docID string, userID string) (*database.DocInfo, error) {
	return c.findAndUpdateDoc(ctx, docID, bson.M{"$addToSet": bson.M{"collaborators": userID}})
}

// RemoveCollaborator removes the given user from the collaborator set.
func (c *Client) RemoveCollaborator(ctx context.Context, docID string, userID string) (*database.DocInfo, error) {
	info, err := c.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if userID == info.OwnerID {
		return nil, fmt.Errorf("remove %s from %s: %w", userID, docID, database.ErrOwnerImmutable)
	}

	return c.findAndUpdateDoc(ctx, docID, bson.M{"$pull": bson.M{"collaborators": userID}})
}

// RemoveDocInfo removes the document and all of its revisions.
func (c *Client) RemoveDocInfo(ctx context.Context, docID string) error {
	if _, err := c.collection(ColRevisions).DeleteMany(ctx, bson.M{"doc_id": docID}); err != nil {
		return fmt.Errorf("remove revisions of %s: %w", docID, err)
	}

	result, err := c.collection(ColDocuments).DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", docID, database.ErrDocumentNotFound)
	}

	return nil
}

// CreateRevisionInfo appends a revision to the document's ledger.
func (c *Client) CreateRevisionInfo(ctx context.Context, rev *database.RevisionInfo) error {
	if _, err := c.collection(ColRevisions).InsertOne(ctx, rev); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf(
				"revision %d of %s: %w",
				rev.Version, rev.DocID, database.ErrRevisionAlreadyExists,
			)
		}
		return fmt.Errorf("insert revision: %w", err)
	}

	return nil
}

// FindRevisionInfo returns the revision of the given document and version.
func (c *Client) FindRevisionInfo(
	ctx context.Context,
	docID string,
	version int64,
) (*database.RevisionInfo, error) {
	result := c.collection(ColRevisions).FindOne(ctx, bson.M{
		"doc_id":  docID,
		"version": version,
	})

	info := &database.RevisionInfo{}
	if err := result.Decode(info); err != nil {
		if gerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("revision %d of %s: %w", version, docID, database.ErrRevisionNotFound)
		}
		return nil, fmt.Errorf("decode revision: %w", err)
	}

	return info, nil
}

// FindLatestRevisionInfo returns the newest revision of the document.
func (c *Client) FindLatestRevisionInfo(ctx context.Context, docID string) (*database.RevisionInfo, error) {
	result := c.collection(ColRevisions).FindOne(
		ctx,
		bson.M{"doc_id": docID},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}}),
	)

	info := &database.RevisionInfo{}
	if err := result.Decode(info); err != nil {
		if gerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("latest revision of %s: %w", docID, database.ErrRevisionNotFound)
		}
		return nil, fmt.Errorf("decode revision: %w", err)
	}

	return info, nil
}

// FindRevisionInfosByPaging returns revisions newest-first.
func (c *Client) FindRevisionInfosByPaging(
	ctx context.Context,
	docID string,
	paging types.Paging,
	includeSnapshots bool,
) ([]*database.RevisionInfo, error) {
	filter := bson.M{"doc_id": docID}
	if !includeSnapshots {
		filter["is_snapshot"] = false
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetSkip(int64(paging.Offset()))
	if paging.PageSize > 0 {
		opts.SetLimit(int64(paging.PageSize))
	}

	cursor, err := c.collection(ColRevisions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find revisions: %w", err)
	}

	var infos []*database.RevisionInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("fetch revisions: %w", err)
	}

	return infos, nil
}

// CountRevisionInfos returns the total number of revisions and how many of
// them are snapshots.
func (c *Client) CountRevisionInfos(ctx context.Context, docID string) (int, int, error) {
	total, err := c.collection(ColRevisions).CountDocuments(ctx, bson.M{"doc_id": docID})
	if err != nil {
		return 0, 0, fmt.Errorf("count revisions: %w", err)
	}

	snapshots, err := c.collection(ColRevisions).CountDocuments(ctx, bson.M{
		"doc_id":      docID,
		"is_snapshot": true,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("count snapshots: %w", err)
	}

	return int(total), int(snapshots), nil
}

// DeleteRevisionInfo deletes a single revision.
func (c *Client) DeleteRevisionInfo(ctx context.Context, docID string, version int64) error {
	result, err := c.collection(ColRevisions).DeleteOne(ctx, bson.M{
		"doc_id":  docID,
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("delete revision: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("revision %d of %s: %w", version, docID, database.ErrRevisionNotFound)
	}

	return nil
}

// SearchRevisionInfos returns revisions whose content contains the query,
// newest-first.
func (c *Client) SearchRevisionInfos(
	ctx context.Context,
	docID string,
	query string,
	paging types.Paging,
) (*types.SearchResult[*database.RevisionInfo], error) {
	filter := bson.M{
		"doc_id":  docID,
		"content": bson.M{"$regex": regexp.QuoteMeta(query)},
	}

	total, err := c.collection(ColRevisions).CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count matching revisions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetSkip(int64(paging.Offset()))
	if paging.PageSize > 0 {
		opts.SetLimit(int64(paging.PageSize))
	}

	cursor, err := c.collection(ColRevisions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search revisions: %w", err)
	}

	var infos []*database.RevisionInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("fetch revisions: %w", err)
	}

	return &types.SearchResult[*database.RevisionInfo]{
		TotalCount: int(total),
		Elements:   infos,
	}, nil
}

// PruneRevisionInfos removes old auto-revisions beyond maxVersions or older
// than retention. Snapshots and the newest revision are never pruned.
func (c *Client) PruneRevisionInfos(
	ctx context.Context,
	docID string,
	maxVersions int,
	retention gotime.Duration,
) (int, error) {
	cursor, err := c.collection(ColRevisions).Find(
		ctx,
		bson.M{"doc_id": docID},
		options.Find().
			SetSort(bson.D{{Key: "version", Value: 1}}).
			SetProjection(bson.M{"version": 1, "is_snapshot": 1, "created_at": 1}),
	)
	if err != nil {
		return 0, fmt.Errorf("find revisions: %w", err)
	}

	var infos []*database.RevisionInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return 0, fmt.Errorf("fetch revisions: %w", err)
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
	var prunable []int64
	for _, info := range infos {
		if info.IsSnapshot || info.Version == latest.Version {
			continue
		}

		overCount := maxVersions > 0 && kept > maxVersions
		overAge := retention > 0 && info.CreatedAt.Before(cutoff)
		if !overCount && !overAge {
			continue
		}

		prunable = append(prunable, info.Version)
		kept--
	}
	if len(prunable) == 0 {
		return 0, nil
	}

	result, err := c.collection(ColRevisions).DeleteMany(ctx, bson.M{
		"doc_id":  docID,
		"version": bson.M{"$in": prunable},
	})
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}

	return int(result.DeletedCount), nil
}

func (c *Client) findAndUpdateDoc(
	ctx context.Context,
	docID string,
	update bson.M,
) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOneAndUpdate(
		ctx,
		bson.M{"_id": docID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	info := &database.DocInfo{}
	if err := result.Decode(info); err != nil {
		if gerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", docID, database.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("update document: %w", err)
	}

	return info, nil
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.CoeditDatabase).Collection(name)
}
