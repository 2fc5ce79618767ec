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

package backend

import (
	"fmt"
	"os"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// OpWindowSize is the number of applied operations retained per document
	// for transforming stale submissions. Submissions whose base version is
	// older than the window are rejected with a version conflict.
	OpWindowSize int `yaml:"OpWindowSize"`

	// OpDedupCacheSize is the cache size of accepted operation ids used to
	// absorb idempotent resubmissions.
	OpDedupCacheSize int `yaml:"OpDedupCacheSize"`

	// OpDedupCacheTTL is the TTL value to set when caching accepted
	// operation ids.
	OpDedupCacheTTL string `yaml:"OpDedupCacheTTL"`

	// RevisionMaxRetries is the max count that retries a failed revision
	// ledger write before marking the document degraded.
	RevisionMaxRetries int `yaml:"RevisionMaxRetries"`

	// RevisionRetryBaseInterval is the base interval that waits before
	// retrying a failed revision ledger write. The wait doubles per attempt.
	RevisionRetryBaseInterval string `yaml:"RevisionRetryBaseInterval"`

	// RevisionQueueSize is the buffer size of each document's pending
	// revision write queue.
	RevisionQueueSize int `yaml:"RevisionQueueSize"`

	// HistoryMaxVersions is the number of auto-revisions kept per document
	// before pruning. 0 disables count-based pruning.
	HistoryMaxVersions int `yaml:"HistoryMaxVersions"`

	// HistoryRetention is the age limit of auto-revisions. "0s" disables
	// age-based pruning.
	HistoryRetention string `yaml:"HistoryRetention"`

	// DocSubscriptionLimit is the max number of event subscriptions per
	// document. 0 means unlimited.
	DocSubscriptionLimit int `yaml:"DocSubscriptionLimit"`

	// DefaultPageSize is the page size applied when a query gives none.
	DefaultPageSize int `yaml:"DefaultPageSize"`

	// Hostname is the server hostname. hostname is used by metrics.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.OpDedupCacheTTL); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--op-dedup-cache-ttl" flag: %w`,
			c.OpDedupCacheTTL,
			err,
		)
	}

	if _, err := time.ParseDuration(c.RevisionRetryBaseInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--revision-retry-base-interval" flag: %w`,
			c.RevisionRetryBaseInterval,
			err,
		)
	}

	if _, err := time.ParseDuration(c.HistoryRetention); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--history-retention" flag: %w`,
			c.HistoryRetention,
			err,
		)
	}

	return nil
}

// ParseOpDedupCacheTTL returns TTL for the operation dedup cache.
func (c *Config) ParseOpDedupCacheTTL() time.Duration {
	result, err := time.ParseDuration(c.OpDedupCacheTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse op dedup cache ttl: %w", err)
		os.Exit(1)
	}

	return result
}

// ParseRevisionRetryBaseInterval returns the base interval between revision
// write retries.
func (c *Config) ParseRevisionRetryBaseInterval() time.Duration {
	result, err := time.ParseDuration(c.RevisionRetryBaseInterval)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse revision retry base interval: %w", err)
		os.Exit(1)
	}

	return result
}

// ParseHistoryRetention returns the age limit of auto-revisions.
func (c *Config) ParseHistoryRetention() time.Duration {
	result, err := time.ParseDuration(c.HistoryRetention)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse history retention: %w", err)
		os.Exit(1)
	}

	return result
}
