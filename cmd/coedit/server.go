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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coedit-team/coedit/server"
	"github.com/coedit-team/coedit/server/backend/database/mongo"
	"github.com/coedit-team/coedit/server/backend/messagebroker"
	"github.com/coedit-team/coedit/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	opDedupCacheTTL           time.Duration
	revisionRetryBaseInterval time.Duration
	historyRetention          time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoCoeditDatabase    string
	mongoPingTimeout       time.Duration

	kafkaAddresses           string
	kafkaDocEventsTopic      string
	kafkaRevisionEventsTopic string

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Coedit server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Backend.OpDedupCacheTTL = opDedupCacheTTL.String()
			conf.Backend.RevisionRetryBaseInterval = revisionRetryBaseInterval.String()
			conf.Backend.HistoryRetention = historyRetention.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					CoeditDatabase:    mongoCoeditDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			if kafkaAddresses != "" {
				conf.Kafka = &messagebroker.Config{
					Addresses:           kafkaAddresses,
					DocEventsTopic:      kafkaDocEventsTopic,
					RevisionEventsTopic: kafkaRevisionEventsTopic,
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			r, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := r.Start(); err != nil {
				return err
			}

			if code := handleSignal(r); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(r *server.Coedit) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-r.ShutdownCh():
		// coedit is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := r.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.OpWindowSize,
		"op-window-size",
		server.DefaultOpWindowSize,
		"Number of applied operations retained per document for transforming stale submissions.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.OpDedupCacheSize,
		"op-dedup-cache-size",
		server.DefaultOpDedupCacheSize,
		"The cache size of accepted operation ids used to absorb resubmissions.",
	)
	cmd.Flags().DurationVar(
		&opDedupCacheTTL,
		"op-dedup-cache-ttl",
		server.DefaultOpDedupCacheTTL,
		"TTL value to set when caching accepted operation ids.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.RevisionMaxRetries,
		"revision-max-retries",
		server.DefaultRevisionMaxRetries,
		"Maximum number of retries for a revision ledger write.",
	)
	cmd.Flags().DurationVar(
		&revisionRetryBaseInterval,
		"revision-retry-base-interval",
		server.DefaultRevisionRetryBaseInterval,
		"Base interval between revision ledger write retries. The wait doubles per attempt.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.RevisionQueueSize,
		"revision-queue-size",
		server.DefaultRevisionQueueSize,
		"Buffer size of each document's pending revision write queue.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.HistoryMaxVersions,
		"history-max-versions",
		server.DefaultHistoryMaxVersions,
		"Number of auto-revisions kept per document before pruning. 0 disables count-based pruning.",
	)
	cmd.Flags().DurationVar(
		&historyRetention,
		"history-retention",
		server.DefaultHistoryRetention,
		"Age limit of auto-revisions. 0s disables age-based pruning.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.DocSubscriptionLimit,
		"doc-subscription-limit",
		server.DefaultDocSubscriptionLimit,
		"Maximum number of event subscriptions per document. 0 means unlimited.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.DefaultPageSize,
		"default-page-size",
		server.DefaultPageSize,
		"Page size applied when a query gives none.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoCoeditDatabase,
		"mongo-coedit-database",
		server.DefaultMongoCoeditDatabase,
		"Coedit's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&kafkaAddresses,
		"kafka-addresses",
		"",
		"Comma-separated addresses of the Kafka brokers",
	)
	cmd.Flags().StringVar(
		&kafkaDocEventsTopic,
		"kafka-doc-events-topic",
		server.DefaultKafkaDocEventsTopic,
		"Kafka topic for document events",
	)
	cmd.Flags().StringVar(
		&kafkaRevisionEventsTopic,
		"kafka-revision-events-topic",
		server.DefaultKafkaRevisionEventsTopic,
		"Kafka topic for revision ledger events",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"Coedit Server Hostname",
	)

	rootCmd.AddCommand(cmd)
}
